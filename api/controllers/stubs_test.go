package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/carrental-backend/api/middleware"
	"github.com/angelmondragon/carrental-backend/internal/checkout"
	"github.com/angelmondragon/carrental-backend/internal/rentals"
	"github.com/angelmondragon/carrental-backend/internal/verification"
	"github.com/angelmondragon/carrental-backend/pkg/auth"
	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carrental-backend/pkg/errors"
	"github.com/angelmondragon/carrental-backend/pkg/outbox"
	"github.com/angelmondragon/carrental-backend/pkg/pagination"
)

var errNotImplemented = pkgerrors.New(pkgerrors.CodeInternal, "not implemented")

type stubRentalService struct {
	get        func(auth.Actor, uuid.UUID) (*models.Rental, error)
	listMine   func(auth.Actor, rentals.ListInput) (pagination.Page[models.Rental], error)
	list       func(auth.Actor, rentals.StaffListInput) (pagination.Page[models.Rental], error)
	transition func(auth.Actor, uuid.UUID, enums.RentalStatus, string) (*models.Rental, error)
	remove     func(auth.Actor, uuid.UUID, string) error
	history    func(auth.Actor, uuid.UUID) ([]outbox.Entry, error)
	activity   func(auth.Actor, uuid.UUID, int) ([]outbox.Entry, error)
}

func (s stubRentalService) Get(_ context.Context, actor auth.Actor, id uuid.UUID) (*models.Rental, error) {
	if s.get == nil {
		return nil, errNotImplemented
	}
	return s.get(actor, id)
}

func (s stubRentalService) ListMine(_ context.Context, actor auth.Actor, input rentals.ListInput) (pagination.Page[models.Rental], error) {
	if s.listMine == nil {
		return pagination.Page[models.Rental]{}, errNotImplemented
	}
	return s.listMine(actor, input)
}

func (s stubRentalService) List(_ context.Context, actor auth.Actor, input rentals.StaffListInput) (pagination.Page[models.Rental], error) {
	if s.list == nil {
		return pagination.Page[models.Rental]{}, errNotImplemented
	}
	return s.list(actor, input)
}

func (s stubRentalService) TransitionReservation(_ context.Context, actor auth.Actor, id uuid.UUID, target enums.RentalStatus, reason string) (*models.Rental, error) {
	if s.transition == nil {
		return nil, errNotImplemented
	}
	return s.transition(actor, id, target, reason)
}

func (s stubRentalService) Delete(_ context.Context, actor auth.Actor, id uuid.UUID, reason string) error {
	if s.remove == nil {
		return errNotImplemented
	}
	return s.remove(actor, id, reason)
}

func (s stubRentalService) History(_ context.Context, actor auth.Actor, id uuid.UUID) ([]outbox.Entry, error) {
	if s.history == nil {
		return nil, errNotImplemented
	}
	return s.history(actor, id)
}

func (s stubRentalService) Activity(_ context.Context, actor auth.Actor, userID uuid.UUID, limit int) ([]outbox.Entry, error) {
	if s.activity == nil {
		return nil, errNotImplemented
	}
	return s.activity(actor, userID, limit)
}

type stubCheckoutService struct {
	initiate     func(auth.Actor, checkout.InitiateInput) (*checkout.InitiateResult, error)
	summary      func(auth.Actor, uuid.UUID) (*checkout.Summary, error)
	renter       func(auth.Actor, uuid.UUID, checkout.RenterInfo) error
	instructions func(auth.Actor, uuid.UUID, enums.PaymentMethod) (*checkout.PaymentInstructions, error)
	submitProof  func(auth.Actor, uuid.UUID, checkout.SubmitProofInput) (*checkout.ProofResult, error)
	record       func(auth.Actor, uuid.UUID, checkout.CounterPaymentInput) (*checkout.CounterPaymentResult, error)
}

func (s stubCheckoutService) Initiate(_ context.Context, actor auth.Actor, input checkout.InitiateInput) (*checkout.InitiateResult, error) {
	if s.initiate == nil {
		return nil, errNotImplemented
	}
	return s.initiate(actor, input)
}

func (s stubCheckoutService) Summary(_ context.Context, actor auth.Actor, id uuid.UUID) (*checkout.Summary, error) {
	if s.summary == nil {
		return nil, errNotImplemented
	}
	return s.summary(actor, id)
}

func (s stubCheckoutService) SubmitRenterInfo(_ context.Context, actor auth.Actor, id uuid.UUID, info checkout.RenterInfo) error {
	if s.renter == nil {
		return errNotImplemented
	}
	return s.renter(actor, id, info)
}

func (s stubCheckoutService) PaymentInstructions(_ context.Context, actor auth.Actor, id uuid.UUID, method enums.PaymentMethod) (*checkout.PaymentInstructions, error) {
	if s.instructions == nil {
		return nil, errNotImplemented
	}
	return s.instructions(actor, id, method)
}

func (s stubCheckoutService) SubmitProof(_ context.Context, actor auth.Actor, id uuid.UUID, input checkout.SubmitProofInput) (*checkout.ProofResult, error) {
	if s.submitProof == nil {
		return nil, errNotImplemented
	}
	return s.submitProof(actor, id, input)
}

func (s stubCheckoutService) RecordPayment(_ context.Context, actor auth.Actor, id uuid.UUID, input checkout.CounterPaymentInput) (*checkout.CounterPaymentResult, error) {
	if s.record == nil {
		return nil, errNotImplemented
	}
	return s.record(actor, id, input)
}

type stubVerificationService struct {
	listPending  func(auth.Actor) ([]verification.QueueItem, error)
	resolve      func(auth.Actor, uuid.UUID, verification.ResolveInput) (*verification.Resolution, error)
	listPayments func(auth.Actor, uuid.UUID) ([]models.PaymentRecord, error)
	listAll      func(auth.Actor, verification.PaymentListInput) (pagination.Page[models.PaymentRecord], error)
	getPayment   func(auth.Actor, uuid.UUID) (*models.PaymentRecord, error)
	openProof    func(auth.Actor, uuid.UUID) (*verification.Proof, error)
}

func (s stubVerificationService) ListPending(_ context.Context, actor auth.Actor) ([]verification.QueueItem, error) {
	if s.listPending == nil {
		return nil, errNotImplemented
	}
	return s.listPending(actor)
}

func (s stubVerificationService) Resolve(_ context.Context, actor auth.Actor, id uuid.UUID, input verification.ResolveInput) (*verification.Resolution, error) {
	if s.resolve == nil {
		return nil, errNotImplemented
	}
	return s.resolve(actor, id, input)
}

func (s stubVerificationService) ListPayments(_ context.Context, actor auth.Actor, id uuid.UUID) ([]models.PaymentRecord, error) {
	if s.listPayments == nil {
		return nil, errNotImplemented
	}
	return s.listPayments(actor, id)
}

func (s stubVerificationService) ListAll(_ context.Context, actor auth.Actor, input verification.PaymentListInput) (pagination.Page[models.PaymentRecord], error) {
	if s.listAll == nil {
		return pagination.Page[models.PaymentRecord]{}, errNotImplemented
	}
	return s.listAll(actor, input)
}

func (s stubVerificationService) GetPayment(_ context.Context, actor auth.Actor, id uuid.UUID) (*models.PaymentRecord, error) {
	if s.getPayment == nil {
		return nil, errNotImplemented
	}
	return s.getPayment(actor, id)
}

func (s stubVerificationService) OpenProof(_ context.Context, actor auth.Actor, id uuid.UUID) (*verification.Proof, error) {
	if s.openProof == nil {
		return nil, errNotImplemented
	}
	return s.openProof(actor, id)
}

func customerActor() auth.Actor {
	return auth.Actor{ID: uuid.New(), Role: enums.ActorRoleCustomer}
}

func operatorActor() auth.Actor {
	return auth.Actor{ID: uuid.New(), Role: enums.ActorRoleOperator}
}

func asActor(req *http.Request, actor auth.Actor) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), actor))
}

func withParams(req *http.Request, params map[string]string) *http.Request {
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v (%s)", err, resp.Body.String())
	}
	return env
}
