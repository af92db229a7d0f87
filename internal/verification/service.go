package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carrental-backend/internal/payments"
	"github.com/angelmondragon/carrental-backend/internal/rentals"
	"github.com/angelmondragon/carrental-backend/pkg/auth"
	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carrental-backend/pkg/errors"
	"github.com/angelmondragon/carrental-backend/pkg/logger"
	"github.com/angelmondragon/carrental-backend/pkg/outbox"
	"github.com/angelmondragon/carrental-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/carrental-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type proofOpener interface {
	Open(ctx context.Context, key string) ([]byte, error)
}

type reviewMetrics interface {
	IncVerification(outcome string, waited time.Duration)
}

// ResolveInput is an operator decision. PaymentID, when set, pins the
// decision to the record the operator reviewed.
type ResolveInput struct {
	Approve   bool
	PaymentID *uuid.UUID
	Note      string
}

// Resolution is the state after a decision.
type Resolution struct {
	Rental  *models.Rental
	Payment *models.PaymentRecord
}

// PaymentListInput filters the fleet-wide payment list.
type PaymentListInput struct {
	Outcome *enums.PaymentOutcome
	Method  *enums.PaymentMethod
	Limit   int
	Cursor  string
}

// Proof is a stored payment proof ready to stream.
type Proof struct {
	ContentType string
	Data        []byte
}

// Service exposes the review queue, decisions and payment reads.
type Service interface {
	ListPending(ctx context.Context, actor auth.Actor) ([]QueueItem, error)
	Resolve(ctx context.Context, actor auth.Actor, rentalID uuid.UUID, input ResolveInput) (*Resolution, error)
	ListPayments(ctx context.Context, actor auth.Actor, rentalID uuid.UUID) ([]models.PaymentRecord, error)
	ListAll(ctx context.Context, actor auth.Actor, input PaymentListInput) (pagination.Page[models.PaymentRecord], error)
	GetPayment(ctx context.Context, actor auth.Actor, paymentID uuid.UUID) (*models.PaymentRecord, error)
	OpenProof(ctx context.Context, actor auth.Actor, paymentID uuid.UUID) (*Proof, error)
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Queue      QueueReader
	Rentals    rentals.Repository
	Payments   payments.Repository
	Controller *rentals.Controller
	Tx         txRunner
	Outbox     outboxPublisher
	Proofs     proofOpener
	Metrics    reviewMetrics
	Logger     *logger.Logger
}

type service struct {
	queue      QueueReader
	rentals    rentals.Repository
	payments   payments.Repository
	controller *rentals.Controller
	tx         txRunner
	outbox     outboxPublisher
	proofs     proofOpener
	metrics    reviewMetrics
	logg       *logger.Logger
}

// NewService builds the verification workflow. Metrics and Logger are optional.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Queue == nil:
		return nil, fmt.Errorf("queue reader required")
	case params.Rentals == nil:
		return nil, fmt.Errorf("rentals repository required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payments repository required")
	case params.Controller == nil:
		return nil, fmt.Errorf("lifecycle controller required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Proofs == nil:
		return nil, fmt.Errorf("proof opener required")
	}
	return &service{
		queue:      params.Queue,
		rentals:    params.Rentals,
		payments:   params.Payments,
		controller: params.Controller,
		tx:         params.Tx,
		outbox:     params.Outbox,
		proofs:     params.Proofs,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

func (s *service) ListPending(ctx context.Context, actor auth.Actor) ([]QueueItem, error) {
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "operator role required")
	}
	items, err := s.queue.ListPending(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list verification queue")
	}
	return items, nil
}

// Resolve applies one decision. Of two operators racing on the same record,
// the second gets ALREADY_RESOLVED.
func (s *service) Resolve(ctx context.Context, actor auth.Actor, rentalID uuid.UUID, input ResolveInput) (*Resolution, error) {
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "operator role required")
	}

	outcome := enums.PaymentOutcomeRejected
	event := enums.RentalEventPaymentRejected
	if input.Approve {
		outcome = enums.PaymentOutcomeApproved
		event = enums.RentalEventPaymentApproved
	}
	note := strings.TrimSpace(input.Note)

	var (
		result *Resolution
		waited time.Duration
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rentalsRepo := s.rentals.WithTx(tx)
		paymentsRepo := s.payments.WithTx(tx)

		rental, err := rentalsRepo.FindByIDForUpdate(ctx, rentalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock reservation")
		}

		record, err := paymentsRepo.FindLatestForRentalForUpdate(ctx, rental.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition, "reservation has no payment proof to review").
					WithDetails(map[string]any{"status": rental.Status})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payment record")
		}
		if input.PaymentID != nil && *input.PaymentID != record.ID {
			return s.supersededPin(ctx, paymentsRepo, rental.ID, *input.PaymentID)
		}
		if record.Outcome != enums.PaymentOutcomePending {
			return alreadyResolved(record)
		}

		now := s.controller.Now()
		resolution := payments.Resolution{
			Outcome:    outcome,
			VerifiedBy: actor.ID,
			VerifiedAt: now,
		}
		if note != "" {
			resolution.Note = &note
		}
		if err := paymentsRepo.Resolve(ctx, record.ID, resolution); err != nil {
			if errors.Is(err, payments.ErrNotPending) {
				return alreadyResolved(record)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve payment record")
		}
		record.Outcome = outcome
		record.VerifiedBy = &resolution.VerifiedBy
		record.VerifiedAt = &now
		record.ReviewNote = resolution.Note

		if err := s.controller.Transition(ctx, tx, rental, event, actor, rentals.TransitionOptions{Reason: note}); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentVerified,
			AggregateType: enums.AggregatePayment,
			AggregateID:   record.ID,
			Version:       1,
			Actor:         outbox.ActorOf(actor),
			OccurredAt:    now,
			Data: payloads.PaymentVerifiedEvent{
				PaymentID: record.ID,
				RentalID:  rental.ID,
				Outcome:   outcome,
				Note:      note,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment verified")
		}

		waited = now.Sub(record.SubmittedAt)
		result = &Resolution{Rental: rental, Payment: record}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncVerification(string(outcome), waited)
	}
	if s.logg != nil {
		logCtx := s.logg.WithRentalID(ctx, rentalID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"payment_id": result.Payment.ID.String(),
			"outcome":    outcome,
			"operator":   actor.ID.String(),
		})
		s.logg.Info(logCtx, "payment proof resolved")
	}
	return result, nil
}

// supersededPin explains why a pinned record is not the one under review:
// an older record of the same reservation was already decided, anything
// else does not exist for this reservation.
func (s *service) supersededPin(ctx context.Context, repo payments.Repository, rentalID, paymentID uuid.UUID) error {
	pinned, err := repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return paymentNotFound(paymentID)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pinned payment record")
	}
	if pinned.RentalID != rentalID {
		return paymentNotFound(paymentID)
	}
	return alreadyResolved(pinned)
}

func paymentNotFound(paymentID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "payment record not found for this reservation").
		WithDetails(map[string]any{"payment_id": paymentID})
}

func alreadyResolved(record *models.PaymentRecord) error {
	return pkgerrors.New(pkgerrors.CodeAlreadyResolved, "payment proof was already reviewed").
		WithDetails(map[string]any{"payment_id": record.ID, "outcome": record.Outcome})
}

func (s *service) ListPayments(ctx context.Context, actor auth.Actor, rentalID uuid.UUID) ([]models.PaymentRecord, error) {
	if _, err := s.visibleRental(ctx, actor, rentalID); err != nil {
		return nil, err
	}
	records, err := s.payments.ListByRental(ctx, rentalID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment records")
	}
	return records, nil
}

// ListAll pages through every payment record, newest submission first.
// Staff only.
func (s *service) ListAll(ctx context.Context, actor auth.Actor, input PaymentListInput) (pagination.Page[models.PaymentRecord], error) {
	if !actor.IsStaff() {
		return pagination.Page[models.PaymentRecord]{}, pkgerrors.New(pkgerrors.CodeForbidden, "operator role required")
	}
	if input.Outcome != nil && !input.Outcome.IsValid() {
		return pagination.Page[models.PaymentRecord]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid outcome filter")
	}
	if input.Method != nil && !input.Method.IsValid() {
		return pagination.Page[models.PaymentRecord]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid method filter")
	}
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return pagination.Page[models.PaymentRecord]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.payments.List(ctx, payments.ListParams{
		Outcome: input.Outcome,
		Method:  input.Method,
		Limit:   pagination.LimitWithBuffer(input.Limit),
		Cursor:  cursor,
	})
	if err != nil {
		return pagination.Page[models.PaymentRecord]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment records")
	}
	return pagination.Trim(rows, input.Limit, func(p models.PaymentRecord) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.SubmittedAt, ID: p.ID}
	}), nil
}

func (s *service) GetPayment(ctx context.Context, actor auth.Actor, paymentID uuid.UUID) (*models.PaymentRecord, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing")
	}
	record, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment record")
	}
	if _, err := s.visibleRental(ctx, actor, record.RentalID); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment record not found")
		}
		return nil, err
	}
	return record, nil
}

func (s *service) OpenProof(ctx context.Context, actor auth.Actor, paymentID uuid.UUID) (*Proof, error) {
	record, err := s.GetPayment(ctx, actor, paymentID)
	if err != nil {
		return nil, err
	}
	if !record.HasProof() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment was taken at the counter and has no proof")
	}
	data, err := s.proofs.Open(ctx, record.ProofRef)
	if err != nil {
		return nil, err
	}
	return &Proof{ContentType: record.ProofContentType, Data: data}, nil
}

func (s *service) visibleRental(ctx context.Context, actor auth.Actor, rentalID uuid.UUID) (*models.Rental, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing")
	}
	rental, err := s.rentals.FindByID(ctx, rentalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	if !actor.CanView(rental.CustomerID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return rental, nil
}
