package rentals

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carrental-backend/internal/payments"
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

type historyReader interface {
	History(ctx context.Context, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) ([]outbox.Entry, error)
	Activity(ctx context.Context, actorID uuid.UUID, limit int) ([]outbox.Entry, error)
}

// ProofRemover deletes stored payment proofs once their records are gone.
type ProofRemover interface {
	Delete(ctx context.Context, key string) error
}

// ListInput is the customer-facing list query.
type ListInput struct {
	Status *enums.RentalStatus
	Limit  int
	Cursor string
}

// StaffListInput narrows the fleet-wide list. Zero ids are not applied.
type StaffListInput struct {
	ListInput
	CustomerID uuid.UUID
	VehicleID  uuid.UUID
}

// Service exposes reservation reads and operator/admin actions.
type Service interface {
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Rental, error)
	ListMine(ctx context.Context, actor auth.Actor, input ListInput) (pagination.Page[models.Rental], error)
	List(ctx context.Context, actor auth.Actor, input StaffListInput) (pagination.Page[models.Rental], error)
	TransitionReservation(ctx context.Context, actor auth.Actor, id uuid.UUID, target enums.RentalStatus, reason string) (*models.Rental, error)
	Delete(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) error
	History(ctx context.Context, actor auth.Actor, id uuid.UUID) ([]outbox.Entry, error)
	Activity(ctx context.Context, actor auth.Actor, userID uuid.UUID, limit int) ([]outbox.Entry, error)
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Repo       Repository
	Payments   payments.Repository
	Controller *Controller
	Tx         txRunner
	Outbox     outboxPublisher
	History    historyReader
	Proofs     ProofRemover
	Logger     *logger.Logger
}

type service struct {
	repo       Repository
	payments   payments.Repository
	controller *Controller
	tx         txRunner
	outbox     outboxPublisher
	history    historyReader
	proofs     ProofRemover
	logg       *logger.Logger
}

// NewService builds the rentals service. Proofs and Logger are optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("rentals repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Controller == nil {
		return nil, fmt.Errorf("lifecycle controller required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.History == nil {
		return nil, fmt.Errorf("history reader required")
	}
	return &service{
		repo:       params.Repo,
		payments:   params.Payments,
		controller: params.Controller,
		tx:         params.Tx,
		outbox:     params.Outbox,
		history:    params.History,
		proofs:     params.Proofs,
		logg:       params.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Rental, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing")
	}
	rental, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	if !actor.CanView(rental.CustomerID) {
		// Foreign reservations are indistinguishable from missing ones.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return rental, nil
}

func (s *service) ListMine(ctx context.Context, actor auth.Actor, input ListInput) (pagination.Page[models.Rental], error) {
	if !actor.Valid() {
		return pagination.Page[models.Rental]{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing")
	}
	return s.list(ctx, ListParams{CustomerID: actor.ID}, input)
}

// List pages through every reservation, newest first. Staff only.
func (s *service) List(ctx context.Context, actor auth.Actor, input StaffListInput) (pagination.Page[models.Rental], error) {
	if !actor.IsStaff() {
		return pagination.Page[models.Rental]{}, pkgerrors.New(pkgerrors.CodeForbidden, "operator role required")
	}
	return s.list(ctx, ListParams{CustomerID: input.CustomerID, VehicleID: input.VehicleID}, input.ListInput)
}

func (s *service) list(ctx context.Context, params ListParams, input ListInput) (pagination.Page[models.Rental], error) {
	if input.Status != nil && !input.Status.IsValid() {
		return pagination.Page[models.Rental]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return pagination.Page[models.Rental]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	params.Status = input.Status
	params.Limit = pagination.LimitWithBuffer(input.Limit)
	params.Cursor = cursor
	rows, err := s.repo.List(ctx, params)
	if err != nil {
		return pagination.Page[models.Rental]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
	}
	return pagination.Trim(rows, input.Limit, func(r models.Rental) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	}), nil
}

func (s *service) TransitionReservation(ctx context.Context, actor auth.Actor, id uuid.UUID, target enums.RentalStatus, reason string) (*models.Rental, error) {
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "operator role required")
	}
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown target status")
	}
	event, ok := operatorEvents[target]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("operators cannot move a reservation to %s", target)).
			WithDetails(map[string]any{"to": target})
	}

	var updated *models.Rental
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rental, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, id)
		if err != nil {
			return mapLoadError(err)
		}
		if err := s.controller.Transition(ctx, tx, rental, event, actor, TransitionOptions{Reason: reason}); err != nil {
			return err
		}
		updated = rental
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a reservation and its payment records outside the state
// machine, leaving a rental_deleted audit event with a snapshot.
func (s *service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) error {
	if !actor.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}

	var proofRefs []string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		paymentsRepo := s.payments.WithTx(tx)

		rental, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return mapLoadError(err)
		}
		records, err := paymentsRepo.ListByRental(ctx, rental.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment records")
		}
		paymentIDs := make([]uuid.UUID, 0, len(records))
		refs := make([]string, 0, len(records))
		for _, record := range records {
			paymentIDs = append(paymentIDs, record.ID)
			refs = append(refs, record.ProofRef)
		}

		if err := paymentsRepo.DeleteByRental(ctx, rental.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete payment records")
		}
		if err := repo.Delete(ctx, rental.ID); err != nil {
			return mapLoadError(err)
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRentalDeleted,
			AggregateType: enums.AggregateRental,
			AggregateID:   rental.ID,
			Version:       1,
			Actor:         outbox.ActorOf(actor),
			OccurredAt:    s.controller.Now(),
			Data: payloads.RentalDeletedEvent{
				RentalID:   rental.ID,
				CustomerID: rental.CustomerID,
				VehicleID:  rental.VehicleID,
				PickupAt:   rental.PickupAt,
				DropoffAt:  rental.DropoffAt,
				Status:     rental.Status,
				PaymentIDs: paymentIDs,
				ProofRefs:  refs,
				Reason:     reason,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit rental deleted")
		}

		if err := s.controller.RefreshVehicle(ctx, tx, rental.VehicleID); err != nil {
			return err
		}
		proofRefs = refs
		return nil
	})
	if err != nil {
		return err
	}

	s.removeProofs(ctx, id, proofRefs)
	return nil
}

func (s *service) removeProofs(ctx context.Context, rentalID uuid.UUID, refs []string) {
	if s.proofs == nil {
		return
	}
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := s.proofs.Delete(ctx, ref); err != nil && s.logg != nil {
			logCtx := s.logg.WithRentalID(ctx, rentalID.String())
			logCtx = s.logg.WithField(logCtx, "proof_ref", ref)
			s.logg.Error(logCtx, "remove payment proof", err)
		}
	}
}

// History returns the rental's audit trail merged with the trails of its
// payment records, oldest first. Deleted rentals keep their trail.
func (s *service) History(ctx context.Context, actor auth.Actor, id uuid.UUID) ([]outbox.Entry, error) {
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "operator role required")
	}

	entries, err := s.history.History(ctx, enums.AggregateRental, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rental history")
	}

	records, err := s.payments.ListByRental(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment records")
	}
	if len(entries) == 0 && len(records) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}

	seen := make(map[uuid.UUID]struct{}, len(records))
	paymentIDs := make([]uuid.UUID, 0, len(records))
	for _, record := range records {
		seen[record.ID] = struct{}{}
		paymentIDs = append(paymentIDs, record.ID)
	}
	for _, entry := range entries {
		deleted, ok := entry.Data.(payloads.RentalDeletedEvent)
		if !ok {
			continue
		}
		for _, paymentID := range deleted.PaymentIDs {
			if _, dup := seen[paymentID]; dup {
				continue
			}
			seen[paymentID] = struct{}{}
			paymentIDs = append(paymentIDs, paymentID)
		}
	}

	for _, paymentID := range paymentIDs {
		paymentEntries, err := s.history.History(ctx, enums.AggregatePayment, paymentID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment history")
		}
		entries = append(entries, paymentEntries...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].OccurredAt.Equal(entries[j].OccurredAt) {
			return entries[i].OccurredAt.Before(entries[j].OccurredAt)
		}
		return entries[i].EventID.String() < entries[j].EventID.String()
	})
	return entries, nil
}

// Activity lists the latest audit events raised by one user across all
// reservations. Admin only.
func (s *service) Activity(ctx context.Context, actor auth.Actor, userID uuid.UUID, limit int) ([]outbox.Entry, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	entries, err := s.history.Activity(ctx, userID, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user activity")
	}
	return entries, nil
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
}
