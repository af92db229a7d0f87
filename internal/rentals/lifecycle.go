package rentals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carrental-backend/internal/availability"
	"github.com/angelmondragon/carrental-backend/internal/vehicles"
	"github.com/angelmondragon/carrental-backend/pkg/auth"
	"github.com/angelmondragon/carrental-backend/pkg/db"
	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carrental-backend/pkg/errors"
	"github.com/angelmondragon/carrental-backend/pkg/logger"
	"github.com/angelmondragon/carrental-backend/pkg/outbox"
	"github.com/angelmondragon/carrental-backend/pkg/outbox/payloads"
)

const overlapConstraint = "rentals_no_overlap"

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// LifecycleMetrics records transitions and rejected bookings.
type LifecycleMetrics interface {
	IncTransition(from, to string)
	IncConflict()
}

// CreateInput describes a new reservation request that already passed
// request validation.
type CreateInput struct {
	Actor           auth.Actor
	CustomerID      uuid.UUID
	VehicleID       uuid.UUID
	PickupAt        time.Time
	DropoffAt       time.Time
	PickupLocation  string
	DropoffLocation *string
	IdempotencyKey  *string
}

// TransitionOptions carries optional context recorded with a transition.
type TransitionOptions struct {
	Reason string
}

// Controller is the only writer of reservation status.
type Controller struct {
	rentals  Repository
	vehicles vehicles.Repository
	checker  *availability.Checker
	outbox   outboxPublisher
	metrics  LifecycleMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewController wires the lifecycle controller. metrics and logg may be nil.
func NewController(rentals Repository, fleet vehicles.Repository, checker *availability.Checker, publisher outboxPublisher, metrics LifecycleMetrics, logg *logger.Logger, now func() time.Time) (*Controller, error) {
	if rentals == nil {
		return nil, fmt.Errorf("rentals repository required")
	}
	if fleet == nil {
		return nil, fmt.Errorf("vehicles repository required")
	}
	if checker == nil {
		return nil, fmt.Errorf("availability checker required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if now == nil {
		now = time.Now
	}
	return &Controller{
		rentals:  rentals,
		vehicles: fleet,
		checker:  checker,
		outbox:   publisher,
		metrics:  metrics,
		logg:     logg,
		now:      now,
	}, nil
}

// Now returns the controller clock as a second-truncated UTC instant.
func (c *Controller) Now() time.Time {
	return c.now().UTC().Truncate(time.Second)
}

// Create reserves the vehicle for the window inside tx. The vehicle row is
// locked first so concurrent bookings for the same vehicle serialize.
func (c *Controller) Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Rental, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if strings.TrimSpace(input.PickupLocation) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup location is required")
	}
	window := availability.Window{
		PickupAt:  input.PickupAt.UTC().Truncate(time.Second),
		DropoffAt: input.DropoffAt.UTC().Truncate(time.Second),
	}
	if !window.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dropoff must be after pickup")
	}

	if _, err := c.vehicles.WithTx(tx).FindForUpdate(ctx, input.VehicleID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock vehicle")
	}

	result, err := c.checker.CheckTx(ctx, tx, input.VehicleID, window)
	if err != nil {
		return nil, err
	}
	if !result.Available {
		c.recordConflict(ctx, input.VehicleID, result.ConflictingRentalID)
		return nil, conflictError()
	}

	now := c.Now()
	rental := &models.Rental{
		ID:              uuid.New(),
		CustomerID:      input.CustomerID,
		VehicleID:       input.VehicleID,
		PickupAt:        window.PickupAt,
		DropoffAt:       window.DropoffAt,
		PickupLocation:  strings.TrimSpace(input.PickupLocation),
		DropoffLocation: input.DropoffLocation,
		Status:          enums.RentalStatusPending,
		IdempotencyKey:  input.IdempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	repo := c.rentals.WithTx(tx)
	if err := repo.Create(ctx, rental); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, "reservation already exists for idempotency key")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
	}

	if err := c.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRentalCreated,
		AggregateType: enums.AggregateRental,
		AggregateID:   rental.ID,
		Version:       1,
		Actor:         outbox.ActorOf(input.Actor),
		OccurredAt:    now,
		Data: payloads.RentalCreatedEvent{
			RentalID:   rental.ID,
			CustomerID: rental.CustomerID,
			VehicleID:  rental.VehicleID,
			PickupAt:   rental.PickupAt,
			DropoffAt:  rental.DropoffAt,
			Status:     rental.Status,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit rental created")
	}

	if err := c.Transition(ctx, tx, rental, enums.RentalEventAvailabilityOK, input.Actor, TransitionOptions{}); err != nil {
		return nil, err
	}
	return rental, nil
}

// Transition applies event to rental inside tx. The write is conditional on
// the status the caller loaded, so a concurrent change surfaces as a conflict.
// rental is updated in place on success.
func (c *Controller) Transition(ctx context.Context, tx *gorm.DB, rental *models.Rental, event enums.RentalEvent, actor auth.Actor, opts TransitionOptions) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if rental == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation required")
	}

	from := rental.Status
	next, ok := NextStatus(from, event)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot apply %s to a %s reservation", event, from)).
			WithDetails(map[string]any{"from": from, "event": event})
	}

	now := c.Now()
	reason := strings.TrimSpace(opts.Reason)
	source := confirmationSourceFor(event)
	fields := map[string]any{"updated_at": now}
	switch next {
	case enums.RentalStatusConfirmed:
		fields["confirmed_at"] = now
		fields["confirmation_source"] = *source
	case enums.RentalStatusActive:
		fields["activated_at"] = now
	case enums.RentalStatusReturned:
		fields["returned_at"] = now
	case enums.RentalStatusCancelled:
		fields["cancelled_at"] = now
		if reason != "" {
			fields["cancel_reason"] = reason
		}
	}

	if err := c.rentals.WithTx(tx).UpdateStatus(ctx, rental.ID, from, next, fields); err != nil {
		switch {
		case errors.Is(err, ErrStaleStatus):
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "reservation changed concurrently")
		case db.IsExclusionViolation(err, overlapConstraint):
			c.recordConflict(ctx, rental.VehicleID, nil)
			return conflictError()
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reservation status")
		}
	}

	rental.Status = next
	rental.UpdatedAt = now
	switch next {
	case enums.RentalStatusConfirmed:
		rental.ConfirmedAt = &now
		rental.ConfirmationSource = source
	case enums.RentalStatusActive:
		rental.ActivatedAt = &now
	case enums.RentalStatusReturned:
		rental.ReturnedAt = &now
	case enums.RentalStatusCancelled:
		rental.CancelledAt = &now
		if reason != "" {
			rental.CancelReason = &reason
		}
	}

	if err := c.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRentalStatusChanged,
		AggregateType: enums.AggregateRental,
		AggregateID:   rental.ID,
		Version:       1,
		Actor:         outbox.ActorOf(actor),
		OccurredAt:    now,
		Data: payloads.RentalStatusChangedEvent{
			RentalID:           rental.ID,
			VehicleID:          rental.VehicleID,
			Event:              event,
			From:               from,
			To:                 next,
			ConfirmationSource: source,
			Reason:             reason,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status change")
	}

	if c.metrics != nil {
		c.metrics.IncTransition(string(from), string(next))
	}
	if c.logg != nil {
		logCtx := c.logg.WithRentalID(ctx, rental.ID.String())
		logCtx = c.logg.WithFields(logCtx, map[string]any{"from": from, "to": next, "event": event})
		c.logg.Info(logCtx, "rental status changed")
	}

	return c.RefreshVehicle(ctx, tx, rental.VehicleID)
}

// RefreshVehicle recomputes the cached is_available flag from the current
// occupancy of the vehicle. The flag is a projection only.
func (c *Controller) RefreshVehicle(ctx context.Context, tx *gorm.DB, vehicleID uuid.UUID) error {
	bookings, err := c.checker.Bookings(ctx, tx, vehicleID)
	if err != nil {
		return err
	}
	available := !availability.OccupiedAt(bookings, c.Now())
	if err := c.vehicles.WithTx(tx).SetAvailability(ctx, vehicleID, available); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh vehicle availability")
	}
	return nil
}

func (c *Controller) recordConflict(ctx context.Context, vehicleID uuid.UUID, conflicting *uuid.UUID) {
	if c.metrics != nil {
		c.metrics.IncConflict()
	}
	if c.logg == nil {
		return
	}
	fields := map[string]any{"vehicle_id": vehicleID.String()}
	if conflicting != nil {
		fields["conflicting_rental_id"] = conflicting.String()
	}
	c.logg.Warn(c.logg.WithFields(ctx, fields), "booking rejected: vehicle already reserved")
}

func conflictError() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "vehicle is not available for the requested window")
}
