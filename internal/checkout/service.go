// Package checkout sequences the customer booking flow: initiate, price,
// renter information, payment instructions and proof submission. Staff use
// it to take payment at the counter.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carrental-backend/internal/customers"
	"github.com/angelmondragon/carrental-backend/internal/payments"
	"github.com/angelmondragon/carrental-backend/internal/pricing"
	"github.com/angelmondragon/carrental-backend/internal/proofs"
	"github.com/angelmondragon/carrental-backend/internal/rentals"
	"github.com/angelmondragon/carrental-backend/internal/vehicles"
	"github.com/angelmondragon/carrental-backend/pkg/auth"
	"github.com/angelmondragon/carrental-backend/pkg/config"
	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carrental-backend/pkg/errors"
	"github.com/angelmondragon/carrental-backend/pkg/logger"
	"github.com/angelmondragon/carrental-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type proofStore interface {
	Save(ctx context.Context, rentalID uuid.UUID, file proofs.File) (string, error)
	Delete(ctx context.Context, key string) error
}

type uploadMetrics interface {
	ObserveProofUpload(result string, size int)
}

// Service runs the checkout steps. No step advances a reservation past a
// failed earlier step, and no step re-creates a reservation.
type Service interface {
	Initiate(ctx context.Context, actor auth.Actor, input InitiateInput) (*InitiateResult, error)
	Summary(ctx context.Context, actor auth.Actor, rentalID uuid.UUID) (*Summary, error)
	SubmitRenterInfo(ctx context.Context, actor auth.Actor, rentalID uuid.UUID, info RenterInfo) error
	PaymentInstructions(ctx context.Context, actor auth.Actor, rentalID uuid.UUID, method enums.PaymentMethod) (*PaymentInstructions, error)
	SubmitProof(ctx context.Context, actor auth.Actor, rentalID uuid.UUID, input SubmitProofInput) (*ProofResult, error)
	RecordPayment(ctx context.Context, actor auth.Actor, rentalID uuid.UUID, input CounterPaymentInput) (*CounterPaymentResult, error)
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Rentals    rentals.Repository
	Vehicles   vehicles.Repository
	Customers  customers.Repository
	Payments   payments.Repository
	Controller *rentals.Controller
	Pricing    *pricing.Calculator
	Inspector  *proofs.Inspector
	Proofs     proofStore
	Tx         txRunner
	Outbox     outboxPublisher
	Metrics    uploadMetrics
	Config     config.PaymentsConfig
	Logger     *logger.Logger
}

type service struct {
	rentals    rentals.Repository
	vehicles   vehicles.Repository
	customers  customers.Repository
	payments   payments.Repository
	controller *rentals.Controller
	pricing    *pricing.Calculator
	inspector  *proofs.Inspector
	proofs     proofStore
	tx         txRunner
	outbox     outboxPublisher
	metrics    uploadMetrics
	cfg        config.PaymentsConfig
	logg       *logger.Logger
}

// NewService builds the checkout orchestrator. Metrics and Logger are optional.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Rentals == nil:
		return nil, fmt.Errorf("rentals repository required")
	case params.Vehicles == nil:
		return nil, fmt.Errorf("vehicles repository required")
	case params.Customers == nil:
		return nil, fmt.Errorf("customers repository required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payments repository required")
	case params.Controller == nil:
		return nil, fmt.Errorf("lifecycle controller required")
	case params.Pricing == nil:
		return nil, fmt.Errorf("pricing calculator required")
	case params.Proofs == nil:
		return nil, fmt.Errorf("proof store required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	inspector := params.Inspector
	if inspector == nil {
		inspector = proofs.NewInspector(params.Config.MaxProofBytes())
	}
	return &service{
		rentals:    params.Rentals,
		vehicles:   params.Vehicles,
		customers:  params.Customers,
		payments:   params.Payments,
		controller: params.Controller,
		pricing:    params.Pricing,
		inspector:  inspector,
		proofs:     params.Proofs,
		tx:         params.Tx,
		outbox:     params.Outbox,
		metrics:    params.Metrics,
		cfg:        params.Config,
		logg:       params.Logger,
	}, nil
}

// InitiateInput is a customer's booking request.
type InitiateInput struct {
	VehicleID       uuid.UUID
	PickupAt        time.Time
	DropoffAt       time.Time
	PickupLocation  string
	DropoffLocation string
	IdempotencyKey  string
}

// InitiateResult is the booked reservation with its price. Replayed is set
// when an earlier request with the same idempotency key already created it.
type InitiateResult struct {
	Rental   *models.Rental
	Quote    pricing.Quote
	Replayed bool
}

// Summary is the read-only price step.
type Summary struct {
	Rental  *models.Rental
	Vehicle *models.Vehicle
	Quote   pricing.Quote
}

func (s *service) Initiate(ctx context.Context, actor auth.Actor, input InitiateInput) (*InitiateResult, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing")
	}
	if actor.Role != enums.ActorRoleCustomer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only customers can book")
	}

	fields := map[string]string{}
	if input.VehicleID == uuid.Nil {
		fields["vehicle_id"] = "is required"
	}
	if input.PickupAt.IsZero() {
		fields["pickup_at"] = "is required"
	}
	if input.DropoffAt.IsZero() {
		fields["dropoff_at"] = "is required"
	}
	if len(fields) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking request is incomplete").WithDetails(fields)
	}
	pickup := input.PickupAt.UTC().Truncate(time.Second)
	dropoff := input.DropoffAt.UTC().Truncate(time.Second)
	if !dropoff.After(pickup) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dropoff must be after pickup")
	}
	if pickup.Before(s.controller.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup must not be in the past")
	}

	key := strings.TrimSpace(input.IdempotencyKey)
	if key != "" {
		replay, err := s.replay(ctx, actor, key, input.VehicleID, pickup, dropoff)
		if err != nil || replay != nil {
			return replay, err
		}
	}

	vehicle, err := s.vehicles.FindByID(ctx, input.VehicleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vehicle")
	}

	pickupLocation := strings.TrimSpace(input.PickupLocation)
	if pickupLocation == "" {
		branch, err := s.vehicles.FindBranch(ctx, vehicle.BranchID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load branch")
		}
		if branch != nil {
			pickupLocation = strings.TrimSpace(branch.Address)
		}
	}
	if pickupLocation == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup location is required").
			WithDetails(map[string]string{"pickup_location": "is required"})
	}

	create := rentals.CreateInput{
		Actor:          actor,
		CustomerID:     actor.ID,
		VehicleID:      vehicle.ID,
		PickupAt:       pickup,
		DropoffAt:      dropoff,
		PickupLocation: pickupLocation,
	}
	if dropoffLocation := strings.TrimSpace(input.DropoffLocation); dropoffLocation != "" {
		create.DropoffLocation = &dropoffLocation
	}
	if key != "" {
		create.IdempotencyKey = &key
	}

	quote, err := s.pricing.Quote(quoteInput(vehicle, pickup, dropoff, pickupLocation, create.DropoffLocation))
	if err != nil {
		return nil, err
	}

	var rental *models.Rental
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		rental, err = s.controller.Create(ctx, tx, create)
		return err
	})
	if err != nil {
		if key != "" && pkgerrors.IsCode(err, pkgerrors.CodeIdempotency) {
			// Lost a race against a request carrying the same key.
			replay, replayErr := s.replay(ctx, actor, key, input.VehicleID, pickup, dropoff)
			if replayErr != nil || replay != nil {
				return replay, replayErr
			}
		}
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithRentalID(ctx, rental.ID.String())
		s.logg.Info(logCtx, "reservation booked")
	}
	return &InitiateResult{Rental: rental, Quote: quote}, nil
}

// replay returns the reservation an earlier request created under key, nil
// when there is none, or an idempotency error when the requests differ.
func (s *service) replay(ctx context.Context, actor auth.Actor, key string, vehicleID uuid.UUID, pickup, dropoff time.Time) (*InitiateResult, error) {
	existing, err := s.rentals.FindByCustomerIdempotencyKey(ctx, actor.ID, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation by idempotency key")
	}
	if existing.VehicleID != vehicleID || !existing.PickupAt.Equal(pickup) || !existing.DropoffAt.Equal(dropoff) {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used for a different booking")
	}
	vehicle, err := s.vehicles.FindByID(ctx, existing.VehicleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vehicle")
	}
	quote, err := s.quote(existing, vehicle)
	if err != nil {
		return nil, err
	}
	return &InitiateResult{Rental: existing, Quote: quote, Replayed: true}, nil
}

func (s *service) Summary(ctx context.Context, actor auth.Actor, rentalID uuid.UUID) (*Summary, error) {
	rental, err := s.loadVisible(ctx, actor, rentalID)
	if err != nil {
		return nil, err
	}
	vehicle, err := s.vehicles.FindByID(ctx, rental.VehicleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vehicle")
	}
	quote, err := s.quote(rental, vehicle)
	if err != nil {
		return nil, err
	}
	return &Summary{Rental: rental, Vehicle: vehicle, Quote: quote}, nil
}

func (s *service) quote(rental *models.Rental, vehicle *models.Vehicle) (pricing.Quote, error) {
	return s.pricing.Quote(quoteInput(vehicle, rental.PickupAt, rental.DropoffAt, rental.PickupLocation, rental.DropoffLocation))
}

func quoteInput(vehicle *models.Vehicle, pickup, dropoff time.Time, pickupLocation string, dropoffLocation *string) pricing.QuoteInput {
	in := pricing.QuoteInput{
		DailyRate:      vehicle.DailyRate,
		PickupAt:       pickup,
		DropoffAt:      dropoff,
		PickupLocation: pickupLocation,
	}
	if dropoffLocation != nil {
		in.DropoffLocation = *dropoffLocation
	}
	return in
}

// loadVisible returns the rental if actor owns it or is staff.
func (s *service) loadVisible(ctx context.Context, actor auth.Actor, rentalID uuid.UUID) (*models.Rental, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing")
	}
	rental, err := s.rentals.FindByID(ctx, rentalID)
	if err != nil {
		return nil, mapRentalError(err)
	}
	if !actor.CanView(rental.CustomerID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return rental, nil
}

// loadOwned returns the rental only for its owner.
func (s *service) loadOwned(ctx context.Context, actor auth.Actor, rentalID uuid.UUID) (*models.Rental, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing")
	}
	rental, err := s.rentals.FindByID(ctx, rentalID)
	if err != nil {
		return nil, mapRentalError(err)
	}
	if !actor.Owns(rental.CustomerID) {
		if actor.IsStaff() {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the renter can complete checkout")
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return rental, nil
}

func mapRentalError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
}
