package availability

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/carrental-backend/pkg/errors"
)

// Store reads occupying reservations from the reservation store.
type Store interface {
	ListOccupyingForVehicle(ctx context.Context, vehicleID uuid.UUID) ([]models.Rental, error)
}

// Result carries the decision plus conflict diagnostics for operators and logs.
type Result struct {
	Available           bool
	Conflict            *Window
	ConflictingRentalID *uuid.UUID
}

// Checker answers availability questions from reservation rows only; the
// vehicle is_available flag is never consulted.
type Checker struct {
	store Store
	bind  func(tx *gorm.DB) Store
}

// NewChecker wires the store and a binder that scopes it to a transaction.
func NewChecker(store Store, bind func(tx *gorm.DB) Store) (*Checker, error) {
	if store == nil {
		return nil, errors.New("availability store required")
	}
	if bind == nil {
		return nil, errors.New("availability tx binder required")
	}
	return &Checker{store: store, bind: bind}, nil
}

// Check evaluates the window outside any transaction.
func (c *Checker) Check(ctx context.Context, vehicleID uuid.UUID, window Window) (Result, error) {
	return check(ctx, c.store, vehicleID, window)
}

// CheckTx evaluates the window inside the caller's transaction, typically
// while the vehicle row is locked.
func (c *Checker) CheckTx(ctx context.Context, tx *gorm.DB, vehicleID uuid.UUID, window Window) (Result, error) {
	if tx == nil {
		return Result{}, errors.New("transaction required")
	}
	return check(ctx, c.bind(tx), vehicleID, window)
}

// Bookings lists the occupying bookings for a vehicle inside tx.
func (c *Checker) Bookings(ctx context.Context, tx *gorm.DB, vehicleID uuid.UUID) ([]Booking, error) {
	store := c.store
	if tx != nil {
		store = c.bind(tx)
	}
	return load(ctx, store, vehicleID)
}

func check(ctx context.Context, store Store, vehicleID uuid.UUID, window Window) (Result, error) {
	if vehicleID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "vehicle id is required")
	}
	if !window.Valid() {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "dropoff must be after pickup")
	}

	bookings, err := load(ctx, store, vehicleID)
	if err != nil {
		return Result{}, err
	}

	conflict := FindConflict(bookings, window)
	if conflict == nil {
		return Result{Available: true}, nil
	}
	w := conflict.Window
	id := conflict.RentalID
	return Result{Available: false, Conflict: &w, ConflictingRentalID: &id}, nil
}

func load(ctx context.Context, store Store, vehicleID uuid.UUID) ([]Booking, error) {
	rows, err := store.ListOccupyingForVehicle(ctx, vehicleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vehicle reservations")
	}
	bookings := make([]Booking, 0, len(rows))
	for _, row := range rows {
		bookings = append(bookings, BookingFromRental(row))
	}
	return bookings, nil
}
