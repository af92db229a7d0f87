// Package availability decides whether a vehicle is free for a time window.
package availability

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
)

// Window is a half-open interval [PickupAt, DropoffAt).
type Window struct {
	PickupAt  time.Time `json:"pickup_at"`
	DropoffAt time.Time `json:"dropoff_at"`
}

// Valid reports whether the window has positive length.
func (w Window) Valid() bool {
	return !w.PickupAt.IsZero() && w.DropoffAt.After(w.PickupAt)
}

// Overlaps uses half-open semantics: back-to-back windows do not overlap.
func (w Window) Overlaps(other Window) bool {
	return w.PickupAt.Before(other.DropoffAt) && other.PickupAt.Before(w.DropoffAt)
}

// Contains reports whether instant falls inside the window.
func (w Window) Contains(instant time.Time) bool {
	return !instant.Before(w.PickupAt) && instant.Before(w.DropoffAt)
}

// Booking is an occupying reservation as seen by the checker.
type Booking struct {
	RentalID uuid.UUID
	Status   enums.RentalStatus
	Window   Window
}

// BookingFromRental projects a stored rental.
func BookingFromRental(r models.Rental) Booking {
	return Booking{
		RentalID: r.ID,
		Status:   r.Status,
		Window:   Window{PickupAt: r.PickupAt, DropoffAt: r.DropoffAt},
	}
}

// FindConflict returns the first occupying booking overlapping requested.
// Bookings in non-occupying statuses are ignored.
func FindConflict(existing []Booking, requested Window) *Booking {
	for i := range existing {
		b := existing[i]
		if !b.Status.IsOccupying() {
			continue
		}
		if b.Window.Overlaps(requested) {
			return &b
		}
	}
	return nil
}

// OccupiedAt reports whether any occupying booking covers instant, or any
// booking is active regardless of its window.
func OccupiedAt(existing []Booking, instant time.Time) bool {
	for _, b := range existing {
		if b.Status == enums.RentalStatusActive {
			return true
		}
		if b.Status.IsOccupying() && b.Window.Contains(instant) {
			return true
		}
	}
	return false
}
