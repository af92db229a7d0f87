package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/carrental-backend/pkg/enums"
)

// RentalCreatedEvent is written when a reservation first occupies its vehicle.
type RentalCreatedEvent struct {
	RentalID   uuid.UUID          `json:"rental_id"`
	CustomerID uuid.UUID          `json:"customer_id"`
	VehicleID  uuid.UUID          `json:"vehicle_id"`
	PickupAt   time.Time          `json:"pickup_at"`
	DropoffAt  time.Time          `json:"dropoff_at"`
	Status     enums.RentalStatus `json:"status"`
}

// RentalStatusChangedEvent records one lifecycle transition.
type RentalStatusChangedEvent struct {
	RentalID           uuid.UUID                 `json:"rental_id"`
	VehicleID          uuid.UUID                 `json:"vehicle_id"`
	Event              enums.RentalEvent         `json:"event"`
	From               enums.RentalStatus        `json:"from"`
	To                 enums.RentalStatus        `json:"to"`
	ConfirmationSource *enums.ConfirmationSource `json:"confirmation_source,omitempty"`
	Reason             string                    `json:"reason,omitempty"`
}

// RentalDeletedEvent keeps a snapshot of an administratively removed reservation.
type RentalDeletedEvent struct {
	RentalID   uuid.UUID          `json:"rental_id"`
	CustomerID uuid.UUID          `json:"customer_id"`
	VehicleID  uuid.UUID          `json:"vehicle_id"`
	PickupAt   time.Time          `json:"pickup_at"`
	DropoffAt  time.Time          `json:"dropoff_at"`
	Status     enums.RentalStatus `json:"status"`
	PaymentIDs []uuid.UUID        `json:"payment_ids"`
	ProofRefs  []string           `json:"proof_refs"`
	Reason     string             `json:"reason"`
}

// PaymentProofSubmittedEvent is written when a customer uploads a transfer slip.
type PaymentProofSubmittedEvent struct {
	PaymentID uuid.UUID           `json:"payment_id"`
	RentalID  uuid.UUID           `json:"rental_id"`
	Amount    decimal.Decimal     `json:"amount"`
	Currency  enums.Currency      `json:"currency"`
	Method    enums.PaymentMethod `json:"method"`
	ProofRef  string              `json:"proof_ref"`
}

// PaymentVerifiedEvent records an operator decision on a payment record.
type PaymentVerifiedEvent struct {
	PaymentID uuid.UUID            `json:"payment_id"`
	RentalID  uuid.UUID            `json:"rental_id"`
	Outcome   enums.PaymentOutcome `json:"outcome"`
	Note      string               `json:"note,omitempty"`
}

// PaymentRecordedEvent is written when staff take a payment at the counter.
type PaymentRecordedEvent struct {
	PaymentID uuid.UUID           `json:"payment_id"`
	RentalID  uuid.UUID           `json:"rental_id"`
	Amount    decimal.Decimal     `json:"amount"`
	Currency  enums.Currency      `json:"currency"`
	Method    enums.PaymentMethod `json:"method"`
	Reference string              `json:"reference,omitempty"`
	Note      string              `json:"note,omitempty"`
}

// RenterProfileSubmittedEvent marks the renter information step as completed.
type RenterProfileSubmittedEvent struct {
	RentalID   uuid.UUID `json:"rental_id"`
	CustomerID uuid.UUID `json:"customer_id"`
}
