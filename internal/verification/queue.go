// Package verification is the operator workflow that reviews payment proofs
// and resolves them into lifecycle transitions.
package verification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/carrental-backend/pkg/enums"
)

// QueueItem is one reservation awaiting review with display data joined in.
type QueueItem struct {
	RentalID       uuid.UUID           `json:"rental_id"`
	PickupAt       time.Time           `json:"pickup_at"`
	DropoffAt      time.Time           `json:"dropoff_at"`
	PickupLocation string              `json:"pickup_location"`
	PaymentID      uuid.UUID           `json:"payment_id"`
	Amount         decimal.Decimal     `json:"amount"`
	Currency       enums.Currency      `json:"currency"`
	Method         enums.PaymentMethod `json:"method"`
	ProofRef       string              `json:"proof_ref"`
	SubmittedAt    time.Time           `json:"submitted_at"`
	CustomerID     uuid.UUID           `json:"customer_id"`
	CustomerName   string              `json:"customer_name"`
	CustomerEmail  string              `json:"customer_email"`
	VehicleID      uuid.UUID           `json:"vehicle_id"`
	VehicleBrand   string              `json:"vehicle_brand"`
	VehicleModel   string              `json:"vehicle_model"`
	LicensePlate   string              `json:"license_plate"`
}

// QueueReader lists reservations awaiting payment review.
type QueueReader interface {
	ListPending(ctx context.Context) ([]QueueItem, error)
}

type queueReader struct {
	db *gorm.DB
}

// NewQueueReader builds the review queue query over db.
func NewQueueReader(db *gorm.DB) QueueReader {
	return &queueReader{db: db}
}

// ListPending returns the oldest submission first.
func (q *queueReader) ListPending(ctx context.Context) ([]QueueItem, error) {
	var items []QueueItem
	err := q.db.WithContext(ctx).
		Table("rentals AS r").
		Select(`r.id AS rental_id, r.pickup_at, r.dropoff_at, r.pickup_location,
			p.id AS payment_id, p.amount, p.currency, p.method, p.proof_ref, p.submitted_at,
			c.id AS customer_id, c.full_name AS customer_name, c.email AS customer_email,
			v.id AS vehicle_id, v.brand AS vehicle_brand, v.model AS vehicle_model, v.license_plate`).
		Joins("JOIN payment_records AS p ON p.rental_id = r.id AND p.outcome = ?", enums.PaymentOutcomePending).
		Joins("JOIN customers AS c ON c.id = r.customer_id").
		Joins("JOIN vehicles AS v ON v.id = r.vehicle_id").
		Where("r.status = ?", enums.RentalStatusPendingVerification).
		Order("p.submitted_at ASC").
		Order("p.id ASC").
		Scan(&items).Error
	return items, err
}
