package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carrental-backend/pkg/enums"
)

// Rental is a reservation of one vehicle by one customer over a time window.
type Rental struct {
	ID                 uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID         uuid.UUID                 `gorm:"column:customer_id;type:uuid;not null"`
	VehicleID          uuid.UUID                 `gorm:"column:vehicle_id;type:uuid;not null"`
	PickupAt           time.Time                 `gorm:"column:pickup_at;not null"`
	DropoffAt          time.Time                 `gorm:"column:dropoff_at;not null"`
	PickupLocation     string                    `gorm:"column:pickup_location;not null"`
	DropoffLocation    *string                   `gorm:"column:dropoff_location"`
	Status             enums.RentalStatus        `gorm:"column:status;type:rental_status;not null;default:'pending'"`
	ConfirmationSource *enums.ConfirmationSource `gorm:"column:confirmation_source;type:confirmation_source"`
	PaymentID          *uuid.UUID                `gorm:"column:payment_id;type:uuid"`
	IdempotencyKey     *string                   `gorm:"column:idempotency_key"`
	CancelReason       *string                   `gorm:"column:cancel_reason"`
	CreatedAt          time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
	ConfirmedAt        *time.Time                `gorm:"column:confirmed_at"`
	ActivatedAt        *time.Time                `gorm:"column:activated_at"`
	ReturnedAt         *time.Time                `gorm:"column:returned_at"`
	CancelledAt        *time.Time                `gorm:"column:cancelled_at"`
}
