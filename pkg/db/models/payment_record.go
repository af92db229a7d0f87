package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/carrental-backend/pkg/enums"
)

// PaymentRecord captures one payment and its review outcome. Counter payments
// recorded by staff carry no proof and are approved on creation.
type PaymentRecord struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RentalID         uuid.UUID            `gorm:"column:rental_id;type:uuid;not null"`
	Amount           decimal.Decimal      `gorm:"column:amount;type:numeric(10,2);not null"`
	Currency         enums.Currency       `gorm:"column:currency;not null"`
	Method           enums.PaymentMethod  `gorm:"column:method;type:payment_method;not null"`
	ProofRef         string               `gorm:"column:proof_ref;not null"`
	ProofContentType string               `gorm:"column:proof_content_type;not null"`
	ProofSHA256      string               `gorm:"column:proof_sha256;not null"`
	Outcome          enums.PaymentOutcome `gorm:"column:outcome;type:payment_outcome;not null;default:'pending'"`
	VerifiedBy       *uuid.UUID           `gorm:"column:verified_by;type:uuid"`
	VerifiedAt       *time.Time           `gorm:"column:verified_at"`
	ReviewNote       *string              `gorm:"column:review_note"`
	Reference        *string              `gorm:"column:reference"`
	SubmittedAt      time.Time            `gorm:"column:submitted_at;not null"`
}

// HasProof reports whether a proof image was uploaded for this payment.
func (p PaymentRecord) HasProof() bool {
	return p.ProofRef != ""
}

// TableName keeps the plural form used by the migrations.
func (PaymentRecord) TableName() string {
	return "payment_records"
}
