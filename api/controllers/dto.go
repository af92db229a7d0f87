package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
)

type rentalResponse struct {
	ID                 uuid.UUID                 `json:"id"`
	CustomerID         uuid.UUID                 `json:"customer_id"`
	VehicleID          uuid.UUID                 `json:"vehicle_id"`
	PickupAt           time.Time                 `json:"pickup_at"`
	DropoffAt          time.Time                 `json:"dropoff_at"`
	PickupLocation     string                    `json:"pickup_location"`
	DropoffLocation    *string                   `json:"dropoff_location,omitempty"`
	Status             enums.RentalStatus        `json:"status"`
	ConfirmationSource *enums.ConfirmationSource `json:"confirmation_source,omitempty"`
	PaymentID          *uuid.UUID                `json:"payment_id,omitempty"`
	CancelReason       *string                   `json:"cancel_reason,omitempty"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
	ConfirmedAt        *time.Time                `json:"confirmed_at,omitempty"`
	ActivatedAt        *time.Time                `json:"activated_at,omitempty"`
	ReturnedAt         *time.Time                `json:"returned_at,omitempty"`
	CancelledAt        *time.Time                `json:"cancelled_at,omitempty"`
}

func newRentalResponse(r *models.Rental) rentalResponse {
	if r == nil {
		return rentalResponse{}
	}
	return rentalResponse{
		ID:                 r.ID,
		CustomerID:         r.CustomerID,
		VehicleID:          r.VehicleID,
		PickupAt:           r.PickupAt,
		DropoffAt:          r.DropoffAt,
		PickupLocation:     r.PickupLocation,
		DropoffLocation:    r.DropoffLocation,
		Status:             r.Status,
		ConfirmationSource: r.ConfirmationSource,
		PaymentID:          r.PaymentID,
		CancelReason:       r.CancelReason,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		ConfirmedAt:        r.ConfirmedAt,
		ActivatedAt:        r.ActivatedAt,
		ReturnedAt:         r.ReturnedAt,
		CancelledAt:        r.CancelledAt,
	}
}

type paymentResponse struct {
	ID               uuid.UUID            `json:"id"`
	RentalID         uuid.UUID            `json:"rental_id"`
	Amount           decimal.Decimal      `json:"amount"`
	Currency         enums.Currency       `json:"currency"`
	Method           enums.PaymentMethod  `json:"method"`
	Outcome          enums.PaymentOutcome `json:"outcome"`
	ProofContentType string               `json:"proof_content_type"`
	ProofURL         string               `json:"proof_url,omitempty"`
	SubmittedAt      time.Time            `json:"submitted_at"`
	VerifiedBy       *uuid.UUID           `json:"verified_by,omitempty"`
	VerifiedAt       *time.Time           `json:"verified_at,omitempty"`
	ReviewNote       *string              `json:"review_note,omitempty"`
	Reference        *string              `json:"reference,omitempty"`
}

func newPaymentResponse(p *models.PaymentRecord) *paymentResponse {
	if p == nil {
		return nil
	}
	out := &paymentResponse{
		ID:               p.ID,
		RentalID:         p.RentalID,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Method:           p.Method,
		Outcome:          p.Outcome,
		ProofContentType: p.ProofContentType,
		SubmittedAt:      p.SubmittedAt,
		VerifiedBy:       p.VerifiedBy,
		VerifiedAt:       p.VerifiedAt,
		ReviewNote:       p.ReviewNote,
		Reference:        p.Reference,
	}
	if p.HasProof() {
		out.ProofURL = "/api/v1/payments/" + p.ID.String() + "/proof"
	}
	return out
}

func newPaymentList(rows []models.PaymentRecord) []paymentResponse {
	out := make([]paymentResponse, 0, len(rows))
	for i := range rows {
		out = append(out, *newPaymentResponse(&rows[i]))
	}
	return out
}
