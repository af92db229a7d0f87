package checkout

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/carrental-backend/internal/rentals"
	"github.com/angelmondragon/carrental-backend/pkg/auth"
	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carrental-backend/pkg/errors"
	"github.com/angelmondragon/carrental-backend/pkg/outbox"
	"github.com/angelmondragon/carrental-backend/pkg/outbox/payloads"
)

// CounterPaymentInput is a payment staff took in person. Amount must equal
// the current amount due.
type CounterPaymentInput struct {
	Method    enums.PaymentMethod
	Amount    decimal.Decimal
	Reference string
	Note      string
}

// CounterPaymentResult is the confirmed reservation and its approved record.
type CounterPaymentResult struct {
	Rental  *models.Rental
	Payment *models.PaymentRecord
}

// RecordPayment stores an already approved payment and confirms the
// reservation in the same transaction. Only a booked reservation qualifies:
// one with a proof under review must be resolved first.
func (s *service) RecordPayment(ctx context.Context, actor auth.Actor, rentalID uuid.UUID, input CounterPaymentInput) (*CounterPaymentResult, error) {
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "operator role required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method").
			WithDetails(map[string]string{"method": "must be bank_transfer, qr_interbank or cash"})
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	reference := strings.TrimSpace(input.Reference)
	note := strings.TrimSpace(input.Note)

	rental, err := s.rentals.FindByID(ctx, rentalID)
	if err != nil {
		return nil, mapRentalError(err)
	}
	vehicle, err := s.vehicles.FindByID(ctx, rental.VehicleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vehicle")
	}
	quote, err := s.quote(rental, vehicle)
	if err != nil {
		return nil, err
	}
	if !input.Amount.Equal(quote.Total) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount does not match the amount due").
			WithDetails(map[string]string{
				"amount":     input.Amount.StringFixed(2),
				"amount_due": quote.Total.StringFixed(2),
			})
	}

	var result *CounterPaymentResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.rentals.WithTx(tx).FindByIDForUpdate(ctx, rental.ID)
		if err != nil {
			return mapRentalError(err)
		}
		if locked.Status != enums.RentalStatusBooked {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "payment can only be recorded while the reservation is booked").
				WithDetails(map[string]any{"status": locked.Status})
		}

		id, err := uuid.NewV7()
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate payment id")
		}
		now := s.controller.Now()
		record := &models.PaymentRecord{
			ID:          id,
			RentalID:    locked.ID,
			Amount:      quote.Total,
			Currency:    quote.Currency,
			Method:      input.Method,
			Outcome:     enums.PaymentOutcomeApproved,
			VerifiedBy:  &actor.ID,
			VerifiedAt:  &now,
			SubmittedAt: now,
		}
		if reference != "" {
			record.Reference = &reference
		}
		if note != "" {
			record.ReviewNote = &note
		}
		if err := s.payments.WithTx(tx).Create(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment record")
		}
		if err := s.rentals.WithTx(tx).SetPayment(ctx, locked.ID, record.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link payment record")
		}
		locked.PaymentID = &record.ID

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventPaymentRecorded,
			AggregateID: record.ID,
			Version:     1,
			Actor:       outbox.ActorOf(actor),
			OccurredAt:  now,
			Data: payloads.PaymentRecordedEvent{
				PaymentID: record.ID,
				RentalID:  locked.ID,
				Amount:    record.Amount,
				Currency:  record.Currency,
				Method:    record.Method,
				Reference: reference,
				Note:      note,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment recorded")
		}

		if err := s.controller.Transition(ctx, tx, locked, enums.RentalEventOperatorConfirmed, actor, rentals.TransitionOptions{Reason: note}); err != nil {
			return err
		}
		result = &CounterPaymentResult{Rental: locked, Payment: record}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithRentalID(ctx, rental.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"payment_id": result.Payment.ID.String(),
			"method":     result.Payment.Method,
			"operator":   actor.ID.String(),
		})
		s.logg.Info(logCtx, "counter payment recorded")
	}
	return result, nil
}
