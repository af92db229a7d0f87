package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/carrental-backend/internal/proofs"
	"github.com/angelmondragon/carrental-backend/internal/rentals"
	"github.com/angelmondragon/carrental-backend/pkg/auth"
	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carrental-backend/pkg/errors"
	"github.com/angelmondragon/carrental-backend/pkg/metrics"
	"github.com/angelmondragon/carrental-backend/pkg/outbox"
	"github.com/angelmondragon/carrental-backend/pkg/outbox/payloads"
)

// PaymentInstructions tells the renter where to send the exact amount due.
type PaymentInstructions struct {
	RentalID          uuid.UUID           `json:"rental_id"`
	Method            enums.PaymentMethod `json:"method"`
	Amount            decimal.Decimal     `json:"amount"`
	Currency          enums.Currency      `json:"currency"`
	Reference         string              `json:"reference"`
	BankName          string              `json:"bank_name,omitempty"`
	BankAccountName   string              `json:"bank_account_name,omitempty"`
	BankAccountNumber string              `json:"bank_account_number,omitempty"`
	PromptPayID       string              `json:"promptpay_id,omitempty"`
}

// SubmitProofInput is one proof upload. ExpectedTotal, when set, is the
// amount the renter saw; a different current price rejects the upload.
type SubmitProofInput struct {
	Method        enums.PaymentMethod
	ExpectedTotal *decimal.Decimal
	Content       []byte
}

// ProofResult is the payment record created (or replayed) by an upload.
type ProofResult struct {
	Rental   *models.Rental
	Payment  *models.PaymentRecord
	Replayed bool
}

func (s *service) PaymentInstructions(ctx context.Context, actor auth.Actor, rentalID uuid.UUID, method enums.PaymentMethod) (*PaymentInstructions, error) {
	if !method.Remote() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method").
			WithDetails(map[string]string{"method": "must be bank_transfer or qr_interbank"})
	}
	rental, err := s.loadOwned(ctx, actor, rentalID)
	if err != nil {
		return nil, err
	}
	if rental.Status != enums.RentalStatusBooked {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "payment is only due while the reservation is booked").
			WithDetails(map[string]any{"status": rental.Status})
	}
	vehicle, err := s.vehicles.FindByID(ctx, rental.VehicleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vehicle")
	}
	quote, err := s.quote(rental, vehicle)
	if err != nil {
		return nil, err
	}

	out := &PaymentInstructions{
		RentalID:  rental.ID,
		Method:    method,
		Amount:    quote.Total,
		Currency:  quote.Currency,
		Reference: paymentReference(rental.ID),
	}
	switch method {
	case enums.PaymentMethodBankTransfer:
		if strings.TrimSpace(s.cfg.BankAccountNumber) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank transfer is not offered")
		}
		out.BankName = s.cfg.BankName
		out.BankAccountName = s.cfg.BankAccountName
		out.BankAccountNumber = s.cfg.BankAccountNumber
	case enums.PaymentMethodQRInterbank:
		if strings.TrimSpace(s.cfg.PromptPayID) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "QR payment is not offered")
		}
		out.PromptPayID = s.cfg.PromptPayID
	}
	return out, nil
}

// paymentReference is the short code renters put in the transfer memo.
func paymentReference(rentalID uuid.UUID) string {
	return strings.ToUpper(strings.ReplaceAll(rentalID.String(), "-", "")[:10])
}

func (s *service) SubmitProof(ctx context.Context, actor auth.Actor, rentalID uuid.UUID, input SubmitProofInput) (*ProofResult, error) {
	if !input.Method.Remote() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method").
			WithDetails(map[string]string{"method": "must be bank_transfer or qr_interbank"})
	}
	rental, err := s.loadOwned(ctx, actor, rentalID)
	if err != nil {
		return nil, err
	}

	file, err := s.inspector.Inspect(input.Content)
	if err != nil {
		s.observeUpload(metrics.ProofUploadRejected, len(input.Content))
		return nil, err
	}

	if rental.Status == enums.RentalStatusPendingVerification {
		if replay, err := s.replayProof(ctx, rental, file.SHA256); err != nil || replay != nil {
			return replay, err
		}
	}
	if rental.Status != enums.RentalStatusBooked {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "proof can only be submitted while the reservation is booked").
			WithDetails(map[string]any{"status": rental.Status})
	}

	vehicle, err := s.vehicles.FindByID(ctx, rental.VehicleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vehicle")
	}
	quote, err := s.quote(rental, vehicle)
	if err != nil {
		return nil, err
	}
	if input.ExpectedTotal != nil && !input.ExpectedTotal.Equal(quote.Total) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "price changed").
			WithDetails(map[string]string{
				"expected_total": input.ExpectedTotal.StringFixed(2),
				"current_total":  quote.Total.StringFixed(2),
			})
	}

	previous, err := s.payments.ListByRental(ctx, rental.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment records")
	}
	shared := false
	for _, record := range previous {
		if record.ProofSHA256 == file.SHA256 {
			shared = true
		}
	}

	key, err := s.proofs.Save(ctx, rental.ID, file)
	if err != nil {
		s.observeUpload(metrics.ProofUploadFailed, file.Size())
		return nil, err
	}

	var result *ProofResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.rentals.WithTx(tx).FindByIDForUpdate(ctx, rental.ID)
		if err != nil {
			return mapRentalError(err)
		}
		if locked.Status != enums.RentalStatusBooked {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "proof can only be submitted while the reservation is booked").
				WithDetails(map[string]any{"status": locked.Status})
		}

		id, err := uuid.NewV7()
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate payment id")
		}
		now := s.controller.Now()
		record := &models.PaymentRecord{
			ID:               id,
			RentalID:         locked.ID,
			Amount:           quote.Total,
			Currency:         quote.Currency,
			Method:           input.Method,
			ProofRef:         key,
			ProofContentType: file.ContentType,
			ProofSHA256:      file.SHA256,
			Outcome:          enums.PaymentOutcomePending,
			SubmittedAt:      now,
		}
		if err := s.payments.WithTx(tx).Create(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment record")
		}
		if err := s.rentals.WithTx(tx).SetPayment(ctx, locked.ID, record.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link payment record")
		}
		locked.PaymentID = &record.ID

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentProofSubmitted,
			AggregateType: enums.AggregatePayment,
			AggregateID:   record.ID,
			Version:       1,
			Actor:         outbox.ActorOf(actor),
			OccurredAt:    now,
			Data: payloads.PaymentProofSubmittedEvent{
				PaymentID: record.ID,
				RentalID:  locked.ID,
				Amount:    record.Amount,
				Currency:  record.Currency,
				Method:    record.Method,
				ProofRef:  record.ProofRef,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit proof submitted")
		}

		if err := s.controller.Transition(ctx, tx, locked, enums.RentalEventProofSubmitted, actor, rentals.TransitionOptions{}); err != nil {
			return err
		}
		result = &ProofResult{Rental: locked, Payment: record}
		return nil
	})
	if err != nil {
		s.observeUpload(metrics.ProofUploadFailed, file.Size())
		if !shared {
			s.discardProof(ctx, rental.ID, key)
		}
		return nil, err
	}

	s.observeUpload(metrics.ProofUploadAccepted, file.Size())
	if s.logg != nil {
		logCtx := s.logg.WithRentalID(ctx, rental.ID.String())
		logCtx = s.logg.WithField(logCtx, "payment_id", result.Payment.ID.String())
		s.logg.Info(logCtx, "payment proof submitted")
	}
	return result, nil
}

// replayProof returns the pending record when the same file is uploaded again.
func (s *service) replayProof(ctx context.Context, rental *models.Rental, sha string) (*ProofResult, error) {
	pending, err := s.payments.FindPendingForRental(ctx, rental.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending payment")
	}
	if pending.ProofSHA256 != sha {
		return nil, nil
	}
	return &ProofResult{Rental: rental, Payment: pending, Replayed: true}, nil
}

func (s *service) discardProof(ctx context.Context, rentalID uuid.UUID, key string) {
	if err := s.proofs.Delete(ctx, key); err != nil && s.logg != nil {
		logCtx := s.logg.WithRentalID(ctx, rentalID.String())
		s.logg.Error(s.logg.WithField(logCtx, "proof_ref", key), "discard payment proof", err)
	}
}

func (s *service) observeUpload(result string, size int) {
	if s.metrics != nil {
		s.metrics.ObserveProofUpload(result, size)
	}
}

var _ proofStore = (*proofs.Store)(nil)
