package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/carrental-backend/internal/customers"
	"github.com/angelmondragon/carrental-backend/pkg/auth"
	"github.com/angelmondragon/carrental-backend/pkg/db"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carrental-backend/pkg/errors"
	"github.com/angelmondragon/carrental-backend/pkg/outbox"
	"github.com/angelmondragon/carrental-backend/pkg/outbox/payloads"
)

var renterValidate = validator.New()

// RenterInfo is the contact and license data collected before payment.
type RenterInfo struct {
	FullName         string
	Email            string
	Phone            string
	LicenseNumber    string
	LicenseExpiresOn time.Time
}

type fieldError struct {
	field   string
	message string
}

func (e fieldError) Error() string {
	return e.field + " " + e.message
}

// validate reports every problem at once rather than the first.
func (info RenterInfo) validate(dropoff time.Time) error {
	var err error
	if strings.TrimSpace(info.FullName) == "" {
		err = multierr.Append(err, fieldError{"full_name", "is required"})
	}
	email := strings.TrimSpace(info.Email)
	switch {
	case email == "":
		err = multierr.Append(err, fieldError{"email", "is required"})
	case renterValidate.Var(email, "email") != nil:
		err = multierr.Append(err, fieldError{"email", "must be a valid email address"})
	}
	if strings.TrimSpace(info.Phone) == "" {
		err = multierr.Append(err, fieldError{"phone", "is required"})
	}
	if strings.TrimSpace(info.LicenseNumber) == "" {
		err = multierr.Append(err, fieldError{"license_number", "is required"})
	}
	switch {
	case info.LicenseExpiresOn.IsZero():
		err = multierr.Append(err, fieldError{"license_expires_on", "is required"})
	case licenseEnd(info.LicenseExpiresOn).Before(dropoff):
		err = multierr.Append(err, fieldError{"license_expires_on", "must be valid through the drop-off date"})
	}
	return err
}

// licenseEnd treats the expiry date as valid through the end of that day.
func licenseEnd(expiresOn time.Time) time.Time {
	y, m, d := expiresOn.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

func fieldDetails(err error) map[string]string {
	details := map[string]string{}
	for _, e := range multierr.Errors(err) {
		var fe fieldError
		if errors.As(e, &fe) {
			details[fe.field] = fe.message
		}
	}
	return details
}

func (s *service) SubmitRenterInfo(ctx context.Context, actor auth.Actor, rentalID uuid.UUID, info RenterInfo) error {
	rental, err := s.loadOwned(ctx, actor, rentalID)
	if err != nil {
		return err
	}
	if rental.Status != enums.RentalStatusBooked && rental.Status != enums.RentalStatusPendingVerification {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "renter information can only be changed before confirmation").
			WithDetails(map[string]any{"status": rental.Status})
	}
	if verr := info.validate(rental.DropoffAt); verr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, verr, "renter information is invalid").WithDetails(fieldDetails(verr))
	}

	expires := info.LicenseExpiresOn.UTC()
	profile := customers.RenterProfile{
		FullName:         strings.TrimSpace(info.FullName),
		Email:            strings.ToLower(strings.TrimSpace(info.Email)),
		Phone:            strings.TrimSpace(info.Phone),
		LicenseNumber:    strings.TrimSpace(info.LicenseNumber),
		LicenseExpiresOn: time.Date(expires.Year(), expires.Month(), expires.Day(), 0, 0, 0, 0, time.UTC),
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.customers.WithTx(tx).SaveRenterProfile(ctx, rental.CustomerID, profile); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
			}
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already belongs to another customer").
					WithDetails(map[string]string{"email": "is already registered"})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save renter profile")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRenterProfileSubmitted,
			AggregateType: enums.AggregateRental,
			AggregateID:   rental.ID,
			Version:       1,
			Actor:         outbox.ActorOf(actor),
			OccurredAt:    s.controller.Now(),
			Data: payloads.RenterProfileSubmittedEvent{
				RentalID:   rental.ID,
				CustomerID: rental.CustomerID,
			},
		})
	})
}
