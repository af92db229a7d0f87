package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carrental-backend/api/responses"
	"github.com/angelmondragon/carrental-backend/api/validators"
	"github.com/angelmondragon/carrental-backend/internal/checkout"
	"github.com/angelmondragon/carrental-backend/internal/pricing"
	"github.com/angelmondragon/carrental-backend/internal/rentals"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carrental-backend/pkg/errors"
	"github.com/angelmondragon/carrental-backend/pkg/logger"
	"github.com/angelmondragon/carrental-backend/pkg/pagination"
)

const idempotencyHeader = "Idempotency-Key"

type initiateRequest struct {
	VehicleID       uuid.UUID `json:"vehicle_id" validate:"required"`
	PickupAt        time.Time `json:"pickup_at" validate:"required"`
	DropoffAt       time.Time `json:"dropoff_at" validate:"required"`
	PickupLocation  string    `json:"pickup_location" validate:"max=200"`
	DropoffLocation string    `json:"dropoff_location" validate:"max=200"`
}

type initiateResponse struct {
	Rental   rentalResponse `json:"rental"`
	Quote    pricing.Quote  `json:"quote"`
	Replayed bool           `json:"replayed"`
}

// RentalInitiate books a vehicle for the caller.
func RentalInitiate(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload initiateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initiate(r.Context(), actor, checkout.InitiateInput{
			VehicleID:       payload.VehicleID,
			PickupAt:        payload.PickupAt,
			DropoffAt:       payload.DropoffAt,
			PickupLocation:  validators.SanitizeString(payload.PickupLocation, 200),
			DropoffLocation: validators.SanitizeString(payload.DropoffLocation, 200),
			IdempotencyKey:  strings.TrimSpace(r.Header.Get(idempotencyHeader)),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, initiateResponse{
			Rental:   newRentalResponse(result.Rental),
			Quote:    result.Quote,
			Replayed: result.Replayed,
		})
	}
}

// RentalsMine pages through the caller's reservations, newest first.
func RentalsMine(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := rentals.ListInput{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseRentalStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			input.Status = &status
		}

		page, err := svc.ListMine(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]rentalResponse, 0, len(page.Items))
		for i := range page.Items {
			items = append(items, newRentalResponse(&page.Items[i]))
		}
		responses.WriteSuccess(w, pagination.Page[rentalResponse]{Items: items, NextCursor: page.NextCursor})
	}
}

// RentalGet returns one reservation visible to the caller.
func RentalGet(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rentalID, err := validators.ParseUUIDParam(r, "rentalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rental, err := svc.Get(r.Context(), actor, rentalID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newRentalResponse(rental))
	}
}

type summaryResponse struct {
	Rental  rentalResponse  `json:"rental"`
	Vehicle vehicleResponse `json:"vehicle"`
	Quote   pricing.Quote   `json:"quote"`
}

type vehicleResponse struct {
	ID           uuid.UUID `json:"id"`
	Brand        string    `json:"brand"`
	Model        string    `json:"model"`
	LicensePlate string    `json:"license_plate"`
}

// RentalQuote returns the price summary for a reservation.
func RentalQuote(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rentalID, err := validators.ParseUUIDParam(r, "rentalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Summary(r.Context(), actor, rentalID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := summaryResponse{Rental: newRentalResponse(summary.Rental), Quote: summary.Quote}
		if v := summary.Vehicle; v != nil {
			resp.Vehicle = vehicleResponse{ID: v.ID, Brand: v.Brand, Model: v.Model, LicensePlate: v.LicensePlate}
		}
		responses.WriteSuccess(w, resp)
	}
}

type renterRequest struct {
	FullName         string `json:"full_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	LicenseNumber    string `json:"license_number"`
	LicenseExpiresOn string `json:"license_expires_on"`
}

// RentalRenterInfo records the renter's contact and license details.
// Field rules are enforced by the service so every problem is reported at once.
func RentalRenterInfo(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rentalID, err := validators.ParseUUIDParam(r, "rentalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload renterRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var expires time.Time
		if raw := strings.TrimSpace(payload.LicenseExpiresOn); raw != "" {
			expires, err = time.Parse(time.DateOnly, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "renter information is invalid").
					WithDetails(map[string]string{"license_expires_on": "must be a date in YYYY-MM-DD form"}))
				return
			}
		}

		info := checkout.RenterInfo{
			FullName:         validators.SanitizeString(payload.FullName, 200),
			Email:            validators.SanitizeString(payload.Email, 254),
			Phone:            validators.SanitizeString(payload.Phone, 40),
			LicenseNumber:    validators.SanitizeString(payload.LicenseNumber, 64),
			LicenseExpiresOn: expires,
		}
		if err := svc.SubmitRenterInfo(r.Context(), actor, rentalID, info); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"rental_id": rentalID, "renter_info": "saved"})
	}
}
