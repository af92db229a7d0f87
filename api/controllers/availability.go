package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carrental-backend/api/responses"
	"github.com/angelmondragon/carrental-backend/api/validators"
	"github.com/angelmondragon/carrental-backend/internal/availability"
	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/carrental-backend/pkg/errors"
	"github.com/angelmondragon/carrental-backend/pkg/logger"
)

// AvailabilityChecker answers whether a vehicle is free for a window.
type AvailabilityChecker interface {
	Check(ctx context.Context, vehicleID uuid.UUID, window availability.Window) (availability.Result, error)
}

// VehicleFinder loads catalog vehicles.
type VehicleFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
}

type availabilityResponse struct {
	VehicleID uuid.UUID            `json:"vehicle_id"`
	PickupAt  time.Time            `json:"pickup_at"`
	DropoffAt time.Time            `json:"dropoff_at"`
	Available bool                 `json:"available"`
	Conflict  *availability.Window `json:"conflict,omitempty"`
}

// VehicleAvailability reports whether a vehicle can be booked for the
// requested window. The conflicting reservation id is never exposed.
func VehicleAvailability(vehicles VehicleFinder, checker AvailabilityChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if vehicles == nil || checker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "availability service unavailable"))
			return
		}
		if _, err := actorFromRequest(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		vehicleID, err := validators.ParseUUIDParam(r, "vehicleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pickup, err := validators.ParseQueryTime(r, "pickup_at", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dropoff, err := validators.ParseQueryTime(r, "dropoff_at", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := vehicles.FindByID(r.Context(), vehicleID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vehicle"))
			return
		}

		window := availability.Window{PickupAt: pickup, DropoffAt: dropoff}
		result, err := checker.Check(r.Context(), vehicleID, window)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, availabilityResponse{
			VehicleID: vehicleID,
			PickupAt:  pickup,
			DropoffAt: dropoff,
			Available: result.Available,
			Conflict:  result.Conflict,
		})
	}
}
