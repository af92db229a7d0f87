// Package rentals owns reservations: persistence, the lifecycle state
// machine and the operator-facing service.
package rentals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/carrental-backend/internal/availability"
	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	"github.com/angelmondragon/carrental-backend/pkg/pagination"
)

// ErrStaleStatus is returned when a conditional status update matched no row.
var ErrStaleStatus = errors.New("rental status changed concurrently")

// ListParams filters reservations. Zero ids match every customer or vehicle.
type ListParams struct {
	CustomerID uuid.UUID
	VehicleID  uuid.UUID
	Status     *enums.RentalStatus
	Limit      int
	Cursor     *pagination.Cursor
}

// Repository defines persistence for reservations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, rental *models.Rental) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Rental, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Rental, error)
	FindByCustomerIdempotencyKey(ctx context.Context, customerID uuid.UUID, key string) (*models.Rental, error)
	ListOccupyingForVehicle(ctx context.Context, vehicleID uuid.UUID) ([]models.Rental, error)
	List(ctx context.Context, params ListParams) ([]models.Rental, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next enums.RentalStatus, fields map[string]any) error
	SetPayment(ctx context.Context, id uuid.UUID, paymentID uuid.UUID, updatedAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a rentals repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// AvailabilityStore adapts the repository to the availability checker,
// including its transaction binder.
func AvailabilityStore(repo Repository) (availability.Store, func(tx *gorm.DB) availability.Store) {
	return repo, func(tx *gorm.DB) availability.Store {
		return repo.WithTx(tx)
	}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, rental *models.Rental) error {
	return r.db.WithContext(ctx).Create(rental).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Rental, error) {
	var rental models.Rental
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rental).Error; err != nil {
		return nil, err
	}
	return &rental, nil
}

// FindByIDForUpdate locks the reservation row for the rest of the transaction.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Rental, error) {
	var rental models.Rental
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&rental).Error
	if err != nil {
		return nil, err
	}
	return &rental, nil
}

func (r *repository) FindByCustomerIdempotencyKey(ctx context.Context, customerID uuid.UUID, key string) (*models.Rental, error) {
	var rental models.Rental
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND idempotency_key = ?", customerID, key).
		First(&rental).Error
	if err != nil {
		return nil, err
	}
	return &rental, nil
}

func (r *repository) ListOccupyingForVehicle(ctx context.Context, vehicleID uuid.UUID) ([]models.Rental, error) {
	var rentals []models.Rental
	err := r.db.WithContext(ctx).
		Where("vehicle_id = ? AND status IN ?", vehicleID, enums.OccupyingRentalStatuses).
		Order("pickup_at ASC").
		Find(&rentals).Error
	return rentals, err
}

// List returns newest first; Limit is used as given so callers can
// over-fetch by one to detect a next page.
func (r *repository) List(ctx context.Context, params ListParams) ([]models.Rental, error) {
	query := r.db.WithContext(ctx)
	if params.CustomerID != uuid.Nil {
		query = query.Where("customer_id = ?", params.CustomerID)
	}
	if params.VehicleID != uuid.Nil {
		query = query.Where("vehicle_id = ?", params.VehicleID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}

	var rentals []models.Rental
	err := query.
		Scopes(pagination.Before(params.Cursor), pagination.Newest).
		Find(&rentals).Error
	return rentals, err
}

// UpdateStatus moves the row from expected to next in one conditional write.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next enums.RentalStatus, fields map[string]any) error {
	updates := map[string]any{"status": next}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Rental{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r *repository) SetPayment(ctx context.Context, id uuid.UUID, paymentID uuid.UUID, updatedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Rental{}).
		Where("id = ?", id).
		Updates(map[string]any{"payment_id": paymentID, "updated_at": updatedAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Rental{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
