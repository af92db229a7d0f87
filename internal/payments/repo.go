// Package payments stores payment proof records and their single resolution.
package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	"github.com/angelmondragon/carrental-backend/pkg/pagination"
)

// ErrNotPending is returned when a resolution finds the record already decided.
var ErrNotPending = errors.New("payment record is not pending")

// Resolution is the operator decision applied to a pending record.
type Resolution struct {
	Outcome    enums.PaymentOutcome
	VerifiedBy uuid.UUID
	VerifiedAt time.Time
	Note       *string
}

// ListParams filters payment records across all reservations.
type ListParams struct {
	Outcome *enums.PaymentOutcome
	Method  *enums.PaymentMethod
	Limit   int
	Cursor  *pagination.Cursor
}

// Repository defines persistence for payment records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.PaymentRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error)
	FindLatestForRentalForUpdate(ctx context.Context, rentalID uuid.UUID) (*models.PaymentRecord, error)
	FindPendingForRental(ctx context.Context, rentalID uuid.UUID) (*models.PaymentRecord, error)
	ListByRental(ctx context.Context, rentalID uuid.UUID) ([]models.PaymentRecord, error)
	List(ctx context.Context, params ListParams) ([]models.PaymentRecord, error)
	Resolve(ctx context.Context, id uuid.UUID, resolution Resolution) error
	DeleteByRental(ctx context.Context, rentalID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.PaymentRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindLatestForRentalForUpdate(ctx context.Context, rentalID uuid.UUID) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("rental_id = ?", rentalID).
		Order("submitted_at DESC").
		Order("id DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindPendingForRental(ctx context.Context, rentalID uuid.UUID) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("rental_id = ? AND outcome = ?", rentalID, enums.PaymentOutcomePending).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListByRental(ctx context.Context, rentalID uuid.UUID) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("rental_id = ?", rentalID).
		Order("submitted_at ASC").
		Order("id ASC").
		Find(&records).Error
	return records, err
}

// List returns newest submissions first, keyed on (submitted_at, id).
func (r *repository) List(ctx context.Context, params ListParams) ([]models.PaymentRecord, error) {
	query := r.db.WithContext(ctx)
	if params.Outcome != nil {
		query = query.Where("outcome = ?", *params.Outcome)
	}
	if params.Method != nil {
		query = query.Where("method = ?", *params.Method)
	}
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}

	var records []models.PaymentRecord
	err := query.
		Scopes(pagination.BeforeOn("submitted_at", params.Cursor), pagination.NewestOn("submitted_at")).
		Find(&records).Error
	return records, err
}

// Resolve applies the decision only while the record is still pending.
func (r *repository) Resolve(ctx context.Context, id uuid.UUID, resolution Resolution) error {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("id = ? AND outcome = ?", id, enums.PaymentOutcomePending).
		Updates(map[string]any{
			"outcome":     resolution.Outcome,
			"verified_by": resolution.VerifiedBy,
			"verified_at": resolution.VerifiedAt,
			"review_note": resolution.Note,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotPending
	}
	return nil
}

func (r *repository) DeleteByRental(ctx context.Context, rentalID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("rental_id = ?", rentalID).
		Delete(&models.PaymentRecord{}).Error
}
