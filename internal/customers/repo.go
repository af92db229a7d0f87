// Package customers is the narrow read/write surface over identity-owned
// customer records used by checkout and the operator queue.
package customers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carrental-backend/pkg/db/models"
)

// RenterProfile is the license and contact data collected during checkout.
type RenterProfile struct {
	FullName         string
	Email            string
	Phone            string
	LicenseNumber    string
	LicenseExpiresOn time.Time
}

// Repository defines the customer persistence used by this service.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	SaveRenterProfile(ctx context.Context, id uuid.UUID, profile RenterProfile) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a customers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// SaveRenterProfile overwrites the renter fields; it reports
// gorm.ErrRecordNotFound when the customer does not exist.
func (r *repository) SaveRenterProfile(ctx context.Context, id uuid.UUID, profile RenterProfile) error {
	phone := profile.Phone
	license := profile.LicenseNumber
	expires := profile.LicenseExpiresOn.UTC()

	res := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"full_name":          profile.FullName,
			"email":              profile.Email,
			"phone":              &phone,
			"license_number":     &license,
			"license_expires_on": &expires,
			"updated_at":         time.Now().UTC().Truncate(time.Second),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
