package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer mirrors the identity-owned account plus the renter profile
// collected during checkout.
type Customer struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	FullName         string     `gorm:"column:full_name;not null;default:''"`
	Email            string     `gorm:"column:email;not null"`
	Phone            *string    `gorm:"column:phone"`
	LicenseNumber    *string    `gorm:"column:license_number"`
	LicenseExpiresOn *time.Time `gorm:"column:license_expires_on;type:date"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
