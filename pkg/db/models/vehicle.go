package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Vehicle is a rentable unit. IsAvailable is a cached projection of the
// reservation table and is never used to decide conflicts.
type Vehicle struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID     uuid.UUID       `gorm:"column:branch_id;type:uuid;not null"`
	Brand        string          `gorm:"column:brand;not null"`
	Model        string          `gorm:"column:model;not null"`
	LicensePlate string          `gorm:"column:license_plate;not null"`
	DailyRate    decimal.Decimal `gorm:"column:daily_rate;type:numeric(10,2);not null"`
	ImageURL     *string         `gorm:"column:image_url"`
	IsAvailable  bool            `gorm:"column:is_available;not null;default:true"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
