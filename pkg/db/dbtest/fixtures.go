package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/carrental-backend/pkg/db/models"
)

// Fleet groups a seeded branch, vehicle and customer.
type Fleet struct {
	Branch   models.Branch
	Vehicle  models.Vehicle
	Customer models.Customer
}

// SeedFleet inserts one branch, one vehicle at dailyRate and one customer.
func SeedFleet(t *testing.T, conn *gorm.DB, dailyRate string) Fleet {
	t.Helper()

	branch := models.Branch{ID: uuid.New(), Name: "Airport", Address: "99 Airport Rd, Chiang Mai"}
	if err := conn.Create(&branch).Error; err != nil {
		t.Fatalf("seed branch: %v", err)
	}

	vehicle := SeedVehicle(t, conn, branch.ID, dailyRate)
	customer := SeedCustomer(t, conn)

	return Fleet{Branch: branch, Vehicle: vehicle, Customer: customer}
}

// SeedVehicle inserts a vehicle homed at branchID.
func SeedVehicle(t *testing.T, conn *gorm.DB, branchID uuid.UUID, dailyRate string) models.Vehicle {
	t.Helper()

	vehicle := models.Vehicle{
		ID:           uuid.New(),
		BranchID:     branchID,
		Brand:        "Toyota",
		Model:        "Yaris",
		LicensePlate: "1กข-" + uuid.NewString()[:6],
		DailyRate:    decimal.RequireFromString(dailyRate),
		IsAvailable:  true,
	}
	if err := conn.Create(&vehicle).Error; err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
	return vehicle
}

// SeedCustomer inserts a customer with a unique email.
func SeedCustomer(t *testing.T, conn *gorm.DB) models.Customer {
	t.Helper()

	id := uuid.New()
	customer := models.Customer{
		ID:       id,
		FullName: "Somchai Jaidee",
		Email:    id.String()[:8] + "@example.com",
	}
	if err := conn.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return customer
}

// Clock returns a fixed, second-truncated UTC instant for deterministic tests.
func Clock() time.Time {
	return time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
}
