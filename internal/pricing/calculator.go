// Package pricing computes rental quotes from the fixed daily-rate formula.
package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/carrental-backend/pkg/config"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carrental-backend/pkg/errors"
)

const (
	day = 24 * time.Hour

	// FeeDropOff is charged when the car is returned somewhere other than pickup.
	FeeDropOff = "drop_off"
)

// QuoteInput carries everything a quote depends on.
type QuoteInput struct {
	DailyRate       decimal.Decimal
	PickupAt        time.Time
	DropoffAt       time.Time
	PickupLocation  string
	DropoffLocation string
}

// Fee is one itemized surcharge.
type Fee struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

// Quote is the derived price of a reservation. It is never persisted.
type Quote struct {
	Days      int             `json:"days"`
	DailyRate decimal.Decimal `json:"daily_rate"`
	Base      decimal.Decimal `json:"base"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	Tax       decimal.Decimal `json:"tax"`
	Fees      []Fee           `json:"fees"`
	FeesTotal decimal.Decimal `json:"fees_total"`
	Total     decimal.Decimal `json:"total"`
	Currency  enums.Currency  `json:"currency"`
}

// Calculator applies rate × days + tax + fees.
type Calculator struct {
	taxRate    decimal.Decimal
	dropOffFee decimal.Decimal
	currency   enums.Currency
}

// NewCalculator builds a calculator from validated pricing config.
func NewCalculator(cfg config.PricingConfig) (*Calculator, error) {
	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("parse tax rate: %w", err)
	}
	fee, err := decimal.NewFromString(cfg.DropOffFee)
	if err != nil {
		return nil, fmt.Errorf("parse drop-off fee: %w", err)
	}
	if taxRate.IsNegative() || fee.IsNegative() {
		return nil, fmt.Errorf("pricing inputs must not be negative")
	}
	currency, err := enums.ParseCurrency(cfg.Currency)
	if err != nil {
		return nil, err
	}
	return &Calculator{taxRate: taxRate, dropOffFee: fee, currency: currency}, nil
}

// Currency reports the unit every quote is expressed in.
func (c *Calculator) Currency() enums.Currency {
	return c.currency
}

// Quote prices a reservation window. Only the total is rounded.
func (c *Calculator) Quote(in QuoteInput) (Quote, error) {
	if !in.DailyRate.IsPositive() {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "daily rate must be positive")
	}
	if in.PickupAt.IsZero() || in.DropoffAt.IsZero() {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "pickup and dropoff times are required")
	}
	if !in.DropoffAt.After(in.PickupAt) {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "dropoff must be after pickup")
	}

	days := RentalDays(in.PickupAt, in.DropoffAt)
	base := in.DailyRate.Mul(decimal.NewFromInt(int64(days)))
	tax := base.Mul(c.taxRate)

	fees := make([]Fee, 0, 1)
	feesTotal := decimal.Zero
	if c.dropOffFee.IsPositive() && differentLocation(in.PickupLocation, in.DropoffLocation) {
		fees = append(fees, Fee{Code: FeeDropOff, Amount: c.dropOffFee})
		feesTotal = feesTotal.Add(c.dropOffFee)
	}

	return Quote{
		Days:      days,
		DailyRate: in.DailyRate,
		Base:      base,
		TaxRate:   c.taxRate,
		Tax:       tax,
		Fees:      fees,
		FeesTotal: feesTotal,
		Total:     base.Add(tax).Add(feesTotal).Round(2),
		Currency:  c.currency,
	}, nil
}

// RentalDays counts started 24h periods, with a minimum of one.
func RentalDays(pickup, dropoff time.Time) int {
	span := dropoff.Sub(pickup)
	if span <= 0 {
		return 1
	}
	days := int(span / day)
	if span%day != 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

func differentLocation(pickup, dropoff string) bool {
	d := normalizeLocation(dropoff)
	if d == "" {
		return false
	}
	return d != normalizeLocation(pickup)
}

func normalizeLocation(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}
