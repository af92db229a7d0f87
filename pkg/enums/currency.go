package enums

import "strings"

// Currency is the single settlement unit configured for the deployment.
type Currency string

const (
	CurrencyTHB Currency = "THB"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

var currencies = []Currency{CurrencyTHB, CurrencyUSD, CurrencyEUR}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool { return valid(currencies, c) }

// ParseCurrency accepts ISO 4217 codes in any letter case.
func ParseCurrency(value string) (Currency, error) {
	return parse(currencies, "currency", strings.ToUpper(value))
}
