package enums

// PaymentOutcome tracks the operator decision on a submitted proof.
type PaymentOutcome string

const (
	PaymentOutcomePending  PaymentOutcome = "pending"
	PaymentOutcomeApproved PaymentOutcome = "approved"
	PaymentOutcomeRejected PaymentOutcome = "rejected"
)

var paymentOutcomes = []PaymentOutcome{
	PaymentOutcomePending,
	PaymentOutcomeApproved,
	PaymentOutcomeRejected,
}

// String implements fmt.Stringer.
func (p PaymentOutcome) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentOutcome.
func (p PaymentOutcome) IsValid() bool {
	return valid(paymentOutcomes, p)
}

// IsResolved reports whether an operator already decided the record.
func (p PaymentOutcome) IsResolved() bool {
	return p == PaymentOutcomeApproved || p == PaymentOutcomeRejected
}

// ParsePaymentOutcome converts raw input into a PaymentOutcome.
func ParsePaymentOutcome(value string) (PaymentOutcome, error) {
	return parse(paymentOutcomes, "payment outcome", value)
}
