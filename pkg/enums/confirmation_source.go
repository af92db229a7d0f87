package enums

// ConfirmationSource records which path moved a rental into confirmed.
type ConfirmationSource string

const (
	ConfirmationSourcePaymentApproved ConfirmationSource = "payment_approved"
	ConfirmationSourceOperator        ConfirmationSource = "operator"
)

var confirmationSources = []ConfirmationSource{
	ConfirmationSourcePaymentApproved,
	ConfirmationSourceOperator,
}

// String implements fmt.Stringer.
func (c ConfirmationSource) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ConfirmationSource.
func (c ConfirmationSource) IsValid() bool {
	return valid(confirmationSources, c)
}

// ParseConfirmationSource converts raw input into a ConfirmationSource.
func ParseConfirmationSource(value string) (ConfirmationSource, error) {
	return parse(confirmationSources, "confirmation source", value)
}
