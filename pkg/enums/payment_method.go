package enums

// PaymentMethod is how the renter moved money to the company account.
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	// PaymentMethodQRInterbank is a PromptPay QR payment.
	PaymentMethodQRInterbank PaymentMethod = "qr_interbank"
	// PaymentMethodCash is only taken by staff at a branch counter.
	PaymentMethodCash PaymentMethod = "cash"
)

var (
	paymentMethods = []PaymentMethod{PaymentMethodBankTransfer, PaymentMethodQRInterbank, PaymentMethodCash}
	remoteMethods  = []PaymentMethod{PaymentMethodBankTransfer, PaymentMethodQRInterbank}
)

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool { return valid(paymentMethods, p) }

// Remote reports whether a renter can pay this way and upload a proof.
func (p PaymentMethod) Remote() bool { return valid(remoteMethods, p) }

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse(paymentMethods, "payment method", value)
}
