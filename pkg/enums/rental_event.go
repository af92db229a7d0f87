package enums

// RentalEvent names the lifecycle event that drives a status change.
type RentalEvent string

const (
	RentalEventCreated           RentalEvent = "created"
	RentalEventAvailabilityOK    RentalEvent = "availability_confirmed"
	RentalEventProofSubmitted    RentalEvent = "proof_submitted"
	RentalEventPaymentApproved   RentalEvent = "payment_approved"
	RentalEventPaymentRejected   RentalEvent = "payment_rejected"
	RentalEventOperatorConfirmed RentalEvent = "operator_confirmed"
	RentalEventActivated         RentalEvent = "activated"
	RentalEventCompleted         RentalEvent = "completed"
	RentalEventCancelled         RentalEvent = "cancelled"
)

// String implements fmt.Stringer.
func (e RentalEvent) String() string {
	return string(e)
}
