package rentals

import (
	"github.com/angelmondragon/carrental-backend/pkg/enums"
)

type transitionKey struct {
	from  enums.RentalStatus
	event enums.RentalEvent
}

// transitions is the complete lifecycle table. Anything not listed is refused.
var transitions = map[transitionKey]enums.RentalStatus{
	{enums.RentalStatusPending, enums.RentalEventAvailabilityOK}:               enums.RentalStatusBooked,
	{enums.RentalStatusBooked, enums.RentalEventProofSubmitted}:                enums.RentalStatusPendingVerification,
	{enums.RentalStatusPendingVerification, enums.RentalEventPaymentApproved}:  enums.RentalStatusConfirmed,
	{enums.RentalStatusPendingVerification, enums.RentalEventPaymentRejected}:  enums.RentalStatusBooked,
	{enums.RentalStatusBooked, enums.RentalEventOperatorConfirmed}:             enums.RentalStatusConfirmed,
	{enums.RentalStatusConfirmed, enums.RentalEventActivated}:                  enums.RentalStatusActive,
	{enums.RentalStatusActive, enums.RentalEventCompleted}:                     enums.RentalStatusReturned,
	{enums.RentalStatusBooked, enums.RentalEventCancelled}:                     enums.RentalStatusCancelled,
	{enums.RentalStatusConfirmed, enums.RentalEventCancelled}:                  enums.RentalStatusCancelled,
	{enums.RentalStatusActive, enums.RentalEventCancelled}:                     enums.RentalStatusCancelled,
}

// NextStatus resolves the target of event from status.
func NextStatus(from enums.RentalStatus, event enums.RentalEvent) (enums.RentalStatus, bool) {
	next, ok := transitions[transitionKey{from: from, event: event}]
	return next, ok
}

// confirmationSourceFor reports how a confirmation happened, if event confirms.
func confirmationSourceFor(event enums.RentalEvent) *enums.ConfirmationSource {
	var source enums.ConfirmationSource
	switch event {
	case enums.RentalEventPaymentApproved:
		source = enums.ConfirmationSourcePaymentApproved
	case enums.RentalEventOperatorConfirmed:
		source = enums.ConfirmationSourceOperator
	default:
		return nil
	}
	return &source
}

// operatorEvents maps the statuses an operator may request directly.
var operatorEvents = map[enums.RentalStatus]enums.RentalEvent{
	enums.RentalStatusConfirmed: enums.RentalEventOperatorConfirmed,
	enums.RentalStatusActive:    enums.RentalEventActivated,
	enums.RentalStatusReturned:  enums.RentalEventCompleted,
	enums.RentalStatusCancelled: enums.RentalEventCancelled,
}
