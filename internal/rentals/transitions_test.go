package rentals

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/carrental-backend/pkg/enums"
)

func TestNextStatusTable(t *testing.T) {
	cases := []struct {
		from  enums.RentalStatus
		event enums.RentalEvent
		to    enums.RentalStatus
	}{
		{enums.RentalStatusPending, enums.RentalEventAvailabilityOK, enums.RentalStatusBooked},
		{enums.RentalStatusBooked, enums.RentalEventProofSubmitted, enums.RentalStatusPendingVerification},
		{enums.RentalStatusPendingVerification, enums.RentalEventPaymentApproved, enums.RentalStatusConfirmed},
		{enums.RentalStatusPendingVerification, enums.RentalEventPaymentRejected, enums.RentalStatusBooked},
		{enums.RentalStatusBooked, enums.RentalEventOperatorConfirmed, enums.RentalStatusConfirmed},
		{enums.RentalStatusConfirmed, enums.RentalEventActivated, enums.RentalStatusActive},
		{enums.RentalStatusActive, enums.RentalEventCompleted, enums.RentalStatusReturned},
		{enums.RentalStatusBooked, enums.RentalEventCancelled, enums.RentalStatusCancelled},
		{enums.RentalStatusConfirmed, enums.RentalEventCancelled, enums.RentalStatusCancelled},
		{enums.RentalStatusActive, enums.RentalEventCancelled, enums.RentalStatusCancelled},
	}
	for _, tc := range cases {
		next, ok := NextStatus(tc.from, tc.event)
		assert.True(t, ok, "%s + %s", tc.from, tc.event)
		assert.Equal(t, tc.to, next)
	}
}

func TestNextStatusRefusesUnlistedPairs(t *testing.T) {
	refused := []struct {
		from  enums.RentalStatus
		event enums.RentalEvent
	}{
		{enums.RentalStatusReturned, enums.RentalEventCancelled},
		{enums.RentalStatusCancelled, enums.RentalEventCancelled},
		{enums.RentalStatusPendingVerification, enums.RentalEventCancelled},
		{enums.RentalStatusPendingVerification, enums.RentalEventOperatorConfirmed},
		{enums.RentalStatusBooked, enums.RentalEventActivated},
		{enums.RentalStatusConfirmed, enums.RentalEventProofSubmitted},
		{enums.RentalStatusBooked, enums.RentalEventPaymentApproved},
		{enums.RentalStatusActive, enums.RentalEventActivated},
		{enums.RentalStatusPending, enums.RentalEventCancelled},
	}
	for _, tc := range refused {
		_, ok := NextStatus(tc.from, tc.event)
		assert.False(t, ok, "%s + %s must be refused", tc.from, tc.event)
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for key := range transitions {
		assert.False(t, key.from.IsTerminal(), "terminal status %s has an outgoing edge", key.from)
	}
}

func TestConfirmationSource(t *testing.T) {
	approved := confirmationSourceFor(enums.RentalEventPaymentApproved)
	operator := confirmationSourceFor(enums.RentalEventOperatorConfirmed)
	assert.Equal(t, enums.ConfirmationSourcePaymentApproved, *approved)
	assert.Equal(t, enums.ConfirmationSourceOperator, *operator)
	assert.Nil(t, confirmationSourceFor(enums.RentalEventActivated))
}
