package enums

// OutboxAggregateType is the entity an audit event is keyed to.
type OutboxAggregateType string

const (
	AggregateRental  OutboxAggregateType = "rental"
	AggregatePayment OutboxAggregateType = "payment_record"
)

var aggregateTypes = []OutboxAggregateType{AggregateRental, AggregatePayment}

func (a OutboxAggregateType) IsValid() bool { return valid(aggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(aggregateTypes, "aggregate type", value)
}

// OutboxEventType names what happened. Each type has a registered payload decoder.
type OutboxEventType string

const (
	EventRentalCreated          OutboxEventType = "rental_created"
	EventRentalStatusChanged    OutboxEventType = "rental_status_changed"
	EventRentalDeleted          OutboxEventType = "rental_deleted"
	EventPaymentProofSubmitted  OutboxEventType = "payment_proof_submitted"
	EventPaymentVerified        OutboxEventType = "payment_verified"
	EventRenterProfileSubmitted OutboxEventType = "renter_profile_submitted"
	EventPaymentRecorded        OutboxEventType = "payment_recorded"
)

var eventTypes = []OutboxEventType{
	EventRentalCreated,
	EventRentalStatusChanged,
	EventRentalDeleted,
	EventPaymentProofSubmitted,
	EventPaymentVerified,
	EventRenterProfileSubmitted,
	EventPaymentRecorded,
}

func (e OutboxEventType) IsValid() bool { return valid(eventTypes, e) }

// Aggregate reports which aggregate an event of this type belongs to.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	switch e {
	case EventPaymentProofSubmitted, EventPaymentVerified, EventPaymentRecorded:
		return AggregatePayment
	default:
		return AggregateRental
	}
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(eventTypes, "event type", value)
}
