package outbox

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/carrental-backend/pkg/enums"
	"github.com/angelmondragon/carrental-backend/pkg/outbox/payloads"
)

type decoderFunc func(payload json.RawMessage) (interface{}, error)

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry stores versioned payload decoders for audit readers.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]decoderFunc)}
}

// DefaultDecoders registers v1 decoders for every event the service writes.
func DefaultDecoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventRentalCreated, 1, decodeInto[payloads.RentalCreatedEvent])
	reg.Register(enums.EventRentalStatusChanged, 1, decodeInto[payloads.RentalStatusChangedEvent])
	reg.Register(enums.EventRentalDeleted, 1, decodeInto[payloads.RentalDeletedEvent])
	reg.Register(enums.EventPaymentProofSubmitted, 1, decodeInto[payloads.PaymentProofSubmittedEvent])
	reg.Register(enums.EventPaymentVerified, 1, decodeInto[payloads.PaymentVerifiedEvent])
	reg.Register(enums.EventRenterProfileSubmitted, 1, decodeInto[payloads.RenterProfileSubmittedEvent])
	reg.Register(enums.EventPaymentRecorded, 1, decodeInto[payloads.PaymentRecordedEvent])
	return reg
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{eventType: eventType, version: version}] = decoder
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if decoder, ok := r.registry[registryKey{eventType: eventType, version: version}]; ok {
		return decoder(payload)
	}
	return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
}

func decodeInto[T any](payload json.RawMessage) (interface{}, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}
