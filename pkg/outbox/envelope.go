package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carrental-backend/pkg/auth"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
)

// ActorRef records who caused an audit event.
type ActorRef struct {
	UserID uuid.UUID       `json:"user_id"`
	Role   enums.ActorRole `json:"role,omitempty"`
}

// ActorOf returns nil for an anonymous actor.
func ActorOf(actor auth.Actor) *ActorRef {
	if actor.ID == uuid.Nil {
		return nil
	}
	return &ActorRef{UserID: actor.ID, Role: actor.Role}
}

// envelope is the JSON document stored in outbox_events.payload.
// Data stays raw until a registered decoder for (event type, version) reads it.
type envelope struct {
	Version    int             `json:"version"`
	EventID    uuid.UUID       `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func sealEnvelope(id uuid.UUID, event DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", event.EventType, err)
	}
	return json.Marshal(envelope{
		Version:    event.Version,
		EventID:    id,
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	})
}

func openEnvelope(id uuid.UUID, raw []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, fmt.Errorf("decode envelope %s: %w", id, err)
	}
	return env, nil
}
