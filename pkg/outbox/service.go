package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	"github.com/angelmondragon/carrental-backend/pkg/logger"
)

type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          interface{}
	Version       int
	OccurredAt    time.Time
}

// Entry is one decoded audit record.
type Entry struct {
	EventID     uuid.UUID             `json:"event_id"`
	EventType   enums.OutboxEventType `json:"event_type"`
	AggregateID uuid.UUID             `json:"aggregate_id"`
	OccurredAt  time.Time             `json:"occurred_at"`
	Actor       *ActorRef             `json:"actor,omitempty"`
	Data        interface{}           `json:"data"`
}

type Service struct {
	repo     *Repository
	decoders *DecoderRegistry
	logg     *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, decoders: DefaultDecoders(), logg: logg}
}

// Emit writes the event inside tx so it commits or rolls back with the change it describes.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !event.EventType.IsValid() {
		return fmt.Errorf("unknown event type %q", event.EventType)
	}
	if event.AggregateType == "" {
		event.AggregateType = event.EventType.Aggregate()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.Version == 0 {
		event.Version = 1
	}
	// v7 ids keep same-instant events in write order.
	eventID, err := uuid.NewV7()
	if err != nil {
		return err
	}
	payload, err := sealEnvelope(eventID, event)
	if err != nil {
		return err
	}
	var actorID *uuid.UUID
	if event.Actor != nil && event.Actor.UserID != uuid.Nil {
		id := event.Actor.UserID
		actorID = &id
	}
	row := models.OutboxEvent{
		ID:            eventID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       json.RawMessage(payload),
		ActorID:       actorID,
		CreatedAt:     event.OccurredAt,
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	if s.logg != nil {
		fields := map[string]any{
			"event_id":       eventID.String(),
			"event_type":     event.EventType,
			"aggregate_id":   event.AggregateID.String(),
			"aggregate_type": event.AggregateType,
		}
		logCtx := s.logg.WithFields(ctx, fields)
		s.logg.Info(logCtx, "audit event recorded")
	}
	return nil
}

// History decodes the audit trail of one aggregate.
func (s *Service) History(ctx context.Context, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) ([]Entry, error) {
	rows, err := s.repo.ListForAggregate(ctx, aggregateType, aggregateID)
	if err != nil {
		return nil, err
	}
	return s.decode(rows)
}

// Activity decodes the most recent events recorded for one actor.
func (s *Service) Activity(ctx context.Context, actorID uuid.UUID, limit int) ([]Entry, error) {
	rows, err := s.repo.ListByActor(ctx, actorID, limit)
	if err != nil {
		return nil, err
	}
	return s.decode(rows)
}

func (s *Service) decode(rows []models.OutboxEvent) ([]Entry, error) {
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		env, err := openEnvelope(row.ID, row.Payload)
		if err != nil {
			return nil, err
		}
		data, err := s.decoders.Decode(row.EventType, env.Version, env.Data)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			EventID:     env.EventID,
			EventType:   row.EventType,
			AggregateID: row.AggregateID,
			OccurredAt:  env.OccurredAt,
			Actor:       env.Actor,
			Data:        data,
		})
	}
	return entries, nil
}
