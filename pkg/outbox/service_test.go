package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/carrental-backend/pkg/db/dbtest"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	"github.com/angelmondragon/carrental-backend/pkg/outbox"
	"github.com/angelmondragon/carrental-backend/pkg/outbox/payloads"
)

func TestEmitAndHistoryRoundTrip(t *testing.T) {
	conn := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)
	ctx := context.Background()

	rentalID := uuid.New()
	actor := &outbox.ActorRef{UserID: uuid.New(), Role: enums.ActorRoleOperator}
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRentalCreated,
			AggregateType: enums.AggregateRental,
			AggregateID:   rentalID,
			Actor:         actor,
			OccurredAt:    base,
			Data: payloads.RentalCreatedEvent{
				RentalID: rentalID,
				Status:   enums.RentalStatusBooked,
			},
		}); err != nil {
			return err
		}
		return svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRentalStatusChanged,
			AggregateType: enums.AggregateRental,
			AggregateID:   rentalID,
			Actor:         actor,
			OccurredAt:    base.Add(time.Minute),
			Data: payloads.RentalStatusChangedEvent{
				RentalID: rentalID,
				Event:    enums.RentalEventOperatorConfirmed,
				From:     enums.RentalStatusBooked,
				To:       enums.RentalStatusConfirmed,
			},
		})
	}))

	entries, err := svc.History(ctx, enums.AggregateRental, rentalID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	created, ok := entries[0].Data.(payloads.RentalCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, enums.RentalStatusBooked, created.Status)

	changed, ok := entries[1].Data.(payloads.RentalStatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, enums.RentalStatusConfirmed, changed.To)
	assert.Equal(t, actor.UserID, entries[1].Actor.UserID)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := outbox.NewService(outbox.NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, outbox.DomainEvent{})
	require.Error(t, err)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)
	rentalID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventRentalDeleted,
			AggregateType: enums.AggregateRental,
			AggregateID:   rentalID,
			Data:          payloads.RentalDeletedEvent{RentalID: rentalID},
		}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	entries, err := svc.History(context.Background(), enums.AggregateRental, rentalID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDecoderRegistryUnknownVersion(t *testing.T) {
	reg := outbox.DefaultDecoders()
	_, err := reg.Decode(enums.EventRentalCreated, 9, []byte(`{}`))
	require.Error(t, err)
}

func TestActivityListsEventsOfOneActor(t *testing.T) {
	conn := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)
	ctx := context.Background()

	operator := &outbox.ActorRef{UserID: uuid.New(), Role: enums.ActorRoleOperator}
	other := &outbox.ActorRef{UserID: uuid.New(), Role: enums.ActorRoleCustomer}
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first, second := uuid.New(), uuid.New()

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		for i, ev := range []struct {
			rental uuid.UUID
			actor  *outbox.ActorRef
		}{{first, operator}, {second, other}, {second, operator}} {
			if err := svc.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventRentalDeleted,
				AggregateType: enums.AggregateRental,
				AggregateID:   ev.rental,
				Actor:         ev.actor,
				OccurredAt:    base.Add(time.Duration(i) * time.Minute),
				Data:          payloads.RentalDeletedEvent{RentalID: ev.rental},
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	entries, err := svc.Activity(ctx, operator.UserID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second, entries[0].AggregateID)
	assert.Equal(t, first, entries[1].AggregateID)

	limited, err := svc.Activity(ctx, operator.UserID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}
