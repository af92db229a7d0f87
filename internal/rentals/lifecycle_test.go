package rentals

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/carrental-backend/pkg/db/dbtest"
	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carrental-backend/pkg/errors"
	"github.com/angelmondragon/carrental-backend/pkg/outbox/payloads"
)

func TestCreateBooksVehicleAndAudits(t *testing.T) {
	h := newHarness(t)
	rental := h.book(h.fleet.Vehicle.ID, 1, 2)

	assert.Equal(t, enums.RentalStatusBooked, rental.Status)
	stored, err := h.repo.FindByID(context.Background(), rental.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RentalStatusBooked, stored.Status)
	assert.Equal(t, h.fleet.Branch.Address, stored.PickupLocation)

	history, err := h.outbox.History(context.Background(), enums.AggregateRental, rental.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, enums.EventRentalCreated, history[0].EventType)
	changed, ok := history[1].Data.(payloads.RentalStatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, enums.RentalStatusPending, changed.From)
	assert.Equal(t, enums.RentalStatusBooked, changed.To)
	require.NotNil(t, history[1].Actor)
	assert.Equal(t, h.fleet.Customer.ID, history[1].Actor.UserID)

	assert.Equal(t, []string{"pending->booked"}, h.metrics.transitions)
	// Future window: the projection still reports the vehicle free right now.
	assert.True(t, h.vehicleAvailable(h.fleet.Vehicle.ID))
}

func TestCreateRejectsOverlap(t *testing.T) {
	h := newHarness(t)
	h.book(h.fleet.Vehicle.ID, 1, 3)

	err := h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := h.controller.Create(context.Background(), tx, CreateInput{
			Actor:          h.customer(),
			CustomerID:     h.fleet.Customer.ID,
			VehicleID:      h.fleet.Vehicle.ID,
			PickupAt:       h.now.Add(48 * time.Hour),
			DropoffAt:      h.now.Add(120 * time.Hour),
			PickupLocation: "Old Town",
		})
		return err
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, 1, h.metrics.conflicts)

	var count int64
	require.NoError(t, h.conn.Model(&models.Rental{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestBackToBackWindowsDoNotConflict(t *testing.T) {
	h := newHarness(t)
	first := h.book(h.fleet.Vehicle.ID, 1, 2)
	second := h.book(h.fleet.Vehicle.ID, 3, 1)

	assert.True(t, first.DropoffAt.Equal(second.PickupAt))
	assert.Equal(t, enums.RentalStatusBooked, second.Status)
}

func TestCancelledReservationFreesWindow(t *testing.T) {
	h := newHarness(t)
	first := h.book(h.fleet.Vehicle.ID, 1, 2)

	_, err := h.transition(first.ID, enums.RentalEventCancelled, h.customer())
	require.NoError(t, err)

	again := h.book(h.fleet.Vehicle.ID, 1, 2)
	assert.Equal(t, enums.RentalStatusBooked, again.Status)
}

func TestCreateValidatesInput(t *testing.T) {
	h := newHarness(t)
	cases := map[string]CreateInput{
		"missing customer": {VehicleID: h.fleet.Vehicle.ID, PickupAt: h.now, DropoffAt: h.now.Add(time.Hour), PickupLocation: "x"},
		"inverted window":  {CustomerID: h.fleet.Customer.ID, VehicleID: h.fleet.Vehicle.ID, PickupAt: h.now, DropoffAt: h.now, PickupLocation: "x"},
		"no location":      {CustomerID: h.fleet.Customer.ID, VehicleID: h.fleet.Vehicle.ID, PickupAt: h.now, DropoffAt: h.now.Add(time.Hour)},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			err := h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
				_, err := h.controller.Create(context.Background(), tx, input)
				return err
			})
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestCreateUnknownVehicle(t *testing.T) {
	h := newHarness(t)
	input := CreateInput{
		CustomerID:     h.fleet.Customer.ID,
		VehicleID:      h.fleet.Customer.ID,
		PickupAt:       h.now.Add(time.Hour),
		DropoffAt:      h.now.Add(25 * time.Hour),
		PickupLocation: "x",
	}
	err := h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := h.controller.Create(context.Background(), tx, input)
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConcurrentOverlappingCreatesOneWins(t *testing.T) {
	h := newHarness(t)
	pickup := h.now.Add(24 * time.Hour)

	const attempts = 5
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
				_, err := h.controller.Create(context.Background(), tx, CreateInput{
					Actor:          h.customer(),
					CustomerID:     h.fleet.Customer.ID,
					VehicleID:      h.fleet.Vehicle.ID,
					PickupAt:       pickup.Add(time.Duration(i) * time.Hour),
					DropoffAt:      pickup.Add(48 * time.Hour),
					PickupLocation: "Airport",
				})
				return err
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)

	occupying, err := h.repo.ListOccupyingForVehicle(context.Background(), h.fleet.Vehicle.ID)
	require.NoError(t, err)
	assert.Len(t, occupying, 1)
}

func TestTransitionHappyPathStampsAndProjection(t *testing.T) {
	h := newHarness(t)
	rental := h.book(h.fleet.Vehicle.ID, 0, 2)
	operator := operatorActor()

	confirmed, err := h.transition(rental.ID, enums.RentalEventOperatorConfirmed, operator)
	require.NoError(t, err)
	assert.Equal(t, enums.RentalStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmationSource)
	assert.Equal(t, enums.ConfirmationSourceOperator, *confirmed.ConfirmationSource)
	assert.False(t, h.vehicleAvailable(h.fleet.Vehicle.ID))

	h.now = h.now.Add(time.Hour)
	active, err := h.transition(rental.ID, enums.RentalEventActivated, operator)
	require.NoError(t, err)
	require.NotNil(t, active.ActivatedAt)

	h.now = h.now.Add(47 * time.Hour)
	returned, err := h.transition(rental.ID, enums.RentalEventCompleted, operator)
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnedAt)
	assert.True(t, h.vehicleAvailable(h.fleet.Vehicle.ID))

	stored, err := h.repo.FindByID(context.Background(), rental.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RentalStatusReturned, stored.Status)
	require.NotNil(t, stored.ConfirmedAt)
	assert.True(t, stored.ConfirmedAt.Equal(dbtest.Clock()))
}

func TestTransitionRejectsUnlistedEvent(t *testing.T) {
	h := newHarness(t)
	rental := h.book(h.fleet.Vehicle.ID, 1, 1)

	_, err := h.transition(rental.ID, enums.RentalEventCompleted, operatorActor())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))

	stored, err := h.repo.FindByID(context.Background(), rental.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RentalStatusBooked, stored.Status)
}

func TestTransitionOnStaleCopyConflicts(t *testing.T) {
	h := newHarness(t)
	rental := h.book(h.fleet.Vehicle.ID, 1, 1)
	stale := *rental

	_, err := h.transition(rental.ID, enums.RentalEventOperatorConfirmed, operatorActor())
	require.NoError(t, err)

	// The stale copy still says booked, so cancel is a listed transition but
	// the conditional write must miss.
	err = h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return h.controller.Transition(context.Background(), tx, &stale, enums.RentalEventCancelled, operatorActor(), TransitionOptions{})
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCancelRecordsReason(t *testing.T) {
	h := newHarness(t)
	rental := h.book(h.fleet.Vehicle.ID, 1, 1)

	err := h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		loaded, err := h.repo.WithTx(tx).FindByIDForUpdate(context.Background(), rental.ID)
		if err != nil {
			return err
		}
		return h.controller.Transition(context.Background(), tx, loaded, enums.RentalEventCancelled, operatorActor(), TransitionOptions{Reason: "  customer no-show "})
	})
	require.NoError(t, err)

	stored, err := h.repo.FindByID(context.Background(), rental.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RentalStatusCancelled, stored.Status)
	require.NotNil(t, stored.CancelReason)
	assert.Equal(t, "customer no-show", *stored.CancelReason)
	require.NotNil(t, stored.CancelledAt)
}

func TestNewControllerRequiresDependencies(t *testing.T) {
	_, err := NewController(nil, nil, nil, nil, nil, nil, nil)
	require.Error(t, err)
}

func TestCreateRandomWindowsNeverOverlap(t *testing.T) {
	h := newHarness(t)
	rng := rand.New(rand.NewPCG(20260301, 7))

	type span struct{ from, to time.Time }
	var booked []span
	overlapsBooked := func(s span) bool {
		for _, b := range booked {
			if s.from.Before(b.to) && b.from.Before(s.to) {
				return true
			}
		}
		return false
	}

	accepted := 0
	for i := 0; i < 200; i++ {
		pickup := h.now.Add(time.Duration(1+rng.IntN(30*24)) * time.Hour)
		s := span{from: pickup, to: pickup.Add(time.Duration(1+rng.IntN(96)) * time.Hour)}
		// a third of the attempts reuse an accepted edge so boundaries get exercised
		if len(booked) > 0 && rng.IntN(3) == 0 {
			edge := booked[rng.IntN(len(booked))]
			length := s.to.Sub(s.from)
			if rng.IntN(2) == 0 {
				s = span{from: edge.to, to: edge.to.Add(length)}
			} else {
				s = span{from: edge.from.Add(-length), to: edge.from}
			}
		}
		expectConflict := overlapsBooked(s)

		err := h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
			_, err := h.controller.Create(context.Background(), tx, CreateInput{
				Actor:          h.customer(),
				CustomerID:     h.fleet.Customer.ID,
				VehicleID:      h.fleet.Vehicle.ID,
				PickupAt:       s.from,
				DropoffAt:      s.to,
				PickupLocation: h.fleet.Branch.Address,
			})
			return err
		})
		if expectConflict {
			require.Error(t, err, "attempt %d [%s, %s) overlaps an accepted booking", i, s.from, s.to)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "attempt %d: %v", i, err)
			continue
		}
		require.NoError(t, err, "attempt %d [%s, %s) is free", i, s.from, s.to)
		booked = append(booked, s)
		accepted++
	}

	require.NotZero(t, accepted)
	var count int64
	require.NoError(t, h.conn.Model(&models.Rental{}).Count(&count).Error)
	assert.Equal(t, int64(accepted), count)
}
