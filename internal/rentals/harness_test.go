package rentals

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/carrental-backend/internal/availability"
	"github.com/angelmondragon/carrental-backend/internal/payments"
	"github.com/angelmondragon/carrental-backend/internal/vehicles"
	"github.com/angelmondragon/carrental-backend/pkg/auth"
	"github.com/angelmondragon/carrental-backend/pkg/db"
	"github.com/angelmondragon/carrental-backend/pkg/db/dbtest"
	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	"github.com/angelmondragon/carrental-backend/pkg/outbox"
)

type recordingMetrics struct {
	mu          sync.Mutex
	transitions []string
	conflicts   int
}

func (m *recordingMetrics) IncTransition(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from+"->"+to)
}

func (m *recordingMetrics) IncConflict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

type harness struct {
	t          *testing.T
	client     *db.Client
	conn       *gorm.DB
	fleet      dbtest.Fleet
	repo       Repository
	payments   payments.Repository
	vehicles   vehicles.Repository
	outbox     *outbox.Service
	controller *Controller
	metrics    *recordingMetrics
	now        time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client, conn := dbtest.Client(t)
	h := &harness{
		t:        t,
		client:   client,
		conn:     conn,
		fleet:    dbtest.SeedFleet(t, conn, "1000"),
		repo:     NewRepository(conn),
		payments: payments.NewRepository(conn),
		vehicles: vehicles.NewRepository(conn),
		outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
		metrics:  &recordingMetrics{},
		now:      dbtest.Clock(),
	}

	store, bind := AvailabilityStore(h.repo)
	checker, err := availability.NewChecker(store, bind)
	require.NoError(t, err)

	h.controller, err = NewController(h.repo, h.vehicles, checker, h.outbox, h.metrics, nil, func() time.Time { return h.now })
	require.NoError(t, err)
	return h
}

func (h *harness) customer() auth.Actor {
	return auth.Actor{ID: h.fleet.Customer.ID, Role: enums.ActorRoleCustomer}
}

func operatorActor() auth.Actor {
	return auth.Actor{ID: uuid.New(), Role: enums.ActorRoleOperator}
}

func adminActor() auth.Actor {
	return auth.Actor{ID: uuid.New(), Role: enums.ActorRoleAdmin}
}

// book creates a booked reservation starting offsetDays after the clock.
func (h *harness) book(vehicleID uuid.UUID, offsetDays, days int) *models.Rental {
	h.t.Helper()
	pickup := h.now.Add(time.Duration(offsetDays) * 24 * time.Hour)
	var rental *models.Rental
	err := h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		rental, err = h.controller.Create(context.Background(), tx, CreateInput{
			Actor:          h.customer(),
			CustomerID:     h.fleet.Customer.ID,
			VehicleID:      vehicleID,
			PickupAt:       pickup,
			DropoffAt:      pickup.Add(time.Duration(days) * 24 * time.Hour),
			PickupLocation: h.fleet.Branch.Address,
		})
		return err
	})
	require.NoError(h.t, err)
	return rental
}

// transition loads the rental under lock and applies event.
func (h *harness) transition(id uuid.UUID, event enums.RentalEvent, actor auth.Actor) (*models.Rental, error) {
	var rental *models.Rental
	err := h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		loaded, err := h.repo.WithTx(tx).FindByIDForUpdate(context.Background(), id)
		if err != nil {
			return err
		}
		if err := h.controller.Transition(context.Background(), tx, loaded, event, actor, TransitionOptions{}); err != nil {
			return err
		}
		rental = loaded
		return nil
	})
	return rental, err
}

func (h *harness) vehicleAvailable(id uuid.UUID) bool {
	h.t.Helper()
	vehicle, err := h.vehicles.FindByID(context.Background(), id)
	require.NoError(h.t, err)
	return vehicle.IsAvailable
}
