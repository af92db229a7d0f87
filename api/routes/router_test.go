package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/carrental-backend/api/controllers"
	"github.com/angelmondragon/carrental-backend/internal/availability"
	"github.com/angelmondragon/carrental-backend/internal/checkout"
	"github.com/angelmondragon/carrental-backend/internal/rentals"
	"github.com/angelmondragon/carrental-backend/internal/verification"
	pkgAuth "github.com/angelmondragon/carrental-backend/pkg/auth"
	"github.com/angelmondragon/carrental-backend/pkg/config"
	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	"github.com/angelmondragon/carrental-backend/pkg/logger"
	"github.com/angelmondragon/carrental-backend/pkg/metrics"
	"github.com/angelmondragon/carrental-backend/pkg/outbox"
	"github.com/angelmondragon/carrental-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type memoryRedis struct {
	data   map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string { return scope + "|" + id }

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.counts[scope]++
	return m.counts[scope] <= limit, m.counts[scope], nil
}

type stubVehicles struct{}

func (stubVehicles) FindByID(_ context.Context, id uuid.UUID) (*models.Vehicle, error) {
	return &models.Vehicle{ID: id}, nil
}

type stubChecker struct{}

func (stubChecker) Check(context.Context, uuid.UUID, availability.Window) (availability.Result, error) {
	return availability.Result{Available: true}, nil
}

type stubRentals struct {
	rentals.Service
	transitions int
}

func (s *stubRentals) ListMine(context.Context, pkgAuth.Actor, rentals.ListInput) (pagination.Page[models.Rental], error) {
	return pagination.Page[models.Rental]{}, nil
}

func (s *stubRentals) List(context.Context, pkgAuth.Actor, rentals.StaffListInput) (pagination.Page[models.Rental], error) {
	return pagination.Page[models.Rental]{}, nil
}

func (s *stubRentals) TransitionReservation(_ context.Context, _ pkgAuth.Actor, id uuid.UUID, to enums.RentalStatus, _ string) (*models.Rental, error) {
	s.transitions++
	return &models.Rental{ID: id, Status: to}, nil
}

func (s *stubRentals) History(context.Context, pkgAuth.Actor, uuid.UUID) ([]outbox.Entry, error) {
	return []outbox.Entry{}, nil
}

type stubCheckout struct {
	checkout.Service
	uploads int
}

func (s *stubCheckout) SubmitProof(_ context.Context, actor pkgAuth.Actor, id uuid.UUID, _ checkout.SubmitProofInput) (*checkout.ProofResult, error) {
	s.uploads++
	return &checkout.ProofResult{Rental: &models.Rental{ID: id, CustomerID: actor.ID, Status: enums.RentalStatusPendingVerification}}, nil
}

type stubVerification struct {
	verification.Service
}

func (stubVerification) ListPending(context.Context, pkgAuth.Actor) ([]verification.QueueItem, error) {
	return []verification.QueueItem{}, nil
}

func (stubVerification) ListAll(context.Context, pkgAuth.Actor, verification.PaymentListInput) (pagination.Page[models.PaymentRecord], error) {
	return pagination.Page[models.PaymentRecord]{}, nil
}

type fixture struct {
	handler  http.Handler
	cfg      *config.Config
	rentals  *stubRentals
	checkout *stubCheckout
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := &config.Config{
		App:      config.AppConfig{Env: "test"},
		JWT:      config.JWTConfig{Secret: "secret", Issuer: "carrental", ExpirationMinutes: 10},
		Payments: config.PaymentsConfig{MaxProofMB: 1, UploadWindow: time.Minute, UploadLimit: 2},
	}
	reg := prometheus.NewRegistry()
	m := metrics.NewRentalMetrics(reg)
	m.IncConflict()

	store := newMemoryRedis()
	rentalSvc := &stubRentals{}
	checkoutSvc := &stubCheckout{}
	handler := NewRouter(
		cfg,
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		reg,
		map[string]controllers.Pinger{"db": stubPinger{}},
		store,
		store,
		stubVehicles{},
		stubChecker{},
		rentalSvc,
		checkoutSvc,
		stubVerification{},
	)
	return fixture{handler: handler, cfg: cfg, rentals: rentalSvc, checkout: checkoutSvc}
}

func (f fixture) token(t *testing.T, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(f.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (f fixture) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func TestPublicRoutes(t *testing.T) {
	f := newFixture(t)

	if resp := f.do(httptest.NewRequest(http.MethodGet, "/health/live", nil), ""); resp.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", resp.Code)
	}
	if resp := f.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil), ""); resp.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", resp.Code)
	}
	resp := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "rental_booking_conflicts_total") {
		t.Fatalf("expected rental metrics exported, got %s", resp.Body.String())
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestAPIRequiresToken(t *testing.T) {
	f := newFixture(t)
	resp := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/rentals/mine", nil), "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCustomerRoutes(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, enums.ActorRoleCustomer)

	resp := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/rentals/mine", nil), token)
	if resp.Code != http.StatusOK {
		t.Fatalf("mine: expected 200 got %d", resp.Code)
	}

	url := "/api/v1/vehicles/" + uuid.NewString() + "/availability?pickup_at=2026-03-10T10:00:00Z&dropoff_at=2026-03-12T10:00:00Z"
	resp = f.do(httptest.NewRequest(http.MethodGet, url, nil), token)
	if resp.Code != http.StatusOK {
		t.Fatalf("availability: expected 200 got %d", resp.Code)
	}
}

func TestOperatorRoutesRequireStaff(t *testing.T) {
	f := newFixture(t)

	resp := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/operator/verifications", nil), f.token(t, enums.ActorRoleCustomer))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("customer: expected 403 got %d", resp.Code)
	}
	resp = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/operator/verifications", nil), f.token(t, enums.ActorRoleOperator))
	if resp.Code != http.StatusOK {
		t.Fatalf("operator: expected 200 got %d", resp.Code)
	}
	for _, path := range []string{"/api/v1/operator/rentals?status=booked", "/api/v1/operator/payments?outcome=pending"} {
		if resp := f.do(httptest.NewRequest(http.MethodGet, path, nil), f.token(t, enums.ActorRoleCustomer)); resp.Code != http.StatusForbidden {
			t.Fatalf("%s as customer: expected 403 got %d", path, resp.Code)
		}
		if resp := f.do(httptest.NewRequest(http.MethodGet, path, nil), f.token(t, enums.ActorRoleOperator)); resp.Code != http.StatusOK {
			t.Fatalf("%s as operator: expected 200 got %d: %s", path, resp.Code, resp.Body.String())
		}
	}
	resp = f.do(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/rentals/"+uuid.NewString()+"?reason=x", nil), f.token(t, enums.ActorRoleOperator))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("admin route as operator: expected 403 got %d", resp.Code)
	}
}

func TestOperatorTransitionReplaysByIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, enums.ActorRoleOperator)
	url := "/api/v1/operator/rentals/" + uuid.NewString() + "/transitions"

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(`{"status":"active"}`))
		req.Header.Set("Idempotency-Key", "op-1")
		if resp := f.do(req, token); resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d: %s", i, resp.Code, resp.Body.String())
		}
	}
	if f.rentals.transitions != 1 {
		t.Fatalf("expected one transition, got %d", f.rentals.transitions)
	}

	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(`{"status":"active"}`))
	if resp := f.do(req, token); resp.Code != http.StatusBadRequest {
		t.Fatalf("missing key: expected 400 got %d", resp.Code)
	}
}

func TestProofUploadIsRateLimited(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, enums.ActorRoleCustomer)
	url := "/api/v1/rentals/" + uuid.NewString() + "/payment-proof"

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		body := "--b\r\nContent-Disposition: form-data; name=\"proof\"; filename=\"p.png\"\r\nContent-Type: image/png\r\n\r\n" +
			fmt.Sprintf("png-%d", i) + "\r\n--b\r\nContent-Disposition: form-data; name=\"method\"\r\n\r\nbank_transfer\r\n--b--\r\n"
		req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
		req.Header.Set("Idempotency-Key", fmt.Sprintf("upload-%d", i))
		codes = append(codes, f.do(req, token).Code)
	}

	if codes[0] != http.StatusCreated || codes[1] != http.StatusCreated || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
	if f.checkout.uploads != 2 {
		t.Fatalf("expected two uploads to reach the service, got %d", f.checkout.uploads)
	}
}
