package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/carrental-backend/internal/checkout"
	"github.com/angelmondragon/carrental-backend/internal/pricing"
	"github.com/angelmondragon/carrental-backend/internal/rentals"
	"github.com/angelmondragon/carrental-backend/pkg/auth"
	"github.com/angelmondragon/carrental-backend/pkg/db/models"
	"github.com/angelmondragon/carrental-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carrental-backend/pkg/errors"
	"github.com/angelmondragon/carrental-backend/pkg/pagination"
)

func bookedRental(customerID uuid.UUID) *models.Rental {
	pickup := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)
	return &models.Rental{
		ID:             uuid.New(),
		CustomerID:     customerID,
		VehicleID:      uuid.New(),
		PickupAt:       pickup,
		DropoffAt:      pickup.Add(72 * time.Hour),
		PickupLocation: "Airport",
		Status:         enums.RentalStatusBooked,
	}
}

func TestRentalInitiateCreates(t *testing.T) {
	actor := customerActor()
	vehicleID := uuid.New()
	var captured checkout.InitiateInput

	svc := stubCheckoutService{initiate: func(a auth.Actor, in checkout.InitiateInput) (*checkout.InitiateResult, error) {
		captured = in
		rental := bookedRental(a.ID)
		rental.VehicleID = in.VehicleID
		return &checkout.InitiateResult{
			Rental: rental,
			Quote:  pricing.Quote{Days: 3, Total: decimal.RequireFromString("1926.00"), Currency: enums.CurrencyTHB},
		}, nil
	}}

	body := `{"vehicle_id":"` + vehicleID.String() + `","pickup_at":"2026-03-10T10:00:00Z","dropoff_at":"2026-03-13T10:00:00Z","pickup_location":"  Airport  "}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rentals", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "key-1")
	req = asActor(req, actor)
	resp := httptest.NewRecorder()
	RentalInitiate(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.IdempotencyKey != "key-1" || captured.VehicleID != vehicleID || captured.PickupLocation != "Airport" {
		t.Fatalf("unexpected service input %+v", captured)
	}

	var out initiateResponse
	if err := json.Unmarshal(decodeEnvelope(t, resp).Data, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if out.Rental.Status != enums.RentalStatusBooked || !out.Quote.Total.Equal(decimal.RequireFromString("1926.00")) {
		t.Fatalf("unexpected response %+v", out)
	}
}

func TestRentalInitiateReplayReturnsOK(t *testing.T) {
	svc := stubCheckoutService{initiate: func(a auth.Actor, in checkout.InitiateInput) (*checkout.InitiateResult, error) {
		return &checkout.InitiateResult{Rental: bookedRental(a.ID), Replayed: true}, nil
	}}
	body := `{"vehicle_id":"` + uuid.NewString() + `","pickup_at":"2026-03-10T10:00:00Z","dropoff_at":"2026-03-13T10:00:00Z"}`
	req := asActor(httptest.NewRequest(http.MethodPost, "/api/v1/rentals", strings.NewReader(body)), customerActor())
	resp := httptest.NewRecorder()
	RentalInitiate(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRentalInitiateValidatesBody(t *testing.T) {
	called := false
	svc := stubCheckoutService{initiate: func(auth.Actor, checkout.InitiateInput) (*checkout.InitiateResult, error) {
		called = true
		return nil, nil
	}}
	req := asActor(httptest.NewRequest(http.MethodPost, "/api/v1/rentals", strings.NewReader(`{"pickup_at":"2026-03-10T10:00:00Z"}`)), customerActor())
	resp := httptest.NewRecorder()
	RentalInitiate(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if called {
		t.Fatal("service should not run on invalid body")
	}
	env := decodeEnvelope(t, resp)
	if _, ok := env.Error.Details["vehicle_id"]; !ok {
		t.Fatalf("expected vehicle_id detail, got %v", env.Error.Details)
	}
}

func TestRentalInitiateMapsConflict(t *testing.T) {
	svc := stubCheckoutService{initiate: func(auth.Actor, checkout.InitiateInput) (*checkout.InitiateResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "vehicle is already booked for that window")
	}}
	body := `{"vehicle_id":"` + uuid.NewString() + `","pickup_at":"2026-03-10T10:00:00Z","dropoff_at":"2026-03-13T10:00:00Z"}`
	req := asActor(httptest.NewRequest(http.MethodPost, "/api/v1/rentals", strings.NewReader(body)), customerActor())
	resp := httptest.NewRecorder()
	RentalInitiate(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if env := decodeEnvelope(t, resp); env.Error.Code != string(pkgerrors.CodeConflict) {
		t.Fatalf("unexpected code %s", env.Error.Code)
	}
}

func TestRentalInitiateRequiresActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rentals", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	RentalInitiate(stubCheckoutService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRentalsMinePassesFilters(t *testing.T) {
	actor := customerActor()
	var captured rentals.ListInput
	svc := stubRentalService{listMine: func(a auth.Actor, in rentals.ListInput) (pagination.Page[models.Rental], error) {
		captured = in
		return pagination.Page[models.Rental]{Items: []models.Rental{*bookedRental(a.ID)}, NextCursor: "next"}, nil
	}}

	req := asActor(httptest.NewRequest(http.MethodGet, "/api/v1/rentals/mine?status=booked&limit=5&cursor=abc", nil), actor)
	resp := httptest.NewRecorder()
	RentalsMine(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Limit != 5 || captured.Cursor != "abc" || captured.Status == nil || *captured.Status != enums.RentalStatusBooked {
		t.Fatalf("unexpected list input %+v", captured)
	}
	var page pagination.Page[rentalResponse]
	if err := json.Unmarshal(decodeEnvelope(t, resp).Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Items) != 1 || page.NextCursor != "next" {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestRentalsMineRejectsUnknownStatus(t *testing.T) {
	req := asActor(httptest.NewRequest(http.MethodGet, "/api/v1/rentals/mine?status=parked", nil), customerActor())
	resp := httptest.NewRecorder()
	RentalsMine(stubRentalService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestRentalGetHidesForeignReservation(t *testing.T) {
	svc := stubRentalService{get: func(auth.Actor, uuid.UUID) (*models.Rental, error) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}}
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/rentals/"+id.String(), nil)
	req = withParams(asActor(req, customerActor()), map[string]string{"rentalId": id.String()})
	resp := httptest.NewRecorder()
	RentalGet(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestRentalGetRejectsMalformedID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/rentals/nope", nil)
	req = withParams(asActor(req, customerActor()), map[string]string{"rentalId": "nope"})
	resp := httptest.NewRecorder()
	RentalGet(stubRentalService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestRentalQuoteIncludesVehicle(t *testing.T) {
	actor := customerActor()
	rental := bookedRental(actor.ID)
	svc := stubCheckoutService{summary: func(auth.Actor, uuid.UUID) (*checkout.Summary, error) {
		return &checkout.Summary{
			Rental:  rental,
			Vehicle: &models.Vehicle{ID: rental.VehicleID, Brand: "Toyota", Model: "Yaris", LicensePlate: "1กข-1234"},
			Quote:   pricing.Quote{Days: 3, Total: decimal.RequireFromString("1926.00")},
		}, nil
	}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = withParams(asActor(req, actor), map[string]string{"rentalId": rental.ID.String()})
	resp := httptest.NewRecorder()
	RentalQuote(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var out summaryResponse
	if err := json.Unmarshal(decodeEnvelope(t, resp).Data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Vehicle.Model != "Yaris" || out.Quote.Days != 3 {
		t.Fatalf("unexpected summary %+v", out)
	}
}

func TestRentalRenterInfoParsesDate(t *testing.T) {
	var captured checkout.RenterInfo
	svc := stubCheckoutService{renter: func(_ auth.Actor, _ uuid.UUID, info checkout.RenterInfo) error {
		captured = info
		return nil
	}}
	id := uuid.New()
	body := `{"full_name":" Somchai Jaidee ","email":"somchai@example.com","phone":"+66812345678","license_number":"TH-12345","license_expires_on":"2030-01-31"}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req = withParams(asActor(req, customerActor()), map[string]string{"rentalId": id.String()})
	resp := httptest.NewRecorder()
	RentalRenterInfo(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.FullName != "Somchai Jaidee" {
		t.Fatalf("expected trimmed name, got %q", captured.FullName)
	}
	if !captured.LicenseExpiresOn.Equal(time.Date(2030, time.January, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected expiry %v", captured.LicenseExpiresOn)
	}
}

func TestRentalRenterInfoRejectsBadDate(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"license_expires_on":"31/01/2030"}`))
	req = withParams(asActor(req, customerActor()), map[string]string{"rentalId": id.String()})
	resp := httptest.NewRecorder()
	RentalRenterInfo(stubCheckoutService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if _, ok := decodeEnvelope(t, resp).Error.Details["license_expires_on"]; !ok {
		t.Fatal("expected license_expires_on detail")
	}
}
