package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/carrental-backend/api/controllers"
	"github.com/angelmondragon/carrental-backend/api/middleware"
	"github.com/angelmondragon/carrental-backend/internal/checkout"
	"github.com/angelmondragon/carrental-backend/internal/rentals"
	"github.com/angelmondragon/carrental-backend/internal/verification"
	"github.com/angelmondragon/carrental-backend/pkg/config"
	"github.com/angelmondragon/carrental-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/carrental-backend/pkg/redis"
)

// json bodies are tiny; only the proof upload needs room
const jsonBodyLimit = 1 << 20

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	gatherer prometheus.Gatherer,
	healthDeps map[string]controllers.Pinger,
	redisStore pkgredis.IdempotencyStore,
	limiter pkgredis.RateLimiter,
	vehicles controllers.VehicleFinder,
	checker controllers.AvailabilityChecker,
	rentalService rentals.Service,
	checkoutService checkout.Service,
	verificationService verification.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, healthDeps))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	maxProof := cfg.Payments.MaxProofBytes()
	uploadPolicy := middleware.NewRateLimitPolicy("proof_upload", cfg.Payments.UploadWindow, cfg.Payments.UploadLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		// Customer routes. Visibility rules live in the services so staff
		// can read the same resources.
		r.Group(func(r chi.Router) {
			r.Use(middleware.LimitBody(jsonBodyLimit))
			r.Use(middleware.Idempotency(redisStore, logg))

			r.Get("/vehicles/{vehicleId}/availability", controllers.VehicleAvailability(vehicles, checker, logg))

			r.Post("/rentals", controllers.RentalInitiate(checkoutService, logg))
			r.Get("/rentals/mine", controllers.RentalsMine(rentalService, logg))
			r.Get("/rentals/{rentalId}", controllers.RentalGet(rentalService, logg))
			r.Get("/rentals/{rentalId}/quote", controllers.RentalQuote(checkoutService, logg))
			r.Put("/rentals/{rentalId}/renter", controllers.RentalRenterInfo(checkoutService, logg))
			r.Get("/rentals/{rentalId}/payment-instructions", controllers.RentalPaymentInstructions(checkoutService, logg))
			r.Get("/rentals/{rentalId}/payments", controllers.RentalPayments(verificationService, logg))

			r.Get("/payments/{paymentId}", controllers.PaymentGet(verificationService, logg))
			r.Get("/payments/{paymentId}/proof", controllers.PaymentProof(verificationService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(uploadPolicy, limiter, logg))
			r.Use(middleware.LimitBody(maxProof + jsonBodyLimit))
			r.Use(middleware.Idempotency(redisStore, logg))
			r.Post("/rentals/{rentalId}/payment-proof", controllers.RentalPaymentProof(checkoutService, maxProof, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireStaff(logg))
			r.Use(middleware.LimitBody(jsonBodyLimit))
			r.Use(middleware.Idempotency(redisStore, logg))
			r.Get("/operator/verifications", controllers.OperatorVerifications(verificationService, logg))
			r.Get("/operator/rentals", controllers.OperatorRentals(rentalService, logg))
			r.Get("/operator/payments", controllers.OperatorPayments(verificationService, logg))
			r.Post("/operator/rentals/{rentalId}/payments", controllers.OperatorRecordPayment(checkoutService, logg))
			r.Post("/operator/rentals/{rentalId}/verification", controllers.OperatorResolveVerification(verificationService, logg))
			r.Post("/operator/rentals/{rentalId}/transitions", controllers.OperatorTransition(rentalService, logg))
			r.Get("/operator/rentals/{rentalId}/history", controllers.OperatorHistory(rentalService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))
			r.Delete("/admin/rentals/{rentalId}", controllers.AdminDeleteRental(rentalService, logg))
			r.Get("/admin/users/{userId}/activity", controllers.AdminActorActivity(rentalService, logg))
		})
	})

	return r
}
