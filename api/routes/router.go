package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/allocations-backend/api/controllers"
	"github.com/angelmondragon/allocations-backend/api/middleware"
	"github.com/angelmondragon/allocations-backend/internal/allocations"
	"github.com/angelmondragon/allocations-backend/internal/audience"
	"github.com/angelmondragon/allocations-backend/internal/overrides"
	"github.com/angelmondragon/allocations-backend/internal/tiers"
	"github.com/angelmondragon/allocations-backend/pkg/config"
	"github.com/angelmondragon/allocations-backend/pkg/logger"
	"github.com/angelmondragon/allocations-backend/pkg/redis"
	"github.com/angelmondragon/allocations-backend/pkg/reporting"
)

// NewRouter mounts the console API. redisClient, reportingClient, resolver and
// metricsHandler may be nil; the routes that depend on them degrade accordingly.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	allocationService allocations.Service,
	tierService tiers.Service,
	overrideService overrides.Service,
	resolver audience.MemberResolver,
	reportingClient *reporting.Client,
) http.Handler {
	var (
		idempotencyStore redis.IdempotencyStore
		limiter          redis.RateLimiter
		redisPinger      controllers.Pinger
	)
	if redisClient != nil {
		idempotencyStore = redisClient
		limiter = redisClient
		redisPinger = redisClient
	}

	reportingHandler := controllers.ReportingProxy(nil, logg)
	if reportingClient != nil {
		reportingHandler = controllers.ReportingProxy(reportingClient, logg)
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisPinger, logg))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	reportingPolicy := middleware.NewRateLimitPolicy(
		"reporting",
		cfg.Reporting.RateLimitWindow,
		cfg.Reporting.RateLimit,
	)

	// Idempotency runs per route so the chi route pattern is complete when the
	// middleware matches it.
	idem := middleware.Idempotency(idempotencyStore, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireWriter(logg))

		r.Route("/allocations", func(r chi.Router) {
			r.Get("/", controllers.ListAllocations(allocationService, logg))
			r.With(idem).Post("/", controllers.CreateAllocation(allocationService, logg))
			r.Route("/{allocationId}", func(r chi.Router) {
				r.Get("/", controllers.GetAllocation(allocationService, logg))
				r.Patch("/", controllers.UpdateAllocation(allocationService, logg))
				r.Delete("/", controllers.DeleteAllocation(allocationService, logg))
				r.Post("/status", controllers.TransitionAllocationStatus(allocationService, logg))
				r.Get("/overview", controllers.AllocationOverview(allocationService, logg))
				r.Get("/products", controllers.ListAllocationProducts(allocationService, logg))
				r.With(idem).Post("/products", controllers.AddAllocationProduct(allocationService, logg))
				r.Get("/tiers", controllers.ListTiers(tierService, logg))
				r.With(idem).Post("/tiers", controllers.CreateTier(tierService, logg))
			})
		})

		r.Route("/tiers/{tierId}", func(r chi.Router) {
			r.Get("/", controllers.GetTier(tierService, logg))
			r.Delete("/", controllers.DeleteTier(tierService, logg))
			r.Get("/customers", controllers.TierCustomers(tierService, logg))
			r.With(idem).Post("/sources", controllers.AddTierSources(tierService, logg))
			r.Delete("/sources/{kind}/{sourceId}", controllers.RemoveTierSource(tierService, logg))
			r.Get("/overrides", controllers.GetTierBundle(overrideService, logg))
			r.With(idem).Put("/overrides", controllers.SaveTierBundle(overrideService, logg))
			r.Get("/product-overrides", controllers.ListProductOverrides(overrideService, logg))
			r.With(idem).Put("/product-overrides", controllers.SaveProductOverrides(overrideService, logg))
			r.With(idem).Put("/product-overrides/{productId}", controllers.SetProductOverride(overrideService, logg))
			r.Get("/effective", controllers.EffectiveTierTerms(overrideService, logg))
		})

		r.Post("/audience/estimate", controllers.EstimateAudience(resolver, logg))

		r.Route("/reporting", func(r chi.Router) {
			r.Use(middleware.RateLimit(reportingPolicy, limiter, logg))
			r.Get("/", controllers.ListReportingOperations())
			r.Get("/{operation}", reportingHandler)
		})
	})

	return r
}
