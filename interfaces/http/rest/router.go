package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"versegraph/application/services"
	"versegraph/infrastructure/config"
	"versegraph/interfaces/http/rest/handlers"
	"versegraph/interfaces/http/rest/middleware"
	"versegraph/pkg/auth"
)

// Router creates and configures the HTTP router
type Router struct {
	sessions    *services.SessionManager
	annotations *services.AnnotationService
	validator   *auth.JWTValidator
	ipLimiter   *auth.IPRateLimiter
	userLimiter *auth.UserRateLimiter
	cfg         *config.Config
	registry    *prometheus.Registry
	logger      *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	sessions *services.SessionManager,
	annotations *services.AnnotationService,
	validator *auth.JWTValidator,
	ipLimiter *auth.IPRateLimiter,
	userLimiter *auth.UserRateLimiter,
	cfg *config.Config,
	registry *prometheus.Registry,
	logger *zap.Logger,
) *Router {
	return &Router{
		sessions:    sessions,
		annotations: annotations,
		validator:   validator,
		ipLimiter:   ipLimiter,
		userLimiter: userLimiter,
		cfg:         cfg,
		registry:    registry,
		logger:      logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)

	if rt.cfg.EnableMetrics {
		router.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.ipLimiter, rt.userLimiter, rt.logger))

		graphHandler := handlers.NewGraphHandler(rt.sessions, rt.annotations, rt.logger)
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", graphHandler.CreateSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Delete("/", graphHandler.CloseSession)
				r.Get("/snapshot", graphHandler.Snapshot)
				r.Post("/load", graphHandler.LoadNeighborhood)
				r.Post("/focus", graphHandler.Focus)
				r.Delete("/focus", graphHandler.ClearFocus)
				r.Post("/expand", graphHandler.Expand)
				r.Post("/collapse", graphHandler.Collapse)
				r.Post("/drag", graphHandler.Drag)
				r.Put("/filter", graphHandler.SetFilter)
				r.Put("/hover", graphHandler.SetHover)
				r.Post("/refresh-categories", graphHandler.RefreshCategories)
			})
		})

		annotationHandler := handlers.NewAnnotationHandler(rt.annotations, rt.logger)
		r.Route("/annotations", func(r chi.Router) {
			r.Post("/", annotationHandler.Create)
			r.Get("/", annotationHandler.List)
			r.Put("/{annotationID}", annotationHandler.Update)
			r.Delete("/{annotationID}", annotationHandler.Delete)
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
