package di

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"versegraph/application/ports"
	"versegraph/application/services"
	domainconfig "versegraph/domain/config"
	domainservices "versegraph/domain/services"
	"versegraph/infrastructure/annotationapi"
	"versegraph/infrastructure/config"
	"versegraph/infrastructure/neo4jstore"
	"versegraph/infrastructure/scriptureapi"
	"versegraph/pkg/auth"
	"versegraph/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config          *config.Config
	DomainConfig    *domainconfig.DomainConfig
	Logger          *zap.Logger
	Registry        *prometheus.Registry
	Metrics         *observability.Metrics
	JWTValidator    *auth.JWTValidator
	IPLimiter       *auth.IPRateLimiter
	UserLimiter     *auth.UserRateLimiter
	ScriptureReader ports.ScriptureReader
	AnnotationStore ports.AnnotationStore
	Sessions        *services.SessionManager
	Annotations     *services.AnnotationService
	LimitsWatcher   *config.LimitsWatcher
}

// Shutdown releases container resources
func (c *Container) Shutdown() {
	c.Sessions.Shutdown()
	c.IPLimiter.Close()
	c.UserLimiter.Close()
	if c.LimitsWatcher != nil {
		c.LimitsWatcher.Close()
	}
	if closer, ok := c.ScriptureReader.(interface{ Close() error }); ok {
		closer.Close()
	}
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideDomainConfig loads the environment-appropriate business rules
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	return domainconfig.LoadDomainConfig(cfg.Environment)
}

// ProvideRegistry creates the Prometheus registry with process collectors
func ProvideRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// ProvideMetrics registers the application instruments
func ProvideMetrics(registry *prometheus.Registry) *observability.Metrics {
	return observability.NewMetrics(registry)
}

// ProvideJWTValidator creates the token validator
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		secret = "development-secret-change-in-production"
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: secret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
	})
}

// Per-caller request budgets for the public API
const (
	ipRequestsPerMinute   = 300
	userRequestsPerMinute = 600
)

// ProvideIPRateLimiter creates the per-IP request limiter
func ProvideIPRateLimiter() *auth.IPRateLimiter {
	return auth.NewIPRateLimiter(ipRequestsPerMinute)
}

// ProvideUserRateLimiter creates the per-user request limiter
func ProvideUserRateLimiter() *auth.UserRateLimiter {
	return auth.NewUserRateLimiter(userRequestsPerMinute)
}

// ProvideScriptureReader selects the configured scripture source
func ProvideScriptureReader(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (ports.ScriptureReader, error) {
	switch cfg.ScriptureSource {
	case "neo4j":
		return neo4jstore.NewScriptureStore(cfg.Neo4jURI, cfg.Neo4jUsername, cfg.Neo4jPassword, logger)
	case "http":
		return scriptureapi.NewClient(cfg.ScriptureAPIBaseURL, cfg.RemoteTimeout, logger, metrics), nil
	default:
		return nil, fmt.Errorf("unknown scripture source %q", cfg.ScriptureSource)
	}
}

// ProvideAnnotationStore creates the remote annotation client
func ProvideAnnotationStore(cfg *config.Config, logger *zap.Logger) ports.AnnotationStore {
	return annotationapi.NewClient(cfg.AnnotationAPIBaseURL, cfg.RemoteTimeout, logger)
}

// ProvideVisibilityService creates the visible-subset computer
func ProvideVisibilityService(domainCfg *domainconfig.DomainConfig) *domainservices.VisibilityService {
	return domainservices.NewVisibilityService(domainCfg)
}

// ProvideSessionManager creates the per-session graph registry
func ProvideSessionManager(
	reader ports.ScriptureReader,
	visibility *domainservices.VisibilityService,
	domainCfg *domainconfig.DomainConfig,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *services.SessionManager {
	return services.NewSessionManager(reader, visibility, domainCfg, logger, metrics)
}

// ProvideAnnotationService creates the knowledge-card service
func ProvideAnnotationService(
	store ports.AnnotationStore,
	domainCfg *domainconfig.DomainConfig,
	logger *zap.Logger,
) *services.AnnotationService {
	return services.NewAnnotationService(store, domainCfg, logger)
}

// ProvideLimitsWatcher starts the dynamic limits watcher when configured.
// Reloads go through the session manager's copy-on-write swap, so they take
// effect for sessions created after the reload; live sessions keep the
// snapshot they were created with.
func ProvideLimitsWatcher(cfg *config.Config, sessions *services.SessionManager, logger *zap.Logger) (*config.LimitsWatcher, error) {
	if cfg.LimitsFile == "" {
		return nil, nil
	}
	return config.NewLimitsWatcher(cfg.LimitsFile, func(limits config.Limits) {
		sessions.UpdateConfig(func(domainCfg *domainconfig.DomainConfig) {
			if limits.MaxNodesPerSession > 0 {
				domainCfg.MaxNodesPerSession = limits.MaxNodesPerSession
			}
			if limits.MaxEdgesPerSession > 0 {
				domainCfg.MaxEdgesPerSession = limits.MaxEdgesPerSession
			}
			if limits.DefaultPageSize > 0 {
				domainCfg.DefaultPageSize = limits.DefaultPageSize
			}
			if limits.MaxPageSize > 0 {
				domainCfg.MaxPageSize = limits.MaxPageSize
			}
		})
	}, logger)
}
