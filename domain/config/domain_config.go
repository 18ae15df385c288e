package config

import "time"

// DimPolicy controls what happens to nodes outside the focus closure
type DimPolicy string

const (
	DimPolicyDim  DimPolicy = "dim"
	DimPolicyHide DimPolicy = "hide"
)

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Graph constraints
	MaxNodesPerSession int
	MaxEdgesPerSession int

	// Neighborhood loading
	DefaultPageSize int
	MaxPageSize     int

	// Focus resolution
	// Number of adjacent-chapter retries after the direct page load fails
	FocusRetryLimit int

	// Layout
	BaseSpacing   float64
	MinSpacing    float64
	MaxSpacing    float64
	JitterFactor  float64
	DensityDenom  float64
	FallbackGridX float64
	FallbackGridY float64

	// Visibility
	DimPolicy DimPolicy

	// Annotation constraints
	MaxTitleLength   int
	MaxBodyLength    int
	MaxTagsPerCard   int
	MinTitleLength   int
	AllowEmptyBodies bool

	// Time constraints
	SessionIdleTimeout time.Duration
	RemoteCallTimeout  time.Duration
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxNodesPerSession: 10000,
		MaxEdgesPerSession: 50000,

		DefaultPageSize: 100,
		MaxPageSize:     500,

		FocusRetryLimit: 2,

		// Circular placement: radius starts from observed spacing (or
		// BaseSpacing when too few nodes exist), clamped to
		// [0.8*BaseSpacing, MaxSpacing], scaled by sqrt(N/DensityDenom).
		BaseSpacing:   250,
		MinSpacing:    200,
		MaxSpacing:    400,
		JitterFactor:  0.1,
		DensityDenom:  4,
		FallbackGridX: 120,
		FallbackGridY: 80,

		DimPolicy: DimPolicyDim,

		MaxTitleLength:   200,
		MaxBodyLength:    20000,
		MaxTagsPerCard:   20,
		MinTitleLength:   1,
		AllowEmptyBodies: true,

		SessionIdleTimeout: 2 * time.Hour,
		RemoteCallTimeout:  15 * time.Second,
	}
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	cfg := DefaultDomainConfig()

	cfg.MaxNodesPerSession = 100000
	cfg.MaxEdgesPerSession = 500000
	cfg.SessionIdleTimeout = 24 * time.Hour

	return cfg
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}
