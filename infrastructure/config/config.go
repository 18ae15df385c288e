package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Remote collaborators
	ScriptureAPIBaseURL  string
	AnnotationAPIBaseURL string
	RemoteTimeout        time.Duration

	// Neo4j configuration, used when the scripture source is the graph
	// database itself rather than the HTTP API
	ScriptureSource string // "http" or "neo4j"
	Neo4jURI        string
	Neo4jUsername   string
	Neo4jPassword   string

	// Authentication
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// Dynamic limits file watched at runtime; empty disables the watcher
	LimitsFile string

	// Logging
	LogLevel string

	// Feature flags
	EnableMetrics bool
	EnableCORS    bool
}

// LoadConfig loads configuration from the environment. A .env file in the
// working directory is read first when present; real environment variables
// win over it.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		ScriptureAPIBaseURL:  getEnv("SCRIPTURE_API_URL", "http://localhost:8000"),
		AnnotationAPIBaseURL: getEnv("ANNOTATION_API_URL", "http://localhost:8100"),
		RemoteTimeout:        getEnvDuration("REMOTE_TIMEOUT", 15*time.Second),

		ScriptureSource: getEnv("SCRIPTURE_SOURCE", "http"),
		Neo4jURI:        getEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUsername:   getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPassword:   getEnv("NEO4J_PASSWORD", ""),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "versegraph"),
		JWTAudience: getEnv("JWT_AUDIENCE", "versegraph-api"),

		LimitsFile: getEnv("LIMITS_FILE", ""),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
	}
	switch c.ScriptureSource {
	case "http", "neo4j":
	default:
		return fmt.Errorf("SCRIPTURE_SOURCE must be http or neo4j, got %q", c.ScriptureSource)
	}
	if c.ScriptureSource == "neo4j" && c.Neo4jPassword == "" && c.Environment == "production" {
		return fmt.Errorf("NEO4J_PASSWORD is required when SCRIPTURE_SOURCE=neo4j in production")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
