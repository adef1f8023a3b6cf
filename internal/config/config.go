// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes the widget backend
// settings: server timeouts, storage, rate limiting budgets, the generation
// service, audit buffering and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-widget-leads")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
	Environment string  // DEPLOY_ENV (e.g. "staging"); empty omits the attribute
}

// Budget is a fixed-window allowance: Limit requests per Window.
type Budget struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig groups the shared limiter backend and its budgets.
type RateLimitConfig struct {
	Backend  string // sql|redis|memory
	RedisURL string // required when Backend == "redis"

	// PurgeInterval spaces deletions of expired SQL buckets; 0 disables.
	PurgeInterval time.Duration

	Message   Budget // per session (or IP) on the chat endpoint
	KeyLookup Budget // per IP on widget key resolution
	Config    Budget // per IP on the config endpoint

	// Edge token bucket (per client IP, in-process).
	EdgeRPS   float64
	EdgeBurst int
}

// GenerationConfig configures the external text generation service.
// An empty APIKey disables generation; replies then use the fallback text.
type GenerationConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path
	DatabaseURL string // postgres DSN
	SeedDemo    bool   // insert a demo company + widget on boot

	// PersistTimeout caps each lead/conversation write, tenant lookup and
	// rate limiter call, including the wait for the per-session lock.
	PersistTimeout time.Duration

	RateLimit  RateLimitConfig
	Generation GenerationConfig

	// Audit
	AuditBuffer int // queued events before drops

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBDriver:    strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:      getenv("DB_PATH", "widget.db"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		SeedDemo:    getbool("SEED_DEMO", false),

		RateLimit: RateLimitConfig{
			Backend:  strings.ToLower(getenv("RATE_LIMIT_BACKEND", "sql")),
			RedisURL: getenv("REDIS_URL", ""),

			PurgeInterval: getdur("RATE_LIMIT_PURGE_INTERVAL", 10*time.Minute),

			Message: Budget{
				Limit:  getint("MESSAGE_RATE_LIMIT", 5),
				Window: getdur("MESSAGE_RATE_WINDOW", 60*time.Second),
			},
			KeyLookup: Budget{
				Limit:  getint("KEY_LOOKUP_RATE_LIMIT", 20),
				Window: getdur("KEY_LOOKUP_RATE_WINDOW", 60*time.Second),
			},
			Config: Budget{
				Limit:  getint("CONFIG_RATE_LIMIT", 20),
				Window: getdur("CONFIG_RATE_WINDOW", 60*time.Second),
			},
			EdgeRPS:   getfloat("EDGE_RATE_RPS", 20),
			EdgeBurst: getint("EDGE_RATE_BURST", 40),
		},

		Generation: GenerationConfig{
			APIKey:      getenv("OPENAI_API_KEY", ""),
			BaseURL:     getenv("OPENAI_BASE_URL", ""),
			Model:       getenv("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens:   getint("OPENAI_MAX_TOKENS", 800),
			Temperature: getfloat("OPENAI_TEMPERATURE", 0.7),
			Timeout:     getdur("GENERATION_TIMEOUT", 15*time.Second),
		},

		PersistTimeout: getdur("PERSIST_TIMEOUT", 5*time.Second),

		AuditBuffer: getint("AUDIT_BUFFER", 256),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-widget-leads"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
			Environment: getenv("DEPLOY_ENV", ""),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DBDriver == "postgresql" || cfg.DBDriver == "pg" {
		cfg.DBDriver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL must be set when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	switch cfg.RateLimit.Backend {
	case "sql", "memory":
	case "redis":
		if strings.TrimSpace(cfg.RateLimit.RedisURL) == "" {
			return cfg, errors.New("REDIS_URL must be set when RATE_LIMIT_BACKEND=redis")
		}
	default:
		return cfg, errors.New("RATE_LIMIT_BACKEND must be one of: sql, redis, memory")
	}
	for name, b := range map[string]Budget{
		"MESSAGE_RATE":    cfg.RateLimit.Message,
		"KEY_LOOKUP_RATE": cfg.RateLimit.KeyLookup,
		"CONFIG_RATE":     cfg.RateLimit.Config,
	} {
		if b.Limit < 1 || b.Window <= 0 {
			return cfg, errors.New(name + "_LIMIT must be >= 1 and " + name + "_WINDOW > 0")
		}
	}
	if cfg.RateLimit.PurgeInterval < 0 {
		return cfg, errors.New("RATE_LIMIT_PURGE_INTERVAL must be >= 0")
	}
	if cfg.RateLimit.EdgeRPS < 0 {
		return cfg, errors.New("EDGE_RATE_RPS must be >= 0")
	}
	if cfg.RateLimit.EdgeBurst < 1 {
		return cfg, errors.New("EDGE_RATE_BURST must be >= 1")
	}
	if cfg.Generation.MaxTokens < 1 {
		return cfg, errors.New("OPENAI_MAX_TOKENS must be >= 1")
	}
	if cfg.Generation.Temperature < 0 || cfg.Generation.Temperature > 2 {
		return cfg, errors.New("OPENAI_TEMPERATURE must be in [0,2]")
	}
	if cfg.Generation.Timeout <= 0 {
		return cfg, errors.New("GENERATION_TIMEOUT must be > 0")
	}
	if cfg.PersistTimeout <= 0 {
		return cfg, errors.New("PERSIST_TIMEOUT must be > 0")
	}
	if cfg.AuditBuffer < 1 {
		return cfg, errors.New("AUDIT_BUFFER must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
