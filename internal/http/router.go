// Package httpapi wires the HTTP transport (Gin) to the widget pipeline,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, and edge throttling.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic router setup; all dependencies injected
//   - CORS open to tenant websites, since the widget is embedded anywhere
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-widget-leads/internal/audit"
	"github.com/tbourn/go-widget-leads/internal/config"
	"github.com/tbourn/go-widget-leads/internal/http/handlers"
	"github.com/tbourn/go-widget-leads/internal/http/middleware"
	"github.com/tbourn/go-widget-leads/internal/keylock"
	"github.com/tbourn/go-widget-leads/internal/ratelimit"
	"github.com/tbourn/go-widget-leads/internal/services"
)

// Deps are the long-lived collaborators of the widget pipeline. Limiter,
// Audit and Generator may be nil: the limiter then defaults to the SQL
// backend on DB, audit events are discarded and replies use the fallback.
type Deps struct {
	DB        *gorm.DB
	Limiter   ratelimit.Limiter
	Audit     audit.Sink
	Generator services.Generator
}

// maxBodyBytes caps request bodies; a chat message plus its client-side
// history fits comfortably.
const maxBodyBytes = 64 << 10

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the widget API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII and key scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip
//  7. Metrics
//  8. CORS and security headers
//  9. Edge token bucket per client IP (widget routes only)
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{handlers.HeaderWidgetKey},
		MaskQuery:   []string{"key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(maxBodyBytes))

	// 6) Compress replies
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics("/metrics", "/health"))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) CORS posture
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
		CrossOrigin:  true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(NewWidgetService(deps, cfg))

	// 9) Public widget API behind the edge throttle
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.NewRateLimiter(cfg.RateLimit.EdgeRPS, cfg.RateLimit.EdgeBurst, middleware.KeyByClientIP()).Handler())
	{
		api.POST("/widget/chat", h.PostChat)
		api.GET("/widget/config", h.GetConfig)
	}
}

// NewWidgetService assembles the intake pipeline from its collaborators.
// Lead and conversation stores share one striped lock table.
func NewWidgetService(deps Deps, cfg config.Config) *services.WidgetService {
	limiter := deps.Limiter
	if limiter == nil {
		limiter = ratelimit.NewSQL(deps.DB, nil)
	}
	sink := deps.Audit
	if sink == nil {
		sink = audit.Discard{}
	}
	locks := keylock.New(keylock.DefaultStripes)

	auth := services.NewTenantAuthenticator(deps.DB, limiter, cfg.RateLimit.KeyLookup, sink)
	auth.Timeout = cfg.PersistTimeout
	leadStore := services.NewLeadStore(deps.DB, locks)
	leadStore.Timeout = cfg.PersistTimeout
	convStore := services.NewConversationStore(deps.DB, locks)
	convStore.Timeout = cfg.PersistTimeout

	return &services.WidgetService{
		Auth:           auth,
		Leads:          leadStore,
		Conversations:  convStore,
		Orchestrator:   services.NewResponseOrchestrator(deps.Generator, cfg.Generation.Timeout),
		Limiter:        limiter,
		Audit:          sink,
		MessageBudget:  cfg.RateLimit.Message,
		ConfigBudget:   cfg.RateLimit.Config,
		LimiterTimeout: cfg.PersistTimeout,
	}
}

// corsMiddleware allows any origin when none is configured: every tenant
// site embedding the widget is a legitimate caller. Credentials are never
// allowed; the widget authenticates with X-Widget-Key.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", handlers.HeaderWidgetKey},
		ExposeHeaders:    []string{"X-Request-ID", "Retry-After", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO: * even without an Origin header (health checks, curl).
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps the request body size to maxBytes using
// http.MaxBytesReader; oversized bodies fail JSON binding downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
