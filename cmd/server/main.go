// Command server runs the workshop chat-widget backend.
//
//	@title			Widget Leads API
//	@version		1.0
//	@description	Chat widget backend for car workshops: answers visitor questions and captures sales leads.
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-widget-leads/docs"
	"github.com/tbourn/go-widget-leads/internal/audit"
	"github.com/tbourn/go-widget-leads/internal/config"
	httpapi "github.com/tbourn/go-widget-leads/internal/http"
	"github.com/tbourn/go-widget-leads/internal/integrations/openai"
	"github.com/tbourn/go-widget-leads/internal/observability"
	"github.com/tbourn/go-widget-leads/internal/ratelimit"
	"github.com/tbourn/go-widget-leads/internal/repo"
	"github.com/tbourn/go-widget-leads/internal/services"
	"github.com/tbourn/go-widget-leads/internal/sysutil"
)

var version = "dev"

const shutdownGrace = 15 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.ConfigureLogger(cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("database")
	}

	limiter, closeLimiter, err := buildLimiter(ctx, cfg, db)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.RateLimit.Backend).Msg("rate limiter")
	}

	sink := audit.NewAsyncSink(db, cfg.AuditBuffer)

	var gen services.Generator
	if cfg.Generation.APIKey != "" {
		gen = openai.New(cfg.Generation.APIKey, cfg.Generation.BaseURL, openai.Options{
			Model:       cfg.Generation.Model,
			MaxTokens:   cfg.Generation.MaxTokens,
			Temperature: cfg.Generation.Temperature,
		})
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set; replies use the contact fallback")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: db, Limiter: limiter, Audit: sink, Generator: gen}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).
			Str("db", cfg.DBDriver).Str("limiter", cfg.RateLimit.Backend).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := sink.Close(sctx); err != nil {
		log.Error().Err(err).Msg("audit drain")
	}
	if err := closeLimiter(); err != nil {
		log.Error().Err(err).Msg("limiter close")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownOTel(sctx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
}

func openDB(ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	db, err := repo.Open(cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.OTEL.Enabled {
		if err := repo.UseTracing(db); err != nil {
			return nil, err
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, err
	}
	if cfg.SeedDemo {
		w, err := repo.SeedDemo(ctx, db)
		if err != nil {
			return nil, err
		}
		log.Info().Str("widget_id", w.ID).Str("key_prefix", audit.KeyPrefix(w.APIKey)).Msg("demo widget ready")
	}
	return db, nil
}

// buildLimiter returns the configured backend and a close func. The SQL
// backend also gets a purge loop bound to ctx.
func buildLimiter(ctx context.Context, cfg config.Config, db *gorm.DB) (ratelimit.Limiter, func() error, error) {
	noop := func() error { return nil }
	switch cfg.RateLimit.Backend {
	case "redis":
		rl, err := ratelimit.NewRedis(cfg.RateLimit.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rl.Ping(pctx); err != nil {
			_ = rl.Close()
			return nil, nil, err
		}
		return rl, rl.Close, nil
	case "memory":
		return ratelimit.NewMemory(nil), noop, nil
	default:
		sl := ratelimit.NewSQL(db, nil)
		if cfg.RateLimit.PurgeInterval > 0 {
			go purgeLoop(ctx, sl, cfg.RateLimit.PurgeInterval)
		}
		return sl, noop, nil
	}
}

func purgeLoop(ctx context.Context, sl *ratelimit.SQL, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := sl.Purge(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("rate limit purge")
				continue
			}
			log.Debug().Int64("deleted", n).Msg("rate limit buckets purged")
		}
	}
}
