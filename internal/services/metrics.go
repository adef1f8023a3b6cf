package services

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-widget-leads/internal/config"
	"github.com/tbourn/go-widget-leads/internal/ratelimit"
)

var (
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_messages_total",
			Help: "Widget chat messages by pipeline outcome.",
		},
		[]string{"outcome"},
	)
	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_rate_limited_total",
			Help: "Requests rejected by a rate limit layer.",
		},
		[]string{"layer"},
	)
	generationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "widget_generation_failures_total",
			Help: "Replies that fell back because the generation service failed.",
		},
	)
	leadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_leads_total",
			Help: "Lead store decisions by action.",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(messagesTotal, rateLimitedTotal, generationFailuresTotal, leadsTotal)
}

// Rate limit layers, used as metric labels.
const (
	layerKeyLookup = "key_lookup"
	layerMessage   = "message"
	layerConfig    = "config"
)

// allow consumes one unit of budget b for key. Limiter failures, including
// a call that outlives timeout, are logged and let the request through.
func allow(ctx context.Context, l ratelimit.Limiter, key string, b config.Budget, layer string, timeout time.Duration) bool {
	if l == nil {
		return true
	}
	window := b.Window
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	ok, err := l.Allow(ctx, key, b.Limit, window)
	if err != nil {
		log.Error().Err(err).Str("layer", layer).Msg("rate limiter unavailable; allowing request")
		return true
	}
	if !ok {
		rateLimitedTotal.WithLabelValues(layer).Inc()
	}
	return ok
}
