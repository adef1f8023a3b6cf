// Package services – TenantAuthenticator
//
// This file resolves a widget secret key into the tenant context used by the
// rest of the pipeline. Every rejection is audited with a truncated key
// prefix only; the full secret never leaves this function.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-widget-leads/internal/audit"
	"github.com/tbourn/go-widget-leads/internal/config"
	"github.com/tbourn/go-widget-leads/internal/domain"
	"github.com/tbourn/go-widget-leads/internal/ratelimit"
	"github.com/tbourn/go-widget-leads/internal/repo"
)

// MinKeyLength is the shortest widget key worth a database lookup.
const MinKeyLength = 10

// Widget endpoints, as seen by the audit trail.
const (
	EndpointChat   = "chat"
	EndpointConfig = "config"
)

// Client identifies the caller of a widget endpoint.
type Client struct {
	IP        string
	UserAgent string
	Endpoint  string
}

// TenantContext is everything the pipeline needs about the resolved tenant.
type TenantContext struct {
	Widget   *domain.Widget
	Company  *domain.Company
	Settings domain.WidgetSettings
}

// TenantAuthenticator resolves widget keys. The key lookup carries its own
// per-IP budget, separate from the message limiter.
type TenantAuthenticator struct {
	DB        *gorm.DB
	Limiter   ratelimit.Limiter
	KeyLookup config.Budget
	Audit     audit.Sink

	// Timeout caps the limiter call and each storage read. Zero leaves
	// only the caller's deadline.
	Timeout time.Duration
}

// NewTenantAuthenticator wires a TenantAuthenticator. A nil sink discards
// audit events.
func NewTenantAuthenticator(db *gorm.DB, l ratelimit.Limiter, budget config.Budget, sink audit.Sink) *TenantAuthenticator {
	if sink == nil {
		sink = audit.Discard{}
	}
	return &TenantAuthenticator{DB: db, Limiter: l, KeyLookup: budget, Audit: sink}
}

// Resolve validates apiKey and loads the tenant behind it.
//
// Errors: ErrMalformedKey, ErrKeyRateLimited, ErrKeyNotFound,
// ErrTenantProfileMissing, or a wrapped storage error.
func (a *TenantAuthenticator) Resolve(ctx context.Context, apiKey string, client Client) (*TenantContext, error) {
	tr := otel.Tracer("services/TenantAuthenticator")
	ctx, span := tr.Start(ctx, "Resolve", trace.WithAttributes(
		attribute.String("key.prefix", audit.KeyPrefix(apiKey)),
	))
	defer span.End()

	apiKey = strings.TrimSpace(apiKey)
	if utf8.RuneCountInString(apiKey) < MinKeyLength {
		a.reject(audit.InvalidAPIKey, apiKey, client, "malformed")
		span.SetStatus(codes.Error, "malformed key")
		return nil, ErrMalformedKey
	}

	if !allow(ctx, a.Limiter, "key:"+client.IP, a.KeyLookup, layerKeyLookup, a.Timeout) {
		a.reject(audit.KeyLookupRateLimited, apiKey, client, "")
		span.SetStatus(codes.Error, "rate limited")
		return nil, ErrKeyRateLimited
	}

	lctx, cancel := withTimeout(ctx, a.Timeout)
	defer cancel()
	w, err := repo.FindActiveWidgetByKey(lctx, a.DB, apiKey)
	if errors.Is(err, repo.ErrNotFound) {
		eventType := audit.InvalidAPIKey
		if client.Endpoint == EndpointChat {
			eventType = audit.UnauthorizedChat
		}
		a.reject(eventType, apiKey, client, "not_found")
		span.SetStatus(codes.Error, "key not found")
		return nil, ErrKeyNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("widget.id", w.ID))

	pctx, cancelProfile := withTimeout(ctx, a.Timeout)
	defer cancelProfile()
	company, err := repo.LoadCompanyProfile(pctx, a.DB, w.CompanyID)
	if errors.Is(err, repo.ErrNotFound) {
		log.Error().Str("widget_id", w.ID).Str("company_id", w.CompanyID).Msg("widget points at missing company")
		span.SetStatus(codes.Error, "company missing")
		return nil, ErrTenantProfileMissing
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &TenantContext{Widget: w, Company: company, Settings: parseSettings(w)}, nil
}

func (a *TenantAuthenticator) reject(eventType, apiKey string, client Client, reason string) {
	details := map[string]any{"key_prefix": audit.KeyPrefix(apiKey)}
	if reason != "" {
		details["reason"] = reason
	}
	a.Audit.Record(audit.Event{
		Type:      eventType,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Details:   details,
	})
}

// parseSettings decodes the widget settings column. Unreadable settings
// fall back to collecting nothing.
func parseSettings(w *domain.Widget) domain.WidgetSettings {
	var s domain.WidgetSettings
	if len(w.Settings) == 0 {
		return s
	}
	if err := json.Unmarshal(w.Settings, &s); err != nil {
		log.Warn().Err(err).Str("widget_id", w.ID).Msg("unreadable widget settings")
		return domain.WidgetSettings{}
	}
	return s
}
