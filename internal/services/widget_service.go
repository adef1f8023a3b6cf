// Package services – WidgetService
//
// This file implements the two widget endpoints end to end. HandleMessage
// runs the intake pipeline:
//
//	rate limit → sanitize → resolve tenant → extract + score → lead upsert
//	→ reply (generation or fallback) → append exchange
//
// Only validation, throttling and tenant resolution produce errors. Lead and
// conversation persistence are best effort and generation failures fall
// back, so a resolved tenant always gets a reply.
package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-widget-leads/internal/audit"
	"github.com/tbourn/go-widget-leads/internal/config"
	"github.com/tbourn/go-widget-leads/internal/domain"
	"github.com/tbourn/go-widget-leads/internal/leads"
	"github.com/tbourn/go-widget-leads/internal/ratelimit"
	"github.com/tbourn/go-widget-leads/internal/sanitize"
)

// ChatRequest is one inbound widget message, still unsanitized.
type ChatRequest struct {
	APIKey    string
	SessionID string
	Message   string
	Visitor   map[string]any
	History   []domain.ChatMessage // client-held history, used when none is stored
	Client    Client
}

// ChatResult is the pipeline's answer.
type ChatResult struct {
	Reply      string
	Directives Directives
	Fallback   bool
	LeadID     string
	LeadAction LeadAction
}

// WidgetConfig is the public configuration of a widget.
type WidgetConfig struct {
	WidgetID    string          `json:"widget_id"`
	CompanyName string          `json:"company_name"`
	Theme       json.RawMessage `json:"theme"`
	Settings    json.RawMessage `json:"settings"`
}

// WidgetService wires the pipeline stages together.
type WidgetService struct {
	Auth          *TenantAuthenticator
	Leads         *LeadStore
	Conversations *ConversationStore
	Orchestrator  *ResponseOrchestrator
	Limiter       ratelimit.Limiter
	Audit         audit.Sink

	// MessageBudget throttles chat messages per session (or IP).
	MessageBudget config.Budget
	// ConfigBudget throttles config lookups per IP.
	ConfigBudget config.Budget
	// LimiterTimeout caps each rate limiter call; zero means no cap.
	LimiterTimeout time.Duration

	// Now stamps stored messages; defaults to time.Now.
	Now func() time.Time
}

// HandleMessage processes one visitor message.
//
// Errors: ErrMessageRateLimited, ErrEmptyMessage and everything
// TenantAuthenticator.Resolve returns.
func (s *WidgetService) HandleMessage(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	tr := otel.Tracer("services/WidgetService")
	ctx, span := tr.Start(ctx, "HandleMessage", trace.WithAttributes(
		attribute.Int("message.len", len(req.Message)),
	))
	defer span.End()

	sessionID := sanitize.SessionID(req.SessionID)
	req.Client.Endpoint = EndpointChat

	limitKey := "msg:" + sessionID
	if sessionID == "" {
		limitKey = "msg:ip:" + req.Client.IP
	}
	if !allow(ctx, s.Limiter, limitKey, s.MessageBudget, layerMessage, s.LimiterTimeout) {
		s.sink().Record(audit.Event{
			Type:      audit.MessageRateLimited,
			IP:        req.Client.IP,
			UserAgent: req.Client.UserAgent,
			Details:   map[string]any{"key_prefix": audit.KeyPrefix(req.APIKey), "has_session": sessionID != ""},
		})
		messagesTotal.WithLabelValues("rate_limited").Inc()
		span.SetStatus(codes.Error, "rate limited")
		return nil, ErrMessageRateLimited
	}

	message := sanitize.Message(req.Message)
	visitor := sanitizeVisitor(req.Visitor)

	tc, err := s.Auth.Resolve(ctx, req.APIKey, req.Client)
	if err != nil {
		messagesTotal.WithLabelValues("rejected").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if message == "" {
		messagesTotal.WithLabelValues("empty").Inc()
		return nil, ErrEmptyMessage
	}
	widgetID := tc.Widget.ID
	span.SetAttributes(attribute.String("widget.id", widgetID))
	if sessionID == "" {
		// Without a session there is nothing to merge into; the exchange is
		// answered but not stored.
		log.Debug().Str("widget_id", widgetID).Msg("message without session id")
	}

	s.sink().Record(audit.Event{
		Type:      audit.ChatMessageProcessed,
		WidgetID:  widgetID,
		IP:        req.Client.IP,
		UserAgent: req.Client.UserAgent,
		Details:   map[string]any{"message_length": len([]rune(message)), "has_visitor_data": visitor["email"] != ""},
	})

	info := leads.Extract(message)
	score := leads.Score(info, message)

	res := &ChatResult{LeadAction: LeadSkipped}
	if sessionID != "" {
		lead, action, err := s.Leads.Upsert(ctx, LeadInput{
			CompanyID: tc.Company.ID,
			SessionID: sessionID,
			Info:      withVisitorContact(info, visitor),
			Score:     score,
			Message:   message,
		})
		if err != nil {
			log.Error().Err(err).Str("widget_id", widgetID).Str("session_id", sessionID).Msg("lead upsert failed")
		} else {
			res.LeadAction = action
			if lead != nil {
				res.LeadID = lead.ID
			}
		}
	}
	leadsTotal.WithLabelValues(string(res.LeadAction)).Inc()

	history := sanitizeHistory(req.History)
	if sessionID != "" {
		stored, err := s.Conversations.History(ctx, widgetID, sessionID, 0)
		if err != nil {
			log.Error().Err(err).Str("widget_id", widgetID).Msg("conversation history unavailable")
		} else if len(stored) > 0 {
			history = stored
		}
	}

	userAt := s.now()
	reply := s.Orchestrator.Handle(ctx, tc, sessionID, message, history)
	res.Reply, res.Directives, res.Fallback = reply.Text, reply.Directives, reply.Fallback

	if sessionID != "" {
		_, err := s.Conversations.AppendExchange(ctx, Exchange{
			WidgetID:  widgetID,
			SessionID: sessionID,
			Visitor:   visitor,
			User:      domain.ChatMessage{Role: domain.RoleUser, Content: message, Timestamp: userAt},
			Bot:       domain.ChatMessage{Role: domain.RoleAssistant, Content: reply.Text, Timestamp: s.now()},
			LeadID:    res.LeadID,
		})
		if err != nil {
			log.Error().Err(err).Str("widget_id", widgetID).Str("session_id", sessionID).Msg("conversation not stored")
		}
	}

	outcome := "replied"
	if reply.Fallback {
		outcome = "fallback"
	}
	messagesTotal.WithLabelValues(outcome).Inc()
	return res, nil
}

// Config returns the public configuration of the widget behind apiKey.
//
// Errors: ErrConfigRateLimited and everything TenantAuthenticator.Resolve
// returns.
func (s *WidgetService) Config(ctx context.Context, apiKey string, client Client) (*WidgetConfig, error) {
	tr := otel.Tracer("services/WidgetService")
	ctx, span := tr.Start(ctx, "Config")
	defer span.End()

	client.Endpoint = EndpointConfig
	if !allow(ctx, s.Limiter, "cfg:"+client.IP, s.ConfigBudget, layerConfig, s.LimiterTimeout) {
		s.sink().Record(audit.Event{
			Type:      audit.ConfigRateLimited,
			IP:        client.IP,
			UserAgent: client.UserAgent,
		})
		span.SetStatus(codes.Error, "rate limited")
		return nil, ErrConfigRateLimited
	}

	tc, err := s.Auth.Resolve(ctx, sanitize.Text(apiKey), client)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.sink().Record(audit.Event{
		Type:      audit.WidgetConfigAccessed,
		WidgetID:  tc.Widget.ID,
		IP:        client.IP,
		UserAgent: client.UserAgent,
	})

	return &WidgetConfig{
		WidgetID:    tc.Widget.ID,
		CompanyName: tc.Company.CompanyName,
		Theme:       rawOrNull(tc.Widget.Theme),
		Settings:    rawOrNull(tc.Widget.Settings),
	}, nil
}

func (s *WidgetService) sink() audit.Sink {
	if s.Audit == nil {
		return audit.Discard{}
	}
	return s.Audit
}

func (s *WidgetService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// sanitizeVisitor keeps the known visitor fields, sanitized. Invalid emails
// are dropped.
func sanitizeVisitor(in map[string]any) map[string]string {
	out := map[string]string{}
	if v := sanitize.Name(sanitize.Value(in["name"])); v != "" {
		out["name"] = v
	}
	if v := sanitize.Email(sanitize.Value(in["email"])); v != "" {
		out["email"] = v
	}
	if v := sanitize.Phone(sanitize.Value(in["phone"])); v != "" {
		out["phone"] = v
	}
	return out
}

// withVisitorContact fills contact fields the message did not reveal from
// the visitor form.
func withVisitorContact(info leads.Info, visitor map[string]string) leads.Info {
	if info.Name == "" {
		info.Name = visitor["name"]
	}
	if info.Email == "" {
		info.Email = visitor["email"]
	}
	if info.Phone == "" {
		info.Phone = visitor["phone"]
	}
	return info
}

func sanitizeHistory(in []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(in))
	for _, m := range in {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != domain.RoleUser && role != domain.RoleAssistant {
			continue
		}
		if c := sanitize.Message(m.Content); c != "" {
			out = append(out, domain.ChatMessage{Role: role, Content: c})
		}
	}
	return out
}

func rawOrNull(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return json.RawMessage("null")
	}
	return json.RawMessage(b)
}

// withTimeout bounds ctx by d. A non-positive d returns ctx unchanged.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
