// Widget HTTP handlers.
//
// This file exposes the endpoints the embeddable chat widget calls:
//   - POST /widget/chat    (process one visitor message)
//   - GET  /widget/config  (public widget configuration)
//
// Handlers are transport-thin: they bind the request, derive the caller's IP
// and user agent, delegate to the widget service and translate pipeline
// errors into status codes with a German sentence for the visitor.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-widget-leads/internal/domain"
	"github.com/tbourn/go-widget-leads/internal/services"
	"github.com/tbourn/go-widget-leads/internal/sysutil"
)

// HeaderWidgetKey carries the widget secret.
const HeaderWidgetKey = "X-Widget-Key"

//
// Service contracts (context-aware)
//

// WidgetService is the pipeline consumed by the widget handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type WidgetService interface {
	// HandleMessage runs one visitor message through the intake pipeline.
	HandleMessage(ctx context.Context, req services.ChatRequest) (*services.ChatResult, error)
	// Config returns the public configuration of the widget behind apiKey.
	Config(ctx context.Context, apiKey string, client services.Client) (*services.WidgetConfig, error)
}

//
// Handler wiring
//

// Handlers groups the widget endpoints.
type Handlers struct {
	widgetSvc WidgetService
}

// New constructs a Handlers instance bound to the given service.
func New(widgetSvc WidgetService) *Handlers {
	return &Handlers{widgetSvc: widgetSvc}
}

//
// DTOs
//

// HistoryMessage is one turn of client-held history.
type HistoryMessage struct {
	Role    string `json:"role" example:"user"`
	Content string `json:"content" example:"Was kostet ein Ölwechsel?"`
}

// ChatRequest is the JSON payload sent by the widget.
type ChatRequest struct {
	// Message is the visitor's text; markup is stripped server-side.
	Message string `json:"message" example:"Ich habe ein Problem mit den Bremsen, meine Email ist test@x.de"`
	// SessionID identifies the visitor's conversation.
	SessionID string `json:"sessionId" example:"sess_8f2c1a"`
	// VisitorData may carry name, email and phone from the widget form.
	VisitorData map[string]any `json:"visitorData,omitempty" swaggertype:"object,string"`
	// ConversationHistory is used only when the server has none stored.
	ConversationHistory []HistoryMessage `json:"conversationHistory,omitempty"`
}

// ChatResponse is the reply plus widget directives.
type ChatResponse struct {
	Response     string                  `json:"response" example:"Gerne! Für Bremsen bieten wir einen Bremsservice an."`
	WidgetConfig json.RawMessage         `json:"widget_config" swaggertype:"object"`
	QuickActions []domain.QuickAction    `json:"quick_actions"`
	CollectEmail bool                    `json:"collect_email"`
	CollectPhone bool                    `json:"collect_phone"`
	Company      services.CompanyContact `json:"company"`
}

// ConfigResponse is the public widget configuration.
type ConfigResponse struct {
	WidgetID    string          `json:"widget_id" example:"7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab"`
	CompanyName string          `json:"company_name" example:"Autohaus Muster"`
	Theme       json.RawMessage `json:"theme" swaggertype:"object"`
	Settings    json.RawMessage `json:"settings" swaggertype:"object"`
}

//
// Helpers
//

// clientInfo derives the caller identity used for limits and audit.
func clientInfo(c *gin.Context) services.Client {
	return services.Client{
		IP:        sysutil.ClientIP(c.GetHeader("CF-Connecting-IP"), c.GetHeader("X-Forwarded-For"), c.ClientIP()),
		UserAgent: sysutil.FirstNonEmpty(c.GetHeader("User-Agent"), "unknown"),
	}
}

// failPipeline maps service errors onto status codes and visitor sentences.
func failPipeline(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrMalformedKey):
		failWithReply(c, http.StatusBadRequest, ErrCodeInvalidKey, "widget key required", replyTechnical)
	case errors.Is(err, services.ErrEmptyMessage):
		failWithReply(c, http.StatusBadRequest, ErrCodeEmptyMessage, "message required", replyEmpty)
	case errors.Is(err, services.ErrKeyNotFound):
		failWithReply(c, http.StatusNotFound, ErrCodeWidgetNotFound, "widget not found or inactive", replyUnavailable)
	case errors.Is(err, services.ErrTenantProfileMissing):
		failWithReply(c, http.StatusNotFound, ErrCodeCompanyNotFound, "company not found", replyCompany)
	case errors.Is(err, services.ErrMessageRateLimited), errors.Is(err, services.ErrConfigRateLimited):
		c.Header("Retry-After", "60")
		failWithReply(c, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded", replyTooMany)
	case errors.Is(err, services.ErrKeyRateLimited):
		c.Header("Retry-After", "60")
		failWithReply(c, http.StatusTooManyRequests, ErrCodeKeyRateLimited, "key lookup rate limit exceeded", replyTooManyKey)
	default:
		_ = c.Error(err)
		failWithReply(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error", replyTechnical)
	}
}

//
// Handlers
//

// PostChat godoc
// @ID          postWidgetChat
// @Summary     Send a visitor message
// @Description Runs the message through rate limiting, sanitizing, tenant resolution, lead detection and reply generation.
// @Description When the generation service fails the reply is a fallback sentence with the company's phone and email.
// @Tags        Widget
// @Accept      json
// @Produce     json
//
// @Param       X-Widget-Key  header  string                 true  "Widget secret key"  example(wk_demo_0123456789abcdef)
// @Param       body          body    handlers.ChatRequest   true  "Visitor message"
//
// @Success     200  {object}  handlers.ChatResponse   "Reply and widget directives"
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed key or empty message"
// @Failure     404  {object}  handlers.ErrorResponse  "Widget or company not found"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /widget/chat [post]
func (h *Handlers) PostChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failWithReply(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body", replyEmpty)
		return
	}

	history := make([]domain.ChatMessage, 0, len(req.ConversationHistory))
	for _, m := range req.ConversationHistory {
		history = append(history, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}

	res, err := h.widgetSvc.HandleMessage(c.Request.Context(), services.ChatRequest{
		APIKey:    c.GetHeader(HeaderWidgetKey),
		SessionID: req.SessionID,
		Message:   req.Message,
		Visitor:   req.VisitorData,
		History:   history,
		Client:    clientInfo(c),
	})
	if err != nil {
		failPipeline(c, err)
		return
	}

	d := res.Directives
	ok(c, http.StatusOK, ChatResponse{
		Response:     res.Reply,
		WidgetConfig: d.WidgetConfig,
		QuickActions: d.QuickActions,
		CollectEmail: d.CollectEmail,
		CollectPhone: d.CollectPhone,
		Company:      d.Company,
	})
}

// GetConfig godoc
// @ID          getWidgetConfig
// @Summary     Get widget configuration
// @Description Returns theme and settings for the widget. The key may be sent as header or `key` query parameter.
// @Tags        Widget
// @Produce     json
//
// @Param       X-Widget-Key  header  string  false  "Widget secret key"
// @Param       key           query   string  false  "Widget secret key (alternative to the header)"
//
// @Success     200  {object}  handlers.ConfigResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed key"
// @Failure     404  {object}  handlers.ErrorResponse  "Widget not found"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /widget/config [get]
func (h *Handlers) GetConfig(c *gin.Context) {
	key := sysutil.FirstNonEmpty(c.GetHeader(HeaderWidgetKey), c.Query("key"))

	cfg, err := h.widgetSvc.Config(c.Request.Context(), key, clientInfo(c))
	if err != nil {
		failPipeline(c, err)
		return
	}
	ok(c, http.StatusOK, ConfigResponse{
		WidgetID:    cfg.WidgetID,
		CompanyName: cfg.CompanyName,
		Theme:       cfg.Theme,
		Settings:    cfg.Settings,
	})
}
