// Package handlers provides HTTP handler implementations for the widget API.
//
// This file defines the response utilities shared by all endpoints. Every
// failure is a JSON envelope with a stable `code`, a short English `error`
// and, where the widget shows it to a visitor, a German `response` sentence.
// Internal error details never reach the client; 5xx causes are logged with
// the request-scoped logger instead.
//
// Example error response:
//
//	HTTP/1.1 429 Too Many Requests
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "rate_limited",
//	  "error": "rate limit exceeded",
//	  "response": "Sie senden zu viele Nachrichten. Bitte warten Sie einen Moment und versuchen Sie es erneut."
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-widget-leads/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"widget_not_found"`
	// Short description for integrators
	Error string `json:"error" example:"widget not found"`
	// Sentence the widget may show to the visitor
	Response string `json:"response,omitempty" example:"Entschuldigung, dieser Chat-Service ist momentan nicht verfügbar."`
}

// fail aborts the request with a structured error. Server errors (>=500)
// are logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	failWithReply(c, status, code, msg, "")
}

// failWithReply is fail plus a visitor-facing sentence.
func failWithReply(c *gin.Context, status int, code, msg, reply string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Error:     msg,
		Response:  reply,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
