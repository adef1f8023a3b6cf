// Package handlers defines HTTP-layer error codes used across the widget API.
//
// Codes are lowercase snake_case and stable: the widget script branches on
// them (for example to show a retry hint on rate_limited). Generic codes
// mirror HTTP status semantics; the rest name a pipeline rejection.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"

	// Widget pipeline:
	ErrCodeInvalidKey      = "invalid_widget_key"
	ErrCodeEmptyMessage    = "empty_message"
	ErrCodeWidgetNotFound  = "widget_not_found"
	ErrCodeKeyRateLimited  = "key_rate_limited"
	ErrCodeCompanyNotFound = "company_not_found"
)

// Visitor-facing sentences.
const (
	replyTechnical   = "Entschuldigung, es gab ein technisches Problem. Bitte versuchen Sie es später erneut."
	replyEmpty       = "Bitte geben Sie eine Nachricht ein."
	replyUnavailable = "Entschuldigung, dieser Chat-Service ist momentan nicht verfügbar."
	replyTooMany     = "Sie senden zu viele Nachrichten. Bitte warten Sie einen Moment und versuchen Sie es erneut."
	replyTooManyKey  = "Zu viele Anfragen. Bitte versuchen Sie es in einer Minute erneut."
	replyCompany     = "Entschuldigung, es gab ein Problem beim Laden der Firmeninformationen."
)
