// Package services defines the business logic of the widget intake pipeline:
// tenant resolution, lead and conversation persistence, reply orchestration.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Tenant resolution errors.
var (
	// ErrMalformedKey is returned when the widget key is absent or shorter
	// than MinKeyLength.
	ErrMalformedKey = errors.New("widget key is malformed")

	// ErrKeyNotFound indicates that no active widget uses the given key.
	ErrKeyNotFound = errors.New("widget key not found")

	// ErrKeyRateLimited is returned when the caller exhausted the key lookup
	// budget for its IP.
	ErrKeyRateLimited = errors.New("key lookup rate limited")

	// ErrTenantProfileMissing indicates that the widget points at a company
	// that no longer exists. There is no contact data to fall back on.
	ErrTenantProfileMissing = errors.New("tenant profile missing")
)

// Message pipeline errors.
var (
	// ErrEmptyMessage is returned when the message is blank after sanitizing.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageRateLimited is returned when the session (or IP) exhausted
	// its message budget.
	ErrMessageRateLimited = errors.New("message rate limited")

	// ErrConfigRateLimited is returned when the IP exhausted the config
	// endpoint budget.
	ErrConfigRateLimited = errors.New("config lookup rate limited")

	// ErrConversationConflict is returned when the versioned conversation
	// update kept losing to concurrent writers.
	ErrConversationConflict = errors.New("conversation update conflict")

	// ErrLeadConflict is returned when the versioned lead merge kept losing
	// to concurrent writers.
	ErrLeadConflict = errors.New("lead update conflict")
)
