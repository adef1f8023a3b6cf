// Package audit records security-relevant events (rejected keys, throttled
// callers, processed messages) without ever blocking the request path.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-widget-leads/internal/domain"
	"github.com/tbourn/go-widget-leads/internal/repo"
)

// Event types.
const (
	InvalidAPIKey        = "invalid_api_key"
	UnauthorizedChat     = "unauthorized_chat_attempt"
	KeyLookupRateLimited = "key_lookup_rate_limited"
	MessageRateLimited   = "message_rate_limited"
	ChatMessageProcessed = "chat_message_processed"
	WidgetConfigAccessed = "widget_config_accessed"
	ConfigRateLimited    = "widget_config_rate_limited"
)

// Event is one audit entry before persistence.
type Event struct {
	Type      string
	WidgetID  string
	IP        string
	UserAgent string
	Details   map[string]any
}

// Sink accepts events fire-and-forget. Record must not block.
type Sink interface {
	Record(e Event)
}

// Discard drops every event.
type Discard struct{}

// Record implements Sink.
func (Discard) Record(Event) {}

var droppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "audit_events_dropped_total",
	Help: "Audit events dropped because the buffer was full or the sink closed.",
})

func init() {
	prometheus.MustRegister(droppedTotal)
}

// KeyPrefix returns the first five characters of key followed by "***".
// Full keys are never written to the audit trail.
func KeyPrefix(key string) string {
	r := []rune(key)
	if len(r) > 5 {
		r = r[:5]
	}
	return string(r) + "***"
}

// AsyncSink persists events from a buffered channel on one background
// goroutine. A full buffer drops the event.
type AsyncSink struct {
	db           *gorm.DB
	ch           chan Event
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncSink starts the writer goroutine. buffer <= 0 defaults to 256.
func NewAsyncSink(db *gorm.DB, buffer int) *AsyncSink {
	if buffer <= 0 {
		buffer = 256
	}
	s := &AsyncSink{
		db:           db,
		ch:           make(chan Event, buffer),
		writeTimeout: 2 * time.Second,
		done:         make(chan struct{}),
	}
	go s.run()
	return s
}

// Record implements Sink.
func (s *AsyncSink) Record(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		droppedTotal.Inc()
		return
	}
	select {
	case s.ch <- e:
	default:
		droppedTotal.Inc()
		log.Warn().Str("event_type", e.Type).Msg("audit buffer full; event dropped")
	}
}

// Close stops accepting events and waits until queued ones are written or
// ctx ends.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for e := range s.ch {
		s.write(e)
	}
}

func (s *AsyncSink) write(e Event) {
	var details datatypes.JSON
	if len(e.Details) > 0 {
		if b, err := json.Marshal(e.Details); err == nil {
			details = datatypes.JSON(b)
		}
	}
	row := &domain.AuditEvent{
		EventType: e.Type,
		WidgetID:  e.WidgetID,
		IPAddress: e.IP,
		UserAgent: truncate(e.UserAgent, 512),
		Details:   details,
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if err := repo.CreateAuditEvent(ctx, s.db, row); err != nil {
		log.Error().Err(err).Str("event_type", e.Type).Msg("audit write failed")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
