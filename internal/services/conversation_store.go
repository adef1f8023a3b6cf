// Package services – ConversationStore
//
// This file keeps the bounded per-session message log. Writes are
// read-merge-write with an optimistic version check, serialized per session
// in-process by the shared key lock. Append and truncation are applied to
// the same snapshot, so a lost update can only happen if every retry loses.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-widget-leads/internal/domain"
	"github.com/tbourn/go-widget-leads/internal/keylock"
	"github.com/tbourn/go-widget-leads/internal/repo"
)

// Exchange is one visitor message and the reply it got.
type Exchange struct {
	WidgetID  string
	SessionID string
	Visitor   map[string]string // sanitized visitor metadata; blanks are ignored
	User      domain.ChatMessage
	Bot       domain.ChatMessage
	LeadID    string // optional; links the conversation to its lead
}

// ConversationStore persists widget conversations.
type ConversationStore struct {
	DB    *gorm.DB
	Locks *keylock.Striped

	// MaxMessages caps the stored log (default domain.MaxConversationMessages).
	MaxMessages int
	// MaxAttempts bounds the optimistic retry loop (default 5).
	MaxAttempts int
	// Timeout caps the lock wait and storage work of one call. Zero leaves
	// only the caller's deadline.
	Timeout time.Duration
}

// NewConversationStore returns a ConversationStore with default limits.
func NewConversationStore(db *gorm.DB, locks *keylock.Striped) *ConversationStore {
	if locks == nil {
		locks = keylock.New(0)
	}
	return &ConversationStore{
		DB:          db,
		Locks:       locks,
		MaxMessages: domain.MaxConversationMessages,
		MaxAttempts: 5,
	}
}

// AppendExchange creates the session's conversation with [user, bot] or
// appends both to the existing log, keeping the newest MaxMessages entries.
// Visitor metadata is merged additively and the status is set to active.
func (s *ConversationStore) AppendExchange(ctx context.Context, ex Exchange) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationStore")
	ctx, span := tr.Start(ctx, "AppendExchange", trace.WithAttributes(
		attribute.String("widget.id", ex.WidgetID),
	))
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	unlock, err := s.Locks.Lock(ctx, "conv:"+ex.WidgetID+"/"+ex.SessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation lock: %w", err)
	}
	defer unlock()

	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	for i := 0; i < attempts; i++ {
		c, err := repo.GetConversation(ctx, s.DB, ex.WidgetID, ex.SessionID)
		if errors.Is(err, repo.ErrNotFound) {
			c = &domain.Conversation{
				WidgetID:    ex.WidgetID,
				SessionID:   ex.SessionID,
				Messages:    datatypes.NewJSONType(s.capped([]domain.ChatMessage{ex.User, ex.Bot})),
				VisitorData: datatypes.NewJSONType(mergeVisitor(nil, ex.Visitor)),
				Status:      domain.ConversationActive,
			}
			if ex.LeadID != "" {
				c.LeadID = &ex.LeadID
			}
			err = repo.CreateConversation(ctx, s.DB, c)
			if err == nil {
				return c, nil
			}
			if repo.IsUniqueViolation(err) {
				continue
			}
			span.RecordError(err)
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("load conversation: %w", err)
		}

		if _, ok := domain.ParseConversationStatus(string(c.Status)); !ok {
			log.Warn().Str("conversation_id", c.ID).Str("status", string(c.Status)).Msg("unknown conversation status")
		}
		msgs := append(append([]domain.ChatMessage{}, c.Messages.Data()...), ex.User, ex.Bot)
		c.Messages = datatypes.NewJSONType(s.capped(msgs))
		c.VisitorData = datatypes.NewJSONType(mergeVisitor(c.VisitorData.Data(), ex.Visitor))
		c.Status = domain.ConversationActive
		if ex.LeadID != "" {
			c.LeadID = &ex.LeadID
		}

		ok, err := repo.UpdateConversationVersioned(ctx, s.DB, c)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("update conversation: %w", err)
		}
		if ok {
			return c, nil
		}
		span.AddEvent("version conflict", trace.WithAttributes(attribute.Int("attempt", i+1)))
	}
	return nil, ErrConversationConflict
}

// History returns up to n of the newest stored messages, oldest first.
// A session without a conversation has no history.
func (s *ConversationStore) History(ctx context.Context, widgetID, sessionID string, n int) ([]domain.ChatMessage, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	c, err := repo.GetConversation(ctx, s.DB, widgetID, sessionID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	msgs := c.Messages.Data()
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs, nil
}

func (s *ConversationStore) capped(msgs []domain.ChatMessage) []domain.ChatMessage {
	limit := s.MaxMessages
	if limit <= 0 {
		limit = domain.MaxConversationMessages
	}
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs
}

// mergeVisitor fills gaps in base with non-blank values from add. A value
// already known for a key is kept; a changed detail reaches the lead record,
// not the conversation snapshot.
func mergeVisitor(base, add map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(add))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range add {
		if v != "" && out[k] == "" {
			out[k] = v
		}
	}
	return out
}
