package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-widget-leads/internal/domain"
)

// GetConversation fetches the record for (widgetID, sessionID), or
// ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, widgetID, sessionID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("widget_id = ? AND session_id = ?", widgetID, sessionID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateConversation inserts c with a fresh UUID and version 1. A concurrent
// insert for the same session surfaces as a unique violation (see
// IsUniqueViolation).
func CreateConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.Version = 1
	c.CreatedAt, c.UpdatedAt = now, now
	return db.WithContext(ctx).Create(c).Error
}

// UpdateConversationVersioned writes messages, visitor data, status and lead
// link only if the stored version still equals c.Version, then bumps it.
// It returns false when another writer got there first.
func UpdateConversationVersioned(ctx context.Context, db *gorm.DB, c *domain.Conversation) (bool, error) {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Updates(map[string]any{
			"messages":     c.Messages,
			"visitor_data": c.VisitorData,
			"status":       c.Status,
			"lead_id":      c.LeadID,
			"version":      c.Version + 1,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	c.Version++
	c.UpdatedAt = now
	return true, nil
}
