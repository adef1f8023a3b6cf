package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-widget-leads/internal/domain"
)

// CreateAuditEvent appends one row to the security audit trail.
func CreateAuditEvent(ctx context.Context, db *gorm.DB, e *domain.AuditEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(e).Error
}

// CountAuditEvents counts events of one type, optionally filtered by IP.
func CountAuditEvents(ctx context.Context, db *gorm.DB, eventType, ip string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.AuditEvent{}).Where("event_type = ?", eventType)
	if ip != "" {
		q = q.Where("ip_address = ?", ip)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}
