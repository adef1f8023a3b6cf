package domain

import (
	"time"

	"gorm.io/datatypes"
)

// AuditEvent is one row of the security audit trail. Details never contain
// full widget keys, only a short prefix.
type AuditEvent struct {
	ID        string         `gorm:"type:char(36);primaryKey"`
	EventType string         `gorm:"type:varchar(64);not null;index"`
	WidgetID  string         `gorm:"type:varchar(36);index"`
	IPAddress string         `gorm:"type:varchar(64)"`
	UserAgent string         `gorm:"type:varchar(512)"`
	Details   datatypes.JSON `gorm:""`
	CreatedAt time.Time      `gorm:"index"`
}

// TableName returns the database table name for AuditEvent.
func (AuditEvent) TableName() string { return "security_audit" }

// RateLimitBucket is a fixed-window counter shared by every instance that
// talks to the same database. Hits never goes negative.
type RateLimitBucket struct {
	Key     string `gorm:"type:varchar(255);primaryKey"`
	Hits    int    `gorm:"not null;default:0;check:hits >= 0"`
	ResetAt int64  `gorm:"not null;index"` // unix milliseconds
}

// TableName returns the database table name for RateLimitBucket.
func (RateLimitBucket) TableName() string { return "rate_limit_buckets" }
