package ratelimit

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-widget-leads/internal/domain"
)

// SQL keeps buckets in the rate_limit_buckets table. Every step is a single
// conditional statement, so concurrent callers on any number of instances
// never overshoot the limit:
//
//  1. insert-if-absent      (new bucket, hit 1)
//  2. reset-if-expired      (new window, hit 1)
//  3. increment-if-under    (same window)
//
// If none of them touches a row the window is exhausted.
type SQL struct {
	db  *gorm.DB
	now Clock
}

// NewSQL returns a limiter backed by db. The table must already exist
// (repo.AutoMigrate creates it). A nil clock uses time.Now.
func NewSQL(db *gorm.DB, clock Clock) *SQL {
	if clock == nil {
		clock = systemClock
	}
	return &SQL{db: db, now: clock}
}

// Allow implements Limiter.
func (s *SQL) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	nowMs := s.now().UnixMilli()
	resetAt := nowMs + window.Milliseconds()
	db := s.db.WithContext(ctx)

	res := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.RateLimitBucket{Key: key, Hits: 1, ResetAt: resetAt})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	reset := func() (bool, error) {
		r := db.Model(&domain.RateLimitBucket{}).
			Where("key = ? AND reset_at < ?", key, nowMs).
			Updates(map[string]any{"hits": 1, "reset_at": resetAt})
		return r.RowsAffected == 1, r.Error
	}

	if ok, err := reset(); err != nil || ok {
		return ok, err
	}

	res = db.Model(&domain.RateLimitBucket{}).
		Where("key = ? AND reset_at >= ? AND hits < ?", key, nowMs, limit).
		UpdateColumn("hits", gorm.Expr("hits + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// The window may have expired between the two statements.
	return reset()
}

// Purge deletes buckets whose window ended before now.
func (s *SQL) Purge(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("reset_at < ?", s.now().UnixMilli()).
		Delete(&domain.RateLimitBucket{})
	return res.RowsAffected, res.Error
}
