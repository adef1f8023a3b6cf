package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-widget-leads/internal/domain"
)

// GetLeadBySession returns the lead for (companyID, sessionID), or
// ErrNotFound.
func GetLeadBySession(ctx context.Context, db *gorm.DB, companyID, sessionID string) (*domain.Lead, error) {
	var l domain.Lead
	err := db.WithContext(ctx).
		Where("company_id = ? AND session_id = ?", companyID, sessionID).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLead inserts l with a fresh UUID, version 1 and UTC timestamps.
func CreateLead(ctx context.Context, db *gorm.DB, l *domain.Lead) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	l.Version = 1
	l.CreatedAt, l.UpdatedAt = now, now
	return db.WithContext(ctx).Create(l).Error
}

// UpdateLeadVersioned persists the merge-owned columns of l only if the
// stored version still equals l.Version, then bumps it. Status, source and
// notes belong to external dashboards and are not written here. It returns
// false when another writer got there first or the lead is gone.
func UpdateLeadVersioned(ctx context.Context, db *gorm.DB, l *domain.Lead) (bool, error) {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("id = ? AND version = ?", l.ID, l.Version).
		Updates(map[string]any{
			"name":           l.Name,
			"email":          l.Email,
			"phone":          l.Phone,
			"lead_score":     l.LeadScore,
			"urgency_level":  l.UrgencyLevel,
			"service_needed": l.ServiceNeeded,
			"vehicle_info":   l.VehicleInfo,
			"version":        l.Version + 1,
			"updated_at":     now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	l.Version++
	l.UpdatedAt = now
	return true, nil
}

// CreateLeadActivity appends an activity entry for a lead.
func CreateLeadActivity(ctx context.Context, db *gorm.DB, a *domain.LeadActivity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	return db.WithContext(ctx).Omit("Lead").Create(a).Error
}

// ListLeadActivities returns a lead's activities, oldest first.
func ListLeadActivities(ctx context.Context, db *gorm.DB, leadID string) ([]domain.LeadActivity, error) {
	var out []domain.LeadActivity
	err := db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("timestamp asc").
		Find(&out).Error
	return out, err
}
