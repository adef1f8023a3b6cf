package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-widget-leads/internal/domain"
)

// FindActiveWidgetByKey returns the active widget whose api_key matches key
// exactly. Inactive or unknown keys yield ErrNotFound.
func FindActiveWidgetByKey(ctx context.Context, db *gorm.DB, key string) (*domain.Widget, error) {
	var w domain.Widget
	err := db.WithContext(ctx).
		Where("api_key = ? AND is_active = ?", key, true).
		First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// LoadCompanyProfile fetches a company with its active services (and their
// pricing rules), active quick actions and active knowledge entries, each
// ordered for display.
func LoadCompanyProfile(ctx context.Context, db *gorm.DB, companyID string) (*domain.Company, error) {
	var c domain.Company
	err := db.WithContext(ctx).
		Preload("Services", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("is_active = ?", true).Order("display_order asc, service_name asc")
		}).
		Preload("Services.PricingRules", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("car_type asc")
		}).
		Preload("QuickActions", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("is_active = ?", true).Order("display_order asc")
		}).
		Preload("Knowledge", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("is_active = ?", true).Order("priority desc")
		}).
		Where("id = ?", companyID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
