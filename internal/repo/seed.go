package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-widget-leads/internal/domain"
)

// DemoWidgetKey is the api key of the widget inserted by SeedDemo.
const DemoWidgetKey = "wk_demo_0123456789abcdef"

// SeedDemo inserts a demo workshop with services, pricing, quick actions,
// knowledge entries and one active widget. It is idempotent: when the demo
// widget already exists it is returned unchanged.
func SeedDemo(ctx context.Context, db *gorm.DB) (*domain.Widget, error) {
	if w, err := FindActiveWidgetByKey(ctx, db, DemoWidgetKey); err == nil {
		return w, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	price := func(v float64) *float64 { return &v }
	companyID := uuid.NewString()
	oilID, brakeID := uuid.NewString(), uuid.NewString()

	company := &domain.Company{
		ID:           companyID,
		CompanyName:  "Autohaus Muster",
		BusinessType: "werkstatt",
		Address:      "Hauptstraße 1, 12345 Musterstadt",
		Phone:        "+49 30 1234567",
		Email:        "info@autohaus-muster.de",
		Description:  "Meisterwerkstatt für alle Marken seit 1998.",
		Specialties:  datatypes.JSON(`["Bremsen","Klimaanlagen","HU/AU"]`),
		Services: []domain.Service{
			{
				ID: oilID, ServiceName: "Ölwechsel", Description: "Motoröl und Filter", Category: "wartung",
				EstimatedDuration: 45, DisplayOrder: 1, IsActive: true,
				PricingRules: []domain.PricingRule{
					{ID: uuid.NewString(), ServiceID: oilID, CarType: "Kleinwagen", PricingType: domain.PricingFixed, BasePrice: price(59)},
					{ID: uuid.NewString(), ServiceID: oilID, CarType: "SUV", PricingType: domain.PricingRange, BasePrice: price(79), MaxPrice: price(119)},
				},
			},
			{
				ID: brakeID, ServiceName: "Bremsservice", Description: "Beläge und Scheiben", Category: "reparatur",
				EstimatedDuration: 120, DisplayOrder: 2, IsActive: true,
				PricingRules: []domain.PricingRule{
					{ID: uuid.NewString(), ServiceID: brakeID, CarType: "Alle", PricingType: domain.PricingOnRequest},
				},
			},
		},
		QuickActions: []domain.QuickAction{
			{ID: uuid.NewString(), ActionText: "Termin vereinbaren", ActionType: "appointment", MessageTemplate: "Ich möchte einen Termin vereinbaren.", IconName: "calendar", DisplayOrder: 1, IsActive: true},
			{ID: uuid.NewString(), ActionText: "Preise anfragen", ActionType: "quote", MessageTemplate: "Was kostet ein Ölwechsel?", IconName: "euro", DisplayOrder: 2, IsActive: true},
		},
		Knowledge: []domain.KnowledgeEntry{
			{ID: uuid.NewString(), Topic: "Öffnungszeiten", Content: "Montag bis Freitag 8-18 Uhr, Samstag 9-13 Uhr.", Keywords: "öffnungszeiten,geöffnet,uhrzeit", Priority: 10, IsActive: true},
			{ID: uuid.NewString(), Topic: "Ersatzwagen", Content: "Für längere Reparaturen stellen wir kostenlos einen Ersatzwagen.", Keywords: "ersatzwagen,leihwagen", Priority: 5, IsActive: true},
		},
	}
	widget := &domain.Widget{
		ID:         uuid.NewString(),
		CompanyID:  companyID,
		WidgetName: "Website",
		APIKey:     DemoWidgetKey,
		IsActive:   true,
		Theme:      datatypes.JSON(`{"primaryColor":"#0f62fe","position":"bottom-right"}`),
		Settings:   datatypes.JSON(`{"collectEmail":true,"collectPhone":true}`),
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(company).Error; err != nil {
			return err
		}
		return tx.Omit("Company").Create(widget).Error
	})
	if err != nil {
		return nil, err
	}
	return widget, nil
}
