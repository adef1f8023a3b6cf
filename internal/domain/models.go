// Package domain defines the persistence models for tenants, widgets,
// conversations, leads and the security audit trail. These types are mapped
// with GORM and form the core data layer of the widget backend.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Company is the tenant owning a widget deployment. The intake pipeline only
// ever reads it; profile CRUD lives outside this service.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - BusinessType: werkstatt | detailing | cleaning | dealership | other.
//   - Phone / Email: published contact channels used by the fallback reply.
//   - Specialties: JSON list of free-text specialties.
type Company struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID       string         `json:"user_id"       gorm:"type:varchar(64);index"`
	CompanyName  string         `json:"company_name"  gorm:"type:varchar(255);not null"`
	BusinessType string         `json:"business_type" gorm:"type:varchar(32);not null;default:'werkstatt'"`
	Address      string         `json:"address"`
	Phone        string         `json:"phone"         gorm:"type:varchar(64)"`
	Email        string         `json:"email"         gorm:"type:varchar(255)"`
	Description  string         `json:"description"   gorm:"type:text"`
	Specialties  datatypes.JSON `json:"specialties"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	Services     []Service        `json:"services"      gorm:"foreignKey:CompanyID"`
	QuickActions []QuickAction    `json:"quick_actions" gorm:"foreignKey:CompanyID"`
	Knowledge    []KnowledgeEntry `json:"-"             gorm:"foreignKey:CompanyID"`
}

// TableName returns the database table name for Company.
func (Company) TableName() string { return "companies" }

// Service is a published offering of a company.
type Service struct {
	ID                string        `json:"id"                 gorm:"type:char(36);primaryKey"`
	CompanyID         string        `json:"company_id"         gorm:"type:char(36);not null;index"`
	ServiceName       string        `json:"service_name"       gorm:"type:varchar(255);not null"`
	Description       string        `json:"description"        gorm:"type:text"`
	Category          string        `json:"category"           gorm:"type:varchar(64)"`
	EstimatedDuration int           `json:"estimated_duration"` // minutes
	DisplayOrder      int           `json:"display_order"`
	IsActive          bool          `json:"is_active"          gorm:"not null;default:true"`
	PricingRules      []PricingRule `json:"pricing_rules"      gorm:"foreignKey:ServiceID"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// TableName returns the database table name for Service.
func (Service) TableName() string { return "services" }

// Pricing types understood by the prompt builder.
const (
	PricingFixed     = "fixed"
	PricingRange     = "range"
	PricingOnRequest = "on_request"
)

// PricingRule prices a service for one car type.
type PricingRule struct {
	ID          string   `json:"id"           gorm:"type:char(36);primaryKey"`
	ServiceID   string   `json:"service_id"   gorm:"type:char(36);not null;index"`
	CarType     string   `json:"car_type"     gorm:"type:varchar(64);not null"`
	PricingType string   `json:"pricing_type" gorm:"type:varchar(16);not null;default:'fixed'"`
	BasePrice   *float64 `json:"base_price,omitempty"`
	MaxPrice    *float64 `json:"max_price,omitempty"`
}

// TableName returns the database table name for PricingRule.
func (PricingRule) TableName() string { return "pricing_rules" }

// QuickAction is a canned button the widget renders below the chat.
type QuickAction struct {
	ID              string `json:"id"               gorm:"type:char(36);primaryKey"`
	CompanyID       string `json:"-"                gorm:"type:char(36);not null;index"`
	ActionText      string `json:"action_text"      gorm:"type:varchar(255);not null"`
	ActionType      string `json:"action_type"      gorm:"type:varchar(32);not null"`
	MessageTemplate string `json:"message_template" gorm:"type:text"`
	IconName        string `json:"icon_name"        gorm:"type:varchar(64)"`
	DisplayOrder    int    `json:"display_order"`
	IsActive        bool   `json:"-"                gorm:"not null;default:true"`
}

// TableName returns the database table name for QuickAction.
func (QuickAction) TableName() string { return "quick_actions" }

// KnowledgeEntry is a tenant-authored fact the assistant may quote.
type KnowledgeEntry struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	CompanyID string    `json:"company_id" gorm:"type:char(36);not null;index"`
	Topic     string    `json:"topic"      gorm:"type:varchar(255);not null"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	Keywords  string    `json:"keywords"   gorm:"type:text"` // comma separated
	Category  string    `json:"category"   gorm:"type:varchar(64)"`
	Priority  int       `json:"priority"`
	IsActive  bool      `json:"is_active"  gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for KnowledgeEntry.
func (KnowledgeEntry) TableName() string { return "company_knowledge_base" }

// Widget is the credential that binds an embeddable chat widget to a
// company. APIKey is the secret sent by the widget in X-Widget-Key.
type Widget struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	CompanyID  string         `json:"company_id"  gorm:"type:char(36);not null;index"`
	WidgetName string         `json:"widget_name" gorm:"type:varchar(255)"`
	APIKey     string         `json:"-"           gorm:"type:varchar(128);not null;uniqueIndex"`
	IsActive   bool           `json:"is_active"   gorm:"not null;default:true"`
	Theme      datatypes.JSON `json:"theme"`
	Settings   datatypes.JSON `json:"settings"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`

	Company Company `json:"-" gorm:"foreignKey:CompanyID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Widget.
func (Widget) TableName() string { return "widgets" }

// WidgetSettings is the typed view of Widget.Settings.
type WidgetSettings struct {
	CollectEmail bool `json:"collectEmail"`
	CollectPhone bool `json:"collectPhone"`
}
