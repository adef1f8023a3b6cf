package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Lead is a sales prospect detected in a widget conversation. There is at
// most one lead per (company, session).
//
// Score never decreases across merges, and Name/Email/Phone/ServiceNeeded
// only fill forward: once set they are never cleared by a later message.
// Version is an optimistic concurrency counter bumped on every merge write.
type Lead struct {
	ID            string                                `json:"id"             gorm:"type:char(36);primaryKey"`
	CompanyID     string                                `json:"company_id"     gorm:"type:char(36);not null;uniqueIndex:ux_lead_session,priority:1"`
	SessionID     string                                `json:"session_id"     gorm:"type:varchar(128);not null;uniqueIndex:ux_lead_session,priority:2"`
	Name          string                                `json:"name,omitempty" gorm:"type:varchar(255)"`
	Email         string                                `json:"email,omitempty" gorm:"type:varchar(255)"`
	Phone         string                                `json:"phone,omitempty" gorm:"type:varchar(32)"`
	LeadScore     int                                   `json:"lead_score"     gorm:"not null;default:0;check:lead_score BETWEEN 0 AND 100"`
	Status        LeadStatus                            `json:"status"         gorm:"type:varchar(32);not null;default:'new'"`
	UrgencyLevel  Urgency                               `json:"urgency_level"  gorm:"type:varchar(16);not null;default:'medium'"`
	ServiceNeeded string                                `json:"service_needed,omitempty" gorm:"type:varchar(255)"`
	VehicleInfo   datatypes.JSONType[map[string]string] `json:"vehicle_info"`
	Source        string                                `json:"source"         gorm:"type:varchar(32);not null;default:'widget'"`
	Notes         string                                `json:"notes,omitempty" gorm:"type:text"`
	Version       int64                                 `json:"-"              gorm:"not null;default:0"`
	CreatedAt     time.Time                             `json:"created_at"`
	UpdatedAt     time.Time                             `json:"updated_at"`
}

// TableName returns the database table name for Lead.
func (Lead) TableName() string { return "leads" }

// Normalize replaces unknown enum values read from storage with their
// defaults and reports whether anything had to be corrected.
func (l *Lead) Normalize() (corrected bool) {
	st, ok1 := ParseLeadStatus(string(l.Status))
	ur, ok2 := ParseUrgency(string(l.UrgencyLevel))
	l.Status, l.UrgencyLevel = st, ur
	if l.LeadScore < 0 {
		l.LeadScore = 0
	}
	if l.LeadScore > 100 {
		l.LeadScore = 100
	}
	return !ok1 || !ok2
}

// LeadActivity is an append-only audit entry attached to a lead.
type LeadActivity struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	LeadID       string         `json:"lead_id"       gorm:"type:char(36);not null;index"`
	ActivityType ActivityType   `json:"activity_type" gorm:"type:varchar(32);not null"`
	Description  string         `json:"description"   gorm:"type:text;not null"`
	Metadata     datatypes.JSON `json:"metadata"`
	Timestamp    time.Time      `json:"timestamp"     gorm:"index"`

	Lead Lead `json:"-" gorm:"foreignKey:LeadID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for LeadActivity.
func (LeadActivity) TableName() string { return "lead_activities" }
