package domain

import (
	"time"

	"gorm.io/datatypes"
)

// MaxConversationMessages bounds the stored message log of a conversation.
const MaxConversationMessages = 20

// ChatMessage is one stored turn of a widget conversation.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Conversation is the per-session record of a widget chat.
//
// Fields:
//   - WidgetID + SessionID: unique merge key (one record per session).
//   - LeadID: set once the session produced a lead.
//   - Messages: JSON list of ChatMessage, chronological, capped at
//     MaxConversationMessages.
//   - VisitorData: JSON object of visitor metadata, merged additively.
//   - Version: optimistic concurrency counter, bumped on every write.
type Conversation struct {
	ID          string                                `json:"id"                gorm:"type:char(36);primaryKey"`
	WidgetID    string                                `json:"widget_id"         gorm:"type:char(36);not null;uniqueIndex:ux_conversation_session,priority:1"`
	SessionID   string                                `json:"session_id"        gorm:"type:varchar(128);not null;uniqueIndex:ux_conversation_session,priority:2"`
	LeadID      *string                               `json:"lead_id,omitempty" gorm:"type:char(36);index"`
	Messages    datatypes.JSONType[[]ChatMessage]     `json:"messages"`
	VisitorData datatypes.JSONType[map[string]string] `json:"visitor_data"`
	Status      ConversationStatus                    `json:"status"            gorm:"type:varchar(16);not null;default:'active'"`
	Version     int64                                 `json:"-"                 gorm:"not null;default:0"`
	CreatedAt   time.Time                             `json:"created_at"`
	UpdatedAt   time.Time                             `json:"updated_at"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "widget_conversations" }
