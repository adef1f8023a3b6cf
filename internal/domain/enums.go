package domain

import "strings"

// LeadStatus is the sales pipeline stage of a Lead. Only "new" is ever
// written by the intake pipeline; later transitions are owned by dashboards.
type LeadStatus string

const (
	LeadStatusNew               LeadStatus = "new"
	LeadStatusContacted         LeadStatus = "contacted"
	LeadStatusQualified         LeadStatus = "qualified"
	LeadStatusAppointmentBooked LeadStatus = "appointment_booked"
	LeadStatusConverted         LeadStatus = "converted"
	LeadStatusLost              LeadStatus = "lost"
)

// ParseLeadStatus validates a raw stored value. Unknown values map to
// LeadStatusNew with ok=false.
func ParseLeadStatus(s string) (LeadStatus, bool) {
	switch v := LeadStatus(strings.ToLower(strings.TrimSpace(s))); v {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified,
		LeadStatusAppointmentBooked, LeadStatusConverted, LeadStatusLost:
		return v, true
	}
	return LeadStatusNew, false
}

// Active reports whether the lead still accepts merges from new messages.
func (s LeadStatus) Active() bool {
	return s != LeadStatusConverted && s != LeadStatusLost
}

// Urgency is an ordered level: low < medium < high < urgent.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// Rank returns the position of u in the urgency order; unknown values rank
// below low.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyHigh:
		return 3
	case UrgencyUrgent:
		return 4
	}
	return 0
}

// MaxUrgency returns the higher of a and b.
func MaxUrgency(a, b Urgency) Urgency {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseUrgency validates a raw stored value. Unknown values map to
// UrgencyMedium with ok=false.
func ParseUrgency(s string) (Urgency, bool) {
	u := Urgency(strings.ToLower(strings.TrimSpace(s)))
	if u.Rank() == 0 {
		return UrgencyMedium, false
	}
	return u, true
}

// ConversationStatus is the lifecycle marker of a Conversation.
type ConversationStatus string

const (
	ConversationActive ConversationStatus = "active"
	ConversationClosed ConversationStatus = "closed"
)

// ParseConversationStatus validates a raw stored value. Unknown values map
// to ConversationActive with ok=false.
func ParseConversationStatus(s string) (ConversationStatus, bool) {
	switch v := ConversationStatus(strings.ToLower(strings.TrimSpace(s))); v {
	case ConversationActive, ConversationClosed:
		return v, true
	}
	return ConversationActive, false
}

// ActivityType classifies a LeadActivity entry.
type ActivityType string

const (
	ActivityMessage     ActivityType = "message"
	ActivityEmail       ActivityType = "email"
	ActivityCall        ActivityType = "call"
	ActivityAppointment ActivityType = "appointment"
	ActivityQuote       ActivityType = "quote"
	ActivityFollowUp    ActivityType = "follow_up"
)

// ParseActivityType validates a raw stored value. Unknown values map to
// ActivityMessage with ok=false.
func ParseActivityType(s string) (ActivityType, bool) {
	switch v := ActivityType(strings.ToLower(strings.TrimSpace(s))); v {
	case ActivityMessage, ActivityEmail, ActivityCall, ActivityAppointment, ActivityQuote, ActivityFollowUp:
		return v, true
	}
	return ActivityMessage, false
}

// Lead sources.
const (
	SourceWidget = "widget"
)

// Chat roles stored in conversation messages and sent to the generator.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
