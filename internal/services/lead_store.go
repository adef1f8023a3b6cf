// Package services – LeadStore
//
// This file implements create-or-merge of the single lead a session may
// produce. Merges are monotonic: the score never drops, contact fields and
// service only fill forward, and urgency only escalates. Per-session work is
// serialized in-process by a striped key lock. Across instances the unique
// (company_id, session_id) index settles create races and a version check
// makes a stale merge re-read and re-apply instead of overwriting.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-widget-leads/internal/domain"
	"github.com/tbourn/go-widget-leads/internal/keylock"
	"github.com/tbourn/go-widget-leads/internal/leads"
	"github.com/tbourn/go-widget-leads/internal/repo"
)

// LeadAction tells what Upsert did.
type LeadAction string

const (
	LeadCreated  LeadAction = "created"
	LeadMerged   LeadAction = "merged"
	LeadSkipped  LeadAction = "skipped"  // no lead and nothing worth creating one
	LeadInactive LeadAction = "inactive" // converted or lost, left untouched
)

// activityPreviewRunes caps the message excerpt stored on a lead activity.
const activityPreviewRunes = 100

// LeadInput is one message's contribution to a session's lead.
type LeadInput struct {
	CompanyID string
	SessionID string
	Info      leads.Info
	Score     int
	Message   string // sanitized message, used for the trigger check and notes
}

// LeadStore persists leads.
type LeadStore struct {
	DB    *gorm.DB
	Locks *keylock.Striped

	// MaxAttempts bounds the optimistic retry loop (default 5).
	MaxAttempts int
	// Timeout caps the lock wait and storage work of one Upsert. Zero
	// leaves only the caller's deadline.
	Timeout time.Duration
}

// NewLeadStore returns a LeadStore. A nil locks gets its own stripes.
func NewLeadStore(db *gorm.DB, locks *keylock.Striped) *LeadStore {
	if locks == nil {
		locks = keylock.New(0)
	}
	return &LeadStore{DB: db, Locks: locks, MaxAttempts: 5}
}

// Upsert merges in into the session's active lead, or creates one when the
// message has a trigger word and at least one contact field. The returned
// lead is nil only for LeadSkipped.
func (s *LeadStore) Upsert(ctx context.Context, in LeadInput) (*domain.Lead, LeadAction, error) {
	tr := otel.Tracer("services/LeadStore")
	ctx, span := tr.Start(ctx, "Upsert", trace.WithAttributes(
		attribute.String("company.id", in.CompanyID),
		attribute.Int("lead.score", in.Score),
	))
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	unlock, err := s.Locks.Lock(ctx, "lead:"+in.CompanyID+"/"+in.SessionID)
	if err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("lead lock: %w", err)
	}
	defer unlock()

	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	// A lost create race is retried as a merge; a lost merge re-reads.
	for i := 0; i < attempts; i++ {
		existing, err := repo.GetLeadBySession(ctx, s.DB, in.CompanyID, in.SessionID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			if !leads.HasTrigger(in.Message) || !in.Info.HasContact() {
				return nil, LeadSkipped, nil
			}
			l := newLead(in)
			if err := repo.CreateLead(ctx, s.DB, l); err != nil {
				if repo.IsUniqueViolation(err) {
					continue
				}
				span.RecordError(err)
				return nil, "", fmt.Errorf("create lead: %w", err)
			}
			s.recordActivity(ctx, l.ID, in)
			span.SetAttributes(attribute.String("lead.action", string(LeadCreated)))
			return l, LeadCreated, nil

		case err != nil:
			span.RecordError(err)
			return nil, "", fmt.Errorf("load lead: %w", err)
		}

		if existing.Normalize() {
			log.Warn().Str("lead_id", existing.ID).Msg("lead had unknown status or urgency; defaulted")
		}
		if !existing.Status.Active() {
			return existing, LeadInactive, nil
		}
		if mergeLead(existing, in) {
			ok, err := repo.UpdateLeadVersioned(ctx, s.DB, existing)
			if err != nil {
				span.RecordError(err)
				return nil, "", fmt.Errorf("merge lead: %w", err)
			}
			if !ok {
				span.AddEvent("version conflict", trace.WithAttributes(attribute.Int("attempt", i+1)))
				continue
			}
		}
		s.recordActivity(ctx, existing.ID, in)
		span.SetAttributes(attribute.String("lead.action", string(LeadMerged)))
		return existing, LeadMerged, nil
	}
	return nil, "", ErrLeadConflict
}

func newLead(in LeadInput) *domain.Lead {
	l := &domain.Lead{
		CompanyID:     in.CompanyID,
		SessionID:     in.SessionID,
		Name:          in.Info.Name,
		Email:         in.Info.Email,
		Phone:         in.Info.Phone,
		LeadScore:     clampScore(in.Score),
		Status:        domain.LeadStatusNew,
		UrgencyLevel:  urgencyOrDefault(in.Info.Urgency),
		ServiceNeeded: in.Info.ServiceNeeded,
		Source:        domain.SourceWidget,
		Notes:         "Widget-Unterhaltung: " + truncateRunes(in.Message, activityPreviewRunes),
	}
	if len(in.Info.Vehicle) > 0 {
		l.VehicleInfo = datatypes.NewJSONType(copyMap(in.Info.Vehicle))
	}
	return l
}

// mergeLead applies the fill-forward rules to l and reports whether any
// column changed.
func mergeLead(l *domain.Lead, in LeadInput) bool {
	changed := false
	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			changed = true
		}
	}
	fill(&l.Name, in.Info.Name)
	fill(&l.Email, in.Info.Email)
	fill(&l.Phone, in.Info.Phone)
	fill(&l.ServiceNeeded, in.Info.ServiceNeeded)

	if score := clampScore(in.Score); score > l.LeadScore {
		l.LeadScore = score
		changed = true
	}
	if u := domain.MaxUrgency(l.UrgencyLevel, in.Info.Urgency); u != l.UrgencyLevel {
		l.UrgencyLevel = u
		changed = true
	}

	if len(in.Info.Vehicle) > 0 {
		vehicle := copyMap(l.VehicleInfo.Data())
		if vehicle == nil {
			vehicle = map[string]string{}
		}
		added := false
		for k, v := range in.Info.Vehicle {
			if vehicle[k] == "" && v != "" {
				vehicle[k] = v
				added = true
			}
		}
		if added {
			l.VehicleInfo = datatypes.NewJSONType(vehicle)
			changed = true
		}
	}
	return changed
}

// recordActivity appends a message activity. Failures are logged only.
func (s *LeadStore) recordActivity(ctx context.Context, leadID string, in LeadInput) {
	meta, _ := json.Marshal(map[string]any{
		"session_id": in.SessionID,
		"lead_score": clampScore(in.Score),
	})
	a := &domain.LeadActivity{
		LeadID:       leadID,
		ActivityType: domain.ActivityMessage,
		Description:  truncateRunes(in.Message, activityPreviewRunes),
		Metadata:     datatypes.JSON(meta),
	}
	if err := repo.CreateLeadActivity(ctx, s.DB, a); err != nil {
		log.Error().Err(err).Str("lead_id", leadID).Msg("lead activity not recorded")
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func urgencyOrDefault(u domain.Urgency) domain.Urgency {
	if u.Rank() == 0 {
		return domain.UrgencyMedium
	}
	return u
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
