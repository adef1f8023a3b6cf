package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-widget-leads/internal/domain"
	"github.com/tbourn/go-widget-leads/internal/keylock"
	"github.com/tbourn/go-widget-leads/internal/leads"
	"github.com/tbourn/go-widget-leads/internal/repo"
)

func inputFor(companyID, sessionID, msg string) LeadInput {
	info := leads.Extract(msg)
	return LeadInput{CompanyID: companyID, SessionID: sessionID, Info: info, Score: leads.Score(info, msg), Message: msg}
}

func TestLeadStore_SkipsWithoutTriggerOrContact(t *testing.T) {
	db := newServiceDB(t)
	s := NewLeadStore(db, nil)
	ctx := context.Background()

	for _, msg := range []string{
		"Hallo, meine Email ist a@b.de",         // contact, no trigger
		"Ich habe ein Problem mit den Bremsen", // trigger, no contact
	} {
		l, action, err := s.Upsert(ctx, inputFor("c1", "s1", msg))
		if err != nil || l != nil || action != LeadSkipped {
			t.Fatalf("%q: got (%v, %q, %v); want skipped", msg, l, action, err)
		}
	}
	var n int64
	db.Model(&domain.Lead{}).Count(&n)
	if n != 0 {
		t.Fatalf("no lead expected, found %d", n)
	}
}

func TestLeadStore_CreatesLeadFromTriggeredMessage(t *testing.T) {
	db := newServiceDB(t)
	s := NewLeadStore(db, nil)
	msg := "Ich habe ein Problem mit den Bremsen, meine Email ist test@x.de"

	l, action, err := s.Upsert(context.Background(), inputFor("c1", "s1", msg))
	if err != nil || action != LeadCreated {
		t.Fatalf("Upsert: %q %v", action, err)
	}
	got, err := repo.GetLeadBySession(context.Background(), db, "c1", "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ID != l.ID || got.Email != "test@x.de" || got.ServiceNeeded != "Bremsservice" {
		t.Fatalf("unexpected lead: %+v", got)
	}
	if got.Status != domain.LeadStatusNew || got.Source != domain.SourceWidget || got.UrgencyLevel != domain.UrgencyMedium {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if got.LeadScore != 40 {
		t.Fatalf("score = %d; want 40", got.LeadScore)
	}

	acts, err := repo.ListLeadActivities(context.Background(), db, l.ID)
	if err != nil || len(acts) != 1 {
		t.Fatalf("activities: %v %v", acts, err)
	}
	if acts[0].ActivityType != domain.ActivityMessage || acts[0].Description != msg {
		t.Fatalf("unexpected activity: %+v", acts[0])
	}
}

func TestLeadStore_MergeIsMonotonic(t *testing.T) {
	db := newServiceDB(t)
	s := NewLeadStore(db, nil)
	ctx := context.Background()

	first := LeadInput{CompanyID: "c1", SessionID: "s1", Message: "Termin bitte",
		Info:  leads.Info{Email: "test@x.de", ServiceNeeded: "Bremsservice", Urgency: domain.UrgencyMedium},
		Score: 40}
	if _, action, err := s.Upsert(ctx, first); err != nil || action != LeadCreated {
		t.Fatalf("create: %q %v", action, err)
	}

	steps := []LeadInput{
		{Message: "danke", Info: leads.Info{Phone: "0170 1234567", Urgency: domain.UrgencyLow}, Score: 10},
		{Message: "sofort bitte", Info: leads.Info{Email: "other@x.de", ServiceNeeded: "Ölwechsel", Urgency: domain.UrgencyHigh}, Score: 70},
		{Message: "ok", Info: leads.Info{Urgency: domain.UrgencyMedium}, Score: 5},
	}
	prev := 40
	for i, in := range steps {
		in.CompanyID, in.SessionID = "c1", "s1"
		l, action, err := s.Upsert(ctx, in)
		if err != nil || action != LeadMerged {
			t.Fatalf("step %d: %q %v", i, action, err)
		}
		if l.LeadScore < prev {
			t.Fatalf("step %d: score dropped %d -> %d", i, prev, l.LeadScore)
		}
		prev = l.LeadScore
	}

	got, _ := repo.GetLeadBySession(ctx, db, "c1", "s1")
	if got.LeadScore != 70 {
		t.Fatalf("score = %d; want 70", got.LeadScore)
	}
	if got.Email != "test@x.de" || got.Phone != "0170 1234567" || got.ServiceNeeded != "Bremsservice" {
		t.Fatalf("fill-forward violated: %+v", got)
	}
	if got.UrgencyLevel != domain.UrgencyHigh {
		t.Fatalf("urgency = %q; want high (never downgraded)", got.UrgencyLevel)
	}
	acts, _ := repo.ListLeadActivities(ctx, db, got.ID)
	if len(acts) != 4 {
		t.Fatalf("activities = %d; want 4", len(acts))
	}
}

func TestLeadStore_VehicleInfoFillsGaps(t *testing.T) {
	db := newServiceDB(t)
	s := NewLeadStore(db, nil)
	ctx := context.Background()

	in := LeadInput{CompanyID: "c1", SessionID: "s1", Message: "Angebot", Score: 30,
		Info: leads.Info{Email: "a@b.de", Vehicle: map[string]string{"brand": "BMW"}}}
	if _, _, err := s.Upsert(ctx, in); err != nil {
		t.Fatalf("create: %v", err)
	}
	in.Info = leads.Info{Vehicle: map[string]string{"brand": "Audi", "year": "2015"}}
	if _, _, err := s.Upsert(ctx, in); err != nil {
		t.Fatalf("merge: %v", err)
	}
	got, _ := repo.GetLeadBySession(ctx, db, "c1", "s1")
	v := got.VehicleInfo.Data()
	if v["brand"] != "BMW" || v["year"] != "2015" {
		t.Fatalf("vehicle = %v", v)
	}
}

func TestLeadStore_InactiveLeadUntouched(t *testing.T) {
	db := newServiceDB(t)
	s := NewLeadStore(db, nil)
	ctx := context.Background()

	l, _, err := s.Upsert(ctx, inputFor("c1", "s1", "Termin für Reparatur, Email a@b.de"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.Model(&domain.Lead{}).Where("id = ?", l.ID).Update("status", domain.LeadStatusConverted).Error; err != nil {
		t.Fatalf("convert: %v", err)
	}

	got, action, err := s.Upsert(ctx, LeadInput{CompanyID: "c1", SessionID: "s1", Message: "x", Score: 99,
		Info: leads.Info{Phone: "030 1234567", Urgency: domain.UrgencyUrgent}})
	if err != nil || action != LeadInactive {
		t.Fatalf("expected LeadInactive, got %q %v", action, err)
	}
	if got.LeadScore == 99 || got.Phone != "" {
		t.Fatalf("inactive lead must not change: %+v", got)
	}
}

func TestLeadStore_ConcurrentSameSessionCreatesOneLead(t *testing.T) {
	db := newServiceDB(t)
	locks := keylock.New(0)
	// Two stores with separate locks behave like two instances.
	stores := []*LeadStore{NewLeadStore(db, locks), NewLeadStore(db, keylock.New(0))}

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := stores[i%2].Upsert(context.Background(), inputFor("c1", "s1", "Termin bitte, test@x.de"))
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Upsert: %v", err)
	}

	var n int64
	db.Model(&domain.Lead{}).Where("company_id = ? AND session_id = ?", "c1", "s1").Count(&n)
	if n != 1 {
		t.Fatalf("leads = %d; want 1", n)
	}
}

func TestLeadStore_StaleMergeIsReapplied(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	seed := &domain.Lead{CompanyID: "c1", SessionID: "s1", Phone: "030 1234567", LeadScore: 20,
		Status: domain.LeadStatusNew, UrgencyLevel: domain.UrgencyMedium, Source: domain.SourceWidget}
	if err := repo.CreateLead(ctx, db, seed); err != nil {
		t.Fatalf("seed lead: %v", err)
	}

	// Separate lock tables stand in for two instances.
	a := NewLeadStore(db, keylock.New(0))
	b := NewLeadStore(db, keylock.New(0))

	// Once a has read the lead, b merges before a writes.
	var fired atomic.Bool
	var bErr error
	err := db.Callback().Query().After("gorm:query").Register("test:interleave_lead_merge", func(tx *gorm.DB) {
		if tx.Statement.Table != "leads" || !fired.CompareAndSwap(false, true) {
			return
		}
		_, _, bErr = b.Upsert(context.Background(), LeadInput{CompanyID: "c1", SessionID: "s1", Message: "sofort",
			Info: leads.Info{Email: "x@y.de", Urgency: domain.UrgencyHigh}, Score: 80})
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	_, action, err := a.Upsert(ctx, LeadInput{CompanyID: "c1", SessionID: "s1", Message: "Max hier",
		Info: leads.Info{Name: "Max"}, Score: 50})
	if err != nil || action != LeadMerged {
		t.Fatalf("a.Upsert: %q %v", action, err)
	}
	if !fired.Load() || bErr != nil {
		t.Fatalf("concurrent merge did not run cleanly: fired=%v err=%v", fired.Load(), bErr)
	}

	got, err := repo.GetLeadBySession(ctx, db, "c1", "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != "Max" || got.Email != "x@y.de" || got.Phone != "030 1234567" {
		t.Fatalf("contact fields lost: %+v", got)
	}
	if got.LeadScore != 80 || got.UrgencyLevel != domain.UrgencyHigh {
		t.Fatalf("score/urgency regressed: score=%d urgency=%q", got.LeadScore, got.UrgencyLevel)
	}
	if got.Version != 3 {
		t.Fatalf("version = %d; want 3 (two merges)", got.Version)
	}
}

func TestLeadStore_LockWaitHonoursDeadline(t *testing.T) {
	db := newServiceDB(t)
	locks := keylock.New(0)
	s := NewLeadStore(db, locks)

	unlock, err := locks.Lock(context.Background(), "lead:c1/s1")
	if err != nil {
		t.Fatalf("hold stripe: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, _, err = s.Upsert(ctx, inputFor("c1", "s1", "Termin bitte, test@x.de"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v; want deadline exceeded", err)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Fatalf("Upsert blocked %v behind a held lock", waited)
	}
}

func TestLeadStore_TimeoutBoundsLockWait(t *testing.T) {
	db := newServiceDB(t)
	locks := keylock.New(0)
	s := NewLeadStore(db, locks)
	s.Timeout = 50 * time.Millisecond

	unlock, err := locks.Lock(context.Background(), "lead:c1/s1")
	if err != nil {
		t.Fatalf("hold stripe: %v", err)
	}
	defer unlock()

	if _, _, err := s.Upsert(context.Background(), inputFor("c1", "s1", "Termin bitte, test@x.de")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v; want deadline exceeded", err)
	}
}

func TestMergeLead_NoChange(t *testing.T) {
	l := &domain.Lead{Email: "a@b.de", LeadScore: 50, UrgencyLevel: domain.UrgencyHigh}
	if mergeLead(l, LeadInput{Info: leads.Info{Email: "c@d.de", Urgency: domain.UrgencyLow}, Score: 20}) {
		t.Fatalf("nothing should change: %+v", l)
	}
	if clampScore(-3) != 0 || clampScore(300) != 100 {
		t.Fatalf("clampScore")
	}
	if got := truncateRunes(strings.Repeat("ä", 120), activityPreviewRunes); len([]rune(got)) != 100 {
		t.Fatalf("truncateRunes len = %d", len([]rune(got)))
	}
}
