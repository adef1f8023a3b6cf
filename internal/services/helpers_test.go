package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-widget-leads/internal/audit"
	"github.com/tbourn/go-widget-leads/internal/domain"
	"github.com/tbourn/go-widget-leads/internal/repo"
)

// ---------- test helpers ----------

// newServiceDB opens a migrated temp-file SQLite database. A file (not
// :memory:) lets concurrent tests use several pooled connections.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("svc_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(0)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// seedDemo inserts the demo workshop and returns its widget.
func seedDemo(t *testing.T, db *gorm.DB) *domain.Widget {
	t.Helper()
	w, err := repo.SeedDemo(context.Background(), db)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return w
}

// demoTenant builds a tenant context without touching the database.
func demoTenant() *TenantContext {
	price := func(v float64) *float64 { return &v }
	return &TenantContext{
		Widget: &domain.Widget{
			ID:       "w-1",
			Theme:    datatypes.JSON(`{"primaryColor":"#0f62fe"}`),
			Settings: datatypes.JSON(`{"collectEmail":true}`),
		},
		Company: &domain.Company{
			ID:           "c-1",
			CompanyName:  "Autohaus Muster",
			BusinessType: "werkstatt",
			Address:      "Hauptstraße 1",
			Phone:        "+49 30 1234567",
			Email:        "info@autohaus-muster.de",
			Specialties:  datatypes.JSON(`["Bremsen","HU/AU"]`),
			Services: []domain.Service{
				{ServiceName: "Ölwechsel", Description: "Motoröl und Filter", EstimatedDuration: 45, PricingRules: []domain.PricingRule{
					{CarType: "Kleinwagen", PricingType: domain.PricingFixed, BasePrice: price(59)},
					{CarType: "SUV", PricingType: domain.PricingRange, BasePrice: price(79), MaxPrice: price(119)},
				}},
				{ServiceName: "Bremsservice", Description: "Beläge und Scheiben", EstimatedDuration: 120, PricingRules: []domain.PricingRule{
					{CarType: "Alle", PricingType: domain.PricingOnRequest},
				}},
				{ServiceName: "Aufbereitung", Description: "Innen und außen", EstimatedDuration: 180},
			},
			QuickActions: []domain.QuickAction{
				{ID: "qa-2", ActionText: "Preise", DisplayOrder: 2, IsActive: true},
				{ID: "qa-off", ActionText: "Alt", DisplayOrder: 0, IsActive: false},
				{ID: "qa-1", ActionText: "Termin", DisplayOrder: 1, IsActive: true},
			},
			Knowledge: []domain.KnowledgeEntry{
				{ID: "k1", Topic: "Öffnungszeiten", Content: "Montag bis Freitag 8-18 Uhr.", Keywords: "geöffnet,uhrzeit", IsActive: true},
				{ID: "k2", Topic: "Ersatzwagen", Content: "Wir stellen kostenlos einen Ersatzwagen.", Keywords: "leihwagen,ersatzwagen", IsActive: true},
			},
		},
		Settings: domain.WidgetSettings{CollectEmail: true},
	}
}

// fakeGenerator records prompts and answers with reply or err.
type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   bool // wait for ctx to end
	prompts [][]domain.ChatMessage
}

func (g *fakeGenerator) Generate(ctx context.Context, msgs []domain.ChatMessage) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, append([]domain.ChatMessage(nil), msgs...))
	g.mu.Unlock()
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.reply, g.err
}

func (g *fakeGenerator) lastPrompt() []domain.ChatMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return nil
	}
	return g.prompts[len(g.prompts)-1]
}

// recordingSink keeps audit events in memory.
type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Record(e audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) count(eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (s *recordingSink) last() audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return audit.Event{}
	}
	return s.events[len(s.events)-1]
}

// brokenLimiter simulates an unreachable limiter store.
type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, fmt.Errorf("store down")
}

// stalledLimiter never answers until the caller gives up.
type stalledLimiter struct{}

func (stalledLimiter) Allow(ctx context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}
