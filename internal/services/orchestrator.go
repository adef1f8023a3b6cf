// Package services – ResponseOrchestrator
//
// This file builds the prompt for the generation service (company profile,
// services with prices, relevant knowledge entries, recent history) and
// turns the outcome into a reply plus widget directives. Generation failures
// never surface as errors: the visitor gets a fallback sentence with the
// company's phone and email instead.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-widget-leads/internal/domain"
	"github.com/tbourn/go-widget-leads/internal/search"
)

// Generator produces an assistant reply for a prompt. It is implemented by
// the OpenAI client.
type Generator interface {
	Generate(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// CompanyContact is the contact block sent to the widget.
type CompanyContact struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// Directives are the tenant-configured hints returned with every reply.
type Directives struct {
	WidgetConfig json.RawMessage      `json:"widget_config"`
	QuickActions []domain.QuickAction `json:"quick_actions"`
	CollectEmail bool                 `json:"collect_email"`
	CollectPhone bool                 `json:"collect_phone"`
	Company      CompanyContact       `json:"company"`
}

// Reply is the orchestrator's result. Fallback is true when the text did
// not come from the generation service.
type Reply struct {
	Text       string
	Directives Directives
	Fallback   bool
}

// ResponseOrchestrator talks to the generation service.
type ResponseOrchestrator struct {
	// Generator may be nil; every reply is then the fallback.
	Generator Generator
	// Timeout bounds one generation call (default 15s).
	Timeout time.Duration
	// HistoryTurns is how many prior messages reach the prompt (default 8).
	HistoryTurns int
	// KnowledgeTopK is how many knowledge entries reach the prompt (default 3).
	KnowledgeTopK int
}

// NewResponseOrchestrator returns an orchestrator with default limits.
func NewResponseOrchestrator(g Generator, timeout time.Duration) *ResponseOrchestrator {
	return &ResponseOrchestrator{Generator: g, Timeout: timeout, HistoryTurns: 8, KnowledgeTopK: 3}
}

// Handle produces the reply to message. It always returns a usable Reply.
func (o *ResponseOrchestrator) Handle(ctx context.Context, tc *TenantContext, sessionID, message string, history []domain.ChatMessage) Reply {
	tr := otel.Tracer("services/ResponseOrchestrator")
	ctx, span := tr.Start(ctx, "Handle", trace.WithAttributes(
		attribute.String("widget.id", tc.Widget.ID),
		attribute.Int("history.len", len(history)),
	))
	defer span.End()

	reply := Reply{Directives: BuildDirectives(tc)}

	if o.Generator == nil {
		reply.Text, reply.Fallback = FallbackReply(tc.Company), true
		return reply
	}

	prompt := make([]domain.ChatMessage, 0, o.historyTurns()+2)
	prompt = append(prompt, domain.ChatMessage{Role: domain.RoleSystem, Content: o.systemPrompt(tc.Company, message)})
	prompt = append(prompt, recentTurns(history, o.historyTurns())...)
	prompt = append(prompt, domain.ChatMessage{Role: domain.RoleUser, Content: message})

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	gctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := o.Generator.Generate(gctx, prompt)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		generationFailuresTotal.Inc()
		span.SetAttributes(attribute.Bool("reply.fallback", true))
		log.Warn().Err(err).
			Str("widget_id", tc.Widget.ID).
			Str("session_id", sessionID).
			Msg("generation failed; using fallback reply")
		reply.Text, reply.Fallback = FallbackReply(tc.Company), true
		return reply
	}
	reply.Text = text
	return reply
}

func (o *ResponseOrchestrator) historyTurns() int {
	if o.HistoryTurns <= 0 {
		return 8
	}
	return o.HistoryTurns
}

// FallbackReply is the German apology with the company's contact channels.
func FallbackReply(c *domain.Company) string {
	phone, email := "Telefonnummer auf der Website", "E-Mail auf der Website"
	if c != nil {
		if strings.TrimSpace(c.Phone) != "" {
			phone = c.Phone
		}
		if strings.TrimSpace(c.Email) != "" {
			email = c.Email
		}
	}
	return "Entschuldigung, ich habe gerade technische Probleme. Bitte rufen Sie uns direkt an: " +
		phone + " oder schreiben Sie an: " + email
}

// BuildDirectives collects the widget hints from tenant configuration.
func BuildDirectives(tc *TenantContext) Directives {
	d := Directives{
		WidgetConfig: json.RawMessage("null"),
		QuickActions: []domain.QuickAction{},
		CollectEmail: tc.Settings.CollectEmail,
		CollectPhone: tc.Settings.CollectPhone,
	}
	if len(tc.Widget.Theme) > 0 && json.Valid(tc.Widget.Theme) {
		d.WidgetConfig = json.RawMessage(tc.Widget.Theme)
	}
	if c := tc.Company; c != nil {
		for _, qa := range c.QuickActions {
			if qa.IsActive {
				d.QuickActions = append(d.QuickActions, qa)
			}
		}
		sort.SliceStable(d.QuickActions, func(i, j int) bool {
			return d.QuickActions[i].DisplayOrder < d.QuickActions[j].DisplayOrder
		})
		d.Company = CompanyContact{Name: c.CompanyName, Phone: c.Phone, Email: c.Email, Address: c.Address}
	}
	return d
}

// recentTurns keeps the last n user/assistant messages with content.
func recentTurns(history []domain.ChatMessage, n int) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(history))
	for _, m := range history {
		if (m.Role == domain.RoleUser || m.Role == domain.RoleAssistant) && strings.TrimSpace(m.Content) != "" {
			out = append(out, domain.ChatMessage{Role: m.Role, Content: m.Content})
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

var businessLabels = map[string]string{
	"werkstatt":  "eine Autowerkstatt",
	"detailing":  "ein Autoaufbereitungsbetrieb",
	"cleaning":   "eine Autoreinigungsfirma",
	"dealership": "ein Autohaus",
}

const behaviourRules = `VERHALTEN:
- Antworten Sie immer auf Deutsch
- Seien Sie freundlich und hilfsbereit
- Bieten Sie konkrete Services und Preise an
- Fragen Sie nach Fahrzeugdetails wenn nötig (Marke, Modell, Baujahr)
- Helfen Sie bei Terminvereinbarungen
- Geben Sie Kontaktinformationen bei Bedarf weiter
- Bei technischen Fragen: Empfehlen Sie eine Vor-Ort-Diagnose
- Antworten Sie präzise und strukturiert (max. 3-4 Sätze)
- Verwenden Sie Emojis sparsam aber passend`

func (o *ResponseOrchestrator) systemPrompt(c *domain.Company, message string) string {
	label, ok := businessLabels[c.BusinessType]
	if !ok {
		label = "ein Automobilbetrieb"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sie sind ein freundlicher und professioneller ChatBot für %s, %s.\n\n", c.CompanyName, label)

	b.WriteString("FIRMENINFORMATIONEN:\n")
	fmt.Fprintf(&b, "- Name: %s\n", c.CompanyName)
	fmt.Fprintf(&b, "- Adresse: %s\n", orDefault(c.Address, "Nicht angegeben"))
	fmt.Fprintf(&b, "- Telefon: %s\n", orDefault(c.Phone, "Nicht angegeben"))
	fmt.Fprintf(&b, "- Email: %s\n", orDefault(c.Email, "Nicht angegeben"))
	fmt.Fprintf(&b, "- Beschreibung: %s\n", orDefault(c.Description, "Professionelle Automobildienstleistungen"))
	fmt.Fprintf(&b, "- Spezialisierungen: %s\n\n", orDefault(strings.Join(specialties(c), ", "), "Allgemeine Fahrzeugwartung"))

	b.WriteString("VERFÜGBARE SERVICES:\n")
	if len(c.Services) == 0 {
		b.WriteString("Verschiedene Automobildienstleistungen verfügbar\n")
	}
	for _, s := range c.Services {
		fmt.Fprintf(&b, "• %s: %s (%d Min) - %s\n", s.ServiceName, s.Description, s.EstimatedDuration, pricingLine(s.PricingRules))
	}

	if snippets := o.knowledge(c, message); len(snippets) > 0 {
		b.WriteString("\nWISSENSDATENBANK:\n")
		for _, r := range snippets {
			fmt.Fprintf(&b, "- %s: %s\n", r.Title, r.Snippet)
		}
	}

	b.WriteString("\n")
	b.WriteString(behaviourRules)
	b.WriteString("\n\nAktuelle Unterhaltung mit dem Kunden:")
	return b.String()
}

// knowledge ranks the company's knowledge entries against message.
func (o *ResponseOrchestrator) knowledge(c *domain.Company, message string) []search.Result {
	if len(c.Knowledge) == 0 {
		return nil
	}
	docs := make([]search.Document, 0, len(c.Knowledge))
	for _, k := range c.Knowledge {
		if !k.IsActive {
			continue
		}
		docs = append(docs, search.Document{
			ID:       k.ID,
			Title:    k.Topic,
			Body:     k.Content,
			Keywords: strings.Split(k.Keywords, ","),
		})
	}
	k := o.KnowledgeTopK
	if k <= 0 {
		k = 3
	}
	return search.NewIndex(docs, search.WithStopwords(search.GermanStopwords)).TopK(message, k)
}

func pricingLine(rules []domain.PricingRule) string {
	if len(rules) == 0 {
		return "Preise auf Anfrage"
	}
	parts := make([]string, 0, len(rules))
	for _, r := range rules {
		parts = append(parts, r.CarType+": "+priceText(r))
	}
	return strings.Join(parts, ", ")
}

func priceText(r domain.PricingRule) string {
	switch r.PricingType {
	case domain.PricingFixed:
		if r.BasePrice != nil {
			return euro(*r.BasePrice)
		}
	case domain.PricingRange:
		if r.BasePrice != nil && r.MaxPrice != nil {
			return euro(*r.BasePrice) + " - " + euro(*r.MaxPrice)
		}
	}
	return "auf Anfrage"
}

func euro(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "€"
}

func specialties(c *domain.Company) []string {
	if len(c.Specialties) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(c.Specialties, &out); err != nil {
		return nil
	}
	return out
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
