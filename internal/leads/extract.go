// Package leads turns one visitor message into structured lead signals and
// a heuristic 0-100 score. Everything here is pure: no I/O and no memory of
// earlier messages. Merging across messages is the lead store's job.
package leads

import (
	"regexp"
	"strings"

	"github.com/tbourn/go-widget-leads/internal/domain"
	"github.com/tbourn/go-widget-leads/internal/sanitize"
)

// Info is what a single message revealed. Empty strings mean "not found".
type Info struct {
	Name          string
	Email         string
	Phone         string
	ServiceNeeded string
	Urgency       domain.Urgency
	Vehicle       map[string]string // brand, year, mileage
}

// HasContact reports whether any contact channel was found.
func (i Info) HasContact() bool {
	return i.Name != "" || i.Email != "" || i.Phone != ""
}

type keywordLabel struct {
	keyword string
	label   string
}

// serviceKeywords is a priority list: the first keyword contained in the
// message wins. Reordering it changes which service a message maps to.
var serviceKeywords = []keywordLabel{
	{"ölwechsel", "Ölwechsel"},
	{"bremsen", "Bremsservice"},
	{"reifen", "Reifenservice"},
	{"inspektion", "Inspektion"},
	{"tüv", "TÜV/HU"},
	{"reparatur", "Reparatur"},
	{"wartung", "Wartung"},
	{"klimaanlage", "Klimaservice"},
	{"batterie", "Batterieservice"},
	{"auspuff", "Auspuffservice"},
}

// highUrgencyWords mark a message as high urgency when any is present.
var highUrgencyWords = []string{"sofort", "dringend", "heute", "morgen", "schnell", "notfall"}

// Self-introduction templates, tried in order.
var nameTemplates = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bich bin\s+([\p{L}][\p{L}'-]*(?:\s+[\p{L}][\p{L}'-]*){0,2})`),
	regexp.MustCompile(`(?i)\bmein name ist\s+([\p{L}][\p{L}'-]*(?:\s+[\p{L}][\p{L}'-]*){0,2})`),
	regexp.MustCompile(`(?i)\bich hei(?:ß|ss)e\s+([\p{L}][\p{L}'-]*(?:\s+[\p{L}][\p{L}'-]*){0,2})`),
}

// notNameWords end a captured name; a capture starting with one is dropped
// ("ich bin sehr zufrieden", "ich bin aus Berlin").
var notNameWords = map[string]struct{}{
	"und": {}, "oder": {}, "aber": {}, "ich": {}, "mein": {}, "meine": {}, "habe": {},
	"hätte": {}, "brauche": {}, "möchte": {}, "will": {}, "suche": {}, "aus": {},
	"von": {}, "in": {}, "mit": {}, "der": {}, "die": {}, "das": {}, "ein": {},
	"eine": {}, "bei": {}, "wegen": {}, "gerade": {}, "auch": {}, "hier": {},
	"nicht": {}, "sehr": {}, "interessiert": {}, "auf": {}, "am": {}, "im": {},
	"zu": {}, "noch": {}, "so": {}, "da": {}, "kunde": {}, "froh": {},
}

var (
	emailRE = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	// German numbers: +49 or trunk 0, then mobile (15x-17x) or area code
	// groups, split by an optional space, slash or dash.
	phoneRE   = regexp.MustCompile(`(?:\+49[\s/-]?|0)(?:1[5-7][0-9][\s/-]?\d{7,8}|\d{2,5}[\s/-]?\d{6,8})`)
	yearRE    = regexp.MustCompile(`(?i)\b(?:baujahr|bj\.?)\s*:?\s*((?:19|20)\d{2})\b`)
	mileageRE = regexp.MustCompile(`(?i)\b(\d{1,3}(?:[.\s]\d{3})+|\d+)\s*(?:km|kilometer)\b`)
	wordRE    = regexp.MustCompile(`[\p{L}\p{N}]+(?:-[\p{L}\p{N}]+)*`)
	nonDigit  = regexp.MustCompile(`\D`)
)

// vehicleBrands is matched against whole words, first hit wins.
var vehicleBrands = []keywordLabel{
	{"mercedes-benz", "Mercedes-Benz"},
	{"mercedes", "Mercedes-Benz"},
	{"bmw", "BMW"},
	{"audi", "Audi"},
	{"volkswagen", "Volkswagen"},
	{"vw", "Volkswagen"},
	{"opel", "Opel"},
	{"ford", "Ford"},
	{"skoda", "Škoda"},
	{"škoda", "Škoda"},
	{"seat", "Seat"},
	{"toyota", "Toyota"},
	{"renault", "Renault"},
	{"peugeot", "Peugeot"},
	{"fiat", "Fiat"},
	{"hyundai", "Hyundai"},
	{"kia", "Kia"},
	{"mazda", "Mazda"},
	{"nissan", "Nissan"},
	{"porsche", "Porsche"},
	{"tesla", "Tesla"},
	{"volvo", "Volvo"},
}

// Extract scans one message for contact data, service interest, urgency
// and vehicle details.
func Extract(message string) Info {
	lower := strings.ToLower(message)
	info := Info{Urgency: domain.UrgencyMedium}

	if m := emailRE.FindString(message); m != "" {
		info.Email = sanitize.Email(m)
	}
	if m := phoneRE.FindString(message); m != "" {
		// The stored phone alphabet has no slash; keep the grouping as a space.
		info.Phone = sanitize.Phone(strings.ReplaceAll(m, "/", " "))
	}
	info.Name = extractName(message)

	for _, kw := range serviceKeywords {
		if strings.Contains(lower, kw.keyword) {
			info.ServiceNeeded = kw.label
			break
		}
	}
	for _, w := range highUrgencyWords {
		if strings.Contains(lower, w) {
			info.Urgency = domain.UrgencyHigh
			break
		}
	}

	info.Vehicle = extractVehicle(lower)
	return info
}

func extractName(message string) string {
	for _, re := range nameTemplates {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		var kept []string
		for _, w := range strings.Fields(m[1]) {
			if _, stop := notNameWords[strings.ToLower(w)]; stop {
				break
			}
			kept = append(kept, w)
		}
		if len(kept) == 0 {
			// The template matched but did not introduce a name.
			continue
		}
		if n := sanitize.Name(strings.Join(kept, " ")); len([]rune(n)) >= 2 {
			return n
		}
	}
	return ""
}

func extractVehicle(lower string) map[string]string {
	out := map[string]string{}

	words := make(map[string]struct{})
	for _, w := range wordRE.FindAllString(lower, -1) {
		words[w] = struct{}{}
	}
	for _, b := range vehicleBrands {
		if _, ok := words[b.keyword]; ok {
			out["brand"] = b.label
			break
		}
	}
	if m := yearRE.FindStringSubmatch(lower); m != nil {
		out["year"] = m[1]
	}
	if m := mileageRE.FindStringSubmatch(lower); m != nil {
		out["mileage"] = nonDigit.ReplaceAllString(m[1], "")
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// leadTriggers are the words that make a first message worth a new lead.
var leadTriggers = []string{"termin", "reparatur", "problem", "kosten", "angebot", "service"}

// HasTrigger reports whether raw contains one of the lead trigger words.
func HasTrigger(raw string) bool {
	lower := strings.ToLower(raw)
	for _, w := range leadTriggers {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
