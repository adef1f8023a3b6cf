// Package sanitize cleans untrusted visitor input before it is stored,
// scored or forwarded to the generation service.
//
// Every function is total: it never panics and returns "" for input it
// cannot use.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Length caps, counted in runes.
const (
	MaxMessageRunes   = 2000
	MaxTextRunes      = 500
	MaxPhoneRunes     = 20
	MaxEmailRunes     = 254
	MaxSessionIDRunes = 128
)

var (
	scriptBlockRE = regexp.MustCompile(`(?is)<script\b.*?</script\s*>`)
	tagRE         = regexp.MustCompile(`<[^>]*>`)
	jsSchemeRE    = regexp.MustCompile(`(?i)javascript\s*:`)
	eventAttrRE   = regexp.MustCompile(`(?i)\bon\w+\s*=`)
	// Letters (incl. umlauts), digits, whitespace and a little punctuation.
	messageDenyRE = regexp.MustCompile(`[^\p{L}\p{N}_\s\-.,!?@()+]`)
	phoneDenyRE   = regexp.MustCompile(`[^+\d\s\-()]`)
	sessionDenyRE = regexp.MustCompile(`[^A-Za-z0-9_\-]`)
	emailShapeRE  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	spacesRE      = regexp.MustCompile(`\s+`)

	strict = bluemonday.StrictPolicy()
)

// Value returns v when it is a string and "" otherwise (nil included).
func Value(v any) string {
	s, _ := v.(string)
	return s
}

// stripMarkup removes script blocks, markup, javascript: schemes and inline
// event handlers. Entities are decoded once and the tag pass repeated so
// encoded markup cannot survive.
func stripMarkup(s string) string {
	s = scriptBlockRE.ReplaceAllString(s, "")
	s = strict.Sanitize(s)
	s = html.UnescapeString(s)
	s = scriptBlockRE.ReplaceAllString(s, "")
	s = tagRE.ReplaceAllString(s, "")
	s = jsSchemeRE.ReplaceAllString(s, "")
	s = eventAttrRE.ReplaceAllString(s, "")
	return s
}

// Message cleans a chat message: markup removal, character allow-list,
// trim and a 2000 rune cap.
func Message(s string) string {
	if s == "" {
		return ""
	}
	s = stripMarkup(s)
	s = messageDenyRE.ReplaceAllString(s, "")
	return truncate(strings.TrimSpace(s), MaxMessageRunes)
}

// Text cleans generic free text (names, notes): markup removal, trim and a
// 500 rune cap. No character allow-list is applied.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = stripMarkup(s)
	return truncate(strings.TrimSpace(s), MaxTextRunes)
}

// Email lowercases s, drops angle brackets and javascript: schemes and
// returns the result only if it has a basic local@domain.tld shape.
func Email(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	s = jsSchemeRE.ReplaceAllString(s, "")
	if utf8.RuneCountInString(s) > MaxEmailRunes || !emailShapeRE.MatchString(s) {
		return ""
	}
	return s
}

// Phone keeps digits, '+', spaces, dashes and parentheses; 20 rune cap.
func Phone(s string) string {
	s = phoneDenyRE.ReplaceAllString(s, "")
	return truncate(strings.TrimSpace(s), MaxPhoneRunes)
}

// SessionID keeps [A-Za-z0-9_-]; 128 rune cap.
func SessionID(s string) string {
	return truncate(sessionDenyRE.ReplaceAllString(s, ""), MaxSessionIDRunes)
}

// Name cleans a display name and title-cases it ("max müller" -> "Max Müller").
func Name(s string) string {
	s = Text(s)
	s = strings.TrimSpace(spacesRE.ReplaceAllString(s, " "))
	if s == "" {
		return ""
	}
	return cases.Title(language.German).String(s)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
