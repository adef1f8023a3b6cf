// Package search ranks a tenant's knowledge entries against a visitor
// message. The orchestrator puts the best few into the system prompt.
//
// An index is immutable after NewIndex and safe for concurrent use. Ranking
// is deterministic: equal scores keep input order.
//
// A document scores the Jaccard similarity of the query and document token
// sets, plus a bonus for the share of query tokens that hit the entry's
// title or keywords. Tokens are lower-cased with German umlauts folded
// (ö → oe, ß → ss), so "Oelwechsel" finds "Ölwechsel".
package search

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Document is one indexable knowledge entry.
type Document struct {
	ID       string
	Title    string
	Body     string
	Keywords []string
}

// Result is a ranked document with its similarity score.
type Result struct {
	ID      string
	Title   string
	Snippet string
	Score   float64
}

// Index is the minimal interface implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords map[string]struct{}
	maxDocs   int
	minScore  float64
}

func defaultConfig() config {
	return config{}
}

// WithStopwords drops the given words from documents and queries.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = fold(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxDocs caps how many documents are indexed (first n win).
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// WithMinScore discards results scoring below s.
func WithMinScore(s float64) Option {
	return func(c *config) {
		if s >= 0 && s <= 1 {
			c.minScore = s
		}
	}
}

// GermanStopwords is a short list of function words that carry no topic.
var GermanStopwords = []string{
	"der", "die", "das", "den", "dem", "des", "ein", "eine", "einen", "einem", "einer",
	"und", "oder", "aber", "ich", "du", "sie", "wir", "ihr", "es", "er", "mein", "meine",
	"ist", "sind", "bin", "habe", "hat", "haben", "wie", "was", "wann", "wo", "mit", "von",
	"zu", "im", "in", "am", "an", "auf", "für", "bei", "nicht", "auch", "noch", "bitte",
	"hallo", "kann", "können", "man", "es", "so", "da", "ja", "nein", "gibt",
}

// keywordWeight scales the title/keyword hit ratio added to the Jaccard score.
const keywordWeight = 0.5

type doc struct {
	id      string
	title   string
	text    string
	tokens  map[string]struct{} // title, body and keywords
	anchors map[string]struct{} // title and keywords only
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndex builds an Index from docs. Markdown tables in bodies are
// flattened to one fact per row first. Documents without tokens are
// skipped.
func NewIndex(docs []Document, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	out := make([]doc, 0, len(docs))
	for _, d := range docs {
		body := normalizeWhitespace(FlattenTables(d.Body))
		anchors := tokenize(d.Title+" "+strings.Join(d.Keywords, " "), cfg.stopwords)
		toks := tokenize(body, cfg.stopwords)
		if len(toks) == 0 && len(anchors) == 0 {
			continue
		}
		if toks == nil {
			toks = make(map[string]struct{}, len(anchors))
		}
		for w := range anchors {
			toks[w] = struct{}{}
		}
		out = append(out, doc{id: d.ID, title: strings.TrimSpace(d.Title), text: body, tokens: toks, anchors: anchors})
		if cfg.maxDocs > 0 && len(out) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: out}
}

func (i *index) Len() int { return len(i.docs) }

// TopK returns up to k best-matching documents. k <= 0 means 3.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	type hit struct {
		pos   int
		score float64
	}
	var hits []hit
	for pos := range i.docs {
		sc := score(qTokens, &i.docs[pos])
		if sc <= 0 || sc < i.cfg.minScore {
			continue
		}
		hits = append(hits, hit{pos: pos, score: sc})
	}
	if len(hits) == 0 {
		return nil
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	out := make([]Result, 0, min(k, len(hits)))
	for _, h := range hits[:min(k, len(hits))] {
		d := i.docs[h.pos]
		out = append(out, Result{ID: d.id, Title: d.title, Snippet: d.text, Score: h.score})
	}
	return out
}

// score is in [0,1]; zero when no query token occurs in d.
func score(q map[string]struct{}, d *doc) float64 {
	over := overlap(q, d.tokens)
	if over == 0 {
		return 0
	}
	jaccard := float64(over) / float64(len(q)+len(d.tokens)-over)
	bonus := keywordWeight * float64(overlap(q, d.anchors)) / float64(len(q))
	return math.Min(1, jaccard+bonus)
}

// ----------------------------------------------------------------------------
// Helpers

var (
	wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)

	umlauts = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")
)

// fold lower-cases s and spells out German umlauts.
func fold(s string) string {
	return umlauts.Replace(strings.ToLower(s))
}

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
