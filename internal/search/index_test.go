package search

import (
	"testing"
)

func knowledgeDocs() []Document {
	return []Document{
		{ID: "k1", Title: "Öffnungszeiten", Body: "Montag bis Freitag 8-18 Uhr, Samstag 9-13 Uhr.", Keywords: []string{"geöffnet", "uhrzeit"}},
		{ID: "k2", Title: "Ersatzwagen", Body: "Für längere Reparaturen stellen wir kostenlos einen Ersatzwagen.", Keywords: []string{"leihwagen"}},
		{ID: "k3", Title: "Preise", Body: "| Leistung | Preis |\n|---|---|\n| Reifenwechsel | 40 Euro |"},
	}
}

func TestOptionsAndDefaults(t *testing.T) {
	def := defaultConfig()
	if def.stopwords != nil || def.maxDocs != 0 || def.minScore != 0 {
		t.Fatalf("defaultConfig unexpected: %#v", def)
	}
	cfg := def
	WithStopwords([]string{"  Die ", "", "Und"})(&cfg)
	if _, ok := cfg.stopwords["die"]; !ok {
		t.Fatalf("WithStopwords failed: %#v", cfg.stopwords)
	}
	cfg2 := def
	WithStopwords(nil)(&cfg2)
	if cfg2.stopwords != nil {
		t.Fatalf("empty stopwords should remain nil")
	}
	WithMaxDocs(2)(&cfg)
	WithMaxDocs(0)(&cfg) // no-op
	if cfg.maxDocs != 2 {
		t.Fatalf("WithMaxDocs = %d", cfg.maxDocs)
	}
	WithMinScore(0.2)(&cfg)
	WithMinScore(2)(&cfg) // out of range, ignored
	if cfg.minScore != 0.2 {
		t.Fatalf("WithMinScore = %v", cfg.minScore)
	}
}

func TestTopK_RanksRelevantEntry(t *testing.T) {
	idx := NewIndex(knowledgeDocs(), WithStopwords(GermanStopwords))
	if idx.Len() != 3 {
		t.Fatalf("Len = %d", idx.Len())
	}

	res := idx.TopK("Haben Sie einen Leihwagen?", 3)
	if len(res) != 1 || res[0].ID != "k2" {
		t.Fatalf("expected only k2, got %+v", res)
	}
	if res[0].Title != "Ersatzwagen" || res[0].Score <= 0 {
		t.Fatalf("unexpected result: %+v", res[0])
	}

	res = idx.TopK("Was kostet ein Reifenwechsel?", 1)
	if len(res) != 1 || res[0].ID != "k3" {
		t.Fatalf("table row should be searchable, got %+v", res)
	}
	if res[0].Snippet != "Leistung Preis Reifenwechsel 40 Euro" {
		t.Fatalf("table not flattened: %q", res[0].Snippet)
	}
}

func TestTopK_EdgeCases(t *testing.T) {
	idx := NewIndex(knowledgeDocs())
	if idx.TopK("   ", 3) != nil {
		t.Fatalf("blank query should return nil")
	}
	if idx.TopK("xyz", 3) != nil {
		t.Fatalf("no overlap should return nil")
	}
	if got := NewIndex(nil).TopK("uhrzeit", 3); got != nil {
		t.Fatalf("empty index should return nil")
	}
	// All-stopword query tokenizes to nothing.
	sw := NewIndex(knowledgeDocs(), WithStopwords([]string{"und", "die"}))
	if sw.TopK("und die", 3) != nil {
		t.Fatalf("stopword-only query should return nil")
	}
}

func TestTopK_TiesKeepInputOrder(t *testing.T) {
	idx := NewIndex([]Document{
		{ID: "high", Body: "bremsen prüfen"},
		{ID: "low", Body: "bremsen wechseln"},
	})
	res := idx.TopK("bremsen", 0) // k<=0 defaults to 3
	if len(res) != 2 || res[0].ID != "high" || res[1].ID != "low" {
		t.Fatalf("tie order not stable: %+v", res)
	}
}

func TestNewIndex_MaxDocsAndEmptyDocs(t *testing.T) {
	docs := append([]Document{{ID: "empty", Body: "  ...  "}}, knowledgeDocs()...)
	idx := NewIndex(docs, WithMaxDocs(2))
	if idx.Len() != 2 {
		t.Fatalf("Len = %d; want 2 (empty skipped, cap 2)", idx.Len())
	}
}

func TestMinScoreFilters(t *testing.T) {
	idx := NewIndex(knowledgeDocs(), WithMinScore(0.9))
	if res := idx.TopK("Leihwagen bitte morgen", 3); res != nil {
		t.Fatalf("low scores should be filtered, got %+v", res)
	}
}

func TestHelpers_TokenizeOverlapWhitespace(t *testing.T) {
	toks := tokenize("Öl 40 Euro, öl!", nil)
	for _, w := range []string{"oel", "40", "euro"} {
		if _, ok := toks[w]; !ok {
			t.Fatalf("missing token %q in %v", w, toks)
		}
	}
	if tokenize("...", nil) != nil {
		t.Fatalf("punctuation-only should tokenize to nil")
	}
	a := map[string]struct{}{"a": {}, "b": {}, "c": {}}
	b := map[string]struct{}{"b": {}}
	if overlap(a, b) != 1 || overlap(b, a) != 1 || overlap(nil, a) != 0 {
		t.Fatalf("overlap unexpected")
	}
	if got := normalizeWhitespace("a \t\n b"); got != "a b" {
		t.Fatalf("normalizeWhitespace = %q", got)
	}
}

func TestFold_UmlautSpellings(t *testing.T) {
	if got := fold("Ölwechsel GRÖßE Tür"); got != "oelwechsel groesse tuer" {
		t.Fatalf("fold = %q", got)
	}
	idx := NewIndex([]Document{{ID: "oil", Title: "Ölwechsel", Body: "Motoröl und Filter"}})
	if res := idx.TopK("Oelwechsel bitte", 1); len(res) != 1 || res[0].ID != "oil" {
		t.Fatalf("ASCII spelling should match umlaut title, got %+v", res)
	}
	// Stopwords fold too, so "fuer" is dropped like "für".
	sw := NewIndex(knowledgeDocs(), WithStopwords(GermanStopwords))
	if sw.TopK("fuer", 3) != nil {
		t.Fatalf("folded stopword should not match")
	}
}

func TestScore_KeywordHitsOutrankBodyHits(t *testing.T) {
	idx := NewIndex([]Document{
		{ID: "body", Body: "Auch ein Ersatzwagen ist bei längeren Arbeiten möglich, sprechen Sie uns an."},
		{ID: "kw", Title: "Mobilität", Body: "Wir stellen Fahrzeuge während der Reparatur.", Keywords: []string{"ersatzwagen"}},
	})
	res := idx.TopK("ersatzwagen", 2)
	if len(res) != 2 || res[0].ID != "kw" || res[1].ID != "body" {
		t.Fatalf("keyword entry should rank first, got %+v", res)
	}
	if res[0].Score > 1 || res[1].Score <= 0 {
		t.Fatalf("scores out of range: %+v", res)
	}
}

func TestNewIndex_TitleOnlyDocument(t *testing.T) {
	idx := NewIndex([]Document{{ID: "t", Title: "Winterreifen"}})
	if idx.Len() != 1 {
		t.Fatalf("title-only entry should be indexed")
	}
	if res := idx.TopK("winterreifen", 1); len(res) != 1 || res[0].Score != 1 {
		t.Fatalf("exact title match should score 1, got %+v", res)
	}
}
