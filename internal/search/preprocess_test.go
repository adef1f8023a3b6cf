package search

import "testing"

func TestFlattenTables(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"no table", "  Nur Text.  ", "Nur Text."},
		{"table rows", "| Leistung | Preis |\n| :--- | ---: |\n| Ölwechsel | 59 Euro |", "Leistung Preis\nÖlwechsel 59 Euro"},
		{"mixed with blanks", "Intro\n\n\n| a | b |\n\nEnde", "Intro\n\na b\n\nEnde"},
		{"empty cells", "| | x | |", "x"},
		{"pipe inside text", "A | B", "A | B"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FlattenTables(tc.in); got != tc.want {
				t.Fatalf("FlattenTables(%q) = %q; want %q", tc.in, got, tc.want)
			}
		})
	}
}
