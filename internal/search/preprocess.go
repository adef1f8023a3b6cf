package search

import (
	"strings"
)

// FlattenTables rewrites Markdown table rows ("| Reifenwechsel | 40€ |")
// into plain lines ("Reifenwechsel 40€") and drops separator rows. Other
// lines are kept trimmed; blank lines collapse to one.
func FlattenTables(s string) string {
	if !strings.Contains(s, "|") {
		return strings.TrimSpace(s)
	}
	var b strings.Builder
	blank := true // avoid a leading blank line

	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				b.WriteByte('\n')
				blank = true
			}
			continue
		}
		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			cells := make([]string, 0, 4)
			sep := true
			for _, c := range strings.Split(strings.Trim(line, "|"), "|") {
				cell := strings.TrimSpace(c)
				if strings.Trim(cell, ":- ") != "" {
					sep = false
				}
				if cell != "" {
					cells = append(cells, cell)
				}
			}
			if sep || len(cells) == 0 {
				continue
			}
			line = strings.Join(cells, " ")
		}
		b.WriteString(line)
		b.WriteByte('\n')
		blank = false
	}
	return strings.TrimSpace(b.String())
}
