package notes

import "strings"

// Criteria are the user-chosen filters. Empty fields impose no constraint.
type Criteria struct {
	TermLevel string
	Batch     string
	Search    string
}

// Filter returns the notes satisfying every active criterion, in input order.
// Only the canonical termLevel is consulted here; legacy free text never matches.
func Filter(in []Note, c Criteria) []Note {
	q := strings.ToLower(strings.TrimSpace(c.Search))

	out := make([]Note, 0, len(in))
	for _, n := range in {
		if c.TermLevel != "" && n.TermLevel != c.TermLevel {
			continue
		}
		if c.Batch != "" && n.Batch != c.Batch {
			continue
		}
		if q != "" {
			hay := strings.ToLower(n.Title + " " + n.Subject)
			if !strings.Contains(hay, q) {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}
