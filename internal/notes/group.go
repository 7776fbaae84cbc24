package notes

import (
	"sort"

	"notehub/internal/catalog"
)

// UnknownTermKey groups notes with no term level.
const UnknownTermKey = "unknown"

// TermGroup summarizes the notes of one term level.
type TermGroup struct {
	Key           string `json:"key"`
	Label         string `json:"label"`
	CoverImageURL string `json:"coverImageUrl,omitempty"`
	Count         int    `json:"count"`
}

// Group aggregates notes by term level, ordered by key.
func Group(in []Note, cat *catalog.Catalog) []TermGroup {
	byKey := make(map[string]*TermGroup)
	legacyText := make(map[string]string)

	for _, n := range in {
		key := n.TermLevel
		if key == "" {
			key = UnknownTermKey
		}
		g, ok := byKey[key]
		if !ok {
			g = &TermGroup{Key: key}
			byKey[key] = g
		}
		g.Count++
		if g.CoverImageURL == "" && n.CoverImageURL != "" {
			g.CoverImageURL = n.CoverImageURL
		}
		if g.Label == "" {
			if label := cat.TermLabel(n.TermLevel); label != "" {
				g.Label = label
			} else if n.TermLabel != "" {
				g.Label = n.TermLabel
			}
		}
		if legacyText[key] == "" && n.Term != "" {
			legacyText[key] = n.Term
		}
	}

	out := make([]TermGroup, 0, len(byKey))
	for key, g := range byKey {
		if g.Label == "" {
			g.Label = legacyText[key]
		}
		if g.Label == "" {
			g.Label = key
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
