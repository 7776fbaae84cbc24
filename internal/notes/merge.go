package notes

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"notehub/internal/catalog"
)

// Precedence decides which stream's copy survives when both carry the same id.
type Precedence int

const (
	// LegacyWins lets the legacy copy overwrite the current one. This is the
	// long-standing behavior of the dashboard merge.
	LegacyWins Precedence = iota
	// CurrentWins keeps the current-schema copy.
	CurrentWins
)

func (p Precedence) String() string {
	if p == CurrentWins {
		return "current"
	}
	return "legacy"
}

// ParsePrecedence reads "legacy" (or empty) and "current".
func ParsePrecedence(s string) (Precedence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "legacy":
		return LegacyWins, nil
	case "current":
		return CurrentWins, nil
	default:
		return LegacyWins, fmt.Errorf("unknown merge precedence %q", s)
	}
}

// ErrUnsupportedScope is returned for a batch filter without a term level.
var ErrUnsupportedScope = errors.New("batch filter requires a term level")

// Scope selects which notes a view is about. The zero Scope means all admin notes.
type Scope struct {
	TermLevel string
	Batch     string
}

// Validate rejects batch-only scopes.
func (s Scope) Validate() error {
	if s.Batch != "" && s.TermLevel == "" {
		return ErrUnsupportedScope
	}
	return nil
}

// Unscoped reports whether the scope selects every admin note.
func (s Scope) Unscoped() bool {
	return s.TermLevel == "" && s.Batch == ""
}

// Merge combines the current-schema and legacy-schema result sets into one
// sequence, unique by id and ordered newest first. Inputs are not modified.
func Merge(current, legacy []Note, p Precedence) []Note {
	merged := make([]Note, 0, len(current)+len(legacy))
	index := make(map[string]int, len(current)+len(legacy))

	put := func(n Note, overwrite bool) {
		if i, ok := index[n.ID]; ok {
			if overwrite {
				merged[i] = n
			}
			return
		}
		index[n.ID] = len(merged)
		merged = append(merged, n)
	}

	for _, n := range current {
		put(n, true)
	}
	for _, n := range legacy {
		put(n, p == LegacyWins)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedMillis() > merged[j].CreatedMillis()
	})
	return merged
}

// MergeScoped is Merge for a term (and optionally batch) view. The current
// stream is already scoped by the store; legacy records are kept only when
// they match the scope on a best-effort basis.
func MergeScoped(current, legacy []Note, scope Scope, cat *catalog.Catalog, p Precedence) []Note {
	matched := make([]Note, 0, len(legacy))
	for _, n := range legacy {
		if LegacyMatches(n, scope, cat) {
			matched = append(matched, n)
		}
	}
	return Merge(current, matched, p)
}

// LegacyMatches applies the legacy fallback rules: the term matches on the
// canonical code or on free text containing the code's label, and a requested
// batch must match exactly.
func LegacyMatches(n Note, scope Scope, cat *catalog.Catalog) bool {
	if scope.TermLevel != "" {
		okTerm := n.TermLevel == scope.TermLevel
		if !okTerm {
			label := cat.TermLabel(scope.TermLevel)
			okTerm = label != "" && n.Term != "" && strings.Contains(n.Term, label)
		}
		if !okTerm {
			return false
		}
	}
	if scope.Batch != "" && n.Batch != scope.Batch {
		return false
	}
	return true
}
