package notes

import (
	"testing"

	"notehub/internal/catalog"
)

func TestGroup_Counts(t *testing.T) {
	in := []Note{
		{ID: "1", TermLevel: "L2T1"},
		{ID: "2", TermLevel: "L1T1"},
		{ID: "3", TermLevel: "L1T1"},
		{ID: "4", TermLevel: "L2T1"},
		{ID: "5", TermLevel: "L1T1"},
	}

	got := Group(in, catalog.Default())
	if len(got) != 2 {
		t.Fatalf("Group() returned %d groups, want 2", len(got))
	}
	if got[0].Key != "L1T1" || got[0].Count != 3 {
		t.Errorf("group[0] = %+v, want L1T1 x3", got[0])
	}
	if got[1].Key != "L2T1" || got[1].Count != 2 {
		t.Errorf("group[1] = %+v, want L2T1 x2", got[1])
	}
	if got[0].Label != "Level 1 · Term I" {
		t.Errorf("group[0].Label = %q", got[0].Label)
	}
}

func TestGroup_LabelsAndCovers(t *testing.T) {
	in := []Note{
		{ID: "1", Term: "Old term text"},
		{ID: "2", CoverImageURL: "https://img/2.png"},
		{ID: "3", TermLevel: "X1", CoverImageURL: "https://img/3.png"},
		{ID: "4", TermLevel: "X1", CoverImageURL: "https://img/4.png"},
		{ID: "5", TermLevel: "X2", TermLabel: "Custom label"},
	}

	got := Group(in, catalog.Default())
	byKey := make(map[string]TermGroup)
	for _, g := range got {
		byKey[g.Key] = g
	}

	if g := byKey[UnknownTermKey]; g.Count != 2 || g.Label != "Old term text" || g.CoverImageURL != "https://img/2.png" {
		t.Errorf("unknown group = %+v", g)
	}
	if g := byKey["X1"]; g.Label != "X1" || g.CoverImageURL != "https://img/3.png" {
		t.Errorf("X1 group = %+v", g)
	}
	if g := byKey["X2"]; g.Label != "Custom label" {
		t.Errorf("X2 group = %+v", g)
	}

	for i := 1; i < len(got); i++ {
		if got[i-1].Key > got[i].Key {
			t.Errorf("groups not sorted: %v before %v", got[i-1].Key, got[i].Key)
		}
	}
}

func TestGroup_Empty(t *testing.T) {
	if got := Group(nil, catalog.Default()); len(got) != 0 {
		t.Errorf("Group(nil) = %+v", got)
	}
}
