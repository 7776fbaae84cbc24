package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"notehub/internal/changefeed"
)

func newTestDocuments(t *testing.T) (*DocumentRepo, *changefeed.Hub) {
	t.Helper()
	hub := changefeed.NewHub()
	t.Cleanup(func() {
		_ = hub.Close()
	})
	return NewDocumentRepo(newTestDB(t), hub), hub
}

func TestDocumentRepo_InsertAssignsIDAndTime(t *testing.T) {
	repo, _ := newTestDocuments(t)
	ctx := context.Background()
	fixed := time.UnixMilli(1_700_000_000_123)
	repo.now = func() time.Time { return fixed }

	doc, err := repo.Insert(ctx, "notes", map[string]any{"title": "Circuits"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if doc.ID == "" {
		t.Fatal("Insert() returned empty id")
	}
	if !doc.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", doc.CreatedAt, fixed)
	}

	got, err := repo.Get(ctx, "notes", doc.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Fields["title"] != "Circuits" {
		t.Errorf("title = %v, want Circuits", got.Fields["title"])
	}
	if got.CreatedAt.UnixMilli() != fixed.UnixMilli() {
		t.Errorf("stored CreatedAt = %d, want %d", got.CreatedAt.UnixMilli(), fixed.UnixMilli())
	}
}

func TestDocumentRepo_PutKeepsMissingTimestamp(t *testing.T) {
	repo, _ := newTestDocuments(t)
	ctx := context.Background()

	if err := repo.Put(ctx, "notes", Document{ID: "old", Fields: map[string]any{"term": "Level 1 Term I"}}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := repo.Get(ctx, "notes", "old")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.CreatedAt.IsZero() {
		t.Errorf("CreatedAt = %v, want zero", got.CreatedAt)
	}

	// A second Put replaces the fields entirely
	if err := repo.Put(ctx, "notes", Document{ID: "old", Fields: map[string]any{"title": "x"}}); err != nil {
		t.Fatalf("Put() replace error = %v", err)
	}
	got, _ = repo.Get(ctx, "notes", "old")
	if _, ok := got.Fields["term"]; ok {
		t.Error("Put() should replace, not merge")
	}
}

func TestDocumentRepo_UpdateMergesFields(t *testing.T) {
	repo, _ := newTestDocuments(t)
	ctx := context.Background()

	doc, err := repo.Insert(ctx, "notes", map[string]any{"title": "a", "batch": "12"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := repo.Update(ctx, "notes", doc.ID, map[string]any{"batch": "13"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := repo.Get(ctx, "notes", doc.ID)
	if got.Fields["title"] != "a" || got.Fields["batch"] != "13" {
		t.Errorf("fields = %v, want title=a batch=13", got.Fields)
	}
	if !got.CreatedAt.Equal(doc.CreatedAt) {
		t.Errorf("Update() changed CreatedAt from %v to %v", doc.CreatedAt, got.CreatedAt)
	}

	err = repo.Update(ctx, "notes", "missing", map[string]any{"x": 1})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDocumentRepo_Delete(t *testing.T) {
	repo, hub := newTestDocuments(t)
	ctx := context.Background()

	doc, _ := repo.Insert(ctx, "notes", map[string]any{"title": "a"})

	listener := hub.Listen()
	defer listener.Close()

	if err := repo.Delete(ctx, "notes", doc.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, "notes", doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}

	// Deleting again succeeds and announces nothing
	if err := repo.Delete(ctx, "notes", doc.ID); err != nil {
		t.Fatalf("Delete() twice error = %v", err)
	}

	changes := listener.Drain()
	if len(changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(changes))
	}
	if changes[0].Before["title"] != "a" || changes[0].After != nil {
		t.Errorf("delete change = %+v, want before image and nil after", changes[0])
	}
}

func TestDocumentRepo_Find(t *testing.T) {
	repo, _ := newTestDocuments(t)
	ctx := context.Background()

	ms := int64(1000)
	repo.now = func() time.Time {
		ms += 1000
		return time.UnixMilli(ms)
	}

	older, _ := repo.Insert(ctx, "notes", map[string]any{"termLevel": "L1T1", "batch": "12"})
	newer, _ := repo.Insert(ctx, "notes", map[string]any{"termLevel": "L1T1", "batch": "13"})
	_, _ = repo.Insert(ctx, "notes", map[string]any{"termLevel": "L2T1", "batch": "12"})
	_ = repo.Put(ctx, "notes", Document{ID: "legacy", Fields: map[string]any{"termLevel": "L1T1", "batch": float64(12)}})
	_, _ = repo.Insert(ctx, "users", map[string]any{"termLevel": "L1T1"})

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{
			name:  "term level newest first, undated last",
			query: Query{Collection: "notes", Where: []Predicate{Eq("termLevel", "L1T1")}},
			want:  []string{newer.ID, older.ID, "legacy"},
		},
		{
			name:  "term and numeric batch",
			query: Query{Collection: "notes", Where: []Predicate{Eq("termLevel", "L1T1"), Eq("batch", "12")}},
			want:  []string{older.ID, "legacy"},
		},
		{
			name:  "no match",
			query: Query{Collection: "notes", Where: []Predicate{Eq("termLevel", "L4T2")}},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := repo.Find(ctx, tt.query)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if len(docs) != len(tt.want) {
				t.Fatalf("Find() returned %d docs, want %d", len(docs), len(tt.want))
			}
			for i, d := range docs {
				if d.ID != tt.want[i] {
					t.Errorf("docs[%d] = %s, want %s", i, d.ID, tt.want[i])
				}
			}
		})
	}
}

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{"ok", Query{Collection: "notes", Where: []Predicate{Eq("termLevel", "x")}}, false},
		{"no collection", Query{}, true},
		{"injection", Query{Collection: "notes", Where: []Predicate{Eq("x') OR 1=1 --", "y")}}, true},
		{"dotted path", Query{Collection: "notes", Where: []Predicate{Eq("a.b", "y")}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("Validate() error = %v, want ErrInvalidQuery", err)
			}
		})
	}
}

func TestQuery_Matches(t *testing.T) {
	q := Query{Collection: "notes", Where: []Predicate{Eq("termLevel", "L1T1"), Eq("batch", "12")}}

	tests := []struct {
		name   string
		fields map[string]any
		want   bool
	}{
		{"nil", nil, false},
		{"match", map[string]any{"termLevel": "L1T1", "batch": "12"}, true},
		{"numeric batch", map[string]any{"termLevel": "L1T1", "batch": float64(12)}, true},
		{"missing batch", map[string]any{"termLevel": "L1T1"}, false},
		{"other term", map[string]any{"termLevel": "L1T2", "batch": "12"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := q.Matches(tt.fields); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
