package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
		wantIs   error
	}{
		{"nil", nil, KindUnknown, nil},
		{"not found passes through", ErrNotFound, KindUnknown, ErrNotFound},
		{"cancelled", context.Canceled, KindUnavailable, context.Canceled},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), KindUnavailable, context.DeadlineExceeded},
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, KindUnavailable, nil},
		{"locked", sqlite3.Error{Code: sqlite3.ErrLocked}, KindUnavailable, nil},
		{"unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, KindUnknown, ErrDuplicate},
		{"other", errors.New("boom"), KindUnknown, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			if tt.err == nil {
				if got != nil {
					t.Errorf("classify(nil) = %v", got)
				}
				return
			}
			if k := KindOf(got); k != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v", k, tt.wantKind)
			}
			if tt.wantIs != nil && !errors.Is(got, tt.wantIs) {
				t.Errorf("classify() = %v, want errors.Is %v", got, tt.wantIs)
			}
		})
	}
}

func TestFind_ClassifiesFailures(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepo(db, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := repo.Find(ctx, Query{Collection: "notes"})
	if !IsUnavailable(err) {
		t.Errorf("Find(cancelled) error = %v, want unavailable", err)
	}

	if _, err := db.Exec(`DROP TABLE documents`); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	_, err = repo.Find(context.Background(), Query{Collection: "notes"})
	if !IsConfiguration(err) {
		t.Errorf("Find(no table) error = %v, want configuration", err)
	}
	if IsUnavailable(err) {
		t.Error("configuration error should not be unavailable")
	}
}
