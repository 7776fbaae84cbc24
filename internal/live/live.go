// Package live keeps note views current: two live queries (current and legacy
// schema) feed one merged, filtered and grouped state.
package live

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"notehub/internal/catalog"
	"notehub/internal/contextutil"
	"notehub/internal/notes"
	"notehub/internal/storage"
)

// Stream names one of the two live queries behind a view.
type Stream string

const (
	StreamCurrent Stream = "current"
	StreamLegacy  Stream = "legacy"
)

// State is one immutable rendering of a view.
type State struct {
	// Notes is the merged, visible, filtered sequence, newest first.
	Notes []notes.Note
	// Groups summarizes the merged sequence by term level, before filtering.
	Groups []notes.TermGroup
	// Ready is true once both streams have delivered at least once.
	Ready bool
	// Errors holds the latest failure of each stream still failing. A failing
	// stream keeps contributing its last good result.
	Errors map[Stream]error
}

// Queries returns the current-schema and legacy-schema queries for scope.
// The legacy query is never narrowed by the store; legacy records are matched
// against the scope after they arrive.
func Queries(scope notes.Scope) (current, legacy storage.Query) {
	current = storage.Query{
		Collection: notes.Collection,
		Where:      []storage.Predicate{storage.Eq(notes.FieldUploadedByRole, notes.RoleAdmin)},
	}
	if scope.TermLevel != "" {
		current.Where = append(current.Where, storage.Eq(notes.FieldTermLevel, scope.TermLevel))
	}
	if scope.Batch != "" {
		current.Where = append(current.Where, storage.Eq(notes.FieldBatch, scope.Batch))
	}
	legacy = storage.Query{
		Collection: notes.Collection,
		Where:      []storage.Predicate{storage.Eq(notes.FieldRole, notes.RoleAdmin)},
	}
	return current, legacy
}

// Subscriber opens views over a document store.
type Subscriber struct {
	store      storage.DocumentStore
	catalog    *catalog.Catalog
	precedence notes.Precedence
}

// NewSubscriber creates a subscriber.
func NewSubscriber(store storage.DocumentStore, cat *catalog.Catalog, p notes.Precedence) *Subscriber {
	return &Subscriber{store: store, catalog: cat, precedence: p}
}

// Compute derives the view contents from the two raw result sets.
func (s *Subscriber) Compute(scope notes.Scope, criteria notes.Criteria, current, legacy []notes.Note) ([]notes.Note, []notes.TermGroup) {
	var merged []notes.Note
	if scope.Unscoped() {
		merged = notes.Merge(current, legacy, s.precedence)
	} else {
		merged = notes.MergeScoped(current, legacy, scope, s.catalog, s.precedence)
	}
	merged = notes.VisibleOnly(merged)
	return notes.Filter(merged, criteria), notes.Group(merged, s.catalog)
}

// Snapshot reads both streams once. A failure of one stream is reported in
// State.Errors; an error is returned only when both fail.
func (s *Subscriber) Snapshot(ctx context.Context, scope notes.Scope, criteria notes.Criteria) (State, error) {
	if err := scope.Validate(); err != nil {
		return State{}, err
	}
	currentQ, legacyQ := Queries(scope)

	errs := make(map[Stream]error)
	currentDocs, err := s.store.Find(ctx, currentQ)
	if err != nil {
		errs[StreamCurrent] = err
	}
	legacyDocs, err := s.store.Find(ctx, legacyQ)
	if err != nil {
		errs[StreamLegacy] = err
	}
	if len(errs) == 2 {
		return State{}, fmt.Errorf("failed to load notes: %w", errors.Join(errs[StreamCurrent], errs[StreamLegacy]))
	}

	list, groups := s.Compute(scope, criteria, toNotes(currentDocs), toNotes(legacyDocs))
	state := State{Notes: list, Groups: groups, Ready: len(errs) == 0}
	if len(errs) > 0 {
		state.Errors = errs
	}
	return state, nil
}

// View is a live, cancellable rendering of one scope.
type View struct {
	updates chan State
	cancel  context.CancelFunc
	stop    func() bool
	done    chan struct{}
	once    sync.Once
}

// Open subscribes both streams for scope and starts recomputing the view on
// every delivery. The view is torn down by Close or when ctx is done. Batch
// without term level is rejected.
func (s *Subscriber) Open(ctx context.Context, scope notes.Scope, criteria notes.Criteria) (*View, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	currentQ, legacyQ := Queries(scope)

	current, err := s.store.Subscribe(ctx, currentQ)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe current notes: %w", err)
	}
	legacy, err := s.store.Subscribe(ctx, legacyQ)
	if err != nil {
		current.Cancel()
		return nil, fmt.Errorf("failed to subscribe legacy notes: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	v := &View{
		updates: make(chan State, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(v.done)
		defer legacy.Cancel()
		defer current.Cancel()
		s.run(runCtx, v, scope, criteria, current, legacy)
	}()
	v.stop = context.AfterFunc(ctx, v.Close)
	return v, nil
}

// Updates delivers view states until Close. Only the newest undelivered state
// is kept.
func (v *View) Updates() <-chan State {
	return v.updates
}

// Close cancels both subscriptions. When it returns no further state is
// delivered and Updates is closed. Safe to call more than once.
func (v *View) Close() {
	v.once.Do(func() {
		if v.stop != nil {
			v.stop()
		}
		v.cancel()
		<-v.done
		select {
		case <-v.updates:
		default:
		}
		close(v.updates)
	})
}

func (v *View) publish(st State) {
	select {
	case <-v.updates:
	default:
	}
	select {
	case v.updates <- st:
	default:
	}
}

func (s *Subscriber) run(ctx context.Context, v *View, scope notes.Scope, criteria notes.Criteria, current, legacy *storage.Subscription) {
	logger := contextutil.LoggerFromContext(ctx).With(
		"term_level", scope.TermLevel,
		"batch", scope.Batch,
	)

	var (
		currentNotes, legacyNotes []notes.Note
		haveCurrent, haveLegacy   bool
		errs                      = make(map[Stream]error)
	)
	currentCh, legacyCh := current.Updates(), legacy.Updates()

	apply := func(stream Stream, snap storage.Snapshot, dst *[]notes.Note, have *bool) {
		if snap.Err != nil {
			logger.WarnContext(ctx, "live query failed", "stream", string(stream), "error", snap.Err)
			errs[stream] = snap.Err
			return
		}
		delete(errs, stream)
		*dst = toNotes(snap.Docs)
		*have = true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-currentCh:
			if !ok {
				currentCh = nil
				continue
			}
			apply(StreamCurrent, snap, &currentNotes, &haveCurrent)
		case snap, ok := <-legacyCh:
			if !ok {
				legacyCh = nil
				continue
			}
			apply(StreamLegacy, snap, &legacyNotes, &haveLegacy)
		}

		list, groups := s.Compute(scope, criteria, currentNotes, legacyNotes)
		st := State{Notes: list, Groups: groups, Ready: haveCurrent && haveLegacy}
		if len(errs) > 0 {
			st.Errors = maps.Clone(errs)
		}
		v.publish(st)
	}
}

func toNotes(docs []storage.Document) []notes.Note {
	out := make([]notes.Note, 0, len(docs))
	for _, d := range docs {
		out = append(out, notes.FromFields(d.ID, d.Fields, d.CreatedAt))
	}
	return out
}
