package storage

import (
	"context"
	"errors"
	"sync"

	"notehub/internal/changefeed"
)

// ErrFeedClosed is delivered when the change feed behind a subscription stops.
var ErrFeedClosed = errors.New("change feed closed")

// Snapshot is one delivery of a live query: the full result set, or an error.
// An error snapshot does not end the subscription.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Subscription is a live query. Only the most recent undelivered snapshot is
// kept; a slow consumer skips intermediate ones.
type Subscription struct {
	ch     chan Snapshot
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Updates delivers snapshots until Cancel is called. The channel is closed
// by Cancel.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.ch
}

// Cancel stops the subscription. When it returns no further snapshot will be
// delivered. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		select {
		case <-s.ch:
		default:
		}
		close(s.ch)
	})
}

func (s *Subscription) deliver(snap Snapshot) {
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}

// Subscribe starts a live query on q. The listener is registered before the
// initial read so no write between the two is missed. A change triggers a
// re-read only when its before or after image matches q.
func (r *DocumentRepo) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &Subscription{
		ch:     make(chan Snapshot, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	listener := r.feed.Listen()

	go func() {
		defer close(sub.done)
		defer listener.Close()
		r.watch(runCtx, q, listener, sub)
	}()
	return sub, nil
}

func (r *DocumentRepo) watch(ctx context.Context, q Query, listener *changefeed.Listener, sub *Subscription) {
	refresh := func() {
		docs, err := r.Find(ctx, q)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			sub.deliver(Snapshot{Err: err})
			return
		}
		sub.deliver(Snapshot{Docs: docs})
	}

	refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-listener.Done():
			sub.deliver(Snapshot{Err: ErrFeedClosed})
			<-ctx.Done()
			return
		case <-listener.Ready():
			if relevant(q, listener.Drain()) {
				refresh()
			}
		}
	}
}

func relevant(q Query, changes []changefeed.Change) bool {
	for _, c := range changes {
		if c.Collection != q.Collection {
			continue
		}
		if q.Matches(c.Before) || q.Matches(c.After) {
			return true
		}
	}
	return false
}

// NewSubscription adapts a caller-driven channel of snapshots to a
// Subscription with the same latest-wins delivery and synchronous Cancel.
// Other DocumentStore implementations and tests use it.
func NewSubscription(src <-chan Snapshot) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		ch:     make(chan Snapshot, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(sub.done)
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-src:
				if !ok {
					<-ctx.Done()
					return
				}
				sub.deliver(snap)
			}
		}
	}()
	return sub
}
