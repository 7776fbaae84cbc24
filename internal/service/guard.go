package service

import "sync"

// saveGuard rejects a second save of the same target by the same actor while
// the first is in flight.
type saveGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newSaveGuard() *saveGuard {
	return &saveGuard{inFlight: make(map[string]struct{})}
}

// acquire marks key busy. The returned release must be called on every exit path.
func (g *saveGuard) acquire(key string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[key]; busy {
		return nil, ErrSaveInProgress
	}
	g.inFlight[key] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.inFlight, key)
		g.mu.Unlock()
	}, nil
}
