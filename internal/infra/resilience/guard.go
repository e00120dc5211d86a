package resilience

import "sync"

// Guard rejects a second concurrent operation on the same key. It backs
// the one-in-flight rule for money movement: at most one transfer or
// deal mutation per account may be executing at a time, and the loser
// gets an immediate error rather than a queue slot.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{inFlight: make(map[string]struct{})}
}

// TryAcquire claims key. On success it returns a release func that must
// be called exactly once. ok is false when the key is already held.
func (g *Guard) TryAcquire(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.inFlight[key]; held {
		return nil, false
	}
	g.inFlight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, key)
			g.mu.Unlock()
		})
	}, true
}
