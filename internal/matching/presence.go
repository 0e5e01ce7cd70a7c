package matching

import "sync"

// PresenceRegistry maps a user to the identifier of its current live
// websocket connection. A user has at most one current connection; setting a
// new one supersedes the previous value with no history kept. All methods
// are safe for arbitrary concurrent use and the lock is never held beyond a
// single map mutation. Ordering between overlapping calls for the same user
// is last-completed-write-wins; callers must not race their own state.
type PresenceRegistry struct {
	mu    sync.RWMutex
	conns map[string]string // userID -> connectionID
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		conns: make(map[string]string),
	}
}

// SetOnline records the user's current connection, overwriting any previous
// one.
func (p *PresenceRegistry) SetOnline(userID, connectionID string) {
	p.mu.Lock()
	p.conns[userID] = connectionID
	p.mu.Unlock()
}

// SetOffline removes the user's connection mapping. Removing an absent user
// is a no-op.
func (p *PresenceRegistry) SetOffline(userID string) {
	p.mu.Lock()
	delete(p.conns, userID)
	p.mu.Unlock()
}

// Lookup returns the user's current connection, if any.
func (p *PresenceRegistry) Lookup(userID string) (string, bool) {
	p.mu.RLock()
	connID, ok := p.conns[userID]
	p.mu.RUnlock()
	return connID, ok
}
