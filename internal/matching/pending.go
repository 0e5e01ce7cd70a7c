package matching

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// RequestTimeout is how long a connection request stays acceptable. Expiry
// is checked lazily when the request is accessed, never by the table itself.
const RequestTimeout = 60 * time.Second

type pendingRequest struct {
	targetID  string
	createdAt time.Time
}

// PendingRequestTable tracks outstanding connect-by-code requests, keyed by
// requester: a user can have at most one request in flight, while any number
// of requesters may target the same user. All mutations happen under the
// table's own mutex, so concurrent Accept/Decline/Cancel calls against the
// same request resolve to exactly one winner.
type PendingRequestTable struct {
	mu       sync.Mutex
	requests map[string]pendingRequest // requesterID -> request

	// overridable for expiry tests
	now func() time.Time

	// optional sweeper state
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
	logger   *zap.Logger
}

func NewPendingRequestTable() *PendingRequestTable {
	logger, _ := zap.NewProduction()

	return &PendingRequestTable{
		requests: make(map[string]pendingRequest),
		now:      time.Now,
		stopChan: make(chan struct{}),
		logger:   logger,
	}
}

// Add records a new request from requester to target. It fails when the
// requester already has one in flight, expired or not.
func (t *PendingRequestTable) Add(requesterID, targetID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.requests[requesterID]; exists {
		return false
	}

	t.requests[requesterID] = pendingRequest{
		targetID:  targetID,
		createdAt: t.now(),
	}
	return true
}

// Has reports whether the requester currently has a request in flight.
func (t *PendingRequestTable) Has(requesterID string) bool {
	t.mu.Lock()
	_, ok := t.requests[requesterID]
	t.mu.Unlock()
	return ok
}

// Accept removes the requester's entry and then validates it: the recorded
// target must equal targetID and the request must still be inside the
// timeout window. The entry is consumed either way, so of several concurrent
// Accept/Decline/Cancel calls exactly one observes the live entry.
func (t *PendingRequestTable) Accept(targetID, requesterID string) bool {
	t.mu.Lock()
	req, ok := t.requests[requesterID]
	if ok {
		delete(t.requests, requesterID)
	}
	t.mu.Unlock()

	if !ok || req.targetID != targetID {
		return false
	}
	if t.now().Sub(req.createdAt) > RequestTimeout {
		return false
	}
	return true
}

// Decline removes the request only when a live entry with the matching
// target exists.
func (t *PendingRequestTable) Decline(targetID, requesterID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, ok := t.requests[requesterID]
	if !ok || req.targetID != targetID {
		return false
	}

	delete(t.requests, requesterID)
	return true
}

// Cancel removes the requester's entry regardless of its target.
func (t *PendingRequestTable) Cancel(requesterID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.requests[requesterID]; !ok {
		return false
	}

	delete(t.requests, requesterID)
	return true
}

// RemoveUser purges every request in which the user appears as requester or
// target, so a disconnected party can never be accepted or declined later.
func (t *PendingRequestTable) RemoveUser(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.requests, userID)
	for requesterID, req := range t.requests {
		if req.targetID == userID {
			delete(t.requests, requesterID)
		}
	}
}

// StartSweeper runs a periodic purge of expired entries. The sweep is memory
// hygiene only; accept-time validation alone already enforces the timeout.
func (t *PendingRequestTable) StartSweeper(interval time.Duration) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.mu.Unlock()

	t.logger.Info("Starting pending request sweeper", zap.Duration("interval", interval))

	t.wg.Add(1)
	go t.sweepLoop(interval)
}

// StopSweeper stops the periodic purge and waits for it to exit.
func (t *PendingRequestTable) StopSweeper() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.mu.Unlock()

	close(t.stopChan)
	t.wg.Wait()
}

func (t *PendingRequestTable) sweepLoop(interval time.Duration) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := t.sweep(); removed > 0 {
				t.logger.Info("Swept expired connection requests", zap.Int("removed", removed))
			}
		case <-t.stopChan:
			return
		}
	}
}

func (t *PendingRequestTable) sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	now := t.now()
	for requesterID, req := range t.requests {
		if now.Sub(req.createdAt) > RequestTimeout {
			delete(t.requests, requesterID)
			removed++
		}
	}
	return removed
}
