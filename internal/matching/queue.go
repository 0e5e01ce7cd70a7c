package matching

import "sync"

// Filter is the caller's declared matching preference. It only selects which
// waiting queues are searched and which one the caller joins; the partner's
// actual gender is never checked against it, so a "male" searcher can still
// be paired with anyone sitting in the shared queue.
type Filter string

const (
	FilterAny    Filter = "any"
	FilterMale   Filter = "male"
	FilterFemale Filter = "female"
)

// ParseFilter maps a client-supplied string to a Filter, defaulting to
// FilterAny for anything unrecognized.
func ParseFilter(s string) Filter {
	switch Filter(s) {
	case FilterMale:
		return FilterMale
	case FilterFemale:
		return FilterFemale
	default:
		return FilterAny
	}
}

// MatchQueue holds users waiting for an anonymous partner: three FIFO
// buckets partitioned by filter plus a waiting set recording who is
// genuinely still waiting. Cancellation and disconnect only remove the user
// from the waiting set; queue entries are left behind and skipped lazily at
// dequeue time, which keeps removal O(1) at the cost of bounded queue bloat.
//
// All state is guarded by the queue's own mutex. The lock covers nothing but
// slice and map mutations, so holders never block on I/O.
type MatchQueue struct {
	mu      sync.Mutex
	any     []string
	male    []string
	female  []string
	waiting map[string]struct{}
}

func NewMatchQueue() *MatchQueue {
	return &MatchQueue{
		waiting: make(map[string]struct{}),
	}
}

// ClaimPartner marks the user as waiting, then scans the buckets in the
// filter's search order for a live candidate. On a hit both users leave the
// waiting set in the same critical section, so two concurrent claims can
// never win the same entry. On a miss the user is enqueued onto the filter's
// primary bucket and remains waiting.
//
// Calling ClaimPartner again for a user that is already waiting, without an
// intervening Remove, is not supported; callers must cancel first.
func (q *MatchQueue) ClaimPartner(userID string, filter Filter) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.waiting[userID] = struct{}{}

	for _, bucket := range q.searchOrder(filter) {
		for len(*bucket) > 0 {
			candidate := (*bucket)[0]
			*bucket = (*bucket)[1:]

			if candidate == userID {
				// stale entry from one of the caller's earlier searches
				continue
			}
			if _, live := q.waiting[candidate]; !live {
				// already matched, cancelled, or disconnected
				continue
			}

			delete(q.waiting, userID)
			delete(q.waiting, candidate)
			return candidate, true
		}
	}

	primary := q.primaryBucket(filter)
	*primary = append(*primary, userID)
	return "", false
}

// Remove takes the user out of the waiting set. Any queue entries are left
// in place and purged lazily by later scans.
func (q *MatchQueue) Remove(userID string) {
	q.mu.Lock()
	delete(q.waiting, userID)
	q.mu.Unlock()
}

// IsWaiting reports whether the user is still waiting for a partner.
func (q *MatchQueue) IsWaiting(userID string) bool {
	q.mu.Lock()
	_, ok := q.waiting[userID]
	q.mu.Unlock()
	return ok
}

// searchOrder returns the buckets to scan for the given filter, most
// specific first. Callers must hold q.mu.
func (q *MatchQueue) searchOrder(filter Filter) []*[]string {
	switch filter {
	case FilterMale:
		return []*[]string{&q.male, &q.any}
	case FilterFemale:
		return []*[]string{&q.female, &q.any}
	default:
		return []*[]string{&q.any, &q.male, &q.female}
	}
}

// primaryBucket returns the bucket a user with the given filter joins when
// no partner was found. Callers must hold q.mu.
func (q *MatchQueue) primaryBucket(filter Filter) *[]string {
	switch filter {
	case FilterMale:
		return &q.male
	case FilterFemale:
		return &q.female
	default:
		return &q.any
	}
}
