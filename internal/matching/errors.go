package matching

import "errors"

// Structured failure outcomes for connect-by-code requests. A missing queue
// or map entry is never an error in this package; absence comes back as a
// nil result.
var (
	ErrTargetNotFound        = errors.New("target user not found")
	ErrTargetOffline         = errors.New("target user is not online")
	ErrRequestAlreadyPending = errors.New("a connection request is already pending")
)
