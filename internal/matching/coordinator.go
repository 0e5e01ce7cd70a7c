package matching

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ammarsecurity/nexchat/internal/models"
)

// SessionStore persists chat sessions. The coordinator never keeps session
// state of its own; it only passes the pair and kind forward and reads back
// the created record.
type SessionStore interface {
	Create(ctx context.Context, user1, user2 string, kind models.SessionKind) (*models.ChatSession, error)
	FindActive(ctx context.Context, sessionID, userID string) (*models.ChatSession, error)
}

// Directory resolves invite codes to users, excluding banned ones. It
// returns nil without error when no such user exists.
type Directory interface {
	FindByCode(ctx context.Context, code string) (*models.User, error)
}

// Coordinator is the presence and matching core: it tracks which users are
// reachable and through which connection, pairs waiting users, and
// arbitrates connect-by-code requests. It is constructed once at startup and
// shared by every connection; all state lives in the injected registry,
// queue, and table, each with its own fine-grained lock.
type Coordinator struct {
	presence *PresenceRegistry
	queue    *MatchQueue
	pending  *PendingRequestTable

	sessions  SessionStore
	directory Directory
	logger    *zap.Logger
}

func NewCoordinator(
	presence *PresenceRegistry,
	queue *MatchQueue,
	pending *PendingRequestTable,
	sessions SessionStore,
	directory Directory,
) *Coordinator {
	logger, _ := zap.NewProduction()

	return &Coordinator{
		presence:  presence,
		queue:     queue,
		pending:   pending,
		sessions:  sessions,
		directory: directory,
		logger:    logger,
	}
}

// SetOnline registers the user's current connection.
func (c *Coordinator) SetOnline(userID, connectionID string) {
	c.presence.SetOnline(userID, connectionID)
}

// SetOffline purges every trace of the user: waiting state, presence, and
// any pending request naming the user on either side.
func (c *Coordinator) SetOffline(userID string) {
	c.queue.Remove(userID)
	c.presence.SetOffline(userID)
	c.pending.RemoveUser(userID)
}

// Lookup returns the user's current connection, if any.
func (c *Coordinator) Lookup(userID string) (string, bool) {
	return c.presence.Lookup(userID)
}

// TryMatch registers presence for the user and tries to pair it with a
// waiting partner. If a live partner is found both leave the waiting state
// atomically and a session of kind random is created for them; otherwise the
// user joins its filter's queue and nil is returned.
func (c *Coordinator) TryMatch(ctx context.Context, userID string, filter Filter, connectionID string) (*models.ChatSession, error) {
	c.presence.SetOnline(userID, connectionID)

	partnerID, matched := c.queue.ClaimPartner(userID, filter)
	if !matched {
		return nil, nil
	}

	// Both users are already claimed; the store call runs outside any lock.
	session, err := c.sessions.Create(ctx, partnerID, userID, models.SessionKindRandom)
	if err != nil {
		c.logger.Error("Failed to create random session",
			zap.String("userId", userID),
			zap.String("partnerId", partnerID),
			zap.Error(err))
		return nil, err
	}

	return session, nil
}

// RemoveFromQueue cancels an ongoing search: the user stops waiting and its
// presence entry is dropped. Stale queue entries are skipped lazily by later
// searches.
func (c *Coordinator) RemoveFromQueue(userID string) {
	c.queue.Remove(userID)
	c.presence.SetOffline(userID)
}

// RequestConnection resolves the invite code and records a pending request
// toward its owner. The returned target ID lets the transport notify the
// target's connection.
func (c *Coordinator) RequestConnection(ctx context.Context, requesterID, code string) (string, error) {
	target, err := c.directory.FindByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return "", err
	}
	if target == nil || target.ID == requesterID {
		return "", ErrTargetNotFound
	}

	if c.pending.Has(requesterID) {
		return "", ErrRequestAlreadyPending
	}

	if _, online := c.presence.Lookup(target.ID); !online {
		return "", ErrTargetOffline
	}

	if !c.pending.Add(requesterID, target.ID) {
		// lost a race with another request from the same user
		return "", ErrRequestAlreadyPending
	}

	return target.ID, nil
}

// AcceptRequest consumes the requester's pending request and, when it names
// the accepting target and is still inside the timeout window, creates a
// session of kind code for the pair. An absent, foreign, or expired request
// yields nil; concurrent accept/decline/cancel calls produce exactly one
// winner.
func (c *Coordinator) AcceptRequest(ctx context.Context, targetID, requesterID string) (*models.ChatSession, error) {
	if !c.pending.Accept(targetID, requesterID) {
		return nil, nil
	}

	session, err := c.sessions.Create(ctx, requesterID, targetID, models.SessionKindCode)
	if err != nil {
		c.logger.Error("Failed to create code session",
			zap.String("requesterId", requesterID),
			zap.String("targetId", targetID),
			zap.Error(err))
		return nil, err
	}

	return session, nil
}

// DeclineRequest removes the requester's pending request when it names the
// declining target. No session is created.
func (c *Coordinator) DeclineRequest(targetID, requesterID string) bool {
	return c.pending.Decline(targetID, requesterID)
}

// CancelRequest withdraws the requester's own pending request, whoever it
// targets.
func (c *Coordinator) CancelRequest(requesterID string) bool {
	return c.pending.Cancel(requesterID)
}
