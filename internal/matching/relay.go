package matching

import (
	"context"

	"go.uber.org/zap"
)

// Deliverer pushes an event to one specific connection. Implemented by the
// websocket hub.
type Deliverer interface {
	Deliver(connectionID, event string, data interface{})
}

// SignalingRelay forwards opaque signaling payloads (offers, answers, ICE
// candidates and similar in-session events) to the sender's session partner.
// It is stateless and fire-and-forget: nothing is stored, retried, or
// acknowledged, and a missing session or offline partner drops the payload
// silently. The offer/answer/candidate exchange tolerates loss through its
// own retries above this layer.
type SignalingRelay struct {
	presence  *PresenceRegistry
	sessions  SessionStore
	transport Deliverer
	logger    *zap.Logger
}

func NewSignalingRelay(presence *PresenceRegistry, sessions SessionStore, transport Deliverer) *SignalingRelay {
	logger, _ := zap.NewProduction()

	return &SignalingRelay{
		presence:  presence,
		sessions:  sessions,
		transport: transport,
		logger:    logger,
	}
}

// Relay resolves the sender's partner in the given session and hands the
// payload to the partner's current connection.
func (r *SignalingRelay) Relay(ctx context.Context, sessionID, senderID, event string, data interface{}) {
	session, err := r.sessions.FindActive(ctx, sessionID, senderID)
	if err != nil {
		r.logger.Debug("Dropping signaling payload, session lookup failed",
			zap.String("sessionId", sessionID),
			zap.Error(err))
		return
	}
	if session == nil {
		return
	}

	partnerID := session.PartnerOf(senderID)
	connectionID, online := r.presence.Lookup(partnerID)
	if !online {
		return
	}

	r.transport.Deliver(connectionID, event, data)
}
