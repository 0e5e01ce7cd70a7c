package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ammarsecurity/nexchat/internal/matching"
	"github.com/ammarsecurity/nexchat/internal/models"
)

// Events sent by clients.
const (
	EventStartSearch       = "start_search"
	EventCancelSearch      = "cancel_search"
	EventRequestConnection = "request_connection"
	EventAcceptRequest     = "accept_request"
	EventDeclineRequest    = "decline_request"
	EventCancelRequest     = "cancel_request"
	EventSendMessage       = "send_message"
	EventOffer             = "offer"
	EventAnswer            = "answer"
	EventIceCandidate      = "ice_candidate"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventVideoCallRequest  = "video_call_request"
	EventVideoCallAccept   = "video_call_accept"
	EventVideoCallDecline  = "video_call_decline"
	EventLeaveSession      = "leave_session"
	EventReportUser        = "report_user"
)

// Events sent to clients.
const (
	EventError           = "error"
	EventCodeError       = "code_error"
	EventSearchStarted   = "search_started"
	EventSearchCancelled = "search_cancelled"
	EventMatchFound      = "match_found"
	EventReceiveMessage  = "receive_message"
	EventRequestSent     = "request_sent"
	EventIncomingRequest = "incoming_request"
	EventRequestDeclined = "request_declined"
	EventSessionEnded    = "session_ended"
	EventReportSent      = "report_sent"
)

const (
	maxReportReasonLen   = 500
	maxMessageContentLen = 5000
	messageTypeText      = "text"
	messageTypeImage     = "image"
)

// UserStore is the slice of the user repository the dispatcher needs.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	SetOnlineStatus(ctx context.Context, id string, online bool) error
}

// SessionStore covers session lookups past the matching core's needs: ending
// a session and finding one regardless of its ended state.
type SessionStore interface {
	Find(ctx context.Context, sessionID, userID string) (*models.ChatSession, error)
	End(ctx context.Context, sessionID, userID string) error
}

// ReportStore persists abuse reports.
type ReportStore interface {
	Exists(ctx context.Context, reporterID, reportedID string) (bool, error)
	Create(ctx context.Context, reporterID, reportedID, reason string) (*models.Report, error)
}

type startSearchPayload struct {
	Filter string `json:"filter"`
}

type codePayload struct {
	Code string `json:"code"`
}

type requesterPayload struct {
	RequesterID string `json:"requesterId"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
}

type messagePayload struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
	Type      string `json:"type"`
}

type signalPayload struct {
	SessionID string          `json:"sessionId"`
	Payload   json.RawMessage `json:"payload"`
}

type reportPayload struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
}

type errorData struct {
	Message string `json:"message"`
}

type matchFoundData struct {
	SessionID string               `json:"sessionId"`
	Partner   models.PublicProfile `json:"partner"`
}

type incomingRequestData struct {
	RequesterID string               `json:"requesterId"`
	Requester   models.PublicProfile `json:"requester"`
}

type sessionEventData struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId,omitempty"`
}

type messageData struct {
	ID       string    `json:"id"`
	SenderID string    `json:"senderId"`
	Content  string    `json:"content"`
	Type     string    `json:"type"`
	SentAt   time.Time `json:"sentAt"`
}

type signalData struct {
	SessionID string          `json:"sessionId"`
	Payload   json.RawMessage `json:"payload"`
}

// Dispatcher routes client events to the matching coordinator and relay,
// and pushes resulting events back through the transport. One instance
// serves every connection.
type Dispatcher struct {
	coordinator *matching.Coordinator
	relay       *matching.SignalingRelay
	transport   matching.Deliverer

	users    UserStore
	sessions SessionStore
	reports  ReportStore

	logger *zap.Logger
}

func NewDispatcher(
	coordinator *matching.Coordinator,
	relay *matching.SignalingRelay,
	transport matching.Deliverer,
	users UserStore,
	sessions SessionStore,
	reports ReportStore,
) *Dispatcher {
	logger, _ := zap.NewProduction()

	return &Dispatcher{
		coordinator: coordinator,
		relay:       relay,
		transport:   transport,
		users:       users,
		sessions:    sessions,
		reports:     reports,
		logger:      logger,
	}
}

// HandleConnect registers presence for the new connection.
func (d *Dispatcher) HandleConnect(client *Client) {
	ctx := context.Background()

	d.coordinator.SetOnline(client.userID, client.connectionID)

	if err := d.users.SetOnlineStatus(ctx, client.userID, true); err != nil {
		d.logger.Error("Failed to persist online status",
			zap.String("userId", client.userID),
			zap.Error(err))
	}
}

// HandleDisconnect purges the user's coordinator state, unless a newer
// connection has already superseded this one.
func (d *Dispatcher) HandleDisconnect(client *Client) {
	ctx := context.Background()

	if connID, ok := d.coordinator.Lookup(client.userID); !ok || connID != client.connectionID {
		return
	}

	d.coordinator.SetOffline(client.userID)

	if err := d.users.SetOnlineStatus(ctx, client.userID, false); err != nil {
		d.logger.Error("Failed to persist offline status",
			zap.String("userId", client.userID),
			zap.Error(err))
	}
}

// HandleMessage dispatches one client frame.
func (d *Dispatcher) HandleMessage(client *Client, msg *IncomingMessage) {
	ctx := context.Background()

	switch msg.Event {
	case EventStartSearch:
		d.handleStartSearch(ctx, client, msg.Data)
	case EventCancelSearch:
		d.handleCancelSearch(client)
	case EventRequestConnection:
		d.handleRequestConnection(ctx, client, msg.Data)
	case EventAcceptRequest:
		d.handleAcceptRequest(ctx, client, msg.Data)
	case EventDeclineRequest:
		d.handleDeclineRequest(client, msg.Data)
	case EventCancelRequest:
		d.coordinator.CancelRequest(client.userID)
	case EventSendMessage:
		d.handleSendMessage(ctx, client, msg.Data)
	case EventOffer, EventAnswer, EventIceCandidate:
		d.handleSignal(ctx, client, msg.Event, msg.Data)
	case EventTypingStart, EventTypingStop,
		EventVideoCallRequest, EventVideoCallAccept, EventVideoCallDecline:
		d.handleSessionEvent(ctx, client, msg.Event, msg.Data)
	case EventLeaveSession:
		d.handleLeaveSession(ctx, client, msg.Data)
	case EventReportUser:
		d.handleReportUser(ctx, client, msg.Data)
	default:
		d.transport.Deliver(client.connectionID, EventError, errorData{"Unknown event"})
	}
}

func (d *Dispatcher) handleStartSearch(ctx context.Context, client *Client, data json.RawMessage) {
	var req startSearchPayload
	if err := json.Unmarshal(data, &req); err != nil {
		d.transport.Deliver(client.connectionID, EventError, errorData{"Invalid payload"})
		return
	}

	user, err := d.users.FindByID(ctx, client.userID)
	if err != nil {
		d.logger.Error("User lookup failed", zap.String("userId", client.userID), zap.Error(err))
		d.transport.Deliver(client.connectionID, EventError, errorData{"Matching failed"})
		return
	}
	if user == nil || user.IsBanned {
		d.transport.Deliver(client.connectionID, EventError, errorData{"Access denied"})
		return
	}

	d.transport.Deliver(client.connectionID, EventSearchStarted, nil)

	session, err := d.coordinator.TryMatch(ctx, client.userID, matching.ParseFilter(req.Filter), client.connectionID)
	if err != nil {
		d.transport.Deliver(client.connectionID, EventError, errorData{"Matching failed"})
		return
	}
	if session == nil {
		// queued; a later search by someone else will pick the user up
		return
	}

	d.announceMatch(ctx, session, user)
}

func (d *Dispatcher) handleCancelSearch(client *Client) {
	d.coordinator.RemoveFromQueue(client.userID)
	d.transport.Deliver(client.connectionID, EventSearchCancelled, nil)
}

func (d *Dispatcher) handleRequestConnection(ctx context.Context, client *Client, data json.RawMessage) {
	var req codePayload
	if err := json.Unmarshal(data, &req); err != nil {
		d.transport.Deliver(client.connectionID, EventError, errorData{"Invalid payload"})
		return
	}

	targetID, err := d.coordinator.RequestConnection(ctx, client.userID, req.Code)
	if err != nil {
		d.transport.Deliver(client.connectionID, EventCodeError, errorData{codeErrorMessage(err)})
		return
	}

	requester, err := d.users.FindByID(ctx, client.userID)
	if err != nil || requester == nil {
		d.logger.Error("Requester lookup failed", zap.String("userId", client.userID), zap.Error(err))
		return
	}

	d.transport.Deliver(client.connectionID, EventRequestSent, map[string]string{"targetId": targetID})

	if connID, ok := d.coordinator.Lookup(targetID); ok {
		d.transport.Deliver(connID, EventIncomingRequest, incomingRequestData{
			RequesterID: client.userID,
			Requester:   requester.Profile(),
		})
	}
}

func (d *Dispatcher) handleAcceptRequest(ctx context.Context, client *Client, data json.RawMessage) {
	var req requesterPayload
	if err := json.Unmarshal(data, &req); err != nil {
		d.transport.Deliver(client.connectionID, EventError, errorData{"Invalid payload"})
		return
	}

	session, err := d.coordinator.AcceptRequest(ctx, client.userID, req.RequesterID)
	if err != nil {
		d.transport.Deliver(client.connectionID, EventError, errorData{"Could not accept request"})
		return
	}
	if session == nil {
		d.transport.Deliver(client.connectionID, EventCodeError, errorData{"Request expired or invalid"})
		return
	}

	target, err := d.users.FindByID(ctx, client.userID)
	if err != nil || target == nil {
		d.logger.Error("Target lookup failed", zap.String("userId", client.userID), zap.Error(err))
		return
	}

	d.announceMatch(ctx, session, target)
}

func (d *Dispatcher) handleDeclineRequest(client *Client, data json.RawMessage) {
	var req requesterPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	if !d.coordinator.DeclineRequest(client.userID, req.RequesterID) {
		return
	}

	if connID, ok := d.coordinator.Lookup(req.RequesterID); ok {
		d.transport.Deliver(connID, EventRequestDeclined, nil)
	}
}

// handleSendMessage relays a chat message to both members of an active
// session. Delivery is best effort; nothing is stored server-side.
func (d *Dispatcher) handleSendMessage(ctx context.Context, client *Client, data json.RawMessage) {
	var req messagePayload
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	if strings.TrimSpace(req.Content) == "" || len(req.Content) > maxMessageContentLen {
		return
	}
	if req.Type != messageTypeText && req.Type != messageTypeImage {
		req.Type = messageTypeText
	}

	session, err := d.sessions.Find(ctx, req.SessionID, client.userID)
	if err != nil || session == nil || session.EndedAt != nil {
		return
	}

	content := req.Content
	if req.Type == messageTypeText {
		content = strings.TrimSpace(content)
	}

	msg := messageData{
		ID:       uuid.NewString(),
		SenderID: client.userID,
		Content:  content,
		Type:     req.Type,
		SentAt:   time.Now(),
	}

	d.relay.Relay(ctx, req.SessionID, client.userID, EventReceiveMessage, msg)
	d.transport.Deliver(client.connectionID, EventReceiveMessage, msg)
}

// handleSignal relays an opaque signaling payload to the session partner.
func (d *Dispatcher) handleSignal(ctx context.Context, client *Client, event string, data json.RawMessage) {
	var req signalPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	d.relay.Relay(ctx, req.SessionID, client.userID, event, signalData{
		SessionID: req.SessionID,
		Payload:   req.Payload,
	})
}

// handleSessionEvent relays payload-less in-session notifications (typing,
// video call negotiation) to the partner.
func (d *Dispatcher) handleSessionEvent(ctx context.Context, client *Client, event string, data json.RawMessage) {
	var req sessionPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	d.relay.Relay(ctx, req.SessionID, client.userID, event, sessionEventData{
		SessionID: req.SessionID,
		UserID:    client.userID,
	})
}

func (d *Dispatcher) handleLeaveSession(ctx context.Context, client *Client, data json.RawMessage) {
	var req sessionPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	ended := sessionEventData{SessionID: req.SessionID, UserID: client.userID}

	// notify the partner before the row is closed; afterwards the relay
	// would no longer resolve the session
	d.relay.Relay(ctx, req.SessionID, client.userID, EventSessionEnded, ended)
	d.transport.Deliver(client.connectionID, EventSessionEnded, ended)

	if err := d.sessions.End(ctx, req.SessionID, client.userID); err != nil {
		d.logger.Error("Failed to end session",
			zap.String("sessionId", req.SessionID),
			zap.Error(err))
	}
}

func (d *Dispatcher) handleReportUser(ctx context.Context, client *Client, data json.RawMessage) {
	var req reportPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	session, err := d.sessions.Find(ctx, req.SessionID, client.userID)
	if err != nil || session == nil {
		return
	}

	reportedID := session.PartnerOf(client.userID)

	exists, err := d.reports.Exists(ctx, client.userID, reportedID)
	if err != nil || exists {
		return
	}

	reason := req.Reason
	if len(reason) > maxReportReasonLen {
		reason = reason[:maxReportReasonLen]
	}

	if _, err := d.reports.Create(ctx, client.userID, reportedID, reason); err != nil {
		d.logger.Error("Failed to create report",
			zap.String("reporterId", client.userID),
			zap.Error(err))
		return
	}

	d.transport.Deliver(client.connectionID, EventReportSent, nil)
}

// announceMatch delivers match_found to both members of a fresh session,
// each seeing the other's public profile.
func (d *Dispatcher) announceMatch(ctx context.Context, session *models.ChatSession, caller *models.User) {
	partnerID := session.PartnerOf(caller.ID)

	partner, err := d.users.FindByID(ctx, partnerID)
	if err != nil || partner == nil {
		d.logger.Error("Partner lookup failed",
			zap.String("sessionId", session.ID),
			zap.String("partnerId", partnerID),
			zap.Error(err))
		return
	}

	if connID, ok := d.coordinator.Lookup(caller.ID); ok {
		d.transport.Deliver(connID, EventMatchFound, matchFoundData{
			SessionID: session.ID,
			Partner:   partner.Profile(),
		})
	}

	if connID, ok := d.coordinator.Lookup(partnerID); ok {
		d.transport.Deliver(connID, EventMatchFound, matchFoundData{
			SessionID: session.ID,
			Partner:   caller.Profile(),
		})
	}
}

// codeErrorMessage maps coordinator errors to user-facing text.
func codeErrorMessage(err error) string {
	switch {
	case errors.Is(err, matching.ErrTargetNotFound):
		return "User not found or invalid code"
	case errors.Is(err, matching.ErrTargetOffline):
		return "User is not online right now"
	case errors.Is(err, matching.ErrRequestAlreadyPending):
		return "You already have a pending request"
	default:
		return "Could not send request"
	}
}
