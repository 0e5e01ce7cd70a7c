package matching

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammarsecurity/nexchat/internal/models"
)

type delivery struct {
	connectionID string
	event        string
	data         interface{}
}

type fakeDeliverer struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (f *fakeDeliverer) Deliver(connectionID, event string, data interface{}) {
	f.mu.Lock()
	f.deliveries = append(f.deliveries, delivery{connectionID, event, data})
	f.mu.Unlock()
}

func (f *fakeDeliverer) all() []delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delivery(nil), f.deliveries...)
}

func TestSignalingRelay_ForwardsToPartner(t *testing.T) {
	ctx := context.Background()
	store := newFakeSessionStore()
	presence := NewPresenceRegistry()
	transport := &fakeDeliverer{}
	relay := NewSignalingRelay(presence, store, transport)

	session, err := store.Create(ctx, "u1", "u2", models.SessionKindRandom)
	require.NoError(t, err)

	presence.SetOnline("u1", "conn-1")
	presence.SetOnline("u2", "conn-2")

	payload := map[string]interface{}{"sdp": "v=0..."}
	relay.Relay(ctx, session.ID, "u1", "offer", payload)

	deliveries := transport.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "conn-2", deliveries[0].connectionID)
	assert.Equal(t, "offer", deliveries[0].event)
	assert.Equal(t, payload, deliveries[0].data)
}

func TestSignalingRelay_DropsWhenSessionUnknown(t *testing.T) {
	ctx := context.Background()
	store := newFakeSessionStore()
	presence := NewPresenceRegistry()
	transport := &fakeDeliverer{}
	relay := NewSignalingRelay(presence, store, transport)

	presence.SetOnline("u1", "conn-1")

	relay.Relay(ctx, "no-such-session", "u1", "offer", nil)

	assert.Empty(t, transport.all(), "unknown session must drop silently")
}

func TestSignalingRelay_DropsWhenSenderNotMember(t *testing.T) {
	ctx := context.Background()
	store := newFakeSessionStore()
	presence := NewPresenceRegistry()
	transport := &fakeDeliverer{}
	relay := NewSignalingRelay(presence, store, transport)

	session, err := store.Create(ctx, "u1", "u2", models.SessionKindRandom)
	require.NoError(t, err)
	presence.SetOnline("u1", "conn-1")
	presence.SetOnline("u2", "conn-2")

	relay.Relay(ctx, session.ID, "intruder", "offer", nil)

	assert.Empty(t, transport.all(), "non-members must not reach either party")
}

func TestSignalingRelay_DropsWhenPartnerOffline(t *testing.T) {
	ctx := context.Background()
	store := newFakeSessionStore()
	presence := NewPresenceRegistry()
	transport := &fakeDeliverer{}
	relay := NewSignalingRelay(presence, store, transport)

	session, err := store.Create(ctx, "u1", "u2", models.SessionKindRandom)
	require.NoError(t, err)
	presence.SetOnline("u1", "conn-1")

	relay.Relay(ctx, session.ID, "u1", "ice_candidate", nil)

	assert.Empty(t, transport.all(), "offline partner means best-effort loss")
}
