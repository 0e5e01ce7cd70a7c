package matching

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammarsecurity/nexchat/internal/models"
)

// fakeSessionStore persists sessions in memory.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.ChatSession
	nextID   int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*models.ChatSession)}
}

func (f *fakeSessionStore) Create(ctx context.Context, user1, user2 string, kind models.SessionKind) (*models.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	session := &models.ChatSession{
		ID:        fmt.Sprintf("s%d", f.nextID),
		User1ID:   user1,
		User2ID:   user2,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
	f.sessions[session.ID] = session
	return session, nil
}

func (f *fakeSessionStore) FindActive(ctx context.Context, sessionID, userID string) (*models.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[sessionID]
	if !ok || session.PartnerOf(userID) == "" || session.EndedAt != nil {
		return nil, nil
	}
	return session, nil
}

func (f *fakeSessionStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// fakeDirectory resolves invite codes from a fixed map.
type fakeDirectory struct {
	usersByCode map[string]*models.User
}

func (f *fakeDirectory) FindByCode(ctx context.Context, code string) (*models.User, error) {
	return f.usersByCode[code], nil
}

func newTestCoordinator(dir *fakeDirectory) (*Coordinator, *fakeSessionStore) {
	if dir == nil {
		dir = &fakeDirectory{usersByCode: make(map[string]*models.User)}
	}
	store := newFakeSessionStore()
	c := NewCoordinator(NewPresenceRegistry(), NewMatchQueue(), NewPendingRequestTable(), store, dir)
	return c, store
}

func TestCoordinator_MatchScenario(t *testing.T) {
	c, _ := newTestCoordinator(nil)
	ctx := context.Background()

	// u1 searches with the male filter and waits in the male bucket
	session, err := c.TryMatch(ctx, "u1", FilterMale, "conn-1")
	require.NoError(t, err)
	require.Nil(t, session)

	// u2 searches unfiltered: the shared bucket is empty, the male bucket
	// holds u1, so the pair matches into a random-kind session
	session, err = c.TryMatch(ctx, "u2", FilterAny, "conn-2")
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Equal(t, models.SessionKindRandom, session.Kind)
	assert.Equal(t, "u1", session.User1ID)
	assert.Equal(t, "u2", session.User2ID)
}

func TestCoordinator_ExactlyOnceMatch(t *testing.T) {
	c, store := newTestCoordinator(nil)
	ctx := context.Background()

	const users = 20

	results := make(chan *models.ChatSession, users)
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", i)
			session, err := c.TryMatch(ctx, userID, FilterAny, "conn-"+userID)
			assert.NoError(t, err)
			results <- session
		}(i)
	}
	wg.Wait()
	close(results)

	// N concurrent searches across N compatible users yield exactly N/2
	// sessions and no user appears in two of them
	assert.Equal(t, users/2, store.count())

	seen := make(map[string]int)
	for session := range results {
		if session == nil {
			continue
		}
		seen[session.User1ID]++
		seen[session.User2ID]++
	}
	for userID, n := range seen {
		assert.Equalf(t, 1, n, "user %s appears in %d sessions", userID, n)
	}
}

func TestCoordinator_CancelledUserNotMatched(t *testing.T) {
	c, _ := newTestCoordinator(nil)
	ctx := context.Background()

	_, err := c.TryMatch(ctx, "u1", FilterAny, "conn-1")
	require.NoError(t, err)

	c.RemoveFromQueue("u1")

	// cancelling a search also drops the presence entry
	_, online := c.Lookup("u1")
	assert.False(t, online)

	session, err := c.TryMatch(ctx, "u2", FilterAny, "conn-2")
	require.NoError(t, err)
	assert.Nil(t, session, "u2 must not match the cancelled u1")
}

func TestCoordinator_RequestConnectionErrors(t *testing.T) {
	target := &models.User{ID: "target", UniqueCode: "CODE42"}
	bannedLookup := &fakeDirectory{usersByCode: map[string]*models.User{"CODE42": target}}
	c, _ := newTestCoordinator(bannedLookup)
	ctx := context.Background()

	// unknown code
	_, err := c.RequestConnection(ctx, "req", "NOPE")
	assert.ErrorIs(t, err, ErrTargetNotFound)

	// the code's owner cannot request itself
	_, err = c.RequestConnection(ctx, "target", "CODE42")
	assert.ErrorIs(t, err, ErrTargetNotFound)

	// target known but offline
	_, err = c.RequestConnection(ctx, "req", "CODE42")
	assert.ErrorIs(t, err, ErrTargetOffline)

	// online target: request succeeds, codes are normalized
	c.SetOnline("target", "conn-t")
	targetID, err := c.RequestConnection(ctx, "req", "  code42 ")
	require.NoError(t, err)
	assert.Equal(t, "target", targetID)

	// a second request from the same user is rejected
	_, err = c.RequestConnection(ctx, "req", "CODE42")
	assert.ErrorIs(t, err, ErrRequestAlreadyPending)
}

func TestCoordinator_AcceptRequestCreatesCodeSession(t *testing.T) {
	target := &models.User{ID: "target", UniqueCode: "CODE42"}
	dir := &fakeDirectory{usersByCode: map[string]*models.User{"CODE42": target}}
	c, _ := newTestCoordinator(dir)
	ctx := context.Background()

	c.SetOnline("target", "conn-t")
	_, err := c.RequestConnection(ctx, "req", "CODE42")
	require.NoError(t, err)

	session, err := c.AcceptRequest(ctx, "target", "req")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, models.SessionKindCode, session.Kind)
	assert.Equal(t, "req", session.User1ID)
	assert.Equal(t, "target", session.User2ID)

	// the request is consumed; a second accept observes nothing
	session, err = c.AcceptRequest(ctx, "target", "req")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestCoordinator_ExactlyOneResolutionWins(t *testing.T) {
	target := &models.User{ID: "target", UniqueCode: "CODE42"}
	dir := &fakeDirectory{usersByCode: map[string]*models.User{"CODE42": target}}
	c, store := newTestCoordinator(dir)
	ctx := context.Background()

	c.SetOnline("target", "conn-t")
	_, err := c.RequestConnection(ctx, "req", "CODE42")
	require.NoError(t, err)

	var accepted, declined, cancelled bool
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		session, err := c.AcceptRequest(ctx, "target", "req")
		assert.NoError(t, err)
		accepted = session != nil
	}()
	go func() {
		defer wg.Done()
		declined = c.DeclineRequest("target", "req")
	}()
	go func() {
		defer wg.Done()
		cancelled = c.CancelRequest("req")
	}()
	wg.Wait()

	wins := 0
	for _, won := range []bool{accepted, declined, cancelled} {
		if won {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one of accept/decline/cancel must win")

	if accepted {
		assert.Equal(t, 1, store.count(), "a session exists iff accept won")
	} else {
		assert.Equal(t, 0, store.count(), "no session unless accept won")
	}
}

func TestCoordinator_ExpiredRequestNotAcceptable(t *testing.T) {
	target := &models.User{ID: "target", UniqueCode: "CODE42"}
	dir := &fakeDirectory{usersByCode: map[string]*models.User{"CODE42": target}}
	c, _ := newTestCoordinator(dir)
	ctx := context.Background()

	now := time.Now()
	c.pending.now = func() time.Time { return now }

	c.SetOnline("target", "conn-t")
	_, err := c.RequestConnection(ctx, "req", "CODE42")
	require.NoError(t, err)

	c.pending.now = func() time.Time { return now.Add(RequestTimeout + time.Second) }

	session, err := c.AcceptRequest(ctx, "target", "req")
	require.NoError(t, err)
	assert.Nil(t, session, "accept after the timeout window must return nothing")
}

func TestCoordinator_DisconnectPurgesEverything(t *testing.T) {
	target := &models.User{ID: "x", UniqueCode: "XCODE"}
	other := &models.User{ID: "other", UniqueCode: "OCODE"}
	dir := &fakeDirectory{usersByCode: map[string]*models.User{"XCODE": target, "OCODE": other}}
	c, _ := newTestCoordinator(dir)
	ctx := context.Background()

	// x is online, waiting in the queue, targeted by one request, and has
	// one outgoing request of its own
	_, err := c.TryMatch(ctx, "x", FilterAny, "conn-x")
	require.NoError(t, err)
	c.SetOnline("other", "conn-o")
	_, err = c.RequestConnection(ctx, "a", "XCODE")
	require.NoError(t, err)
	_, err = c.RequestConnection(ctx, "x", "OCODE")
	require.NoError(t, err)

	c.SetOffline("x")

	_, online := c.Lookup("x")
	assert.False(t, online, "presence entry must be gone")

	session, err := c.TryMatch(ctx, "y", FilterAny, "conn-y")
	require.NoError(t, err)
	assert.Nil(t, session, "a disconnected user must not be matchable")

	session, err = c.AcceptRequest(ctx, "x", "a")
	require.NoError(t, err)
	assert.Nil(t, session, "requests targeting the disconnected user are gone")

	session, err = c.AcceptRequest(ctx, "other", "x")
	require.NoError(t, err)
	assert.Nil(t, session, "the disconnected user's own request is gone too")
}
