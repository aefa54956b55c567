package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"hiresphere/internal/chat/domain"
	"hiresphere/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func candidateClaims(userID int64) *token.Claims {
	return &token.Claims{UserID: userID, Role: string(token.RoleCandidate)}
}

func recruiterClaims(userID int64) *token.Claims {
	return &token.Claims{UserID: userID, Role: string(token.RoleRecruiter)}
}

func newTestEngine(claims *token.Claims, ch *fakeChannel, portal *MockPortalAPI) *ChatEngine {
	return NewChatEngine(claims, staticToken, ch, portal, 20*time.Millisecond)
}

// Connect with rooms [A, B]: exactly two room subscriptions. Drop: zero.
// Reconnect after the fixed delay: two again.
func TestChatEngine_SubscriptionLifecycleAcrossReconnect(t *testing.T) {
	ch := newFakeChannel()
	portal := new(MockPortalAPI)
	portal.On("FetchRooms", mock.Anything).Return([]domain.Room{room(1), room(2)}, nil)

	e := newTestEngine(candidateClaims(201), ch, portal)
	e.Start(context.Background())
	defer e.Close()

	assert.Eventually(t, func() bool {
		return e.subs.Count() == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, e.subs.Has(1))
	assert.True(t, e.subs.Has(2))
	// room subscriptions plus the per-user notification topic
	assert.True(t, ch.hasSub(domain.UserTopic(201)))

	ch.Drop(errors.New("connection reset"))
	assert.Equal(t, 0, e.subs.Count())
	assert.Equal(t, 0, ch.subCount())

	assert.Eventually(t, func() bool {
		return e.State() == domain.StateConnected && e.subs.Count() == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, e.subs.Has(1))
	assert.True(t, e.subs.Has(2))
}

// A room announced while the bulk fetch is still in flight must survive the
// fetch resolving, and must get its subscription.
func TestChatEngine_LiveRoomDuringFetchNotLost(t *testing.T) {
	ch := newFakeChannel()
	releaseFetch := make(chan time.Time)
	portal := new(MockPortalAPI)
	portal.On("FetchRooms", mock.Anything).WaitUntil(releaseFetch).
		Return([]domain.Room{room(1)}, nil)

	e := newTestEngine(candidateClaims(201), ch, portal)
	e.Start(context.Background())
	defer e.Close()

	assert.Eventually(t, func() bool {
		return ch.hasSub(domain.UserTopic(201))
	}, 2*time.Second, 5*time.Millisecond)

	// new-room announcement lands before the fetch resolves
	ch.Deliver(domain.UserTopic(201), room(9))
	assert.Eventually(t, func() bool {
		return e.subs.Has(9)
	}, 2*time.Second, 5*time.Millisecond)

	close(releaseFetch)
	assert.Eventually(t, func() bool {
		return e.subs.Count() == 2
	}, 2*time.Second, 5*time.Millisecond)

	ids := e.directory.IDs()
	assert.Equal(t, []int64{9, 1}, ids)
}

func TestChatEngine_IncomingMessageUpdatesDirectory(t *testing.T) {
	ch := newFakeChannel()
	portal := new(MockPortalAPI)
	portal.On("FetchRooms", mock.Anything).Return([]domain.Room{room(1)}, nil)

	e := newTestEngine(candidateClaims(201), ch, portal)
	e.Start(context.Background())
	defer e.Close()

	assert.Eventually(t, func() bool { return e.subs.Has(1) }, 2*time.Second, 5*time.Millisecond)

	// a foreign message on an unfocused room grows unread
	ch.Deliver(domain.RoomTopic(1), domain.ChatMessage{ID: 1, RoomID: 1, SenderID: 101, Content: "hi", Timestamp: 10})
	got, _ := e.directory.Get(1)
	assert.Equal(t, 1, got.UnreadCount)
	assert.Equal(t, "hi", got.LastMessage)

	// the viewer's own echo never grows unread
	ch.Deliver(domain.RoomTopic(1), domain.ChatMessage{ID: 2, RoomID: 1, SenderID: 201, Content: "mine", Timestamp: 11})
	got, _ = e.directory.Get(1)
	assert.Equal(t, 0, got.UnreadCount)
	assert.Equal(t, "mine", got.LastMessage)
}

func TestChatEngine_FocusZeroesUnread(t *testing.T) {
	ch := newFakeChannel()
	portal := new(MockPortalAPI)
	portal.On("FetchRooms", mock.Anything).Return([]domain.Room{room(1)}, nil)
	portal.On("FetchHistory", mock.Anything, int64(1)).Return([]domain.ChatMessage{}, nil)
	portal.On("MarkRoomRead", mock.Anything, int64(1)).Return(nil)

	e := newTestEngine(candidateClaims(201), ch, portal)
	e.Start(context.Background())
	defer e.Close()

	assert.Eventually(t, func() bool { return e.subs.Has(1) }, 2*time.Second, 5*time.Millisecond)
	ch.Deliver(domain.RoomTopic(1), domain.ChatMessage{ID: 1, RoomID: 1, SenderID: 101, Content: "hi"})
	ch.Deliver(domain.RoomTopic(1), domain.ChatMessage{ID: 2, RoomID: 1, SenderID: 101, Content: "you there?"})

	got, _ := e.directory.Get(1)
	assert.Equal(t, 2, got.UnreadCount)

	assert.NoError(t, e.FocusRoom(1))
	got, _ = e.directory.Get(1)
	assert.Equal(t, 0, got.UnreadCount)
}

// Candidate focuses an empty room: send rejected, nothing published. After
// the recruiter's first message lands, the send goes through.
func TestChatEngine_CandidateSendGate(t *testing.T) {
	ch := newFakeChannel()
	r := room(1) // recruiter 101, candidate 201
	portal := new(MockPortalAPI)
	portal.On("FetchRooms", mock.Anything).Return([]domain.Room{r}, nil)
	portal.On("FetchHistory", mock.Anything, int64(1)).Return([]domain.ChatMessage{}, nil)
	portal.On("MarkRoomRead", mock.Anything, int64(1)).Return(nil)

	e := newTestEngine(candidateClaims(201), ch, portal)
	e.Start(context.Background())
	defer e.Close()

	assert.Eventually(t, func() bool { return e.subs.Has(1) }, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, e.FocusRoom(1))
	assert.Eventually(t, func() bool { return !e.conv.Loading() }, 2*time.Second, 5*time.Millisecond)

	assert.False(t, e.CanCompose())
	assert.ErrorIs(t, e.SendMessage("hello?"), ErrSendNotAllowed)
	assert.Empty(t, ch.publishedTo(domain.SendDestination))

	// recruiter initiates
	ch.Deliver(domain.RoomTopic(1), domain.ChatMessage{ID: 1, RoomID: 1, SenderID: 101, Content: "hello"})

	assert.True(t, e.CanCompose())
	assert.NoError(t, e.SendMessage("  hi!  "))

	published := ch.publishedTo(domain.SendDestination)
	assert.Len(t, published, 1)
	out, ok := published[0].payload.(domain.OutboundMessage)
	assert.True(t, ok)
	assert.Equal(t, int64(1), out.RoomID)
	assert.Equal(t, int64(201), out.SenderID)
	assert.Equal(t, "hi!", out.Content)
}

func TestChatEngine_SendRejections(t *testing.T) {
	ch := newFakeChannel()
	portal := new(MockPortalAPI)
	portal.On("FetchRooms", mock.Anything).Return([]domain.Room{room(1)}, nil)
	portal.On("FetchHistory", mock.Anything, int64(1)).Return([]domain.ChatMessage{}, nil)
	portal.On("MarkRoomRead", mock.Anything, int64(1)).Return(nil)

	e := newTestEngine(recruiterClaims(101), ch, portal)

	// nothing focused, not even connected yet
	assert.ErrorIs(t, e.SendMessage("hello"), ErrNotConnected)
	assert.ErrorIs(t, e.SendMessage("   "), ErrEmptyMessage)

	e.Start(context.Background())
	defer e.Close()
	assert.Eventually(t, func() bool { return e.subs.Has(1) }, 2*time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, e.SendMessage("hello"), ErrNoActiveRoom)
	assert.Empty(t, ch.publishedTo(domain.SendDestination))

	assert.NoError(t, e.FocusRoom(1))
	assert.NoError(t, e.SendMessage("hello"))
	assert.Len(t, ch.publishedTo(domain.SendDestination), 1)
}

func TestChatEngine_FocusUnknownRoom(t *testing.T) {
	ch := newFakeChannel()
	portal := new(MockPortalAPI)
	portal.On("FetchRooms", mock.Anything).Return([]domain.Room{}, nil)

	e := newTestEngine(recruiterClaims(101), ch, portal)
	e.Start(context.Background())
	defer e.Close()

	assert.Error(t, e.FocusRoom(42))
	assert.Equal(t, int64(0), e.FocusedRoomID())
}

// The room-list fetch failing leaves an empty directory and no retry loop;
// the session still connects and the user topic still listens.
func TestChatEngine_RoomFetchFailure(t *testing.T) {
	ch := newFakeChannel()
	portal := new(MockPortalAPI)
	portal.On("FetchRooms", mock.Anything).Return(nil, errors.New("portal down"))

	e := newTestEngine(candidateClaims(201), ch, portal)
	e.Start(context.Background())
	defer e.Close()

	assert.Eventually(t, func() bool {
		return e.State() == domain.StateConnected && ch.hasSub(domain.UserTopic(201))
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, e.directory.Len())
	assert.Equal(t, 0, e.subs.Count())
	portal.AssertNumberOfCalls(t, "FetchRooms", 1)
}
