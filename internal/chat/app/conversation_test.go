package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"hiresphere/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestConversationView_FocusLoadsHistory(t *testing.T) {
	ctx := context.Background()
	history := []domain.ChatMessage{
		{ID: 1, RoomID: 1, SenderID: 101, Content: "hello"},
		{ID: 2, RoomID: 1, SenderID: 201, Content: "hi"},
	}

	portal := new(MockPortalAPI)
	portal.On("FetchHistory", mock.Anything, int64(1)).Return(history, nil)
	portal.On("MarkRoomRead", mock.Anything, int64(1)).Return(nil)

	v := NewConversationView(portal)
	v.Focus(ctx, 1)

	assert.Equal(t, int64(1), v.FocusedRoomID())
	assert.Eventually(t, func() bool {
		return !v.Loading() && len(v.Messages()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, history, v.Messages())
}

// Focus moves from room 1 to room 2 before room 1's fetch resolves; the
// stale result must not touch room 2's list.
func TestConversationView_StaleHistoryFetchDiscarded(t *testing.T) {
	ctx := context.Background()
	historyA := []domain.ChatMessage{{ID: 1, RoomID: 1, Content: "stale"}}
	historyB := []domain.ChatMessage{{ID: 2, RoomID: 2, Content: "fresh"}}

	releaseA := make(chan time.Time)
	portal := new(MockPortalAPI)
	portal.On("FetchHistory", mock.Anything, int64(1)).WaitUntil(releaseA).Return(historyA, nil)
	portal.On("FetchHistory", mock.Anything, int64(2)).Return(historyB, nil)
	portal.On("MarkRoomRead", mock.Anything, mock.Anything).Return(nil)

	v := NewConversationView(portal)
	v.Focus(ctx, 1)
	v.Focus(ctx, 2)

	assert.Eventually(t, func() bool {
		msgs := v.Messages()
		return len(msgs) == 1 && msgs[0].Content == "fresh"
	}, 2*time.Second, 5*time.Millisecond)

	// now let room 1's fetch resolve late
	close(releaseA)
	time.Sleep(50 * time.Millisecond)

	msgs := v.Messages()
	assert.Len(t, msgs, 1)
	assert.Equal(t, "fresh", msgs[0].Content)
	assert.Equal(t, int64(2), v.FocusedRoomID())
}

// Live messages for the focused room keep appending while its history fetch
// is still in flight, and survive the snapshot replacing the list.
func TestConversationView_LiveAppendWhileHistoryLoading(t *testing.T) {
	ctx := context.Background()
	history := []domain.ChatMessage{{ID: 1, RoomID: 1, SenderID: 101, Content: "from history"}}

	release := make(chan time.Time)
	portal := new(MockPortalAPI)
	portal.On("FetchHistory", mock.Anything, int64(1)).WaitUntil(release).Return(history, nil)
	portal.On("MarkRoomRead", mock.Anything, int64(1)).Return(nil)

	v := NewConversationView(portal)
	v.Focus(ctx, 1)

	live := domain.ChatMessage{ID: 9, RoomID: 1, SenderID: 201, Content: "live"}
	appended := v.AppendLive(ctx, live, true)

	assert.True(t, appended)
	assert.Equal(t, []domain.ChatMessage{live}, v.Messages())

	close(release)
	assert.Eventually(t, func() bool {
		msgs := v.Messages()
		return len(msgs) == 2 && msgs[0].Content == "from history" && msgs[1].Content == "live"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestConversationView_AppendIgnoresUnfocusedRoom(t *testing.T) {
	ctx := context.Background()
	portal := new(MockPortalAPI)
	portal.On("FetchHistory", mock.Anything, int64(1)).Return([]domain.ChatMessage{}, nil)
	portal.On("MarkRoomRead", mock.Anything, int64(1)).Return(nil)

	v := NewConversationView(portal)
	v.Focus(ctx, 1)

	appended := v.AppendLive(ctx, domain.ChatMessage{ID: 5, RoomID: 2, Content: "elsewhere"}, false)

	assert.False(t, appended)
	assert.Eventually(t, func() bool { return !v.Loading() }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, v.Messages())
}

func TestConversationView_ReadReceipts(t *testing.T) {
	ctx := context.Background()
	var receipts int32

	portal := new(MockPortalAPI)
	portal.On("FetchHistory", mock.Anything, int64(1)).Return([]domain.ChatMessage{}, nil)
	portal.On("MarkRoomRead", mock.Anything, int64(1)).
		Run(func(args mock.Arguments) { atomic.AddInt32(&receipts, 1) }).
		Return(nil)

	v := NewConversationView(portal)

	// focusing sends one receipt
	v.Focus(ctx, 1)
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&receipts) == 1 && !v.Loading()
	}, 2*time.Second, 5*time.Millisecond)

	// the viewer's own message sends none
	v.AppendLive(ctx, domain.ChatMessage{ID: 2, RoomID: 1, SenderID: 1, Content: "mine"}, true)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&receipts))

	// a foreign message appended to the focused room sends one
	v.AppendLive(ctx, domain.ChatMessage{ID: 3, RoomID: 1, SenderID: 9, Content: "theirs"}, false)
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&receipts) == 2
	}, 2*time.Second, 5*time.Millisecond)
}

// Receipt failure is fire-and-forget; the message stays appended.
func TestConversationView_ReceiptFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	portal := new(MockPortalAPI)
	portal.On("FetchHistory", mock.Anything, int64(1)).Return([]domain.ChatMessage{}, nil)
	portal.On("MarkRoomRead", mock.Anything, int64(1)).Return(errors.New("portal down"))

	v := NewConversationView(portal)
	v.Focus(ctx, 1)
	assert.Eventually(t, func() bool { return !v.Loading() }, 2*time.Second, 5*time.Millisecond)

	v.AppendLive(ctx, domain.ChatMessage{ID: 3, RoomID: 1, SenderID: 9, Content: "theirs"}, false)

	assert.Len(t, v.Messages(), 1)
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, v.Messages(), 1)
}

func TestConversationView_HistoryFailureShowsEmptyState(t *testing.T) {
	ctx := context.Background()
	portal := new(MockPortalAPI)
	portal.On("FetchHistory", mock.Anything, int64(1)).Return(nil, errors.New("portal down"))
	portal.On("MarkRoomRead", mock.Anything, int64(1)).Return(nil)

	v := NewConversationView(portal)
	v.Focus(ctx, 1)

	assert.Eventually(t, func() bool { return !v.Loading() }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, v.Messages())
}

// Every message-list change fires the change hook, the UI's scroll trigger.
func TestConversationView_ChangeHookFires(t *testing.T) {
	ctx := context.Background()
	portal := new(MockPortalAPI)
	portal.On("FetchHistory", mock.Anything, int64(1)).Return([]domain.ChatMessage{}, nil)
	portal.On("MarkRoomRead", mock.Anything, int64(1)).Return(nil)

	var fires int32
	v := NewConversationView(portal)
	v.OnChange(func() { atomic.AddInt32(&fires, 1) })

	v.Focus(ctx, 1)
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&fires) == 1
	}, 2*time.Second, 5*time.Millisecond)

	v.AppendLive(ctx, domain.ChatMessage{ID: 2, RoomID: 1, SenderID: 9, Content: "x"}, true)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fires))
}
