package app

import (
	"context"
	"sync"

	"hiresphere/internal/chat/domain"
	"hiresphere/internal/chat/repository"
	"hiresphere/pkg/logger"

	"go.uber.org/zap"
)

// ConversationView tracks the focused room and owns its message list. No
// other component mutates the list. Focus is always read at delivery time,
// never captured at subscription time.
type ConversationView struct {
	portal repository.PortalAPI

	mu        sync.Mutex
	focusedID int64 // 0 = no room focused
	messages  []domain.ChatMessage
	loading   bool
	// live messages delivered while the history fetch is in flight; they
	// are re-applied after the snapshot replaces the list. A duplicate
	// render is possible when the snapshot already contains them; there is
	// deliberately no id-based dedup on append.
	pending  []domain.ChatMessage
	onChange func()
}

// NewConversationView create ConversationView
func NewConversationView(portal repository.PortalAPI) *ConversationView {
	return &ConversationView{portal: portal}
}

// OnChange installs the message-list change hook. The UI scrolls to the
// newest message from here.
func (v *ConversationView) OnChange(cb func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onChange = cb
}

// FocusedRoomID returns the focused room id, 0 when none.
func (v *ConversationView) FocusedRoomID() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.focusedID
}

// Messages returns a copy of the focused room's loaded history.
func (v *ConversationView) Messages() []domain.ChatMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.ChatMessage, len(v.messages))
	copy(out, v.messages)
	return out
}

// Loading reports whether a history fetch is in flight.
func (v *ConversationView) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}

// Focus switches to roomID, kicks off the full history fetch and sends the
// read receipt. A no-op when roomID is already focused. The fetch for a
// previously focused room is not cancelled; its result is discarded by the
// still-focused guard in loadHistory.
func (v *ConversationView) Focus(ctx context.Context, roomID int64) {
	v.mu.Lock()
	if v.focusedID == roomID {
		v.mu.Unlock()
		return
	}
	v.focusedID = roomID
	v.loading = true
	v.pending = nil
	v.mu.Unlock()

	go v.loadHistory(ctx, roomID)
	go v.sendReadReceipt(ctx, roomID)
}

// loadHistory applies the fetched history only if roomID is still focused
// when the fetch resolves; a stale result for a room the user has moved
// away from is dropped.
func (v *ConversationView) loadHistory(ctx context.Context, roomID int64) {
	history, err := v.portal.FetchHistory(ctx, roomID)

	v.mu.Lock()
	if v.focusedID != roomID {
		v.mu.Unlock()
		logger.Log.Debug("stale history fetch discarded", zap.Int64("room_id", roomID))
		return
	}
	v.loading = false
	if err != nil {
		// empty/error state; no automatic retry, the user re-focuses
		v.messages = nil
		v.pending = nil
		v.mu.Unlock()
		logger.Log.Errorf("history fetch failed:", err, zap.Int64("room_id", roomID))
		v.fireChange()
		return
	}
	v.messages = append(history, v.pending...)
	v.pending = nil
	v.mu.Unlock()

	v.fireChange()
}

// AppendLive appends msg if its room is focused right now and returns
// whether it was. Non-own appended messages trigger a fire-and-forget read
// receipt.
func (v *ConversationView) AppendLive(ctx context.Context, msg domain.ChatMessage, isOwn bool) bool {
	v.mu.Lock()
	if v.focusedID != msg.RoomID {
		v.mu.Unlock()
		return false
	}
	v.messages = append(v.messages, msg)
	if v.loading {
		v.pending = append(v.pending, msg)
	}
	v.mu.Unlock()

	v.fireChange()
	if !isOwn {
		go v.sendReadReceipt(ctx, msg.RoomID)
	}
	return true
}

// sendReadReceipt informs the portal the room has been read. Failure is
// logged and not rolled back into local unread state.
func (v *ConversationView) sendReadReceipt(ctx context.Context, roomID int64) {
	if err := v.portal.MarkRoomRead(ctx, roomID); err != nil {
		logger.Log.Errorf("read receipt failed:", err, zap.Int64("room_id", roomID))
	}
}

func (v *ConversationView) fireChange() {
	v.mu.Lock()
	cb := v.onChange
	v.mu.Unlock()
	if cb != nil {
		cb()
	}
}
