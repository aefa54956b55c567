package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"hiresphere/internal/chat/domain"
	"hiresphere/internal/chat/repository"
	errprocess "hiresphere/pkg/err"
	"hiresphere/pkg/logger"
	"hiresphere/pkg/token"

	"go.uber.org/zap"
)

// Compose rejections. These are checked client-side before any publish, so
// none of them ever reaches the wire.
var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNotConnected   = errors.New("session is not connected")
	ErrNoActiveRoom   = errors.New("no room is focused")
	ErrSendNotAllowed = errors.New("sending into this room is not allowed")
)

// ChatEngine wires the session, room directory, subscription manager and
// conversation view together and is the surface the UI shell talks to.
type ChatEngine struct {
	user    *token.Claims
	channel repository.Channel
	portal  repository.PortalAPI

	session   *TransportSession
	directory *RoomDirectory
	subs      *SubscriptionManager
	conv      *ConversationView

	ctx context.Context

	mu      sync.Mutex
	userSub repository.Subscription
}

// NewChatEngine create ChatEngine
func NewChatEngine(
	claims *token.Claims,
	tokenSource func() string,
	ch repository.Channel,
	portal repository.PortalAPI,
	retryDelay time.Duration,
) *ChatEngine {
	e := &ChatEngine{
		user:      claims,
		channel:   ch,
		portal:    portal,
		directory: NewRoomDirectory(),
		subs:      NewSubscriptionManager(ch),
		conv:      NewConversationView(portal),
	}
	e.session = NewTransportSession(ch, tokenSource, retryDelay)
	e.session.OnStateChange(e.handleConnectivity)
	return e
}

// Start loads the room list and opens the session. The fetch and the
// connect race freely; the directory's merge rules and the re-subscribe
// pass on both completions absorb either order.
func (e *ChatEngine) Start(ctx context.Context) {
	e.ctx = ctx
	go e.loadRooms(ctx)
	e.session.Connect(ctx)
}

// Close tears the client down: subscriptions first, then the connection.
func (e *ChatEngine) Close() {
	e.session.Disconnect()
}

func (e *ChatEngine) loadRooms(ctx context.Context) {
	rooms, err := e.portal.FetchRooms(ctx)
	if err != nil {
		// no automatic retry; the view stays empty until re-navigation
		logger.Log.Errorf("room list fetch failed:", err)
		return
	}
	e.directory.MergeFetched(rooms)
	e.syncSubscriptions()
}

// handleConnectivity reacts to every session transition: a connect issues
// the full subscribe pass, a disconnect tears every subscription down
// before the retry timer can fire.
func (e *ChatEngine) handleConnectivity(state domain.ConnState) {
	switch state {
	case domain.StateConnected:
		e.subscribeUserTopic()
		e.syncSubscriptions()
	case domain.StateDisconnected:
		e.dropUserTopic()
		e.subs.DropAll()
	}
}

// syncSubscriptions runs the diff pass for every directory room, but only
// while connected; no subscription may exist otherwise.
func (e *ChatEngine) syncSubscriptions() {
	if e.session.State() != domain.StateConnected {
		return
	}
	e.subs.Sync(e.directory.IDs(), e.handleRoomEvent)
}

// subscribeUserTopic listens for new-room announcements addressed to the
// current user.
func (e *ChatEngine) subscribeUserTopic() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userSub != nil {
		return
	}
	sub, err := e.channel.Subscribe(domain.UserTopic(e.user.UserID), e.handleRoomNotification)
	if err != nil {
		logger.Log.Errorf("subscribe user topic failed:", err, zap.Int64("user_id", e.user.UserID))
		return
	}
	e.userSub = sub
}

func (e *ChatEngine) dropUserTopic() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userSub == nil {
		return
	}
	if err := e.userSub.Cancel(); err != nil {
		logger.Log.Errorf("unsubscribe user topic failed:", err)
	}
	e.userSub = nil
}

// handleRoomNotification folds a live new-room announcement into the
// directory and subscribes it in the same pass.
func (e *ChatEngine) handleRoomNotification(payload []byte) {
	var room domain.Room
	if err := json.Unmarshal(payload, &room); err != nil {
		logger.Log.Errorf("bad room notification:", err)
		return
	}
	if e.directory.AddRoom(room) {
		logger.Log.Info("new room announced", zap.Int64("room_id", room.ID))
		e.syncSubscriptions()
	}
}

// handleRoomEvent is the per-room delivery handler. isFromMe and
// isActiveRoom are both resolved here, at delivery time.
func (e *ChatEngine) handleRoomEvent(roomID int64, payload []byte) {
	var msg domain.ChatMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		logger.Log.Errorf("bad room event:", err, zap.Int64("room_id", roomID))
		return
	}
	if msg.RoomID == 0 {
		msg.RoomID = roomID
	}

	isOwn := msg.SenderID == e.user.UserID
	isActive := e.conv.AppendLive(e.ctx, msg, isOwn)
	e.directory.ApplyMessage(roomID, msg, isOwn, isActive)
}

// FocusRoom makes roomID the active conversation: unread drops to zero
// locally right away, the read receipt and history fetch go out async.
func (e *ChatEngine) FocusRoom(roomID int64) error {
	if _, ok := e.directory.Get(roomID); !ok {
		return errprocess.Set(fmt.Sprintf("focus rejected, unknown room %d", roomID))
	}
	e.directory.MarkRead(roomID)
	e.conv.Focus(e.ctx, roomID)
	return nil
}

// SendMessage publishes text into the focused room after every client-side
// gate passes.
func (e *ChatEngine) SendMessage(text string) error {
	content := strings.TrimSpace(text)
	if content == "" {
		return ErrEmptyMessage
	}
	if e.session.State() != domain.StateConnected {
		return ErrNotConnected
	}
	roomID := e.conv.FocusedRoomID()
	if roomID == 0 {
		return ErrNoActiveRoom
	}
	room, ok := e.directory.Get(roomID)
	if !ok {
		return ErrNoActiveRoom
	}
	if !CanSend(token.RoleType(e.user.Role), &room, e.conv.Messages()) {
		return ErrSendNotAllowed
	}

	e.session.Send(domain.SendDestination, domain.OutboundMessage{
		RoomID:   roomID,
		SenderID: e.user.UserID,
		Content:  content,
	})
	return nil
}

// CanCompose reports whether the compose input should be enabled.
func (e *ChatEngine) CanCompose() bool {
	if e.session.State() != domain.StateConnected {
		return false
	}
	roomID := e.conv.FocusedRoomID()
	if roomID == 0 {
		return false
	}
	room, ok := e.directory.Get(roomID)
	if !ok {
		return false
	}
	return CanSend(token.RoleType(e.user.Role), &room, e.conv.Messages())
}

// State returns the session connectivity state.
func (e *ChatEngine) State() domain.ConnState { return e.session.State() }

// Rooms returns the directory rooms in presentation order.
func (e *ChatEngine) Rooms() []domain.Room { return e.directory.Rooms() }

// Messages returns the focused room's loaded history.
func (e *ChatEngine) Messages() []domain.ChatMessage { return e.conv.Messages() }

// FocusedRoomID returns the focused room id, 0 when none.
func (e *ChatEngine) FocusedRoomID() int64 { return e.conv.FocusedRoomID() }

// OnConversationChange installs the conversation change hook.
func (e *ChatEngine) OnConversationChange(cb func()) { e.conv.OnChange(cb) }
