package app

import (
	"sync"

	"hiresphere/internal/chat/domain"
	"hiresphere/internal/chat/repository"
	"hiresphere/pkg/logger"

	"go.uber.org/zap"
)

// SubscriptionManager keeps the held-subscription invariant: while the
// session is connected, exactly one live subscription per directory room;
// while disconnected, none. It is the only reader and writer of the handle
// map.
type SubscriptionManager struct {
	channel repository.Channel

	mu   sync.Mutex
	subs map[int64]repository.Subscription
}

// NewSubscriptionManager create SubscriptionManager
func NewSubscriptionManager(ch repository.Channel) *SubscriptionManager {
	return &SubscriptionManager{
		channel: ch,
		subs:    make(map[int64]repository.Subscription),
	}
}

// Sync diffs roomIDs against the held set and subscribes the missing rooms.
// Rooms that already hold a subscription are never re-subscribed, that would
// duplicate delivery. One room failing to subscribe is logged and skipped,
// the pass continues; the next reconnect pass retries it implicitly.
func (m *SubscriptionManager) Sync(roomIDs []int64, handler func(roomID int64, payload []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, roomID := range roomIDs {
		if _, ok := m.subs[roomID]; ok {
			continue
		}

		id := roomID
		sub, err := m.channel.Subscribe(domain.RoomTopic(id), func(payload []byte) {
			handler(id, payload)
		})
		if err != nil {
			logger.Log.Errorf("subscribe room failed:", err, zap.Int64("room_id", id))
			continue
		}
		m.subs[id] = sub
		logger.Log.Debug("subscribed", zap.Int64("room_id", id), zap.String("sub_id", sub.ID()))
	}
}

// DropAll cancels every held subscription and clears the set, so no stale
// handle leaks across a reconnect cycle.
func (m *SubscriptionManager) DropAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for roomID, sub := range m.subs {
		if err := sub.Cancel(); err != nil {
			logger.Log.Errorf("unsubscribe failed:", err, zap.Int64("room_id", roomID))
		}
	}
	m.subs = make(map[int64]repository.Subscription)
}

// Count returns the number of held subscriptions.
func (m *SubscriptionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Has reports whether roomID holds a live subscription.
func (m *SubscriptionManager) Has(roomID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subs[roomID]
	return ok
}
