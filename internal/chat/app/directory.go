package app

import (
	"fmt"
	"sync"

	"hiresphere/internal/chat/domain"
	"hiresphere/pkg/logger"
)

// RoomDirectory holds the authoritative room set for the current user,
// indexed by room id with explicit presentation order. It is fed by exactly
// two writers, the bulk fetch handler and the live event handler, and every
// transition merges by id so neither writer can drop the other's rooms.
type RoomDirectory struct {
	mu    sync.RWMutex
	rooms map[int64]domain.Room
	order []int64
}

// NewRoomDirectory create RoomDirectory
func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{
		rooms: make(map[int64]domain.Room),
	}
}

// MergeFetched applies a completed room-list fetch. Rooms the directory
// already knows are kept untouched, so a notification that arrived while
// the fetch was in flight is never lost; unseen fetched rooms are appended
// in server order.
func (d *RoomDirectory) MergeFetched(fetched []domain.Room) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, room := range fetched {
		if _, ok := d.rooms[room.ID]; ok {
			continue
		}
		d.rooms[room.ID] = room
		d.order = append(d.order, room.ID)
	}
}

// AddRoom inserts a live-announced room at the front of the list. Idempotent
// by id; reports whether the room was actually new.
func (d *RoomDirectory) AddRoom(room domain.Room) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.rooms[room.ID]; ok {
		return false
	}
	d.rooms[room.ID] = room
	d.order = append([]int64{room.ID}, d.order...)
	return true
}

// ApplyMessage folds one delivered message into the room's metadata. The
// preview and timestamp update unconditionally; unread grows by one unless
// the message is the viewer's own or the room is currently active.
func (d *RoomDirectory) ApplyMessage(roomID int64, msg domain.ChatMessage, isOwn, isActive bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		logger.Log.Warn(fmt.Sprintf("message for unknown room %d dropped", roomID))
		return
	}

	room.LastMessage = msg.Content
	room.LastMessageTimestamp = msg.Timestamp
	if isOwn || isActive {
		room.UnreadCount = 0
	} else {
		room.UnreadCount++
	}
	d.rooms[roomID] = room
}

// MarkRead zeroes the unread counter for roomID. Purely local; the owning
// service is told separately through the read receipt.
func (d *RoomDirectory) MarkRead(roomID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		return
	}
	room.UnreadCount = 0
	d.rooms[roomID] = room
}

// Get returns the room for id.
func (d *RoomDirectory) Get(roomID int64) (domain.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.rooms[roomID]
	return room, ok
}

// Rooms returns the room list in presentation order.
func (d *RoomDirectory) Rooms() []domain.Room {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.Room, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.rooms[id])
	}
	return out
}

// IDs returns the room ids in presentation order.
func (d *RoomDirectory) IDs() []int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]int64, len(d.order))
	copy(out, d.order)
	return out
}

// Len returns the number of known rooms.
func (d *RoomDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}
