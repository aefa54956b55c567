package domain

import "fmt"

// ConnState definition transport session connectivity
type ConnState string

const (
	// StateDisconnected no live connection
	StateDisconnected ConnState = "disconnected"
	// StateConnecting handshake in flight
	StateConnecting ConnState = "connecting"
	// StateConnected handshake done, subscriptions allowed
	StateConnected ConnState = "connected"
)

// SendDestination is the topic composed messages are published to.
const SendDestination = "chat:send"

// UserTopic returns the per-user notification topic (new-room announcements).
func UserTopic(userID int64) string {
	return fmt.Sprintf("chat:user:%d", userID)
}

// RoomTopic returns the per-room message delivery topic.
func RoomTopic(roomID int64) string {
	return fmt.Sprintf("chat:room:%d", roomID)
}
