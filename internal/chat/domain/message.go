package domain

// ChatMessage definition one utterance within a room
//
// Messages reach the sender's own view only through the server echo, so ID,
// SenderID and Timestamp are always filled in on delivery.
type ChatMessage struct {
	ID        int64  `json:"id"`
	RoomID    int64  `json:"room_id"`
	SenderID  int64  `json:"sender_id"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Read      bool   `json:"is_read"`
}

// OutboundMessage is the payload published when composing a message. The
// sender id travels in the envelope because pub/sub carries no session
// identity the receiving side could derive it from.
type OutboundMessage struct {
	RoomID   int64  `json:"room_id"`
	SenderID int64  `json:"sender_id"`
	Content  string `json:"content"`
}
