package app

import (
	"hiresphere/internal/chat/domain"
	"hiresphere/pkg/token"
)

// CanSend decides whether the viewer may compose into room given the
// currently loaded history. It is a pure predicate evaluated on every use,
// never cached, so it always agrees with the loaded message list.
//
// Recruiters may always send into their rooms. Candidates may answer only
// once the room's recruiter has at least one message in the history: the
// recruiter must initiate.
func CanSend(role token.RoleType, room *domain.Room, history []domain.ChatMessage) bool {
	if room == nil {
		return false
	}
	if role == token.RoleRecruiter {
		return true
	}
	for _, msg := range history {
		if msg.SenderID == room.RecruiterID {
			return true
		}
	}
	return false
}
