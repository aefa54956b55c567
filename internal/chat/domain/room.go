package domain

// Room definition a recruiter/candidate conversation
//
// The server creates a room when a recruiter initiates contact; participants
// never change afterwards. UnreadCount is scoped to the viewing user.
type Room struct {
	ID                   int64  `json:"id"`
	RecruiterID          int64  `json:"recruiter_id"`
	RecruiterName        string `json:"recruiter_name"`
	CandidateID          int64  `json:"candidate_id"`
	CandidateName        string `json:"candidate_name"`
	LastMessage          string `json:"last_message,omitempty"`
	LastMessageTimestamp int64  `json:"last_message_timestamp,omitempty"`
	UnreadCount          int    `json:"unread_count"`
}

// PartnerName returns the display name of the other side of the room.
func (r Room) PartnerName(viewerID int64) string {
	if viewerID == r.RecruiterID {
		return r.CandidateName
	}
	return r.RecruiterName
}

// HasParticipant reports whether userID is one of the two sides.
func (r Room) HasParticipant(userID int64) bool {
	return userID == r.RecruiterID || userID == r.CandidateID
}
