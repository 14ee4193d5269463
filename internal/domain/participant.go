package domain

import "time"

type ParticipantID string

// Participant is a user's membership record in a room.
// A row is closed by setting LeftAt and is never removed.
type Participant struct {
	ID            ParticipantID `json:"participantId" validate:"required"`
	RoomID        RoomID        `json:"roomId" validate:"required"`
	UserID        UserID        `json:"userId" validate:"required"`
	UserName      string        `json:"userName"`
	UserEmail     string        `json:"userEmail"`
	Role          Role          `json:"role" validate:"oneof=teacher student"`
	JoinedAt      time.Time     `json:"joinedAt"`
	LeftAt        *time.Time    `json:"leftAt"`
	IsVoiceActive bool          `json:"isVoiceActive"`
	IsMuted       bool          `json:"isMuted"`
	PeerID        string        `json:"peerId,omitempty"`
}

func (p Participant) Active() bool { return p.LeftAt == nil }

// ActiveParticipants keeps rows with LeftAt == nil, preserving order.
func ActiveParticipants(rows []Participant) []Participant {
	out := make([]Participant, 0, len(rows))
	for _, p := range rows {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out
}
