package domain

import "time"

// Presence is a read-model derived from participant rows, never stored.
type Presence struct {
	UserID        UserID    `json:"userId"`
	UserName      string    `json:"userName"`
	Role          Role      `json:"role"`
	PeerID        string    `json:"peerId,omitempty"`
	IsVoiceActive bool      `json:"isVoiceActive"`
	IsMuted       bool      `json:"isMuted"`
	LastSeen      time.Time `json:"lastSeen"`
}

// PresenceFrom aggregates active rows by user. A user who reconnected has
// several rows; the most recent join wins.
func PresenceFrom(rows []Participant) map[UserID]Presence {
	out := make(map[UserID]Presence)
	for _, p := range rows {
		if !p.Active() {
			continue
		}
		if prev, ok := out[p.UserID]; ok && prev.LastSeen.After(p.JoinedAt) {
			continue
		}
		out[p.UserID] = Presence{
			UserID:        p.UserID,
			UserName:      p.UserName,
			Role:          p.Role,
			PeerID:        p.PeerID,
			IsVoiceActive: p.IsVoiceActive,
			IsMuted:       p.IsMuted,
			LastSeen:      p.JoinedAt,
		}
	}
	return out
}

// RoomState is the in-memory aggregate assembled from the room feeds.
type RoomState struct {
	Room         Room                `json:"room"`
	Participants []Participant       `json:"participants"`
	Writings     []Writing           `json:"writings"`
	Messages     []Message           `json:"messages"`
	Presence     map[UserID]Presence `json:"presence"`
}
