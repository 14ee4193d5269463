package domain

import "time"

type RoomID string

type RoomStatus string

const (
	RoomActive RoomStatus = "active"
	RoomEnded  RoomStatus = "ended"
)

// Room is a bounded collaborative session. Status only moves active -> ended.
type Room struct {
	ID               RoomID     `json:"roomId" validate:"required"`
	Title            string     `json:"title" validate:"required"`
	HostID           UserID     `json:"hostId" validate:"required"`
	HostName         string     `json:"hostName"`
	Status           RoomStatus `json:"status" validate:"oneof=active ended"`
	CreatedAt        time.Time  `json:"createdAt"`
	EndedAt          *time.Time `json:"endedAt"`
	ParticipantCount int        `json:"participantCount" validate:"gte=0"`
	MaxParticipants  *int       `json:"maxParticipants,omitempty" validate:"omitempty,gt=0"`
	IsPublicWriting  bool       `json:"isPublicWriting"`
}

func (r Room) IsActive() bool { return r.Status == RoomActive }

func (r Room) IsHost(id UserID) bool { return id != "" && r.HostID == id }

// Full reports whether another participant would exceed MaxParticipants.
func (r Room) Full() bool {
	return r.MaxParticipants != nil && r.ParticipantCount >= *r.MaxParticipants
}
