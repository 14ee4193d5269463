package domain

import "time"

type MessageID string

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageSystem MessageType = "system"
)

// Message is an append-only chat or system event.
type Message struct {
	ID        MessageID   `json:"messageId" validate:"required"`
	RoomID    RoomID      `json:"roomId" validate:"required"`
	UserID    UserID      `json:"userId"`
	UserName  string      `json:"userName"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"type" validate:"oneof=text system"`
}
