package domain

import (
	"strings"
	"time"
)

type WritingID string

// Writing is a participant's live text document. One per (room, user).
type Writing struct {
	ID            WritingID `json:"writingId" validate:"required"`
	RoomID        RoomID    `json:"roomId" validate:"required"`
	UserID        UserID    `json:"userId" validate:"required"`
	UserName      string    `json:"userName"`
	Content       string    `json:"content"`
	IsPublic      bool      `json:"isPublic"`
	WordCount     int       `json:"wordCount" validate:"gte=0"`
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// WritingIDFor derives the document id so a second row for the same pair cannot exist.
func WritingIDFor(roomID RoomID, userID UserID) WritingID {
	return WritingID(string(roomID) + "_" + string(userID))
}

// CountWords counts whitespace-delimited tokens.
func CountWords(content string) int {
	return len(strings.Fields(content))
}

// VisibleWritings applies the read-side rule: teachers see everything,
// students see their own writing and public ones.
func VisibleWritings(role Role, viewer UserID, rows []Writing) []Writing {
	if role == RoleTeacher {
		out := make([]Writing, len(rows))
		copy(out, rows)
		return out
	}
	out := make([]Writing, 0, len(rows))
	for _, w := range rows {
		if w.UserID == viewer || w.IsPublic {
			out = append(out, w)
		}
	}
	return out
}
