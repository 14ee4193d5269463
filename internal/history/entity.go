package history

import (
	"time"

	"github.com/dkeye/Playground/internal/domain"
)

// RoomRecord is the archived header of an ended room.
type RoomRecord struct {
	ID               string `gorm:"primarykey;size:64"`
	Title            string `gorm:"size:200;not null"`
	HostID           string `gorm:"size:64;index"`
	HostName         string `gorm:"size:100"`
	CreatedAt        time.Time
	EndedAt          time.Time `gorm:"index"`
	ParticipantCount int
	MaxParticipants  *int
	IsPublicWriting  bool
	ArchivedAt       time.Time `gorm:"autoCreateTime"`

	Participants []ParticipantRecord `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	Writings     []WritingRecord     `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	Messages     []MessageRecord     `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
}

func (RoomRecord) TableName() string { return "archived_rooms" }

type ParticipantRecord struct {
	ID            string `gorm:"primarykey;size:64"`
	RoomID        string `gorm:"size:64;index"`
	UserID        string `gorm:"size:64;index"`
	UserName      string `gorm:"size:100"`
	UserEmail     string `gorm:"size:200"`
	Role          string `gorm:"size:16"`
	JoinedAt      time.Time
	LeftAt        *time.Time
	IsVoiceActive bool
	IsMuted       bool
	PeerID        string `gorm:"size:80"`
}

func (ParticipantRecord) TableName() string { return "archived_participants" }

type WritingRecord struct {
	ID            string `gorm:"primarykey;size:140"`
	RoomID        string `gorm:"size:64;index"`
	UserID        string `gorm:"size:64"`
	UserName      string `gorm:"size:100"`
	Content       string `gorm:"type:text"`
	IsPublic      bool
	WordCount     int
	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

func (WritingRecord) TableName() string { return "archived_writings" }

type MessageRecord struct {
	ID        string `gorm:"primarykey;size:32"`
	RoomID    string `gorm:"size:64;index"`
	UserID    string `gorm:"size:64"`
	UserName  string `gorm:"size:100"`
	Message   string `gorm:"type:text"`
	Timestamp time.Time
	Type      string `gorm:"size:16"`
}

func (MessageRecord) TableName() string { return "archived_messages" }

func roomRecord(s domain.RoomState) RoomRecord {
	r := s.Room
	rec := RoomRecord{
		ID:               string(r.ID),
		Title:            r.Title,
		HostID:           string(r.HostID),
		HostName:         r.HostName,
		CreatedAt:        r.CreatedAt,
		ParticipantCount: r.ParticipantCount,
		MaxParticipants:  r.MaxParticipants,
		IsPublicWriting:  r.IsPublicWriting,
	}
	if r.EndedAt != nil {
		rec.EndedAt = *r.EndedAt
	}
	for _, p := range s.Participants {
		rec.Participants = append(rec.Participants, ParticipantRecord{
			ID:            string(p.ID),
			RoomID:        string(p.RoomID),
			UserID:        string(p.UserID),
			UserName:      p.UserName,
			UserEmail:     p.UserEmail,
			Role:          string(p.Role),
			JoinedAt:      p.JoinedAt,
			LeftAt:        p.LeftAt,
			IsVoiceActive: p.IsVoiceActive,
			IsMuted:       p.IsMuted,
			PeerID:        p.PeerID,
		})
	}
	for _, w := range s.Writings {
		rec.Writings = append(rec.Writings, WritingRecord{
			ID:            string(w.ID),
			RoomID:        string(w.RoomID),
			UserID:        string(w.UserID),
			UserName:      w.UserName,
			Content:       w.Content,
			IsPublic:      w.IsPublic,
			WordCount:     w.WordCount,
			CreatedAt:     w.CreatedAt,
			LastUpdatedAt: w.LastUpdatedAt,
		})
	}
	for _, m := range s.Messages {
		rec.Messages = append(rec.Messages, MessageRecord{
			ID:        string(m.ID),
			RoomID:    string(m.RoomID),
			UserID:    string(m.UserID),
			UserName:  m.UserName,
			Message:   m.Message,
			Timestamp: m.Timestamp,
			Type:      string(m.Type),
		})
	}
	return rec
}

func (rec RoomRecord) room() domain.Room {
	ended := rec.EndedAt
	return domain.Room{
		ID:               domain.RoomID(rec.ID),
		Title:            rec.Title,
		HostID:           domain.UserID(rec.HostID),
		HostName:         rec.HostName,
		Status:           domain.RoomEnded,
		CreatedAt:        rec.CreatedAt,
		EndedAt:          &ended,
		ParticipantCount: rec.ParticipantCount,
		MaxParticipants:  rec.MaxParticipants,
		IsPublicWriting:  rec.IsPublicWriting,
	}
}

func (rec RoomRecord) state() domain.RoomState {
	s := domain.RoomState{
		Room:         rec.room(),
		Participants: make([]domain.Participant, 0, len(rec.Participants)),
		Writings:     make([]domain.Writing, 0, len(rec.Writings)),
		Messages:     make([]domain.Message, 0, len(rec.Messages)),
	}
	for _, p := range rec.Participants {
		s.Participants = append(s.Participants, domain.Participant{
			ID:            domain.ParticipantID(p.ID),
			RoomID:        domain.RoomID(p.RoomID),
			UserID:        domain.UserID(p.UserID),
			UserName:      p.UserName,
			UserEmail:     p.UserEmail,
			Role:          domain.Role(p.Role),
			JoinedAt:      p.JoinedAt,
			LeftAt:        p.LeftAt,
			IsVoiceActive: p.IsVoiceActive,
			IsMuted:       p.IsMuted,
			PeerID:        p.PeerID,
		})
	}
	for _, w := range rec.Writings {
		s.Writings = append(s.Writings, domain.Writing{
			ID:            domain.WritingID(w.ID),
			RoomID:        domain.RoomID(w.RoomID),
			UserID:        domain.UserID(w.UserID),
			UserName:      w.UserName,
			Content:       w.Content,
			IsPublic:      w.IsPublic,
			WordCount:     w.WordCount,
			CreatedAt:     w.CreatedAt,
			LastUpdatedAt: w.LastUpdatedAt,
		})
	}
	for _, m := range rec.Messages {
		s.Messages = append(s.Messages, domain.Message{
			ID:        domain.MessageID(m.ID),
			RoomID:    domain.RoomID(m.RoomID),
			UserID:    domain.UserID(m.UserID),
			UserName:  m.UserName,
			Message:   m.Message,
			Timestamp: m.Timestamp,
			Type:      domain.MessageType(m.Type),
		})
	}
	s.Presence = domain.PresenceFrom(s.Participants)
	return s
}
