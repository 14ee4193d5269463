// Package continuity mirrors the active room into a per-client session so a
// minimized widget can show and restore it independently of the room view.
package continuity

import (
	"sync"

	"github.com/dkeye/Playground/internal/domain"
	"github.com/dkeye/Playground/internal/store/mailbox"
)

type Session struct {
	CurrentRoom     domain.Room          `json:"currentRoom"`
	Participants    []domain.Participant `json:"participants"`
	Writings        []domain.Writing     `json:"writings"`
	Messages        []domain.Message     `json:"messages"`
	MyParticipantID domain.ParticipantID `json:"myParticipantId"`
	PeerID          string               `json:"peerId,omitempty"`
	UserID          domain.UserID        `json:"userId"`
	UserName        string               `json:"userName"`
	UserEmail       string               `json:"userEmail"`
	UserRole        domain.Role          `json:"userRole"`
	IsVoiceActive   bool                 `json:"isVoiceActive"`
	IsVideoActive   bool                 `json:"isVideoActive"`
	IsMuted         bool                 `json:"isMuted"`
}

// Patch is a shallow update: nil fields are left alone.
type Patch struct {
	CurrentRoom     *domain.Room
	Participants    *[]domain.Participant
	Writings        *[]domain.Writing
	Messages        *[]domain.Message
	MyParticipantID *domain.ParticipantID
	PeerID          *string
	IsVoiceActive   *bool
	IsVideoActive   *bool
	IsMuted         *bool
}

func (p Patch) apply(s *Session) {
	if p.CurrentRoom != nil {
		s.CurrentRoom = *p.CurrentRoom
	}
	if p.Participants != nil {
		s.Participants = *p.Participants
	}
	if p.Writings != nil {
		s.Writings = *p.Writings
	}
	if p.Messages != nil {
		s.Messages = *p.Messages
	}
	if p.MyParticipantID != nil {
		s.MyParticipantID = *p.MyParticipantID
	}
	if p.PeerID != nil {
		s.PeerID = *p.PeerID
	}
	if p.IsVoiceActive != nil {
		s.IsVoiceActive = *p.IsVoiceActive
	}
	if p.IsVideoActive != nil {
		s.IsVideoActive = *p.IsVideoActive
	}
	if p.IsMuted != nil {
		s.IsMuted = *p.IsMuted
	}
}

// Event is what watchers receive. Active is false after Clear.
type Event struct {
	Session Session `json:"session"`
	Active  bool    `json:"active"`
}

// Store holds at most one session. One Store is created per client and
// passed to whatever needs it.
type Store struct {
	mu       sync.Mutex
	current  *Session
	tool     ToolState
	watchers map[uint64]*mailbox.Mailbox[Event]
	nextID   uint64
}

func NewStore() *Store {
	return &Store{tool: DefaultToolState(), watchers: make(map[uint64]*mailbox.Mailbox[Event])}
}

// Start sets the initial session. It is a no-op if one already exists.
func (s *Store) Start(initial Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return false
	}
	cp := initial
	s.current = &cp
	s.publishLocked()
	return true
}

// Update merges p into the session. It reports false when there is none.
func (s *Store) Update(p Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false
	}
	p.apply(s.current)
	s.publishLocked()
	return true
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.current = nil
	s.publishLocked()
}

func (s *Store) Current() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Watch calls fn with the current state and then on every change, in order,
// on its own goroutine. The returned func stops it.
func (s *Store) Watch(fn func(Event)) func() {
	box := mailbox.New[Event]()
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.watchers[id] = box
	box.Push(s.eventLocked())
	s.mu.Unlock()

	go box.Drain(fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
			box.Close()
		})
	}
}

func (s *Store) eventLocked() Event {
	if s.current == nil {
		return Event{}
	}
	return Event{Session: *s.current, Active: true}
}

func (s *Store) publishLocked() {
	ev := s.eventLocked()
	for _, box := range s.watchers {
		box.Push(ev)
	}
}
