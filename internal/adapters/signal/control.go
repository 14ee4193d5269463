package signal

import (
	"errors"

	"github.com/dkeye/Playground/internal/app/chat"
	"github.com/dkeye/Playground/internal/app/continuity"
	"github.com/dkeye/Playground/internal/domain"
)

type sessionFrame struct {
	Type    string             `json:"type"`
	Active  bool               `json:"active"`
	Session continuity.Session `json:"session"`
}

type roomEndedFrame struct {
	Type string      `json:"type"`
	Room domain.Room `json:"room"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Op    string `json:"op,omitempty"`
	Error string `json:"error"`
}

func (s *stream) fail(op, code string) {
	s.push(errorFrame{Type: "error", Op: op, Error: code})
}

func (s *stream) failErr(op string, err error) {
	s.fail(op, ErrorCode(err))
}

// ErrorCode maps domain errors to the short codes the browser understands.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrRoomNotActive):
		return "room_not_active"
	case errors.Is(err, domain.ErrRoomFull):
		return "room_full"
	case errors.Is(err, domain.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, domain.ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, domain.ErrInvalidRoom),
		errors.Is(err, domain.ErrInvalidRecord),
		errors.Is(err, domain.ErrUsernameEmpty),
		errors.Is(err, domain.ErrUsernameTooLong),
		errors.Is(err, chat.ErrEmptyMessage):
		return "invalid"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}

func (ctl *SignalWSController) handlePing(s *stream) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	s.push(resp)
}
