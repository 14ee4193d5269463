package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/domain"
)

func (ctl *SignalWSController) handleRestore(ctx context.Context, s *stream) {
	room, ok, err := s.o.Restore(ctx)
	if err != nil {
		s.failErr("restore", err)
		return
	}
	resp := struct {
		Type     string       `json:"type"`
		Restored bool         `json:"restored"`
		Room     *domain.Room `json:"room,omitempty"`
	}{Type: "restored", Restored: ok}
	if ok {
		resp.Room = &room
	}
	s.push(resp)
}

// handleLeave leaves the current room; the stream stays open.
func (ctl *SignalWSController) handleLeave(ctx context.Context, s *stream) {
	log.Info().Str("module", "signal").Str("sid", string(s.sid)).Msg("leave")
	if err := s.o.Leave(ctx); err != nil {
		s.failErr("leave", err)
		return
	}
	s.push(map[string]any{"type": "left"})
}

// handleWrite is the keystroke path; it is rate limited per user and room.
func (ctl *SignalWSController) handleWrite(ctx context.Context, s *stream, data []byte) {
	var p struct {
		Content string `json:"content"`
	}
	if !decode(s, "write", data, &p) {
		return
	}
	roomID, _, _ := s.o.Current()
	if ctl.Limiter != nil && !ctl.Limiter.Allow(roomID, s.o.User().ID) {
		s.fail("write", "rate_limited")
		return
	}
	w, err := s.o.Write(ctx, p.Content)
	if err != nil {
		s.failErr("write", err)
		return
	}
	s.push(struct {
		Type      string           `json:"type"`
		ID        domain.WritingID `json:"id"`
		WordCount int              `json:"wordCount"`
	}{Type: "written", ID: w.ID, WordCount: w.WordCount})
}

func (ctl *SignalWSController) handleSay(ctx context.Context, s *stream, data []byte) {
	var p struct {
		Text string `json:"text"`
	}
	if !decode(s, "say", data, &p) {
		return
	}
	if _, err := s.o.Say(ctx, p.Text); err != nil {
		s.failErr("say", err)
	}
}
