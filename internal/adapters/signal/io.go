package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 5 * time.Second
	actionWait = 10 * time.Second
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	var ping <-chan time.Time
	if ctl.PingPeriod > 0 {
		t := time.NewTicker(ctl.PingPeriod)
		defer t.Stop()
		ping = t.C
	}
	for {
		select {
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Info().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(s *stream) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(s.sid)).Msg("readPump closing")
		s.cancel()
	}()

	if ctl.PingPeriod > 0 {
		pongWait := ctl.PingPeriod * 10 / 9
		_ = s.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.conn.conn.SetPongHandler(func(string) error {
			return s.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		_, data, err := s.conn.conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(s.sid)).Msg("readPump read error")
			}
			return
		}
		ctl.handleSignal(s, data)
	}
}

func (ctl *SignalWSController) handleSignal(s *stream, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		s.fail("", "bad_payload")
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, actionWait)
	defer cancel()

	switch env.Type {
	case "ping":
		ctl.handlePing(s)
	case "whoami":
		ctl.handleWhoAmI(s)
	case "rename":
		ctl.handleRename(s, data)
	case "restore":
		ctl.handleRestore(ctx, s)
	case "leave":
		ctl.handleLeave(ctx, s)
	case "write":
		ctl.handleWrite(ctx, s, data)
	case "say":
		ctl.handleSay(ctx, s, data)
	case "voice":
		ctl.handleVoice(ctx, s, data)
	case "mute":
		ctl.handleMute(ctx, s, data)
	case "offer":
		ctl.handleOffer(s, data)
	case "candidate":
		ctl.handleCandidate(s, data)
	case "stats":
		ctl.handleStats(s)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		s.fail(env.Type, "unknown_type")
	}
}

func decode(s *stream, op string, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("op", op).Msg("bad payload")
		s.fail(op, "bad_payload")
		return false
	}
	return true
}
