// Package signal is the per-client push stream over a websocket. It forwards
// continuity session events to the browser and accepts room actions and
// WebRTC signalling for the client's audio peer.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/adapters/rtc"
	"github.com/dkeye/Playground/internal/app"
	"github.com/dkeye/Playground/internal/app/continuity"
	"github.com/dkeye/Playground/internal/app/orch"
	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const sendBuffer = 32

type SignalWSController struct {
	Registry  *app.Registry
	Transport *rtc.Transport
	Policy    app.Policy
	Limiter   *RateLimiter

	// ReadLimit caps inbound frame size; PingPeriod enables keepalive pings.
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewSignalWSController(reg *app.Registry, tr *rtc.Transport, policy app.Policy, limiter *RateLimiter) *SignalWSController {
	if policy == nil {
		policy = app.SimplePolicy{}
	}
	return &SignalWSController{Registry: reg, Transport: tr, Policy: policy, Limiter: limiter}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

var _ core.SignalConnection = (*WsSignalConn)(nil)

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// stream is one live websocket of a client.
type stream struct {
	ctl     *SignalWSController
	sid     core.SessionID
	o       *orch.Orchestrator
	conn    *WsSignalConn
	ctx     context.Context
	cancel  context.CancelFunc
	dropped atomic.Int64
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	o, ok := ctl.Registry.Get(sid)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no session, sign in first"})
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}
	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &stream{ctl: ctl, sid: sid, o: o, conn: conn, ctx: ctx, cancel: cancel}
	ctl.Registry.BindCancel(sid, cancel)

	unwatch := o.Session().Watch(func(ev continuity.Event) {
		s.push(sessionFrame{Type: "session", Active: ev.Active, Session: ev.Session})
	})
	o.OnRoomEnded(func(room domain.Room) {
		s.push(roomEndedFrame{Type: "room_ended", Room: room})
	})

	go func() {
		<-ctx.Done()
		unwatch()
		conn.Close()
	}()
	go ctl.writePump(ctx, conn)
	go ctl.readPump(s)
}

// push marshals v and hands it to the connection. Frames that do not fit the
// send buffer are dropped until the policy asks for a disconnect.
func (s *stream) push(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("push marshal")
		return
	}
	err = s.conn.TrySend(b)
	if err == nil {
		s.dropped.Store(0)
		return
	}
	if !errors.Is(err, ErrBackpressure) {
		return
	}
	n := s.dropped.Add(1)
	switch s.ctl.Policy.OnBackPressure(s.sid, int(n)) {
	case app.Disconnect:
		log.Warn().Str("module", "signal").Str("sid", string(s.sid)).Int64("dropped", n).Msg("slow client, disconnecting")
		s.cancel()
	case app.DropFrame:
		log.Debug().Str("module", "signal").Str("sid", string(s.sid)).Int64("dropped", n).Msg("frame dropped")
	}
}
