package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Playground/internal/adapters/rtc"
	"github.com/dkeye/Playground/internal/app"
	"github.com/dkeye/Playground/internal/app/chat"
	"github.com/dkeye/Playground/internal/app/continuity"
	"github.com/dkeye/Playground/internal/app/orch"
	"github.com/dkeye/Playground/internal/app/participants"
	"github.com/dkeye/Playground/internal/app/peerid"
	"github.com/dkeye/Playground/internal/app/rooms"
	"github.com/dkeye/Playground/internal/app/subscription"
	"github.com/dkeye/Playground/internal/app/writing"
	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
	"github.com/dkeye/Playground/internal/store/memory"
)

type harness struct {
	svc orch.Services
	reg *app.Registry
	ctl *SignalWSController
	srv *httptest.Server
}

func newHarness(t *testing.T, limiter *RateLimiter) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := memory.New()
	gen, err := peerid.New()
	require.NoError(t, err)
	tr, err := rtc.NewTransport(webrtc.Configuration{})
	require.NoError(t, err)

	h := &harness{
		svc: orch.Services{
			Rooms:        rooms.New(s),
			Participants: participants.New(s, nil),
			Writing:      writing.New(s, nil),
			Chat:         chat.New(s, nil),
			Subs:         subscription.New(s),
			PeerIDs:      gen,
			Transport:    tr,
		},
		reg: app.NewRegistry(),
	}
	h.ctl = NewSignalWSController(h.reg, tr, nil, limiter)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("client_token", c.Query("ct"))
		h.ctl.HandleSignal(context.Background(), c)
	})
	h.srv = httptest.NewServer(r)
	t.Cleanup(func() {
		h.reg.CloseAll()
		h.srv.Close()
	})
	return h
}

func (h *harness) client(sid string, user domain.User) *orch.Orchestrator {
	o, _ := h.reg.GetOrCreate(core.SessionID(sid), func() *orch.Orchestrator {
		return orch.New(context.Background(), h.svc, user, continuity.NewStore())
	})
	return o
}

func (h *harness) dial(t *testing.T, sid string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws?ct=" + sid
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// next reads frames until one of the wanted type arrives.
func next(t *testing.T, ws *websocket.Conn, typ string) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		if m["type"] == typ {
			return m
		}
	}
}

func TestHandleSignal_UnknownClient(t *testing.T) {
	h := newHarness(t, nil)
	resp, err := http.Get(h.srv.URL + "/ws?ct=nobody")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStream_PingAndSession(t *testing.T) {
	h := newHarness(t, nil)
	teacher := h.client("t-sid", domain.User{ID: "t1", Name: "Teacher", Role: domain.RoleTeacher})
	student := h.client("s-sid", domain.User{ID: "s1", Name: "Student", Role: domain.RoleStudent})

	ws := h.dial(t, "s-sid")
	initial := next(t, ws, "session")
	assert.Equal(t, false, initial["active"])

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "ping"}))
	next(t, ws, "pong")

	ctx := context.Background()
	room, err := teacher.Create(ctx, "Lesson", rooms.Options{})
	require.NoError(t, err)
	_, err = student.Join(ctx, room.ID)
	require.NoError(t, err)

	for {
		f := next(t, ws, "session")
		if f["active"] == true {
			sess := f["session"].(map[string]any)
			assert.Equal(t, string(room.ID), sess["currentRoom"].(map[string]any)["roomId"])
			break
		}
	}

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "whoami"}))
	who := next(t, ws, "whoami")
	assert.Equal(t, string(room.ID), who["room"])

	_, err = teacher.EndRoom(ctx, room.ID)
	require.NoError(t, err)
	ended := next(t, ws, "room_ended")
	assert.Equal(t, string(room.ID), ended["room"].(map[string]any)["roomId"])
}

func TestStream_WriteRateLimited(t *testing.T) {
	h := newHarness(t, NewRateLimiter(1, time.Minute))
	teacher := h.client("t-sid", domain.User{ID: "t1", Name: "Teacher", Role: domain.RoleTeacher})
	student := h.client("s-sid", domain.User{ID: "s1", Name: "Student", Role: domain.RoleStudent})
	ctx := context.Background()
	room, err := teacher.Create(ctx, "Lesson", rooms.Options{})
	require.NoError(t, err)
	_, err = student.Join(ctx, room.ID)
	require.NoError(t, err)

	ws := h.dial(t, "s-sid")
	require.NoError(t, ws.WriteJSON(map[string]string{"type": "write", "content": "one two"}))
	written := next(t, ws, "written")
	assert.EqualValues(t, 2, written["wordCount"])

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "write", "content": "one two three"}))
	e := next(t, ws, "error")
	assert.Equal(t, "rate_limited", e["error"])
}

func TestStream_ErrorsForBadInput(t *testing.T) {
	h := newHarness(t, nil)
	h.client("s-sid", domain.User{ID: "s1", Name: "Student", Role: domain.RoleStudent})
	ws := h.dial(t, "s-sid")

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "leave"}))
	e := next(t, ws, "error")
	assert.Equal(t, "not_in_room", e["error"])

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "offer", "sdp": "v=0"}))
	e = next(t, ws, "error")
	assert.Equal(t, "voice_off", e["error"])

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{")))
	e = next(t, ws, "error")
	assert.Equal(t, "bad_payload", e["error"])
}

func TestStream_BackpressureDisconnects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &stream{
		ctl:    &SignalWSController{Policy: app.SimplePolicy{MaxDropped: 2}},
		sid:    "slow",
		conn:   &WsSignalConn{send: make(chan core.Frame)},
		ctx:    ctx,
		cancel: cancel,
	}

	s.push(map[string]string{"type": "pong"})
	assert.NoError(t, ctx.Err())
	assert.EqualValues(t, 1, s.dropped.Load())

	s.push(map[string]string{"type": "pong"})
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "room_full", ErrorCode(domain.ErrRoomFull))
	assert.Equal(t, "permission_denied", ErrorCode(domain.ErrPermissionDenied))
	assert.Equal(t, "invalid", ErrorCode(chat.ErrEmptyMessage))
	assert.Equal(t, "unavailable", ErrorCode(domain.ErrStoreUnavailable))
}
