package participants

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
	"github.com/dkeye/Playground/internal/store/memory"
)

var (
	alice = domain.User{ID: "a", Name: "A", Role: domain.RoleStudent}
	bob   = domain.User{ID: "b", Name: "B", Role: domain.RoleStudent}
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func seedRoom(t *testing.T, s core.Store, id domain.RoomID, created time.Time, max *int) {
	t.Helper()
	fields, err := core.EncodeFields(domain.Room{
		ID: id, Title: "Lesson", HostID: "t1", HostName: "T",
		Status: domain.RoomActive, CreatedAt: created, MaxParticipants: max,
	})
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), core.Rooms, string(id), fields))
}

func roomCount(t *testing.T, s core.Store, id domain.RoomID) int {
	t.Helper()
	doc, err := s.Get(context.Background(), core.Rooms, string(id))
	require.NoError(t, err)
	room, err := core.Decode[domain.Room](doc)
	require.NoError(t, err)
	return room.ParticipantCount
}

func TestRegistry_CountFollowsActiveRows(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	c := &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	reg := New(s, c.now)
	seedRoom(t, s, "r1", c.t, nil)

	pa, err := reg.Join(ctx, "r1", alice)
	require.NoError(t, err)
	pb, err := reg.Join(ctx, "r1", bob)
	require.NoError(t, err)
	assert.Equal(t, 2, roomCount(t, s, "r1"))

	_, err = reg.Leave(ctx, pa.ID)
	require.NoError(t, err)

	rows, err := reg.ListByRoom(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Len(t, Active(rows), 1)
	assert.Equal(t, pb.ID, Active(rows)[0].ID)
	assert.Equal(t, len(Active(rows)), roomCount(t, s, "r1"))
}

func TestRegistry_LeaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	c := &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	reg := New(s, c.now)
	seedRoom(t, s, "r1", c.t, nil)

	p, err := reg.Join(ctx, "r1", alice)
	require.NoError(t, err)

	first, err := reg.Leave(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, first.LeftAt)

	second, err := reg.Leave(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, second.LeftAt)
	assert.True(t, first.LeftAt.Equal(*second.LeftAt))
	assert.Equal(t, 0, roomCount(t, s, "r1"))
}

func TestRegistry_JoinRejects(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	reg := New(s, nil)
	one := 1
	seedRoom(t, s, "small", time.Now(), &one)
	seedRoom(t, s, "done", time.Now(), nil)
	require.NoError(t, s.Update(ctx, core.Rooms, "done", core.Fields{"status": domain.RoomEnded}))

	_, err := reg.Join(ctx, "done", alice)
	assert.ErrorIs(t, err, domain.ErrRoomNotActive)

	_, err = reg.Join(ctx, "small", alice)
	require.NoError(t, err)
	_, err = reg.Join(ctx, "small", bob)
	assert.ErrorIs(t, err, domain.ErrRoomFull)

	_, err = reg.Join(ctx, "missing", alice)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistry_RejoinCreatesNewRow(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	reg := New(s, nil)
	seedRoom(t, s, "r1", time.Now(), nil)

	p1, err := reg.Join(ctx, "r1", alice)
	require.NoError(t, err)
	_, err = reg.Leave(ctx, p1.ID)
	require.NoError(t, err)
	p2, err := reg.Join(ctx, "r1", alice)
	require.NoError(t, err)

	assert.NotEqual(t, p1.ID, p2.ID)
	rows, err := reg.ListByRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 1, roomCount(t, s, "r1"))
}

func TestRegistry_FindActiveRoomPrefersOldest(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	reg := New(s, nil)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	// inserted newest first so store order differs from creation order
	seedRoom(t, s, "newer", base.Add(time.Hour), nil)
	seedRoom(t, s, "older", base, nil)

	_, err := reg.Join(ctx, "newer", alice)
	require.NoError(t, err)
	pOld, err := reg.Join(ctx, "older", alice)
	require.NoError(t, err)

	room, p, ok, err := reg.FindActiveRoom(ctx, alice.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("older"), room.ID)
	assert.Equal(t, pOld.ID, p.ID)

	_, _, ok, err = reg.FindActiveRoom(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_PresenceSetters(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	reg := New(s, nil)
	seedRoom(t, s, "r1", time.Now(), nil)
	p, err := reg.Join(ctx, "r1", alice)
	require.NoError(t, err)

	require.NoError(t, reg.SetVoice(ctx, p.ID, true))
	require.NoError(t, reg.SetMuted(ctx, p.ID, true))
	require.NoError(t, reg.SetPeerID(ctx, p.ID, "peer-a-r1-abcd"))

	got, err := reg.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVoiceActive)
	assert.True(t, got.IsMuted)
	assert.Equal(t, "peer-a-r1-abcd", got.PeerID)

	_, err = reg.Leave(ctx, p.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, reg.SetMuted(ctx, p.ID, false), domain.ErrNotInRoom)
}
