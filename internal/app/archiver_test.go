package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Playground/internal/app/chat"
	"github.com/dkeye/Playground/internal/app/participants"
	"github.com/dkeye/Playground/internal/app/rooms"
	"github.com/dkeye/Playground/internal/app/writing"
	"github.com/dkeye/Playground/internal/domain"
	"github.com/dkeye/Playground/internal/history"
	"github.com/dkeye/Playground/internal/store/memory"
)

func TestArchiver_ArchivesOnEnd(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	archive, err := history.Open(":memory:", false)
	require.NoError(t, err)
	defer archive.Close()

	parts := participants.New(s, nil)
	w := writing.New(s, nil)
	c := chat.New(s, nil)
	arch := NewArchiver(archive, parts, w, c)
	mgr := rooms.New(s, rooms.WithEndedHook(arch.OnEnded))

	host := domain.User{ID: "t1", Name: "Teacher", Role: domain.RoleTeacher}
	student := domain.User{ID: "s1", Name: "Student", Role: domain.RoleStudent}
	room, err := mgr.Create(ctx, host, "Lesson", rooms.Options{})
	require.NoError(t, err)
	_, err = parts.Join(ctx, room.ID, student)
	require.NoError(t, err)
	_, err = w.Upsert(ctx, room.ID, student, "Hallo Welt")
	require.NoError(t, err)
	_, err = c.Post(ctx, room.ID, student, "hi")
	require.NoError(t, err)

	cctx, cancel := context.WithCancel(ctx)
	_, err = mgr.End(cctx, room.ID)
	cancel()
	require.NoError(t, err)

	st, err := archive.Room(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomEnded, st.Room.Status)
	assert.Len(t, st.Participants, 1)
	require.Len(t, st.Writings, 1)
	assert.Equal(t, 2, st.Writings[0].WordCount)
	assert.Len(t, st.Messages, 1)

	// ending again does not run the hook
	_, err = mgr.End(ctx, room.ID)
	require.NoError(t, err)
	list, err := archive.Rooms(ctx, host.ID, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestArchiver_CollectFailsWhenStoreDown(t *testing.T) {
	s := memory.New()
	arch := NewArchiver(nil, participants.New(s, nil), writing.New(s, nil), chat.New(s, nil))
	s.SetUnavailable(true)
	_, err := arch.Collect(context.Background(), domain.Room{ID: "r1"})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
