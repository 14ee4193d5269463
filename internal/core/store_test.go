package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Playground/internal/domain"
)

func docOf(t *testing.T, id string, v any) Doc {
	t.Helper()
	fields, err := EncodeFields(v)
	require.NoError(t, err)
	raw := make(map[string]json.RawMessage, len(fields))
	for k, val := range fields {
		b, err := json.Marshal(val)
		require.NoError(t, err)
		raw[k] = b
	}
	return Doc{ID: id, Fields: raw}
}

func TestFilter_Match(t *testing.T) {
	left := time.Now()
	active := docOf(t, "p1", domain.Participant{ID: "p1", RoomID: "r1", UserID: "u1", Role: domain.RoleStudent})
	closed := docOf(t, "p2", domain.Participant{ID: "p2", RoomID: "r1", UserID: "u2", Role: domain.RoleStudent, LeftAt: &left})

	f := Where("roomId", "r1").And("leftAt", nil)
	assert.True(t, f.Match(active.Fields))
	assert.False(t, f.Match(closed.Fields))

	assert.True(t, Filter{}.Match(closed.Fields))
	assert.False(t, Where("roomId", "r2").Match(active.Fields))
}

func TestCond_MissingFieldMatchesNil(t *testing.T) {
	fields := map[string]json.RawMessage{"roomId": json.RawMessage(`"r1"`)}
	assert.True(t, Cond{Field: "leftAt", Value: nil}.Match(fields))
	assert.False(t, Cond{Field: "roomId", Value: nil}.Match(fields))
}

func TestDecode_ValidatesRecords(t *testing.T) {
	good := docOf(t, "r1", domain.Room{ID: "r1", Title: "Lesson", HostID: "h", Status: domain.RoomActive})
	room, err := Decode[domain.Room](good)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("r1"), room.ID)

	bad := docOf(t, "r2", domain.Room{ID: "r2", Title: "Lesson", HostID: "h", Status: "paused"})
	_, err = Decode[domain.Room](bad)
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)

	broken := Doc{ID: "r3", Fields: map[string]json.RawMessage{"participantCount": json.RawMessage(`"many"`)}}
	_, err = Decode[domain.Room](broken)
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)
}

func TestDecodeAll_SkipsInvalid(t *testing.T) {
	docs := []Doc{
		docOf(t, "r1", domain.Room{ID: "r1", Title: "A", HostID: "h", Status: domain.RoomActive}),
		docOf(t, "r2", domain.Room{ID: "r2", Title: "", HostID: "h", Status: domain.RoomActive}),
	}
	rooms := DecodeAll[domain.Room](docs)
	require.Len(t, rooms, 1)
	assert.Equal(t, domain.RoomID("r1"), rooms[0].ID)
}

func TestApply_Increment(t *testing.T) {
	base := map[string]json.RawMessage{"participantCount": json.RawMessage(`2`), "title": json.RawMessage(`"A"`)}
	out, err := Apply(base, Fields{"participantCount": Increment(-1), "title": "B", "hits": Increment(3)})
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`1`), out["participantCount"])
	assert.Equal(t, json.RawMessage(`"B"`), out["title"])
	assert.Equal(t, json.RawMessage(`3`), out["hits"])
	assert.Equal(t, json.RawMessage(`2`), base["participantCount"])

	_, err = Apply(out, Fields{"title": Increment(1)})
	assert.Error(t, err)
}
