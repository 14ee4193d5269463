package writing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Playground/internal/domain"
	"github.com/dkeye/Playground/internal/store/memory"
)

var (
	teacher = domain.User{ID: "t", Name: "T", Role: domain.RoleTeacher}
	s1      = domain.User{ID: "s1", Name: "S1", Role: domain.RoleStudent}
	s2      = domain.User{ID: "s2", Name: "S2", Role: domain.RoleStudent}
)

func TestChannel_UpsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	ch := New(memory.New(), func() time.Time { clock = clock.Add(time.Second); return clock })

	w, err := ch.Upsert(ctx, "r1", s1, "Hallo")
	require.NoError(t, err)
	assert.Equal(t, domain.WritingIDFor("r1", "s1"), w.ID)
	assert.Equal(t, 1, w.WordCount)
	created := w.CreatedAt

	w, err = ch.Upsert(ctx, "r1", s1, "Hallo Welt")
	require.NoError(t, err)
	assert.Equal(t, "Hallo Welt", w.Content)
	assert.Equal(t, 2, w.WordCount)
	assert.True(t, created.Equal(w.CreatedAt))
	assert.True(t, w.LastUpdatedAt.After(created))

	rows, err := ch.ListByRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestChannel_WordCount(t *testing.T) {
	ctx := context.Background()
	ch := New(memory.New(), nil)
	tests := map[string]int{
		"":                    0,
		"   ":                 0,
		"one":                 1,
		"  two\twords\n":      2,
		"Ich bin ein Student": 4,
	}
	for content, want := range tests {
		w, err := ch.Upsert(ctx, "r1", s1, content)
		require.NoError(t, err)
		assert.Equal(t, want, w.WordCount, "content %q", content)
	}
}

func TestChannel_Visibility(t *testing.T) {
	ctx := context.Background()
	ch := New(memory.New(), nil)

	_, err := ch.Upsert(ctx, "r1", s1, "mine")
	require.NoError(t, err)
	w2, err := ch.Upsert(ctx, "r1", s2, "theirs")
	require.NoError(t, err)

	rows, err := ch.ListByRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, Visible(domain.RoleTeacher, teacher.ID, rows), 2)
	seen := Visible(domain.RoleStudent, s1.ID, rows)
	require.Len(t, seen, 1)
	assert.Equal(t, s1.ID, seen[0].UserID)

	_, err = ch.SetPublic(ctx, w2.ID, true)
	require.NoError(t, err)
	rows, err = ch.ListByRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, Visible(domain.RoleStudent, s1.ID, rows), 2)
}

func TestChannel_SetPublicMissing(t *testing.T) {
	_, err := New(memory.New(), nil).SetPublic(context.Background(), "nope", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
