package chat

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Playground/internal/domain"
	"github.com/dkeye/Playground/internal/store/memory"
)

func TestChannel_PostAndHistory(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	ch := New(memory.New(), func() time.Time { return fixed })
	user := domain.User{ID: "a", Name: "A", Role: domain.RoleStudent}

	_, err := ch.Announce(ctx, "r1", "A joined")
	require.NoError(t, err)
	for _, text := range []string{"one", "two", "three"} {
		_, err := ch.Post(ctx, "r1", user, text)
		require.NoError(t, err)
	}
	_, err = ch.Post(ctx, "r2", user, "elsewhere")
	require.NoError(t, err)

	all, err := ch.History(ctx, "r1", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, domain.MessageSystem, all[0].Type)
	assert.Equal(t, "three", all[3].Message)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID, "same-millisecond ids must stay ordered")
	}

	last, err := ch.History(ctx, "r1", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "two", last[0].Message)
}

func TestChannel_PostRejectsEmpty(t *testing.T) {
	ch := New(memory.New(), nil)
	_, err := ch.Post(context.Background(), "r1", domain.User{ID: "a"}, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestChannel_PostTruncatesOnCharacterBoundary(t *testing.T) {
	ctx := context.Background()
	ch := New(memory.New(), nil)
	user := domain.User{ID: "a", Name: "A", Role: domain.RoleStudent}

	m, err := ch.Post(ctx, "r1", user, "a"+strings.Repeat("ü", MaxMessageLen))
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(m.Message))
	assert.Equal(t, MaxMessageLen, utf8.RuneCountInString(m.Message))
	last, _ := utf8.DecodeLastRuneInString(m.Message)
	assert.Equal(t, 'ü', last)

	stored, err := ch.History(ctx, "r1", 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, m.Message, stored[0].Message)
}
