// Package chat appends text and system messages to a room.
package chat

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
)

// MaxMessageLen caps a single chat message, in characters.
const MaxMessageLen = 2000

var ErrEmptyMessage = errors.New("empty message")

type Channel struct {
	store core.Store
	now   func() time.Time

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

func New(store core.Store, now func() time.Time) *Channel {
	if now == nil {
		now = time.Now
	}
	return &Channel{store: store, now: now, entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (c *Channel) newID(t time.Time) domain.MessageID {
	c.entropyMu.Lock()
	defer c.entropyMu.Unlock()
	return domain.MessageID(ulid.MustNew(ulid.Timestamp(t), c.entropy).String())
}

// Post appends a text message from user.
func (c *Channel) Post(ctx context.Context, roomID domain.RoomID, user domain.User, text string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, fmt.Errorf("chat: post: %w", ErrEmptyMessage)
	}
	if utf8.RuneCountInString(text) > MaxMessageLen {
		text = string([]rune(text)[:MaxMessageLen])
	}
	return c.append(ctx, domain.Message{
		RoomID:   roomID,
		UserID:   user.ID,
		UserName: user.Name,
		Message:  text,
		Type:     domain.MessageText,
	})
}

// Announce appends a system message such as "X joined".
func (c *Channel) Announce(ctx context.Context, roomID domain.RoomID, text string) (domain.Message, error) {
	return c.append(ctx, domain.Message{
		RoomID:   roomID,
		UserName: "system",
		Message:  text,
		Type:     domain.MessageSystem,
	})
}

func (c *Channel) append(ctx context.Context, m domain.Message) (domain.Message, error) {
	now := c.now().UTC()
	m.ID = c.newID(now)
	m.Timestamp = now
	fields, err := core.EncodeFields(m)
	if err != nil {
		return domain.Message{}, fmt.Errorf("chat: encode: %w", err)
	}
	if err := c.store.Create(ctx, core.Messages, string(m.ID), fields); err != nil {
		return domain.Message{}, fmt.Errorf("chat: append %s: %w", m.RoomID, err)
	}
	log.Debug().Str("module", "app.chat").Str("room", string(m.RoomID)).Str("type", string(m.Type)).Msg("message appended")
	return m, nil
}

// History returns the last limit messages in time order. limit <= 0 means all.
func (c *Channel) History(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	docs, err := c.store.Query(ctx, core.Messages, core.Where("roomId", roomID))
	if err != nil {
		return nil, fmt.Errorf("chat: history %s: %w", roomID, err)
	}
	out := core.DecodeAll[domain.Message](docs)
	SortByTime(out)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// SortByTime orders by timestamp, then id (ULIDs sort lexically by time).
func SortByTime(rows []domain.Message) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Timestamp.Equal(rows[j].Timestamp) {
			return rows[i].Timestamp.Before(rows[j].Timestamp)
		}
		return rows[i].ID < rows[j].ID
	})
}
