// Package writing keeps one live text document per participant and room.
package writing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
)

type Channel struct {
	store core.Store
	now   func() time.Time
}

func New(store core.Store, now func() time.Time) *Channel {
	if now == nil {
		now = time.Now
	}
	return &Channel{store: store, now: now}
}

// Upsert creates the writer's document on first call and replaces its content
// afterwards. Word count is always recomputed from content.
func (c *Channel) Upsert(ctx context.Context, roomID domain.RoomID, user domain.User, content string) (domain.Writing, error) {
	id := domain.WritingIDFor(roomID, user.ID)
	now := c.now().UTC()
	words := domain.CountWords(content)

	err := c.store.Update(ctx, core.Writings, string(id), core.Fields{
		"content":       content,
		"wordCount":     words,
		"lastUpdatedAt": now,
	})
	if errors.Is(err, domain.ErrNotFound) {
		err = c.create(ctx, domain.Writing{
			ID:            id,
			RoomID:        roomID,
			UserID:        user.ID,
			UserName:      user.Name,
			Content:       content,
			WordCount:     words,
			CreatedAt:     now,
			LastUpdatedAt: now,
		})
	}
	if err != nil {
		return domain.Writing{}, fmt.Errorf("writing: upsert %s: %w", id, err)
	}
	return c.Get(ctx, id)
}

func (c *Channel) create(ctx context.Context, w domain.Writing) error {
	fields, err := core.EncodeFields(w)
	if err != nil {
		return err
	}
	err = c.store.Create(ctx, core.Writings, string(w.ID), fields)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// lost a race with another tab of the same user; the update path applies
		return c.store.Update(ctx, core.Writings, string(w.ID), core.Fields{
			"content":       w.Content,
			"wordCount":     w.WordCount,
			"lastUpdatedAt": w.LastUpdatedAt,
		})
	}
	if err == nil {
		log.Debug().Str("module", "app.writing").Str("writing", string(w.ID)).Msg("created")
	}
	return err
}

// SetPublic flips visibility to students. Callers enforce who may do it.
func (c *Channel) SetPublic(ctx context.Context, id domain.WritingID, isPublic bool) (domain.Writing, error) {
	if err := c.store.Update(ctx, core.Writings, string(id), core.Fields{"isPublic": isPublic}); err != nil {
		return domain.Writing{}, fmt.Errorf("writing: set public %s: %w", id, err)
	}
	return c.Get(ctx, id)
}

func (c *Channel) Get(ctx context.Context, id domain.WritingID) (domain.Writing, error) {
	doc, err := c.store.Get(ctx, core.Writings, string(id))
	if err != nil {
		return domain.Writing{}, fmt.Errorf("writing: get %s: %w", id, err)
	}
	return core.Decode[domain.Writing](doc)
}

// ListByRoom returns all writings of the room regardless of viewer.
func (c *Channel) ListByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Writing, error) {
	docs, err := c.store.Query(ctx, core.Writings, core.Where("roomId", roomID))
	if err != nil {
		return nil, fmt.Errorf("writing: list %s: %w", roomID, err)
	}
	out := core.DecodeAll[domain.Writing](docs)
	SortByCreated(out)
	return out, nil
}

func SortByCreated(rows []domain.Writing) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
}

// Visible filters rows for a viewer.
func Visible(role domain.Role, viewer domain.UserID, rows []domain.Writing) []domain.Writing {
	return domain.VisibleWritings(role, viewer, rows)
}
