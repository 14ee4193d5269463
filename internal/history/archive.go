// Package history keeps a durable copy of rooms after they end. The real-time
// store only holds soft-deleted rows; this is the queryable record.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
)

// Archive is a HistorySink backed by a relational database.
type Archive struct {
	db *gorm.DB
}

var _ core.HistorySink = (*Archive)(nil)

// Open connects to the SQLite file at path (":memory:" for tests) and migrates.
func Open(path string, debug bool) (*Archive, error) {
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// sqlite serializes writers anyway; one connection also keeps :memory: coherent
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db)
}

func New(db *gorm.DB) (*Archive, error) {
	if err := db.AutoMigrate(&RoomRecord{}, &ParticipantRecord{}, &WritingRecord{}, &MessageRecord{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Archive{db: db}, nil
}

// Archive stores the final state of a room. A room is written once; later
// calls for the same id are no-ops.
func (a *Archive) Archive(ctx context.Context, state domain.RoomState) error {
	if state.Room.ID == "" {
		return fmt.Errorf("history: archive: %w", domain.ErrInvalidRoom)
	}
	rec := roomRecord(state)
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&RoomRecord{}).Where("id = ?", rec.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrAlreadyExists
		}
		return tx.Create(&rec).Error
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		log.Debug().Str("module", "history").Str("room", rec.ID).Msg("already archived")
		return nil
	}
	if err != nil {
		return fmt.Errorf("history: archive %s: %w", rec.ID, err)
	}
	log.Info().Str("module", "history").Str("room", rec.ID).
		Int("participants", len(rec.Participants)).
		Int("writings", len(rec.Writings)).
		Int("messages", len(rec.Messages)).
		Msg("room archived")
	return nil
}

// Room loads an archived room with all its rows.
func (a *Archive) Room(ctx context.Context, id domain.RoomID) (domain.RoomState, error) {
	var rec RoomRecord
	err := a.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at asc") }).
		Preload("Writings", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		First(&rec, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.RoomState{}, fmt.Errorf("history: room %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.RoomState{}, fmt.Errorf("history: room %s: %w", id, err)
	}
	return rec.state(), nil
}

// Rooms lists archived rooms, most recently ended first. Optionally limited to a host.
func (a *Archive) Rooms(ctx context.Context, hostID domain.UserID, limit int) ([]domain.Room, error) {
	if limit <= 0 {
		limit = 50
	}
	q := a.db.WithContext(ctx).Order("ended_at desc").Limit(limit)
	if hostID != "" {
		q = q.Where("host_id = ?", string(hostID))
	}
	var recs []RoomRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	out := make([]domain.Room, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.room())
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
