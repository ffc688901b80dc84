// Package archive keeps an audit trail of committed draws in Postgres. It is
// an optional broadcast publisher: the in-memory lobby stays authoritative.
package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/DoyleJ11/santa-draw-backend/internal/engine"
	"github.com/DoyleJ11/santa-draw-backend/internal/lobby"
)

// DrawRecord is one committed assignment.
type DrawRecord struct {
	gorm.Model
	Round         string `gorm:"index;not null"`
	Version       int    `gorm:"not null"`
	Turn          int    `gorm:"not null"`
	DrawerID      string `gorm:"not null"`
	GifteeID      string `gorm:"not null"`
	AdminOverride bool   `gorm:"not null;default:false"`
}

// Recorder writes draw-executed events. Every reset starts a new round.
type Recorder struct {
	db  *gorm.DB
	log *zap.Logger

	mu    sync.Mutex
	round string
}

// Open connects to dsn, retrying a few times while the database comes up.
func Open(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	const maxRetries = 3
	const retryInterval = 2 * time.Second

	var err error
	for i := 0; i <= maxRetries; i++ {
		var db *gorm.DB
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			return db, nil
		}
		logger.Warn("database connection retry", zap.Int("retry", i), zap.Error(err))
		time.Sleep(retryInterval)
	}
	return nil, fmt.Errorf("connect database: %w", err)
}

func NewRecorder(db *gorm.DB, logger *zap.Logger) (*Recorder, error) {
	if err := db.AutoMigrate(&DrawRecord{}); err != nil {
		return nil, fmt.Errorf("migrate draw records: %w", err)
	}
	return &Recorder{db: db, log: logger, round: uuid.NewString()}, nil
}

func (r *Recorder) Publish(ctx context.Context, snap lobby.Snapshot) error {
	r.mu.Lock()
	if snap.Event != nil && snap.Event.Type == engine.EvtGameReset {
		r.round = uuid.NewString()
		r.log.Info("archive round started", zap.String("round", r.round))
	}
	round := r.round
	r.mu.Unlock()

	rec, ok := recordFor(round, snap)
	if !ok {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("archive draw %s: %w", rec.DrawerID, err)
	}
	return nil
}

// Round returns the draws of the current round in commit order.
func (r *Recorder) Round(ctx context.Context) ([]DrawRecord, error) {
	r.mu.Lock()
	round := r.round
	r.mu.Unlock()

	var recs []DrawRecord
	err := r.db.WithContext(ctx).
		Where("round = ?", round).
		Order("version asc").
		Find(&recs).Error
	return recs, err
}

func recordFor(round string, snap lobby.Snapshot) (DrawRecord, bool) {
	ev := snap.Event
	if ev == nil || ev.Type != engine.EvtDrawExecuted || ev.Result == nil {
		return DrawRecord{}, false
	}
	return DrawRecord{
		Round:         round,
		Version:       snap.Version,
		Turn:          ev.State.CurrentDrawerIndex - 1,
		DrawerID:      ev.Result.DrawerID,
		GifteeID:      ev.Result.GifteeID,
		AdminOverride: ev.AdminOverride,
	}, true
}
