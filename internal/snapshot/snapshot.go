// Package snapshot persists the frames an operator asks to keep.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/team997coders/hatchtracker/internal/debug"
	"github.com/team997coders/hatchtracker/internal/logic/geometry"
	"github.com/team997coders/hatchtracker/internal/telemetry"
)

// Frame is everything worth keeping about one processed frame.
type Frame struct {
	Seq      uint64
	State    string
	PanDeg   int
	TiltDeg  int
	Rects    []geometry.Rectangle
	Targets  []geometry.Summary
	Selected *telemetry.Selected // nil when nothing is tracked
}

// Record is the stored form of a Frame.
type Record struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time      `json:"createdAt"`
	Seq         uint64         `json:"seq"`
	State       string         `json:"state" gorm:"size:32;index"`
	PanDeg      int            `json:"panDeg"`
	TiltDeg     int            `json:"tiltDeg"`
	TargetCount int            `json:"targetCount"`
	Rects       datatypes.JSON `json:"rects"`
	Targets     datatypes.JSON `json:"targets"`
	Selected    datatypes.JSON `json:"selected"`
}

func (*Record) TableName() string {
	return "snapshots"
}

// Rectangles decodes the stored rectangles.
func (r Record) Rectangles() ([]geometry.Rectangle, error) {
	var rects []geometry.Rectangle
	if err := json.Unmarshal(r.Rects, &rects); err != nil {
		return nil, fmt.Errorf("decode rects of snapshot %d: %w", r.ID, err)
	}
	return rects, nil
}

// SelectedTarget decodes the stored selected-target record. ok is false when
// nothing was tracked on the frame.
func (r Record) SelectedTarget() (sel telemetry.Selected, ok bool, err error) {
	if len(r.Selected) == 0 || string(r.Selected) == "null" {
		return telemetry.Selected{}, false, nil
	}
	if err := json.Unmarshal(r.Selected, &sel); err != nil {
		return telemetry.Selected{}, false, fmt.Errorf("decode selected of snapshot %d: %w", r.ID, err)
	}
	return sel, true, nil
}

// Store writes snapshots to a sqlite database.
type Store struct {
	db *gorm.DB
}

// Open opens or creates the database at path. An empty path or ":memory:"
// keeps everything in memory.
func Open(path string) (*Store, error) {
	inMemory := path == "" || path == ":memory:"
	dsn := path
	if inMemory {
		dsn = "file::memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	if inMemory {
		// Every connection to file::memory: is a separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("access snapshot db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate snapshot db: %w", err)
	}
	if inMemory {
		debug.Info("Snapshots kept in memory")
	} else {
		debug.Info("Snapshots written to %s", path)
	}
	return &Store{db: db}, nil
}

// Record stores f.
func (s *Store) Record(ctx context.Context, f Frame) error {
	rec, err := encode(f)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("save snapshot of frame %d: %w", f.Seq, err)
	}
	debug.Info("Snapshot %d saved (frame %d, %s, %d targets)", rec.ID, f.Seq, f.State, len(f.Targets))
	return nil
}

func encode(f Frame) (Record, error) {
	rects, err := json.Marshal(nonNil(f.Rects))
	if err != nil {
		return Record{}, fmt.Errorf("encode rects: %w", err)
	}
	targets, err := json.Marshal(nonNil(f.Targets))
	if err != nil {
		return Record{}, fmt.Errorf("encode targets: %w", err)
	}
	selected, err := json.Marshal(f.Selected)
	if err != nil {
		return Record{}, fmt.Errorf("encode selected: %w", err)
	}
	return Record{
		Seq:         f.Seq,
		State:       f.State,
		PanDeg:      f.PanDeg,
		TiltDeg:     f.TiltDeg,
		TargetCount: len(f.Targets),
		Rects:       datatypes.JSON(rects),
		Targets:     datatypes.JSON(targets),
		Selected:    datatypes.JSON(selected),
	}, nil
}

// nonNil stores empty lists as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Recent returns up to limit snapshots, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	var recs []Record
	err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return recs, nil
}

// Count returns the number of stored snapshots.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Record{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
