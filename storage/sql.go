package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"swingline/core"

	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SQLStorage implements core.PositionStore on a SQL database via GORM.
type SQLStorage struct {
	db *gorm.DB
}

// FromSQLite creates a SQLite-backed position store.
func FromSQLite(path string) (*SQLStorage, error) {
	return FromSQL(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

// FromSQL creates a position store on any GORM dialector.
func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (*SQLStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&core.Position{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{db: db}, nil
}

// Create stores a newly opened position.
func (s *SQLStorage) Create(ctx context.Context, p *core.Position) error {
	if result := s.db.WithContext(ctx).Create(p); result.Error != nil {
		return fmt.Errorf("failed to create position: %w", result.Error)
	}
	return nil
}

func (s *SQLStorage) mutate(ctx context.Context, id string, fn func(p *core.Position) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p core.Position
		if result := tx.First(&p, "id = ?", id); result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", core.ErrPositionNotFound, id)
			}
			return result.Error
		}

		if err := fn(&p); err != nil {
			return err
		}

		if result := tx.Save(&p); result.Error != nil {
			return fmt.Errorf("failed to update position: %w", result.Error)
		}
		return nil
	})
}

// UpdateStop raises the stop level. Lower levels are silently ignored.
func (s *SQLStorage) UpdateStop(ctx context.Context, id string, level float64) error {
	return s.mutate(ctx, id, func(p *core.Position) error {
		if !p.IsOpen() {
			return core.ErrPositionClosed
		}
		p.RaiseStop(level)
		return nil
	})
}

// RecordPartialExit applies one target-leg fill.
func (s *SQLStorage) RecordPartialExit(ctx context.Context, id string, qty, price float64, target core.TargetLabel) error {
	return s.mutate(ctx, id, func(p *core.Position) error {
		if !p.IsOpen() {
			return core.ErrPositionClosed
		}
		if p.TargetFilled[target.Index()] {
			return nil
		}
		return p.RecordFill(p.UpdatedAt, price, qty, target)
	})
}

// Close marks the position closed. Closing an already closed position is
// an error.
func (s *SQLStorage) Close(ctx context.Context, id string, exitPrice float64, reason core.ExitReason) error {
	return s.mutate(ctx, id, func(p *core.Position) error {
		if !p.IsOpen() {
			return core.ErrPositionClosed
		}
		p.Status = core.StatusClosed
		p.ExitPrice = exitPrice
		p.ExitReason = reason
		p.ExitPending = false
		p.RemainingQty = 0
		return nil
	})
}

// Update rewrites the full position row.
func (s *SQLStorage) Update(ctx context.Context, p *core.Position) error {
	var existing core.Position
	if result := s.db.WithContext(ctx).First(&existing, "id = ?", p.ID); result.Error != nil {
		return fmt.Errorf("%w: %s", core.ErrPositionNotFound, p.ID)
	}
	if result := s.db.WithContext(ctx).Save(p); result.Error != nil {
		return fmt.Errorf("failed to update position: %w", result.Error)
	}
	return nil
}

// Positions returns positions matching all filters, ordered by entry date.
func (s *SQLStorage) Positions(ctx context.Context, filters ...core.PositionFilter) ([]*core.Position, error) {
	var positions []*core.Position

	result := s.db.WithContext(ctx).Order("entry_date").Find(&positions)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch positions: %w", result.Error)
	}

	return lo.Filter(positions, func(p *core.Position, _ int) bool {
		for _, filter := range filters {
			if !filter(*p) {
				return false
			}
		}
		return true
	}), nil
}

// CountOpenByTier returns the number of open positions in a tier.
func (s *SQLStorage) CountOpenByTier(ctx context.Context, tier core.Tier) (int, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&core.Position{}).
		Where("status = ? AND tier = ?", core.StatusOpen, tier).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count positions: %w", result.Error)
	}
	return int(count), nil
}

// Shutdown closes the database connection.
func (s *SQLStorage) Shutdown() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
