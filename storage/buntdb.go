// Package storage provides the position store backends: an embedded
// BuntDB document store and a SQL store via GORM.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"swingline/core"

	"github.com/tidwall/buntdb"
)

// BuntStorage implements core.PositionStore on BuntDB, storing each
// position as a JSON document keyed by its ID.
type BuntStorage struct {
	db *buntdb.DB
}

// FromMemory creates an in-memory position store.
func FromMemory() (*BuntStorage, error) {
	return NewBuntStorage(":memory:")
}

// FromFile creates a file-backed position store.
func FromFile(file string) (*BuntStorage, error) {
	return NewBuntStorage(file)
}

// NewBuntStorage opens a BuntDB position store.
func NewBuntStorage(sourceFile string) (*BuntStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	if err := db.CreateIndex("entry_index", "*", buntdb.IndexJSON("entry_date")); err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &BuntStorage{db: db}, nil
}

// Create stores a newly opened position.
func (b *BuntStorage) Create(_ context.Context, p *core.Position) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		content, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal position: %w", err)
		}
		if _, _, err := tx.Set(p.ID, string(content), nil); err != nil {
			return fmt.Errorf("failed to store position: %w", err)
		}
		return nil
	})
}

// mutate loads, transforms and rewrites one position inside a single
// transaction so partial updates can never be observed.
func (b *BuntStorage) mutate(id string, fn func(p *core.Position) error) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		value, err := tx.Get(id)
		if err != nil {
			return fmt.Errorf("%w: %s", core.ErrPositionNotFound, id)
		}

		var p core.Position
		if err := json.Unmarshal([]byte(value), &p); err != nil {
			return fmt.Errorf("failed to unmarshal position: %w", err)
		}

		if err := fn(&p); err != nil {
			return err
		}

		content, err := json.Marshal(&p)
		if err != nil {
			return fmt.Errorf("failed to marshal position: %w", err)
		}
		if _, _, err := tx.Set(id, string(content), nil); err != nil {
			return fmt.Errorf("failed to update position: %w", err)
		}
		return nil
	})
}

// UpdateStop raises the stop level. Lower levels are silently ignored.
func (b *BuntStorage) UpdateStop(_ context.Context, id string, level float64) error {
	return b.mutate(id, func(p *core.Position) error {
		if !p.IsOpen() {
			return core.ErrPositionClosed
		}
		p.RaiseStop(level)
		return nil
	})
}

// RecordPartialExit applies one target-leg fill.
func (b *BuntStorage) RecordPartialExit(_ context.Context, id string, qty, price float64, target core.TargetLabel) error {
	return b.mutate(id, func(p *core.Position) error {
		if !p.IsOpen() {
			return core.ErrPositionClosed
		}
		if p.Fills != nil && p.TargetFilled[target.Index()] {
			return nil // leg already recorded through Update
		}
		return p.RecordFill(p.UpdatedAt, price, qty, target)
	})
}

// Close marks the position closed. Closing an already closed position is
// an error.
func (b *BuntStorage) Close(_ context.Context, id string, exitPrice float64, reason core.ExitReason) error {
	return b.mutate(id, func(p *core.Position) error {
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

// Update rewrites the full position document.
func (b *BuntStorage) Update(_ context.Context, p *core.Position) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(p.ID); err != nil {
			return fmt.Errorf("%w: %s", core.ErrPositionNotFound, p.ID)
		}
		content, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal position: %w", err)
		}
		if _, _, err := tx.Set(p.ID, string(content), nil); err != nil {
			return fmt.Errorf("failed to update position: %w", err)
		}
		return nil
	})
}

// Positions returns positions matching all filters, ordered by entry date.
func (b *BuntStorage) Positions(_ context.Context, filters ...core.PositionFilter) ([]*core.Position, error) {
	positions := make([]*core.Position, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("entry_index", func(_, value string) bool {
			var p core.Position
			if err := json.Unmarshal([]byte(value), &p); err != nil {
				return true
			}
			for _, filter := range filters {
				if !filter(p) {
					return true
				}
			}
			positions = append(positions, &p)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate over positions: %w", err)
	}

	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].EntryDate.Before(positions[j].EntryDate)
	})
	return positions, nil
}

// CountOpenByTier returns the number of open positions in a tier.
func (b *BuntStorage) CountOpenByTier(ctx context.Context, tier core.Tier) (int, error) {
	positions, err := b.Positions(ctx, core.OpenOnly(), core.WithTier(tier))
	if err != nil {
		return 0, err
	}
	return len(positions), nil
}

// Shutdown closes the database.
func (b *BuntStorage) Shutdown() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
