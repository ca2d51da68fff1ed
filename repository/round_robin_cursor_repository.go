package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/linkcrm/lead-engine/models"
	"github.com/linkcrm/lead-engine/utils"
	"gorm.io/gorm"
)

// RoundRobinCursorRepositoryImpl implements the RoundRobinCursorRepository interface
type RoundRobinCursorRepositoryImpl struct {
	DB *gorm.DB
}

// NewRoundRobinCursorRepository creates a new round-robin cursor repository
func NewRoundRobinCursorRepository(db *gorm.DB) RoundRobinCursorRepository {
	return &RoundRobinCursorRepositoryImpl{DB: db}
}

func (r *RoundRobinCursorRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.DB
}

// Get retrieves the cursor for a rule
func (r *RoundRobinCursorRepositoryImpl) Get(ctx context.Context, ruleID uuid.UUID) (*models.RoundRobinCursor, error) {
	db := r.getDB(ctx)

	var cursor models.RoundRobinCursor
	err := db.Where("rule_id = ?", ruleID).Last(&cursor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find cursor for rule %s: %w", ruleID, err)
	}

	return &cursor, nil
}

// Create inserts a fresh cursor. Position -1 means nothing handed out yet,
// so the first advance lands on index 0.
func (r *RoundRobinCursorRepositoryImpl) Create(ctx context.Context, cursor *models.RoundRobinCursor) error {
	db := r.getDB(ctx)

	err := db.Create(cursor).Error
	if err != nil {
		return fmt.Errorf("failed to create cursor for rule %s: %w", cursor.RuleID, err)
	}

	return nil
}

// CompareAndAdvance performs the atomic read-modify-write: the UPDATE is
// guarded by the version observed at read time, so two concurrent
// allocations can never both claim the same position. Callers retry a
// bounded number of times on a lost race.
func (r *RoundRobinCursorRepositoryImpl) CompareAndAdvance(ctx context.Context, ruleID uuid.UUID, expectedVersion int64, newPosition int) (bool, error) {
	db := r.getDB(ctx)

	result := db.Model(&models.RoundRobinCursor{}).
		Where("rule_id = ? AND version = ?", ruleID, expectedVersion).
		Updates(map[string]any{
			"position":   newPosition,
			"version":    expectedVersion + 1,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to advance cursor for rule %s: %w", ruleID, result.Error)
	}

	return result.RowsAffected == 1, nil
}
