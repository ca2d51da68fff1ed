package models

import (
	"time"

	"github.com/google/uuid"
)

// RoundRobinCursor is the persisted per-rule pointer into the rule's target
// pool. It is advanced with an optimistic compare-and-swap on Version so
// that concurrent allocations never observe the same position twice, and it
// survives process restarts since multiple instances may run concurrently.
type RoundRobinCursor struct {
	RuleID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"rule_id"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	Version   int64     `gorm:"not null;default:0" json:"version"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (RoundRobinCursor) TableName() string {
	return "round_robin_cursors"
}

// NextPosition returns the position the cursor would hand out next for a
// pool of the given size.
func (c *RoundRobinCursor) NextPosition(poolSize int) int {
	if poolSize <= 0 {
		return 0
	}
	return (c.Position + 1) % poolSize
}
