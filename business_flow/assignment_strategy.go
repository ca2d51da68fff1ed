package businessflow

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/linkcrm/lead-engine/config"
	"github.com/linkcrm/lead-engine/models"
	"github.com/linkcrm/lead-engine/repository"
	"github.com/linkcrm/lead-engine/utils"
)

// DefaultPoolCursorID keys the round-robin cursor of the fallback pool,
// which has no rule row of its own.
var DefaultPoolCursorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// AssignmentStrategy picks one user from an eligible pool. The pool is the
// rule's target list already reduced to active profiles, order preserved.
// A dry run peeks without advancing any cursor.
type AssignmentStrategy interface {
	Select(ctx context.Context, cursorKey uuid.UUID, method string, pool []int64, dryRun bool) (int64, error)
}

// AssignmentStrategyImpl implements AssignmentStrategy
type AssignmentStrategyImpl struct {
	cursorRepo   repository.RoundRobinCursorRepository
	followupRepo repository.FollowupRepository
	allocCfg     config.AllocationConfig
}

// NewAssignmentStrategy constructs an AssignmentStrategy
func NewAssignmentStrategy(
	cursorRepo repository.RoundRobinCursorRepository,
	followupRepo repository.FollowupRepository,
	allocCfg config.AllocationConfig,
) AssignmentStrategy {
	return &AssignmentStrategyImpl{
		cursorRepo:   cursorRepo,
		followupRepo: followupRepo,
		allocCfg:     allocCfg,
	}
}

func (s *AssignmentStrategyImpl) Select(ctx context.Context, cursorKey uuid.UUID, method string, pool []int64, dryRun bool) (int64, error) {
	if len(pool) == 0 {
		return 0, ErrNoEligibleTarget
	}

	switch method {
	case models.AllocationMethodRoundRobin:
		return s.selectRoundRobin(ctx, cursorKey, pool, dryRun)
	case models.AllocationMethodRandom:
		return pool[rand.Intn(len(pool))], nil
	case models.AllocationMethodWorkload:
		return s.selectWorkload(ctx, cursorKey, pool, dryRun)
	default:
		return 0, ErrUnknownAllocationMethod
	}
}

// selectRoundRobin advances the persisted cursor with an optimistic CAS.
// Losing the race means another allocation took the position; re-read and
// retry up to the configured budget.
func (s *AssignmentStrategyImpl) selectRoundRobin(ctx context.Context, cursorKey uuid.UUID, pool []int64, dryRun bool) (int64, error) {
	retries := s.allocCfg.CursorMaxRetries
	if retries <= 0 {
		retries = utils.DefaultCursorMaxRetries
	}

	for attempt := 0; attempt < retries; attempt++ {
		cursor, err := s.cursorRepo.Get(ctx, cursorKey)
		if err != nil {
			return 0, err
		}
		if cursor == nil {
			// Position -1 makes the first advance land on index 0
			cursor = &models.RoundRobinCursor{
				RuleID:    cursorKey,
				Position:  -1,
				Version:   0,
				UpdatedAt: utils.UTCNow(),
			}
			if err := s.cursorRepo.Create(ctx, cursor); err != nil {
				// Concurrent creation; re-read on the next attempt
				cursorRetriesTotal.Inc()
				continue
			}
		}

		next := cursor.NextPosition(len(pool))
		if dryRun {
			return pool[next], nil
		}

		ok, err := s.cursorRepo.CompareAndAdvance(ctx, cursorKey, cursor.Version, next)
		if err != nil {
			return 0, err
		}
		if ok {
			return pool[next], nil
		}
		cursorRetriesTotal.Inc()
	}

	return 0, ErrCursorContention
}

// selectWorkload assigns to the pool member with the fewest open leads in
// the trailing window. Ties go to the candidate closest after the cursor in
// pool order, and the cursor is advanced to the winner so repeated ties
// rotate.
func (s *AssignmentStrategyImpl) selectWorkload(ctx context.Context, cursorKey uuid.UUID, pool []int64, dryRun bool) (int64, error) {
	windowDays := s.allocCfg.WorkloadWindowDays
	if windowDays <= 0 {
		windowDays = utils.DefaultWorkloadWindowDays
	}
	since := utils.UTCNowAdd(-time.Duration(windowDays) * 24 * time.Hour)

	counts, err := s.followupRepo.CountOpenByUsers(ctx, pool, since)
	if err != nil {
		return 0, err
	}

	start := 0
	cursor, err := s.cursorRepo.Get(ctx, cursorKey)
	if err != nil {
		return 0, err
	}
	if cursor != nil {
		start = cursor.NextPosition(len(pool))
	}

	winnerIdx := start
	minCount := counts[pool[start]]
	for i := 1; i < len(pool); i++ {
		idx := (start + i) % len(pool)
		if c := counts[pool[idx]]; c < minCount {
			minCount = c
			winnerIdx = idx
		}
	}

	if !dryRun {
		if cursor == nil {
			cursor = &models.RoundRobinCursor{
				RuleID:    cursorKey,
				Position:  winnerIdx,
				Version:   0,
				UpdatedAt: utils.UTCNow(),
			}
			if err := s.cursorRepo.Create(ctx, cursor); err != nil {
				cursorRetriesTotal.Inc()
			}
		} else if cursor.Position != winnerIdx {
			// Best effort; workload counts dominate the next decision anyway
			if ok, err := s.cursorRepo.CompareAndAdvance(ctx, cursorKey, cursor.Version, winnerIdx); err == nil && !ok {
				cursorRetriesTotal.Inc()
			}
		}
	}

	return pool[winnerIdx], nil
}
