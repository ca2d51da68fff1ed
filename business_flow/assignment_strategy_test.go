package businessflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/linkcrm/lead-engine/config"
	"github.com/linkcrm/lead-engine/models"
	"github.com/linkcrm/lead-engine/repository"
	"github.com/linkcrm/lead-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCursorRepo is an in-memory RoundRobinCursorRepository with optional
// forced CAS failures to exercise the contention path.
type fakeCursorRepo struct {
	mu       sync.Mutex
	cursors  map[uuid.UUID]models.RoundRobinCursor
	failCAS  bool
	casCalls int
}

func newFakeCursorRepo() *fakeCursorRepo {
	return &fakeCursorRepo{cursors: make(map[uuid.UUID]models.RoundRobinCursor)}
}

func (f *fakeCursorRepo) Get(_ context.Context, ruleID uuid.UUID) (*models.RoundRobinCursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cursors[ruleID]
	if !ok {
		return nil, nil
	}
	copied := c
	return &copied, nil
}

func (f *fakeCursorRepo) Create(_ context.Context, cursor *models.RoundRobinCursor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors[cursor.RuleID] = *cursor
	return nil
}

func (f *fakeCursorRepo) CompareAndAdvance(_ context.Context, ruleID uuid.UUID, expectedVersion int64, newPosition int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.casCalls++
	if f.failCAS {
		return false, nil
	}
	c, ok := f.cursors[ruleID]
	if !ok || c.Version != expectedVersion {
		return false, nil
	}
	c.Position = newPosition
	c.Version++
	c.UpdatedAt = utils.UTCNow()
	f.cursors[ruleID] = c
	return true, nil
}

// fakeFollowupRepo only serves workload counts; everything else is unused
// by the strategy.
type fakeFollowupRepo struct {
	repository.FollowupRepository
	counts map[int64]int64
}

func (f *fakeFollowupRepo) CountOpenByUsers(_ context.Context, userIDs []int64, _ time.Time) (map[int64]int64, error) {
	out := make(map[int64]int64, len(userIDs))
	for _, id := range userIDs {
		out[id] = f.counts[id]
	}
	return out, nil
}

func newTestStrategy(cursorRepo repository.RoundRobinCursorRepository, counts map[int64]int64) AssignmentStrategy {
	return NewAssignmentStrategy(
		cursorRepo,
		&fakeFollowupRepo{counts: counts},
		config.AllocationConfig{WorkloadWindowDays: 30, CursorMaxRetries: 3},
	)
}

func TestSelectValidation(t *testing.T) {
	strategy := newTestStrategy(newFakeCursorRepo(), nil)
	ctx := context.Background()
	key := uuid.New()

	_, err := strategy.Select(ctx, key, models.AllocationMethodRoundRobin, nil, false)
	assert.ErrorIs(t, err, ErrNoEligibleTarget)

	_, err = strategy.Select(ctx, key, "first_come", []int64{1}, false)
	assert.ErrorIs(t, err, ErrUnknownAllocationMethod)
}

func TestSelectRoundRobin(t *testing.T) {
	ctx := context.Background()
	pool := []int64{11, 22, 33}

	t.Run("RotatesThroughPool", func(t *testing.T) {
		strategy := newTestStrategy(newFakeCursorRepo(), nil)
		key := uuid.New()

		var got []int64
		for i := 0; i < 4; i++ {
			user, err := strategy.Select(ctx, key, models.AllocationMethodRoundRobin, pool, false)
			require.NoError(t, err)
			got = append(got, user)
		}
		assert.Equal(t, []int64{11, 22, 33, 11}, got)
	})

	t.Run("DryRunDoesNotAdvance", func(t *testing.T) {
		strategy := newTestStrategy(newFakeCursorRepo(), nil)
		key := uuid.New()

		first, err := strategy.Select(ctx, key, models.AllocationMethodRoundRobin, pool, true)
		require.NoError(t, err)
		second, err := strategy.Select(ctx, key, models.AllocationMethodRoundRobin, pool, true)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		// A real run still starts at the head of the pool
		user, err := strategy.Select(ctx, key, models.AllocationMethodRoundRobin, pool, false)
		require.NoError(t, err)
		assert.Equal(t, int64(11), user)
	})

	t.Run("ContentionExhaustsRetryBudget", func(t *testing.T) {
		cursorRepo := newFakeCursorRepo()
		cursorRepo.failCAS = true
		strategy := newTestStrategy(cursorRepo, nil)
		key := uuid.New()

		_, err := strategy.Select(ctx, key, models.AllocationMethodRoundRobin, pool, false)
		assert.ErrorIs(t, err, ErrCursorContention)
		assert.Equal(t, 3, cursorRepo.casCalls)
	})

	t.Run("SurvivesPoolShrink", func(t *testing.T) {
		cursorRepo := newFakeCursorRepo()
		strategy := newTestStrategy(cursorRepo, nil)
		key := uuid.New()

		require.NoError(t, cursorRepo.Create(ctx, &models.RoundRobinCursor{
			RuleID:   key,
			Position: 5,
		}))

		user, err := strategy.Select(ctx, key, models.AllocationMethodRoundRobin, pool, false)
		require.NoError(t, err)
		assert.Equal(t, int64(11), user)
	})
}

func TestSelectRandom(t *testing.T) {
	strategy := newTestStrategy(newFakeCursorRepo(), nil)
	pool := []int64{11, 22, 33}

	members := map[int64]bool{11: true, 22: true, 33: true}
	for i := 0; i < 20; i++ {
		user, err := strategy.Select(context.Background(), uuid.New(), models.AllocationMethodRandom, pool, false)
		require.NoError(t, err)
		assert.True(t, members[user])
	}
}

func TestSelectWorkload(t *testing.T) {
	ctx := context.Background()
	pool := []int64{11, 22, 33}

	t.Run("FewestOpenLeadsWins", func(t *testing.T) {
		strategy := newTestStrategy(newFakeCursorRepo(), map[int64]int64{11: 5, 22: 1, 33: 2})

		user, err := strategy.Select(ctx, uuid.New(), models.AllocationMethodWorkload, pool, false)
		require.NoError(t, err)
		assert.Equal(t, int64(22), user)
	})

	t.Run("TiesRotateViaCursor", func(t *testing.T) {
		cursorRepo := newFakeCursorRepo()
		strategy := newTestStrategy(cursorRepo, map[int64]int64{11: 2, 22: 2, 33: 2})
		key := uuid.New()

		first, err := strategy.Select(ctx, key, models.AllocationMethodWorkload, pool, false)
		require.NoError(t, err)
		assert.Equal(t, int64(11), first)

		second, err := strategy.Select(ctx, key, models.AllocationMethodWorkload, pool, false)
		require.NoError(t, err)
		assert.Equal(t, int64(22), second)
	})

	t.Run("DryRunLeavesCursorAlone", func(t *testing.T) {
		cursorRepo := newFakeCursorRepo()
		strategy := newTestStrategy(cursorRepo, map[int64]int64{11: 0, 22: 0, 33: 0})
		key := uuid.New()

		first, err := strategy.Select(ctx, key, models.AllocationMethodWorkload, pool, true)
		require.NoError(t, err)
		second, err := strategy.Select(ctx, key, models.AllocationMethodWorkload, pool, true)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}
