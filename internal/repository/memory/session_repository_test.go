package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gemini-rag-be/internal/entity"
	"gemini-rag-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRepo(t *testing.T) (*SessionRepository, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	repo := NewSessionRepository(5, 30*time.Minute, time.Hour, logger.NewNopLogger()).WithClock(clock.Now)
	return repo, clock
}

func TestSessionRepository_HistoryIsBounded(t *testing.T) {
	ctx := context.Background()

	for _, k := range []int{1, 3, 5, 6, 9} {
		t.Run(fmt.Sprintf("%d exchanges", k), func(t *testing.T) {
			repo, _ := newTestRepo(t)
			for i := 0; i < k; i++ {
				require.NoError(t, repo.AppendTurn(ctx, "s1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
			}

			history, err := repo.History(ctx, "s1")
			require.NoError(t, err)

			expected := 2 * k
			if expected > 10 {
				expected = 10
			}
			require.Len(t, history, expected)

			first := k - expected/2
			assert.Equal(t, fmt.Sprintf("q%d", first), history[0].Content)
			assert.Equal(t, fmt.Sprintf("a%d", k-1), history[len(history)-1].Content)
			for i, turn := range history {
				if i%2 == 0 {
					assert.Equal(t, entity.TurnRoleUser, turn.Role)
				} else {
					assert.Equal(t, entity.TurnRoleAssistant, turn.Role)
				}
			}
		})
	}
}

func TestSessionRepository_ExpiredSessionIsAbsent(t *testing.T) {
	ctx := context.Background()
	repo, clock := newTestRepo(t)

	require.NoError(t, repo.AppendTurn(ctx, "old", "q", "a"))
	clock.Advance(20 * time.Minute)
	require.NoError(t, repo.AppendTurn(ctx, "fresh", "q", "a"))
	clock.Advance(10 * time.Minute)

	// "old" is exactly at the timeout and no longer visible
	history, err := repo.History(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, history)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStats{TotalSessions: 2, ActiveSessions: 1}, stats)

	removed, err := repo.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStats{TotalSessions: 1, ActiveSessions: 1}, stats)

	history, err = repo.History(ctx, "fresh")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSessionRepository_ExpiredSessionRestartsEmpty(t *testing.T) {
	ctx := context.Background()
	repo, clock := newTestRepo(t)

	require.NoError(t, repo.AppendTurn(ctx, "s1", "q1", "a1"))
	clock.Advance(31 * time.Minute)
	require.NoError(t, repo.AppendTurn(ctx, "s1", "q2", "a2"))

	history, err := repo.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "q2", history[0].Content)
}

func TestSessionRepository_GetOrCreateRefreshesActivity(t *testing.T) {
	ctx := context.Background()
	repo, clock := newTestRepo(t)

	created, err := repo.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, created.History)

	clock.Advance(25 * time.Minute)
	_, err = repo.GetOrCreate(ctx, "s1")
	require.NoError(t, err)

	clock.Advance(25 * time.Minute)
	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveSessions)
}

func TestSessionRepository_HistoryIsACopyAndClear(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	require.NoError(t, repo.AppendTurn(ctx, "s1", "q", "a"))

	history, _ := repo.History(ctx, "s1")
	history[0].Content = "mutated"

	again, _ := repo.History(ctx, "s1")
	assert.Equal(t, "q", again[0].Content)

	require.NoError(t, repo.Clear(ctx, "s1"))
	require.NoError(t, repo.Clear(ctx, "missing"))
	again, _ = repo.History(ctx, "s1")
	assert.Empty(t, again)
}

func TestSessionRepository_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.AppendTurn(ctx, "s1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
			_, _ = repo.History(ctx, "s1")
			_, _ = repo.SweepExpired(ctx)
		}(i)
	}
	wg.Wait()

	history, err := repo.History(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, history, 10)
}
