package redisstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gemini-rag-be/internal/entity"
	"gemini-rag-be/internal/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func setupTestRepository(t *testing.T) (*SessionRepository, *miniredis.Miniredis, *testClock) {
	t.Helper()
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &testClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	repo := NewSessionRepository(client, 5, 30*time.Minute, logger.NewNopLogger()).WithClock(clock.Now)
	return repo, mr, clock
}

func TestRedisSessionRepository_AppendKeepsLastPairs(t *testing.T) {
	ctx := context.Background()
	repo, mr, _ := setupTestRepository(t)

	for i := 0; i < 7; i++ {
		require.NoError(t, repo.AppendTurn(ctx, "s1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
	}

	history, err := repo.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 10)
	assert.Equal(t, "q2", history[0].Content)
	assert.Equal(t, entity.TurnRoleAssistant, history[9].Role)

	assert.True(t, mr.Exists("chat_session:s1"))
	assert.Equal(t, 30*time.Minute, mr.TTL("chat_session:s1"))
}

func TestRedisSessionRepository_ExpiryAndSweep(t *testing.T) {
	ctx := context.Background()
	repo, _, clock := setupTestRepository(t)

	require.NoError(t, repo.AppendTurn(ctx, "old", "q", "a"))
	clock.now = clock.now.Add(15 * time.Minute)
	_, err := repo.GetOrCreate(ctx, "fresh")
	require.NoError(t, err)
	clock.now = clock.now.Add(20 * time.Minute)

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
}

func TestRedisSessionRepository_TTLRemovesKey(t *testing.T) {
	ctx := context.Background()
	repo, mr, _ := setupTestRepository(t)

	require.NoError(t, repo.AppendTurn(ctx, "s1", "q", "a"))
	mr.FastForward(31 * time.Minute)

	assert.False(t, mr.Exists("chat_session:s1"))
	history, err := repo.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRedisSessionRepository_Clear(t *testing.T) {
	ctx := context.Background()
	repo, mr, _ := setupTestRepository(t)

	require.NoError(t, repo.AppendTurn(ctx, "s1", "q", "a"))
	require.NoError(t, repo.Clear(ctx, "s1"))
	require.NoError(t, repo.Clear(ctx, "never-existed"))
	assert.False(t, mr.Exists("chat_session:s1"))
}

func TestRedisSessionRepository_SweepSparesSessionRefreshedMidSweep(t *testing.T) {
	ctx := context.Background()
	repo, mr, clock := setupTestRepository(t)

	require.NoError(t, repo.AppendTurn(ctx, "revived", "q1", "a1"))
	require.NoError(t, repo.AppendTurn(ctx, "stale", "q1", "a1"))
	clock.now = clock.now.Add(31 * time.Minute)

	// both look expired to the scan; one gets a new turn before the deletes
	repo.afterScan = func() {
		require.NoError(t, repo.AppendTurn(ctx, "revived", "q2", "a2"))
	}

	removed, err := repo.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.False(t, mr.Exists("chat_session:stale"))
	require.True(t, mr.Exists("chat_session:revived"))

	history, err := repo.History(ctx, "revived")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "q2", history[0].Content)
}
