package implementation

import (
	"context"
	"os"
	"testing"

	"gemini-rag-be/internal/config"
	"gemini-rag-be/internal/entity"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/repository/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormLedger_RoundTrip(t *testing.T) {
	dsn := os.Getenv("LEDGER_TEST_DSN")
	if dsn == "" {
		t.Skip("Skipping integration test: LEDGER_TEST_DSN not set")
	}

	ctx := context.Background()
	repo, err := NewLedgerRepository(config.LedgerConfig{DSN: dsn}, false, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, repo.Clear(ctx))

	require.NoError(t, repo.Append(ctx, sampleRecord("a", "intro.pdf")))
	require.NoError(t, repo.Append(ctx, sampleRecord("b", "intro.pdf")))

	records := repo.Load(ctx)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].LocalId)
	assert.Equal(t, "physics & <math>", records[0].CustomMetadata[0].StringValue)

	rec := records[1]
	rec.State = entity.DocumentStateActive
	rec.RemoteId = "fileSearchStores/abc/documents/b1"
	require.NoError(t, repo.Update(ctx, rec))

	rec.RemoteId = "fileSearchStores/abc/documents/other"
	assert.ErrorIs(t, repo.Update(ctx, rec), contract.ErrRemoteIdConflict)

	found, ok := repo.FindByRemoteId(ctx, "fileSearchStores/abc/documents/b1")
	require.True(t, ok)
	assert.Equal(t, "b", found.LocalId)

	require.NoError(t, repo.Save(ctx, repo.Load(ctx)))
	assert.Len(t, repo.FindByDisplayName(ctx, "intro.pdf"), 2)

	removed, err := repo.Remove(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", removed.LocalId)

	require.NoError(t, repo.Clear(ctx))
	assert.Empty(t, repo.Load(ctx))
}

func TestNewLedgerRepository_SelectsBackendByScheme(t *testing.T) {
	dir := t.TempDir()

	repo, err := NewLedgerRepository(config.LedgerConfig{Path: dir + "/ledger.json"}, false, logger.NewNopLogger())
	require.NoError(t, err)
	assert.IsType(t, &JSONLedgerRepository{}, repo)

	repo, err = NewLedgerRepository(config.LedgerConfig{DSN: "file://" + dir + "/other.json"}, false, logger.NewNopLogger())
	require.NoError(t, err)
	assert.IsType(t, &JSONLedgerRepository{}, repo)

	_, err = NewLedgerRepository(config.LedgerConfig{DSN: "mysql://localhost/db"}, false, logger.NewNopLogger())
	assert.Error(t, err)
}
