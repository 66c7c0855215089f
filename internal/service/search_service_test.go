package service

import (
	"context"
	"testing"
	"time"

	"gemini-rag-be/internal/constant"
	"gemini-rag-be/internal/dto"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/repository/memory"
	"gemini-rag-be/pkg/filestore"
	"gemini-rag-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSearchFixture(t *testing.T) (ISearchService, *fakeQuerier, *fakeGateway, *memory.SessionRepository) {
	t.Helper()
	gateway := newFakeGateway()
	querier := &fakeQuerier{answers: []string{"Light is electromagnetic radiation.", "Refraction bends light."}}
	sessions := memory.NewSessionRepository(5, 30*time.Minute, time.Hour, logger.NewNopLogger())
	svc := NewSearchService(gateway, querier, sessions, "gemini-rag-store", logger.NewNopLogger())
	return svc, querier, gateway, sessions
}

func TestSearchService_FollowUpCarriesContext(t *testing.T) {
	ctx := context.Background()
	svc, querier, _, _ := newSearchFixture(t)

	first, err := svc.Search(ctx, &dto.SearchRequest{Query: "What is light?", SessionId: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "s1", first.SessionId)
	assert.Equal(t, "Light is electromagnetic radiation.", first.Text)

	_, err = svc.Search(ctx, &dto.SearchRequest{Query: "And refraction?", SessionId: "s1", Filter: `book="physics"`})
	require.NoError(t, err)

	require.Len(t, querier.requests, 2)
	second := querier.requests[1]
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "What is light?"},
		{Role: llm.RoleAssistant, Content: "Light is electromagnetic radiation."},
		{Role: llm.RoleUser, Content: "And refraction?"},
	}, second.Contents)
	assert.Equal(t, []string{testCollectionName}, second.StoreNames)
	assert.Equal(t, `book="physics"`, second.MetadataFilter)
	assert.Equal(t, constant.SearchSystemInstruction, second.SystemInstruction)
}

func TestSearchService_GeneratesSessionId(t *testing.T) {
	ctx := context.Background()
	svc, querier, _, sessions := newSearchFixture(t)

	result, err := svc.Search(ctx, &dto.SearchRequest{Query: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionId)
	assert.JSONEq(t, `{"groundingChunks":[]}`, string(result.GroundingMetadata))
	assert.Len(t, querier.requests[0].Contents, 1)

	history, err := sessions.History(ctx, result.SessionId)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSearchService_QueryFailureLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	svc, querier, _, sessions := newSearchFixture(t)
	querier.err = &filestore.APIError{StatusCode: 503, Body: "overloaded"}

	_, err := svc.Search(ctx, &dto.SearchRequest{Query: "hello", SessionId: "s1"})
	require.ErrorIs(t, err, filestore.ErrRemoteUnavailable)

	history, err := sessions.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSearchService_CollectionFailure(t *testing.T) {
	svc, querier, gateway, _ := newSearchFixture(t)
	gateway.collectionErr = filestore.ErrRemoteUnavailable

	_, err := svc.Search(context.Background(), &dto.SearchRequest{Query: "hello"})
	require.ErrorIs(t, err, filestore.ErrRemoteUnavailable)
	assert.Empty(t, querier.requests)
}
