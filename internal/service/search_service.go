package service

import (
	"context"
	"fmt"

	"gemini-rag-be/internal/constant"
	"gemini-rag-be/internal/dto"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/pkg/metrics"
	"gemini-rag-be/internal/repository/contract"
	"gemini-rag-be/pkg/chatbot"
	"gemini-rag-be/pkg/filestore"
	"gemini-rag-be/pkg/rag/history"

	"github.com/google/uuid"
)

type ISearchService interface {
	Search(ctx context.Context, req *dto.SearchRequest) (*dto.SearchResponse, error)
}

type searchService struct {
	gateway     filestore.Gateway
	querier     chatbot.Querier
	sessionRepo contract.ISessionRepository
	projector   *history.Projector
	storeName   string
	logger      logger.ILogger
}

func NewSearchService(
	gateway filestore.Gateway,
	querier chatbot.Querier,
	sessionRepo contract.ISessionRepository,
	storeName string,
	log logger.ILogger,
) ISearchService {
	return &searchService{
		gateway:     gateway,
		querier:     querier,
		sessionRepo: sessionRepo,
		projector:   history.NewProjector(sessionRepo),
		storeName:   storeName,
		logger:      log,
	}
}

func (s *searchService) Search(ctx context.Context, req *dto.SearchRequest) (*dto.SearchResponse, error) {
	sessionId := req.SessionId
	if sessionId == "" {
		sessionId = uuid.NewString()
	}

	contents, err := s.projector.Project(ctx, sessionId, req.Query)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionId, err)
	}

	collection, err := s.gateway.FindOrCreateCollection(ctx, s.storeName)
	if err != nil {
		metrics.RemoteFailures.WithLabelValues("collection").Inc()
		return nil, fmt.Errorf("find or create store %s: %w", s.storeName, err)
	}

	s.logger.Info(constant.LogModuleSearch, "Querying store", map[string]interface{}{
		"session_id":    sessionId,
		"store":         collection.Name,
		"context_turns": len(contents) - 1,
		"filter":        req.Filter,
	})

	answer, err := s.querier.Query(ctx, chatbot.QueryRequest{
		SystemInstruction: constant.SearchSystemInstruction,
		Contents:          contents,
		StoreNames:        []string{collection.Name},
		MetadataFilter:    req.Filter,
	})
	if err != nil {
		metrics.RemoteFailures.WithLabelValues("query").Inc()
		s.logger.Error(constant.LogModuleSearch, "Query failed", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("query store: %w", err)
	}

	if err := s.sessionRepo.AppendTurn(ctx, sessionId, req.Query, answer.Text); err != nil {
		s.logger.Warn(constant.LogModuleSession, "Failed to record turn", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}

	return &dto.SearchResponse{
		Text:              answer.Text,
		GroundingMetadata: answer.GroundingMetadata,
		SessionId:         sessionId,
	}, nil
}
