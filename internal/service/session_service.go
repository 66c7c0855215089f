package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gemini-rag-be/internal/constant"
	"gemini-rag-be/internal/dto"
	"gemini-rag-be/internal/entity"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/pkg/metrics"
	"gemini-rag-be/internal/repository/contract"
)

type ISessionService interface {
	History(ctx context.Context, sessionId string) (*dto.SessionHistoryResponse, error)
	Clear(ctx context.Context, sessionId string) error
	Stats(ctx context.Context) (entity.SessionStats, error)
	Sweep(ctx context.Context) (int, error)

	// StartSweeper removes expired sessions every interval until Stop is called.
	StartSweeper(interval time.Duration)
	Stop()
}

type sessionService struct {
	sessionRepo contract.ISessionRepository
	logger      logger.ILogger

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewSessionService(sessionRepo contract.ISessionRepository, log logger.ILogger) ISessionService {
	return &sessionService{
		sessionRepo: sessionRepo,
		logger:      log,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

func (s *sessionService) History(ctx context.Context, sessionId string) (*dto.SessionHistoryResponse, error) {
	turns, err := s.sessionRepo.History(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	return &dto.SessionHistoryResponse{SessionId: sessionId, History: turns}, nil
}

func (s *sessionService) Clear(ctx context.Context, sessionId string) error {
	if err := s.sessionRepo.Clear(ctx, sessionId); err != nil {
		return err
	}
	s.logger.Info(constant.LogModuleSession, "Session cleared", map[string]interface{}{
		"session_id": sessionId,
	})
	return nil
}

func (s *sessionService) Stats(ctx context.Context) (entity.SessionStats, error) {
	return s.sessionRepo.Stats(ctx)
}

func (s *sessionService) Sweep(ctx context.Context) (int, error) {
	removed, err := s.sessionRepo.SweepExpired(ctx)
	if err != nil {
		s.logger.Error(constant.LogModuleSession, "Session sweep failed", map[string]interface{}{
			"error": err.Error(),
		})
		return 0, err
	}
	metrics.SweptSessions.Add(float64(removed))
	return removed, nil
}

func (s *sessionService) StartSweeper(interval time.Duration) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer close(s.doneCh)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				_, _ = s.Sweep(context.Background())
			}
		}
	}()
}

// Stop ends the sweeper and waits for it. Safe to call more than once, and
// without StartSweeper having run.
func (s *sessionService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	if s.started.Load() {
		<-s.doneCh
	}
}
