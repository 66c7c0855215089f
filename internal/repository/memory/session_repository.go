package memory

import (
	"context"
	"sync"
	"time"

	"gemini-rag-be/internal/constant"
	"gemini-rag-be/internal/entity"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps chat sessions in process memory. go-cache's janitor
// purges idle entries every sweep interval; visibility is still decided
// against the injected clock so an idle session is hidden before it is purged.
//
// Stored *entity.ChatSession values are never mutated. Writers store a fresh
// clone, so readers and the janitor never observe a partial append.
type SessionRepository struct {
	mu       sync.Mutex
	cache    *cache.Cache
	maxTurns int
	timeout  time.Duration
	now      func() time.Time
	logger   logger.ILogger
}

func NewSessionRepository(maxPairs int, timeout, sweepInterval time.Duration, log logger.ILogger) *SessionRepository {
	c := cache.New(timeout, sweepInterval)
	c.OnEvicted(func(id string, _ interface{}) {
		log.Debug(constant.LogModuleSession, "Session evicted", map[string]interface{}{"session_id": id})
	})

	return &SessionRepository{
		cache:    c,
		maxTurns: maxPairs * 2,
		timeout:  timeout,
		now:      time.Now,
		logger:   log,
	}
}

// WithClock replaces the time source. Used by tests.
func (r *SessionRepository) WithClock(now func() time.Time) *SessionRepository {
	r.now = now
	return r
}

var _ contract.ISessionRepository = (*SessionRepository)(nil)

// lookup returns the stored session if it is still visible.
func (r *SessionRepository) lookup(sessionId string, now time.Time) (*entity.ChatSession, bool) {
	x, found := r.cache.Get(sessionId)
	if !found {
		return nil, false
	}
	session := x.(*entity.ChatSession)
	if !session.IsActive(now, r.timeout) {
		return nil, false
	}
	return session, true
}

func (r *SessionRepository) GetOrCreate(ctx context.Context, sessionId string) (*entity.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var next *entity.ChatSession
	if current, ok := r.lookup(sessionId, now); ok {
		next = current.Clone()
		next.LastActivity = now
	} else {
		next = entity.NewChatSession(sessionId, now)
	}

	r.cache.Set(sessionId, next, cache.DefaultExpiration)
	return next.Clone(), nil
}

func (r *SessionRepository) History(ctx context.Context, sessionId string) ([]entity.Turn, error) {
	session, ok := r.lookup(sessionId, r.now())
	if !ok {
		return []entity.Turn{}, nil
	}
	return session.Clone().History, nil
}

func (r *SessionRepository) AppendTurn(ctx context.Context, sessionId, userText, modelText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var next *entity.ChatSession
	if current, ok := r.lookup(sessionId, now); ok {
		next = current.Clone()
	} else {
		next = entity.NewChatSession(sessionId, now)
	}
	next.AppendExchange(userText, modelText, now, r.maxTurns)

	r.cache.Set(sessionId, next, cache.DefaultExpiration)
	return nil
}

func (r *SessionRepository) Clear(ctx context.Context, sessionId string) error {
	r.cache.Delete(sessionId)
	return nil
}

func (r *SessionRepository) SweepExpired(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.cache.ItemCount()
	r.cache.DeleteExpired()
	removed := before - r.cache.ItemCount()

	now := r.now()
	for id, item := range r.cache.Items() {
		session := item.Object.(*entity.ChatSession)
		if !session.IsActive(now, r.timeout) {
			r.cache.Delete(id)
			removed++
		}
	}

	if removed > 0 {
		r.logger.Info(constant.LogModuleSession, "Cleaned up expired sessions", map[string]interface{}{
			"count": removed,
		})
	}
	return removed, nil
}

func (r *SessionRepository) Stats(ctx context.Context) (entity.SessionStats, error) {
	now := r.now()
	stats := entity.SessionStats{TotalSessions: r.cache.ItemCount()}
	for _, item := range r.cache.Items() {
		if item.Object.(*entity.ChatSession).IsActive(now, r.timeout) {
			stats.ActiveSessions++
		}
	}
	return stats, nil
}
