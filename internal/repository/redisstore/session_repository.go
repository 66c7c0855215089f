package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gemini-rag-be/internal/constant"
	"gemini-rag-be/internal/entity"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

const (
	sessionPrefix = "chat_session:"
	maxTxRetries  = 3
)

// SessionRepository stores each chat session as one JSON value whose TTL is
// the session timeout, refreshed on every write. Read-modify-write goes
// through WATCH so concurrent appends from several instances do not clobber
// each other.
type SessionRepository struct {
	client   *redis.Client
	maxTurns int
	timeout  time.Duration
	now      func() time.Time
	logger   logger.ILogger

	// afterScan runs between the sweep scan and the deletes. Used by tests.
	afterScan func()
}

var _ contract.ISessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(client *redis.Client, maxPairs int, timeout time.Duration, log logger.ILogger) *SessionRepository {
	return &SessionRepository{
		client:   client,
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

func sessionKey(id string) string {
	return sessionPrefix + id
}

func decodeSession(data []byte) (*entity.ChatSession, error) {
	var session entity.ChatSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if session.History == nil {
		session.History = []entity.Turn{}
	}
	return &session, nil
}

// get returns the session if present and still visible at now.
func (r *SessionRepository) get(ctx context.Context, getter redis.Cmdable, id string, now time.Time) (*entity.ChatSession, error) {
	data, err := getter.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session, err := decodeSession(data)
	if err != nil {
		r.logger.Warn(constant.LogModuleSession, "Dropping unreadable session", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
		return nil, nil
	}
	if !session.IsActive(now, r.timeout) {
		return nil, nil
	}
	return session, nil
}

// update runs mutate on the current session (or a new one) inside WATCH/MULTI.
func (r *SessionRepository) update(ctx context.Context, id string, mutate func(*entity.ChatSession, time.Time)) (*entity.ChatSession, error) {
	key := sessionKey(id)
	var result *entity.ChatSession

	txf := func(tx *redis.Tx) error {
		now := r.now()
		session, err := r.get(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if session == nil {
			session = entity.NewChatSession(id, now)
		}
		mutate(session, now)

		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.timeout)
			return nil
		})
		if err == nil {
			result = session
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to update session %s: %w", id, redis.TxFailedErr)
}

func (r *SessionRepository) GetOrCreate(ctx context.Context, sessionId string) (*entity.ChatSession, error) {
	return r.update(ctx, sessionId, func(s *entity.ChatSession, now time.Time) {
		s.LastActivity = now
	})
}

func (r *SessionRepository) History(ctx context.Context, sessionId string) ([]entity.Turn, error) {
	session, err := r.get(ctx, r.client, sessionId, r.now())
	if err != nil {
		return nil, err
	}
	if session == nil {
		return []entity.Turn{}, nil
	}
	return session.History, nil
}

func (r *SessionRepository) AppendTurn(ctx context.Context, sessionId, userText, modelText string) error {
	_, err := r.update(ctx, sessionId, func(s *entity.ChatSession, now time.Time) {
		s.AppendExchange(userText, modelText, now, r.maxTurns)
	})
	return err
}

func (r *SessionRepository) Clear(ctx context.Context, sessionId string) error {
	if err := r.client.Del(ctx, sessionKey(sessionId)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// scan visits every stored session.
func (r *SessionRepository) scan(ctx context.Context, visit func(key string, session *entity.ChatSession)) error {
	iter := r.client.Scan(ctx, 0, sessionPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
		session, err := decodeSession(data)
		if err != nil {
			// unreadable values count as expired
			session = &entity.ChatSession{SessionId: strings.TrimPrefix(key, sessionPrefix)}
		}
		visit(key, session)
	}
	return iter.Err()
}

func (r *SessionRepository) SweepExpired(ctx context.Context) (int, error) {
	now := r.now()
	expired := make([]string, 0)

	if err := r.scan(ctx, func(key string, session *entity.ChatSession) {
		if !session.IsActive(now, r.timeout) {
			expired = append(expired, key)
		}
	}); err != nil {
		return 0, err
	}

	if r.afterScan != nil {
		r.afterScan()
	}

	removed := 0
	for _, key := range expired {
		ok, err := r.removeIfExpired(ctx, key, now)
		if err != nil {
			return removed, fmt.Errorf("failed to delete expired sessions: %w", err)
		}
		if ok {
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

// removeIfExpired deletes key only if the stored session is still expired at
// now. A write to the key after the check aborts the delete.
func (r *SessionRepository) removeIfExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	removed := false
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if session, err := decodeSession(data); err == nil && session.IsActive(now, r.timeout) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err == nil {
			removed = true
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// refreshed concurrently
		return false, nil
	}
	return removed, err
}

func (r *SessionRepository) Stats(ctx context.Context) (entity.SessionStats, error) {
	now := r.now()
	var stats entity.SessionStats

	err := r.scan(ctx, func(_ string, session *entity.ChatSession) {
		stats.TotalSessions++
		if session.IsActive(now, r.timeout) {
			stats.ActiveSessions++
		}
	})
	return stats, err
}
