package contract

import (
	"context"

	"gemini-rag-be/internal/entity"
)

// ISessionRepository keeps bounded, expiring conversation history.
// A session whose last activity is older than the timeout is treated as
// absent by every reader, whether or not it has been purged yet.
type ISessionRepository interface {
	GetOrCreate(ctx context.Context, sessionId string) (*entity.ChatSession, error)
	History(ctx context.Context, sessionId string) ([]entity.Turn, error)
	AppendTurn(ctx context.Context, sessionId, userText, modelText string) error
	Clear(ctx context.Context, sessionId string) error
	SweepExpired(ctx context.Context) (int, error)
	Stats(ctx context.Context) (entity.SessionStats, error)
}
