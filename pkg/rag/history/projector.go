package history

import (
	"context"

	"gemini-rag-be/internal/entity"
	"gemini-rag-be/internal/repository/contract"
	"gemini-rag-be/pkg/llm"
)

// Projector turns stored session history into the ordered message list that
// primes a query. It only reads the session store.
type Projector struct {
	sessionRepo contract.ISessionRepository
}

func NewProjector(sessionRepo contract.ISessionRepository) *Projector {
	return &Projector{sessionRepo: sessionRepo}
}

// Project returns the visible history in order followed by the new user
// message. An absent or expired session yields just the new message.
func (p *Projector) Project(ctx context.Context, sessionId, newUserText string) ([]llm.Message, error) {
	turns, err := p.sessionRepo.History(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(turns)+1)
	for _, turn := range turns {
		role := llm.RoleUser
		if turn.Role == entity.TurnRoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}

	return append(messages, llm.Message{Role: llm.RoleUser, Content: newUserText}), nil
}
