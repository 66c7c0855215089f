package entity

import (
	"time"
)

const (
	TurnRoleUser      = "user"
	TurnRoleAssistant = "assistant"
)

type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatSession struct {
	SessionId    string    `json:"sessionId"`
	History      []Turn    `json:"history"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

type SessionStats struct {
	TotalSessions  int `json:"totalSessions"`
	ActiveSessions int `json:"activeSessions"`
}

func NewChatSession(sessionId string, now time.Time) *ChatSession {
	return &ChatSession{
		SessionId:    sessionId,
		History:      []Turn{},
		CreatedAt:    now,
		LastActivity: now,
	}
}

// IsActive reports whether the session is still visible at now.
func (s *ChatSession) IsActive(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) < timeout
}

// Clone copies the session and its history. Stores hand out clones and
// replace stored values wholesale, so readers never see a half-applied append.
func (s *ChatSession) Clone() *ChatSession {
	c := *s
	c.History = make([]Turn, len(s.History))
	copy(c.History, s.History)
	return &c
}

// AppendExchange adds a user turn and an assistant turn, then keeps only the
// newest maxTurns entries.
func (s *ChatSession) AppendExchange(userText, modelText string, now time.Time, maxTurns int) {
	s.History = append(s.History,
		Turn{Role: TurnRoleUser, Content: userText, Timestamp: now},
		Turn{Role: TurnRoleAssistant, Content: modelText, Timestamp: now},
	)
	if maxTurns > 0 && len(s.History) > maxTurns {
		trimmed := make([]Turn, maxTurns)
		copy(trimmed, s.History[len(s.History)-maxTurns:])
		s.History = trimmed
	}
	s.LastActivity = now
}
