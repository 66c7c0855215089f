package dto

import (
	"gemini-rag-be/internal/entity"
)

type SessionHistoryResponse struct {
	SessionId string        `json:"sessionId"`
	History   []entity.Turn `json:"history"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Started string `json:"started"`
	Host    string `json:"host"`
	Version string `json:"version"`
}
