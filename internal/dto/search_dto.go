package dto

import (
	"encoding/json"
)

type SearchRequest struct {
	Query     string `json:"query" validate:"required"`
	Filter    string `json:"filter,omitempty"`
	SessionId string `json:"sessionId,omitempty" validate:"omitempty,max=128"`
}

type SearchResponse struct {
	Text              string          `json:"text"`
	GroundingMetadata json.RawMessage `json:"groundingMetadata,omitempty"`
	SessionId         string          `json:"sessionId"`
}
