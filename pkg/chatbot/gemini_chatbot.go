package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gemini-rag-be/pkg/filestore"
	"gemini-rag-be/pkg/llm"
)

var ErrEmptyResponse = errors.New("gemini returned no candidates")

type GeminiChatParts struct {
	Text string `json:"text"`
}

type GeminiChatContent struct {
	Parts []*GeminiChatParts `json:"parts"`
	Role  string             `json:"role,omitempty"`
}

type GeminiFileSearch struct {
	FileSearchStoreNames []string `json:"fileSearchStoreNames"`
	MetadataFilter       string   `json:"metadataFilter,omitempty"`
}

type GeminiTool struct {
	FileSearch *GeminiFileSearch `json:"fileSearch,omitempty"`
}

type GeminiGenerationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type GeminiChatRequest struct {
	SystemInstruction *GeminiChatContent      `json:"systemInstruction,omitempty"`
	Contents          []*GeminiChatContent    `json:"contents"`
	Tools             []*GeminiTool           `json:"tools,omitempty"`
	GenerationConfig  *GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

type GeminiChatCandidate struct {
	Content           *GeminiChatContent `json:"content"`
	GroundingMetadata json.RawMessage    `json:"groundingMetadata,omitempty"`
}

type GeminiChatResponse struct {
	Candidates []*GeminiChatCandidate `json:"candidates"`
}

const (
	ChatMessageRoleUser  = "user"
	ChatMessageRoleModel = "model"
)

// QueryRequest is one grounded question. Contents already ends with the new
// user message.
type QueryRequest struct {
	SystemInstruction string
	Contents          []llm.Message
	StoreNames        []string
	MetadataFilter    string
}

type Answer struct {
	Text              string
	GroundingMetadata json.RawMessage
}

// Querier answers a question against one or more file search stores.
type Querier interface {
	Query(ctx context.Context, req QueryRequest, options ...llm.Option) (*Answer, error)
}

type GeminiQuerier struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewGeminiQuerier(apiKey, baseURL, model string, httpClient *http.Client) *GeminiQuerier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &GeminiQuerier{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: httpClient,
	}
}

func (q *GeminiQuerier) Query(ctx context.Context, req QueryRequest, options ...llm.Option) (*Answer, error) {
	opts := llm.ApplyOptions(options...)
	model := q.model
	if opts.Model != "" {
		model = opts.Model
	}

	chatContents := make([]*GeminiChatContent, 0, len(req.Contents))
	for _, message := range req.Contents {
		chatContents = append(chatContents, &GeminiChatContent{
			Parts: []*GeminiChatParts{{Text: message.Content}},
			Role:  toGeminiRole(message.Role),
		})
	}

	payload := GeminiChatRequest{
		Contents: chatContents,
	}
	if req.SystemInstruction != "" {
		payload.SystemInstruction = &GeminiChatContent{
			Parts: []*GeminiChatParts{{Text: req.SystemInstruction}},
		}
	}
	if len(req.StoreNames) > 0 {
		payload.Tools = []*GeminiTool{{
			FileSearch: &GeminiFileSearch{
				FileSearchStoreNames: req.StoreNames,
				MetadataFilter:       req.MetadataFilter,
			},
		}}
	}
	if opts.Temperature != nil {
		payload.GenerationConfig = &GeminiGenerationConfig{Temperature: opts.Temperature}
	}

	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/v1beta/models/%s:generateContent", q.baseURL, model),
		bytes.NewBuffer(payloadJson),
	)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("x-goog-api-key", q.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := q.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", filestore.ErrRemoteUnavailable, err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", filestore.ErrRemoteUnavailable, err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, &filestore.APIError{StatusCode: res.StatusCode, Body: string(resBody)}
	}

	var geminiRes GeminiChatResponse
	if err := json.Unmarshal(resBody, &geminiRes); err != nil {
		return nil, err
	}

	if len(geminiRes.Candidates) == 0 || geminiRes.Candidates[0].Content == nil {
		return nil, ErrEmptyResponse
	}

	candidate := geminiRes.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}

	return &Answer{
		Text:              text.String(),
		GroundingMetadata: candidate.GroundingMetadata,
	}, nil
}

func toGeminiRole(role string) string {
	if role == llm.RoleAssistant {
		return ChatMessageRoleModel
	}
	return ChatMessageRoleUser
}
