package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gemini-rag-be/internal/entity"
)

const (
	apiVersion = "v1beta"
	pageSize   = 20 // maximum accepted by the fileSearchStores endpoints
)

type GeminiGateway struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewGeminiGateway(apiKey, baseURL string, httpClient *http.Client) *GeminiGateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &GeminiGateway{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type geminiStore struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	CreateTime  time.Time `json:"createTime"`
}

type geminiStoreList struct {
	FileSearchStores []geminiStore `json:"fileSearchStores"`
	NextPageToken    string        `json:"nextPageToken"`
}

type geminiMetadata struct {
	Key          string   `json:"key"`
	StringValue  string   `json:"stringValue,omitempty"`
	NumericValue *float64 `json:"numericValue,omitempty"`
}

type geminiUploadConfig struct {
	DisplayName    string           `json:"displayName"`
	MimeType       string           `json:"mimeType,omitempty"`
	CustomMetadata []geminiMetadata `json:"customMetadata,omitempty"`
}

type geminiOperation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Response *struct {
		DocumentName string `json:"documentName"`
	} `json:"response,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// flexInt64 accepts both 42 and "42"; the API encodes int64 fields as strings.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt64(v)
	return nil
}

type geminiDocument struct {
	Name           string           `json:"name"`
	DisplayName    string           `json:"displayName"`
	MimeType       string           `json:"mimeType"`
	SizeBytes      flexInt64        `json:"sizeBytes"`
	CreateTime     time.Time        `json:"createTime"`
	UpdateTime     time.Time        `json:"updateTime"`
	State          string           `json:"state"`
	CustomMetadata []geminiMetadata `json:"customMetadata"`
}

type geminiDocumentList struct {
	Documents     []geminiDocument `json:"documents"`
	NextPageToken string           `json:"nextPageToken"`
}

func (g *GeminiGateway) FindOrCreateCollection(ctx context.Context, displayName string) (*Collection, error) {
	pageToken := ""
	for {
		query := url.Values{}
		query.Set("pageSize", strconv.Itoa(pageSize))
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var page geminiStoreList
		if err := g.do(ctx, http.MethodGet, g.apiURL("fileSearchStores", query), nil, "", &page); err != nil {
			return nil, fmt.Errorf("list file search stores: %w", err)
		}

		for _, store := range page.FileSearchStores {
			if store.DisplayName == displayName {
				return &Collection{Name: store.Name, DisplayName: store.DisplayName, CreateTime: store.CreateTime}, nil
			}
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	payload, err := json.Marshal(map[string]string{"displayName": displayName})
	if err != nil {
		return nil, err
	}

	var created geminiStore
	if err := g.do(ctx, http.MethodPost, g.apiURL("fileSearchStores", nil), bytes.NewReader(payload), "application/json", &created); err != nil {
		return nil, fmt.Errorf("create file search store: %w", err)
	}

	return &Collection{Name: created.Name, DisplayName: created.DisplayName, CreateTime: created.CreateTime}, nil
}

func (g *GeminiGateway) SubmitDocument(ctx context.Context, req SubmitRequest, collection *Collection) (*Operation, error) {
	file, err := os.Open(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	uploadConfig := geminiUploadConfig{
		DisplayName: req.DisplayName,
		MimeType:    req.MimeType,
	}
	for _, m := range req.CustomMetadata {
		uploadConfig.CustomMetadata = append(uploadConfig.CustomMetadata, geminiMetadata{Key: m.Key, StringValue: m.StringValue})
	}

	metadataJson, err := json.Marshal(uploadConfig)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	metaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return nil, err
	}
	if _, err := metaPart.Write(metadataJson); err != nil {
		return nil, err
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	filePart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {mimeType}})
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(filePart, file); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("uploadType", "multipart")
	endpoint := fmt.Sprintf("%s/upload/%s/%s:uploadToFileSearchStore?%s", g.baseURL, apiVersion, collection.Name, query.Encode())

	var op geminiOperation
	if err := g.do(ctx, http.MethodPost, endpoint, &body, "multipart/related; boundary="+mw.Boundary(), &op); err != nil {
		return nil, fmt.Errorf("upload to file search store: %w", err)
	}

	return op.toOperation(), nil
}

func (g *GeminiGateway) PollOperation(ctx context.Context, op *Operation) (*Operation, error) {
	if op.Done {
		return op, nil
	}

	var current geminiOperation
	if err := g.do(ctx, http.MethodGet, g.apiURL(op.Name, nil), nil, "", &current); err != nil {
		return nil, fmt.Errorf("get operation %s: %w", op.Name, err)
	}
	if current.Name == "" {
		current.Name = op.Name
	}

	return current.toOperation(), nil
}

func (g *GeminiGateway) ListDocuments(ctx context.Context, collection *Collection) ([]RemoteDocument, error) {
	documents := make([]RemoteDocument, 0)
	pageToken := ""
	for {
		query := url.Values{}
		query.Set("pageSize", strconv.Itoa(pageSize))
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var page geminiDocumentList
		if err := g.do(ctx, http.MethodGet, g.apiURL(collection.Name+"/documents", query), nil, "", &page); err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}

		for _, doc := range page.Documents {
			documents = append(documents, doc.toRemoteDocument())
		}

		if page.NextPageToken == "" {
			return documents, nil
		}
		pageToken = page.NextPageToken
	}
}

func (g *GeminiGateway) DeleteDocument(ctx context.Context, name string) (bool, error) {
	query := url.Values{}
	query.Set("force", "true")

	err := g.do(ctx, http.MethodDelete, g.apiURL(name, query), nil, "", nil)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("delete document %s: %w", name, err)
}

func (g *GeminiGateway) DeleteAll(ctx context.Context, collection *Collection) (DeleteAllResult, error) {
	var result DeleteAllResult

	documents, err := g.ListDocuments(ctx, collection)
	if err != nil {
		return result, err
	}

	for _, doc := range documents {
		if _, err := g.DeleteDocument(ctx, doc.Name); err != nil {
			result.Failed++
			continue
		}
		result.Succeeded++
	}

	return result, nil
}

func (g *GeminiGateway) apiURL(resource string, query url.Values) string {
	u := fmt.Sprintf("%s/%s/%s", g.baseURL, apiVersion, strings.TrimLeft(resource, "/"))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (g *GeminiGateway) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	req.Header.Set("x-goog-api-key", g.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if strings.HasPrefix(contentType, "multipart/") {
		req.Header.Set("X-Goog-Upload-Protocol", "multipart")
	}

	res, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &APIError{StatusCode: res.StatusCode, Body: string(resBody)}
	}

	if out == nil || len(bytes.TrimSpace(resBody)) == 0 {
		return nil
	}
	// a 2xx body that does not parse is treated like a dropped connection
	if err := json.Unmarshal(resBody, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRemoteUnavailable, err)
	}
	return nil
}

func (op geminiOperation) toOperation() *Operation {
	result := &Operation{Name: op.Name, Done: op.Done}
	if op.Response != nil {
		result.DocumentName = op.Response.DocumentName
	}
	if op.Error != nil {
		result.Done = true
		result.Err = fmt.Errorf("%w: %s (code %d)", ErrOperationFailed, op.Error.Message, op.Error.Code)
	}
	return result
}

func (d geminiDocument) toRemoteDocument() RemoteDocument {
	metadata := make([]entity.CustomMetadata, 0, len(d.CustomMetadata))
	for _, m := range d.CustomMetadata {
		value := m.StringValue
		if value == "" && m.NumericValue != nil {
			value = strconv.FormatFloat(*m.NumericValue, 'f', -1, 64)
		}
		metadata = append(metadata, entity.CustomMetadata{Key: m.Key, StringValue: value})
	}

	return RemoteDocument{
		Name:           d.Name,
		DisplayName:    d.DisplayName,
		MimeType:       d.MimeType,
		SizeBytes:      int64(d.SizeBytes),
		CreateTime:     d.CreateTime,
		UpdateTime:     d.UpdateTime,
		CustomMetadata: metadata,
		State:          d.State,
	}
}
