// Package filestore talks to the remote file search store that indexes
// uploaded documents. The store is eventually consistent: uploads finish
// asynchronously, listings may lag, and deletes are best-effort.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gemini-rag-be/internal/entity"
)

var (
	// ErrRemoteUnavailable covers transport failures, 5xx and throttling.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrNotFound is returned when the remote object does not exist.
	ErrNotFound = errors.New("remote object not found")

	// ErrOperationFailed is returned when a finished operation carries an error.
	ErrOperationFailed = errors.New("remote operation failed")
)

// Collection is the remote container documents are indexed into.
type Collection struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	CreateTime  time.Time `json:"createTime,omitempty"`
}

type SubmitRequest struct {
	FilePath       string
	DisplayName    string
	MimeType       string
	CustomMetadata []entity.CustomMetadata
}

// Operation is a handle on a long-running upload.
type Operation struct {
	Name         string
	Done         bool
	DocumentName string // remote document name, when the result reveals it
	Err          error  // set when Done and the operation failed
}

type RemoteDocument struct {
	Name           string                  `json:"name"`
	DisplayName    string                  `json:"displayName"`
	MimeType       string                  `json:"mimeType"`
	SizeBytes      int64                   `json:"sizeBytes"`
	CreateTime     time.Time               `json:"createTime"`
	UpdateTime     time.Time               `json:"updateTime"`
	CustomMetadata []entity.CustomMetadata `json:"customMetadata"`
	State          string                  `json:"state"`
}

type DeleteAllResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Gateway is the one adapter used to reach the remote store. Each capability
// fails independently of the others.
type Gateway interface {
	FindOrCreateCollection(ctx context.Context, displayName string) (*Collection, error)
	SubmitDocument(ctx context.Context, req SubmitRequest, collection *Collection) (*Operation, error)
	PollOperation(ctx context.Context, op *Operation) (*Operation, error)
	ListDocuments(ctx context.Context, collection *Collection) ([]RemoteDocument, error)
	// DeleteDocument reports false without error when the document is already gone.
	DeleteDocument(ctx context.Context, name string) (bool, error)
	DeleteAll(ctx context.Context, collection *Collection) (DeleteAllResult, error)
}

// APIError carries a non-2xx response from the remote API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote store responded with status %d: %s", e.StatusCode, e.Body)
}

// Unwrap maps status codes onto the package sentinels so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode >= 500:
		return ErrRemoteUnavailable
	}
	return nil
}
