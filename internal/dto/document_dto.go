package dto

import (
	"time"

	"gemini-rag-be/internal/entity"
)

// IndexDocumentRequest is built by the controller from the multipart form.
type IndexDocumentRequest struct {
	FilePath     string `validate:"required"`
	OriginalName string `validate:"required"`
	MimeType     string
	SizeBytes    int64
	Metadata     string // raw JSON object from the "metadata" form field
}

type DocumentView struct {
	LocalId          string                  `json:"localId,omitempty"`
	Name             string                  `json:"name,omitempty"`
	DisplayName      string                  `json:"displayName"`
	MimeType         string                  `json:"mimeType"`
	SizeBytes        int64                   `json:"sizeBytes"`
	CustomMetadata   []entity.CustomMetadata `json:"customMetadata"`
	CreateTime       time.Time               `json:"createTime"`
	UpdateTime       time.Time               `json:"updateTime"`
	State            string                  `json:"state"`
	RemoteCollection string                  `json:"remoteCollection,omitempty"`
	Source           string                  `json:"source"`
}

type ListDocumentsResponse struct {
	Documents []DocumentView `json:"documents"`
	Degraded  bool           `json:"degraded"`
}

type DeleteDocumentResponse struct {
	Document     *DocumentView `json:"document,omitempty"`
	RemoteName   string        `json:"remoteName,omitempty"`
	RemoteStatus string        `json:"remoteStatus"`
}

type DeleteAllDocumentsResponse struct {
	GeminiDeleted int `json:"geminiDeleted"`
	GeminiFailed  int `json:"geminiFailed"`
	LocalCleared  int `json:"localCleared"`
}

type StoreInfoResponse struct {
	StoreName      string `json:"storeName"`
	DisplayName    string `json:"displayName"`
	DocumentsCount int    `json:"documentsCount"`
	Degraded       bool   `json:"degraded"`
}

// DocumentEventMessage is published on the in-process bus for every
// document lifecycle change.
type DocumentEventMessage struct {
	Type        string    `json:"type"`
	LocalId     string    `json:"localId,omitempty"`
	RemoteId    string    `json:"remoteId,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	State       string    `json:"state,omitempty"`
	Error       string    `json:"error,omitempty"`
	Count       int       `json:"count,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func NewDocumentView(record entity.DocumentRecord, source string) DocumentView {
	metadata := record.CustomMetadata
	if metadata == nil {
		metadata = []entity.CustomMetadata{}
	}
	return DocumentView{
		LocalId:          record.LocalId,
		Name:             record.RemoteId,
		DisplayName:      record.DisplayName,
		MimeType:         record.MimeType,
		SizeBytes:        record.SizeBytes,
		CustomMetadata:   metadata,
		CreateTime:       record.CreateTime,
		UpdateTime:       record.UpdateTime,
		State:            string(record.State),
		RemoteCollection: record.RemoteCollection,
		Source:           source,
	}
}
