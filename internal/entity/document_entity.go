package entity

import (
	"time"
)

type DocumentState string

const (
	DocumentStatePending DocumentState = "PENDING"
	DocumentStateActive  DocumentState = "ACTIVE"
	DocumentStateFailed  DocumentState = "FAILED"
)

// CustomMetadata is one key/value pair attached to an indexed document.
type CustomMetadata struct {
	Key         string `json:"key"`
	StringValue string `json:"stringValue"`
}

// DocumentRecord is the ledger's view of one indexed document.
// RemoteId stays empty until the remote store reveals it.
type DocumentRecord struct {
	LocalId          string           `json:"localId"`
	DisplayName      string           `json:"displayName"`
	MimeType         string           `json:"mimeType"`
	SizeBytes        int64            `json:"sizeBytes"`
	CustomMetadata   []CustomMetadata `json:"customMetadata"`
	CreateTime       time.Time        `json:"createTime"`
	UpdateTime       time.Time        `json:"updateTime"`
	State            DocumentState    `json:"state"`
	RemoteId         string           `json:"remoteId,omitempty"`
	RemoteCollection string           `json:"remoteCollection"`
}

// Clone returns a deep copy so callers never share the metadata slice.
func (d DocumentRecord) Clone() DocumentRecord {
	c := d
	if d.CustomMetadata != nil {
		c.CustomMetadata = make([]CustomMetadata, len(d.CustomMetadata))
		copy(c.CustomMetadata, d.CustomMetadata)
	}
	return c
}

func (d DocumentRecord) HasRemoteId() bool {
	return d.RemoteId != ""
}
