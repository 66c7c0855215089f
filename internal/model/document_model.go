package model

import (
	"time"

	"gorm.io/datatypes"
)

type DocumentMetadata struct {
	Key         string `json:"key"`
	StringValue string `json:"stringValue"`
}

type Document struct {
	LocalId          string                                `gorm:"type:varchar(64);primaryKey"`
	Position         int64                                 `gorm:"not null;index"`
	DisplayName      string                                `gorm:"type:varchar(512);not null;index"`
	MimeType         string                                `gorm:"type:varchar(255)"`
	SizeBytes        int64                                 `gorm:"not null;default:0"`
	CustomMetadata   datatypes.JSONSlice[DocumentMetadata] `gorm:"type:jsonb"`
	CreateTime       time.Time                             `gorm:"not null"`
	UpdateTime       time.Time                             `gorm:"not null"`
	State            string                                `gorm:"type:varchar(16);not null"`
	RemoteId         string                                `gorm:"type:varchar(512);index"`
	RemoteCollection string                                `gorm:"type:varchar(512)"`
}

func (Document) TableName() string {
	return "ledger_documents"
}
