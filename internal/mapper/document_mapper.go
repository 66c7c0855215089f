package mapper

import (
	"gemini-rag-be/internal/entity"
	"gemini-rag-be/internal/model"

	"gorm.io/datatypes"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.DocumentRecord {
	if d == nil {
		return nil
	}

	metadata := make([]entity.CustomMetadata, 0, len(d.CustomMetadata))
	for _, md := range d.CustomMetadata {
		metadata = append(metadata, entity.CustomMetadata{Key: md.Key, StringValue: md.StringValue})
	}

	return &entity.DocumentRecord{
		LocalId:          d.LocalId,
		DisplayName:      d.DisplayName,
		MimeType:         d.MimeType,
		SizeBytes:        d.SizeBytes,
		CustomMetadata:   metadata,
		CreateTime:       d.CreateTime,
		UpdateTime:       d.UpdateTime,
		State:            entity.DocumentState(d.State),
		RemoteId:         d.RemoteId,
		RemoteCollection: d.RemoteCollection,
	}
}

// ToModel keeps insertion order through position.
func (m *DocumentMapper) ToModel(d *entity.DocumentRecord, position int64) *model.Document {
	if d == nil {
		return nil
	}

	metadata := make([]model.DocumentMetadata, 0, len(d.CustomMetadata))
	for _, md := range d.CustomMetadata {
		metadata = append(metadata, model.DocumentMetadata{Key: md.Key, StringValue: md.StringValue})
	}

	return &model.Document{
		LocalId:          d.LocalId,
		Position:         position,
		DisplayName:      d.DisplayName,
		MimeType:         d.MimeType,
		SizeBytes:        d.SizeBytes,
		CustomMetadata:   datatypes.NewJSONSlice(metadata),
		CreateTime:       d.CreateTime,
		UpdateTime:       d.UpdateTime,
		State:            string(d.State),
		RemoteId:         d.RemoteId,
		RemoteCollection: d.RemoteCollection,
	}
}

func (m *DocumentMapper) ToEntities(docs []*model.Document) []entity.DocumentRecord {
	entities := make([]entity.DocumentRecord, 0, len(docs))
	for _, d := range docs {
		entities = append(entities, *m.ToEntity(d))
	}
	return entities
}
