package contract

import (
	"context"
	"errors"

	"gemini-rag-be/internal/entity"
)

var (
	ErrRecordNotFound = errors.New("ledger record not found")

	// ErrRemoteIdConflict is returned when an update would replace an existing
	// remote id with a different one.
	ErrRemoteIdConflict = errors.New("remote id already set to a different value")

	// ErrPersistence wraps disk or database failures. The in-memory change has
	// already been applied when it is returned.
	ErrPersistence = errors.New("ledger persistence failed")
)

// ILedgerRepository is the local, authoritative list of indexed documents.
// Records keep insertion order. Every mutation persists before returning.
type ILedgerRepository interface {
	// Load never fails: unreadable state is logged and treated as empty.
	Load(ctx context.Context) []entity.DocumentRecord
	Save(ctx context.Context, records []entity.DocumentRecord) error
	Append(ctx context.Context, record entity.DocumentRecord) error
	Update(ctx context.Context, record entity.DocumentRecord) error
	// Remove returns the removed record, or nil when localId is unknown.
	Remove(ctx context.Context, localId string) (*entity.DocumentRecord, error)
	FindByLocalId(ctx context.Context, localId string) (*entity.DocumentRecord, bool)
	FindByRemoteId(ctx context.Context, remoteId string) (*entity.DocumentRecord, bool)
	FindByDisplayName(ctx context.Context, displayName string) []entity.DocumentRecord
	Clear(ctx context.Context) error
}
