package implementation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gemini-rag-be/internal/constant"
	"gemini-rag-be/internal/entity"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/repository/contract"
)

// JSONLedgerRepository keeps the ledger in memory and rewrites the whole file
// on every mutation. The mutex covers the change and its write together.
type JSONLedgerRepository struct {
	mu      sync.Mutex
	path    string
	records []entity.DocumentRecord
	logger  logger.ILogger
}

func NewJSONLedgerRepository(path string, log logger.ILogger) contract.ILedgerRepository {
	r := &JSONLedgerRepository{
		path:   path,
		logger: log,
	}
	r.records = r.readFile()
	r.logger.Info(constant.LogModuleLedger, "Ledger loaded", map[string]interface{}{
		"path":  path,
		"count": len(r.records),
	})
	return r
}

func (r *JSONLedgerRepository) readFile() []entity.DocumentRecord {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.Error(constant.LogModuleLedger, "Failed to read ledger, starting empty", map[string]interface{}{
				"path":  r.path,
				"error": err.Error(),
			})
		}
		return []entity.DocumentRecord{}
	}

	var records []entity.DocumentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		r.logger.Error(constant.LogModuleLedger, "Ledger file is corrupt, starting empty", map[string]interface{}{
			"path":  r.path,
			"error": err.Error(),
		})
		return []entity.DocumentRecord{}
	}
	if records == nil {
		records = []entity.DocumentRecord{}
	}
	return records
}

// encodeLedger produces the on-disk form: a two-space indented array with no
// trailing newline and no HTML escaping.
func encodeLedger(records []entity.DocumentRecord) ([]byte, error) {
	if records == nil {
		records = []entity.DocumentRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// persistLocked writes through a temp file and rename so readers never see a
// partial file. Caller holds r.mu.
func (r *JSONLedgerRepository) persistLocked() error {
	data, err := encodeLedger(r.records)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", contract.ErrPersistence, err)
	}

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", contract.ErrPersistence, err)
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrPersistence, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", contract.ErrPersistence, err)
	}
	return nil
}

func cloneRecords(records []entity.DocumentRecord) []entity.DocumentRecord {
	out := make([]entity.DocumentRecord, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}

func (r *JSONLedgerRepository) indexOf(localId string) int {
	for i := range r.records {
		if r.records[i].LocalId == localId {
			return i
		}
	}
	return -1
}

func (r *JSONLedgerRepository) Load(ctx context.Context) []entity.DocumentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneRecords(r.records)
}

func (r *JSONLedgerRepository) Save(ctx context.Context, records []entity.DocumentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = cloneRecords(records)
	return r.persistLocked()
}

func (r *JSONLedgerRepository) Append(ctx context.Context, record entity.DocumentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record.Clone())
	return r.persistLocked()
}

func (r *JSONLedgerRepository) Update(ctx context.Context, record entity.DocumentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(record.LocalId)
	if i < 0 {
		return contract.ErrRecordNotFound
	}

	existing := r.records[i]
	if existing.HasRemoteId() {
		if record.HasRemoteId() && record.RemoteId != existing.RemoteId {
			return contract.ErrRemoteIdConflict
		}
		record.RemoteId = existing.RemoteId
	}

	r.records[i] = record.Clone()
	return r.persistLocked()
}

func (r *JSONLedgerRepository) Remove(ctx context.Context, localId string) (*entity.DocumentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(localId)
	if i < 0 {
		return nil, nil
	}

	removed := r.records[i].Clone()
	r.records = append(r.records[:i:i], r.records[i+1:]...)
	return &removed, r.persistLocked()
}

func (r *JSONLedgerRepository) FindByLocalId(ctx context.Context, localId string) (*entity.DocumentRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(localId); i >= 0 {
		rec := r.records[i].Clone()
		return &rec, true
	}
	return nil, false
}

func (r *JSONLedgerRepository) FindByRemoteId(ctx context.Context, remoteId string) (*entity.DocumentRecord, bool) {
	if remoteId == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.RemoteId == remoteId {
			c := rec.Clone()
			return &c, true
		}
	}
	return nil, false
}

func (r *JSONLedgerRepository) FindByDisplayName(ctx context.Context, displayName string) []entity.DocumentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	matches := make([]entity.DocumentRecord, 0)
	for _, rec := range r.records {
		if rec.DisplayName == displayName {
			matches = append(matches, rec.Clone())
		}
	}
	return matches
}

func (r *JSONLedgerRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = []entity.DocumentRecord{}
	return r.persistLocked()
}
