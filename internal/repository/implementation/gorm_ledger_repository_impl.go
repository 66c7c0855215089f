package implementation

import (
	"context"
	"errors"
	"fmt"

	"gemini-rag-be/internal/constant"
	"gemini-rag-be/internal/entity"
	"gemini-rag-be/internal/mapper"
	"gemini-rag-be/internal/model"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerRepository stores the ledger in PostgreSQL. Insertion order is
// kept in the position column.
type GormLedgerRepository struct {
	db     *gorm.DB
	mapper *mapper.DocumentMapper
	logger logger.ILogger
}

func NewGormLedgerRepository(db *gorm.DB, log logger.ILogger) contract.ILedgerRepository {
	return &GormLedgerRepository{
		db:     db,
		mapper: mapper.NewDocumentMapper(),
		logger: log,
	}
}

func persistenceErr(err error) error {
	return fmt.Errorf("%w: %v", contract.ErrPersistence, err)
}

func (r *GormLedgerRepository) Load(ctx context.Context) []entity.DocumentRecord {
	var models []*model.Document
	if err := r.db.WithContext(ctx).Order("position asc").Find(&models).Error; err != nil {
		r.logger.Error(constant.LogModuleLedger, "Failed to load ledger, treating as empty", map[string]interface{}{
			"error": err.Error(),
		})
		return []entity.DocumentRecord{}
	}
	return r.mapper.ToEntities(models)
}

func (r *GormLedgerRepository) Save(ctx context.Context, records []entity.DocumentRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.Document{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		models := make([]*model.Document, 0, len(records))
		for i := range records {
			models = append(models, r.mapper.ToModel(&records[i], int64(i+1)))
		}
		return tx.Create(&models).Error
	})
	if err != nil {
		return persistenceErr(err)
	}
	return nil
}

func (r *GormLedgerRepository) Append(ctx context.Context, record entity.DocumentRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int64
		if err := tx.Model(&model.Document{}).Select("COALESCE(MAX(position), 0)").Scan(&last).Error; err != nil {
			return err
		}
		return tx.Create(r.mapper.ToModel(&record, last+1)).Error
	})
	if err != nil {
		return persistenceErr(err)
	}
	return nil
}

// Update locks the row for the remote id check so two writers cannot both
// see an empty remote id and overwrite each other.
func (r *GormLedgerRepository) Update(ctx context.Context, record entity.DocumentRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Document
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("local_id = ?", record.LocalId).
			First(&existing).Error; err != nil {
			return err
		}

		if existing.RemoteId != "" {
			if record.HasRemoteId() && record.RemoteId != existing.RemoteId {
				return contract.ErrRemoteIdConflict
			}
			record.RemoteId = existing.RemoteId
		}

		return tx.Save(r.mapper.ToModel(&record, existing.Position)).Error
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return contract.ErrRecordNotFound
	case errors.Is(err, contract.ErrRemoteIdConflict):
		return err
	default:
		return persistenceErr(err)
	}
}

func (r *GormLedgerRepository) Remove(ctx context.Context, localId string) (*entity.DocumentRecord, error) {
	var m model.Document
	if err := r.db.WithContext(ctx).Where("local_id = ?", localId).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, persistenceErr(err)
	}

	removed := r.mapper.ToEntity(&m)
	if err := r.db.WithContext(ctx).Delete(&model.Document{}, "local_id = ?", localId).Error; err != nil {
		return removed, persistenceErr(err)
	}
	return removed, nil
}

func (r *GormLedgerRepository) findOne(ctx context.Context, query string, arg interface{}) (*entity.DocumentRecord, bool) {
	var m model.Document
	if err := r.db.WithContext(ctx).Where(query, arg).Order("position asc").First(&m).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.Error(constant.LogModuleLedger, "Ledger lookup failed", map[string]interface{}{
				"query": query,
				"error": err.Error(),
			})
		}
		return nil, false
	}
	return r.mapper.ToEntity(&m), true
}

func (r *GormLedgerRepository) FindByLocalId(ctx context.Context, localId string) (*entity.DocumentRecord, bool) {
	return r.findOne(ctx, "local_id = ?", localId)
}

func (r *GormLedgerRepository) FindByRemoteId(ctx context.Context, remoteId string) (*entity.DocumentRecord, bool) {
	if remoteId == "" {
		return nil, false
	}
	return r.findOne(ctx, "remote_id = ?", remoteId)
}

func (r *GormLedgerRepository) FindByDisplayName(ctx context.Context, displayName string) []entity.DocumentRecord {
	var models []*model.Document
	if err := r.db.WithContext(ctx).Where("display_name = ?", displayName).Order("position asc").Find(&models).Error; err != nil {
		r.logger.Error(constant.LogModuleLedger, "Ledger lookup by display name failed", map[string]interface{}{
			"display_name": displayName,
			"error":        err.Error(),
		})
		return []entity.DocumentRecord{}
	}
	return r.mapper.ToEntities(models)
}

func (r *GormLedgerRepository) Clear(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&model.Document{}).Error; err != nil {
		return persistenceErr(err)
	}
	return nil
}
