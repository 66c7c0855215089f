package implementation

import (
	"fmt"
	"net/url"
	"strings"

	"gemini-rag-be/internal/config"
	"gemini-rag-be/internal/model"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/repository/contract"
	"gemini-rag-be/pkg/database"
)

// NewLedgerRepository picks the backend once at startup from the DSN scheme.
// An empty DSN (or file://) uses the JSON file at cfg.Path.
func NewLedgerRepository(cfg config.LedgerConfig, verboseSQL bool, log logger.ILogger) (contract.ILedgerRepository, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return NewJSONLedgerRepository(cfg.Path, log), nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_DSN: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "file":
		path := parsed.Path
		if parsed.Host != "" {
			path = parsed.Host + path
		}
		if path == "" {
			path = cfg.Path
		}
		return NewJSONLedgerRepository(path, log), nil
	case "postgres", "postgresql":
		db, err := database.NewGormDBFromDSN(dsn, verboseSQL)
		if err != nil {
			return nil, fmt.Errorf("connect ledger database: %w", err)
		}
		if err := db.AutoMigrate(&model.Document{}); err != nil {
			return nil, fmt.Errorf("migrate ledger table: %w", err)
		}
		return NewGormLedgerRepository(db, log), nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend scheme: %s", parsed.Scheme)
	}
}
