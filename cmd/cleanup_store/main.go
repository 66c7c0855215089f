package main

import (
	"context"
	"flag"
	"log"

	"gemini-rag-be/internal/config"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/repository/implementation"
	"gemini-rag-be/internal/service"
	"gemini-rag-be/pkg/filestore"
	"gemini-rag-be/pkg/retry"

	"github.com/fatih/color"
)

// cleanup_store deletes every document from the remote store and clears the
// local ledger.
func main() {
	yes := flag.Bool("yes", false, "skip the confirmation guard")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	if !*yes {
		color.Yellow("This deletes every document in store %q and clears the ledger.", cfg.Gemini.StoreName)
		color.Yellow("Re-run with -yes to continue.")
		return
	}

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, false)
	defer sysLogger.Sync()

	ledger, err := implementation.NewLedgerRepository(cfg.Ledger, false, sysLogger)
	if err != nil {
		log.Fatalf("Ledger open failed: %v", err)
	}

	gateway := filestore.NewGeminiGateway(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, nil)
	documents := service.NewDocumentService(gateway, ledger, nil, cfg.Gemini.StoreName, retry.Policy{Interval: cfg.Poll.Interval}, sysLogger)

	color.Cyan("Cleaning store %q", cfg.Gemini.StoreName)
	res, err := documents.DeleteAll(context.Background())
	if err != nil {
		color.Red("Failed: %v", err)
		return
	}

	color.Green("Remote deleted: %d", res.GeminiDeleted)
	if res.GeminiFailed > 0 {
		color.Red("Remote failed:  %d", res.GeminiFailed)
	}
	color.Green("Ledger cleared: %d", res.LocalCleared)
}
