package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"gemini-rag-be/internal/config"
	"gemini-rag-be/internal/entity"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/repository/implementation"
	"gemini-rag-be/internal/service"
	"gemini-rag-be/pkg/filestore"
	"gemini-rag-be/pkg/retry"

	"github.com/fatih/color"
)

// inspect_ledger prints the local ledger. With -reconcile it first lists the
// remote store and backfills missing remote ids.
func main() {
	reconcile := flag.Bool("reconcile", false, "backfill missing remote ids from the remote listing first")
	flag.Parse()

	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, false)
	defer sysLogger.Sync()

	ledger, err := implementation.NewLedgerRepository(cfg.Ledger, false, sysLogger)
	if err != nil {
		log.Fatalf("Ledger open failed: %v", err)
	}
	ctx := context.Background()

	if *reconcile {
		if err := cfg.Validate(); err != nil {
			log.Fatalf("%v", err)
		}
		gateway := filestore.NewGeminiGateway(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, nil)
		documents := service.NewDocumentService(gateway, ledger, nil, cfg.Gemini.StoreName, retry.Policy{Interval: cfg.Poll.Interval}, sysLogger)

		repaired, err := documents.Backfill(ctx)
		if err != nil {
			color.Red("Reconcile failed: %v", err)
		} else {
			color.Green("Backfilled %d record(s)", repaired)
		}
	}

	records := ledger.Load(ctx)
	color.Cyan("%d record(s) in ledger", len(records))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOCAL ID\tSTATE\tDISPLAY NAME\tREMOTE ID\tCREATED")
	for _, rec := range records {
		remoteId := rec.RemoteId
		if remoteId == "" {
			remoteId = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", rec.LocalId, stateLabel(rec.State), rec.DisplayName, remoteId, rec.CreateTime.Format("2006-01-02 15:04:05"))
	}
	_ = w.Flush()
}

func stateLabel(state entity.DocumentState) string {
	switch state {
	case entity.DocumentStateActive:
		return color.GreenString(string(state))
	case entity.DocumentStateFailed:
		return color.RedString(string(state))
	}
	return color.YellowString(string(state))
}
