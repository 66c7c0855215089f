package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"gemini-rag-be/internal/config"
	"gemini-rag-be/internal/constant"
	"gemini-rag-be/pkg/events"
	pktNats "gemini-rag-be/pkg/nats"

	"github.com/fatih/color"
)

// watch_events tails document lifecycle events bridged to NATS.
func main() {
	durable := flag.String("durable", "", "durable consumer name; empty tails new events only")
	flag.Parse()

	cfg := config.Load()
	if cfg.App.NatsURL == "" {
		log.Fatal("NATS_URL is not set")
	}

	sub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Fatalf("NATS connection failed: %v", err)
	}
	defer sub.Close()

	err = sub.Subscribe(events.Subject(">"), *durable, func(ctx context.Context, event events.Event) error {
		printEvent(event)
		return nil
	})
	if err != nil {
		log.Fatalf("Subscribe failed: %v", err)
	}

	color.Cyan("Watching %s on %s", events.Subject(">"), cfg.App.NatsURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}

func printEvent(event events.Event) {
	paint := color.New(color.FgWhite).SprintFunc()
	switch event.EventType() {
	case constant.EventDocumentIndexed:
		paint = color.New(color.FgGreen).SprintFunc()
	case constant.EventDocumentFailed:
		paint = color.New(color.FgRed).SprintFunc()
	case constant.EventDocumentDeleted, constant.EventLedgerCleared:
		paint = color.New(color.FgYellow).SprintFunc()
	}

	payload := event.Payload()
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%v", k, payload[k]))
	}

	log.Printf("%s %s", paint(event.EventType()), strings.Join(fields, " "))
}
