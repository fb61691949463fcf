// cmd/recall is a thin command-line shell around the Recall retrieval
// subsystem. It exists to wire configuration, a content store backend, and
// an embedding provider together; the real consumers are the assistant
// application's collaborators.
//
// Usage:
//
//	recall ingest -file notes.txt -source note-001 -type note -title "Meeting notes"
//	recall search "what did we decide about the rollout?"
//
// Configuration comes from RECALL_* environment variables, an optional
// .env file in the working directory, and an optional YAML file named by
// RECALL_CONFIG. All logging goes to stderr; search results go to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/internal/engine"
	"github.com/scrypster/recall/internal/llm"
	"github.com/scrypster/recall/internal/storage/factory"
	"github.com/scrypster/recall/pkg/types"
)

func main() {
	log.SetOutput(os.Stderr)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// Best-effort .env loading; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("recall: %v", err)
	}

	var runErr error
	switch os.Args[1] {
	case "ingest":
		runErr = runIngest(cfg, os.Args[2:])
	case "search":
		runErr = runSearch(cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if runErr != nil {
		log.Fatalf("recall: %v", runErr)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: recall <ingest|search> [flags]")
}

func runIngest(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	file := fs.String("file", "", "path to a UTF-8 text file to ingest")
	source := fs.String("source", "", "stable source identifier")
	title := fs.String("title", "", "display title")
	author := fs.String("author", "", "display author")
	contentType := fs.String("type", string(types.TypeDocument), "content type")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" || *source == "" {
		return fmt.Errorf("ingest requires -file and -source")
	}
	if !types.ContentType(*contentType).Valid() {
		return fmt.Errorf("unknown content type %q", *contentType)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read %s: %w", *file, err)
	}

	store, err := factory.NewContentStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	embedder, err := llm.NewEmbeddingGenerator(cfg.Embedding)
	if err != nil {
		return err
	}

	scheduler := engine.NewBatchScheduler(embedder, engine.BatchSchedulerConfig{
		TokensPerMinute:     cfg.Scheduler.TokensPerMinute,
		MaxBatchSize:        cfg.Scheduler.MaxBatchSize,
		FallbackConcurrency: cfg.Scheduler.FallbackConcurrency,
		FallbackDelay:       cfg.Scheduler.FallbackDelay(),
	})
	pipeline := engine.NewIngestPipeline(store, scheduler, cfg.Scheduler.MaxChunkSize)

	item := &types.Content{
		SourceID:    *source,
		Title:       *title,
		Author:      *author,
		Content:     string(data),
		CreatedDate: time.Now().UTC(),
		Type:        types.ContentType(*contentType),
	}

	report, err := pipeline.Ingest(context.Background(), []*types.Content{item})
	if err != nil {
		return err
	}

	log.Printf("ingested %s: %d chunks, %d stored, %d embedded, %d unembedded",
		*source, report.Chunked, report.Stored, report.Embedded, report.Unembedded)
	if report.QuotaExhausted {
		log.Printf("embedding provider quota exhausted; re-run ingest later to embed the remainder")
	}
	return nil
}

func runSearch(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	limit := fs.Int("limit", cfg.Retrieval.Limit, "number of candidates to rank")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("search requires a query")
	}
	query := fs.Arg(0)

	store, err := factory.NewContentStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	embedder, err := llm.NewEmbeddingGenerator(cfg.Embedding)
	if err != nil {
		return err
	}

	retriever := engine.NewRetriever(store, embedder, engine.RetrieverConfig{
		Limit:        *limit,
		HistoryLimit: cfg.Retrieval.HistoryLimit,
		OtherLimit:   cfg.Retrieval.OtherLimit,
		WindowSize:   cfg.Retrieval.WindowSize,
		WindowStride: cfg.Retrieval.WindowStride,
	})

	results := retriever.Retrieve(context.Background(), query)
	if len(results) == 0 {
		fmt.Println("no relevant content found")
		return nil
	}
	for i, c := range results {
		fmt.Printf("--- %d. %s [%s] %s\n%s\n", i+1, c.Title, c.Type, c.SourceID, c.Content)
	}
	return nil
}
