package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/rescam/phishguard/internal/adapters/embed"
	"github.com/rescam/phishguard/internal/adapters/vector"
	"github.com/rescam/phishguard/internal/dataset"
	"github.com/rescam/phishguard/internal/logging"
)

var (
	datasetPath    = flag.String("dataset", "", "Labelled email dataset (CSV with subject, body, label columns)")
	embeddingsPath = flag.String("embeddings", "embeddings.jsonl", "Embedding interchange file (JSONL)")
	reuse          = flag.Bool("reuse-embeddings", false, "Skip embedding and index an existing embeddings file")

	embedURL   = flag.String("embed-url", "http://localhost:11434", "Embedding service base URL")
	embedModel = flag.String("embed-model", "all-minilm", "Embedding model name")
	embedDims  = flag.Int("embed-dims", 384, "Embedding dimensions")

	vectorAddr = flag.String("vector-addr", "localhost:6334", "Qdrant gRPC address")
	vectorColl = flag.String("vector-collection", "phishing-emails", "Qdrant collection name")
	batchSize  = flag.Int("batch-size", 64, "Upsert batch size")

	verbose = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog = flag.Bool("json-log", false, "Output logs in JSON format")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	var embedded []dataset.EmbeddedRecord
	if *reuse {
		embedded, err = loadEmbeddings(*embeddingsPath)
		if err != nil {
			logger.Fatal("Failed to load embeddings", zap.Error(err))
		}
		logger.Info("Loaded existing embeddings",
			zap.String("file", *embeddingsPath),
			zap.Int("count", len(embedded)))
	} else {
		if *datasetPath == "" {
			logger.Fatal("A dataset file is required unless -reuse-embeddings is set")
		}
		embedded, err = embedDataset(ctx, logger)
		if err != nil {
			logger.Fatal("Failed to embed dataset", zap.Error(err))
		}
	}

	if err := indexEmbeddings(ctx, logger, embedded); err != nil {
		logger.Fatal("Failed to index embeddings", zap.Error(err))
	}

	logger.Info("Indexing complete", zap.Int("indexed", len(embedded)))
}

// embedDataset reads the CSV, embeds each example, and writes the
// interchange file so a re-run with -reuse-embeddings skips this stage.
func embedDataset(ctx context.Context, logger *zap.Logger) ([]dataset.EmbeddedRecord, error) {
	records, err := dataset.LoadCSV(*datasetPath)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded dataset",
		zap.String("file", *datasetPath),
		zap.Int("count", len(records)))

	client := embed.NewClient(*embedURL, *embedModel, *embedDims, logger)

	embedded := make([]dataset.EmbeddedRecord, 0, len(records))
	for i, rec := range records {
		embedding, err := client.Embed(ctx, rec.EmbeddingText())
		if err != nil {
			return nil, fmt.Errorf("failed to embed record %s: %w", rec.ID, err)
		}
		embedded = append(embedded, dataset.EmbeddedRecord{
			ID:        rec.ID,
			Embedding: embedding,
			Sender:    rec.Sender,
			Subject:   rec.Subject,
			Label:     rec.Label,
		})
		if (i+1)%100 == 0 {
			logger.Info("Embedding progress", zap.Int("done", i+1), zap.Int("total", len(records)))
		}
	}

	f, err := os.Create(*embeddingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings file: %w", err)
	}
	defer f.Close()
	if err := dataset.WriteEmbeddings(f, embedded); err != nil {
		return nil, err
	}
	logger.Info("Wrote embeddings file", zap.String("file", *embeddingsPath))

	return embedded, nil
}

func loadEmbeddings(path string) ([]dataset.EmbeddedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open embeddings file: %w", err)
	}
	defer f.Close()
	return dataset.ReadEmbeddings(f)
}

func indexEmbeddings(ctx context.Context, logger *zap.Logger, embedded []dataset.EmbeddedRecord) error {
	index, err := vector.New(*vectorAddr, *vectorColl, logger)
	if err != nil {
		return err
	}
	defer index.Close()

	if err := index.EnsureCollection(ctx, *embedDims); err != nil {
		return err
	}

	for start := 0; start < len(embedded); start += *batchSize {
		end := start + *batchSize
		if end > len(embedded) {
			end = len(embedded)
		}

		batch := make([]vector.Record, 0, end-start)
		for _, rec := range embedded[start:end] {
			batch = append(batch, vector.Record{
				ID:        rec.ID,
				Embedding: rec.Embedding,
				Sender:    rec.Sender,
				Subject:   rec.Subject,
				Label:     rec.Label,
			})
		}
		if err := index.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("failed to upsert batch at %d: %w", start, err)
		}
		logger.Info("Upsert progress", zap.Int("done", end), zap.Int("total", len(embedded)))
	}

	return nil
}
