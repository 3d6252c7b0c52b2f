// Package ingest turns wiki document files into embedded, metadata-tagged
// chunks in the vector store. Each file runs through a linear per-file state
// machine: parse identifier, check staleness, read, chunk, embed, upsert.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/radwerk/reportd/internal/chunker"
	"github.com/radwerk/reportd/internal/identifier"
	"github.com/radwerk/reportd/internal/vectorstore"
	"go.uber.org/zap"
)

// Status classifies a per-file outcome.
type Status string

// Outcome statuses.
const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Outcome is the per-file result of a pipeline run.
type Outcome struct {
	Path       string `json:"path"`
	DocumentID string `json:"document_id,omitempty"`
	Collection string `json:"collection,omitempty"`
	Status     Status `json:"status"`
	Detail     string `json:"detail,omitempty"`
	ChunkCount int    `json:"chunk_count,omitempty"`
}

// Summary aggregates outcomes for a directory batch.
type Summary struct {
	Succeeded int
	Skipped   int
	Failed    int
	Outcomes  []Outcome
}

// Total returns the number of files processed.
func (s Summary) Total() int {
	return s.Succeeded + s.Skipped + s.Failed
}

// Store is the vector-store surface the pipeline writes through. Satisfied
// by vectorstore.Client.
type Store interface {
	GetOrCreateCollection(ctx context.Context, name string) (*vectorstore.Collection, error)
	Upsert(ctx context.Context, collectionName string, ids, documents []string, metadatas []map[string]any, embeddings [][]float32) error
	NeedsUpdate(ctx context.Context, collectionName string, documentIDs []string, fileModified time.Time) bool
}

// Embedder generates one vector per chunk.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds pipeline settings.
type Config struct {
	// Extension selects which files a directory batch picks up, dot
	// included (".txt").
	Extension string
}

// Pipeline ingests wiki document files. Files are processed strictly
// sequentially; one file's failure never aborts a batch.
type Pipeline struct {
	parser    *identifier.Parser
	store     Store
	embedder  Embedder
	extension string
	logger    *zap.Logger
	metrics   *Metrics

	// now is swapped in tests to pin processed_at.
	now func() time.Time
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(cfg Config, parser *identifier.Parser, store Store, embedder Embedder, logger *zap.Logger, metrics *Metrics) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	extension := cfg.Extension
	if extension == "" {
		extension = ".txt"
	}
	return &Pipeline{
		parser:    parser,
		store:     store,
		embedder:  embedder,
		extension: extension,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// ProcessFile runs the per-file state machine for one document. All failures
// are folded into an error Outcome; ProcessFile itself never returns an
// error so callers can treat any file uniformly in a batch.
//
// When collectionChecked is true the collection is assumed to exist and the
// get-or-create round trip is skipped (batch mode checks once up front).
func (p *Pipeline) ProcessFile(ctx context.Context, path, collectionHint string, collectionChecked bool) Outcome {
	started := p.now()
	outcome := p.processFile(ctx, path, collectionHint, collectionChecked)
	p.metrics.RecordFile(ctx, outcome.Status, outcome.ChunkCount, p.now().Sub(started))

	switch outcome.Status {
	case StatusSuccess:
		p.logger.Info("ingested document",
			zap.String("document_id", outcome.DocumentID),
			zap.String("collection", outcome.Collection),
			zap.Int("chunks", outcome.ChunkCount),
		)
	case StatusSkipped:
		p.logger.Debug("skipped document",
			zap.String("document_id", outcome.DocumentID),
			zap.String("reason", outcome.Detail),
		)
	case StatusError:
		p.logger.Error("failed to ingest document",
			zap.String("path", path),
			zap.String("detail", outcome.Detail),
		)
	}
	return outcome
}

func (p *Pipeline) processFile(ctx context.Context, path, collectionHint string, collectionChecked bool) Outcome {
	id := p.parser.Parse(path)
	collection := collectionHint
	if collection == "" {
		collection = id.Collection("")
	}

	outcome := Outcome{
		Path:       path,
		DocumentID: id.String(),
		Collection: collection,
	}

	if !collectionChecked {
		if _, err := p.store.GetOrCreateCollection(ctx, collection); err != nil {
			return outcome.fail(fmt.Errorf("ensuring collection: %w", err))
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return outcome.fail(fmt.Errorf("stat: %w", err))
	}

	// Staleness is judged at document granularity through the first
	// chunk's stored processed_at.
	if !p.store.NeedsUpdate(ctx, collection, []string{id.ChunkID(1)}, info.ModTime()) {
		return outcome.skip("up to date")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return outcome.fail(fmt.Errorf("read: %w", err))
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return outcome.skip("no content")
	}

	chunks := chunker.Split(string(content))
	if len(chunks) == 0 {
		return outcome.skip("no chunks after splitting")
	}

	docMeta := p.parser.Metadata(id)
	processedAt := p.now()

	ids := make([]string, len(chunks))
	documents := make([]string, len(chunks))
	metadatas := make([]map[string]any, len(chunks))
	embeddings := make([][]float32, len(chunks))

	for i, chunk := range chunks {
		vector, err := p.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			return outcome.fail(fmt.Errorf("embedding chunk %d: %w", chunk.Number, err))
		}

		meta := identifier.ChunkMetadata{
			DocumentMetadata: docMeta,
			ChunkID:          id.ChunkID(chunk.Number),
			ChunkNumber:      chunk.Number,
			TotalChunks:      len(chunks),
			Tags:             chunk.Tags,
			ProcessedAt:      processedAt,
		}

		ids[i] = meta.ChunkID
		documents[i] = chunk.Content
		metadatas[i] = meta.Map()
		embeddings[i] = vector
	}

	// One batch per document. Chunk ids beyond the new count are left in
	// place when a document shrinks; id-based upsert only replaces ids it
	// is given. Known limitation.
	if err := p.store.Upsert(ctx, collection, ids, documents, metadatas, embeddings); err != nil {
		return outcome.fail(fmt.Errorf("upserting chunks: %w", err))
	}

	outcome.Status = StatusSuccess
	outcome.ChunkCount = len(chunks)
	return outcome
}

// ProcessDirectory recursively ingests every matching file under dir.
// Underscore-prefixed files and directories are skipped. The collection is
// checked once using the first file's identifier, then every file runs with
// the check elided. Per-file errors are recorded and the batch continues.
func (p *Pipeline) ProcessDirectory(ctx context.Context, dir, collectionHint string) (Summary, error) {
	files, err := p.listFiles(dir)
	if err != nil {
		return Summary{}, fmt.Errorf("listing %s: %w", dir, err)
	}

	var summary Summary
	if len(files) == 0 {
		p.logger.Info("no matching files", zap.String("dir", dir), zap.String("extension", p.extension))
		return summary, nil
	}

	collection := collectionHint
	if collection == "" {
		collection = p.parser.Parse(files[0]).Collection("")
	}
	if _, err := p.store.GetOrCreateCollection(ctx, collection); err != nil {
		return Summary{}, fmt.Errorf("ensuring collection %s: %w", collection, err)
	}

	for _, path := range files {
		outcome := p.ProcessFile(ctx, path, collection, true)
		summary.Outcomes = append(summary.Outcomes, outcome)
		switch outcome.Status {
		case StatusSuccess:
			summary.Succeeded++
		case StatusSkipped:
			summary.Skipped++
		case StatusError:
			summary.Failed++
		}
	}

	p.logger.Info("batch complete",
		zap.String("dir", dir),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// listFiles enumerates regular files with the configured extension,
// excluding underscore-prefixed names at any depth. Results follow WalkDir's
// lexical order, so batches are deterministic.
func (p *Pipeline) listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), "_") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), p.extension) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (o Outcome) fail(err error) Outcome {
	o.Status = StatusError
	o.Detail = err.Error()
	return o
}

func (o Outcome) skip(reason string) Outcome {
	o.Status = StatusSkipped
	o.Detail = reason
	return o
}
