// Package retrieval fetches stored documents, templates and example snippets
// from the vector store for the generation path.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/radwerk/reportd/internal/identifier"
	"github.com/radwerk/reportd/internal/vectorstore"
	"go.uber.org/zap"
)

// DefaultExampleCount is the number of example snippets fetched when the
// caller does not say otherwise.
const DefaultExampleCount = 5

// Store is the vector-store surface the retriever reads through. Satisfied
// by vectorstore.Client.
type Store interface {
	Get(ctx context.Context, collectionName string, ids []string, where map[string]any, limit int, includeDocuments bool) ([]vectorstore.Record, error)
	Query(ctx context.Context, collectionName string, queryTexts []string, nResults int, where map[string]any) ([][]vectorstore.QueryResult, error)
}

// Retriever reads documents back out of a collection.
type Retriever struct {
	store      Store
	collection string
	logger     *zap.Logger
}

// NewRetriever creates a retriever bound to one collection. An empty
// collection name resolves to the store's configured default.
func NewRetriever(store Store, collection string, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, collection: collection, logger: logger}
}

// Document reassembles the full text of a document from its stored chunks,
// ordered by chunk number. Returns ErrNotFound when no chunks exist.
func (r *Retriever) Document(ctx context.Context, documentID string) (string, error) {
	records, err := r.store.Get(ctx, r.collection, nil,
		map[string]any{identifier.KeyDocumentID: documentID}, 0, true)
	if err != nil {
		return "", fmt.Errorf("fetching document %s: %w", documentID, err)
	}
	if len(records) == 0 {
		return "", fmt.Errorf("document %s: %w", documentID, vectorstore.ErrNotFound)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return chunkNumber(records[i].Metadata) < chunkNumber(records[j].Metadata)
	})

	text := ""
	for i, record := range records {
		if i > 0 {
			text += "\n\n"
		}
		text += record.Document
	}
	return text, nil
}

// Template returns the body of the first stored template document for the
// given modality. An empty modality matches any template. Returns ErrNotFound
// when no template is stored.
func (r *Retriever) Template(ctx context.Context, modality string) (string, error) {
	where := map[string]any{identifier.KeyType: string(identifier.TypeTemplate)}
	if modality != "" {
		where[identifier.KeyModality] = modality
	}

	records, err := r.store.Get(ctx, r.collection, nil, where, 0, true)
	if err != nil {
		return "", fmt.Errorf("fetching template: %w", err)
	}
	if len(records) == 0 {
		return "", fmt.Errorf("template (modality %q): %w", modality, vectorstore.ErrNotFound)
	}

	// Chunks of several templates may come back; keep the first document.
	first, _ := records[0].Metadata[identifier.KeyDocumentID].(string)
	var chunks []vectorstore.Record
	for _, record := range records {
		if id, _ := record.Metadata[identifier.KeyDocumentID].(string); id == first {
			chunks = append(chunks, record)
		}
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunkNumber(chunks[i].Metadata) < chunkNumber(chunks[j].Metadata)
	})

	text := ""
	for i, chunk := range chunks {
		if i > 0 {
			text += "\n\n"
		}
		text += chunk.Document
	}
	return text, nil
}

// Examples runs a similarity query over stored reports and returns the top
// matching chunk bodies. count <= 0 falls back to DefaultExampleCount.
func (r *Retriever) Examples(ctx context.Context, query string, count int) ([]string, error) {
	if count <= 0 {
		count = DefaultExampleCount
	}

	results, err := r.store.Query(ctx, r.collection, []string{query}, count,
		map[string]any{identifier.KeyType: string(identifier.TypeReport)})
	if err != nil {
		return nil, fmt.Errorf("querying examples: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	examples := make([]string, 0, len(results[0]))
	for _, hit := range results[0] {
		if hit.Document != "" {
			examples = append(examples, hit.Document)
		}
	}
	r.logger.Debug("retrieved examples",
		zap.String("query", query),
		zap.Int("count", len(examples)),
	)
	return examples, nil
}

// chunkNumber reads the chunk number from a stored metadata payload. JSON
// decoding yields float64 for numbers; freshly built payloads carry int.
func chunkNumber(metadata map[string]any) int {
	switch v := metadata[identifier.KeyChunkNumber].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
