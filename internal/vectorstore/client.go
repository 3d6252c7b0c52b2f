// Package vectorstore provides an HTTP client for the vector database's
// v2-style multi-tenant API (tenants -> databases -> collections).
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/radwerk/reportd/internal/identifier"
	"go.uber.org/zap"
)

// Embedder generates a vector embedding for a query text. Satisfied by
// embeddings.Service.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds connection settings for the vector store.
type Config struct {
	Host              string
	Port              int
	Tenant            string
	Database          string
	DefaultCollection string
	Timeout           time.Duration
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	if c.Tenant == "" || c.Database == "" {
		return fmt.Errorf("%w: tenant and database required", ErrInvalidConfig)
	}
	return nil
}

// Client talks to the vector store over HTTP. All methods are single
// synchronous calls; errors are terminal and never retried internally.
type Client struct {
	baseURL           string
	scopeURL          string
	defaultCollection string
	client            *http.Client
	embedder          Embedder
	logger            *zap.Logger
}

// NewClient creates a client and ensures the configured tenant and database
// exist, creating them when absent. Failure to ensure either scope is fatal
// to construction.
func NewClient(ctx context.Context, cfg Config, embedder Embedder, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base := fmt.Sprintf("http://%s:%d/api/v2", cfg.Host, cfg.Port)
	c := &Client{
		baseURL: base,
		scopeURL: fmt.Sprintf("%s/tenants/%s/databases/%s",
			base, url.PathEscape(cfg.Tenant), url.PathEscape(cfg.Database)),
		defaultCollection: cfg.DefaultCollection,
		client:            &http.Client{Timeout: cfg.Timeout},
		embedder:          embedder,
		logger:            logger,
	}

	if err := c.ensureTenantAndDatabase(ctx, cfg.Tenant, cfg.Database); err != nil {
		return nil, fmt.Errorf("ensuring tenant/database: %w", err)
	}

	return c, nil
}

// ensureTenantAndDatabase is an idempotent get-or-create for both scopes.
// A concurrent first-time creation race surfaces as "already exists", which
// is treated as success.
func (c *Client) ensureTenantAndDatabase(ctx context.Context, tenant, database string) error {
	tenantURL := c.baseURL + "/tenants/" + url.PathEscape(tenant)
	err := c.doJSON(ctx, http.MethodGet, tenantURL, nil, nil)
	if errors.Is(err, ErrNotFound) {
		err = c.doJSON(ctx, http.MethodPost, c.baseURL+"/tenants", createRequest{Name: tenant}, nil)
		if errors.Is(err, ErrAlreadyExists) {
			err = nil
		}
		if err == nil {
			c.logger.Info("created tenant", zap.String("tenant", tenant))
		}
	}
	if err != nil {
		return fmt.Errorf("tenant %s: %w", tenant, err)
	}

	dbURL := tenantURL + "/databases/" + url.PathEscape(database)
	err = c.doJSON(ctx, http.MethodGet, dbURL, nil, nil)
	if errors.Is(err, ErrNotFound) {
		err = c.doJSON(ctx, http.MethodPost, tenantURL+"/databases", createRequest{Name: database}, nil)
		if errors.Is(err, ErrAlreadyExists) {
			err = nil
		}
		if err == nil {
			c.logger.Info("created database", zap.String("database", database))
		}
	}
	if err != nil {
		return fmt.Errorf("database %s: %w", database, err)
	}

	return nil
}

// resolveName applies the configured fallback to empty collection names.
func (c *Client) resolveName(name string) string {
	if name == "" {
		return c.defaultCollection
	}
	return name
}

// ListCollections lists all collections in the tenant+database scope.
func (c *Client) ListCollections(ctx context.Context) ([]Collection, error) {
	var collections []Collection
	if err := c.doJSON(ctx, http.MethodGet, c.scopeURL+"/collections", nil, &collections); err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return collections, nil
}

// GetCollection looks up a collection by name. The wire protocol has no
// get-by-name, so the list response is scanned linearly. Returns ErrNotFound
// when absent.
func (c *Client) GetCollection(ctx context.Context, name string) (*Collection, error) {
	name = c.resolveName(name)

	collections, err := c.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	for i := range collections {
		if collections[i].Name == name {
			return &collections[i], nil
		}
	}
	return nil, fmt.Errorf("collection %s: %w", name, ErrNotFound)
}

// CreateCollection creates a collection with the given name. A concurrent
// "already exists" response is treated as success and resolved via get.
func (c *Client) CreateCollection(ctx context.Context, name string) (*Collection, error) {
	name = c.resolveName(name)

	var created Collection
	err := c.doJSON(ctx, http.MethodPost, c.scopeURL+"/collections", createRequest{Name: name}, &created)
	if errors.Is(err, ErrAlreadyExists) {
		return c.GetCollection(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", name, err)
	}

	c.logger.Info("created collection", zap.String("collection", name))
	return &created, nil
}

// GetOrCreateCollection returns the named collection, creating it when it
// does not exist yet.
func (c *Client) GetOrCreateCollection(ctx context.Context, name string) (*Collection, error) {
	collection, err := c.GetCollection(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return c.CreateCollection(ctx, name)
	}
	return collection, err
}

// Upsert inserts or replaces points in a collection. The four parallel
// slices must have equal length.
func (c *Client) Upsert(ctx context.Context, collectionName string, ids, documents []string, metadatas []map[string]any, embeddings [][]float32) error {
	n := len(ids)
	if len(documents) != n || len(metadatas) != n || len(embeddings) != n {
		return fmt.Errorf("%w: parallel arrays must have equal length (ids=%d documents=%d metadatas=%d embeddings=%d)",
			ErrInvalidConfig, n, len(documents), len(metadatas), len(embeddings))
	}

	collection, err := c.GetOrCreateCollection(ctx, collectionName)
	if err != nil {
		return err
	}

	req := upsertRequest{
		IDs:        ids,
		Documents:  documents,
		Metadatas:  metadatas,
		Embeddings: embeddings,
	}
	if err := c.doJSON(ctx, http.MethodPost, c.collectionURL(collection.ID)+"/upsert", req, nil); err != nil {
		return fmt.Errorf("upserting %d points into %s: %w", n, collection.Name, err)
	}

	c.logger.Debug("upserted points",
		zap.String("collection", collection.Name),
		zap.Int("count", n),
	)
	return nil
}

// Query embeds each query text and runs a similarity query, returning ranked
// hits grouped per query text. The optional where filter restricts hits by
// metadata equality (e.g. {"type": "template"}).
func (c *Client) Query(ctx context.Context, collectionName string, queryTexts []string, nResults int, where map[string]any) ([][]QueryResult, error) {
	if len(queryTexts) == 0 {
		return nil, fmt.Errorf("%w: query texts required", ErrInvalidConfig)
	}

	collection, err := c.GetCollection(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	queryEmbeddings := make([][]float32, len(queryTexts))
	for i, text := range queryTexts {
		vector, err := c.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding query %d: %w", i, err)
		}
		queryEmbeddings[i] = vector
	}

	req := queryRequest{
		QueryEmbeddings: queryEmbeddings,
		NResults:        nResults,
		Where:           where,
		Include:         []string{"documents", "metadatas", "distances"},
	}

	var resp queryResponse
	if err := c.doJSON(ctx, http.MethodPost, c.collectionURL(collection.ID)+"/query", req, &resp); err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection.Name, err)
	}

	results := make([][]QueryResult, len(resp.IDs))
	for q, ids := range resp.IDs {
		row := make([]QueryResult, len(ids))
		for i, id := range ids {
			hit := QueryResult{ID: id}
			if q < len(resp.Documents) && i < len(resp.Documents[q]) {
				hit.Document = resp.Documents[q][i]
			}
			if q < len(resp.Distances) && i < len(resp.Distances[q]) {
				hit.Distance = resp.Distances[q][i]
			}
			if q < len(resp.Metadatas) && i < len(resp.Metadatas[q]) {
				hit.Metadata = resp.Metadatas[q][i]
			}
			row[i] = hit
		}
		results[q] = row
	}

	c.logger.Debug("queried collection",
		zap.String("collection", collection.Name),
		zap.Int("queries", len(queryTexts)),
		zap.Int("limit", nResults),
	)
	return results, nil
}

// Get fetches points by id and/or metadata filter.
func (c *Client) Get(ctx context.Context, collectionName string, ids []string, where map[string]any, limit int, includeDocuments bool) ([]Record, error) {
	collection, err := c.GetCollection(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	include := []string{"metadatas"}
	if includeDocuments {
		include = append(include, "documents")
	}
	req := getRequest{
		IDs:     ids,
		Where:   where,
		Limit:   limit,
		Include: include,
	}

	var resp getResponse
	if err := c.doJSON(ctx, http.MethodPost, c.collectionURL(collection.ID)+"/get", req, &resp); err != nil {
		return nil, fmt.Errorf("getting points from %s: %w", collection.Name, err)
	}

	records := make([]Record, len(resp.IDs))
	for i, id := range resp.IDs {
		records[i] = Record{ID: id}
		if i < len(resp.Documents) {
			records[i].Document = resp.Documents[i]
		}
		if i < len(resp.Metadatas) {
			records[i].Metadata = resp.Metadatas[i]
		}
	}
	return records, nil
}

// NeedsUpdate reports whether the given document ids must be (re)indexed
// against the source file's modification time. Staleness is judged from the
// stored processed_at of the first fetched record.
//
// The check fails open: any retrieval error, missing record or unparseable
// timestamp yields true. Re-embedding is idempotent and cheap relative to
// serving stale search results, so extra work is preferred over a silent
// skip.
func (c *Client) NeedsUpdate(ctx context.Context, collectionName string, documentIDs []string, fileModified time.Time) bool {
	records, err := c.Get(ctx, collectionName, documentIDs, nil, 1, false)
	if err != nil {
		c.logger.Warn("staleness check failed, reindexing",
			zap.String("collection", c.resolveName(collectionName)),
			zap.Error(err),
		)
		return true
	}
	if len(records) == 0 {
		return true
	}

	processedAt, ok := identifier.ProcessedAtFrom(records[0].Metadata)
	if !ok {
		return true
	}
	return processedAt.Before(fileModified)
}

// Heartbeat checks store liveness.
func (c *Client) Heartbeat(ctx context.Context) (int64, error) {
	var resp heartbeatResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/heartbeat", nil, &resp); err != nil {
		return 0, fmt.Errorf("heartbeat: %w", err)
	}
	return resp.Heartbeat, nil
}

// Identity returns the store's identity document.
func (c *Client) Identity(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/identity", nil, &resp); err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	return resp, nil
}

func (c *Client) collectionURL(id string) string {
	return c.scopeURL + "/collections/" + url.PathEscape(id)
}

// doJSON performs one HTTP round trip with JSON bodies. Connection-level
// failures become *TransportError; status >= 400 becomes *UpstreamError
// (matching ErrNotFound for 404 and ErrAlreadyExists for 409).
func (c *Client) doJSON(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
