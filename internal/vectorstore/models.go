package vectorstore

// Collection is a named partition of vectors within a tenant+database scope.
type Collection struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Record is one stored point: id, optional document text and metadata.
type Record struct {
	ID       string
	Document string
	Metadata map[string]any
}

// QueryResult is one ranked hit from a similarity query.
type QueryResult struct {
	ID       string
	Document string
	Distance float32
	Metadata map[string]any
}

// upsertRequest is the columnar upsert batch the store accepts.
type upsertRequest struct {
	IDs        []string         `json:"ids"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
	Embeddings [][]float32      `json:"embeddings"`
}

// queryRequest is the vector query body.
type queryRequest struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include"`
}

// queryResponse is the columnar query response, one row per query embedding.
type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Distances [][]float32        `json:"distances"`
	Metadatas [][]map[string]any `json:"metadatas"`
}

// getRequest is the point-get body.
type getRequest struct {
	IDs     []string       `json:"ids,omitempty"`
	Where   map[string]any `json:"where,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Include []string       `json:"include"`
}

// getResponse is the columnar point-get response.
type getResponse struct {
	IDs       []string         `json:"ids"`
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
}

// heartbeatResponse is the GET /heartbeat body.
type heartbeatResponse struct {
	Heartbeat int64 `json:"nanosecond heartbeat"`
}

// createRequest is the body for tenant, database and collection creation.
type createRequest struct {
	Name string `json:"name"`
}
