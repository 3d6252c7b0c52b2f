package retrieval

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/radwerk/reportd/internal/identifier"
	"github.com/radwerk/reportd/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	records  []vectorstore.Record
	getErr   error
	getWhere map[string]any

	queryResults [][]vectorstore.QueryResult
	queryErr     error
	queryWhere   map[string]any
	queryN       int
}

func (f *fakeStore) Get(_ context.Context, _ string, _ []string, where map[string]any, _ int, _ bool) ([]vectorstore.Record, error) {
	f.getWhere = where
	return f.records, f.getErr
}

func (f *fakeStore) Query(_ context.Context, _ string, _ []string, n int, where map[string]any) ([][]vectorstore.QueryResult, error) {
	f.queryWhere = where
	f.queryN = n
	return f.queryResults, f.queryErr
}

func record(docID string, chunk int, body string, docType identifier.DocType) vectorstore.Record {
	return vectorstore.Record{
		ID:       docID + "@" + strconv.Itoa(chunk),
		Document: body,
		Metadata: map[string]any{
			identifier.KeyDocumentID:  docID,
			identifier.KeyChunkNumber: float64(chunk), // json decodes numbers as float64
			identifier.KeyType:        string(docType),
		},
	}
}

func TestRetriever_Document(t *testing.T) {
	store := &fakeStore{records: []vectorstore.Record{
		record("reports:mri:2024:g287-jane-doe", 2, "para b", identifier.TypeReport),
		record("reports:mri:2024:g287-jane-doe", 1, "para a", identifier.TypeReport),
	}}
	r := NewRetriever(store, "reports", nil)

	text, err := r.Document(context.Background(), "reports:mri:2024:g287-jane-doe")
	require.NoError(t, err)
	assert.Equal(t, "para a\n\npara b", text, "chunks joined in chunk order")
	assert.Equal(t, "reports:mri:2024:g287-jane-doe", store.getWhere[identifier.KeyDocumentID])
}

func TestRetriever_Document_NotFound(t *testing.T) {
	r := NewRetriever(&fakeStore{}, "reports", nil)

	_, err := r.Document(context.Background(), "reports:missing")
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)
}

func TestRetriever_Document_StoreError(t *testing.T) {
	r := NewRetriever(&fakeStore{getErr: errors.New("store down")}, "reports", nil)

	_, err := r.Document(context.Background(), "reports:x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store down")
}

func TestRetriever_Template(t *testing.T) {
	store := &fakeStore{records: []vectorstore.Record{
		record("reports:mri:templates:knee", 1, "template part one", identifier.TypeTemplate),
		record("reports:mri:templates:knee", 2, "template part two", identifier.TypeTemplate),
		record("reports:ct:templates:head", 1, "other template", identifier.TypeTemplate),
	}}
	r := NewRetriever(store, "reports", nil)

	text, err := r.Template(context.Background(), "mri")
	require.NoError(t, err)
	assert.Equal(t, "template part one\n\ntemplate part two", text,
		"only the first matching template document is returned")

	assert.Equal(t, string(identifier.TypeTemplate), store.getWhere[identifier.KeyType])
	assert.Equal(t, "mri", store.getWhere[identifier.KeyModality])
}

func TestRetriever_Template_AnyModality(t *testing.T) {
	store := &fakeStore{records: []vectorstore.Record{
		record("reports:mri:templates:knee", 1, "template body", identifier.TypeTemplate),
	}}
	r := NewRetriever(store, "reports", nil)

	_, err := r.Template(context.Background(), "")
	require.NoError(t, err)
	_, hasModality := store.getWhere[identifier.KeyModality]
	assert.False(t, hasModality, "empty modality matches any template")
}

func TestRetriever_Template_NotFound(t *testing.T) {
	r := NewRetriever(&fakeStore{}, "reports", nil)

	_, err := r.Template(context.Background(), "mri")
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)
}

func TestRetriever_Examples(t *testing.T) {
	store := &fakeStore{queryResults: [][]vectorstore.QueryResult{{
		{ID: "a@1", Document: "example a", Distance: 0.1},
		{ID: "b@1", Document: "example b", Distance: 0.2},
		{ID: "c@1", Document: "", Distance: 0.3},
	}}}
	r := NewRetriever(store, "reports", nil)

	examples, err := r.Examples(context.Background(), "knee mri", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"example a", "example b"}, examples,
		"hits without a document body are dropped")
	assert.Equal(t, 3, store.queryN)
	assert.Equal(t, string(identifier.TypeReport), store.queryWhere[identifier.KeyType])
}

func TestRetriever_Examples_DefaultCount(t *testing.T) {
	store := &fakeStore{queryResults: [][]vectorstore.QueryResult{{}}}
	r := NewRetriever(store, "reports", nil)

	_, err := r.Examples(context.Background(), "query", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultExampleCount, store.queryN)
}
