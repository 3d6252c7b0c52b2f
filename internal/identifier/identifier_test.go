package identifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	return NewParser(Config{
		BasePath:           "/var/wiki/data/pages/reports",
		DefaultInstitution: "internal",
	})
}

func TestParser_Parse(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name  string
		input string
		want  ID
	}{
		{
			name:  "path under base",
			input: "/var/wiki/data/pages/reports/mri/2024/g287-jane-doe.txt",
			want:  "reports:mri:2024:g287-jane-doe",
		},
		{
			name:  "path outside base keeps segments",
			input: "mri/templates/jane-doe.txt",
			want:  "reports:mri:templates:jane-doe",
		},
		{
			name:  "already canonical id",
			input: "reports:mri:2024:g287-jane-doe",
			want:  "reports:mri:2024:g287-jane-doe",
		},
		{
			name:  "id without root gets root prepended",
			input: "mri:medima:250620-ivan-aisha",
			want:  "reports:mri:medima:250620-ivan-aisha",
		},
		{
			name:  "uppercase is normalized",
			input: "reports:MRI:2024:G287-Jane-Doe",
			want:  "reports:mri:2024:g287-jane-doe",
		},
		{
			name:  "empty input yields root",
			input: "",
			want:  "reports",
		},
		{
			name:  "degenerate single segment",
			input: "stray.txt",
			want:  "reports:stray",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Parse(tt.input))
		})
	}
}

func TestParser_ParseDeterministic(t *testing.T) {
	p := newTestParser()
	inputs := []string{
		"/var/wiki/data/pages/reports/mri/2024/g287-jane-doe.txt",
		"reports:ct:medima:250620-ivan-aisha",
		"",
		"///",
		"..",
	}
	for _, in := range inputs {
		assert.Equal(t, p.Parse(in), p.Parse(in), "input %q", in)
	}
}

func TestID_Collection(t *testing.T) {
	assert.Equal(t, "reports", ID("reports:mri:2024:g287-jane-doe").Collection("fallback"))
	assert.Equal(t, "fallback", ID("").Collection("fallback"))
}

func TestID_ChunkID(t *testing.T) {
	id := ID("reports:mri:2024:g287-jane-doe")
	assert.Equal(t, "reports:mri:2024:g287-jane-doe@1", id.ChunkID(1))
	assert.Equal(t, "reports:mri:2024:g287-jane-doe@12", id.ChunkID(12))
}

func TestParser_Metadata_YearRegistration(t *testing.T) {
	p := newTestParser()

	meta := p.Metadata("reports:mri:2024:g287-jane-doe")

	assert.Equal(t, "reports:mri:2024:g287-jane-doe", meta.DocumentID)
	assert.Equal(t, "mri", meta.Modality)
	assert.Equal(t, TypeReport, meta.Type)
	assert.Equal(t, "jane doe", meta.Name)
	require.NotNil(t, meta.Report)
	assert.Equal(t, "2024", meta.Report.Year)
	assert.Equal(t, "internal", meta.Report.Institution)
	assert.Equal(t, "g287", meta.Report.Registration)
	assert.Empty(t, meta.Report.Date)
}

func TestParser_Metadata_InstitutionDate(t *testing.T) {
	p := newTestParser()

	meta := p.Metadata("reports:mri:medima:250620-ivan-aisha")

	assert.Equal(t, "mri", meta.Modality)
	assert.Equal(t, TypeReport, meta.Type)
	assert.Equal(t, "ivan aisha", meta.Name)
	require.NotNil(t, meta.Report)
	assert.Equal(t, "medima", meta.Report.Institution)
	assert.Equal(t, "2025-06-20", meta.Report.Date)
	assert.Empty(t, meta.Report.Year)
	assert.Empty(t, meta.Report.Registration)
}

func TestParser_Metadata_Template(t *testing.T) {
	p := newTestParser()

	meta := p.Metadata("reports:mri:templates:jane-doe")

	assert.Equal(t, TypeTemplate, meta.Type)
	assert.Equal(t, "jane doe", meta.Name)
	assert.Equal(t, "mri", meta.Modality)
	assert.Nil(t, meta.Report, "templates carry no institution/date/year")
}

func TestParser_Metadata_YearWithoutRegistration(t *testing.T) {
	p := newTestParser()

	// First hyphen-split token has no digit, so the whole segment is a name.
	meta := p.Metadata("reports:mri:2024:jane-doe")

	assert.Equal(t, "jane doe", meta.Name)
	require.NotNil(t, meta.Report)
	assert.Empty(t, meta.Report.Registration)
	assert.Equal(t, "2024", meta.Report.Year)
}

func TestParser_Metadata_InstitutionWithoutDate(t *testing.T) {
	p := newTestParser()

	meta := p.Metadata("reports:mri:medima:jane-doe")

	assert.Equal(t, "jane doe", meta.Name)
	require.NotNil(t, meta.Report)
	assert.Equal(t, "medima", meta.Report.Institution)
	assert.Empty(t, meta.Report.Date)
}

func TestParser_Metadata_ShortIdentifier(t *testing.T) {
	p := newTestParser()

	meta := p.Metadata("reports:mri")

	assert.Equal(t, "mri", meta.Modality)
	assert.Nil(t, meta.Report)
}

func TestDecodeDate_CenturyPivot(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"250620", "2025-06-20"},
		{"700101", "2070-01-01"},
		{"710101", "1971-01-01"},
		{"991231", "1999-12-31"},
		{"000102", "2000-01-02"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, decodeDate(tt.token), "token %s", tt.token)
	}
}

func TestChunkMetadata_Map(t *testing.T) {
	p := newTestParser()
	docMeta := p.Metadata("reports:mri:2024:g287-jane-doe")

	processed := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	meta := ChunkMetadata{
		DocumentMetadata: docMeta,
		ChunkID:          "reports:mri:2024:g287-jane-doe@2",
		ChunkNumber:      2,
		TotalChunks:      5,
		Tags:             []string{"findings", "impression"},
		ProcessedAt:      processed,
	}

	payload := meta.Map()

	assert.Equal(t, "reports:mri:2024:g287-jane-doe", payload[KeyDocumentID])
	assert.Equal(t, "report", payload[KeyType])
	assert.Equal(t, "g287", payload[KeyRegistration])
	assert.Equal(t, "2024", payload[KeyYear])
	assert.Equal(t, 2, payload[KeyChunkNumber])
	assert.Equal(t, 5, payload[KeyTotalChunks])
	assert.Equal(t, "findings,impression", payload[KeyTags])
	assert.Equal(t, "2026-08-29T10:00:00Z", payload[KeyProcessedAt])

	ts, ok := ProcessedAtFrom(payload)
	require.True(t, ok)
	assert.True(t, ts.Equal(processed))
}

func TestProcessedAtFrom_Missing(t *testing.T) {
	_, ok := ProcessedAtFrom(map[string]any{})
	assert.False(t, ok)

	_, ok = ProcessedAtFrom(map[string]any{KeyProcessedAt: "not-a-time"})
	assert.False(t, ok)
}
