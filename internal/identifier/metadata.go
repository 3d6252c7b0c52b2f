package identifier

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DocType discriminates report documents from templates.
type DocType string

// Document types.
const (
	TypeReport   DocType = "report"
	TypeTemplate DocType = "template"
)

// dateName matches a 6-digit date token followed by a hyphenated name.
var dateName = regexp.MustCompile(`^(\d{6})-(.+)$`)

// DocumentMetadata is the structured metadata derived from an identifier.
// Report is nil for templates and for identifiers too short to carry
// institution, year or date information.
type DocumentMetadata struct {
	DocumentID string
	Modality   string
	Type       DocType
	Name       string
	Report     *ReportDetails
}

// ReportDetails carries the report-only fields. Either Institution+Date or
// Year+Institution(+Registration) is populated, depending on whether the
// identifier's third segment is numeric.
type ReportDetails struct {
	Institution  string
	Year         string
	Registration string
	Date         string // ISO 8601 date, yyyy-mm-dd
}

// ChunkMetadata is the per-chunk envelope stored alongside each embedded
// chunk: the document metadata plus chunk-specific fields.
type ChunkMetadata struct {
	DocumentMetadata

	ChunkID     string
	ChunkNumber int
	TotalChunks int
	Tags        []string
	ProcessedAt time.Time
}

// Metadata derives document metadata from a canonical identifier. It is a
// pure function of the identifier and the parser configuration.
func (p *Parser) Metadata(id ID) DocumentMetadata {
	segments := id.Segments()

	meta := DocumentMetadata{
		DocumentID: id.String(),
		Type:       TypeReport,
	}
	if len(segments) >= 2 {
		meta.Modality = segments[1]
	}

	last := ""
	if len(segments) > 0 {
		last = segments[len(segments)-1]
	}

	for _, s := range segments {
		if s == templatesSegment {
			meta.Type = TypeTemplate
			break
		}
	}
	if meta.Type == TypeTemplate {
		meta.Name = hyphensToSpaces(last)
		return meta
	}

	// Identifiers with fewer than 3 segments carry no institution, year or
	// date information.
	if len(segments) < 3 {
		meta.Name = hyphensToSpaces(last)
		return meta
	}

	third := segments[2]
	if isNumeric(third) {
		details := &ReportDetails{
			Year:        third,
			Institution: p.defaultInstitution,
		}
		registration, name, found := strings.Cut(last, "-")
		if found && containsDigit(registration) {
			details.Registration = registration
			meta.Name = hyphensToSpaces(name)
		} else {
			meta.Name = hyphensToSpaces(last)
		}
		meta.Report = details
		return meta
	}

	details := &ReportDetails{Institution: third}
	if m := dateName.FindStringSubmatch(last); m != nil {
		details.Date = decodeDate(m[1])
		meta.Name = hyphensToSpaces(m[2])
	} else {
		meta.Name = hyphensToSpaces(last)
	}
	meta.Report = details
	return meta
}

// decodeDate converts a 6-digit YYMMDD token into an ISO date. Century
// inference uses a fixed pivot: two-digit years up to 70 map to the 2000s,
// the rest to the 1900s.
func decodeDate(token string) string {
	yy, _ := strconv.Atoi(token[0:2])
	mm, _ := strconv.Atoi(token[2:4])
	dd, _ := strconv.Atoi(token[4:6])

	year := 1900 + yy
	if yy <= 70 {
		year = 2000 + yy
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, mm, dd)
}

func hyphensToSpaces(s string) string {
	return strings.ReplaceAll(s, "-", " ")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// Payload metadata keys shared by the ingestion and query paths.
const (
	KeyDocumentID   = "document_id"
	KeyModality     = "modality"
	KeyType         = "type"
	KeyName         = "name"
	KeyInstitution  = "institution"
	KeyYear         = "year"
	KeyRegistration = "registration"
	KeyDate         = "date"
	KeyChunkID      = "chunk_id"
	KeyChunkNumber  = "chunk_number"
	KeyTotalChunks  = "total_chunks"
	KeyTags         = "tags"
	KeyProcessedAt  = "processed_at"
)

// Map flattens the chunk metadata into the scalar key/value payload the
// vector store accepts. Tags are comma-joined; ProcessedAt is RFC 3339.
func (m ChunkMetadata) Map() map[string]any {
	payload := map[string]any{
		KeyDocumentID:  m.DocumentID,
		KeyType:        string(m.Type),
		KeyName:        m.Name,
		KeyChunkID:     m.ChunkID,
		KeyChunkNumber: m.ChunkNumber,
		KeyTotalChunks: m.TotalChunks,
		KeyProcessedAt: m.ProcessedAt.UTC().Format(time.RFC3339),
	}
	if m.Modality != "" {
		payload[KeyModality] = m.Modality
	}
	if len(m.Tags) > 0 {
		payload[KeyTags] = strings.Join(m.Tags, ",")
	}
	if r := m.Report; r != nil {
		if r.Institution != "" {
			payload[KeyInstitution] = r.Institution
		}
		if r.Year != "" {
			payload[KeyYear] = r.Year
		}
		if r.Registration != "" {
			payload[KeyRegistration] = r.Registration
		}
		if r.Date != "" {
			payload[KeyDate] = r.Date
		}
	}
	return payload
}

// ProcessedAtFrom extracts the indexing timestamp from a stored metadata
// payload. The second return value is false when the field is absent or
// unparseable.
func ProcessedAtFrom(payload map[string]any) (time.Time, bool) {
	raw, ok := payload[KeyProcessedAt].(string)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
