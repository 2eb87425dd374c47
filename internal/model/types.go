package model

import "time"

// Confidence levels reported for extracted cell values.
const (
	ConfidenceHigh        = "High"
	ConfidenceMedium      = "Medium"
	ConfidenceExploratory = "Exploratory"
)

// EmptyValue is the placeholder stored in cells that hold no data.
const EmptyValue = "—"

// Document is a source document pushed into the session context by the caller.
type Document struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Size    int    `json:"size"`
}

// DocSnippet is a named excerpt of a document used for schema inference.
type DocSnippet struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Metric defines a column of the matrix.
type Metric struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	// Type is one of "numeric", "qualitative", "binary" when set.
	Type string `json:"type,omitempty"`
}

// Cell holds the extracted value for one document×metric intersection.
type Cell struct {
	Value      string   `json:"value,omitempty"`
	IsLoading  bool     `json:"isLoading"`
	Confidence string   `json:"confidence,omitempty"`
	Reasoning  string   `json:"reasoning,omitempty"`
	Sources    []string `json:"sources,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// CellKey identifies a cell by its document and metric.
// The wire format "{docId}-{metricId}" is decoded once at the sync
// boundary; internally cells are always addressed by this composite key.
type CellKey struct {
	DocID    string
	MetricID string
}

// MatrixContext is the point-in-time matrix snapshot pushed by the caller.
// Cells are keyed by the wire format "{docId}-{metricId}".
type MatrixContext struct {
	Documents []Document      `json:"documents"`
	Metrics   []Metric        `json:"metrics"`
	Cells     map[string]Cell `json:"cells"`
}

// CellMatch is a matrix retrieval result: one cell scored against a query.
type CellMatch struct {
	DocID          string  `json:"doc_id"`
	DocName        string  `json:"doc_name"`
	MetricID       string  `json:"metric_id"`
	MetricLabel    string  `json:"metric_label"`
	Cell           Cell    `json:"cell"`
	RelevanceScore float64 `json:"relevance_score"`
}

// DocChunk is a document retrieval result: one scored chunk of content.
type DocChunk struct {
	DocID          string  `json:"doc_id"`
	DocName        string  `json:"doc_name"`
	Content        string  `json:"content"`
	Section        string  `json:"section,omitempty"`
	Page           *int    `json:"page,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Citation types.
const (
	CitationTypeCell     = "cell"
	CitationTypeDocument = "document"
)

// Citation is a normalized reference attached to an assistant message.
// Type discriminates between matrix-cell and document citations; the
// metric fields are set only for cells, section/page/excerpt only for
// documents. Index is 1-based and unique within one response.
type Citation struct {
	Type        string `json:"type"`
	Index       int    `json:"index"`
	DocID       string `json:"doc_id"`
	DocName     string `json:"doc_name"`
	MetricID    string `json:"metric_id,omitempty"`
	MetricLabel string `json:"metric_label,omitempty"`
	Value       string `json:"value,omitempty"`
	Section     string `json:"section,omitempty"`
	Page        *int   `json:"page,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`
}

// RawCitation is a citation object as returned by the generative model,
// before enrichment. Ids may be correct, placeholders, or missing; Index
// may refer to the 1-based position in the context block instead.
type RawCitation struct {
	Type        string `json:"type"`
	Index       *int   `json:"index,omitempty"`
	DocID       string `json:"doc_id"`
	DocName     string `json:"doc_name"`
	MetricID    string `json:"metric_id,omitempty"`
	MetricLabel string `json:"metric_label,omitempty"`
	Value       string `json:"value,omitempty"`
	Section     string `json:"section,omitempty"`
	Page        *int   `json:"page,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`
}

// ChatMessage is one turn of a session's conversation log. Messages are
// never mutated after creation and live only for the process lifetime.
type ChatMessage struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Citations []Citation `json:"citations,omitempty"`
}

// AnalyticalQuestion is a suggested question over the current matrix,
// paired with the chart type best suited to answer it.
type AnalyticalQuestion struct {
	ID                string   `json:"id"`
	Question          string   `json:"question"`
	Intent            string   `json:"intent"`
	MetricsInvolved   []string `json:"metrics_involved"`
	EntitiesInvolved  []string `json:"entities_involved"`
	VisualizationHint string   `json:"visualization_hint,omitempty"`
}

// ExtractionResult is the outcome of extracting one metric from a document.
type ExtractionResult struct {
	Value      string   `json:"value"`
	Reasoning  string   `json:"reasoning"`
	Confidence string   `json:"confidence"`
	Sources    []string `json:"sources"`
}

// ChatResult is the structured output of a context-grounded model call.
// The usage counts are nil when the model did not self-report them.
type ChatResult struct {
	Response          string        `json:"response"`
	Citations         []RawCitation `json:"citations"`
	Confidence        string        `json:"confidence"`
	MatrixCellsUsed   *int          `json:"matrix_cells_used,omitempty"`
	DocumentsSearched *int          `json:"documents_searched,omitempty"`
}

// Stream event types emitted during a streaming chat turn.
const (
	StreamEventText      = "text"
	StreamEventCitations = "citations"
	StreamEventDone      = "done"
	StreamEventError     = "error"
)

// StreamEvent is one event of a streaming chat response. Text events carry
// Content; the single citations event carries Citations (raw from the
// provider, normalized by the orchestrator before reaching the client).
type StreamEvent struct {
	Type         string        `json:"type"`
	Content      string        `json:"content,omitempty"`
	RawCitations []RawCitation `json:"-"`
	Citations    []Citation    `json:"citations,omitempty"`
	Error        string        `json:"error,omitempty"`
	MessageID    string        `json:"message_id,omitempty"`
}
