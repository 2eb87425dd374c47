package storage

import "time"

// TemplateMetric is one metric column definition stored inside a template.
type TemplateMetric struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"` // numeric, qualitative, binary
}

// TemplateRecord represents an analysis template in the database.
type TemplateRecord struct {
	ID           string // UUID
	Name         string
	Subtitle     string
	Description  string
	Metrics      []TemplateMetric // Stored as a JSON array in the metrics column
	IsSystem     bool             // System templates cannot be modified or deleted
	ForkedFromID string           // UUID of the source template, empty if original
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReservoirDocumentRecord represents a stored source document in the database.
type ReservoirDocumentRecord struct {
	ID            string // UUID
	Filename      string
	FileType      string // txt, md, other
	FileSize      string // Human-readable, e.g. "4.2 KB"
	FileSizeBytes int64
	ContentHash   string // SHA256 hex string of raw content
	Content       string // Extracted text content
	CreatedAt     time.Time
}
