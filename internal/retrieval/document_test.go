package retrieval

import (
	"strings"
	"testing"

	"matrixchat/internal/model"
)

func TestChunkDocumentSections(t *testing.T) {
	r := NewDocumentRetriever()
	doc := model.Document{
		ID:   "doc1",
		Name: "Acme Q3.pdf",
		Content: "# Financials\n\nRevenue was $4.1M in Q3.\n\nGross margin held at 62%.\n\n" +
			"RISKS\n\nChurn rose to 8% in the enterprise segment.",
	}

	chunks := r.chunkDocument(doc)
	if len(chunks) != 1 {
		t.Fatalf("short content should stay in one chunk, got %d", len(chunks))
	}
	// The running section label is the one current at flush time.
	if chunks[0].Section != "RISKS" {
		t.Fatalf("chunk section = %q, want RISKS", chunks[0].Section)
	}
	if chunks[0].DocID != "doc1" || chunks[0].DocName != "Acme Q3.pdf" {
		t.Fatalf("chunk missing document identity: %+v", chunks[0])
	}
}

func TestChunkDocumentSplitsAtSizeLimit(t *testing.T) {
	r := &DocumentRetriever{ChunkSize: 100, ChunkOverlap: 0}

	para := strings.Repeat("word ", 16) // ~80 chars
	doc := model.Document{
		ID:      "doc1",
		Name:    "Long.pdf",
		Content: para + "\n\n" + para + "\n\n" + para,
	}

	chunks := r.chunkDocument(doc)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks at this size limit, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Content) > 100 {
			t.Fatalf("chunk %d exceeds size limit: %d chars", i, len(c.Content))
		}
	}
}

func TestChunkDocumentDeterministic(t *testing.T) {
	r := NewDocumentRetriever()
	doc := model.Document{ID: "doc1", Name: "A.pdf", Content: "# One\n\nalpha\n\nbeta\n\n# Two\n\ngamma"}

	first := r.chunkDocument(doc)
	second := r.chunkDocument(doc)
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestScoreChunkRelevance(t *testing.T) {
	r := NewDocumentRetriever()

	chunk := model.DocChunk{
		Content: "Churn rose to 8%. Enterprise churn is the main driver of churn overall.",
		Section: "Retention",
	}

	score := r.scoreChunkRelevance(chunk, []string{"churn"})
	// Three occurrences at 0.2 each.
	if score < 0.59 || score > 0.61 {
		t.Fatalf("score = %f, want ~0.6", score)
	}

	withSection := r.scoreChunkRelevance(chunk, []string{"churn", "retention"})
	if withSection != 1.0 {
		t.Fatalf("section match should push the capped score to 1.0, got %f", withSection)
	}

	if got := r.scoreChunkRelevance(chunk, []string{"valuation"}); got != 0 {
		t.Fatalf("unrelated terms should score 0, got %f", got)
	}
}

func TestDocumentRetrieve(t *testing.T) {
	r := NewDocumentRetriever()
	docs := []model.Document{
		{ID: "doc1", Name: "Acme Q3.pdf", Content: "# Retention\n\nChurn rose to 8%. Churn is concentrated in SMB."},
		{ID: "doc2", Name: "Globex Q3.pdf", Content: "# Financials\n\nRevenue was $2.3M with flat margins."},
	}

	chunks := r.Retrieve("how bad is churn", docs, DefaultMaxChunks, DefaultMinChunkRelevance)

	if len(chunks) != 1 {
		t.Fatalf("expected only the churn chunk, got %d", len(chunks))
	}
	if chunks[0].DocID != "doc1" {
		t.Fatalf("wrong document retrieved: %+v", chunks[0])
	}
	if chunks[0].RelevanceScore < DefaultMinChunkRelevance {
		t.Fatalf("returned chunk below threshold: %f", chunks[0].RelevanceScore)
	}
}

func TestDocumentRetrieveMaxChunks(t *testing.T) {
	r := NewDocumentRetriever()
	var docs []model.Document
	for i := 0; i < 8; i++ {
		docs = append(docs, model.Document{
			ID:      "doc" + strings.Repeat("x", i+1),
			Name:    "Doc.pdf",
			Content: "Churn commentary for this company.",
		})
	}

	chunks := r.Retrieve("churn analysis", docs, 3, DefaultMinChunkRelevance)
	if len(chunks) != 3 {
		t.Fatalf("expected maxChunks results, got %d", len(chunks))
	}
}

func TestDocumentFormatForContext(t *testing.T) {
	r := NewDocumentRetriever()

	if got := r.FormatForContext(nil); got != "No relevant document sections found." {
		t.Fatalf("empty chunks rendering = %q", got)
	}

	got := r.FormatForContext([]model.DocChunk{
		{DocID: "doc1", DocName: "Acme Q3.pdf", Section: "Retention", Content: "Churn rose to 8%."},
	})
	if !strings.Contains(got, "[Doc 1] (doc_id=doc1) Acme Q3.pdf (Section: Retention)") {
		t.Fatalf("missing doc header line: %q", got)
	}
	if !strings.Contains(got, "Content: Churn rose to 8%....") {
		t.Fatalf("missing content line: %q", got)
	}
}
