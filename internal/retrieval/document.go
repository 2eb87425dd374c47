package retrieval

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"matrixchat/internal/model"
)

// Defaults for document retrieval.
const (
	DefaultChunkSize         = 2000
	DefaultChunkOverlap      = 200
	DefaultMaxChunks         = 5
	DefaultMinChunkRelevance = 0.2
)

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	// A paragraph is a section header when it is a single markdown-style
	// #-prefixed line or a single all-caps line.
	sectionHeader = regexp.MustCompile(`^#+\s*(.+)$|^([A-Z][A-Z\s]+)$`)
)

// DocumentRetriever chunks free-text documents and scores the chunks
// against a query. It is only consulted when the matrix is insufficient.
type DocumentRetriever struct {
	ChunkSize int
	// ChunkOverlap is configured but not applied by the current chunking
	// strategy; chunks do not overlap.
	ChunkOverlap int
}

// NewDocumentRetriever creates a DocumentRetriever with default sizing.
func NewDocumentRetriever() *DocumentRetriever {
	return &DocumentRetriever{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
}

// chunkDocument splits content on blank-line boundaries and accumulates
// paragraphs into chunks of at most ChunkSize characters. A running section
// label is updated whenever a paragraph matches the header heuristic; each
// chunk is tagged with the section current at flush time. Chunking is
// deterministic: identical content always yields identical chunks.
func (r *DocumentRetriever) chunkDocument(doc model.Document) []model.DocChunk {
	paragraphs := paragraphSplit.Split(doc.Content, -1)

	var chunks []model.DocChunk
	currentChunk := ""
	currentSection := ""

	for _, para := range paragraphs {
		if m := sectionHeader.FindStringSubmatch(strings.TrimSpace(para)); m != nil {
			if m[1] != "" {
				currentSection = m[1]
			} else {
				currentSection = m[2]
			}
		}

		if len(currentChunk)+len(para) > r.ChunkSize {
			if currentChunk != "" {
				chunks = append(chunks, model.DocChunk{
					DocID:   doc.ID,
					DocName: doc.Name,
					Content: strings.TrimSpace(currentChunk),
					Section: currentSection,
				})
			}
			currentChunk = para
		} else if currentChunk != "" {
			currentChunk += "\n\n" + para
		} else {
			currentChunk = para
		}
	}

	if currentChunk != "" {
		chunks = append(chunks, model.DocChunk{
			DocID:   doc.ID,
			DocName: doc.Name,
			Content: strings.TrimSpace(currentChunk),
			Section: currentSection,
		})
	}

	return chunks
}

// scoreChunkRelevance scores a chunk: per term, min(occurrences×0.2, 1.0);
// +0.5 per term appearing in the section label; total capped at 1.0.
func (r *DocumentRetriever) scoreChunkRelevance(chunk model.DocChunk, queryTerms []string) float64 {
	contentLower := strings.ToLower(chunk.Content)
	score := 0.0

	for _, term := range queryTerms {
		count := strings.Count(contentLower, strings.ToLower(term))
		if count > 0 {
			termScore := float64(count) * 0.2
			if termScore > 1.0 {
				termScore = 1.0
			}
			score += termScore
		}
	}

	if chunk.Section != "" {
		sectionLower := strings.ToLower(chunk.Section)
		for _, term := range queryTerms {
			if strings.Contains(sectionLower, strings.ToLower(term)) {
				score += 0.5
			}
		}
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}

// Retrieve chunks every document, scores the chunks against the query
// words longer than 3 characters, and returns the top maxChunks at or
// above minRelevance, sorted by descending score.
func (r *DocumentRetriever) Retrieve(
	query string,
	documents []model.Document,
	maxChunks int,
	minRelevance float64,
) []model.DocChunk {
	var queryTerms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if w = strings.TrimSpace(w); len(w) > 3 {
			queryTerms = append(queryTerms, w)
		}
	}

	var allChunks []model.DocChunk
	for _, doc := range documents {
		for _, chunk := range r.chunkDocument(doc) {
			chunk.RelevanceScore = r.scoreChunkRelevance(chunk, queryTerms)
			if chunk.RelevanceScore >= minRelevance {
				allChunks = append(allChunks, chunk)
			}
		}
	}

	sort.SliceStable(allChunks, func(i, j int) bool {
		return allChunks[i].RelevanceScore > allChunks[j].RelevanceScore
	})
	if len(allChunks) > maxChunks {
		allChunks = allChunks[:maxChunks]
	}
	return allChunks
}

// FormatForContext renders chunks as the numbered context block sent to
// the model. The parenthesized doc ids are read back by citation
// enrichment.
func (r *DocumentRetriever) FormatForContext(chunks []model.DocChunk) string {
	if len(chunks) == 0 {
		return "No relevant document sections found."
	}

	lines := []string{"RELEVANT DOCUMENT SECTIONS:"}
	for i, chunk := range chunks {
		sectionInfo := ""
		if chunk.Section != "" {
			sectionInfo = fmt.Sprintf(" (Section: %s)", chunk.Section)
		}
		lines = append(lines, fmt.Sprintf("\n[Doc %d] (doc_id=%s) %s%s", i+1, chunk.DocID, chunk.DocName, sectionInfo))
		lines = append(lines, fmt.Sprintf("Content: %s...", chunk.Content))
	}
	return strings.Join(lines, "\n")
}
