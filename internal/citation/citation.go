// Package citation reconciles the generative model's free-form citation
// output with the retrieval results that were actually sent to it. The
// model may return correct ids, placeholders, or context-block positions;
// it may leak raw metadata into the response text; and its inline [n]
// markers rarely line up with its citation indices. Enrichment, leakage
// cleanup and normalization repair all of that without ever failing the
// request.
package citation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"matrixchat/internal/model"
)

var (
	// [Doc 1] (doc_id=...) or [Cell 2] (doc_id=..., metric_id=...) → [1].
	// Must run before the bare pattern or the parenthetical survives.
	leakageWithMeta = regexp.MustCompile(`\[(Doc|Cell)\s*(\d+)\]\s*\([^)]*\)`)
	leakageBare     = regexp.MustCompile(`\[(Doc|Cell)\s*(\d+)\]`)
	leakageOrphan   = regexp.MustCompile(`\s*\(doc_id=[^)]*\)`)

	refPattern = regexp.MustCompile(`\[(\d+)\]`)
)

// isPlaceholderID reports whether a model-supplied id is unusable: empty,
// the literal "...", or too short to be a real id.
func isPlaceholderID(id string) bool {
	return id == "" || id == "..." || len(id) < 5
}

// Enrich maps raw citations back to real ids using the 1-based positional
// maps built from the context blocks. A citation whose doc id looks like a
// placeholder is rewritten from the map entry at its index; an index that
// misses the map falls back to the nearest in-range position. Citations of
// unrecognized type pass through unchanged.
func Enrich(rawCitations []model.RawCitation, cellMap []model.CellMatch, docMap []model.DocChunk) []model.RawCitation {
	enriched := make([]model.RawCitation, 0, len(rawCitations))

	for _, c := range rawCitations {
		idx := 0
		if c.Index != nil {
			idx = *c.Index
		}

		switch c.Type {
		case model.CitationTypeCell:
			if isPlaceholderID(c.DocID) {
				if idx >= 1 && idx <= len(cellMap) {
					match := cellMap[idx-1]
					c.DocID = match.DocID
					c.DocName = match.DocName
					c.MetricID = match.MetricID
					c.MetricLabel = match.MetricLabel
					c.Value = match.Cell.Value
				} else if len(cellMap) > 0 {
					pos := 0
					if idx > 0 {
						pos = min(idx-1, len(cellMap)-1)
					}
					match := cellMap[pos]
					c.DocID = match.DocID
					c.DocName = match.DocName
					c.MetricID = match.MetricID
					c.MetricLabel = match.MetricLabel
					c.Value = match.Cell.Value
				}
			}
		case model.CitationTypeDocument:
			if isPlaceholderID(c.DocID) {
				if idx >= 1 && idx <= len(docMap) {
					chunk := docMap[idx-1]
					c.DocID = chunk.DocID
					c.DocName = chunk.DocName
					c.Section = chunk.Section
					c.Excerpt = chunk.Content
				} else if len(docMap) > 0 {
					pos := 0
					if idx > 0 {
						pos = min(idx-1, len(docMap)-1)
					}
					chunk := docMap[pos]
					c.DocID = chunk.DocID
					c.DocName = chunk.DocName
					c.Section = chunk.Section
					c.Excerpt = chunk.Content
				}
			}
		}

		enriched = append(enriched, c)
	}

	return enriched
}

// CleanLeakage strips raw citation metadata the model emitted inline, e.g.
// "[Doc 1] (doc_id=N_6F03AD)" becomes "[1]". The full pattern runs before
// the bare one, then any orphaned (doc_id=...) fragments are removed.
func CleanLeakage(content string) string {
	content = leakageWithMeta.ReplaceAllString(content, "[$2]")
	content = leakageBare.ReplaceAllString(content, "[$2]")
	content = leakageOrphan.ReplaceAllString(content, "")
	return content
}

// Normalize rewrites the inline [n] references of a response so that they
// are sequential from 1 in first-appearance order, and returns the typed
// citation list renumbered to match. An old reference resolves first
// against a raw citation carrying the same index, then positionally; a
// reference that resolves to nothing is left unchanged in the text. When
// the text has no references, or no citations were returned, the citations
// fall back to plain sequential parsing with the content untouched.
func Normalize(content string, rawCitations []model.RawCitation) (string, []model.Citation) {
	content = CleanLeakage(content)

	var uniqueRefs []string
	seen := make(map[string]bool)
	for _, m := range refPattern.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			uniqueRefs = append(uniqueRefs, m[1])
		}
	}

	if len(uniqueRefs) == 0 || len(rawCitations) == 0 {
		return content, Parse(rawCitations)
	}

	citationByIndex := make(map[string]model.RawCitation)
	for _, c := range rawCitations {
		if c.Index != nil {
			citationByIndex[strconv.Itoa(*c.Index)] = c
		}
	}

	var normalized []model.Citation
	oldToNew := make(map[string]int)

	for i, oldRef := range uniqueRefs {
		newIndex := i + 1

		citationData, ok := citationByIndex[oldRef]
		if !ok && len(rawCitations) >= newIndex {
			citationData = rawCitations[newIndex-1]
			ok = true
		}
		if !ok {
			// No citation resolves for this reference; its [n] markers
			// stay as-is in the text.
			continue
		}

		oldToNew[oldRef] = newIndex

		switch citationData.Type {
		case model.CitationTypeCell:
			normalized = append(normalized, model.Citation{
				Type:        model.CitationTypeCell,
				Index:       newIndex,
				DocID:       citationData.DocID,
				DocName:     orUnknown(citationData.DocName),
				MetricID:    citationData.MetricID,
				MetricLabel: orUnknown(citationData.MetricLabel),
				Value:       citationData.Value,
			})
		case model.CitationTypeDocument:
			normalized = append(normalized, model.Citation{
				Type:    model.CitationTypeDocument,
				Index:   newIndex,
				DocID:   citationData.DocID,
				DocName: orUnknown(citationData.DocName),
				Section: citationData.Section,
				Page:    citationData.Page,
				Excerpt: citationData.Excerpt,
			})
		}
	}

	normalizedContent := refPattern.ReplaceAllStringFunc(content, func(ref string) string {
		oldRef := ref[1 : len(ref)-1]
		if newIdx, ok := oldToNew[oldRef]; ok {
			return fmt.Sprintf("[%d]", newIdx)
		}
		return ref
	})

	return normalizedContent, normalized
}

// Parse converts raw citations into typed ones with their input position
// as index, skipping entries of unrecognized type.
func Parse(rawCitations []model.RawCitation) []model.Citation {
	var citations []model.Citation
	for i, c := range rawCitations {
		switch c.Type {
		case model.CitationTypeCell:
			citations = append(citations, model.Citation{
				Type:        model.CitationTypeCell,
				Index:       i + 1,
				DocID:       c.DocID,
				DocName:     orUnknown(c.DocName),
				MetricID:    c.MetricID,
				MetricLabel: orUnknown(c.MetricLabel),
				Value:       c.Value,
			})
		case model.CitationTypeDocument:
			citations = append(citations, model.Citation{
				Type:    model.CitationTypeDocument,
				Index:   i + 1,
				DocID:   c.DocID,
				DocName: orUnknown(c.DocName),
				Section: c.Section,
				Page:    c.Page,
				Excerpt: c.Excerpt,
			})
		}
	}
	return citations
}

// BuildFromMatches constructs a citation list directly from retrieval
// results, matrix cells first, numbered sequentially.
func BuildFromMatches(cellMatches []model.CellMatch, docChunks []model.DocChunk) []model.Citation {
	citations := make([]model.Citation, 0, len(cellMatches)+len(docChunks))

	for _, match := range cellMatches {
		citations = append(citations, model.Citation{
			Type:        model.CitationTypeCell,
			Index:       len(citations) + 1,
			DocID:       match.DocID,
			DocName:     match.DocName,
			MetricID:    match.MetricID,
			MetricLabel: match.MetricLabel,
			Value:       match.Cell.Value,
		})
	}
	for _, chunk := range docChunks {
		citations = append(citations, model.Citation{
			Type:    model.CitationTypeDocument,
			Index:   len(citations) + 1,
			DocID:   chunk.DocID,
			DocName: chunk.DocName,
			Section: chunk.Section,
			Page:    chunk.Page,
			Excerpt: chunk.Content,
		})
	}
	return citations
}

// FormatReferenceList renders citations as a plain-text references footer.
func FormatReferenceList(citations []model.Citation) string {
	if len(citations) == 0 {
		return ""
	}

	lines := []string{"\n---\nREFERENCES:"}
	for _, c := range citations {
		if c.Type == model.CitationTypeCell {
			lines = append(lines, fmt.Sprintf("[%d] Matrix Cell: %s → %s", c.Index, c.DocName, c.MetricLabel))
		} else {
			section := ""
			if c.Section != "" {
				section = fmt.Sprintf(" (%s)", c.Section)
			}
			lines = append(lines, fmt.Sprintf("[%d] Document: %s%s", c.Index, c.DocName, section))
		}
	}
	return strings.Join(lines, "\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
