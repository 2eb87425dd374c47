// Package retrieval implements the deterministic, rule-based retrieval
// stages of the chat pipeline: matrix-first cell matching and document
// chunk fallback. Scoring is keyword-driven on purpose; there is no
// embedding search here.
package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"matrixchat/internal/model"
)

// Defaults for matrix retrieval.
const (
	DefaultMinCellRelevance   = 0.3
	DefaultSufficiencyMatches = 2
)

// semanticMappings maps query concepts to the keywords that imply them.
// A concept whose keyword list hits the query contributes its name to the
// term set; a concept term whose keywords also hit a metric label earns
// extra credit on top of any literal match.
var semanticMappings = map[string][]string{
	"revenue":   {"revenue", "arr", "mrr", "sales", "income", "earnings"},
	"margin":    {"margin", "profit", "gross margin", "net margin", "profitability"},
	"growth":    {"growth", "delta", "change", "increase", "yoy"},
	"leader":    {"leadership", "ceo", "executive", "management", "founder"},
	"risk":      {"risk", "threat", "challenge", "exposure"},
	"churn":     {"churn", "retention", "attrition", "customer loss"},
	"valuation": {"valuation", "pe", "price", "multiple", "cap"},
	"debt":      {"debt", "leverage", "loan", "liability"},
	"cash":      {"cash", "fcf", "free cash flow", "liquidity"},
	"employee":  {"employee", "headcount", "staff", "workforce"},
}

// MatrixRetriever scores structured matrix cells against a query and
// decides whether the matrix alone can answer it.
type MatrixRetriever struct{}

// NewMatrixRetriever creates a MatrixRetriever.
func NewMatrixRetriever() *MatrixRetriever {
	return &MatrixRetriever{}
}

// normalizeQuery extracts the matching term set for a query: every concept
// whose keyword list substring-matches the lowered query, plus every
// literal query word longer than 3 characters.
func (r *MatrixRetriever) normalizeQuery(query string) []string {
	queryLower := strings.ToLower(query)
	seen := make(map[string]bool)
	var terms []string

	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}

	// Concepts in a fixed order so the term set is deterministic.
	concepts := make([]string, 0, len(semanticMappings))
	for concept := range semanticMappings {
		concepts = append(concepts, concept)
	}
	sort.Strings(concepts)
	for _, concept := range concepts {
		for _, kw := range semanticMappings[concept] {
			if strings.Contains(queryLower, kw) {
				add(concept)
				break
			}
		}
	}

	for _, w := range strings.Fields(queryLower) {
		w = strings.TrimSpace(w)
		if len(w) > 3 {
			add(w)
		}
	}
	return terms
}

// scoreMetricRelevance scores a metric label against the term set: +1.0 per
// term that is a literal substring of the label, +0.8 per concept term
// whose keyword list also hits the label. The double credit for a
// concept+literal overlap is intentional. Capped at 1.0.
func (r *MatrixRetriever) scoreMetricRelevance(metricLabel string, queryTerms []string) float64 {
	labelLower := strings.ToLower(metricLabel)
	score := 0.0

	for _, term := range queryTerms {
		if strings.Contains(labelLower, term) {
			score += 1.0
		}
		if keywords, ok := semanticMappings[term]; ok {
			for _, kw := range keywords {
				if strings.Contains(labelLower, kw) {
					score += 0.8
					break
				}
			}
		}
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}

// Retrieve returns every populated cell of every metric whose label scores
// at least minRelevance against the query, sorted by descending relevance.
// Cells whose document is not part of the snapshot are skipped silently.
func (r *MatrixRetriever) Retrieve(
	query string,
	cells map[model.CellKey]model.Cell,
	metrics []model.Metric,
	documents []model.Document,
	minRelevance float64,
) []model.CellMatch {
	queryTerms := r.normalizeQuery(query)
	var matches []model.CellMatch

	for _, metric := range metrics {
		relevance := r.scoreMetricRelevance(metric.Label, queryTerms)
		if relevance < minRelevance {
			continue
		}
		// Walk documents in sync order so equal-score matches stay stable.
		for _, doc := range documents {
			cell, ok := cells[model.CellKey{DocID: doc.ID, MetricID: metric.ID}]
			if !ok || cell.Value == "" || cell.Value == model.EmptyValue {
				continue
			}
			matches = append(matches, model.CellMatch{
				DocID:          doc.ID,
				DocName:        doc.Name,
				MetricID:       metric.ID,
				MetricLabel:    metric.Label,
				Cell:           cell,
				RelevanceScore: relevance,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].RelevanceScore > matches[j].RelevanceScore
	})
	return matches
}

// HasSufficientData reports whether the matrix alone can answer the query:
// at least threshold High-confidence matches, or at least 2×threshold
// matches of any confidence.
func (r *MatrixRetriever) HasSufficientData(matches []model.CellMatch, threshold int) bool {
	highConfidence := 0
	for _, m := range matches {
		if m.Cell.Confidence == model.ConfidenceHigh {
			highConfidence++
		}
	}
	return highConfidence >= threshold || len(matches) >= threshold*2
}

// FormatForContext renders matches as the numbered context block sent to
// the model. The parenthesized ids are read back by citation enrichment.
func (r *MatrixRetriever) FormatForContext(matches []model.CellMatch) string {
	if len(matches) == 0 {
		return "No relevant matrix cells found."
	}

	lines := []string{"RELEVANT MATRIX CELLS:"}
	for i, match := range matches {
		lines = append(lines, fmt.Sprintf(
			"[Cell %d] (doc_id=%s, metric_id=%s) %s → %s: %s (Confidence: %s)",
			i+1, match.DocID, match.MetricID,
			match.DocName, match.MetricLabel,
			match.Cell.Value, match.Cell.Confidence,
		))
		if match.Cell.Reasoning != "" {
			lines = append(lines, fmt.Sprintf("   Reasoning: %s...", match.Cell.Reasoning))
		}
	}
	return strings.Join(lines, "\n")
}
