// Package questions suggests analytical questions over the current
// matrix and answers them with ready-to-render chart data. The model
// proposes the questions; answers are validated and repaired locally so
// the chart renderer only ever sees clean numeric points.
package questions

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"matrixchat/internal/contextutil"
	"matrixchat/internal/llm"
	"matrixchat/internal/model"
)

// DataPoint is one validated chart datum.
type DataPoint struct {
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	Highlight bool    `json:"highlight"`
}

// Visualization is a validated, ready-to-render chart payload.
type Visualization struct {
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	XAxis   map[string]any `json:"x_axis,omitempty"`
	YAxis   map[string]any `json:"y_axis,omitempty"`
	Data    []DataPoint    `json:"data"`
	Insight string         `json:"insight,omitempty"`
}

// Answer is the outcome of answering one analytical question. A nil
// Visualization means no chart could be produced; Error carries the
// provider failure when one occurred.
type Answer struct {
	AnswerSummary string         `json:"answer_summary"`
	Visualization *Visualization `json:"visualization"`
	Error         string         `json:"error,omitempty"`
}

// Service generates and answers analytical questions.
type Service struct {
	llm llm.Service
}

// NewService creates a question Service backed by the given model provider.
func NewService(llmService llm.Service) *Service {
	return &Service{llm: llmService}
}

// Generate suggests 3-5 analytical questions for the matrix snapshot.
// A provider failure degrades to deterministic fallback questions over
// the first metric columns rather than an error.
func (s *Service) Generate(ctx context.Context, documents []model.Document, metrics []model.Metric, cells map[model.CellKey]model.Cell) []model.AnalyticalQuestion {
	logger := contextutil.LoggerFromContext(ctx)

	matrixContext := buildMatrixContext(documents, metrics, cells)

	questions, err := s.llm.GenerateQuestions(ctx, matrixContext)
	if err != nil {
		logger.WarnContext(ctx, "question generation failed, using fallback", "error", err)
		questions = fallbackQuestions(metrics)
	}

	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = fmt.Sprintf("q%d", i+1)
		}
		if questions[i].Intent == "" {
			questions[i].Intent = "COMPARISON"
		}
		if questions[i].MetricsInvolved == nil {
			questions[i].MetricsInvolved = []string{}
		}
		if questions[i].EntitiesInvolved == nil {
			questions[i].EntitiesInvolved = []string{}
		}
	}
	if questions == nil {
		questions = []model.AnalyticalQuestion{}
	}

	logger.InfoContext(ctx, "generated analytical questions", "count", len(questions))
	return questions
}

// Answer turns one suggested question into a chart. The model's payload
// is validated and repaired; a provider failure yields an Answer with no
// visualization and the failure recorded in Error.
func (s *Service) Answer(ctx context.Context, question model.AnalyticalQuestion, documents []model.Document, metrics []model.Metric, cells map[model.CellKey]model.Cell) Answer {
	logger := contextutil.LoggerFromContext(ctx)

	matrixContext := buildMatrixContext(documents, metrics, cells)

	expected := make([]string, 0, len(documents))
	for _, doc := range documents {
		expected = append(expected, entityLabel(doc, metrics, cells))
	}
	fillValues := entityFillValues(documents, metrics, cells, question.MetricsInvolved)

	raw, err := s.llm.AnswerQuestion(ctx, question, matrixContext, expected)
	if err != nil {
		logger.ErrorContext(ctx, "question answering failed", "error", err, "question", question.Question)
		return Answer{
			AnswerSummary: "Unable to generate visualization",
			Error:         err.Error(),
		}
	}

	hint := question.VisualizationHint
	if hint == "" {
		hint = "BAR"
	}
	answer := fixAnswer(raw, expected, fillValues, hint)

	points := 0
	if answer.Visualization != nil {
		points = len(answer.Visualization.Data)
	}
	logger.InfoContext(ctx, "answered analytical question", "question", question.Question, "data_points", points)
	return answer
}

// parseNumber parses a cell value into a float, tolerating currency
// symbols, thousands separators, magnitude suffixes and percent signs.
// Deliberately looser than the visualization analyzer's parser: chart
// filling wants any value that can plausibly be plotted.
func parseNumber(raw string) (float64, bool) {
	if raw == "" || raw == model.EmptyValue {
		return 0, false
	}

	clean := raw
	for _, ch := range []string{"€", "$", "£", ",", " ", "\n", "\t"} {
		clean = strings.ReplaceAll(clean, ch, "")
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(clean, "M"), strings.HasSuffix(clean, "m"):
		multiplier = 1e6
		clean = clean[:len(clean)-1]
	case strings.HasSuffix(clean, "K"), strings.HasSuffix(clean, "k"):
		multiplier = 1e3
		clean = clean[:len(clean)-1]
	case strings.HasSuffix(clean, "B"), strings.HasSuffix(clean, "b"):
		multiplier = 1e9
		clean = clean[:len(clean)-1]
	case strings.HasSuffix(clean, "%"):
		clean = clean[:len(clean)-1]
	}

	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return v * multiplier, true
}

var yearInName = regexp.MustCompile(`20\d{2}`)

// entityLabel picks the chart label for a document: the value of a
// year-like column when one is filled, else a year found in a long
// document name, else the name itself.
func entityLabel(doc model.Document, metrics []model.Metric, cells map[model.CellKey]model.Cell) string {
	for _, m := range metrics {
		label := strings.ToLower(m.Label)
		if !strings.Contains(label, "year") && label != "period" && label != "date" {
			continue
		}
		if cell, ok := cells[model.CellKey{DocID: doc.ID, MetricID: m.ID}]; ok {
			if v := strings.TrimSpace(cell.Value); v != "" && v != model.EmptyValue {
				return v
			}
		}
	}

	name := doc.Name
	if name == "" {
		name = doc.ID
	}
	if len(name) > 12 {
		if year := yearInName.FindString(name); year != "" {
			return year
		}
	}
	return name
}

// buildMatrixContext renders the matrix as the text block both prompts
// consume: the raw table, the chart labels, and per-metric parsed
// numeric values with mean and deltas precomputed for the model.
func buildMatrixContext(documents []model.Document, metrics []model.Metric, cells map[model.CellKey]model.Cell) string {
	var b strings.Builder
	b.WriteString("=== RAW MATRIX ===\n\n")

	header := make([]string, 0, len(metrics)+1)
	header = append(header, "Entity")
	for _, m := range metrics {
		header = append(header, metricLabel(m))
	}
	headerLine := strings.Join(header, " | ")
	b.WriteString(headerLine + "\n")
	b.WriteString(strings.Repeat("-", len(headerLine)) + "\n")

	labels := make([]string, 0, len(documents))
	for _, doc := range documents {
		labels = append(labels, entityLabel(doc, metrics, cells))

		name := doc.Name
		if name == "" {
			name = doc.ID
		}
		row := make([]string, 0, len(metrics)+1)
		row = append(row, name)
		for _, m := range metrics {
			value := model.EmptyValue
			if cell, ok := cells[model.CellKey{DocID: doc.ID, MetricID: m.ID}]; ok && cell.Value != "" {
				value = cell.Value
			}
			row = append(row, value)
		}
		b.WriteString(strings.Join(row, " | ") + "\n")
	}

	b.WriteString("\n=== CHART LABELS (use these as labels in chart) ===\n")
	b.WriteString("Entity labels (in order): " + strings.Join(labels, ", ") + "\n")

	b.WriteString("\n=== PARSED NUMERIC VALUES (use these for charts) ===\n")
	for _, m := range metrics {
		b.WriteString("\n" + metricLabel(m) + ":\n")

		entities := make([]string, 0, len(documents))
		values := make([]float64, 0, len(documents))
		for i, doc := range documents {
			cell, ok := cells[model.CellKey{DocID: doc.ID, MetricID: m.ID}]
			if !ok {
				continue
			}
			v, numeric := parseNumber(cell.Value)
			if !numeric {
				continue
			}
			entities = append(entities, labels[i])
			values = append(values, v)
			fmt.Fprintf(&b, "  %s: %s\n", labels[i], strconv.FormatFloat(v, 'f', -1, 64))
		}

		if len(values) == 0 {
			b.WriteString("  (No numeric values - skip this metric)\n")
			continue
		}

		var sum float64
		for _, v := range values {
			sum += v
		}
		mean := sum / float64(len(values))
		fmt.Fprintf(&b, "  [COUNT: %d entities]\n", len(values))
		fmt.Fprintf(&b, "  [MEAN: %.2f]\n", mean)
		b.WriteString("  [DELTAS FROM MEAN - use for DELTA_BAR chart:]\n")
		for i, v := range values {
			fmt.Fprintf(&b, "    %s: %+.2f\n", entities[i], v-mean)
		}
	}

	metricLabels := make([]string, 0, len(metrics))
	for _, m := range metrics {
		metricLabels = append(metricLabels, m.Label)
	}
	fmt.Fprintf(&b, "\nTOTAL ENTITIES: %d\n", len(documents))
	fmt.Fprintf(&b, "METRICS: [%s]", strings.Join(metricLabels, ", "))

	return b.String()
}

func metricLabel(m model.Metric) string {
	if m.Label != "" {
		return m.Label
	}
	return m.ID
}

// fallbackQuestions builds deterministic questions over the first metric
// columns when the model call fails.
func fallbackQuestions(metrics []model.Metric) []model.AnalyticalQuestion {
	if len(metrics) == 0 {
		return []model.AnalyticalQuestion{}
	}
	labels := make([]string, 0, len(metrics))
	for _, m := range metrics {
		labels = append(labels, m.Label)
	}

	questions := []model.AnalyticalQuestion{
		{
			ID:                "q1",
			Question:          fmt.Sprintf("Which entity leads in %s?", labels[0]),
			Intent:            "COMPARISON",
			MetricsInvolved:   []string{labels[0]},
			EntitiesInvolved:  []string{"all"},
			VisualizationHint: "LOLLIPOP",
		},
		{
			ID:                "q2",
			Question:          fmt.Sprintf("How do entities differ from average %s?", labels[0]),
			Intent:            "DELTA",
			MetricsInvolved:   []string{labels[0]},
			EntitiesInvolved:  []string{"all"},
			VisualizationHint: "DELTA_BAR",
		},
	}
	if len(labels) >= 2 {
		questions = append(questions, model.AnalyticalQuestion{
			ID:                "q3",
			Question:          fmt.Sprintf("Compare %s across all entities", labels[0]),
			Intent:            "COMPARISON",
			MetricsInvolved:   []string{labels[0], labels[1]},
			EntitiesInvolved:  []string{"all"},
			VisualizationHint: "BAR",
		})
	}
	return questions
}

// entityFillValues resolves, per entity label, the first involved
// metric's numeric value. Metric labels are matched loosely against the
// involved labels (substring in either direction) because the model
// references metrics by label, not id. Used to fill entities the model
// leaves out of a chart.
func entityFillValues(documents []model.Document, metrics []model.Metric, cells map[model.CellKey]model.Cell, involved []string) map[string]float64 {
	matched := make([]model.Metric, 0, len(metrics))
	for _, m := range metrics {
		label := strings.ToLower(m.Label)
		for _, want := range involved {
			w := strings.ToLower(want)
			if strings.Contains(label, w) || strings.Contains(w, label) {
				matched = append(matched, m)
				break
			}
		}
	}

	values := make(map[string]float64)
	for _, doc := range documents {
		entity := entityLabel(doc, metrics, cells)
		if _, ok := values[entity]; ok {
			continue
		}
		for _, m := range matched {
			cell, ok := cells[model.CellKey{DocID: doc.ID, MetricID: m.ID}]
			if !ok {
				continue
			}
			if v, numeric := parseNumber(cell.Value); numeric {
				values[entity] = v
				break
			}
		}
	}
	return values
}

// fixAnswer validates the model's chart payload: string values are
// coerced to numbers, non-numeric points dropped, entities the model
// skipped filled back in from the matrix, and DELTA_BAR data converted
// to deltas from the mean when the model returned raw values.
func fixAnswer(raw llm.QuestionAnswer, expectedEntities []string, entityValues map[string]float64, chartTypeHint string) Answer {
	if raw.Visualization == nil {
		return Answer{AnswerSummary: raw.AnswerSummary}
	}
	viz := raw.Visualization
	if len(viz.Data) == 0 {
		return Answer{AnswerSummary: "No data available"}
	}

	points := make([]DataPoint, 0, len(viz.Data))
	seen := make(map[string]bool)
	for _, p := range viz.Data {
		var value float64
		switch v := p.Value.(type) {
		case float64:
			value = v
		case string:
			parsed, numeric := parseNumber(v)
			if !numeric {
				continue
			}
			value = parsed
		default:
			continue
		}

		label := strings.TrimSpace(p.Label)
		if label == "" {
			label = "Unknown"
		}
		points = append(points, DataPoint{Label: label, Value: value, Highlight: p.Highlight})
		seen[label] = true
	}

	// Fill entities the model skipped, matching labels loosely.
	for _, entity := range expectedEntities {
		found := false
		for label := range seen {
			if strings.Contains(label, entity) || strings.Contains(entity, label) {
				found = true
				break
			}
		}
		if found {
			continue
		}
		if value, ok := entityValues[entity]; ok {
			points = append(points, DataPoint{Label: entity, Value: value})
			seen[entity] = true
		}
	}

	if len(points) == 0 {
		return Answer{AnswerSummary: "No numeric data available"}
	}

	// Year-like labels sort chronologically.
	numericLabels := true
	for _, p := range points {
		if _, err := strconv.Atoi(p.Label); err != nil {
			numericLabels = false
			break
		}
	}
	if numericLabels {
		sort.Slice(points, func(i, j int) bool {
			a, _ := strconv.Atoi(points[i].Label)
			b, _ := strconv.Atoi(points[j].Label)
			return a < b
		})
	}

	highlighted := false
	for _, p := range points {
		if p.Highlight {
			highlighted = true
			break
		}
	}
	if !highlighted {
		points[maxAbsIndex(points)].Highlight = true
	}

	chartType := strings.ToUpper(viz.Type)
	if chartType == "" {
		chartType = strings.ToUpper(chartTypeHint)
	}
	if strings.Contains(chartType, "DELTA") {
		hasPositive, hasNegative := false, false
		for _, p := range points {
			if p.Value > 0 {
				hasPositive = true
			}
			if p.Value < 0 {
				hasNegative = true
			}
		}
		// Raw values instead of deviations: convert to deltas from mean.
		if !hasPositive || !hasNegative {
			var sum float64
			for _, p := range points {
				sum += p.Value
			}
			mean := sum / float64(len(points))
			for i := range points {
				points[i].Value -= mean
				points[i].Highlight = false
			}
			points[maxAbsIndex(points)].Highlight = true
		}
	}

	return Answer{
		AnswerSummary: raw.AnswerSummary,
		Visualization: &Visualization{
			Type:    chartType,
			Title:   viz.Title,
			XAxis:   viz.XAxis,
			YAxis:   viz.YAxis,
			Data:    points,
			Insight: viz.Insight,
		},
	}
}

func maxAbsIndex(points []DataPoint) int {
	idx := 0
	for i, p := range points {
		if math.Abs(p.Value) > math.Abs(points[idx].Value) {
			idx = i
		}
	}
	return idx
}
