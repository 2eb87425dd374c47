// Package viz analyzes matrix columns for visualization: numeric value
// parsing, analytical intent resolution, and chart type selection. The
// chart orchestrator model makes the call when available; a deterministic
// rule-based path covers every column the model declines, times out on,
// or answers badly.
package viz

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"matrixchat/internal/contextutil"
	"matrixchat/internal/llm"
	"matrixchat/internal/model"
)

// Analytical intents.
const (
	IntentTrend        = "trend"
	IntentDistribution = "distribution"
	IntentComparison   = "comparison"
	IntentDelta        = "delta"
	IntentRelationship = "relationship"
	IntentComposition  = "composition"
)

// Chart types.
const (
	ChartLine      = "line"
	ChartArea      = "area"
	ChartHistogram = "histogram"
	ChartBoxplot   = "boxplot"
	ChartScatter   = "scatter"
	ChartSlope     = "slope"
	ChartDeltaBar  = "delta_bar"
	ChartLollipop  = "lollipop"
)

// Unit types detected by value parsing.
const (
	UnitPercentage = "percentage"
	UnitCurrency   = "currency"
	UnitMultiple   = "multiple"
	UnitNumeric    = "numeric"
)

// DefaultLLMTimeout bounds a single orchestrator call.
const DefaultLLMTimeout = 5 * time.Second

var (
	percentagePattern = regexp.MustCompile(`(?i)^[\d,]+\.?\d*\s*%$`)
	currencyPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\$[\d,]+\.?\d*[kmb]?$`),
		regexp.MustCompile(`(?i)^[\d,]+\.?\d*[kmb]?\s*\$`),
		regexp.MustCompile(`(?i)^USD\s*[\d,]+\.?\d*`),
		regexp.MustCompile(`(?i)^EUR\s*[\d,]+\.?\d*`),
		// Bare magnitude suffix, e.g. "714m"
		regexp.MustCompile(`(?i)^[\d,]+\.?\d*[kmb]$`),
	}
	multiplePattern = regexp.MustCompile(`(?i)^[\d,]+\.?\d*\s*x$`)

	nonNumeric       = regexp.MustCompile(`[^\d.,]`)
	nonNumericSigned = regexp.MustCompile(`[^\d.,\-+]`)
)

// Keyword tables for rule-based intent resolution.
var (
	timeKeywords = []string{
		"growth", "yoy", "y/y", "qoq", "q/q", "mom", "m/m",
		"annual", "quarterly", "monthly", "yearly",
		"trend", "change", "delta", "increase", "decrease",
		"over time", "historical", "forecast", "projection",
	}
	comparisonKeywords = []string{
		"vs", "versus", "compared", "relative", "benchmark",
		"peer", "competitor", "industry", "average", "median",
	}
	compositionKeywords = []string{
		"breakdown", "composition", "mix", "allocation",
		"segment", "share", "portion", "split",
	}
	deltaKeywords = []string{"change", "delta", "difference", "gain", "loss"}
)

// Orchestrator vocabulary mapped onto the frontend vocabulary.
var (
	orchestratorChartTypes = map[string]string{
		"LINE":      ChartLine,
		"AREA":      ChartArea,
		"SLOPE":     ChartSlope,
		"SCATTER":   ChartScatter,
		"BOX":       ChartBoxplot,
		"HISTOGRAM": ChartHistogram,
		"WATERFALL": ChartDeltaBar,
		"LOLLIPOP":  ChartLollipop,
		"DELTA_BAR": ChartDeltaBar,
	}
	orchestratorIntents = map[string]string{
		"TREND":        IntentTrend,
		"DELTA":        IntentDelta,
		"RELATIONSHIP": IntentRelationship,
		"COMPARISON":   IntentComparison,
		"DISTRIBUTION": IntentDistribution,
		"COMPOSITION":  IntentComposition,
	}
)

// ColumnAnalysis is the per-column visualization verdict.
type ColumnAnalysis struct {
	Visualizable     bool      `json:"visualizable"`
	DataType         string    `json:"data_type,omitempty"`
	Cardinality      int       `json:"cardinality"`
	Values           []float64 `json:"values"`
	ValueDocIndices  []int     `json:"value_doc_indices"`
	UnitType         string    `json:"unit_type,omitempty"`
	ChartType        string    `json:"chart_type,omitempty"`
	Intent           string    `json:"intent,omitempty"`
	IntentConfidence float64   `json:"intent_confidence"`
	RevealsInfo      bool      `json:"reveals_info"`
	InfoReason       string    `json:"info_reason,omitempty"`
	Insight          string    `json:"insight,omitempty"`
	LLMPowered       bool      `json:"llm_powered"`
	Error            string    `json:"error,omitempty"`
}

// ParseNumericValue extracts a numeric value and its unit type from a raw
// cell value. The placeholder value and "Fault" never parse. Currency
// suffixes k, m, b scale by thousand, million, billion.
func ParseNumericValue(raw string) (float64, string, bool) {
	if raw == "" || raw == model.EmptyValue || raw == "Fault" {
		return 0, "", false
	}
	cleaned := strings.TrimSpace(raw)

	if percentagePattern.MatchString(cleaned) {
		numStr := strings.TrimSpace(strings.NewReplacer("%", "", ",", "").Replace(cleaned))
		v, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return 0, "", false
		}
		return v, UnitPercentage, true
	}

	for _, pattern := range currencyPatterns {
		if !pattern.MatchString(cleaned) {
			continue
		}
		numStr := strings.ReplaceAll(nonNumeric.ReplaceAllString(cleaned, ""), ",", "")
		multiplier := 1.0
		lower := strings.ToLower(cleaned)
		switch {
		case strings.Contains(lower, "k"):
			multiplier = 1_000
		case strings.Contains(lower, "m"):
			multiplier = 1_000_000
		case strings.Contains(lower, "b"):
			multiplier = 1_000_000_000
		}
		v, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return 0, "", false
		}
		return v * multiplier, UnitCurrency, true
	}

	if multiplePattern.MatchString(cleaned) {
		numStr := strings.TrimSpace(strings.NewReplacer("x", "", ",", "").Replace(cleaned))
		v, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return 0, "", false
		}
		return v, UnitMultiple, true
	}

	numStr := strings.ReplaceAll(nonNumericSigned.ReplaceAllString(cleaned, ""), ",", "")
	if numStr == "" {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, "", false
	}
	return v, UnitNumeric, true
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdev is the sample standard deviation; callers guarantee len >= 2.
func stdev(values []float64) float64 {
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// varianceStats summarizes a column's spread for the orchestrator payload.
func varianceStats(values []float64) map[string]float64 {
	if len(values) < 2 {
		m := 0.0
		if len(values) == 1 {
			m = values[0]
		}
		return map[string]float64{"mean": m, "stdev": 0, "cv": 0}
	}
	m := mean(values)
	sd := stdev(values)
	cv := 0.0
	if m != 0 {
		cv = sd / m
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return map[string]float64{
		"mean":  round4(m),
		"stdev": round4(sd),
		"cv":    round4(cv),
		"min":   round4(lo),
		"max":   round4(hi),
		"range": round4(hi - lo),
	}
}

func countKeywords(label string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(label, kw) {
			n++
		}
	}
	return n
}

// resolveIntent picks an analytical intent and confidence for a column
// from its label, unit, and the other numeric columns in the matrix.
func resolveIntent(metricLabel string, values []float64, unitType string, valuesByLabel map[string][]float64) (string, float64) {
	label := strings.ToLower(metricLabel)

	if n := countKeywords(label, timeKeywords); n > 0 {
		return IntentTrend, math.Min(0.6+float64(n)*0.1, 0.95)
	}
	if n := countKeywords(label, compositionKeywords); n > 0 && unitType == UnitPercentage {
		return IntentComposition, math.Min(0.5+float64(n)*0.15, 0.9)
	}
	if n := countKeywords(label, comparisonKeywords); n > 0 {
		return IntentComparison, math.Min(0.5+float64(n)*0.15, 0.9)
	}
	if countKeywords(label, deltaKeywords) > 0 {
		return IntentDelta, 0.75
	}
	for other, vals := range valuesByLabel {
		if other != metricLabel && len(vals) >= 3 {
			return IntentRelationship, 0.4
		}
	}
	if len(values) >= 5 {
		return IntentDistribution, 0.7
	}
	return IntentComparison, 0.5
}

// selectChartType maps an intent onto a chart type. Distributions with
// IQR outliers get a boxplot, percentages trending over time an area.
func selectChartType(intent string, values []float64, unitType string) string {
	switch intent {
	case IntentTrend:
		if unitType == UnitPercentage {
			return ChartArea
		}
		return ChartLine
	case IntentDistribution:
		if len(values) >= 5 {
			sorted := append([]float64(nil), values...)
			sort.Float64s(sorted)
			q1 := sorted[len(sorted)/4]
			q3 := sorted[(3*len(sorted))/4]
			iqr := q3 - q1
			if iqr > 0 {
				lower := q1 - 1.5*iqr
				upper := q3 + 1.5*iqr
				for _, v := range sorted {
					if v < lower || v > upper {
						return ChartBoxplot
					}
				}
			}
		}
		return ChartHistogram
	case IntentComparison:
		return ChartLollipop
	case IntentDelta:
		return ChartDeltaBar
	case IntentRelationship:
		return ChartScatter
	case IntentComposition:
		return ChartHistogram
	}
	return ChartHistogram
}

// revealsNewInformation reports whether the chart adds anything over the
// matrix itself. Deliberately permissive: anything with two or more data
// points renders.
func revealsNewInformation(intent string, cardinality int) (bool, string) {
	if cardinality < 2 {
		return false, "Need at least 2 data points"
	}
	switch intent {
	case IntentTrend:
		return true, "Time-based patterns benefit from visualization"
	case IntentDelta:
		return true, "Change visualization clarifies direction and magnitude"
	case IntentRelationship:
		return true, "Relationship patterns not visible in tabular form"
	case IntentDistribution:
		return true, "Distribution visualization shows spread"
	case IntentComparison:
		return true, "Comparison chart highlights differences"
	case IntentComposition:
		return true, "Composition chart shows proportions"
	}
	return true, "Chart provides visual context"
}

// formatValue renders a value for insight annotations in its unit.
func formatValue(v float64, unitType string) string {
	switch unitType {
	case UnitPercentage:
		return fmt.Sprintf("%.1f%%", v)
	case UnitCurrency:
		if v >= 1_000_000 {
			return fmt.Sprintf("$%.1fM", v/1_000_000)
		}
		if v >= 1_000 {
			return fmt.Sprintf("$%.0fK", v/1_000)
		}
		return fmt.Sprintf("$%.0f", v)
	case UnitMultiple:
		return fmt.Sprintf("%.1fx", v)
	}
	if math.Abs(v) >= 1_000 {
		return fmt.Sprintf("%.1fK", v/1_000)
	}
	return fmt.Sprintf("%.1f", v)
}

// generateInsight produces the single muted annotation shown under a
// rule-selected chart, or "" when there is nothing worth saying.
func generateInsight(intent string, values []float64, unitType string) string {
	if len(values) < 2 {
		return ""
	}
	m := mean(values)
	med := median(values)
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	switch intent {
	case IntentDistribution:
		if len(values) >= 3 {
			cv := 0.0
			if m != 0 {
				cv = stdev(values) / m * 100
			}
			if cv > 50 {
				return fmt.Sprintf("High variance — %s to %s", formatValue(lo, unitType), formatValue(hi, unitType))
			}
			if m != 0 && math.Abs(m-med)/m > 0.15 {
				return fmt.Sprintf("Skewed distribution — median %s vs mean %s", formatValue(med, unitType), formatValue(m, unitType))
			}
			return fmt.Sprintf("Centered around %s", formatValue(med, unitType))
		}
	case IntentComparison:
		if m != 0 && (hi-lo)/m > 0.5 {
			return fmt.Sprintf("Wide spread — %s to %s", formatValue(lo, unitType), formatValue(hi, unitType))
		}
		return fmt.Sprintf("Range: %s – %s", formatValue(lo, unitType), formatValue(hi, unitType))
	case IntentDelta:
		return fmt.Sprintf("Values range from %s to %s", formatValue(lo, unitType), formatValue(hi, unitType))
	case IntentTrend:
		return fmt.Sprintf("Range: %s to %s", formatValue(lo, unitType), formatValue(hi, unitType))
	}
	return ""
}

// Options configures an Analyzer.
type Options struct {
	// UseLLM enables the chart orchestrator path.
	UseLLM bool
	// Timeout bounds a single orchestrator call; defaults to DefaultLLMTimeout.
	Timeout time.Duration
	// CacheTTL bounds orchestrator decision reuse; defaults to DefaultCacheTTL.
	CacheTTL time.Duration
}

// Analyzer decides visualization metadata for matrix columns.
type Analyzer struct {
	llm     llm.Service
	cache   *specCache
	timeout time.Duration
	useLLM  bool
}

// NewAnalyzer creates an Analyzer. A nil llm.Service disables the
// orchestrator path regardless of Options.UseLLM.
func NewAnalyzer(llmService llm.Service, opts Options) *Analyzer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	return &Analyzer{
		llm:     llmService,
		cache:   newSpecCache(opts.CacheTTL),
		timeout: timeout,
		useLLM:  opts.UseLLM && llmService != nil,
	}
}

// columnCells returns a metric's non-empty raw cell values in document-id
// order, so identical matrices always produce identical columns.
func columnCells(metricID string, cells map[model.CellKey]model.Cell) []string {
	keys := make([]model.CellKey, 0, len(cells))
	for key := range cells {
		if key.MetricID == metricID {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].DocID < keys[j].DocID })

	values := make([]string, 0, len(keys))
	for _, key := range keys {
		if v := cells[key].Value; v != "" {
			values = append(values, v)
		}
	}
	return values
}

// parseColumn parses raw cell values, keeping the index each parsed value
// came from so the frontend can map values back to rows.
func parseColumn(raw []string) (values []float64, units []string, docIndices []int) {
	values = []float64{}
	docIndices = []int{}
	for idx, s := range raw {
		v, unit, ok := ParseNumericValue(s)
		if !ok {
			continue
		}
		values = append(values, v)
		units = append(units, unit)
		docIndices = append(docIndices, idx)
	}
	return values, units, docIndices
}

// mostCommonUnit returns the most frequent unit; first seen wins ties.
func mostCommonUnit(units []string) string {
	if len(units) == 0 {
		return ""
	}
	counts := make(map[string]int, len(units))
	for _, u := range units {
		counts[u]++
	}
	best := units[0]
	for _, u := range units {
		if counts[u] > counts[best] {
			best = u
		}
	}
	return best
}

// chartSpecLLM asks the orchestrator for a decision, consulting the TTL
// cache first. Timeouts, transport errors, and invalid specs all report
// ok=false so the caller falls back to rules.
func (a *Analyzer) chartSpecLLM(ctx context.Context, metricLabel string, values []float64, unitType string, relatedColumns []string) (llm.ChartSpec, bool) {
	logger := contextutil.LoggerFromContext(ctx)

	if spec, ok := a.cache.get(metricLabel, values); ok {
		logger.DebugContext(ctx, "chart orchestrator cache hit", "metric_label", metricLabel)
		return spec, true
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	spec, err := a.llm.GenerateChartSpec(callCtx, llm.ChartSpecInput{
		MetricLabel:    metricLabel,
		Unit:           unitType,
		Values:         values,
		Cardinality:    len(values),
		VarianceStats:  varianceStats(values),
		MatrixVisible:  true,
		ChartRequested: false,
		RelatedColumns: relatedColumns,
	})
	if err != nil {
		logger.WarnContext(ctx, "chart orchestrator call failed, using rule-based fallback",
			"metric_label", metricLabel, "error", err)
		return llm.ChartSpec{}, false
	}
	if err := spec.Validate(); err != nil {
		logger.WarnContext(ctx, "chart orchestrator returned invalid spec",
			"metric_label", metricLabel, "error", err)
		return llm.ChartSpec{}, false
	}

	a.cache.set(metricLabel, values, spec)
	logger.InfoContext(ctx, "chart orchestrator decision",
		"metric_label", metricLabel,
		"should_render", spec.ShouldRender,
		"intent", spec.Intent,
		"chart_type", spec.ChartType,
	)
	return spec, true
}

// specToAnalysis converts a render-positive orchestrator spec into the
// frontend response shape.
func specToAnalysis(spec llm.ChartSpec, values []float64, unitType string, docIndices []int) ColumnAnalysis {
	intent, ok := orchestratorIntents[spec.Intent]
	if !ok {
		intent = IntentDistribution
	}
	chartType, ok := orchestratorChartTypes[spec.ChartType]
	if !ok {
		chartType = ChartHistogram
	}
	reason := spec.PrimaryQuestion
	if reason == "" {
		reason = "LLM-determined visualization"
	}
	return ColumnAnalysis{
		Visualizable:     len(values) >= 2 && unitType != "",
		DataType:         unitType,
		Cardinality:      len(values),
		Values:           values,
		ValueDocIndices:  docIndices,
		UnitType:         unitType,
		ChartType:        chartType,
		Intent:           intent,
		IntentConfidence: 0.95,
		RevealsInfo:      true,
		InfoReason:       reason,
		Insight:          spec.Insight,
		LLMPowered:       true,
	}
}

// fallbackAnalyze runs the rule-based path.
func fallbackAnalyze(metricLabel string, values []float64, unitType string, docIndices []int, valuesByLabel map[string][]float64) ColumnAnalysis {
	intent, confidence := resolveIntent(metricLabel, values, unitType, valuesByLabel)
	chartType := selectChartType(intent, values, unitType)
	reveals, reason := revealsNewInformation(intent, len(values))
	return ColumnAnalysis{
		Visualizable:     len(values) >= 2 && unitType != "",
		DataType:         unitType,
		Cardinality:      len(values),
		Values:           values,
		ValueDocIndices:  docIndices,
		UnitType:         unitType,
		ChartType:        chartType,
		Intent:           intent,
		IntentConfidence: confidence,
		RevealsInfo:      reveals,
		InfoReason:       reason,
		Insight:          generateInsight(intent, values, unitType),
		LLMPowered:       false,
	}
}

// AnalyzeColumn analyzes one metric column. Columns with fewer than two
// parseable values or no detectable unit never reach the orchestrator. An
// orchestrator decision of should_render=false is deliberately overridden
// by the more permissive rule-based path.
func (a *Analyzer) AnalyzeColumn(ctx context.Context, metricID, metricLabel string, cells map[model.CellKey]model.Cell, metrics []model.Metric, valuesByLabel map[string][]float64) ColumnAnalysis {
	raw := columnCells(metricID, cells)
	values, units, docIndices := parseColumn(raw)
	unitType := mostCommonUnit(units)

	if len(values) < 2 || unitType == "" {
		return fallbackAnalyze(metricLabel, values, unitType, docIndices, valuesByLabel)
	}

	if a.useLLM {
		relatedColumns := make([]string, 0, len(metrics))
		for _, m := range metrics {
			if m.Label != metricLabel {
				relatedColumns = append(relatedColumns, m.Label)
			}
		}
		if spec, ok := a.chartSpecLLM(ctx, metricLabel, values, unitType, relatedColumns); ok && spec.ShouldRender {
			return specToAnalysis(spec, values, unitType, docIndices)
		}
	}

	return fallbackAnalyze(metricLabel, values, unitType, docIndices, valuesByLabel)
}

// AnalyzeMatrix analyzes every column concurrently, one goroutine per
// metric. A panic in one column becomes that column's error result and
// never takes down the others.
func (a *Analyzer) AnalyzeMatrix(ctx context.Context, metrics []model.Metric, cells map[model.CellKey]model.Cell) map[string]ColumnAnalysis {
	logger := contextutil.LoggerFromContext(ctx)

	valuesByLabel := make(map[string][]float64, len(metrics))
	for _, metric := range metrics {
		if metric.ID == "" {
			continue
		}
		values, _, _ := parseColumn(columnCells(metric.ID, cells))
		valuesByLabel[metric.Label] = values
	}

	results := make([]ColumnAnalysis, len(metrics))
	var wg sync.WaitGroup
	for i, metric := range metrics {
		if metric.ID == "" {
			continue
		}
		wg.Add(1)
		go func(i int, metric model.Metric) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "column analysis panicked",
						"metric_id", metric.ID, "panic", r)
					results[i] = ColumnAnalysis{
						Visualizable:    false,
						Values:          []float64{},
						ValueDocIndices: []int{},
						Error:           fmt.Sprint(r),
					}
				}
			}()
			results[i] = a.AnalyzeColumn(ctx, metric.ID, metric.Label, cells, metrics, valuesByLabel)
		}(i, metric)
	}
	wg.Wait()

	out := make(map[string]ColumnAnalysis, len(metrics))
	for i, metric := range metrics {
		if metric.ID == "" {
			continue
		}
		out[metric.ID] = results[i]
	}
	return out
}
