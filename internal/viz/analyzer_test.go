package viz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"matrixchat/internal/llm"
	"matrixchat/internal/llm/mocks"
	"matrixchat/internal/model"
)

func TestParseNumericValue(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     float64
		wantUnit string
		wantOK   bool
	}{
		{name: "percentage", raw: "12%", want: 12, wantUnit: UnitPercentage, wantOK: true},
		{name: "percentage with decimals", raw: "42.5 %", want: 42.5, wantUnit: UnitPercentage, wantOK: true},
		{name: "dollar amount", raw: "$4.1m", want: 4_100_000, wantUnit: UnitCurrency, wantOK: true},
		{name: "dollar with thousands suffix", raw: "$250k", want: 250_000, wantUnit: UnitCurrency, wantOK: true},
		{name: "dollar with billions suffix", raw: "$1.2B", want: 1_200_000_000, wantUnit: UnitCurrency, wantOK: true},
		{name: "usd prefix", raw: "USD 500", want: 500, wantUnit: UnitCurrency, wantOK: true},
		{name: "eur prefix", raw: "EUR 1,200", want: 1200, wantUnit: UnitCurrency, wantOK: true},
		{name: "bare magnitude suffix", raw: "714m", want: 714_000_000, wantUnit: UnitCurrency, wantOK: true},
		{name: "multiple", raw: "2.5x", want: 2.5, wantUnit: UnitMultiple, wantOK: true},
		{name: "plain number", raw: "120", want: 120, wantUnit: UnitNumeric, wantOK: true},
		{name: "number with commas", raw: "1,250", want: 1250, wantUnit: UnitNumeric, wantOK: true},
		{name: "negative number", raw: "-15", want: -15, wantUnit: UnitNumeric, wantOK: true},
		{name: "number embedded in text", raw: "about 40 people", want: 40, wantUnit: UnitNumeric, wantOK: true},
		{name: "placeholder", raw: "—", wantOK: false},
		{name: "fault marker", raw: "Fault", wantOK: false},
		{name: "empty", raw: "", wantOK: false},
		{name: "no digits", raw: "unknown", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unit, ok := ParseNumericValue(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ParseNumericValue(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got != tt.want || unit != tt.wantUnit {
				t.Fatalf("ParseNumericValue(%q) = %f, %q; want %f, %q", tt.raw, got, unit, tt.want, tt.wantUnit)
			}
		})
	}
}

func TestResolveIntent(t *testing.T) {
	tests := []struct {
		name       string
		label      string
		values     []float64
		unit       string
		byLabel    map[string][]float64
		wantIntent string
		wantConf   float64
	}{
		{
			name: "time keyword wins", label: "Revenue Growth YoY",
			values: []float64{1, 2}, unit: UnitPercentage,
			wantIntent: IntentTrend, wantConf: 0.8,
		},
		{
			name: "composition needs percentage unit", label: "Segment Share",
			values: []float64{30, 70}, unit: UnitPercentage,
			wantIntent: IntentComposition, wantConf: 0.8,
		},
		{
			name: "composition keyword without percentage falls through", label: "Segment Count",
			values: []float64{3, 4}, unit: UnitNumeric,
			wantIntent: IntentComparison, wantConf: 0.5,
		},
		{
			name: "comparison keywords", label: "Margin vs Industry",
			values: []float64{1, 2}, unit: UnitPercentage,
			wantIntent: IntentComparison, wantConf: 0.8,
		},
		{
			name: "delta keyword", label: "Net Gain",
			values: []float64{1, 2}, unit: UnitCurrency,
			wantIntent: IntentDelta, wantConf: 0.75,
		},
		{
			name: "relationship when another dense column exists", label: "Headcount",
			values: []float64{10, 20},
			unit:   UnitNumeric,
			byLabel: map[string][]float64{
				"Headcount": {10, 20},
				"Revenue":   {1, 2, 3},
			},
			wantIntent: IntentRelationship, wantConf: 0.4,
		},
		{
			name: "distribution for wide columns", label: "Headcount",
			values: []float64{1, 2, 3, 4, 5}, unit: UnitNumeric,
			wantIntent: IntentDistribution, wantConf: 0.7,
		},
		{
			name: "comparison default", label: "Headcount",
			values: []float64{1, 2}, unit: UnitNumeric,
			wantIntent: IntentComparison, wantConf: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, conf := resolveIntent(tt.label, tt.values, tt.unit, tt.byLabel)
			if intent != tt.wantIntent {
				t.Fatalf("intent = %q, want %q", intent, tt.wantIntent)
			}
			if conf < tt.wantConf-0.0001 || conf > tt.wantConf+0.0001 {
				t.Fatalf("confidence = %f, want %f", conf, tt.wantConf)
			}
		})
	}
}

func TestSelectChartType(t *testing.T) {
	tests := []struct {
		name   string
		intent string
		values []float64
		unit   string
		want   string
	}{
		{name: "trend percentage", intent: IntentTrend, unit: UnitPercentage, want: ChartArea},
		{name: "trend currency", intent: IntentTrend, unit: UnitCurrency, want: ChartLine},
		{name: "comparison", intent: IntentComparison, want: ChartLollipop},
		{name: "delta", intent: IntentDelta, want: ChartDeltaBar},
		{name: "relationship", intent: IntentRelationship, want: ChartScatter},
		{name: "composition", intent: IntentComposition, want: ChartHistogram},
		{
			name: "distribution without outliers", intent: IntentDistribution,
			values: []float64{10, 11, 12, 13, 14}, want: ChartHistogram,
		},
		{
			name: "distribution with outlier", intent: IntentDistribution,
			values: []float64{10, 11, 12, 13, 100}, want: ChartBoxplot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := selectChartType(tt.intent, tt.values, tt.unit); got != tt.want {
				t.Fatalf("selectChartType(%q) = %q, want %q", tt.intent, got, tt.want)
			}
		})
	}
}

func TestGenerateInsight(t *testing.T) {
	tests := []struct {
		name   string
		intent string
		values []float64
		unit   string
		want   string
	}{
		{
			name: "high variance distribution", intent: IntentDistribution,
			values: []float64{10, 20, 100}, unit: UnitNumeric,
			want: "High variance — 10.0 to 100.0",
		},
		{
			name: "centered distribution", intent: IntentDistribution,
			values: []float64{48, 50, 52}, unit: UnitPercentage,
			want: "Centered around 50.0%",
		},
		{
			name: "wide comparison spread", intent: IntentComparison,
			values: []float64{1_000_000, 5_000_000}, unit: UnitCurrency,
			want: "Wide spread — $1.0M to $5.0M",
		},
		{
			name: "narrow comparison range", intent: IntentComparison,
			values: []float64{95, 100}, unit: UnitNumeric,
			want: "Range: 95.0 – 100.0",
		},
		{
			name: "delta", intent: IntentDelta,
			values: []float64{2, 8}, unit: UnitMultiple,
			want: "Values range from 2.0x to 8.0x",
		},
		{
			name: "trend", intent: IntentTrend,
			values: []float64{10, 40}, unit: UnitPercentage,
			want: "Range: 10.0% to 40.0%",
		},
		{
			name: "single value", intent: IntentTrend,
			values: []float64{10},
			want:   "",
		},
		{
			name: "composition has no insight", intent: IntentComposition,
			values: []float64{30, 70}, unit: UnitPercentage,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := generateInsight(tt.intent, tt.values, tt.unit); got != tt.want {
				t.Fatalf("generateInsight(%q) = %q, want %q", tt.intent, got, tt.want)
			}
		})
	}
}

func vizCells() (map[model.CellKey]model.Cell, []model.Metric) {
	cells := map[model.CellKey]model.Cell{
		{DocID: "doc1", MetricID: "m1"}: {Value: "$4.1M"},
		{DocID: "doc2", MetricID: "m1"}: {Value: "$2.3M"},
		{DocID: "doc3", MetricID: "m1"}: {Value: "—"},
		{DocID: "doc1", MetricID: "m2"}: {Value: "strong team"},
		{DocID: "doc2", MetricID: "m2"}: {Value: "weak team"},
	}
	metrics := []model.Metric{
		{ID: "m1", Label: "Revenue"},
		{ID: "m2", Label: "Team Quality"},
	}
	return cells, metrics
}

func TestAnalyzeColumnRuleBased(t *testing.T) {
	a := NewAnalyzer(nil, Options{UseLLM: true})
	cells, metrics := vizCells()

	got := a.AnalyzeColumn(context.Background(), "m1", "Revenue", cells, metrics, nil)

	if !got.Visualizable {
		t.Fatal("two parsed currency values should be visualizable")
	}
	if got.Cardinality != 2 || got.UnitType != UnitCurrency {
		t.Fatalf("cardinality/unit = %d/%q", got.Cardinality, got.UnitType)
	}
	// Cells walk in doc-id order: doc1 then doc2, the placeholder dropped.
	if len(got.Values) != 2 || got.Values[0] != 4_100_000 || got.Values[1] != 2_300_000 {
		t.Fatalf("values = %v", got.Values)
	}
	if got.LLMPowered {
		t.Fatal("nil llm service must disable the orchestrator path")
	}
	if got.Intent != IntentComparison || got.ChartType != ChartLollipop {
		t.Fatalf("intent/chart = %q/%q", got.Intent, got.ChartType)
	}
}

func TestAnalyzeColumnQualitativeNotVisualizable(t *testing.T) {
	a := NewAnalyzer(nil, Options{})
	cells, metrics := vizCells()

	got := a.AnalyzeColumn(context.Background(), "m2", "Team Quality", cells, metrics, nil)
	if got.Visualizable {
		t.Fatalf("qualitative column must not be visualizable: %+v", got)
	}
	if got.LLMPowered {
		t.Fatal("gated columns must not reach the orchestrator")
	}
}

func TestAnalyzeColumnLLMSpec(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLLM := mocks.NewMockService(ctrl)
	a := NewAnalyzer(mockLLM, Options{UseLLM: true})
	cells, metrics := vizCells()

	mockLLM.EXPECT().
		GenerateChartSpec(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, input llm.ChartSpecInput) (llm.ChartSpec, error) {
			if input.MetricLabel != "Revenue" || input.Cardinality != 2 {
				t.Errorf("unexpected orchestrator input: %+v", input)
			}
			if len(input.RelatedColumns) != 1 || input.RelatedColumns[0] != "Team Quality" {
				t.Errorf("related columns = %v", input.RelatedColumns)
			}
			return llm.ChartSpec{
				ShouldRender:    true,
				Intent:          "COMPARISON",
				ChartType:       "LOLLIPOP",
				PrimaryQuestion: "Which company earns more?",
				Insight:         "Acme leads on revenue",
			}, nil
		})

	got := a.AnalyzeColumn(context.Background(), "m1", "Revenue", cells, metrics, nil)

	if !got.LLMPowered {
		t.Fatal("expected an orchestrator-powered result")
	}
	if got.Intent != IntentComparison || got.ChartType != ChartLollipop {
		t.Fatalf("intent/chart = %q/%q", got.Intent, got.ChartType)
	}
	if got.IntentConfidence != 0.95 {
		t.Fatalf("orchestrator confidence = %f", got.IntentConfidence)
	}
	if got.InfoReason != "Which company earns more?" || got.Insight != "Acme leads on revenue" {
		t.Fatalf("reason/insight = %q/%q", got.InfoReason, got.Insight)
	}
}

func TestAnalyzeColumnLLMDeclineFallsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLLM := mocks.NewMockService(ctrl)
	a := NewAnalyzer(mockLLM, Options{UseLLM: true})
	cells, metrics := vizCells()

	// should_render=false is overridden by the permissive rule path.
	mockLLM.EXPECT().
		GenerateChartSpec(gomock.Any(), gomock.Any()).
		Return(llm.ChartSpec{ShouldRender: false, Reason: "low variance"}, nil)

	got := a.AnalyzeColumn(context.Background(), "m1", "Revenue", cells, metrics, nil)
	if got.LLMPowered {
		t.Fatal("declined spec should fall back to the rule path")
	}
	if !got.Visualizable {
		t.Fatal("rule path should still render two currency values")
	}
}

func TestAnalyzeColumnLLMErrorFallsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLLM := mocks.NewMockService(ctrl)
	a := NewAnalyzer(mockLLM, Options{UseLLM: true})
	cells, metrics := vizCells()

	mockLLM.EXPECT().
		GenerateChartSpec(gomock.Any(), gomock.Any()).
		Return(llm.ChartSpec{}, errors.New("orchestrator unavailable"))

	got := a.AnalyzeColumn(context.Background(), "m1", "Revenue", cells, metrics, nil)
	if got.LLMPowered || !got.Visualizable {
		t.Fatalf("orchestrator failure must fall back to rules: %+v", got)
	}
}

func TestAnalyzeColumnInvalidSpecFallsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLLM := mocks.NewMockService(ctrl)
	a := NewAnalyzer(mockLLM, Options{UseLLM: true})
	cells, metrics := vizCells()

	// Render-positive but missing intent and chart type fails validation.
	mockLLM.EXPECT().
		GenerateChartSpec(gomock.Any(), gomock.Any()).
		Return(llm.ChartSpec{ShouldRender: true}, nil)

	got := a.AnalyzeColumn(context.Background(), "m1", "Revenue", cells, metrics, nil)
	if got.LLMPowered {
		t.Fatalf("invalid spec must fall back to rules: %+v", got)
	}
}

func TestAnalyzeMatrix(t *testing.T) {
	a := NewAnalyzer(nil, Options{})
	cells, metrics := vizCells()
	metrics = append(metrics, model.Metric{ID: "", Label: "ignored"})

	got := a.AnalyzeMatrix(context.Background(), metrics, cells)

	if len(got) != 2 {
		t.Fatalf("expected 2 column results, got %d", len(got))
	}
	if !got["m1"].Visualizable {
		t.Fatalf("revenue column should be visualizable: %+v", got["m1"])
	}
	if got["m2"].Visualizable {
		t.Fatalf("qualitative column should not be visualizable: %+v", got["m2"])
	}
	if _, ok := got[""]; ok {
		t.Fatal("metrics without an id must be skipped")
	}
}

func TestSpecToAnalysisUnknownVocabulary(t *testing.T) {
	spec := llm.ChartSpec{ShouldRender: true, Intent: "SOMETHING_NEW", ChartType: "HOLOGRAM"}
	got := specToAnalysis(spec, []float64{1, 2}, UnitNumeric, []int{0, 1})

	if got.Intent != IntentDistribution || got.ChartType != ChartHistogram {
		t.Fatalf("unknown vocabulary should map to defaults: %q/%q", got.Intent, got.ChartType)
	}
	if got.InfoReason != "LLM-determined visualization" {
		t.Fatalf("missing primary question should use the default reason: %q", got.InfoReason)
	}
}

func TestVarianceStats(t *testing.T) {
	stats := varianceStats([]float64{10, 20, 30})
	if stats["mean"] != 20 || stats["min"] != 10 || stats["max"] != 30 || stats["range"] != 20 {
		t.Fatalf("unexpected stats: %v", stats)
	}
	if stats["stdev"] != 10 {
		t.Fatalf("sample stdev of 10,20,30 should be 10, got %f", stats["stdev"])
	}
	if stats["cv"] != 0.5 {
		t.Fatalf("cv = %f, want 0.5", stats["cv"])
	}

	single := varianceStats([]float64{42})
	if single["mean"] != 42 || single["stdev"] != 0 {
		t.Fatalf("single-value stats: %v", single)
	}
	if _, ok := single["range"]; ok {
		t.Fatal("degenerate stats should not report a range")
	}
}

func TestColumnCellsDeterministicOrder(t *testing.T) {
	cells := map[model.CellKey]model.Cell{
		{DocID: "b", MetricID: "m1"}: {Value: "2"},
		{DocID: "a", MetricID: "m1"}: {Value: "1"},
		{DocID: "c", MetricID: "m1"}: {Value: "3"},
		{DocID: "a", MetricID: "m2"}: {Value: "9"},
	}

	got := columnCells("m1", cells)
	if strings.Join(got, ",") != "1,2,3" {
		t.Fatalf("columnCells order = %v", got)
	}
}
