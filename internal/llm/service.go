// Package llm abstracts the generative-model providers behind a single
// capability interface. The pipeline treats "call the model with this
// prompt and get back structured JSON" as an opaque external capability;
// provider selection is a configuration enum, and both implementations
// repair the usual JSON mishaps (markdown fences) before decoding.
package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_service.go -package=mocks matrixchat/internal/llm Service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"matrixchat/internal/model"
)

// Supported providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ChartSpecInput is the structured payload sent to the chart orchestrator.
type ChartSpecInput struct {
	MetricLabel    string             `json:"metric_label"`
	Unit           string             `json:"unit,omitempty"`
	Values         []float64          `json:"values"`
	TimeIndex      []string           `json:"time_index,omitempty"`
	Cardinality    int                `json:"cardinality"`
	VarianceStats  map[string]float64 `json:"variance_stats"`
	MatrixVisible  bool               `json:"matrix_visible"`
	ChartRequested bool               `json:"chart_requested"`
	RelatedColumns []string           `json:"related_columns,omitempty"`
}

// AxisSpec describes one chart axis.
type AxisSpec struct {
	Label    string `json:"label"`
	Semantic string `json:"semantic,omitempty"`
	Unit     string `json:"unit,omitempty"`
}

// ChartAxes pairs the x and y axis specifications.
type ChartAxes struct {
	X AxisSpec `json:"x"`
	Y AxisSpec `json:"y"`
}

// ChartSpec is the chart orchestrator's decision. Intent and ChartType are
// required whenever ShouldRender is true.
type ChartSpec struct {
	ShouldRender    bool       `json:"should_render"`
	Reason          string     `json:"reason,omitempty"`
	PrimaryQuestion string     `json:"primary_question,omitempty"`
	Intent          string     `json:"intent,omitempty"`
	ChartType       string     `json:"chart_type,omitempty"`
	Axes            *ChartAxes `json:"axes,omitempty"`
	Emphasis        []string   `json:"emphasis,omitempty"`
	Insight         string     `json:"insight,omitempty"`
	Placement       string     `json:"placement,omitempty"`
}

// Validate checks the cross-field requirements of a chart spec.
func (s ChartSpec) Validate() error {
	if s.ShouldRender {
		if s.Intent == "" {
			return errors.New("intent is required when should_render is true")
		}
		if s.ChartType == "" {
			return errors.New("chart_type is required when should_render is true")
		}
	}
	return nil
}

// QuestionPoint is one chart datum as returned by the model. Value is
// left untyped because models return formatted strings ("$5.2M") as
// often as raw numbers; the questions service coerces it downstream.
type QuestionPoint struct {
	Label     string `json:"label"`
	Value     any    `json:"value"`
	Highlight bool   `json:"highlight"`
}

// QuestionVisualization is the unvalidated chart payload of a
// question-answer response.
type QuestionVisualization struct {
	Type    string          `json:"type"`
	Title   string          `json:"title"`
	XAxis   map[string]any  `json:"x_axis,omitempty"`
	YAxis   map[string]any  `json:"y_axis,omitempty"`
	Data    []QuestionPoint `json:"data"`
	Insight string          `json:"insight,omitempty"`
}

// QuestionAnswer is the chart-data generator's decoded response, before
// numeric validation.
type QuestionAnswer struct {
	AnswerSummary string                 `json:"answer_summary"`
	Visualization *QuestionVisualization `json:"visualization"`
}

// Service is the provider-agnostic generative-model capability consumed by
// the pipeline. Implementations degrade gracefully: malformed model output
// is repaired or surfaced as an error return, never a panic. InferMetrics
// additionally swallows provider failures and reports an empty slice, as
// an empty suggestion list is a valid outcome for the caller.
type Service interface {
	// ExtractMetric extracts one metric value from document content. When
	// the model reports NOT_FOUND the result carries the placeholder value
	// "—" with Exploratory confidence.
	ExtractMetric(ctx context.Context, documentContent, metricLabel string) (model.ExtractionResult, error)
	// InferMetrics suggests comparison column labels for a document corpus.
	InferMetrics(ctx context.Context, snippets []model.DocSnippet) ([]string, error)
	// ChatWithContext generates an analytical response with citations,
	// grounded in the provided context blocks.
	ChatWithContext(ctx context.Context, query, matrixContext, documentContext, chatHistory string) (model.ChatResult, error)
	// ChatWithContextStream streams text events followed by exactly one
	// citations event through emit. A non-nil emit error aborts the stream.
	ChatWithContextStream(ctx context.Context, query, matrixContext, documentContext, chatHistory string, emit func(model.StreamEvent) error) error
	// GenerateChartSpec asks the chart orchestrator whether and how to
	// visualize a column.
	GenerateChartSpec(ctx context.Context, input ChartSpecInput) (ChartSpec, error)
	// GenerateQuestions suggests analytical questions over a rendered
	// matrix context block.
	GenerateQuestions(ctx context.Context, matrixContext string) ([]model.AnalyticalQuestion, error)
	// AnswerQuestion asks the chart-data generator to answer one suggested
	// question. The returned payload is unvalidated.
	AnswerQuestion(ctx context.Context, question model.AnalyticalQuestion, matrixContext string, expectedEntities []string) (QuestionAnswer, error)
}

// Options selects and configures a provider.
type Options struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the provider endpoint, mainly for tests.
	BaseURL string
}

// NewService builds the Service implementation for the configured provider.
func NewService(opts Options) (Service, error) {
	switch strings.ToLower(opts.Provider) {
	case ProviderOpenAI:
		return NewOpenAIService(opts.BaseURL, opts.APIKey, opts.Model), nil
	case ProviderGemini:
		return NewGeminiService(opts.BaseURL, opts.APIKey, opts.Model), nil
	default:
		return nil, fmt.Errorf("invalid LLM provider %q: must be %q or %q", opts.Provider, ProviderOpenAI, ProviderGemini)
	}
}

var jsonFence = regexp.MustCompile("```json\\n?|```")

// decodeModelJSON strips markdown code fences the model may wrap its JSON
// in and decodes the remainder into v.
func decodeModelJSON(text string, v any) error {
	cleaned := strings.TrimSpace(jsonFence.ReplaceAllString(text, ""))
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("invalid JSON response from model: %w", err)
	}
	return nil
}

// notFoundResult is the canned extraction result for metrics the model
// could not locate in the document.
func notFoundResult(metricLabel string) model.ExtractionResult {
	return model.ExtractionResult{
		Value:      model.EmptyValue,
		Reasoning:  fmt.Sprintf("The document does not contain explicit or implicit information regarding %q.", metricLabel),
		Confidence: model.ConfidenceExploratory,
		Sources:    []string{},
	}
}

// finalizeExtraction applies the NOT_FOUND mapping and field defaults to a
// decoded extraction payload.
func finalizeExtraction(metricLabel string, data extractionPayload) model.ExtractionResult {
	if data.Value == "NOT_FOUND" {
		return notFoundResult(metricLabel)
	}
	result := model.ExtractionResult{
		Value:      data.Value,
		Reasoning:  data.Reasoning,
		Confidence: data.Confidence,
		Sources:    data.Sources,
	}
	if result.Value == "" {
		result.Value = model.EmptyValue
	}
	if result.Reasoning == "" {
		result.Reasoning = "Extracted via pattern matching."
	}
	if result.Confidence == "" {
		result.Confidence = model.ConfidenceMedium
	}
	if result.Sources == nil {
		result.Sources = []string{}
	}
	return result
}

// extractionPayload is the wire shape of the model's extraction response.
type extractionPayload struct {
	Value      string   `json:"value"`
	Reasoning  string   `json:"reasoning"`
	Confidence string   `json:"confidence"`
	Sources    []string `json:"sources"`
}

// citationsPayload is the wire shape of a citations-only model response.
type citationsPayload struct {
	Citations []model.RawCitation `json:"citations"`
}

// metricsPayload is the wire shape of the schema-inference response.
type metricsPayload struct {
	Metrics []string `json:"metrics"`
}

// questionsPayload is the wire shape of the question-generator response.
type questionsPayload struct {
	Questions []model.AnalyticalQuestion `json:"questions"`
}
