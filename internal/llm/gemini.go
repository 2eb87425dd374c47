package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"matrixchat/internal/contextutil"
	"matrixchat/internal/model"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiService implements Service against the Gemini generateContent API.
type GeminiService struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

// NewGeminiService creates a Gemini-backed Service.
func NewGeminiService(baseURL, apiKey, modelName string) *GeminiService {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiService{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   modelName,
		client:  http.DefaultClient,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r geminiResponse) text() string {
	var b strings.Builder
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// generate performs a non-streaming generateContent call and returns the
// concatenated candidate text.
func (s *GeminiService) generate(ctx context.Context, system, user string, temperature float64, jsonMode bool) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: user}}},
		},
		GenerationConfig: &geminiGenerationConfig{Temperature: temperature},
	}
	if system != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	if jsonMode {
		payload.GenerationConfig.ResponseMimeType = "application/json"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", s.BaseURL, s.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", s.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var generated geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	text := generated.text()
	if text == "" {
		return "", fmt.Errorf("no candidates returned")
	}
	return text, nil
}

// ExtractMetric implements Service.
func (s *GeminiService) ExtractMetric(ctx context.Context, documentContent, metricLabel string) (model.ExtractionResult, error) {
	content, err := s.generate(ctx, extractionSystemPrompt, extractMetricPrompt(documentContent, metricLabel), 0.3, true)
	if err != nil {
		return model.ExtractionResult{}, err
	}

	var data extractionPayload
	if err := decodeModelJSON(content, &data); err != nil {
		return model.ExtractionResult{}, err
	}
	return finalizeExtraction(metricLabel, data), nil
}

// InferMetrics implements Service. Provider failures are swallowed, same
// as the OpenAI implementation.
func (s *GeminiService) InferMetrics(ctx context.Context, snippets []model.DocSnippet) ([]string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	content, err := s.generate(ctx, inferSystemPrompt, inferMetricsPrompt(snippets), 0.5, true)
	if err != nil {
		logger.WarnContext(ctx, "metric inference failed", "error", err)
		return []string{}, nil
	}

	var data metricsPayload
	if err := decodeModelJSON(content, &data); err != nil {
		logger.WarnContext(ctx, "metric inference returned malformed JSON", "error", err)
		return []string{}, nil
	}
	if len(data.Metrics) == 0 {
		logger.WarnContext(ctx, "metric inference returned no metrics")
		return []string{}, nil
	}
	return data.Metrics, nil
}

// ChatWithContext implements Service.
func (s *GeminiService) ChatWithContext(ctx context.Context, query, matrixContext, documentContext, chatHistory string) (model.ChatResult, error) {
	content, err := s.generate(ctx, chatSystemPrompt, chatUserPrompt(query, matrixContext, documentContext, chatHistory), 0.7, true)
	if err != nil {
		return model.ChatResult{}, err
	}

	var result model.ChatResult
	if err := decodeModelJSON(content, &result); err != nil {
		return model.ChatResult{}, err
	}
	return result, nil
}

// ChatWithContextStream implements Service using the SSE variant of
// streamGenerateContent, followed by a citations call over the
// accumulated text.
func (s *GeminiService) ChatWithContextStream(ctx context.Context, query, matrixContext, documentContext, chatHistory string, emit func(model.StreamEvent) error) error {
	payload := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: chatStreamUserPrompt(query, matrixContext, documentContext, chatHistory)}}},
		},
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: chatStreamSystemPrompt}}},
		GenerationConfig:  &geminiGenerationConfig{Temperature: 0.7},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", s.BaseURL, s.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", s.APIKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var fullResponse strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	const dataPrefix = "data: "

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		var chunk geminiResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, dataPrefix)), &chunk); err != nil {
			continue
		}
		if text := chunk.text(); text != "" {
			fullResponse.WriteString(text)
			if err := emit(model.StreamEvent{Type: model.StreamEventText, Content: text}); err != nil {
				return fmt.Errorf("emit error: %w", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}

	citations := s.generateCitations(ctx, fullResponse.String(), matrixContext, documentContext)
	if err := emit(model.StreamEvent{Type: model.StreamEventCitations, RawCitations: citations}); err != nil {
		return fmt.Errorf("emit error: %w", err)
	}
	return nil
}

func (s *GeminiService) generateCitations(ctx context.Context, fullResponse, matrixContext, documentContext string) []model.RawCitation {
	logger := contextutil.LoggerFromContext(ctx)

	content, err := s.generate(ctx, "", citationFollowupPrompt(fullResponse, matrixContext, documentContext), 0.3, true)
	if err != nil {
		logger.WarnContext(ctx, "citation follow-up call failed", "error", err)
		return []model.RawCitation{}
	}

	var data citationsPayload
	if err := decodeModelJSON(content, &data); err != nil {
		logger.WarnContext(ctx, "citation follow-up returned malformed JSON", "error", err)
		return []model.RawCitation{}
	}
	return data.Citations
}

// GenerateQuestions implements Service.
func (s *GeminiService) GenerateQuestions(ctx context.Context, matrixContext string) ([]model.AnalyticalQuestion, error) {
	content, err := s.generate(ctx, questionGeneratorSystemPrompt, questionGeneratorPrompt(matrixContext), 0.7, true)
	if err != nil {
		return nil, err
	}

	var data questionsPayload
	if err := decodeModelJSON(content, &data); err != nil {
		return nil, err
	}
	return data.Questions, nil
}

// AnswerQuestion implements Service.
func (s *GeminiService) AnswerQuestion(ctx context.Context, question model.AnalyticalQuestion, matrixContext string, expectedEntities []string) (QuestionAnswer, error) {
	content, err := s.generate(ctx, questionAnswererSystemPrompt, answerQuestionPrompt(question, matrixContext, expectedEntities), 0.2, true)
	if err != nil {
		return QuestionAnswer{}, err
	}

	var answer QuestionAnswer
	if err := decodeModelJSON(content, &answer); err != nil {
		return QuestionAnswer{}, err
	}
	return answer, nil
}

// GenerateChartSpec implements Service.
func (s *GeminiService) GenerateChartSpec(ctx context.Context, input ChartSpecInput) (ChartSpec, error) {
	content, err := s.generate(ctx, chartOrchestratorSystemPrompt, chartSpecUserPrompt(input), 0.2, true)
	if err != nil {
		return ChartSpec{}, err
	}

	var spec ChartSpec
	if err := decodeModelJSON(content, &spec); err != nil {
		return ChartSpec{}, err
	}
	return spec, nil
}
