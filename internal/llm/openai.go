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

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAIService implements Service against the OpenAI chat completions API.
type OpenAIService struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

// NewOpenAIService creates an OpenAI-backed Service.
func NewOpenAIService(baseURL, apiKey, modelName string) *OpenAIService {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIService{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   modelName,
		client:  http.DefaultClient,
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
	Stream         bool                  `json:"stream,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete performs a non-streaming chat completion and returns the raw
// message content.
func (s *OpenAIService) complete(ctx context.Context, system, user string, temperature float64, jsonMode bool) (string, error) {
	payload := openAIRequest{
		Model:       s.Model,
		Temperature: temperature,
	}
	if system != "" {
		payload.Messages = append(payload.Messages, openAIMessage{Role: "system", Content: system})
	}
	payload.Messages = append(payload.Messages, openAIMessage{Role: "user", Content: user})
	if jsonMode {
		payload.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/v1/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Content-Type", "application/json")

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

	var completion openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}

// ExtractMetric implements Service.
func (s *OpenAIService) ExtractMetric(ctx context.Context, documentContent, metricLabel string) (model.ExtractionResult, error) {
	content, err := s.complete(ctx, extractionSystemPrompt, extractMetricPrompt(documentContent, metricLabel), 0.3, true)
	if err != nil {
		return model.ExtractionResult{}, err
	}

	var data extractionPayload
	if err := decodeModelJSON(content, &data); err != nil {
		return model.ExtractionResult{}, err
	}
	return finalizeExtraction(metricLabel, data), nil
}

// InferMetrics implements Service. Provider failures are swallowed: an
// empty suggestion list is a valid outcome the caller renders as-is.
func (s *OpenAIService) InferMetrics(ctx context.Context, snippets []model.DocSnippet) ([]string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	content, err := s.complete(ctx, inferSystemPrompt, inferMetricsPrompt(snippets), 0.5, true)
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
func (s *OpenAIService) ChatWithContext(ctx context.Context, query, matrixContext, documentContext, chatHistory string) (model.ChatResult, error) {
	content, err := s.complete(ctx, chatSystemPrompt, chatUserPrompt(query, matrixContext, documentContext, chatHistory), 0.7, true)
	if err != nil {
		return model.ChatResult{}, err
	}

	var result model.ChatResult
	if err := decodeModelJSON(content, &result); err != nil {
		return model.ChatResult{}, err
	}
	return result, nil
}

// ChatWithContextStream implements Service. Text deltas are forwarded as
// they arrive; citations come from a second, JSON-mode call over the
// accumulated response and are emitted as a single batch. A citation-call
// failure degrades to an empty batch rather than failing the stream.
func (s *OpenAIService) ChatWithContextStream(ctx context.Context, query, matrixContext, documentContext, chatHistory string, emit func(model.StreamEvent) error) error {
	payload := openAIRequest{
		Model: s.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: chatStreamSystemPrompt},
			{Role: "user", Content: chatStreamUserPrompt(query, matrixContext, documentContext, chatHistory)},
		},
		Temperature: 0.7,
		Stream:      true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/v1/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Content-Type", "application/json")
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
	const doneMarker = "[DONE]"

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		data := strings.TrimPrefix(line, dataPrefix)
		if data == doneMarker {
			break
		}

		var streamResp struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason string `json:"finish_reason"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &streamResp); err != nil {
			// Skip malformed chunks.
			continue
		}
		if len(streamResp.Choices) == 0 {
			continue
		}
		if chunk := streamResp.Choices[0].Delta.Content; chunk != "" {
			fullResponse.WriteString(chunk)
			if err := emit(model.StreamEvent{Type: model.StreamEventText, Content: chunk}); err != nil {
				return fmt.Errorf("emit error: %w", err)
			}
		}
		if streamResp.Choices[0].FinishReason != "" {
			break
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

// generateCitations runs the follow-up citations call for a streamed
// response. Failures degrade to an empty citation list.
func (s *OpenAIService) generateCitations(ctx context.Context, fullResponse, matrixContext, documentContext string) []model.RawCitation {
	logger := contextutil.LoggerFromContext(ctx)

	content, err := s.complete(ctx, "", citationFollowupPrompt(fullResponse, matrixContext, documentContext), 0.3, true)
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
func (s *OpenAIService) GenerateQuestions(ctx context.Context, matrixContext string) ([]model.AnalyticalQuestion, error) {
	content, err := s.complete(ctx, questionGeneratorSystemPrompt, questionGeneratorPrompt(matrixContext), 0.7, true)
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
func (s *OpenAIService) AnswerQuestion(ctx context.Context, question model.AnalyticalQuestion, matrixContext string, expectedEntities []string) (QuestionAnswer, error) {
	content, err := s.complete(ctx, questionAnswererSystemPrompt, answerQuestionPrompt(question, matrixContext, expectedEntities), 0.2, true)
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
func (s *OpenAIService) GenerateChartSpec(ctx context.Context, input ChartSpecInput) (ChartSpec, error) {
	content, err := s.complete(ctx, chartOrchestratorSystemPrompt, chartSpecUserPrompt(input), 0.2, true)
	if err != nil {
		return ChartSpec{}, err
	}

	var spec ChartSpec
	if err := decodeModelJSON(content, &spec); err != nil {
		return ChartSpec{}, err
	}
	return spec, nil
}
