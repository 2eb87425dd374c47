package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"matrixchat/internal/llm"
	"matrixchat/internal/llm/mocks"
	"matrixchat/internal/model"
	"matrixchat/internal/questions"
)

func questionsRequestBody() QuestionsRequest {
	return QuestionsRequest{
		Documents: []model.Document{
			{ID: "d1", Name: "Annual Report 2020.pdf"},
			{ID: "d2", Name: "Annual Report 2021.pdf"},
		},
		Metrics: []model.Metric{
			{ID: "m1", Label: "Net Profit (EUR)"},
		},
		Cells: map[string]model.Cell{
			"d1-m1": {Value: "714m"},
			"d2-m1": {Value: "€1.4B"},
		},
	}
}

func TestQuestionsHandlerGenerate(t *testing.T) {
	ctrl := gomock.NewController(t)
	llmService := mocks.NewMockService(ctrl)
	llmService.EXPECT().
		GenerateQuestions(gomock.Any(), gomock.Any()).
		Return([]model.AnalyticalQuestion{
			{ID: "q1", Question: "Which year leads in Net Profit?", Intent: "COMPARISON", VisualizationHint: "LOLLIPOP"},
			{ID: "q2", Question: "How do years differ from average Net Profit?", Intent: "DELTA", VisualizationHint: "DELTA_BAR"},
		}, nil)

	handler := NewQuestionsHandler(questions.NewService(llmService))
	body, _ := json.Marshal(questionsRequestBody())
	w := httptest.NewRecorder()
	handler.Generate(w, httptest.NewRequest(http.MethodPost, "/api/analytical-questions", bytes.NewBuffer(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp QuestionsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Questions) != 2 {
		t.Fatalf("questions = %+v, want 2", resp.Questions)
	}
	if resp.Questions[0].VisualizationHint != "LOLLIPOP" {
		t.Errorf("q1 hint = %q", resp.Questions[0].VisualizationHint)
	}
}

func TestQuestionsHandlerGenerateFallsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	llmService := mocks.NewMockService(ctrl)
	llmService.EXPECT().
		GenerateQuestions(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("provider down"))

	handler := NewQuestionsHandler(questions.NewService(llmService))
	body, _ := json.Marshal(questionsRequestBody())
	w := httptest.NewRecorder()
	handler.Generate(w, httptest.NewRequest(http.MethodPost, "/api/analytical-questions", bytes.NewBuffer(body)))

	// A provider failure still yields deterministic questions.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp QuestionsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Questions) != 2 {
		t.Fatalf("questions = %+v, want 2 fallback questions", resp.Questions)
	}
}

func TestQuestionsHandlerGenerateInvalidBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	handler := NewQuestionsHandler(questions.NewService(mocks.NewMockService(ctrl)))

	w := httptest.NewRecorder()
	handler.Generate(w, httptest.NewRequest(http.MethodPost, "/api/analytical-questions", bytes.NewBufferString("{")))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestQuestionsHandlerAnswer(t *testing.T) {
	ctrl := gomock.NewController(t)
	llmService := mocks.NewMockService(ctrl)
	llmService.EXPECT().
		AnswerQuestion(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(llm.QuestionAnswer{
			AnswerSummary: "2021 leads",
			Visualization: &llm.QuestionVisualization{
				Type: "LOLLIPOP",
				Data: []llm.QuestionPoint{
					{Label: "2020", Value: 714000000.0},
					{Label: "2021", Value: 1400000000.0, Highlight: true},
				},
			},
		}, nil)

	handler := NewQuestionsHandler(questions.NewService(llmService))
	req := questionsRequestBody()
	body, _ := json.Marshal(AnswerRequest{
		Question: model.AnalyticalQuestion{
			ID:              "q1",
			Question:        "Which year leads in Net Profit?",
			Intent:          "COMPARISON",
			MetricsInvolved: []string{"Net Profit (EUR)"},
		},
		Documents: req.Documents,
		Metrics:   req.Metrics,
		Cells:     req.Cells,
	})
	w := httptest.NewRecorder()
	handler.Answer(w, httptest.NewRequest(http.MethodPost, "/api/answer-question", bytes.NewBuffer(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var answer questions.Answer
	if err := json.NewDecoder(w.Body).Decode(&answer); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if answer.Visualization == nil || len(answer.Visualization.Data) != 2 {
		t.Fatalf("answer = %+v", answer)
	}
	if answer.Visualization.Type != "LOLLIPOP" {
		t.Errorf("type = %q", answer.Visualization.Type)
	}
}

func TestQuestionsHandlerAnswerRequiresQuestion(t *testing.T) {
	ctrl := gomock.NewController(t)
	handler := NewQuestionsHandler(questions.NewService(mocks.NewMockService(ctrl)))

	body, _ := json.Marshal(AnswerRequest{})
	w := httptest.NewRecorder()
	handler.Answer(w, httptest.NewRequest(http.MethodPost, "/api/answer-question", bytes.NewBuffer(body)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "Question is required" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestQuestionsHandlerAnswerProviderFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	llmService := mocks.NewMockService(ctrl)
	llmService.EXPECT().
		AnswerQuestion(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(llm.QuestionAnswer{}, errors.New("provider down"))

	handler := NewQuestionsHandler(questions.NewService(llmService))
	body, _ := json.Marshal(AnswerRequest{
		Question: model.AnalyticalQuestion{ID: "q1", Question: "Which year leads?"},
	})
	w := httptest.NewRecorder()
	handler.Answer(w, httptest.NewRequest(http.MethodPost, "/api/answer-question", bytes.NewBuffer(body)))

	// Degraded answers stay 200: the failure is reported in the payload.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var answer questions.Answer
	if err := json.NewDecoder(w.Body).Decode(&answer); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if answer.AnswerSummary != "Unable to generate visualization" || answer.Error != "provider down" {
		t.Errorf("answer = %+v", answer)
	}
}
