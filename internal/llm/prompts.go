package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"matrixchat/internal/model"
)

// inferredMetricCount is how many comparison pillars schema inference asks
// the model to synthesize.
const inferredMetricCount = 6

const extractionSystemPrompt = "You are an expert data extraction engine. Always return valid JSON."

func extractMetricPrompt(documentContent, metricLabel string) string {
	return fmt.Sprintf(`
ROLE: Expert Data Extraction Engine.
TASK: Extract information for the pillar: %[1]q.

DOCUMENT CONTENT:
%[2]s

EXTRACTION PROTOCOL:
1. TYPE DETECTION: Is %[1]q requesting a person (Leadership), a fiscal figure (Revenue), or a qualitative status?
2. EXHAUSTIVE SEARCH: Locate exact or semantically similar headers.
3. QUANTITATIVE: If numerical, find the latest value and preserve units ($, %%, etc.).
4. QUALITATIVE: If text-based (like names), synthesize into a clean, comma-separated list or short summary.
5. ABSENCE: If no data exists for %[1]q, set value to "NOT_FOUND".

MANDATORY: Return ONLY a valid JSON object with these fields:
- value: string (the extracted value or "NOT_FOUND")
- reasoning: string (explanation of how value was found)
- confidence: "High" | "Medium" | "Exploratory"
- sources: array of strings (relevant excerpts from document)
`, metricLabel, documentContent)
}

const inferSystemPrompt = "You are an expert at analyzing documents and synthesizing comparison metrics. Always return valid JSON."

func inferMetricsPrompt(snippets []model.DocSnippet) string {
	previews := make([]string, 0, len(snippets))
	for _, s := range snippets {
		previews = append(previews, fmt.Sprintf("[SOURCE: %s]\n%s", s.Name, s.Content))
	}
	return fmt.Sprintf(`
Analyze this collection of documents.
Synthesize exactly %d critical comparison pillars (columns) that represent the core information available across this ENTIRE batch.

CORPUS:
%s

CRITERIA:
- Mix qualitative (e.g. Leadership, Strategy, Risk) and quantitative (e.g. Revenue, Growth, Margin).
- Ensure pillars are distinct and comparison-ready.
- Return ONLY a JSON object with a "metrics" array of strings.
`, inferredMetricCount, strings.Join(previews, "\n---\n"))
}

const chatSystemPrompt = `You are a senior analytical assistant for a matrix-based document analysis tool.
Your responses must be concise, structured, and grounded in the provided data.

BEHAVIOR RULES:
1. MATRIX-FIRST: Always prioritize data from the matrix cells. Reference them explicitly.
2. DOCUMENT FALLBACK: Only use document excerpts if matrix doesn't have sufficient info.
3. CITATIONS: Every factual claim MUST have an inline citation using ONLY simple numbers like [1], [2], etc.
4. HONESTY: If you cannot answer confidently, say so. Never fabricate data.

CRITICAL - CITATION FORMAT IN RESPONSE TEXT:
- In your "response" field, ONLY use simple bracketed numbers: [1], [2], [3], etc.
- NEVER include raw IDs or parenthetical info in the response text
- BAD: "The paper [Doc 1] (doc_id=N_6F03AD) discusses..."
- GOOD: "The paper [1] discusses..."
- The citation details go in the "citations" array, NOT in the response text.

Always return valid JSON.`

func chatUserPrompt(query, matrixContext, documentContext, chatHistory string) string {
	return fmt.Sprintf(`
MATRIX STATE (prioritize this):
%s

DOCUMENT EXCERPTS (use only if matrix insufficient):
%s

RECENT CHAT:
%s

USER QUERY: %s

RESPONSE FORMAT (JSON):
{
  "response": "Your analytical response with inline citations like [1], [2]...",
  "citations": [
    {"index": 1, "type": "cell", "doc_id": "COPY_EXACT_DOC_ID_FROM_CONTEXT", "doc_name": "doc name", "metric_id": "COPY_EXACT_METRIC_ID_FROM_CONTEXT", "metric_label": "metric name", "value": "the cell value"},
    {"index": 2, "type": "document", "doc_id": "COPY_EXACT_DOC_ID_FROM_CONTEXT", "doc_name": "doc name", "section": "section name", "excerpt": "relevant excerpt"}
  ],
  "confidence": "High" | "Medium" | "Low",
  "matrix_cells_used": number,
  "documents_searched": number
}

IMPORTANT: Use the exact doc_id and metric_id values from the context above (found in parentheses like doc_id=xxx, metric_id=yyy). Never use placeholder "..." values.
`, matrixContext, documentContext, chatHistory, query)
}

const chatStreamSystemPrompt = `You are a senior analytical assistant for a matrix-based document analysis tool.
Your responses must be concise, structured, and grounded in the provided data.

BEHAVIOR RULES:
1. MATRIX-FIRST: Always prioritize data from the matrix cells.
2. DOCUMENT FALLBACK: Only use document excerpts if matrix doesn't have sufficient info.
3. CITATIONS: Use inline citations like [1], [2], etc. for factual claims.
4. HONESTY: If you cannot answer confidently, say so.

Use simple bracketed numbers [1], [2], [3] for citations in your response.`

func chatStreamUserPrompt(query, matrixContext, documentContext, chatHistory string) string {
	return fmt.Sprintf(`
MATRIX STATE (prioritize this):
%s

DOCUMENT EXCERPTS (use only if matrix insufficient):
%s

RECENT CHAT:
%s

USER QUERY: %s

Respond naturally with inline citations [1], [2], etc. referencing the data above.`, matrixContext, documentContext, chatHistory, query)
}

func citationFollowupPrompt(fullResponse, matrixContext, documentContext string) string {
	return fmt.Sprintf(`Based on this response and context, provide citations.

RESPONSE: %s

MATRIX CONTEXT: %s

DOCUMENT CONTEXT: %s

Return ONLY a JSON object with a "citations" array. Each citation should have:
- index: the number in [N] from the response
- type: "cell" or "document"
- doc_id: exact ID from context
- doc_name: document name
- For cells: metric_id, metric_label, value
- For documents: section, excerpt

Return: {"citations": [...]}`, fullResponse, matrixContext, documentContext)
}

const questionGeneratorSystemPrompt = "You generate analytical questions. Return valid JSON only."

func questionGeneratorPrompt(matrixContext string) string {
	return fmt.Sprintf(`You are an Analytical Question Generator for a financial research platform.

You analyze a matrix of data where:
- Rows = Entities (companies, documents, assets)
- Columns = Metrics (financial figures, ratios, qualitative data)
- Cells = Extracted values

Generate 3-5 analytical questions that reveal insights NOT obvious from scanning raw numbers.

QUESTION TYPES (pick the right visualization):
1. COMPARISON → "Which entity leads in X?" → Best for: LOLLIPOP chart
2. DELTA → "How do entities differ from average?" → Best for: DELTA_BAR chart
3. TREND → "How does X change across entities?" → Best for: LINE chart
4. DISTRIBUTION → "How is X spread across entities?" → Best for: BAR chart

IMPORTANT: Only generate questions for metrics with NUMERIC values.
Skip metrics that contain text descriptions, dates, or qualitative data.

OUTPUT FORMAT (JSON):
{
  "questions": [
    {
      "id": "q1",
      "question": "Which entity has the highest Net Profit?",
      "intent": "COMPARISON",
      "metrics_involved": ["Net Profit (EUR)"],
      "entities_involved": ["all"],
      "visualization_hint": "LOLLIPOP"
    }
  ]
}

RULES:
- Generate exactly 3-5 questions
- Only reference NUMERIC metrics (currency, percentages, counts)
- NEVER generate questions about text/qualitative metrics
- Each question should suggest one specific chart type

MATRIX CONTEXT:
%s

Generate analytical questions for this matrix. Return valid JSON only.`, matrixContext)
}

const questionAnswererSystemPrompt = "You generate chart data. Return ONLY valid JSON with numeric values."

func answerQuestionPrompt(question model.AnalyticalQuestion, matrixContext string, expectedEntities []string) string {
	intent := question.Intent
	if intent == "" {
		intent = "COMPARISON"
	}
	entityList := strings.Join(expectedEntities, ", ")
	return fmt.Sprintf(`You are a Visualization Data Generator. Your output feeds directly into a chart renderer.

CRITICAL REQUIREMENTS:
1. INCLUDE ALL ENTITIES - Do NOT skip any entity with numeric data
2. The "data" array MUST contain one entry for EACH entity in the matrix
3. Each entry: {"label": "string", "value": NUMBER, "highlight": boolean}
4. "value" MUST be a raw number (not string, not null)

=== CHART TYPES ===

1. LOLLIPOP - Ranked comparison. Use for: "Which entity has highest/lowest X?"
2. DELTA_BAR - Deviation from average (REQUIRED for "differ from average" questions).
   MUST compute: value = entity_value - mean_of_all_values.
   Result will have positive AND negative values.
3. LINE - Trend over time/sequence. Order by time (2020, 2021, 2022, etc.)
4. BAR - Simple comparison.

=== PARSING VALUES FROM MATRIX ===

"714m" → 714000000
"1,265,886" → 1265886
"€5.2M" → 5200000
"15.3%%" → 15.3

=== OUTPUT FORMAT ===

{
  "answer_summary": "2021 shows highest deviation at +610M above average",
  "visualization": {
    "type": "DELTA_BAR",
    "title": "Net Profit Deviation",
    "y_axis": {"unit": "currency"},
    "data": [
      {"label": "2020", "value": -145188377, "highlight": false},
      {"label": "2021", "value": 609811623, "highlight": true}
    ],
    "insight": "2021 led with 610M above average"
  }
}

=== YOUR TASK ===

QUESTION: %s
INTENT: %s
METRICS INVOLVED: %v

MATRIX DATA:
%s

EXPECTED ENTITIES (YOU MUST INCLUDE ALL OF THESE): %s

CRITICAL INSTRUCTIONS:
1. You MUST include ALL %d entities: %s
2. Extract numeric values for each entity from the relevant metric column
3. For "differ from average" questions compute delta = entity_value - mean and use DELTA_BAR
4. Return valid JSON with RAW NUMBERS only (not strings)
5. Set "highlight": true on the entity with largest absolute deviation
6. DO NOT SKIP ANY ENTITY

Return valid JSON:`, question.Question, intent, question.MetricsInvolved, matrixContext, entityList, len(expectedEntities), entityList)
}

const chartOrchestratorSystemPrompt = `You are an Analytical Visualization Orchestrator for a professional financial research platform.

Your job is not to visualize data by default.
Your job is to decide whether a chart is warranted, what question it answers, and how it should be rendered so that it reveals insight that is not obvious from a table alone.

The matrix is the primary surface. Charts are secondary analytical lenses.

You will receive a structured JSON payload with metric metadata (label, unit), data characteristics (values, cardinality, variance statistics), matrix context (related columns), and user context (whether a chart was explicitly requested).

Perform these steps in order:

1. Decide whether a chart should exist. Ask: does a chart reveal something a human would not immediately notice by scanning the matrix? If not, return {"should_render": false, "reason": "Matrix already communicates this information clearly"}. Do NOT invent a chart for aesthetic reasons.

2. Determine the one primary analytical question the chart answers, explicit and concise.

3. Resolve the analytical intent from that question: one of TREND, DELTA, RELATIONSHIP, COMPARISON, DISTRIBUTION, COMPOSITION.

4. Select the chart type that answers the question: one of LINE, AREA, SLOPE, SCATTER, BOX, HISTOGRAM, WATERFALL, LOLLIPOP, DELTA_BAR.

5. Provide axes with semantic labels and units, what to emphasize, and a single muted insight annotation.

Return ONLY a valid JSON object:
{
  "should_render": boolean,
  "reason": "string, only when should_render is false",
  "primary_question": "string",
  "intent": "TREND|DELTA|RELATIONSHIP|COMPARISON|DISTRIBUTION|COMPOSITION",
  "chart_type": "LINE|AREA|SLOPE|SCATTER|BOX|HISTOGRAM|WATERFALL|LOLLIPOP|DELTA_BAR",
  "axes": {"x": {"label": "...", "semantic": "...", "unit": "..."}, "y": {"label": "...", "semantic": "...", "unit": "..."}},
  "emphasis": ["..."],
  "insight": "string",
  "placement": "SIDE_RAIL"
}
intent and chart_type are REQUIRED when should_render is true.`

func chartSpecUserPrompt(input ChartSpecInput) string {
	payload, _ := json.MarshalIndent(input, "", "  ")
	return fmt.Sprintf("Analyze this column and decide on visualization:\n\n%s", payload)
}
