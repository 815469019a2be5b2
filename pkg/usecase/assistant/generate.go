package assistant

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/generate.md
var generatePromptRaw string

var generatePromptTmpl = template.Must(template.New("generate").Parse(generatePromptRaw))

type rawItem struct {
	ID    any    `json:"id"`
	Title string `json:"title"`
}

type rawResponse struct {
	Answer              string    `json:"answer"`
	FollowUpQuestion    string    `json:"follow_up_question"`
	RecommendedBooks    []rawItem `json:"recommended_books"`
	RecommendedArticles []rawItem `json:"recommended_articles"`
}

// generate runs the final structured-output call over the full turn
// transcript and parses the JSON into a draft for validation
func (e *Engine) generate(ctx context.Context, contents []*genai.Content, language string) (Draft, error) {
	var buf bytes.Buffer
	if err := generatePromptTmpl.Execute(&buf, map[string]any{
		"Language": languageName(language),
	}); err != nil {
		return Draft{}, goerr.Wrap(err, "failed to render generate prompt")
	}

	schema, err := convertSchema(responseSchema)
	if err != nil {
		return Draft{}, goerr.Wrap(err, "failed to convert response schema")
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(buf.String(), ""),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
	}

	resp, err := e.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return Draft{}, goerr.Wrap(err, "failed to generate final response")
	}

	text := responseText(resp)
	if text == "" {
		return Draft{}, goerr.New("model returned no response text")
	}

	var raw rawResponse
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Draft{}, goerr.Wrap(err, "failed to parse structured response", goerr.V("text", text))
	}
	if strings.TrimSpace(raw.Answer) == "" {
		return Draft{}, goerr.New("structured response has empty answer")
	}

	draft := Draft{
		Answer:           raw.Answer,
		FollowUpQuestion: raw.FollowUpQuestion,
	}
	for _, item := range raw.RecommendedBooks {
		draft.RecommendedBooks = append(draft.RecommendedBooks, model.CoerceInt(item.ID))
	}
	for _, item := range raw.RecommendedArticles {
		draft.RecommendedArticles = append(draft.RecommendedArticles, model.CoerceInt(item.ID))
	}
	return draft, nil
}

// responseText concatenates all text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
		break
	}
	return strings.TrimSpace(sb.String())
}
