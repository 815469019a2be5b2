package assistant_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/bunko/pkg/index"
	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/bunko/pkg/repository"
	"github.com/m-mizutani/bunko/pkg/tool"
	"github.com/m-mizutani/bunko/pkg/usecase/assistant"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

// mockGemini is a mock implementation of adapter.Gemini for testing
type mockGemini struct {
	generateFunc  func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	embeddingFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, contents, config)
	}
	return nil, errors.New("not implemented")
}

func (m *mockGemini) Embedding(ctx context.Context, text string) ([]float32, error) {
	if m.embeddingFunc != nil {
		return m.embeddingFunc(ctx, text)
	}
	return []float32{1, 0, 0}, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: text}},
			},
		}},
	}
}

func callResponse(name string, args map[string]any) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{Name: name, Args: args}}},
			},
		}},
	}
}

type engineFixture struct {
	store  *repository.Store
	gemini *mockGemini
	engine *assistant.Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	store, err := repository.NewStore(filepath.Join(t.TempDir(), "bunko.db"))
	gt.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	gemini := &mockGemini{}
	idx := index.New(gemini)
	registry := tool.New(store, store, store, idx, nil)
	engine := assistant.New(gemini, registry, store, store, store)
	return &engineFixture{store: store, gemini: gemini, engine: engine}
}

func TestRespondWithToolCall(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	book := &model.Book{Title: "The Hobbit", Authors: []string{"J.R.R. Tolkien"}, Categories: []string{"Fantasy"}, Rating: 4.8}
	gt.NoError(t, f.store.PutBook(ctx, book))

	// Turn script: decide to search, then stop calling tools, then emit the
	// structured final response
	step := 0
	f.gemini.generateFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		if config.ResponseSchema != nil {
			return textResponse(fmt.Sprintf(
				`{"answer": "You might enjoy The Hobbit!", "follow_up_question": "Have you read Tolkien before?", "recommended_books": [{"id": %d, "title": "The Hobbit"}]}`,
				book.ID)), nil
		}
		step++
		if step == 1 {
			return callResponse("search_by_category", map[string]any{"category": "Fantasy"}), nil
		}
		return textResponse("I found a good match."), nil
	}

	resp := f.engine.Respond(ctx, assistant.RespondInput{UserID: 7, Message: "any good fantasy books?", Language: "en"})
	gt.Equal(t, resp.Answer, "You might enjoy The Hobbit!")
	gt.Equal(t, resp.FollowUpQuestion, "Have you read Tolkien before?")
	gt.A(t, resp.RecommendedBooks).Length(1)
	gt.Equal(t, resp.RecommendedBooks[0].Title, "The Hobbit")

	// The turn must be persisted with its recommendations
	turns, err := f.store.ListTurns(ctx, 7, 10)
	gt.NoError(t, err)
	gt.A(t, turns).Length(1)
	gt.Equal(t, turns[0].Message, "any good fantasy books?")
	gt.A(t, turns[0].RecommendedBooks).Length(1)
}

func TestRespondDropsHallucinatedRecommendation(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	step := 0
	f.gemini.generateFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		if config.ResponseSchema != nil {
			return textResponse(`{"answer": "Read 'The Invented Book'!", "recommended_books": [{"id": 9999, "title": "The Invented Book"}]}`), nil
		}
		step++
		if step == 1 {
			return callResponse("get_categories", nil), nil
		}
		return textResponse("Checked the catalog."), nil
	}

	resp := f.engine.Respond(ctx, assistant.RespondInput{UserID: 7, Message: "recommend something", Language: "en"})
	gt.Equal(t, resp.RecommendationCount(), 0)
	gt.False(t, strings.Contains(resp.Answer, "Invented"))
}

func TestRespondDirectAnswerSkipsGeneration(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	structuredCalls := 0
	f.gemini.generateFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		if config.ResponseSchema != nil {
			structuredCalls++
			return textResponse(`{"answer": "unused"}`), nil
		}
		return textResponse("Hello! How can I help you today?"), nil
	}

	resp := f.engine.Respond(ctx, assistant.RespondInput{UserID: 7, Message: "hello", Language: "en"})

	// A turn that never touched a tool uses the decision text as-is; no
	// second model call is made
	gt.Equal(t, resp.Answer, "Hello! How can I help you today?")
	gt.Equal(t, resp.RecommendationCount(), 0)
	gt.Equal(t, structuredCalls, 0)

	// The trivial turn is still recorded
	turns, err := f.store.ListTurns(ctx, 7, 10)
	gt.NoError(t, err)
	gt.A(t, turns).Length(1)
}

func TestRespondFallsBackOnModelError(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.gemini.generateFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return nil, errors.New("model unavailable")
	}

	resp := f.engine.Respond(ctx, assistant.RespondInput{UserID: 7, Message: "hello", Language: "fr"})
	gt.Equal(t, resp.RecommendationCount(), 0)
	gt.True(t, strings.Contains(resp.Answer, "Désolé"))

	// A failed turn is not recorded
	turns, err := f.store.ListTurns(ctx, 7, 10)
	gt.NoError(t, err)
	gt.A(t, turns).Length(0)
}

func TestRespondStopsAtToolRoundLimit(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	toolRounds := 0
	f.gemini.generateFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		if config.ResponseSchema != nil {
			return textResponse(`{"answer": "Done."}`), nil
		}
		// The model keeps asking for tools; the engine must cut it off
		toolRounds++
		return callResponse("get_categories", nil), nil
	}

	resp := f.engine.Respond(ctx, assistant.RespondInput{UserID: 7, Message: "loop forever", Language: "en"})
	gt.Equal(t, resp.Answer, "Done.")
	gt.Equal(t, toolRounds, 4)
}

func TestClearConversation(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.gemini.generateFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return textResponse("Hello!"), nil
	}

	f.engine.Respond(ctx, assistant.RespondInput{UserID: 7, Message: "hi", Language: "en"})
	f.engine.Respond(ctx, assistant.RespondInput{UserID: 7, Message: "hi again", Language: "en"})

	n, err := f.engine.ClearConversation(ctx, 7)
	gt.NoError(t, err)
	gt.Equal(t, n, int64(2))

	turns, err := f.engine.History(ctx, 7, 10)
	gt.NoError(t, err)
	gt.A(t, turns).Length(0)
}

func TestMemoryCarriesAcrossTurns(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	var lastContents []*genai.Content
	f.gemini.generateFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		lastContents = contents
		return textResponse("Noted."), nil
	}

	f.engine.Respond(ctx, assistant.RespondInput{UserID: 7, Message: "first message", Language: "en"})
	f.engine.Respond(ctx, assistant.RespondInput{UserID: 7, Message: "second message", Language: "en"})

	// Second turn replays the first exchange before the new message
	gt.A(t, lastContents).Length(3)
	gt.Equal(t, lastContents[0].Parts[0].Text, "first message")
	gt.Equal(t, lastContents[1].Parts[0].Text, "Noted.")
	gt.Equal(t, lastContents[2].Parts[0].Text, "second message")
}
