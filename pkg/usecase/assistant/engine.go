package assistant

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/bunko/pkg/adapter"
	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/bunko/pkg/repository"
	"github.com/m-mizutani/bunko/pkg/tool"
	"github.com/m-mizutani/bunko/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/decide.md
var decidePromptRaw string

var decidePromptTmpl = template.Must(template.New("decide").Parse(decidePromptRaw))

// defaultMaxToolRounds bounds how many model/tool round trips one turn may
// take before the engine forces a final answer
const defaultMaxToolRounds = 4

// Engine runs the conversation loop: the model decides which tools to call,
// tool results are fed back, and a final structured response is generated and
// validated against the catalog.
type Engine struct {
	gemini        adapter.Gemini
	registry      *tool.Registry
	conversations repository.Conversations
	rentals       repository.Rentals
	validator     *Validator
	memory        *threadMemory
	maxToolRounds int
}

// Option configures an Engine
type Option func(*Engine)

// WithMaxToolRounds overrides the tool round limit
func WithMaxToolRounds(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxToolRounds = n
		}
	}
}

// New creates the conversation engine
func New(gemini adapter.Gemini, registry *tool.Registry, catalog repository.Catalog, conversations repository.Conversations, rentals repository.Rentals, options ...Option) *Engine {
	e := &Engine{
		gemini:        gemini,
		registry:      registry,
		conversations: conversations,
		rentals:       rentals,
		validator:     NewValidator(catalog),
		memory:        newThreadMemory(),
		maxToolRounds: defaultMaxToolRounds,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// RespondInput is one user message addressed to the assistant
type RespondInput struct {
	UserID   int64
	Message  string
	Language string
}

// Respond handles one conversation turn. It never returns an error: any
// failure along the way degrades to a language-appropriate fallback answer,
// because a broken turn should read like a shrug, not a stack trace.
func (e *Engine) Respond(ctx context.Context, input RespondInput) *model.GeneratedResponse {
	logger := logging.From(ctx)
	language := normalizeLanguage(input.Language)
	thread := model.ThreadOfUser(input.UserID)

	systemPrompt, err := e.decidePrompt(ctx, input.UserID, language)
	if err != nil {
		logger.Error("failed to build system prompt", "error", err)
		return fallbackResponse(language)
	}

	userContent := genai.NewContentFromText(input.Message, genai.RoleUser)
	contents := append(e.memory.history(thread), userContent)

	artifacts, contents, direct, err := e.runToolLoop(ctx, contents, systemPrompt, tool.Identity{UserID: input.UserID})
	if err != nil {
		logger.Error("tool loop failed", "user_id", input.UserID, "error", err)
		return fallbackResponse(language)
	}

	var resp *model.GeneratedResponse
	if direct != "" {
		// The model answered without consulting any tool. There is nothing
		// to recommend or ground, so the decision text is the answer.
		resp = &model.GeneratedResponse{Answer: direct}
	} else {
		draft, err := e.generate(ctx, contents, language)
		if err != nil {
			logger.Error("final generation failed", "user_id", input.UserID, "error", err)
			return fallbackResponse(language)
		}
		resp = e.validator.Validate(ctx, draft, artifacts, language)
	}

	e.memory.append(thread, userContent, genai.NewContentFromText(resp.Answer, genai.RoleModel))

	turn := &model.ConversationTurn{
		UserID:              input.UserID,
		ThreadID:            thread,
		Message:             input.Message,
		Answer:              resp.Answer,
		FollowUpQuestion:    resp.FollowUpQuestion,
		RecommendedBooks:    resp.RecommendedBooks,
		RecommendedArticles: resp.RecommendedArticles,
		Language:            language,
	}
	if err := e.conversations.PutTurn(ctx, turn); err != nil {
		// The user already has their answer; losing the record is log-worthy only
		logger.Warn("failed to persist conversation turn", "user_id", input.UserID, "error", err)
	}

	return resp
}

// decidePrompt renders the system instruction for the tool-calling phase,
// folding in the user's reading history when available
func (e *Engine) decidePrompt(ctx context.Context, userID int64, language string) (string, error) {
	var history []string
	if e.rentals != nil {
		books, err := e.rentals.ApprovedBooks(ctx, userID)
		if err != nil {
			logging.From(ctx).Warn("failed to load reading history", "user_id", userID, "error", err)
		} else {
			for _, b := range books {
				history = append(history, b.Title)
			}
		}
	}

	var buf bytes.Buffer
	if err := decidePromptTmpl.Execute(&buf, map[string]any{
		"Language":       languageName(language),
		"ReadingHistory": history,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to render decide prompt")
	}
	return buf.String(), nil
}

// runToolLoop lets the model call tools until it stops or the round limit is
// reached. Tool faults are surfaced to the model as error text so it can
// adjust course instead of the turn dying. When the model answers without
// calling a single tool, the answer text is returned as direct and the
// caller skips the structured generation pass.
func (e *Engine) runToolLoop(ctx context.Context, contents []*genai.Content, systemPrompt string, id tool.Identity) (model.Artifacts, []*genai.Content, string, error) {
	logger := logging.From(ctx)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
		Tools:             e.registry.Specs(),
	}

	var artifacts model.Artifacts
	usedTools := false
	for round := 0; round < e.maxToolRounds; round++ {
		resp, err := e.gemini.GenerateContent(ctx, contents, config)
		if err != nil {
			return artifacts, contents, "", goerr.Wrap(err, "failed to generate tool decision")
		}

		hasCall := false
		var funcParts []*genai.Part
		var text strings.Builder
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			contents = append(contents, candidate.Content)

			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
				if part.FunctionCall == nil {
					continue
				}
				hasCall = true

				result, err := e.registry.Execute(ctx, *part.FunctionCall, id)
				if err != nil {
					logger.Warn("tool execution failed", "tool", part.FunctionCall.Name, "error", err)
					result = &model.ToolResult{Text: "The tool failed: " + err.Error()}
				}
				logger.Debug("tool executed", "tool", part.FunctionCall.Name,
					"books", len(result.Artifacts.Books), "articles", len(result.Artifacts.Articles))

				artifacts = mergeArtifacts(artifacts, result.Artifacts)
				funcParts = append(funcParts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					Name:     part.FunctionCall.Name,
					Response: map[string]any{"result": result.Text},
				}})
			}
		}

		if len(funcParts) > 0 {
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: funcParts})
		}
		if !hasCall {
			if !usedTools {
				return artifacts, contents, text.String(), nil
			}
			break
		}
		usedTools = true
	}

	return artifacts, contents, "", nil
}

// mergeArtifacts accumulates tool artifacts across rounds, deduplicated by ID
func mergeArtifacts(acc, add model.Artifacts) model.Artifacts {
	seenBooks := make(map[int64]bool, len(acc.Books))
	for _, b := range acc.Books {
		seenBooks[b.ID] = true
	}
	for _, b := range add.Books {
		if !seenBooks[b.ID] {
			acc.Books = append(acc.Books, b)
			seenBooks[b.ID] = true
		}
	}

	seenArticles := make(map[int64]bool, len(acc.Articles))
	for _, a := range acc.Articles {
		seenArticles[a.ID] = true
	}
	for _, a := range add.Articles {
		if !seenArticles[a.ID] {
			acc.Articles = append(acc.Articles, a)
			seenArticles[a.ID] = true
		}
	}
	return acc
}

// History returns the user's persisted conversation turns, oldest first
func (e *Engine) History(ctx context.Context, userID int64, limit int) ([]*model.ConversationTurn, error) {
	return e.conversations.ListTurns(ctx, userID, limit)
}

// ClearConversation wipes both the in-process thread memory and the
// persisted turns, returning how many records were removed
func (e *Engine) ClearConversation(ctx context.Context, userID int64) (int64, error) {
	e.memory.clear(model.ThreadOfUser(userID))

	n, err := e.conversations.ClearTurns(ctx, userID)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to clear conversation turns", goerr.V("user_id", userID))
	}
	return n, nil
}

func normalizeLanguage(language string) string {
	switch language {
	case "fr", "ar", "en":
		return language
	default:
		return "en"
	}
}

func languageName(code string) string {
	switch code {
	case "fr":
		return "French"
	case "ar":
		return "Arabic"
	default:
		return "English"
	}
}

func fallbackResponse(language string) *model.GeneratedResponse {
	switch language {
	case "fr":
		return &model.GeneratedResponse{
			Answer: "Désolé, je rencontre un problème technique en ce moment. Veuillez réessayer dans un instant.",
		}
	case "ar":
		return &model.GeneratedResponse{
			Answer: "عذرًا، أواجه مشكلة تقنية حاليًا. يرجى المحاولة مرة أخرى بعد قليل.",
		}
	default:
		return &model.GeneratedResponse{
			Answer: "Sorry, I'm having technical trouble right now. Please try again in a moment.",
		}
	}
}
