package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TurnID string

// NewTurnID generates a new unique TurnID
func NewTurnID() TurnID {
	return TurnID(uuid.New().String())
}

// ThreadID identifies one user's conversation with the assistant. The model's
// memory of prior turns is scoped per thread; threads never share state.
type ThreadID string

// ThreadOfUser derives the conversation thread for a user
func ThreadOfUser(userID int64) ThreadID {
	return ThreadID(fmt.Sprintf("user_%d", userID))
}

// Artifacts are the snapshots a tool actually resolved from the catalog.
// They are the only trusted source of recommendable items for a turn.
type Artifacts struct {
	Books    []BookSnapshot    `json:"books"`
	Articles []ArticleSnapshot `json:"articles"`
}

// Empty reports whether the tool resolved nothing
func (a Artifacts) Empty() bool {
	return len(a.Books) == 0 && len(a.Articles) == 0
}

// ToolResult is the outcome of one tool invocation. Text is fed back to the
// language model verbatim; Artifacts feed the recommendation validator.
type ToolResult struct {
	Text      string
	Artifacts Artifacts
}

// GeneratedResponse is the structured record produced for every user message
type GeneratedResponse struct {
	Answer              string            `json:"answer"`
	FollowUpQuestion    string            `json:"follow_up_question"`
	RecommendedBooks    []BookSnapshot    `json:"recommended_books"`
	RecommendedArticles []ArticleSnapshot `json:"recommended_articles"`
}

// RecommendationCount is the total number of items attached to the response
func (r *GeneratedResponse) RecommendationCount() int {
	return len(r.RecommendedBooks) + len(r.RecommendedArticles)
}

// ConversationTurn is the persisted record of one message/response exchange.
// A turn is written once after generation completes and never mutated.
type ConversationTurn struct {
	ID                  TurnID
	UserID              int64
	ThreadID            ThreadID
	Message             string
	Answer              string
	FollowUpQuestion    string
	RecommendedBooks    []BookSnapshot
	RecommendedArticles []ArticleSnapshot
	Language            string
	CreatedAt           time.Time
}
