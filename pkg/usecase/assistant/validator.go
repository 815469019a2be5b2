package assistant

import (
	"context"

	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/bunko/pkg/repository"
	"github.com/m-mizutani/bunko/pkg/utils/logging"
)

// maxRecommendations caps how many items one response may recommend
const maxRecommendations = 3

// Draft is the model's unvalidated final output: prose plus the catalog IDs
// it claims to recommend
type Draft struct {
	Answer              string
	FollowUpQuestion    string
	RecommendedBooks    []int64
	RecommendedArticles []int64
}

// Validator grounds model recommendations in the catalog. Every recommended
// ID must resolve to a real record: first against the artifacts tools
// produced this turn, then against the catalog itself. Anything else is a
// hallucination and is dropped.
type Validator struct {
	catalog repository.Catalog
}

// NewValidator creates a validator backed by the given catalog
func NewValidator(catalog repository.Catalog) *Validator {
	return &Validator{catalog: catalog}
}

// Validate turns a draft into the final response. It never fails: a catalog
// lookup error just means the ID cannot be verified, so the item is dropped
// like any other ungrounded recommendation.
func (v *Validator) Validate(ctx context.Context, draft Draft, artifacts model.Artifacts, language string) *model.GeneratedResponse {
	logger := logging.From(ctx)
	resp := &model.GeneratedResponse{
		Answer:           draft.Answer,
		FollowUpQuestion: draft.FollowUpQuestion,
	}

	byArtifactBook := make(map[int64]model.BookSnapshot, len(artifacts.Books))
	for _, b := range artifacts.Books {
		byArtifactBook[b.ID] = b
	}
	byArtifactArticle := make(map[int64]model.ArticleSnapshot, len(artifacts.Articles))
	for _, a := range artifacts.Articles {
		byArtifactArticle[a.ID] = a
	}

	seenBooks := make(map[int64]bool)
	for _, id := range draft.RecommendedBooks {
		if resp.RecommendationCount() >= maxRecommendations {
			break
		}
		if id <= 0 || seenBooks[id] {
			continue
		}
		seenBooks[id] = true

		if snap, ok := byArtifactBook[id]; ok {
			resp.RecommendedBooks = append(resp.RecommendedBooks, snap)
			continue
		}
		book, err := v.catalog.GetBook(ctx, id)
		if err != nil {
			logger.Warn("could not verify recommended book, dropping", "book_id", id, "error", err)
			continue
		}
		if book == nil {
			logger.Warn("model recommended nonexistent book, dropping", "book_id", id)
			continue
		}
		resp.RecommendedBooks = append(resp.RecommendedBooks, model.SnapshotOfBook(book))
	}

	seenArticles := make(map[int64]bool)
	for _, id := range draft.RecommendedArticles {
		if resp.RecommendationCount() >= maxRecommendations {
			break
		}
		if id <= 0 || seenArticles[id] {
			continue
		}
		seenArticles[id] = true

		if snap, ok := byArtifactArticle[id]; ok {
			resp.RecommendedArticles = append(resp.RecommendedArticles, snap)
			continue
		}
		article, err := v.catalog.GetArticle(ctx, id)
		if err != nil {
			logger.Warn("could not verify recommended article, dropping", "article_id", id, "error", err)
			continue
		}
		if article == nil {
			logger.Warn("model recommended nonexistent article, dropping", "article_id", id)
			continue
		}
		resp.RecommendedArticles = append(resp.RecommendedArticles, model.SnapshotOfArticle(article))
	}

	// If every claimed recommendation turned out to be ungrounded, the prose
	// likely names items we refused to attach. Replace it rather than let the
	// user see titles that do not exist.
	claimed := len(draft.RecommendedBooks) + len(draft.RecommendedArticles)
	if claimed > 0 && resp.RecommendationCount() == 0 {
		logger.Warn("all recommendations were ungrounded, using neutral answer", "claimed", claimed)
		resp.Answer = neutralAnswer(language)
	}

	return resp
}

func neutralAnswer(language string) string {
	switch language {
	case "fr":
		return "Je n'ai pas trouvé d'articles correspondants dans notre catalogue pour le moment. Pouvez-vous préciser ce que vous cherchez ?"
	case "ar":
		return "لم أتمكن من العثور على عناصر مطابقة في الفهرس حاليًا. هل يمكنك توضيح ما تبحث عنه؟"
	default:
		return "I couldn't find matching items in our catalog right now. Could you tell me a bit more about what you're looking for?"
	}
}
