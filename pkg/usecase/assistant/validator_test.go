package assistant_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/bunko/pkg/repository"
	"github.com/m-mizutani/bunko/pkg/usecase/assistant"
	"github.com/m-mizutani/gt"
)

func newCatalog(t *testing.T) *repository.Store {
	t.Helper()
	store, err := repository.NewStore(filepath.Join(t.TempDir(), "bunko.db"))
	gt.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestValidatePrefersArtifacts(t *testing.T) {
	ctx := context.Background()
	store := newCatalog(t)
	book := &model.Book{Title: "The Hobbit", Rating: 4.0}
	gt.NoError(t, store.PutBook(ctx, book))

	// The artifact snapshot is what the user saw this turn, even if the
	// catalog row moved on since
	artifacts := model.Artifacts{Books: []model.BookSnapshot{
		{ID: book.ID, Title: "The Hobbit", Rating: 4.8},
	}}

	v := assistant.NewValidator(store)
	resp := v.Validate(ctx, assistant.Draft{
		Answer:           "Try The Hobbit!",
		RecommendedBooks: []int64{book.ID},
	}, artifacts, "en")

	gt.A(t, resp.RecommendedBooks).Length(1)
	gt.Equal(t, resp.RecommendedBooks[0].Rating, 4.8)
}

func TestValidateFallsBackToCatalog(t *testing.T) {
	ctx := context.Background()
	store := newCatalog(t)
	book := &model.Book{Title: "Dune", Authors: []string{"Frank Herbert"}}
	gt.NoError(t, store.PutBook(ctx, book))

	v := assistant.NewValidator(store)
	resp := v.Validate(ctx, assistant.Draft{
		Answer:           "Dune is a classic.",
		RecommendedBooks: []int64{book.ID},
	}, model.Artifacts{}, "en")

	gt.A(t, resp.RecommendedBooks).Length(1)
	gt.Equal(t, resp.RecommendedBooks[0].Title, "Dune")
	gt.Equal(t, resp.RecommendedBooks[0].Author, "Frank Herbert")
}

func TestValidateDropsHallucinations(t *testing.T) {
	ctx := context.Background()
	store := newCatalog(t)
	book := &model.Book{Title: "Dune"}
	gt.NoError(t, store.PutBook(ctx, book))

	v := assistant.NewValidator(store)
	resp := v.Validate(ctx, assistant.Draft{
		Answer:           "Two great picks!",
		RecommendedBooks: []int64{book.ID, 9999},
	}, model.Artifacts{}, "en")

	gt.A(t, resp.RecommendedBooks).Length(1)
	gt.Equal(t, resp.RecommendedBooks[0].ID, book.ID)
	gt.Equal(t, resp.Answer, "Two great picks!")
}

func TestValidateNeutralAnswerWhenAllUngrounded(t *testing.T) {
	ctx := context.Background()
	store := newCatalog(t)

	v := assistant.NewValidator(store)
	resp := v.Validate(ctx, assistant.Draft{
		Answer:           "You should read 'The Invented Book' and 'Another Fake'!",
		RecommendedBooks: []int64{9998, 9999},
	}, model.Artifacts{}, "en")

	gt.Equal(t, resp.RecommendationCount(), 0)
	gt.False(t, strings.Contains(resp.Answer, "Invented"))

	// Same draft in French gets a French neutral answer
	respFr := v.Validate(ctx, assistant.Draft{
		Answer:           "Lisez 'Le Livre Inventé' !",
		RecommendedBooks: []int64{9999},
	}, model.Artifacts{}, "fr")
	gt.True(t, strings.Contains(respFr.Answer, "catalogue"))
}

func TestValidateCapsAtThree(t *testing.T) {
	ctx := context.Background()
	store := newCatalog(t)

	var bookIDs []int64
	for _, title := range []string{"A", "B", "C", "D"} {
		b := &model.Book{Title: title}
		gt.NoError(t, store.PutBook(ctx, b))
		bookIDs = append(bookIDs, b.ID)
	}
	article := &model.Article{Slug: "e", Title: "E"}
	gt.NoError(t, store.PutArticle(ctx, article))

	v := assistant.NewValidator(store)
	resp := v.Validate(ctx, assistant.Draft{
		Answer:              "Lots of picks",
		RecommendedBooks:    bookIDs,
		RecommendedArticles: []int64{article.ID},
	}, model.Artifacts{}, "en")

	gt.Equal(t, resp.RecommendationCount(), 3)
	gt.A(t, resp.RecommendedBooks).Length(3)
	gt.A(t, resp.RecommendedArticles).Length(0)
}

func TestValidateDeduplicates(t *testing.T) {
	ctx := context.Background()
	store := newCatalog(t)
	book := &model.Book{Title: "Dune"}
	gt.NoError(t, store.PutBook(ctx, book))

	v := assistant.NewValidator(store)
	resp := v.Validate(ctx, assistant.Draft{
		Answer:           "Dune, Dune, Dune.",
		RecommendedBooks: []int64{book.ID, book.ID, book.ID},
	}, model.Artifacts{}, "en")

	gt.A(t, resp.RecommendedBooks).Length(1)
}
