package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/bunko/pkg/repository"
	"github.com/m-mizutani/gt"
)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	store, err := repository.NewStore(filepath.Join(t.TempDir(), "bunko.db"))
	gt.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestBookCRUD(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	book := &model.Book{
		Title:           "The Hobbit",
		Authors:         []string{"J.R.R. Tolkien"},
		Categories:      []string{"Fantasy"},
		Rating:          4.8,
		TotalCopies:     3,
		AvailableCopies: 2,
	}
	gt.NoError(t, store.PutBook(ctx, book))
	gt.V(t, book.ID).NotEqual(0)

	retrieved, err := store.GetBook(ctx, book.ID)
	gt.NoError(t, err)
	gt.V(t, retrieved).NotNil()
	gt.Equal(t, retrieved.Title, "The Hobbit")
	gt.Equal(t, retrieved.Authors, []string{"J.R.R. Tolkien"})
	gt.Equal(t, retrieved.Rating, 4.8)

	// Upsert by explicit ID
	retrieved.Rating = 4.9
	gt.NoError(t, store.PutBook(ctx, retrieved))
	updated, err := store.GetBook(ctx, book.ID)
	gt.NoError(t, err)
	gt.Equal(t, updated.Rating, 4.9)

	gt.NoError(t, store.DeleteBook(ctx, book.ID))
	gone, err := store.GetBook(ctx, book.ID)
	gt.NoError(t, err)
	gt.V(t, gone).Nil()
}

func TestGetBookNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	book, err := store.GetBook(ctx, 9999)
	gt.NoError(t, err)
	gt.V(t, book).Nil()
}

func TestBookQueries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	books := []*model.Book{
		{Title: "Dune", Authors: []string{"Frank Herbert"}, Categories: []string{"Science Fiction"}, Rating: 4.5, BorrowCount: 10, AvailableCopies: 1},
		{Title: "The Hobbit", Authors: []string{"J.R.R. Tolkien"}, Categories: []string{"Fantasy"}, Rating: 4.8, BorrowCount: 25, AvailableCopies: 2},
		{Title: "A Wizard of Earthsea", Authors: []string{"Ursula K. Le Guin"}, Categories: []string{"Fantasy"}, Rating: 4.3, BorrowCount: 5, AvailableCopies: 1},
	}
	for _, b := range books {
		gt.NoError(t, store.PutBook(ctx, b))
	}

	listed, err := store.ListBooks(ctx, 0, 100)
	gt.NoError(t, err)
	gt.A(t, listed).Length(3)

	t.Run("category matches case-insensitively", func(t *testing.T) {
		fantasy, err := store.BooksByCategory(ctx, "fantasy", 10)
		gt.NoError(t, err)
		gt.A(t, fantasy).Length(2)
	})

	t.Run("popular orders by rating then borrows", func(t *testing.T) {
		popular, err := store.PopularBooks(ctx, 2)
		gt.NoError(t, err)
		gt.A(t, popular).Length(2)
		gt.Equal(t, popular[0].Title, "The Hobbit")
	})

	t.Run("search combines filters", func(t *testing.T) {
		results, err := store.SearchBooks(ctx, repository.SearchQuery{
			Author:    "tolkien",
			MinRating: 4.0,
		})
		gt.NoError(t, err)
		gt.A(t, results).Length(1)
		gt.Equal(t, results[0].Title, "The Hobbit")
	})

	t.Run("categories with counts", func(t *testing.T) {
		counts, err := store.BookCategories(ctx)
		gt.NoError(t, err)
		gt.Equal(t, counts["Fantasy"], 2)
		gt.Equal(t, counts["Science Fiction"], 1)
	})
}

func TestArticleCRUD(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	article := &model.Article{
		Slug:     "go-concurrency",
		Title:    "Go Concurrency Patterns",
		Author:   "R. Pike",
		Category: "Programming",
		Tags:     []string{"go", "concurrency"},
		Views:    120,
		Likes:    30,
	}
	gt.NoError(t, store.PutArticle(ctx, article))
	gt.V(t, article.ID).NotEqual(0)

	retrieved, err := store.GetArticle(ctx, article.ID)
	gt.NoError(t, err)
	gt.V(t, retrieved).NotNil()
	gt.Equal(t, retrieved.Slug, "go-concurrency")
	gt.Equal(t, retrieved.Tags, []string{"go", "concurrency"})

	counts, err := store.ArticleCategories(ctx)
	gt.NoError(t, err)
	gt.Equal(t, counts["Programming"], 1)

	results, err := store.SearchArticles(ctx, repository.SearchQuery{Text: "concurrency"})
	gt.NoError(t, err)
	gt.A(t, results).Length(1)

	gt.NoError(t, store.DeleteArticle(ctx, article.ID))
	gone, err := store.GetArticle(ctx, article.ID)
	gt.NoError(t, err)
	gt.V(t, gone).Nil()
}

func TestChangeEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ch, cancel := store.Subscribe()
	defer cancel()

	book := &model.Book{Title: "Dune"}
	gt.NoError(t, store.PutBook(ctx, book))

	ev := <-ch
	gt.Equal(t, ev.Kind, model.KindBook)
	gt.Equal(t, ev.SourceID, book.ID)
	gt.Equal(t, ev.Op, model.OpUpsert)

	gt.NoError(t, store.DeleteBook(ctx, book.ID))
	ev = <-ch
	gt.Equal(t, ev.Op, model.OpDelete)

	// After cancel, writes must not block
	cancel()
	gt.NoError(t, store.PutBook(ctx, &model.Book{Title: "Foundation"}))
}

func TestConversationTurns(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	turn := &model.ConversationTurn{
		UserID:   7,
		ThreadID: model.ThreadOfUser(7),
		Message:  "recommend me a fantasy book",
		Answer:   "You might enjoy The Hobbit.",
		RecommendedBooks: []model.BookSnapshot{
			{ID: 1, Title: "The Hobbit"},
		},
		Language: "en",
	}
	gt.NoError(t, store.PutTurn(ctx, turn))
	gt.V(t, string(turn.ID)).NotEqual("")

	turns, err := store.ListTurns(ctx, 7, 10)
	gt.NoError(t, err)
	gt.A(t, turns).Length(1)
	gt.Equal(t, turns[0].Message, "recommend me a fantasy book")
	gt.A(t, turns[0].RecommendedBooks).Length(1)
	gt.Equal(t, turns[0].RecommendedBooks[0].Title, "The Hobbit")

	// Other users see nothing
	other, err := store.ListTurns(ctx, 8, 10)
	gt.NoError(t, err)
	gt.A(t, other).Length(0)

	n, err := store.ClearTurns(ctx, 7)
	gt.NoError(t, err)
	gt.Equal(t, n, int64(1))

	cleared, err := store.ListTurns(ctx, 7, 10)
	gt.NoError(t, err)
	gt.A(t, cleared).Length(0)
}

func TestRentalRequests(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	book := &model.Book{Title: "Dune", TotalCopies: 1, AvailableCopies: 1}
	gt.NoError(t, store.PutBook(ctx, book))
	empty := &model.Book{Title: "Out of Stock", TotalCopies: 1, AvailableCopies: 0}
	gt.NoError(t, store.PutBook(ctx, empty))

	t.Run("create and list", func(t *testing.T) {
		req, err := store.CreateRequest(ctx, 7, book.ID)
		gt.NoError(t, err)
		gt.Equal(t, req.BookTitle, "Dune")
		gt.Equal(t, req.Status, "pending")

		requests, err := store.ListRequests(ctx, 7, "pending")
		gt.NoError(t, err)
		gt.A(t, requests).Length(1)

		gt.NoError(t, store.CancelRequest(ctx, req.ID, 7))
		requests, err = store.ListRequests(ctx, 7, "pending")
		gt.NoError(t, err)
		gt.A(t, requests).Length(0)
	})

	t.Run("no copies available", func(t *testing.T) {
		_, err := store.CreateRequest(ctx, 7, empty.ID)
		gt.True(t, errors.Is(err, repository.ErrNoCopiesAvailable))
	})

	t.Run("cancel unknown request", func(t *testing.T) {
		err := store.CancelRequest(ctx, 9999, 7)
		gt.True(t, errors.Is(err, repository.ErrRequestNotFound))
	})

	t.Run("cannot cancel another user's request", func(t *testing.T) {
		req, err := store.CreateRequest(ctx, 7, book.ID)
		gt.NoError(t, err)

		err = store.CancelRequest(ctx, req.ID, 8)
		gt.True(t, errors.Is(err, repository.ErrRequestNotFound))
	})
}

func TestNotify(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	gt.NoError(t, store.Notify(ctx, 7, "borrow_request", "Your request for 'Dune' was received"))
}
