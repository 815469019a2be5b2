package repository

import (
	"context"

	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrNoCopiesAvailable is the domain error for a borrow request against
	// a book with no free copies. Tools surface it as text, never as a fault.
	ErrNoCopiesAvailable = goerr.New("no copies available")

	// ErrRequestNotFound is returned when a rental request does not exist or
	// does not belong to the acting user
	ErrRequestNotFound = goerr.New("rental request not found")
)

// SearchQuery holds optional filters for catalog search
type SearchQuery struct {
	Text      string
	Author    string
	MinRating float64
	Limit     int
}

// Catalog is the read/write boundary to the relational catalog store.
// Get methods return (nil, nil) when the record does not exist.
type Catalog interface {
	GetBook(ctx context.Context, id int64) (*model.Book, error)
	GetArticle(ctx context.Context, id int64) (*model.Article, error)

	// ListBooks and ListArticles page through the catalog in insertion order
	ListBooks(ctx context.Context, offset, limit int) ([]*model.Book, error)
	ListArticles(ctx context.Context, offset, limit int) ([]*model.Article, error)

	// BookCategories and ArticleCategories return category name -> item count
	BookCategories(ctx context.Context) (map[string]int, error)
	ArticleCategories(ctx context.Context) (map[string]int, error)

	// BooksByCategory and ArticlesByCategory match case-insensitively by
	// category substring
	BooksByCategory(ctx context.Context, category string, limit int) ([]*model.Book, error)
	ArticlesByCategory(ctx context.Context, category string, limit int) ([]*model.Article, error)

	// PopularBooks orders by rating then borrow count; PopularArticles by
	// views then likes
	PopularBooks(ctx context.Context, limit int) ([]*model.Book, error)
	PopularArticles(ctx context.Context, limit int) ([]*model.Article, error)

	SearchBooks(ctx context.Context, q SearchQuery) ([]*model.Book, error)
	SearchArticles(ctx context.Context, q SearchQuery) ([]*model.Article, error)

	// PutBook/PutArticle insert or update and publish an upsert change
	// event; Delete methods publish a delete event. Deleting a missing
	// record is a no-op.
	PutBook(ctx context.Context, book *model.Book) error
	PutArticle(ctx context.Context, article *model.Article) error
	DeleteBook(ctx context.Context, id int64) error
	DeleteArticle(ctx context.Context, id int64) error

	// Subscribe returns a change-event feed and a cancel function. Events
	// are delivered best-effort; a slow consumer may miss events and must
	// tolerate a full rebuild.
	Subscribe() (<-chan model.ChangeEvent, func())
}

// Conversations persists one row per completed turn
type Conversations interface {
	PutTurn(ctx context.Context, turn *model.ConversationTurn) error
	ListTurns(ctx context.Context, userID int64, limit int) ([]*model.ConversationTurn, error)

	// ClearTurns removes all turns for the user and returns the count removed
	ClearTurns(ctx context.Context, userID int64) (int64, error)
}

// Rentals is the boundary to the rental collaborator
type Rentals interface {
	CreateRequest(ctx context.Context, userID, bookID int64) (*model.RentalRequest, error)
	CancelRequest(ctx context.Context, requestID, userID int64) error
	ListRequests(ctx context.Context, userID int64, status string) ([]*model.RentalRequest, error)

	// ApprovedBooks returns the user's reading history: books with an
	// approved rental request
	ApprovedBooks(ctx context.Context, userID int64) ([]*model.Book, error)
}

// Notifier is the boundary to the notification collaborator
type Notifier interface {
	Notify(ctx context.Context, userID int64, notifType, message string) error
}
