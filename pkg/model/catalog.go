package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidKind = goerr.New("invalid catalog kind")

// Kind discriminates the two item types held in the catalog
type Kind string

const (
	KindBook    Kind = "book"
	KindArticle Kind = "article"
)

// Validate checks if the kind is valid
func (k Kind) Validate() error {
	switch k {
	case KindBook, KindArticle:
		return nil
	default:
		return goerr.Wrap(ErrInvalidKind, "unknown kind", goerr.V("kind", k))
	}
}

// Book is a catalog record owned by the relational store
type Book struct {
	ID              int64
	Title           string
	Authors         []string
	Categories      []string
	Description     string
	Summary         string
	Rating          float64
	BorrowCount     int64
	TotalCopies     int64
	AvailableCopies int64
	Featured        bool
	CoverURL        string
	CreatedAt       time.Time
}

// Article is a catalog record owned by the relational store
type Article struct {
	ID            int64
	Slug          string
	Title         string
	Author        string
	Category      string
	Summary       string
	Tags          []string
	PDFURL        string
	CoverImageURL string
	ReadTime      int64
	Views         int64
	Likes         int64
	CreatedAt     time.Time
}

// BookSnapshot is a flattened, display-ready copy of a book record.
// It is a value object: equality is by ID, never by field contents.
type BookSnapshot struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	Category        string  `json:"category"`
	Rating          float64 `json:"rating"`
	BorrowCount     int64   `json:"borrow_count"`
	TotalCopies     int64   `json:"total_copies"`
	AvailableCopies int64   `json:"available_copies"`
	CoverURL        string  `json:"cover_url"`
}

// ArticleSnapshot is a flattened, display-ready copy of an article record
type ArticleSnapshot struct {
	ID            int64  `json:"id"`
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Category      string `json:"category"`
	Summary       string `json:"summary"`
	PDFURL        string `json:"pdf_url"`
	CoverImageURL string `json:"cover_image_url"`
	ReadTime      int64  `json:"read_time"`
	Views         int64  `json:"views"`
	Likes         int64  `json:"likes"`
}

// SnapshotOfBook projects a book record into its display form, applying
// the same defaults the catalog UI uses for missing fields
func SnapshotOfBook(b *Book) BookSnapshot {
	author := strings.Join(b.Authors, ", ")
	if author == "" {
		author = "Unknown"
	}
	category := strings.Join(b.Categories, ", ")
	if category == "" {
		category = "Uncategorized"
	}
	return BookSnapshot{
		ID:              b.ID,
		Title:           orDefault(b.Title, "Untitled"),
		Author:          author,
		Category:        category,
		Rating:          b.Rating,
		BorrowCount:     b.BorrowCount,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		CoverURL:        b.CoverURL,
	}
}

// SnapshotOfArticle projects an article record into its display form
func SnapshotOfArticle(a *Article) ArticleSnapshot {
	return ArticleSnapshot{
		ID:            a.ID,
		Slug:          orDefault(a.Slug, "unknown"),
		Title:         orDefault(a.Title, "Untitled"),
		Author:        orDefault(a.Author, "Unknown"),
		Category:      orDefault(a.Category, "Uncategorized"),
		Summary:       a.Summary,
		PDFURL:        a.PDFURL,
		CoverImageURL: a.CoverImageURL,
		ReadTime:      a.ReadTime,
		Views:         a.Views,
		Likes:         a.Likes,
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ChangeOp is the operation carried by a catalog change event
type ChangeOp string

const (
	OpUpsert ChangeOp = "upsert"
	OpDelete ChangeOp = "delete"
)

// ChangeEvent notifies that a catalog record changed. A second event for the
// same (Kind, SourceID) before the index flush collapses into one pending
// entry, last operation wins.
type ChangeEvent struct {
	Kind     Kind
	SourceID int64
	Op       ChangeOp
}

// RentalRequest is the shape returned by the rental collaborator
type RentalRequest struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	BookID      int64     `json:"book_id"`
	BookTitle   string    `json:"book_title"`
	Status      string    `json:"status"`
	RequestedAt time.Time `json:"requested_at"`
}
