package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// IndexedDocument is a derived projection of a catalog record held by the
// document index. It is never authoritative: anything surfaced to a user
// must be re-resolved against the catalog first.
type IndexedDocument struct {
	ID            string            `json:"id"`
	Kind          Kind              `json:"kind"`
	SourceID      int64             `json:"source_id"`
	Title         string            `json:"title"`
	EmbeddingText string            `json:"embedding_text"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// DocID builds the stable index identity for a catalog record
func DocID(kind Kind, sourceID int64) string {
	return string(kind) + ":" + strconv.FormatInt(sourceID, 10)
}

// ParseDocID splits an index identity back into kind and source ID
func ParseDocID(id string) (Kind, int64, error) {
	kindStr, idStr, ok := strings.Cut(id, ":")
	if !ok {
		return "", 0, goerr.New("malformed document ID", goerr.V("id", id))
	}
	kind := Kind(kindStr)
	if err := kind.Validate(); err != nil {
		return "", 0, err
	}
	sourceID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return "", 0, goerr.Wrap(err, "malformed document source ID", goerr.V("id", id))
	}
	return kind, sourceID, nil
}

// DocumentOfBook builds the index projection of a book record. The embedding
// text mirrors the display fields so title, author and category queries all
// land near the record.
func DocumentOfBook(b *Book) IndexedDocument {
	snap := SnapshotOfBook(b)
	text := fmt.Sprintf(
		"Type: Book\nTitle: %s\nAuthor: %s\nCategory: %s\nDescription: %s\nSummary: %s\nRating: %.1f\nBorrow Count: %d",
		snap.Title, snap.Author, snap.Category,
		orDefault(b.Description, "No description"),
		orDefault(b.Summary, "No summary"),
		b.Rating, b.BorrowCount,
	)
	return IndexedDocument{
		ID:            DocID(KindBook, b.ID),
		Kind:          KindBook,
		SourceID:      b.ID,
		Title:         snap.Title,
		EmbeddingText: text,
	}
}

// DocumentOfArticle builds the index projection of an article record
func DocumentOfArticle(a *Article) IndexedDocument {
	snap := SnapshotOfArticle(a)
	text := fmt.Sprintf(
		"Type: Article\nTitle: %s\nAuthor: %s\nCategory: %s\nSummary: %s\nTags: %s",
		snap.Title, snap.Author, snap.Category,
		orDefault(a.Summary, "No summary"),
		strings.Join(a.Tags, ", "),
	)
	return IndexedDocument{
		ID:            DocID(KindArticle, a.ID),
		Kind:          KindArticle,
		SourceID:      a.ID,
		Title:         snap.Title,
		EmbeddingText: text,
	}
}
