package tool

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/bunko/pkg/model"
)

func formatBook(b model.BookSnapshot) string {
	return fmt.Sprintf("- [Book #%d] %s by %s (%s), rating %.1f, %d of %d copies available",
		b.ID, b.Title, b.Author, b.Category, b.Rating, b.AvailableCopies, b.TotalCopies)
}

func formatArticle(a model.ArticleSnapshot) string {
	line := fmt.Sprintf("- [Article #%d] %s by %s (%s), %d views, %d likes",
		a.ID, a.Title, a.Author, a.Category, a.Views, a.Likes)
	if a.ReadTime > 0 {
		line += fmt.Sprintf(", %d min read", a.ReadTime)
	}
	return line
}

// formatArtifacts renders resolved items as the text fed back to the model
func formatArtifacts(artifacts model.Artifacts) string {
	var sb strings.Builder
	if len(artifacts.Books) > 0 {
		sb.WriteString(fmt.Sprintf("Books (%d):\n", len(artifacts.Books)))
		for _, b := range artifacts.Books {
			sb.WriteString(formatBook(b))
			sb.WriteString("\n")
		}
	}
	if len(artifacts.Articles) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("Articles (%d):\n", len(artifacts.Articles)))
		for _, a := range artifacts.Articles {
			sb.WriteString(formatArticle(a))
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func snapshotBooks(books []*model.Book) []model.BookSnapshot {
	snaps := make([]model.BookSnapshot, 0, len(books))
	for _, b := range books {
		snaps = append(snaps, model.SnapshotOfBook(b))
	}
	return snaps
}

func snapshotArticles(articles []*model.Article) []model.ArticleSnapshot {
	snaps := make([]model.ArticleSnapshot, 0, len(articles))
	for _, a := range articles {
		snaps = append(snaps, model.SnapshotOfArticle(a))
	}
	return snaps
}
