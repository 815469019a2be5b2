package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/m-mizutani/bunko/pkg/model"
	"google.golang.org/genai"
)

const defaultBrowseLimit = 5

// itemTypeSelector maps a model-supplied item type onto which catalogs to
// touch. Empty means all; anything unrecognized is rejected so the model
// gets a correction instead of a misleading empty result.
func itemTypeSelector(kind string) (wantBooks, wantArticles, ok bool) {
	switch kind {
	case "", "all":
		return true, true, true
	case "books":
		return true, false, true
	case "articles":
		return false, true, true
	default:
		return false, false, false
	}
}

func unknownItemTypeText(kind string) string {
	return fmt.Sprintf("Error: unknown item type %q; use books, articles or all.", kind)
}

func declItemType() *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeString,
		Description: "Which item type to include (default: all)",
		Enum:        []string{"books", "articles", "all"},
	}
}

func declGetCategories() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        string(NameGetCategories),
		Description: "List every category in the library with the number of books and articles in each. Use this when the user asks what kinds of items the library has.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"item_type": declItemType(),
			},
		},
	}
}

func (r *Registry) getCategories(ctx context.Context, args *GetCategoriesArgs) (*model.ToolResult, error) {
	wantBooks, wantArticles, ok := itemTypeSelector(args.Kind)
	if !ok {
		return &model.ToolResult{Text: unknownItemTypeText(args.Kind)}, nil
	}

	bookCounts := map[string]int{}
	articleCounts := map[string]int{}
	var err error
	if wantBooks {
		if bookCounts, err = r.catalog.BookCategories(ctx); err != nil {
			return nil, err
		}
	}
	if wantArticles {
		if articleCounts, err = r.catalog.ArticleCategories(ctx); err != nil {
			return nil, err
		}
	}

	if len(bookCounts) == 0 && len(articleCounts) == 0 {
		return &model.ToolResult{Text: "The catalog has no categories yet."}, nil
	}

	var sb strings.Builder
	if len(bookCounts) > 0 {
		sb.WriteString("Book categories:\n")
		for _, name := range sortedKeys(bookCounts) {
			sb.WriteString(fmt.Sprintf("- %s (%d)\n", name, bookCounts[name]))
		}
	}
	if len(articleCounts) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Article categories:\n")
		for _, name := range sortedKeys(articleCounts) {
			sb.WriteString(fmt.Sprintf("- %s (%d)\n", name, articleCounts[name]))
		}
	}
	return &model.ToolResult{Text: strings.TrimRight(sb.String(), "\n")}, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func declSearchByCategory() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        string(NameSearchByCategory),
		Description: "Find books and articles in a category. Matching is case-insensitive and partial, so 'sci' matches 'Science Fiction'.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"category": {
					Type:        genai.TypeString,
					Description: "Category name or fragment, e.g. 'Fantasy'",
				},
				"item_type": declItemType(),
				"limit": {
					Type:        genai.TypeInteger,
					Description: "Max items per type (default: 5)",
				},
			},
			Required: []string{"category"},
		},
	}
}

func (r *Registry) searchByCategory(ctx context.Context, args *SearchByCategoryArgs) (*model.ToolResult, error) {
	if args.Category == "" {
		return &model.ToolResult{Text: "Error: search_by_category requires a category."}, nil
	}
	wantBooks, wantArticles, ok := itemTypeSelector(args.Kind)
	if !ok {
		return &model.ToolResult{Text: unknownItemTypeText(args.Kind)}, nil
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultBrowseLimit
	}

	var artifacts model.Artifacts
	if wantBooks {
		books, err := r.catalog.BooksByCategory(ctx, args.Category, limit)
		if err != nil {
			return nil, err
		}
		artifacts.Books = snapshotBooks(books)
	}
	if wantArticles {
		articles, err := r.catalog.ArticlesByCategory(ctx, args.Category, limit)
		if err != nil {
			return nil, err
		}
		artifacts.Articles = snapshotArticles(articles)
	}
	if artifacts.Empty() {
		return &model.ToolResult{Text: fmt.Sprintf("No items found in category %q.", args.Category)}, nil
	}
	return &model.ToolResult{Text: formatArtifacts(artifacts), Artifacts: artifacts}, nil
}

func declGetPopularItems() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        string(NameGetPopularItems),
		Description: "Get the most popular library items: books ranked by rating and borrow count, articles by views and likes.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"item_type": declItemType(),
				"limit": {
					Type:        genai.TypeInteger,
					Description: "Max items per type (default: 5)",
				},
			},
		},
	}
}

func (r *Registry) getPopularItems(ctx context.Context, args *GetPopularItemsArgs) (*model.ToolResult, error) {
	wantBooks, wantArticles, ok := itemTypeSelector(args.Kind)
	if !ok {
		return &model.ToolResult{Text: unknownItemTypeText(args.Kind)}, nil
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultBrowseLimit
	}

	var artifacts model.Artifacts
	if wantBooks {
		books, err := r.catalog.PopularBooks(ctx, limit)
		if err != nil {
			return nil, err
		}
		artifacts.Books = snapshotBooks(books)
	}
	if wantArticles {
		articles, err := r.catalog.PopularArticles(ctx, limit)
		if err != nil {
			return nil, err
		}
		artifacts.Articles = snapshotArticles(articles)
	}

	if artifacts.Empty() {
		return &model.ToolResult{Text: "The catalog is empty."}, nil
	}
	return &model.ToolResult{Text: formatArtifacts(artifacts), Artifacts: artifacts}, nil
}
