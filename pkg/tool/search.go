package tool

import (
	"context"

	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/bunko/pkg/repository"
	"google.golang.org/genai"
)

func declAdvancedSearch() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        string(NameAdvancedSearch),
		Description: "Search the catalog with explicit filters: title text, author name and minimum rating. Use this when the user names a specific title, author or quality bar; use retrieve for vague requests.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query": {
					Type:        genai.TypeString,
					Description: "Text to match against titles (books) or title/summary/tags (articles)",
				},
				"author": {
					Type:        genai.TypeString,
					Description: "Author name or fragment",
				},
				"min_rating": {
					Type:        genai.TypeNumber,
					Description: "Only return books rated at or above this value (0-5, books only)",
				},
				"item_type": declItemType(),
				"limit": {
					Type:        genai.TypeInteger,
					Description: "Max items per type (default: 10)",
				},
			},
		},
	}
}

func (r *Registry) advancedSearch(ctx context.Context, args *AdvancedSearchArgs) (*model.ToolResult, error) {
	if args.Query == "" && args.Author == "" && args.MinRating <= 0 {
		return &model.ToolResult{Text: "Error: advanced_search requires at least one of query, author or min_rating."}, nil
	}
	wantBooks, wantArticles, ok := itemTypeSelector(args.Kind)
	if !ok {
		return &model.ToolResult{Text: unknownItemTypeText(args.Kind)}, nil
	}

	q := repository.SearchQuery{
		Text:      args.Query,
		Author:    args.Author,
		MinRating: args.MinRating,
		Limit:     args.Limit,
	}

	var artifacts model.Artifacts
	if wantBooks {
		books, err := r.catalog.SearchBooks(ctx, q)
		if err != nil {
			return nil, err
		}
		artifacts.Books = snapshotBooks(books)
	}
	if wantArticles {
		articles, err := r.catalog.SearchArticles(ctx, q)
		if err != nil {
			return nil, err
		}
		artifacts.Articles = snapshotArticles(articles)
	}

	if artifacts.Empty() {
		return &model.ToolResult{Text: "No catalog items matched the search filters."}, nil
	}
	return &model.ToolResult{Text: formatArtifacts(artifacts), Artifacts: artifacts}, nil
}
