package tool

import (
	"context"

	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/bunko/pkg/utils/logging"
	"google.golang.org/genai"
)

const defaultRetrieveTopK = 4

func declRetrieve() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        string(NameRetrieve),
		Description: "Semantic search over the library catalog. Use this for open-ended requests like 'something about space travel' or 'a book similar to Dune'. Returns the most relevant books and articles.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query": {
					Type:        genai.TypeString,
					Description: "Natural language description of what the user is looking for",
				},
				"top_k": {
					Type:        genai.TypeInteger,
					Description: "Max results to return (default: 4)",
				},
			},
			Required: []string{"query"},
		},
	}
}

// retrieve searches the vector index and re-resolves every hit against the
// catalog. Index entries are derived data; a hit whose record no longer
// exists (or never did, like the empty-catalog placeholder) is dropped.
func (r *Registry) retrieve(ctx context.Context, args *RetrieveArgs) (*model.ToolResult, error) {
	if args.Query == "" {
		return &model.ToolResult{Text: "Error: retrieve requires a query."}, nil
	}
	topK := args.TopK
	if topK <= 0 {
		topK = defaultRetrieveTopK
	}

	hits := r.index.Search(ctx, args.Query, topK)

	var artifacts model.Artifacts
	for _, hit := range hits {
		switch hit.Document.Kind {
		case model.KindBook:
			book, err := r.catalog.GetBook(ctx, hit.Document.SourceID)
			if err != nil {
				return nil, err
			}
			if book == nil {
				r.reportStale(ctx, hit.Document)
				continue
			}
			artifacts.Books = append(artifacts.Books, model.SnapshotOfBook(book))

		case model.KindArticle:
			article, err := r.catalog.GetArticle(ctx, hit.Document.SourceID)
			if err != nil {
				return nil, err
			}
			if article == nil {
				r.reportStale(ctx, hit.Document)
				continue
			}
			artifacts.Articles = append(artifacts.Articles, model.SnapshotOfArticle(article))
		}
	}

	if artifacts.Empty() {
		return &model.ToolResult{Text: "No catalog items matched the query."}, nil
	}
	return &model.ToolResult{Text: formatArtifacts(artifacts), Artifacts: artifacts}, nil
}

// reportStale handles an index hit whose catalog record is gone. The
// empty-catalog placeholder (source ID 0) is expected and dropped silently;
// anything else is scheduled for removal through the synchronizer.
func (r *Registry) reportStale(ctx context.Context, doc model.IndexedDocument) {
	if doc.SourceID == 0 {
		return
	}
	logging.From(ctx).Warn("stale index hit dropped", "doc_id", doc.ID)
	if r.sync != nil {
		r.sync.Observe(ctx, model.ChangeEvent{Kind: doc.Kind, SourceID: doc.SourceID, Op: model.OpDelete})
	}
}
