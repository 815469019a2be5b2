package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/bunko/pkg/index"
	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/bunko/pkg/repository"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

var ErrUnknownTool = goerr.New("unknown tool")

// Name identifies a tool callable by the language model
type Name string

const (
	NameRetrieve            Name = "retrieve"
	NameGetCategories       Name = "get_categories"
	NameSearchByCategory    Name = "search_by_category"
	NameGetPopularItems     Name = "get_popular_items"
	NameAdvancedSearch      Name = "advanced_search"
	NameBorrowBook          Name = "borrow_book"
	NameCancelBorrowRequest Name = "cancel_borrow_request"
	NameListBorrowRequests  Name = "list_borrow_requests"
	NameLibraryInfo         Name = "library_info"
)

// Identity carries who the conversation belongs to. It is injected by the
// engine and never taken from model-provided arguments, so a tool can only
// ever act on the calling user's behalf.
type Identity struct {
	UserID int64
}

// Invocation is a parsed, typed tool call. Exactly one args field matching
// Name is set; tools without arguments set none.
type Invocation struct {
	Name Name

	Retrieve         *RetrieveArgs
	GetCategories    *GetCategoriesArgs
	SearchByCategory *SearchByCategoryArgs
	GetPopularItems  *GetPopularItemsArgs
	AdvancedSearch   *AdvancedSearchArgs
	BorrowBook       *BorrowBookArgs
	CancelBorrow     *CancelBorrowArgs
	ListBorrow       *ListBorrowArgs
}

type RetrieveArgs struct {
	Query string
	TopK  int
}

type GetCategoriesArgs struct {
	Kind string
}

type SearchByCategoryArgs struct {
	Category string
	Kind     string
	Limit    int
}

type GetPopularItemsArgs struct {
	Kind  string
	Limit int
}

type AdvancedSearchArgs struct {
	Query     string
	Author    string
	MinRating float64
	Kind      string
	Limit     int
}

type BorrowBookArgs struct {
	BookID int64
}

type CancelBorrowArgs struct {
	RequestID int64
}

type ListBorrowArgs struct {
	Status string
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// Parse converts a raw function call into a typed invocation. Numeric
// arguments arrive from the model as arbitrary JSON values and are coerced
// rather than rejected.
func Parse(fc genai.FunctionCall) (*Invocation, error) {
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}

	switch Name(fc.Name) {
	case NameRetrieve:
		return &Invocation{Name: NameRetrieve, Retrieve: &RetrieveArgs{
			Query: argString(args, "query"),
			TopK:  int(model.CoerceInt(args["top_k"])),
		}}, nil

	case NameGetCategories:
		return &Invocation{Name: NameGetCategories, GetCategories: &GetCategoriesArgs{
			Kind: argString(args, "item_type"),
		}}, nil

	case NameSearchByCategory:
		return &Invocation{Name: NameSearchByCategory, SearchByCategory: &SearchByCategoryArgs{
			Category: argString(args, "category"),
			Kind:     argString(args, "item_type"),
			Limit:    int(model.CoerceInt(args["limit"])),
		}}, nil

	case NameGetPopularItems:
		return &Invocation{Name: NameGetPopularItems, GetPopularItems: &GetPopularItemsArgs{
			Kind:  argString(args, "item_type"),
			Limit: int(model.CoerceInt(args["limit"])),
		}}, nil

	case NameAdvancedSearch:
		return &Invocation{Name: NameAdvancedSearch, AdvancedSearch: &AdvancedSearchArgs{
			Query:     argString(args, "query"),
			Author:    argString(args, "author"),
			MinRating: model.CoerceFloat(args["min_rating"]),
			Kind:      argString(args, "item_type"),
			Limit:     int(model.CoerceInt(args["limit"])),
		}}, nil

	case NameBorrowBook:
		return &Invocation{Name: NameBorrowBook, BorrowBook: &BorrowBookArgs{
			BookID: model.CoerceInt(args["book_id"]),
		}}, nil

	case NameCancelBorrowRequest:
		return &Invocation{Name: NameCancelBorrowRequest, CancelBorrow: &CancelBorrowArgs{
			RequestID: model.CoerceInt(args["request_id"]),
		}}, nil

	case NameListBorrowRequests:
		return &Invocation{Name: NameListBorrowRequests, ListBorrow: &ListBorrowArgs{
			Status: argString(args, "status"),
		}}, nil

	case NameLibraryInfo:
		return &Invocation{Name: NameLibraryInfo}, nil

	default:
		return nil, goerr.Wrap(ErrUnknownTool, "unsupported function call", goerr.V("name", fc.Name))
	}
}

// Registry holds the tool set and its collaborators. Tools are dispatched by
// typed invocation; there is no global registration.
type Registry struct {
	catalog  repository.Catalog
	rentals  repository.Rentals
	notifier repository.Notifier
	index    *index.Index
	sync     *index.Synchronizer
	info     *LibraryInfo
}

// Option configures a Registry
type Option func(*Registry)

// WithSynchronizer lets tools report stale index entries back to the
// synchronizer so the index converges without waiting for a catalog write
func WithSynchronizer(sync *index.Synchronizer) Option {
	return func(r *Registry) {
		r.sync = sync
	}
}

// New creates the registry. All collaborators are required except info,
// which falls back to defaults when nil.
func New(catalog repository.Catalog, rentals repository.Rentals, notifier repository.Notifier, idx *index.Index, info *LibraryInfo, options ...Option) *Registry {
	if info == nil {
		info = DefaultLibraryInfo()
	}
	r := &Registry{
		catalog:  catalog,
		rentals:  rentals,
		notifier: notifier,
		index:    idx,
		info:     info,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Specs returns the function declarations advertised to the model
func (r *Registry) Specs() []*genai.Tool {
	return []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			declRetrieve(),
			declGetCategories(),
			declSearchByCategory(),
			declGetPopularItems(),
			declAdvancedSearch(),
			declBorrowBook(),
			declCancelBorrowRequest(),
			declListBorrowRequests(),
			declLibraryInfo(),
		},
	}}
}

// Execute dispatches one function call. Domain outcomes, including failures
// like an unavailable book, come back as result text the model can react to;
// the returned error is reserved for infrastructure faults.
func (r *Registry) Execute(ctx context.Context, fc genai.FunctionCall, id Identity) (*model.ToolResult, error) {
	inv, err := Parse(fc)
	if err != nil {
		return &model.ToolResult{Text: fmt.Sprintf("Error: unknown tool %q", fc.Name)}, nil
	}

	switch inv.Name {
	case NameRetrieve:
		return r.retrieve(ctx, inv.Retrieve)
	case NameGetCategories:
		return r.getCategories(ctx, inv.GetCategories)
	case NameSearchByCategory:
		return r.searchByCategory(ctx, inv.SearchByCategory)
	case NameGetPopularItems:
		return r.getPopularItems(ctx, inv.GetPopularItems)
	case NameAdvancedSearch:
		return r.advancedSearch(ctx, inv.AdvancedSearch)
	case NameBorrowBook:
		return r.borrowBook(ctx, inv.BorrowBook, id)
	case NameCancelBorrowRequest:
		return r.cancelBorrowRequest(ctx, inv.CancelBorrow, id)
	case NameListBorrowRequests:
		return r.listBorrowRequests(ctx, inv.ListBorrow, id)
	case NameLibraryInfo:
		return r.libraryInfo(ctx)
	default:
		return nil, goerr.Wrap(ErrUnknownTool, "unhandled invocation", goerr.V("name", inv.Name))
	}
}
