package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/bunko/pkg/repository"
	"github.com/m-mizutani/bunko/pkg/utils/logging"
	"google.golang.org/genai"
)

func declBorrowBook() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        string(NameBorrowBook),
		Description: "Submit a borrow request for a book on behalf of the current user. Only call this after the user clearly asked to borrow a specific book.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"book_id": {
					Type:        genai.TypeInteger,
					Description: "ID of the book to borrow, as returned by a previous search",
				},
			},
			Required: []string{"book_id"},
		},
	}
}

func (r *Registry) borrowBook(ctx context.Context, args *BorrowBookArgs, id Identity) (*model.ToolResult, error) {
	if args.BookID <= 0 {
		return &model.ToolResult{Text: "Error: borrow_book requires a valid book_id."}, nil
	}

	req, err := r.rentals.CreateRequest(ctx, id.UserID, args.BookID)
	switch {
	case errors.Is(err, repository.ErrNoCopiesAvailable):
		return &model.ToolResult{Text: fmt.Sprintf("Book #%d has no copies available right now. The user can try again later.", args.BookID)}, nil
	case errors.Is(err, repository.ErrRequestNotFound):
		return &model.ToolResult{Text: fmt.Sprintf("Book #%d does not exist in the catalog.", args.BookID)}, nil
	case err != nil:
		return nil, err
	}

	msg := fmt.Sprintf("Your borrow request for %q was received and is pending approval.", req.BookTitle)
	if err := r.notifier.Notify(ctx, id.UserID, "borrow_request", msg); err != nil {
		// The request itself succeeded; a lost notification is not worth failing the turn
		logging.From(ctx).Warn("failed to create notification", "user_id", id.UserID, "error", err)
	}

	var artifacts model.Artifacts
	if book, err := r.catalog.GetBook(ctx, args.BookID); err == nil && book != nil {
		artifacts.Books = append(artifacts.Books, model.SnapshotOfBook(book))
	}

	text := fmt.Sprintf("Borrow request #%d created for %q (status: %s).", req.ID, req.BookTitle, req.Status)
	return &model.ToolResult{Text: text, Artifacts: artifacts}, nil
}

func declCancelBorrowRequest() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        string(NameCancelBorrowRequest),
		Description: "Cancel one of the current user's pending borrow requests.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"request_id": {
					Type:        genai.TypeInteger,
					Description: "ID of the borrow request to cancel, as returned by list_borrow_requests",
				},
			},
			Required: []string{"request_id"},
		},
	}
}

func (r *Registry) cancelBorrowRequest(ctx context.Context, args *CancelBorrowArgs, id Identity) (*model.ToolResult, error) {
	if args.RequestID <= 0 {
		return &model.ToolResult{Text: "Error: cancel_borrow_request requires a valid request_id."}, nil
	}

	err := r.rentals.CancelRequest(ctx, args.RequestID, id.UserID)
	if errors.Is(err, repository.ErrRequestNotFound) {
		return &model.ToolResult{Text: fmt.Sprintf("No pending borrow request #%d belongs to this user.", args.RequestID)}, nil
	}
	if err != nil {
		return nil, err
	}

	return &model.ToolResult{Text: fmt.Sprintf("Borrow request #%d was cancelled.", args.RequestID)}, nil
}

func declListBorrowRequests() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        string(NameListBorrowRequests),
		Description: "List the current user's borrow requests.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"status": {
					Type:        genai.TypeString,
					Description: "Filter by status (default: all)",
					Enum:        []string{"pending", "approved", "rejected", "all"},
				},
			},
		},
	}
}

func (r *Registry) listBorrowRequests(ctx context.Context, args *ListBorrowArgs, id Identity) (*model.ToolResult, error) {
	requests, err := r.rentals.ListRequests(ctx, id.UserID, args.Status)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return &model.ToolResult{Text: "The user has no borrow requests."}, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Borrow requests (%d):\n", len(requests)))
	for _, req := range requests {
		sb.WriteString(fmt.Sprintf("- Request #%d: %q, status %s, requested %s\n",
			req.ID, req.BookTitle, req.Status, req.RequestedAt.Format("2006-01-02")))
	}
	return &model.ToolResult{Text: strings.TrimRight(sb.String(), "\n")}, nil
}
