package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/bunko/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		authors TEXT NOT NULL DEFAULT '[]',
		categories TEXT NOT NULL DEFAULT '[]',
		description TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		rating REAL NOT NULL DEFAULT 0,
		borrow_count INTEGER NOT NULL DEFAULT 0,
		total_copies INTEGER NOT NULL DEFAULT 0,
		available_copies INTEGER NOT NULL DEFAULT 0,
		featured INTEGER NOT NULL DEFAULT 0,
		cover_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		pdf_url TEXT NOT NULL DEFAULT '',
		cover_image_url TEXT NOT NULL DEFAULT '',
		read_time INTEGER NOT NULL DEFAULT 0,
		views INTEGER NOT NULL DEFAULT 0,
		likes INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS chat_turns (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		thread_id TEXT NOT NULL,
		message TEXT NOT NULL,
		response TEXT NOT NULL,
		follow_up_question TEXT NOT NULL DEFAULT '',
		book_recommendations TEXT NOT NULL DEFAULT '[]',
		article_recommendations TEXT NOT NULL DEFAULT '[]',
		language TEXT NOT NULL DEFAULT 'en',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_turns_user ON chat_turns (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS rental_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		book_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		requested_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Store is the SQLite-backed implementation of Catalog, Conversations,
// Rentals and Notifier
type Store struct {
	db   *sql.DB
	path string

	subMu sync.Mutex
	subs  map[int]chan model.ChangeEvent
	subID int
}

// NewStore opens (and migrates) the SQLite database at path. Parent
// directories are created as needed.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create data directory", goerr.V("dir", dir))
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", path))
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, goerr.Wrap(err, "failed to run migration")
		}
	}

	return &Store{
		db:   db,
		path: path,
		subs: make(map[int]chan model.ChangeEvent),
	}, nil
}

// Close closes the database and all change-event subscriptions
func (s *Store) Close() error {
	s.subMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subMu.Unlock()
	return s.db.Close()
}

// Subscribe registers a change-event consumer. The returned cancel function
// must be called to release the channel.
func (s *Store) Subscribe() (<-chan model.ChangeEvent, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.subID++
	id := s.subID
	ch := make(chan model.ChangeEvent, 256)
	s.subs[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if ch, ok := s.subs[id]; ok {
			close(ch)
			delete(s.subs, id)
		}
	}
	return ch, cancel
}

func (s *Store) publish(ev model.ChangeEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// Slow consumers miss events rather than blocking catalog writes
			logging.Default().Warn("change event dropped", "kind", ev.Kind, "source_id", ev.SourceID)
		}
	}
}

const bookColumns = `id, title, authors, categories, description, summary, rating,
	borrow_count, total_copies, available_copies, featured, cover_url, created_at`

func scanBook(row interface{ Scan(...any) error }) (*model.Book, error) {
	var b model.Book
	var authors, categories string
	err := row.Scan(&b.ID, &b.Title, &authors, &categories, &b.Description, &b.Summary,
		&b.Rating, &b.BorrowCount, &b.TotalCopies, &b.AvailableCopies, &b.Featured,
		&b.CoverURL, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(authors), &b.Authors); err != nil {
		return nil, goerr.Wrap(err, "failed to decode authors", goerr.V("book_id", b.ID))
	}
	if err := json.Unmarshal([]byte(categories), &b.Categories); err != nil {
		return nil, goerr.Wrap(err, "failed to decode categories", goerr.V("book_id", b.ID))
	}
	return &b, nil
}

func (s *Store) GetBook(ctx context.Context, id int64) (*model.Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get book", goerr.V("id", id))
	}
	return b, nil
}

func (s *Store) queryBooks(ctx context.Context, query string, args ...any) ([]*model.Book, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query books")
	}
	defer rows.Close()

	var books []*model.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan book")
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (s *Store) ListBooks(ctx context.Context, offset, limit int) ([]*model.Book, error) {
	return s.queryBooks(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
}

func (s *Store) BooksByCategory(ctx context.Context, category string, limit int) ([]*model.Book, error) {
	pattern := "%" + strings.ToLower(category) + "%"
	return s.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books WHERE lower(categories) LIKE ? ORDER BY rating DESC LIMIT ?`,
		pattern, limit)
}

func (s *Store) PopularBooks(ctx context.Context, limit int) ([]*model.Book, error) {
	return s.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY rating DESC, borrow_count DESC LIMIT ?`, limit)
}

func (s *Store) SearchBooks(ctx context.Context, q SearchQuery) ([]*model.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE 1=1`
	var args []any
	if q.Text != "" {
		query += ` AND lower(title) LIKE ?`
		args = append(args, "%"+strings.ToLower(q.Text)+"%")
	}
	if q.Author != "" {
		query += ` AND lower(authors) LIKE ?`
		args = append(args, "%"+strings.ToLower(q.Author)+"%")
	}
	if q.MinRating > 0 {
		query += ` AND rating >= ?`
		args = append(args, q.MinRating)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	query += ` ORDER BY rating DESC LIMIT ?`
	args = append(args, limit)
	return s.queryBooks(ctx, query, args...)
}

func (s *Store) BookCategories(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT categories FROM books`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query book categories")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, goerr.Wrap(err, "failed to scan categories")
		}
		var categories []string
		if err := json.Unmarshal([]byte(raw), &categories); err != nil {
			continue
		}
		for _, c := range categories {
			if c = strings.TrimSpace(c); c != "" {
				counts[c]++
			}
		}
	}
	return counts, rows.Err()
}

func (s *Store) PutBook(ctx context.Context, book *model.Book) error {
	authors, err := json.Marshal(book.Authors)
	if err != nil {
		return goerr.Wrap(err, "failed to encode authors")
	}
	categories, err := json.Marshal(book.Categories)
	if err != nil {
		return goerr.Wrap(err, "failed to encode categories")
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now()
	}

	if book.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO books (title, authors, categories, description, summary, rating,
				borrow_count, total_copies, available_copies, featured, cover_url, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			book.Title, string(authors), string(categories), book.Description, book.Summary,
			book.Rating, book.BorrowCount, book.TotalCopies, book.AvailableCopies,
			book.Featured, book.CoverURL, book.CreatedAt)
		if err != nil {
			return goerr.Wrap(err, "failed to insert book")
		}
		book.ID, err = res.LastInsertId()
		if err != nil {
			return goerr.Wrap(err, "failed to get book ID")
		}
	} else {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO books (id, title, authors, categories, description, summary, rating,
				borrow_count, total_copies, available_copies, featured, cover_url, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title, authors = excluded.authors,
				categories = excluded.categories, description = excluded.description,
				summary = excluded.summary, rating = excluded.rating,
				borrow_count = excluded.borrow_count, total_copies = excluded.total_copies,
				available_copies = excluded.available_copies, featured = excluded.featured,
				cover_url = excluded.cover_url`,
			book.ID, book.Title, string(authors), string(categories), book.Description,
			book.Summary, book.Rating, book.BorrowCount, book.TotalCopies,
			book.AvailableCopies, book.Featured, book.CoverURL, book.CreatedAt)
		if err != nil {
			return goerr.Wrap(err, "failed to upsert book", goerr.V("id", book.ID))
		}
	}

	s.publish(model.ChangeEvent{Kind: model.KindBook, SourceID: book.ID, Op: model.OpUpsert})
	return nil
}

func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id); err != nil {
		return goerr.Wrap(err, "failed to delete book", goerr.V("id", id))
	}
	s.publish(model.ChangeEvent{Kind: model.KindBook, SourceID: id, Op: model.OpDelete})
	return nil
}

const articleColumns = `id, slug, title, author, category, summary, tags, pdf_url,
	cover_image_url, read_time, views, likes, created_at`

func scanArticle(row interface{ Scan(...any) error }) (*model.Article, error) {
	var a model.Article
	var tags string
	err := row.Scan(&a.ID, &a.Slug, &a.Title, &a.Author, &a.Category, &a.Summary, &tags,
		&a.PDFURL, &a.CoverImageURL, &a.ReadTime, &a.Views, &a.Likes, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
		return nil, goerr.Wrap(err, "failed to decode tags", goerr.V("article_id", a.ID))
	}
	return &a, nil
}

func (s *Store) GetArticle(ctx context.Context, id int64) (*model.Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get article", goerr.V("id", id))
	}
	return a, nil
}

func (s *Store) queryArticles(ctx context.Context, query string, args ...any) ([]*model.Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query articles")
	}
	defer rows.Close()

	var articles []*model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan article")
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (s *Store) ListArticles(ctx context.Context, offset, limit int) ([]*model.Article, error) {
	return s.queryArticles(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
}

func (s *Store) ArticlesByCategory(ctx context.Context, category string, limit int) ([]*model.Article, error) {
	pattern := "%" + strings.ToLower(category) + "%"
	return s.queryArticles(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE lower(category) LIKE ? ORDER BY views DESC LIMIT ?`,
		pattern, limit)
}

func (s *Store) PopularArticles(ctx context.Context, limit int) ([]*model.Article, error) {
	return s.queryArticles(ctx,
		`SELECT `+articleColumns+` FROM articles ORDER BY views DESC, likes DESC LIMIT ?`, limit)
}

func (s *Store) SearchArticles(ctx context.Context, q SearchQuery) ([]*model.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE 1=1`
	var args []any
	if q.Text != "" {
		pattern := "%" + strings.ToLower(q.Text) + "%"
		query += ` AND (lower(title) LIKE ? OR lower(summary) LIKE ? OR lower(tags) LIKE ?)`
		args = append(args, pattern, pattern, pattern)
	}
	if q.Author != "" {
		query += ` AND lower(author) LIKE ?`
		args = append(args, "%"+strings.ToLower(q.Author)+"%")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	query += ` ORDER BY views DESC LIMIT ?`
	args = append(args, limit)
	return s.queryArticles(ctx, query, args...)
}

func (s *Store) ArticleCategories(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM articles WHERE category != '' GROUP BY category`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query article categories")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, goerr.Wrap(err, "failed to scan article category")
		}
		counts[name] = count
	}
	return counts, rows.Err()
}

func (s *Store) PutArticle(ctx context.Context, article *model.Article) error {
	tags, err := json.Marshal(article.Tags)
	if err != nil {
		return goerr.Wrap(err, "failed to encode tags")
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now()
	}

	if article.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO articles (slug, title, author, category, summary, tags, pdf_url,
				cover_image_url, read_time, views, likes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			article.Slug, article.Title, article.Author, article.Category, article.Summary,
			string(tags), article.PDFURL, article.CoverImageURL, article.ReadTime,
			article.Views, article.Likes, article.CreatedAt)
		if err != nil {
			return goerr.Wrap(err, "failed to insert article")
		}
		article.ID, err = res.LastInsertId()
		if err != nil {
			return goerr.Wrap(err, "failed to get article ID")
		}
	} else {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO articles (id, slug, title, author, category, summary, tags, pdf_url,
				cover_image_url, read_time, views, likes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				slug = excluded.slug, title = excluded.title, author = excluded.author,
				category = excluded.category, summary = excluded.summary,
				tags = excluded.tags, pdf_url = excluded.pdf_url,
				cover_image_url = excluded.cover_image_url, read_time = excluded.read_time,
				views = excluded.views, likes = excluded.likes`,
			article.ID, article.Slug, article.Title, article.Author, article.Category,
			article.Summary, string(tags), article.PDFURL, article.CoverImageURL,
			article.ReadTime, article.Views, article.Likes, article.CreatedAt)
		if err != nil {
			return goerr.Wrap(err, "failed to upsert article", goerr.V("id", article.ID))
		}
	}

	s.publish(model.ChangeEvent{Kind: model.KindArticle, SourceID: article.ID, Op: model.OpUpsert})
	return nil
}

func (s *Store) DeleteArticle(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id); err != nil {
		return goerr.Wrap(err, "failed to delete article", goerr.V("id", id))
	}
	s.publish(model.ChangeEvent{Kind: model.KindArticle, SourceID: id, Op: model.OpDelete})
	return nil
}

func (s *Store) PutTurn(ctx context.Context, turn *model.ConversationTurn) error {
	books, err := json.Marshal(turn.RecommendedBooks)
	if err != nil {
		return goerr.Wrap(err, "failed to encode book recommendations")
	}
	articles, err := json.Marshal(turn.RecommendedArticles)
	if err != nil {
		return goerr.Wrap(err, "failed to encode article recommendations")
	}
	if turn.ID == "" {
		turn.ID = model.NewTurnID()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chat_turns (id, user_id, thread_id, message, response, follow_up_question,
			book_recommendations, article_recommendations, language, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(turn.ID), turn.UserID, string(turn.ThreadID), turn.Message, turn.Answer,
		turn.FollowUpQuestion, string(books), string(articles), turn.Language, turn.CreatedAt)
	if err != nil {
		return goerr.Wrap(err, "failed to insert turn", goerr.V("user_id", turn.UserID))
	}
	return nil
}

func (s *Store) ListTurns(ctx context.Context, userID int64, limit int) ([]*model.ConversationTurn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, thread_id, message, response, follow_up_question,
			book_recommendations, article_recommendations, language, created_at
		FROM chat_turns WHERE user_id = ? ORDER BY created_at ASC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query turns", goerr.V("user_id", userID))
	}
	defer rows.Close()

	var turns []*model.ConversationTurn
	for rows.Next() {
		var t model.ConversationTurn
		var id, threadID, books, articles string
		if err := rows.Scan(&id, &t.UserID, &threadID, &t.Message, &t.Answer,
			&t.FollowUpQuestion, &books, &articles, &t.Language, &t.CreatedAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan turn")
		}
		t.ID = model.TurnID(id)
		t.ThreadID = model.ThreadID(threadID)
		if err := json.Unmarshal([]byte(books), &t.RecommendedBooks); err != nil {
			return nil, goerr.Wrap(err, "failed to decode book recommendations")
		}
		if err := json.Unmarshal([]byte(articles), &t.RecommendedArticles); err != nil {
			return nil, goerr.Wrap(err, "failed to decode article recommendations")
		}
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

func (s *Store) ClearTurns(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_turns WHERE user_id = ?`, userID)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to clear turns", goerr.V("user_id", userID))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count cleared turns")
	}
	return n, nil
}

func (s *Store) CreateRequest(ctx context.Context, userID, bookID int64) (*model.RentalRequest, error) {
	book, err := s.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, goerr.Wrap(ErrRequestNotFound, "book does not exist", goerr.V("book_id", bookID))
	}
	if book.AvailableCopies <= 0 {
		return nil, goerr.Wrap(ErrNoCopiesAvailable, "no copies available", goerr.V("book_id", bookID))
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rental_requests (user_id, book_id, status, requested_at) VALUES (?, ?, 'pending', ?)`,
		userID, bookID, now)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create rental request")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get rental request ID")
	}

	return &model.RentalRequest{
		ID:          id,
		UserID:      userID,
		BookID:      bookID,
		BookTitle:   book.Title,
		Status:      "pending",
		RequestedAt: now,
	}, nil
}

func (s *Store) CancelRequest(ctx context.Context, requestID, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM rental_requests WHERE id = ? AND user_id = ? AND status = 'pending'`,
		requestID, userID)
	if err != nil {
		return goerr.Wrap(err, "failed to cancel rental request", goerr.V("request_id", requestID))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to count cancelled requests")
	}
	if n == 0 {
		return goerr.Wrap(ErrRequestNotFound, "no pending request", goerr.V("request_id", requestID))
	}
	return nil
}

func (s *Store) ListRequests(ctx context.Context, userID int64, status string) ([]*model.RentalRequest, error) {
	query := `SELECT r.id, r.user_id, r.book_id, COALESCE(b.title, ''), r.status, r.requested_at
		FROM rental_requests r LEFT JOIN books b ON b.id = r.book_id
		WHERE r.user_id = ?`
	args := []any{userID}
	if status != "" && status != "all" {
		query += ` AND r.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY r.requested_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query rental requests", goerr.V("user_id", userID))
	}
	defer rows.Close()

	var requests []*model.RentalRequest
	for rows.Next() {
		var r model.RentalRequest
		if err := rows.Scan(&r.ID, &r.UserID, &r.BookID, &r.BookTitle, &r.Status, &r.RequestedAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan rental request")
		}
		requests = append(requests, &r)
	}
	return requests, rows.Err()
}

func (s *Store) ApprovedBooks(ctx context.Context, userID int64) ([]*model.Book, error) {
	return s.queryBooks(ctx,
		`SELECT b.id, b.title, b.authors, b.categories, b.description, b.summary, b.rating,
			b.borrow_count, b.total_copies, b.available_copies, b.featured, b.cover_url, b.created_at
		FROM books b
		JOIN rental_requests r ON r.book_id = b.id
		WHERE r.user_id = ? AND r.status = 'approved'
		ORDER BY r.requested_at DESC`, userID)
}

func (s *Store) Notify(ctx context.Context, userID int64, notifType, message string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, type, message, created_at) VALUES (?, ?, ?, ?)`,
		userID, notifType, message, time.Now())
	if err != nil {
		return goerr.Wrap(err, "failed to insert notification", goerr.V("user_id", userID))
	}
	logging.From(ctx).Info("notification created", "user_id", userID, "type", notifType)
	return nil
}
