package index

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/bunko/pkg/repository"
	"github.com/m-mizutani/bunko/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// rebuildBatchSize is how many catalog records are paged per query during a
// full rebuild
const rebuildBatchSize = 200

type snapshotEntry struct {
	Document model.IndexedDocument `json:"document"`
	Vector   []float32             `json:"vector"`
}

type snapshotFile struct {
	Version int             `json:"version"`
	Entries []snapshotEntry `json:"entries"`
}

// SaveSnapshot writes the index contents (documents and vectors) to path so
// the next startup can restore without re-embedding the whole catalog.
func (x *Index) SaveSnapshot(path string) error {
	x.mu.RLock()
	file := snapshotFile{Version: 1, Entries: make([]snapshotEntry, 0, len(x.entries))}
	for _, e := range x.entries {
		file.Entries = append(file.Entries, snapshotEntry{Document: e.doc, Vector: e.vec})
	}
	x.mu.RUnlock()

	data, err := json.Marshal(file)
	if err != nil {
		return goerr.Wrap(err, "failed to encode index snapshot")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return goerr.Wrap(err, "failed to create snapshot directory", goerr.V("dir", dir))
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return goerr.Wrap(err, "failed to write index snapshot", goerr.V("path", path))
	}
	return nil
}

// LoadSnapshot restores the index from a snapshot file. It returns false when
// no snapshot exists or the file cannot be decoded, in which case the caller
// should fall back to a full rebuild.
func (x *Index) LoadSnapshot(ctx context.Context, path string) bool {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	if err != nil {
		logging.From(ctx).Warn("failed to read index snapshot", "path", path, "error", err)
		return false
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		logging.From(ctx).Warn("index snapshot is corrupt, rebuilding", "path", path, "error", err)
		return false
	}

	entries := make(map[string]entry, len(file.Entries))
	for _, e := range file.Entries {
		entries[e.Document.ID] = entry{doc: e.Document, vec: e.Vector}
	}
	x.replace(entries)

	logging.From(ctx).Info("index restored from snapshot", "path", path, "documents", len(entries))
	return true
}

// Rebuild re-embeds the entire catalog in batches and atomically replaces
// the index contents. When the catalog is empty a single placeholder document
// is indexed so searches still return cleanly; the placeholder never reaches
// users because results are always re-resolved against the catalog.
func (x *Index) Rebuild(ctx context.Context, catalog repository.Catalog) error {
	entries := make(map[string]entry)

	embed := func(doc model.IndexedDocument) error {
		vec, err := x.embedder.Embedding(ctx, doc.EmbeddingText)
		if err != nil {
			return goerr.Wrap(err, "failed to embed document", goerr.V("doc_id", doc.ID))
		}
		entries[doc.ID] = entry{doc: doc, vec: normalize(vec)}
		return nil
	}

	for offset := 0; ; offset += rebuildBatchSize {
		books, err := catalog.ListBooks(ctx, offset, rebuildBatchSize)
		if err != nil {
			return goerr.Wrap(err, "failed to list books for rebuild")
		}
		for _, b := range books {
			if err := embed(model.DocumentOfBook(b)); err != nil {
				return err
			}
		}
		if len(books) < rebuildBatchSize {
			break
		}
	}

	for offset := 0; ; offset += rebuildBatchSize {
		articles, err := catalog.ListArticles(ctx, offset, rebuildBatchSize)
		if err != nil {
			return goerr.Wrap(err, "failed to list articles for rebuild")
		}
		for _, a := range articles {
			if err := embed(model.DocumentOfArticle(a)); err != nil {
				return err
			}
		}
		if len(articles) < rebuildBatchSize {
			break
		}
	}

	if len(entries) == 0 {
		placeholder := model.IndexedDocument{
			ID:            model.DocID(model.KindBook, 0),
			Kind:          model.KindBook,
			SourceID:      0,
			Title:         "Empty catalog",
			EmbeddingText: "The library catalog is currently empty. No books or articles are available yet.",
		}
		if err := embed(placeholder); err != nil {
			return err
		}
	}

	x.replace(entries)
	logging.From(ctx).Info("index rebuilt", "documents", len(entries))
	return nil
}
