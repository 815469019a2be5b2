package index

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/bunko/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Embedder produces an embedding vector for a piece of text
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}

type entry struct {
	doc model.IndexedDocument
	vec []float32
}

// Index is an in-memory vector index over catalog documents using brute-force
// cosine similarity. Documents are derived data: the catalog remains the
// source of truth and search results must be re-resolved before display.
type Index struct {
	mu       sync.RWMutex
	entries  map[string]entry
	embedder Embedder
}

// Result is one search hit with its similarity score
type Result struct {
	Document model.IndexedDocument
	Score    float64
}

// New creates an empty index backed by the given embedder
func New(embedder Embedder) *Index {
	return &Index{
		entries:  make(map[string]entry),
		embedder: embedder,
	}
}

// Upsert embeds and stores documents, replacing any existing entry with the
// same ID. A failed embedding aborts the batch and returns the error.
func (x *Index) Upsert(ctx context.Context, docs ...model.IndexedDocument) error {
	embedded := make([]entry, 0, len(docs))
	for _, doc := range docs {
		vec, err := x.embedder.Embedding(ctx, doc.EmbeddingText)
		if err != nil {
			return goerr.Wrap(err, "failed to embed document", goerr.V("doc_id", doc.ID))
		}
		embedded = append(embedded, entry{doc: doc, vec: normalize(vec)})
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, e := range embedded {
		x.entries[e.doc.ID] = e
	}
	return nil
}

// Delete removes documents by ID. Unknown IDs are ignored.
func (x *Index) Delete(ids ...string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range ids {
		delete(x.entries, id)
	}
}

// Contains reports whether a document ID is currently indexed
func (x *Index) Contains(id string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.entries[id]
	return ok
}

// Len returns the number of indexed documents
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Search embeds the query and returns the topK most similar documents.
// Retrieval is best-effort: if the query cannot be embedded the index logs
// the failure and returns no hits rather than failing the conversation.
func (x *Index) Search(ctx context.Context, query string, topK int) []Result {
	if topK <= 0 {
		topK = 4
	}

	qvec, err := x.embedder.Embedding(ctx, query)
	if err != nil {
		logging.From(ctx).Warn("query embedding failed, returning no hits", "error", err)
		return nil
	}
	qvec = normalize(qvec)

	x.mu.RLock()
	results := make([]Result, 0, len(x.entries))
	for _, e := range x.entries {
		results = append(results, Result{Document: e.doc, Score: dot(e.vec, qvec)})
	}
	x.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results
}

// replace swaps the entire index contents atomically. Used by snapshot
// restore and full rebuilds.
func (x *Index) replace(entries map[string]entry) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = entries
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
