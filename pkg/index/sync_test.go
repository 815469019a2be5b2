package index_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/bunko/pkg/index"
	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/bunko/pkg/repository"
	"github.com/m-mizutani/gt"
)

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock fires timers only when Advance is called, on the caller's
// goroutine, which keeps debounce behavior deterministic
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) index.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, timer)
	return timer
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	var rest []*fakeTimer
	for _, timer := range c.timers {
		if !timer.stopped && !timer.at.After(c.now) {
			due = append(due, timer)
		} else if !timer.stopped {
			rest = append(rest, timer)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	for _, timer := range due {
		timer.fn()
	}
}

type syncFixture struct {
	store    *repository.Store
	embedder *mockEmbedder
	index    *index.Index
	sync     *index.Synchronizer
	clock    *fakeClock
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	store, err := repository.NewStore(filepath.Join(t.TempDir(), "bunko.db"))
	gt.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	embedder := &mockEmbedder{}
	idx := index.New(embedder)
	clock := newFakeClock()
	syncer := index.NewSynchronizer(idx, store, index.WithClock(clock))
	return &syncFixture{store: store, embedder: embedder, index: idx, sync: syncer, clock: clock}
}

func TestDebounceCoalescesBurst(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)

	book := &model.Book{Title: "The Hobbit", Categories: []string{"Fantasy"}}
	gt.NoError(t, f.store.PutBook(ctx, book))

	// Three rapid edits to the same record
	for i := 0; i < 3; i++ {
		f.sync.Observe(ctx, model.ChangeEvent{Kind: model.KindBook, SourceID: book.ID, Op: model.OpUpsert})
	}
	gt.Equal(t, f.sync.Pending(), 1)
	gt.Equal(t, f.index.Len(), 0)

	f.clock.Advance(5 * time.Second)
	gt.Equal(t, f.sync.Pending(), 0)
	gt.Equal(t, f.index.Len(), 1)
	gt.Equal(t, f.embedder.calls, 1)
}

func TestEachEventResetsDebounce(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)

	book := &model.Book{Title: "The Hobbit"}
	gt.NoError(t, f.store.PutBook(ctx, book))

	f.sync.Observe(ctx, model.ChangeEvent{Kind: model.KindBook, SourceID: book.ID, Op: model.OpUpsert})
	f.clock.Advance(3 * time.Second)
	gt.Equal(t, f.index.Len(), 0)

	// A new event inside the window pushes the flush out again
	f.sync.Observe(ctx, model.ChangeEvent{Kind: model.KindBook, SourceID: book.ID, Op: model.OpUpsert})
	f.clock.Advance(3 * time.Second)
	gt.Equal(t, f.index.Len(), 0)

	f.clock.Advance(2 * time.Second)
	gt.Equal(t, f.index.Len(), 1)
}

func TestLastOperationWins(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)

	book := &model.Book{Title: "The Hobbit"}
	gt.NoError(t, f.store.PutBook(ctx, book))
	docID := model.DocID(model.KindBook, book.ID)

	f.sync.Observe(ctx, model.ChangeEvent{Kind: model.KindBook, SourceID: book.ID, Op: model.OpUpsert})
	f.sync.Observe(ctx, model.ChangeEvent{Kind: model.KindBook, SourceID: book.ID, Op: model.OpDelete})
	gt.Equal(t, f.sync.Pending(), 1)

	f.clock.Advance(5 * time.Second)
	gt.False(t, f.index.Contains(docID))
	gt.Equal(t, f.embedder.calls, 0)
}

func TestVanishedRecordDropsFromIndex(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)

	// Upsert event for a record the catalog no longer holds
	f.sync.Observe(ctx, model.ChangeEvent{Kind: model.KindBook, SourceID: 42, Op: model.OpUpsert})
	f.clock.Advance(5 * time.Second)
	gt.Equal(t, f.sync.Pending(), 0)
	gt.False(t, f.index.Contains(model.DocID(model.KindBook, 42)))
}

func TestFailedSyncRetries(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)

	book := &model.Book{Title: "The Hobbit"}
	gt.NoError(t, f.store.PutBook(ctx, book))

	f.embedder.fail = errors.New("embedding service down")
	f.sync.Observe(ctx, model.ChangeEvent{Kind: model.KindBook, SourceID: book.ID, Op: model.OpUpsert})
	f.clock.Advance(5 * time.Second)
	gt.Equal(t, f.sync.Pending(), 1)
	gt.Equal(t, f.index.Len(), 0)

	// Recovery: retry flush succeeds
	f.embedder.fail = nil
	f.clock.Advance(5 * time.Second)
	gt.Equal(t, f.sync.Pending(), 0)
	gt.Equal(t, f.index.Len(), 1)
}

// gateEmbedder blocks each embedding call until released, so a test can
// inject events while a flush is mid-flight
type gateEmbedder struct {
	inner   *mockEmbedder
	entered chan struct{}
	release chan struct{}
}

func (g *gateEmbedder) Embedding(ctx context.Context, text string) ([]float32, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.inner.Embedding(ctx, text)
}

func TestEventDuringFlushWaitsForNextCycle(t *testing.T) {
	ctx := context.Background()
	store, err := repository.NewStore(filepath.Join(t.TempDir(), "bunko.db"))
	gt.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	gate := &gateEmbedder{
		inner:   &mockEmbedder{},
		entered: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
	idx := index.New(gate)
	clock := newFakeClock()
	syncer := index.NewSynchronizer(idx, store, index.WithClock(clock))

	book := &model.Book{Title: "The Hobbit", Categories: []string{"Fantasy"}}
	gt.NoError(t, store.PutBook(ctx, book))
	ev := model.ChangeEvent{Kind: model.KindBook, SourceID: book.ID, Op: model.OpUpsert}
	syncer.Observe(ctx, ev)

	done := make(chan struct{})
	go func() {
		clock.Advance(5 * time.Second)
		close(done)
	}()
	<-gate.entered

	// The record changes again while the flush is embedding the old version.
	// The new event has the same value as the one being processed, so only
	// its arrival order distinguishes it.
	book.Title = "The Hobbit, Revised"
	gt.NoError(t, store.PutBook(ctx, book))
	syncer.Observe(ctx, ev)

	close(gate.release)
	<-done

	// The mid-flight event must be queued for the next cycle, not dropped
	gt.Equal(t, syncer.Pending(), 1)

	clock.Advance(5 * time.Second)
	gt.Equal(t, syncer.Pending(), 0)
	gt.Equal(t, gate.inner.calls, 2)
}

func TestResyncRebuildsWholeCatalog(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)

	gt.NoError(t, f.store.PutBook(ctx, &model.Book{Title: "The Hobbit", Categories: []string{"Fantasy"}}))
	gt.NoError(t, f.store.PutBook(ctx, &model.Book{Title: "Cosmos", Categories: []string{"Science"}}))
	gt.NoError(t, f.store.PutArticle(ctx, &model.Article{Slug: "pasta", Title: "Perfect Pasta", Category: "Cooking"}))

	f.sync.RequestResync(ctx)
	f.clock.Advance(5 * time.Second)
	gt.Equal(t, f.index.Len(), 3)
}

func TestRebuildEmptyCatalogIndexesPlaceholder(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)

	gt.NoError(t, f.index.Rebuild(ctx, f.store))
	gt.Equal(t, f.index.Len(), 1)
	gt.True(t, f.index.Contains(model.DocID(model.KindBook, 0)))
}
