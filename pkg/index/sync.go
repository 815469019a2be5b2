package index

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/bunko/pkg/repository"
	"github.com/m-mizutani/bunko/pkg/utils/logging"
)

// defaultDebounce is how long the synchronizer waits after the last observed
// change before flushing to the index
const defaultDebounce = 5 * time.Second

// Synchronizer keeps the document index converged with the catalog. Change
// events are coalesced per document (last operation wins) and flushed after a
// quiet period, so a burst of writes costs one embedding pass per document.
type Synchronizer struct {
	index    *Index
	catalog  repository.Catalog
	clock    Clock
	debounce time.Duration

	mu       sync.Mutex
	pending  map[string]pendingChange
	gen      uint64
	timer    Timer
	flushing bool
	resync   bool
}

// pendingChange pairs an event with the generation it was observed at, so a
// flush can tell whether a newer event for the same document arrived while
// the flush was running.
type pendingChange struct {
	ev  model.ChangeEvent
	gen uint64
}

// SyncOption configures a Synchronizer
type SyncOption func(*Synchronizer)

// WithClock overrides timer scheduling, mainly for tests
func WithClock(clock Clock) SyncOption {
	return func(s *Synchronizer) {
		s.clock = clock
	}
}

// WithDebounce overrides the quiet period before a flush
func WithDebounce(d time.Duration) SyncOption {
	return func(s *Synchronizer) {
		s.debounce = d
	}
}

// NewSynchronizer creates a synchronizer for the given index and catalog
func NewSynchronizer(index *Index, catalog repository.Catalog, options ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		index:    index,
		catalog:  catalog,
		clock:    RealClock(),
		debounce: defaultDebounce,
		pending:  make(map[string]pendingChange),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Run consumes the catalog's change feed until ctx is cancelled or the feed
// closes. It blocks; run it in its own goroutine.
func (s *Synchronizer) Run(ctx context.Context) {
	ch, cancel := s.catalog.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.Observe(ctx, ev)
		}
	}
}

// Observe records one change event and (re)arms the debounce timer. A second
// event for the same document overwrites the pending one.
func (s *Synchronizer) Observe(ctx context.Context, ev model.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.pending[model.DocID(ev.Kind, ev.SourceID)] = pendingChange{ev: ev, gen: s.gen}
	s.armLocked(ctx)
}

// RequestResync schedules a full index rebuild on the next flush. Pending
// per-document events are superseded by the rebuild.
func (s *Synchronizer) RequestResync(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resync = true
	s.armLocked(ctx)
}

// armLocked resets the debounce timer. Caller holds s.mu.
func (s *Synchronizer) armLocked(ctx context.Context) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(s.debounce, func() {
		s.Flush(ctx)
	})
}

// Pending returns the number of documents waiting to be flushed
func (s *Synchronizer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush applies all pending changes to the index now. Only one flush runs at
// a time; a concurrent call returns immediately and the running flush will
// re-arm the timer if new events arrived meanwhile. Documents that fail to
// sync stay pending and are retried on the next flush.
func (s *Synchronizer) Flush(ctx context.Context) {
	s.mu.Lock()
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	doResync := s.resync
	s.resync = false
	batch := make(map[string]pendingChange, len(s.pending))
	for id, pc := range s.pending {
		batch[id] = pc
	}
	s.mu.Unlock()

	logger := logging.From(ctx)

	if doResync {
		if err := s.index.Rebuild(ctx, s.catalog); err != nil {
			logger.Error("index rebuild failed", "error", err)
			s.mu.Lock()
			s.resync = true
			s.flushing = false
			s.armLocked(ctx)
			s.mu.Unlock()
			return
		}
		// Rebuild already reflects the catalog, so the batch is satisfied
		s.mu.Lock()
		for id, pc := range batch {
			if cur, ok := s.pending[id]; ok && cur.gen == pc.gen {
				delete(s.pending, id)
			}
		}
		s.finishLocked(ctx)
		s.mu.Unlock()
		return
	}

	for id, pc := range batch {
		if err := s.apply(ctx, pc.ev); err != nil {
			logger.Warn("failed to sync document, will retry", "doc_id", id, "error", err)
			continue
		}
		s.mu.Lock()
		// Drop the entry only if no newer event replaced it during the flush.
		// The generation check matters when the new event is equal in value:
		// the flush read the record before the later write, so the entry must
		// survive for the next cycle.
		if cur, ok := s.pending[id]; ok && cur.gen == pc.gen {
			delete(s.pending, id)
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.finishLocked(ctx)
	s.mu.Unlock()
}

// finishLocked clears the flushing flag and re-arms the timer when work
// remains. Caller holds s.mu.
func (s *Synchronizer) finishLocked(ctx context.Context) {
	s.flushing = false
	if len(s.pending) > 0 || s.resync {
		s.armLocked(ctx)
	}
}

// apply converges one document with the catalog. Deletes and vanished records
// both remove the index entry; a live record is re-projected and re-embedded.
func (s *Synchronizer) apply(ctx context.Context, ev model.ChangeEvent) error {
	id := model.DocID(ev.Kind, ev.SourceID)

	if ev.Op == model.OpDelete {
		s.index.Delete(id)
		return nil
	}

	switch ev.Kind {
	case model.KindBook:
		book, err := s.catalog.GetBook(ctx, ev.SourceID)
		if err != nil {
			return err
		}
		if book == nil {
			s.index.Delete(id)
			return nil
		}
		return s.index.Upsert(ctx, model.DocumentOfBook(book))

	case model.KindArticle:
		article, err := s.catalog.GetArticle(ctx, ev.SourceID)
		if err != nil {
			return err
		}
		if article == nil {
			s.index.Delete(id)
			return nil
		}
		return s.index.Upsert(ctx, model.DocumentOfArticle(article))

	default:
		return model.ErrInvalidKind
	}
}
