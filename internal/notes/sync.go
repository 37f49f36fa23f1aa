package notes

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/meaningapp/meaning/internal/auth"
)

// Sync keeps the notes for one (user, book, chapter) key loaded while its
// view is visible. It refetches whenever the identity, the auth readiness,
// the book or the chapter changes. Failures are logged and show as no notes.
type Sync struct {
	store    Store
	stream   auth.Stream
	logger   *slog.Logger
	onChange func()

	// notifyMu serializes onChange calls.
	notifyMu sync.Mutex

	mu           sync.Mutex
	identity     *auth.Identity
	initializing bool
	bookID       string
	chapter      *int
	visible      bool
	notes        []Note
	loading      bool
	gen          uint64
	cancel       context.CancelFunc
	lastKey      syncKey
	fetched      bool
	changed      bool

	inflight sync.WaitGroup
	stop     auth.CancelFunc
	done     chan struct{}
}

// syncKey is the tuple whose change triggers a refetch.
type syncKey struct {
	userID       string
	bookID       string
	chapter      int
	initializing bool
}

// SyncConfig configures a Sync.
type SyncConfig struct {
	Store  Store
	Auth   auth.Stream
	Logger *slog.Logger
	// OnChange, if set, is called after the note list or loading flag
	// changes. Calls are serialized and made outside the lock, so OnChange
	// may read Notes and Loading but must not call SetBook, SetVisible,
	// Refresh or Close.
	OnChange func()
}

// NewSync creates a Sync. Call Start to begin following the auth stream.
func NewSync(cfg SyncConfig) *Sync {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sync{
		store:    cfg.Store,
		stream:   cfg.Auth,
		logger:   logger.With("component", "note_sync"),
		onChange: cfg.OnChange,
		notes:    []Note{},
		done:     make(chan struct{}),
	}
}

// Start subscribes to the auth stream. Stop it with Close.
func (s *Sync) Start() {
	events, cancel := s.stream.Subscribe()
	s.mu.Lock()
	s.stop = cancel
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		for ev := range events {
			s.mu.Lock()
			s.identity = ev.Identity
			s.initializing = ev.Initializing
			s.reconcileLocked(false)
			s.unlock()
		}
	}()
}

// SetBook changes the book and chapter whose notes are shown.
func (s *Sync) SetBook(bookID string, chapter *int) {
	s.mu.Lock()
	defer s.unlock()
	s.bookID = bookID
	s.chapter = chapter
	s.reconcileLocked(false)
}

// SetVisible marks the owning view visible or hidden. Becoming visible
// triggers a fetch for the current key.
func (s *Sync) SetVisible(visible bool) {
	s.mu.Lock()
	defer s.unlock()
	wasVisible := s.visible
	s.visible = visible
	if !visible {
		s.supersedeLocked()
		return
	}
	s.reconcileLocked(!wasVisible)
}

// Refresh refetches the current key.
func (s *Sync) Refresh() {
	s.mu.Lock()
	defer s.unlock()
	s.reconcileLocked(true)
}

// Notes returns the displayed notes. Never nil.
func (s *Sync) Notes() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Loading reports whether a fetch is in flight.
func (s *Sync) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Wait blocks until every fetch started so far has settled.
func (s *Sync) Wait() {
	s.inflight.Wait()
}

// Close stops following the auth stream and discards any in-flight fetch.
func (s *Sync) Close() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.visible = false
	s.supersedeLocked()
	s.unlock()

	if stop != nil {
		stop()
		<-s.done
	}
	s.inflight.Wait()
}

// Fetch loads the notes for one key straight from the store.
func (s *Sync) Fetch(ctx context.Context, userID, bookID string, chapter *int) ([]Note, error) {
	if userID == "" {
		return []Note{}, nil
	}
	notes, err := s.store.ListForBook(ctx, userID, bookID, chapter)
	if err != nil {
		return nil, fmt.Errorf("fetching notes for %s: %w", bookID, err)
	}
	if notes == nil {
		notes = []Note{}
	}
	return notes, nil
}

func (s *Sync) key() syncKey {
	k := syncKey{bookID: s.bookID, chapter: chapterFilter(s.chapter), initializing: s.initializing}
	if s.identity != nil {
		k.userID = s.identity.UserID
	}
	return k
}

// reconcileLocked starts a fetch when the key changed or force is set.
func (s *Sync) reconcileLocked(force bool) {
	k := s.key()
	if !s.visible || (!force && s.fetched && k == s.lastKey) {
		return
	}
	s.lastKey = k
	s.fetched = true

	s.supersedeLocked()

	if k.initializing {
		// hide the previous identity's notes until auth settles
		s.setLocked([]Note{}, false)
		return
	}

	if k.userID == "" || k.bookID == "" {
		s.setLocked([]Note{}, false)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	gen := s.gen
	s.setLocked(s.notes, true)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()

		notes, err := s.Fetch(ctx, k.userID, k.bookID, s.chapterFor(k))
		if err != nil {
			s.logger.Error("failed to load notes", "user_id", k.userID, "book_id", k.bookID, "chapter", k.chapter, "error", err)
			notes = []Note{}
		}

		s.mu.Lock()
		defer s.unlock()
		if gen != s.gen {
			s.logger.Debug("discarding stale notes", "book_id", k.bookID)
			return
		}
		s.cancel = nil
		s.setLocked(notes, false)
	}()
}

func (s *Sync) chapterFor(k syncKey) *int {
	if k.chapter == 0 {
		return nil
	}
	ch := k.chapter
	return &ch
}

// supersedeLocked cancels and invalidates the in-flight fetch.
func (s *Sync) supersedeLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.loading {
		s.setLocked(s.notes, false)
	}
}

func (s *Sync) setLocked(notes []Note, loading bool) {
	s.notes = notes
	s.loading = loading
	s.changed = true
}

// unlock releases mu and then reports any change made while it was held.
func (s *Sync) unlock() {
	changed := s.changed
	s.changed = false
	s.mu.Unlock()

	if !changed || s.onChange == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.onChange()
}
