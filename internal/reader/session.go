// Package reader holds the state of one reading screen: the document's
// pages, the current page, session annotations and the load lifecycle.
package reader

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/meaningapp/meaning/internal/paginate"
)

// DefaultLoadError is shown when a load fails without a message.
const DefaultLoadError = "Failed to load PDF text."

// DefaultTick is how often the elapsed time is refreshed while loading.
const DefaultTick = 200 * time.Millisecond

// State is the load lifecycle of a Session.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Annotation is a session note attached to a page.
type Annotation struct {
	Text string `json:"text"`
}

// LoadingState describes the current or last load.
type LoadingState struct {
	Loading bool
	// StartTime is zero when no load is in progress.
	StartTime time.Time
	Elapsed   time.Duration
	Error     string
}

// Config configures a Session.
type Config struct {
	Fetcher Fetcher
	Logger  *slog.Logger
	// Tick is the elapsed-time refresh interval (default 200ms).
	Tick time.Duration
	// OnChange, if set, is called after every state change, outside the
	// session lock.
	OnChange func()
	now      func() time.Time
}

// Session is the state of one reading screen.
type Session struct {
	fetcher  Fetcher
	logger   *slog.Logger
	tick     time.Duration
	onChange func()
	now      func() time.Time

	mu          sync.Mutex
	path        string
	state       State
	pages       []string
	current     int
	annotations map[int][]Annotation
	loading     LoadingState
	gen         uint64
	cancel      context.CancelFunc
	stopTick    chan struct{}

	inflight sync.WaitGroup
}

// NewSession creates an idle Session.
func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tick := cfg.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	now := cfg.now
	if now == nil {
		now = time.Now
	}
	return &Session{
		fetcher:     cfg.Fetcher,
		logger:      logger.With("component", "reader"),
		tick:        tick,
		onChange:    cfg.OnChange,
		now:         now,
		pages:       []string{},
		annotations: make(map[int][]Annotation),
	}
}

// Open loads the document at path. Opening the path that is already open
// (or an empty path) does nothing; opening a different path supersedes any
// load in flight.
func (s *Session) Open(ctx context.Context, path string) {
	s.mu.Lock()
	if path == "" || (path == s.path && s.state != StateIdle) {
		s.mu.Unlock()
		return
	}
	s.startLocked(ctx, path)
	s.mu.Unlock()
	s.changed()
}

// Reload fetches the open document again.
func (s *Session) Reload(ctx context.Context) {
	s.mu.Lock()
	if s.path == "" {
		s.mu.Unlock()
		return
	}
	s.startLocked(ctx, s.path)
	s.mu.Unlock()
	s.changed()
}

func (s *Session) startLocked(parent context.Context, path string) {
	s.supersedeLocked()

	s.path = path
	s.state = StateLoading
	s.pages = []string{}
	s.current = 0
	s.annotations = make(map[int][]Annotation)
	start := s.now()
	s.loading = LoadingState{Loading: true, StartTime: start}

	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	gen := s.gen

	stop := make(chan struct{})
	s.stopTick = stop
	go s.runTicker(gen, start, stop)

	s.logger.Debug("loading document", "path", path)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		res, err := s.fetcher.Parse(ctx, path)
		s.finish(gen, path, res, err)
	}()
}

func (s *Session) runTicker(gen uint64, start time.Time, stop <-chan struct{}) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if gen != s.gen || !s.loading.Loading {
				s.mu.Unlock()
				return
			}
			s.loading.Elapsed = s.now().Sub(start)
			s.mu.Unlock()
			s.changed()
		}
	}
}

func (s *Session) finish(gen uint64, path string, res *Extracted, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug("discarding stale load", "path", path)
		return
	}

	s.stopTickerLocked()
	s.cancel = nil
	s.loading.Loading = false
	s.loading.Elapsed = s.now().Sub(s.loading.StartTime)
	s.loading.StartTime = time.Time{}

	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = DefaultLoadError
		}
		s.state = StateFailed
		s.loading.Error = msg
		s.logger.Warn("failed to load document", "path", path, "error", err)
	} else {
		text := ""
		if res != nil {
			text = res.Text
		}
		s.state = StateSuccess
		s.pages = paginate.Paginate(text)
		s.current = 0
		s.annotations = make(map[int][]Annotation)
		s.logger.Debug("document loaded", "path", path, "pages", len(s.pages))
	}
	s.mu.Unlock()
	s.changed()
}

// supersedeLocked invalidates and cancels the load in flight.
func (s *Session) supersedeLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.stopTickerLocked()
}

func (s *Session) stopTickerLocked() {
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
}

// Close discards any load in flight and stops the ticker.
func (s *Session) Close() {
	s.mu.Lock()
	s.supersedeLocked()
	if s.state == StateLoading {
		s.state = StateIdle
		s.loading.Loading = false
		s.loading.StartTime = time.Time{}
	}
	s.mu.Unlock()
	s.inflight.Wait()
}

// Wait blocks until every load started so far has settled.
func (s *Session) Wait() {
	s.inflight.Wait()
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Path returns the open document's path.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// State returns the load state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Loading returns a snapshot of the loading state.
func (s *Session) Loading() LoadingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Pages returns a copy of the page texts.
func (s *Session) Pages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.pages))
	copy(out, s.pages)
	return out
}

// PageCount returns the number of pages.
func (s *Session) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// Page returns the current page index.
func (s *Session) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Content returns the text of the current page, or "" when there are no pages.
func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pages) == 0 {
		return ""
	}
	return s.pages[s.current]
}

// CurrentAnnotations returns the annotations on page in creation order.
func (s *Session) CurrentAnnotations(page int) []Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.annotations[page]
	out := make([]Annotation, len(list))
	copy(out, list)
	return out
}

// AddAnnotation appends the trimmed text to page. Blank text is ignored.
func (s *Session) AddAnnotation(page int, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.mu.Lock()
	s.annotations[page] = append(s.annotations[page], Annotation{Text: text})
	s.mu.Unlock()
	s.changed()
}

// Navigate moves the current page by delta, stopping at the first and last page.
func (s *Session) Navigate(delta int) {
	s.mu.Lock()
	s.current = s.clampLocked(s.current + delta)
	s.mu.Unlock()
	s.changed()
}

// Seek jumps to page, clamped to the valid range.
func (s *Session) Seek(page int) {
	s.mu.Lock()
	s.current = s.clampLocked(page)
	s.mu.Unlock()
	s.changed()
}

func (s *Session) clampLocked(page int) int {
	last := len(s.pages) - 1
	if page > last {
		page = last
	}
	if page < 0 {
		page = 0
	}
	return page
}
