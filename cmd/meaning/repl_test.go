package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/meaningapp/meaning/internal/auth"
	"github.com/meaningapp/meaning/internal/notes"
	"github.com/meaningapp/meaning/internal/reader"
)

type fakeFetcher struct {
	texts map[string]string
}

func (f *fakeFetcher) Parse(ctx context.Context, path string) (*reader.Extracted, error) {
	text, ok := f.texts[path]
	if !ok {
		return nil, errors.New("ENOENT: no such file")
	}
	return &reader.Extracted{Text: text}, nil
}

// captureOutput swaps printlnFn for a recorder.
func captureOutput(t *testing.T) *strings.Builder {
	t.Helper()
	var out strings.Builder
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		return fmt.Fprintln(&out, a...)
	}
	t.Cleanup(func() { printlnFn = orig })
	return &out
}

func newTestLoop(t *testing.T) *readLoop {
	t.Helper()
	session := reader.NewSession(reader.Config{
		Fetcher: &fakeFetcher{texts: map[string]string{
			"book.pdf":  "One\n\n-- 1 of 3 --\n\nTwo\n\n-- 2 of 3 --\n\nThree\n\n-- 3 of 3 --\n\n",
			"blank.pdf": "   ",
		}},
		Tick: time.Hour,
	})
	t.Cleanup(session.Close)
	return &readLoop{session: session, bookID: "book"}
}

func runLines(l *readLoop, lines ...string) {
	l.run(context.Background(), bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n"))))
}

func TestReadLoop_Navigation(t *testing.T) {
	out := captureOutput(t)
	l := newTestLoop(t)

	l.open(context.Background(), "book.pdf")
	runLines(l, "next", "next", "next", "prev", "goto 1", "goto x", "bogus", "quit", "next")

	got := out.String()
	for _, want := range []string{
		"[page 1 of 3]\nOne",
		"[page 2 of 3]\nTwo",
		"[page 3 of 3]\nThree",
		"Usage: goto <page>",
		"Unknown command: bogus",
		"Bye!",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Count(got, "[page 3 of 3]") != 2 {
		t.Errorf("next past the end should stay on the last page:\n%s", got)
	}
	if l.session.Page() != 0 {
		t.Errorf("Page = %d, want 0 (input after quit is ignored)", l.session.Page())
	}
}

func TestReadLoop_Annotations(t *testing.T) {
	out := captureOutput(t)
	l := newTestLoop(t)

	l.open(context.Background(), "book.pdf")
	runLines(l, "annotations", "annotate  first thought ", "a", "next", "annotations", "prev", "annotations")

	got := out.String()
	if !strings.Contains(got, "No annotations on this page.") {
		t.Errorf("expected empty listing:\n%s", got)
	}
	if !strings.Contains(got, "Usage: annotate <text>") {
		t.Errorf("expected usage for bare annotate:\n%s", got)
	}
	if !strings.Contains(got, "1. first thought") {
		t.Errorf("expected trimmed annotation:\n%s", got)
	}
	if got := l.session.CurrentAnnotations(0); len(got) != 1 {
		t.Errorf("page 1 annotations = %v", got)
	}
	if got := l.session.CurrentAnnotations(1); len(got) != 0 {
		t.Errorf("page 2 annotations = %v", got)
	}
}

func TestReadLoop_LoadFailures(t *testing.T) {
	out := captureOutput(t)
	l := newTestLoop(t)

	l.open(context.Background(), "missing.pdf")
	l.open(context.Background(), "blank.pdf")
	runLines(l, "page")

	got := out.String()
	if !strings.Contains(got, "Error: ENOENT: no such file") {
		t.Errorf("expected load error:\n%s", got)
	}
	if !strings.Contains(got, "No text found in blank.pdf") {
		t.Errorf("expected empty document notice:\n%s", got)
	}
	if !strings.Contains(got, "No document loaded.") {
		t.Errorf("expected no-page render:\n%s", got)
	}
}

func TestReadLoop_Notes(t *testing.T) {
	out := captureOutput(t)
	l := newTestLoop(t)

	store := notes.NewMemoryStore()
	broker := auth.NewBroker(auth.Event{Identity: &auth.Identity{UserID: "alice"}})
	sync := notes.NewSync(notes.SyncConfig{Store: store, Auth: broker})
	sync.Start()
	t.Cleanup(sync.Close)

	// Wait until the sync has seen the signed-in identity.
	if _, err := store.Save(context.Background(), "alice", notes.NoteData{BookID: "warmup", HighlightedText: "x"}); err != nil {
		t.Fatal(err)
	}
	sync.SetBook("warmup", nil)
	deadline := time.Now().Add(2 * time.Second)
	for {
		sync.SetVisible(true)
		sync.Wait()
		n := len(sync.Notes())
		sync.SetVisible(false)
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("sync never observed the identity")
		}
		time.Sleep(10 * time.Millisecond)
	}

	l.notes = sync
	l.store = store
	l.userID = "alice"
	sync.SetBook(l.bookID, nil)

	l.open(context.Background(), "book.pdf")
	runLines(l, "notes", "next", "highlight Two is the loneliest", "highlight", "notes")

	got := out.String()
	if !strings.Contains(got, "No notes for book") {
		t.Errorf("expected empty notes first:\n%s", got)
	}
	if !strings.Contains(got, `- "Two is the loneliest" (p. 2)`) {
		t.Errorf("expected saved highlight in listing:\n%s", got)
	}

	saved, err := store.ListForBook(context.Background(), "alice", "book", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 1 || saved[0].PageNumber == nil || *saved[0].PageNumber != 2 {
		t.Errorf("saved = %+v", saved)
	}
}

func TestReadLoop_SignedOut(t *testing.T) {
	out := captureOutput(t)
	l := newTestLoop(t)

	l.open(context.Background(), "book.pdf")
	runLines(l, "highlight words", "notes")

	got := out.String()
	if !strings.Contains(got, "Sign in with --token to save highlights.") {
		t.Errorf("expected sign-in hint:\n%s", got)
	}
	if !strings.Contains(got, "Sign in with --token to see notes.") {
		t.Errorf("expected sign-in hint:\n%s", got)
	}
}

// lockedBuffer is a strings.Builder safe to read while another goroutine writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// gatedFetcher blocks Parse until release is closed.
type gatedFetcher struct {
	release chan struct{}
}

func (f *gatedFetcher) Parse(ctx context.Context, path string) (*reader.Extracted, error) {
	<-f.release
	return &reader.Extracted{Text: "Only page"}, nil
}

func TestProgressLine(t *testing.T) {
	var out lockedBuffer
	p := newProgressLine(&out)

	p.update(time.Second)
	if got := out.String(); got != "" {
		t.Fatalf("update before begin wrote %q", got)
	}

	p.begin()
	p.update(1500 * time.Millisecond)
	p.end()
	if got, want := out.String(), "\rLoading PDF... 1.5s\r\033[K"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}

	p.update(2 * time.Second)
	p.end()
	if got, want := out.String(), "\rLoading PDF... 1.5s\r\033[K"; got != want {
		t.Errorf("update after end wrote: %q", got)
	}

	var nilLine *progressLine
	nilLine.begin()
	nilLine.update(time.Second)
	nilLine.end()
}

func TestReadLoop_ProgressStopsBeforePrompt(t *testing.T) {
	captureOutput(t)
	var progress lockedBuffer
	fetcher := &gatedFetcher{release: make(chan struct{})}

	l := &readLoop{bookID: "book", progress: newProgressLine(&progress)}
	var session *reader.Session
	session = reader.NewSession(reader.Config{
		Fetcher: fetcher,
		Tick:    time.Millisecond,
		OnChange: func() {
			if st := session.Loading(); st.Loading {
				l.progress.update(st.Elapsed)
			}
		},
	})
	t.Cleanup(session.Close)
	l.session = session

	opened := make(chan struct{})
	go func() {
		defer close(opened)
		l.open(context.Background(), "book.pdf")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(progress.String(), "Loading PDF...") {
		if time.Now().After(deadline) {
			t.Fatal("no progress shown while loading")
		}
		time.Sleep(time.Millisecond)
	}
	close(fetcher.release)
	<-opened

	settled := progress.String()
	if !strings.HasSuffix(settled, "\r\033[K") {
		t.Fatalf("progress line not cleared after load: %q", settled)
	}

	// Ticks racing the end of the load must not draw over the prompt.
	l.progress.update(time.Second)
	time.Sleep(20 * time.Millisecond)
	if got := progress.String(); got != settled {
		t.Errorf("progress written after settle: %q", strings.TrimPrefix(got, settled))
	}
}
