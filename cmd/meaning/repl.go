package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/meaningapp/meaning/internal/notes"
	"github.com/meaningapp/meaning/internal/reader"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// readLoop drives a reading session from typed commands.
type readLoop struct {
	session *reader.Session

	// notes and store are nil when no user is signed in.
	notes  *notes.Sync
	store  notes.Store
	userID string

	bookID  string
	chapter *int

	// prompt is printed before each command; empty when input is not a terminal.
	prompt string
	// progress shows the loading line; nil when output is not a terminal.
	progress *progressLine
}

// progressLine draws a single "Loading PDF..." line. Updates are dropped
// outside begin/end so a late tick cannot land after the prompt.
type progressLine struct {
	mu     sync.Mutex
	w      io.Writer
	active bool
	shown  bool
}

func newProgressLine(w io.Writer) *progressLine {
	return &progressLine{w: w}
}

func (p *progressLine) begin() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = true
}

func (p *progressLine) update(elapsed time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}
	fmt.Fprintf(p.w, "\rLoading PDF... %.1fs", elapsed.Seconds())
	p.shown = true
}

// end stops updates and erases the line if anything was drawn.
func (p *progressLine) end() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shown {
		fmt.Fprint(p.w, "\r\033[K")
	}
	p.active = false
	p.shown = false
}

const readHelp = `Commands:
  n, next              next page
  p, prev              previous page
  g, goto <page>       jump to a page (1-based)
  page                 show the current page again
  a, annotate <text>   annotate the current page
  annotations          list annotations on the current page
  highlight <text>     save a highlight to your notes
  notes                list your notes for this book
  open <path>          open another document
  reload               extract the document again
  q, quit              leave`

// open loads path and reports the result.
func (l *readLoop) open(ctx context.Context, path string) {
	l.progress.begin()
	l.session.Open(ctx, path)
	l.settle()
}

func (l *readLoop) reload(ctx context.Context) {
	l.progress.begin()
	l.session.Reload(ctx)
	l.settle()
}

func (l *readLoop) settle() {
	l.session.Wait()
	l.progress.end()

	switch l.session.State() {
	case reader.StateFailed:
		printlnFn("Error:", l.session.Loading().Error)
	case reader.StateSuccess:
		if l.session.PageCount() == 0 {
			printlnFn("No text found in", l.session.Path())
			return
		}
		l.render()
	}
}

func (l *readLoop) render() {
	count := l.session.PageCount()
	if count == 0 {
		printlnFn("No document loaded.")
		return
	}
	page := l.session.Page()
	printlnFn(fmt.Sprintf("[page %d of %d]", page+1, count))
	printlnFn(l.session.Content())
	if n := len(l.session.CurrentAnnotations(page)); n > 0 {
		printlnFn(fmt.Sprintf("(%d annotation(s) on this page)", n))
	}
}

// run reads commands until EOF or quit.
func (l *readLoop) run(ctx context.Context, scanner *bufio.Scanner) {
	for {
		if l.prompt != "" {
			fmt.Print(l.prompt)
		}
		if !scanner.Scan() {
			return
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "":
			continue

		case "help", "?":
			printlnFn(readHelp)

		case "n", "next":
			l.session.Navigate(1)
			l.render()

		case "p", "prev":
			l.session.Navigate(-1)
			l.render()

		case "g", "goto":
			n, err := strconv.Atoi(arg)
			if err != nil {
				printlnFn("Usage: goto <page>")
				continue
			}
			l.session.Seek(n - 1)
			l.render()

		case "page":
			l.render()

		case "a", "annotate":
			if arg == "" {
				printlnFn("Usage: annotate <text>")
				continue
			}
			l.session.AddAnnotation(l.session.Page(), arg)
			printlnFn("Annotated page", l.session.Page()+1)

		case "annotations":
			list := l.session.CurrentAnnotations(l.session.Page())
			if len(list) == 0 {
				printlnFn("No annotations on this page.")
				continue
			}
			for i, a := range list {
				printlnFn(fmt.Sprintf("%d. %s", i+1, a.Text))
			}

		case "highlight":
			l.highlight(ctx, arg)

		case "notes":
			l.listNotes()

		case "open":
			if arg == "" {
				printlnFn("Usage: open <path>")
				continue
			}
			l.open(ctx, arg)

		case "reload":
			l.reload(ctx)

		case "q", "quit", "exit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func (l *readLoop) highlight(ctx context.Context, text string) {
	if l.store == nil || l.userID == "" {
		printlnFn("Sign in with --token to save highlights.")
		return
	}
	if text == "" {
		printlnFn("Usage: highlight <text>")
		return
	}
	page := l.session.Page() + 1
	_, err := l.store.Save(ctx, l.userID, notes.NoteData{
		BookID:          l.bookID,
		Chapter:         l.chapter,
		HighlightedText: text,
		PageNumber:      &page,
	})
	if err != nil {
		printlnFn("Error:", err)
		return
	}
	printlnFn("Saved.")
	if l.notes != nil {
		l.notes.Refresh()
	}
}

func (l *readLoop) listNotes() {
	if l.notes == nil {
		printlnFn("Sign in with --token to see notes.")
		return
	}
	l.notes.SetVisible(true)
	l.notes.Wait()
	list := l.notes.Notes()
	l.notes.SetVisible(false)

	if len(list) == 0 {
		printlnFn("No notes for", l.bookID)
		return
	}
	for _, n := range list {
		line := fmt.Sprintf("- %q", n.HighlightedText)
		if n.PageNumber != nil {
			line += fmt.Sprintf(" (p. %d)", *n.PageNumber)
		}
		if n.UserNote != nil && *n.UserNote != "" {
			line += " " + *n.UserNote
		}
		printlnFn(line)
	}
}
