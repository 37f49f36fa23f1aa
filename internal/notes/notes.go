// Package notes stores reader highlights and notes per user and keeps a
// book's notes in sync with the signed-in identity.
package notes

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a note does not exist for the user.
var ErrNotFound = errors.New("note not found")

// NoteData is the user-editable content of a note.
type NoteData struct {
	BookID          string  `json:"book_id"`
	Chapter         *int    `json:"chapter,omitempty"`
	HighlightedText string  `json:"highlighted_text"`
	UserNote        *string `json:"user_note,omitempty"`
	PageNumber      *int    `json:"page_number,omitempty"`
	Color           *string `json:"color,omitempty"`
}

// Validate checks the fields every note must carry.
func (d NoteData) Validate() error {
	if d.BookID == "" {
		return fmt.Errorf("book_id is required")
	}
	if d.HighlightedText == "" {
		return fmt.Errorf("highlighted_text is required")
	}
	return nil
}

// Note is a stored note.
type Note struct {
	ID string `json:"id"`
	NoteData
	CreatedAt time.Time `json:"created_at"`
}

// Update is a partial change to a note. Nil fields are left as they are.
type Update struct {
	Chapter         *int    `json:"chapter,omitempty"`
	HighlightedText *string `json:"highlighted_text,omitempty"`
	UserNote        *string `json:"user_note,omitempty"`
	PageNumber      *int    `json:"page_number,omitempty"`
	Color           *string `json:"color,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.Chapter == nil && u.HighlightedText == nil && u.UserNote == nil &&
		u.PageNumber == nil && u.Color == nil
}

// apply merges u into d.
func (u Update) apply(d *NoteData) {
	if u.Chapter != nil {
		d.Chapter = u.Chapter
	}
	if u.HighlightedText != nil {
		d.HighlightedText = *u.HighlightedText
	}
	if u.UserNote != nil {
		d.UserNote = u.UserNote
	}
	if u.PageNumber != nil {
		d.PageNumber = u.PageNumber
	}
	if u.Color != nil {
		d.Color = u.Color
	}
}

// Store persists notes. Every operation is scoped to one user.
type Store interface {
	// Save stores a new note and returns its id.
	Save(ctx context.Context, userID string, data NoteData) (string, error)

	// List returns all of the user's notes, newest first.
	List(ctx context.Context, userID string) ([]Note, error)

	// ListForBook returns the user's notes for a book, oldest first.
	// A nil or zero chapter means the whole book.
	ListForBook(ctx context.Context, userID, bookID string, chapter *int) ([]Note, error)

	// Update applies a partial update. Returns ErrNotFound if missing.
	Update(ctx context.Context, userID, id string, u Update) error

	// Delete removes a note. Returns ErrNotFound if missing.
	Delete(ctx context.Context, userID, id string) error
}

// chapterFilter returns the chapter to filter by, or 0 for none.
func chapterFilter(chapter *int) int {
	if chapter == nil {
		return 0
	}
	return *chapter
}
