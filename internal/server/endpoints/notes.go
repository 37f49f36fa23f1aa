package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/meaningapp/meaning/internal/api"
	"github.com/meaningapp/meaning/internal/auth"
	"github.com/meaningapp/meaning/internal/notes"
	"github.com/meaningapp/meaning/internal/svcctx"
)

// notesGroup places the note commands under "meaning api notes".
const notesGroup = "notes"

// noteClient builds an API client carrying the --token flag or MEANING_TOKEN.
func noteClient(getServerURL func() string, token string) *api.Client {
	if token == "" {
		token = os.Getenv("MEANING_TOKEN")
	}
	return api.NewClient(getServerURL(), api.WithToken(token))
}

// ListNotesEndpoint handles GET /api/notes.
type ListNotesEndpoint struct{}

var _ api.Endpoint = (*ListNotesEndpoint)(nil)

func (e *ListNotesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/notes", e.handler
}

func (e *ListNotesEndpoint) RequiresAuth() bool { return true }

func (e *ListNotesEndpoint) CommandGroup() string { return notesGroup }

// handler godoc
//
//	@Summary		List notes
//	@Description	Lists the caller's notes for a book (oldest first), optionally for one chapter.
//	@Description	Without book_id, lists all of the caller's notes newest first.
//	@Tags			notes
//	@Produce		json
//	@Security		BearerAuth
//	@Param			book_id	query		string	false	"Book ID"
//	@Param			chapter	query		int		false	"Chapter (0 or absent means whole book)"
//	@Success		200		{object}	notes.ListResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/notes [get]
func (e *ListNotesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.NoteStoreFrom(r.Context())
	userID := auth.UserIDFrom(r.Context())

	q := r.URL.Query()
	bookID := q.Get("book_id")

	var chapter *int
	if raw := q.Get("chapter"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "chapter must be an integer")
			return
		}
		chapter = &n
	}

	var (
		list []notes.Note
		err  error
	)
	if bookID == "" {
		list, err = store.List(r.Context(), userID)
	} else {
		list, err = store.ListForBook(r.Context(), userID, bookID, chapter)
	}
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Error("failed to list notes", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, notes.ListResponse{Notes: list})
}

func (e *ListNotesEndpoint) Command(getServerURL func() string) *cobra.Command {
	var token, bookID string
	var chapter int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if bookID != "" {
				q.Set("book_id", bookID)
			}
			if chapter > 0 {
				q.Set("chapter", strconv.Itoa(chapter))
			}
			path := "/api/notes"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			var resp notes.ListResponse
			if err := noteClient(getServerURL, token).Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer token (default $MEANING_TOKEN)")
	cmd.Flags().StringVar(&bookID, "book", "", "Only notes for this book")
	cmd.Flags().IntVar(&chapter, "chapter", 0, "Only notes for this chapter")
	return cmd
}

// CreateNoteEndpoint handles POST /api/notes.
type CreateNoteEndpoint struct{}

var _ api.Endpoint = (*CreateNoteEndpoint)(nil)

func (e *CreateNoteEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/notes", e.handler
}

func (e *CreateNoteEndpoint) RequiresAuth() bool { return true }

func (e *CreateNoteEndpoint) CommandGroup() string { return notesGroup }

// handler godoc
//
//	@Summary		Create a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		notes.NoteData	true	"Note"
//	@Success		201		{object}	notes.CreateResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/notes [post]
func (e *CreateNoteEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var data notes.NoteData
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := data.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	store := svcctx.NoteStoreFrom(r.Context())
	userID := auth.UserIDFrom(r.Context())
	id, err := store.Save(r.Context(), userID, data)
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Error("failed to save note", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, notes.CreateResponse{ID: id})
}

func (e *CreateNoteEndpoint) Command(getServerURL func() string) *cobra.Command {
	var token, bookID, note, color string
	var chapter, page int
	cmd := &cobra.Command{
		Use:   "add <highlighted-text>",
		Short: "Save a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := notes.NoteData{BookID: bookID, HighlightedText: args[0]}
			if chapter > 0 {
				data.Chapter = &chapter
			}
			if cmd.Flags().Changed("page") {
				data.PageNumber = &page
			}
			if note != "" {
				data.UserNote = &note
			}
			if color != "" {
				data.Color = &color
			}
			var resp notes.CreateResponse
			if err := noteClient(getServerURL, token).Post(cmd.Context(), "/api/notes", data, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer token (default $MEANING_TOKEN)")
	cmd.Flags().StringVar(&bookID, "book", "", "Book ID (required)")
	cmd.Flags().IntVar(&chapter, "chapter", 0, "Chapter")
	cmd.Flags().IntVar(&page, "page", 0, "Page number")
	cmd.Flags().StringVar(&note, "note", "", "Your note on the highlight")
	cmd.Flags().StringVar(&color, "color", "", "Highlight color")
	cmd.MarkFlagRequired("book")
	return cmd
}

// UpdateNoteEndpoint handles PATCH /api/notes/{id}.
type UpdateNoteEndpoint struct{}

var _ api.Endpoint = (*UpdateNoteEndpoint)(nil)

func (e *UpdateNoteEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/notes/{id}", e.handler
}

func (e *UpdateNoteEndpoint) RequiresAuth() bool { return true }

func (e *UpdateNoteEndpoint) CommandGroup() string { return notesGroup }

// handler godoc
//
//	@Summary		Update a note
//	@Description	Only the fields present in the body are changed.
//	@Tags			notes
//	@Accept			json
//	@Security		BearerAuth
//	@Param			id		path	string			true	"Note ID"
//	@Param			request	body	notes.Update	true	"Fields to change"
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/notes/{id} [patch]
func (e *UpdateNoteEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var u notes.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if u.HighlightedText != nil && *u.HighlightedText == "" {
		writeError(w, http.StatusBadRequest, "highlighted_text cannot be empty")
		return
	}

	store := svcctx.NoteStoreFrom(r.Context())
	userID := auth.UserIDFrom(r.Context())
	if err := store.Update(r.Context(), userID, r.PathValue("id"), u); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *UpdateNoteEndpoint) Command(getServerURL func() string) *cobra.Command {
	var token, note, color, text string
	var chapter, page int
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u notes.Update
			if cmd.Flags().Changed("note") {
				u.UserNote = &note
			}
			if cmd.Flags().Changed("color") {
				u.Color = &color
			}
			if cmd.Flags().Changed("text") {
				u.HighlightedText = &text
			}
			if cmd.Flags().Changed("chapter") {
				u.Chapter = &chapter
			}
			if cmd.Flags().Changed("page") {
				u.PageNumber = &page
			}
			if u.Empty() {
				return fmt.Errorf("nothing to update")
			}
			path := "/api/notes/" + url.PathEscape(args[0])
			if err := noteClient(getServerURL, token).Patch(cmd.Context(), path, u, nil); err != nil {
				return err
			}
			fmt.Printf("Note %s updated\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer token (default $MEANING_TOKEN)")
	cmd.Flags().StringVar(&note, "note", "", "Your note on the highlight")
	cmd.Flags().StringVar(&color, "color", "", "Highlight color")
	cmd.Flags().StringVar(&text, "text", "", "Highlighted text")
	cmd.Flags().IntVar(&chapter, "chapter", 0, "Chapter")
	cmd.Flags().IntVar(&page, "page", 0, "Page number")
	return cmd
}

// DeleteNoteEndpoint handles DELETE /api/notes/{id}.
type DeleteNoteEndpoint struct{}

var _ api.Endpoint = (*DeleteNoteEndpoint)(nil)

func (e *DeleteNoteEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/notes/{id}", e.handler
}

func (e *DeleteNoteEndpoint) RequiresAuth() bool { return true }

func (e *DeleteNoteEndpoint) CommandGroup() string { return notesGroup }

// handler godoc
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Note ID"
//	@Success		204
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/notes/{id} [delete]
func (e *DeleteNoteEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.NoteStoreFrom(r.Context())
	userID := auth.UserIDFrom(r.Context())
	if err := store.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteNoteEndpoint) Command(getServerURL func() string) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/notes/" + url.PathEscape(args[0])
			if err := noteClient(getServerURL, token).Delete(cmd.Context(), path); err != nil {
				return err
			}
			fmt.Printf("Note %s deleted\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer token (default $MEANING_TOKEN)")
	return cmd
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, notes.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	svcctx.LoggerFrom(r.Context()).Error("note store error", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}
