package notes

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/meaningapp/meaning/internal/api"
)

// HTTPStore is a Store that talks to a meaning server's /api/notes routes.
// The server identifies the user from the bearer token, so the userID
// arguments must match the token's user.
type HTTPStore struct {
	client *api.Client
}

var _ Store = (*HTTPStore)(nil)

// NewHTTPStore creates an HTTPStore. The client must carry a bearer token.
func NewHTTPStore(client *api.Client) *HTTPStore {
	return &HTTPStore{client: client}
}

// CreateResponse is the body returned when a note is created.
type CreateResponse struct {
	ID string `json:"id"`
}

// ListResponse is the body returned when notes are listed.
type ListResponse struct {
	Notes []Note `json:"notes"`
}

func (h *HTTPStore) Save(ctx context.Context, userID string, data NoteData) (string, error) {
	var resp CreateResponse
	if err := h.client.Post(ctx, "/api/notes", data, &resp); err != nil {
		return "", mapError(err)
	}
	return resp.ID, nil
}

func (h *HTTPStore) List(ctx context.Context, userID string) ([]Note, error) {
	return h.list(ctx, url.Values{})
}

func (h *HTTPStore) ListForBook(ctx context.Context, userID, bookID string, chapter *int) ([]Note, error) {
	q := url.Values{"book_id": {bookID}}
	if ch := chapterFilter(chapter); ch != 0 {
		q.Set("chapter", strconv.Itoa(ch))
	}
	return h.list(ctx, q)
}

func (h *HTTPStore) Update(ctx context.Context, userID, id string, u Update) error {
	return mapError(h.client.Patch(ctx, "/api/notes/"+url.PathEscape(id), u, nil))
}

func (h *HTTPStore) Delete(ctx context.Context, userID, id string) error {
	return mapError(h.client.Delete(ctx, "/api/notes/"+url.PathEscape(id)))
}

func (h *HTTPStore) list(ctx context.Context, q url.Values) ([]Note, error) {
	path := "/api/notes"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp ListResponse
	if err := h.client.Get(ctx, path, &resp); err != nil {
		return nil, mapError(err)
	}
	if resp.Notes == nil {
		resp.Notes = []Note{}
	}
	return resp.Notes, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if api.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
