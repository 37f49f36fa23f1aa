package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/meaningapp/meaning/internal/api"
	"github.com/meaningapp/meaning/internal/auth"
	"github.com/meaningapp/meaning/internal/extract"
	"github.com/meaningapp/meaning/internal/notes"
	"github.com/meaningapp/meaning/internal/svcctx"
	"github.com/meaningapp/meaning/internal/testutil"
)

// userHeader stands in for bearer auth: the server package owns token checks.
const userHeader = "X-Test-User"

func headerAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(userHeader)
		if user == "" {
			writeError(w, http.StatusUnauthorized, "missing user")
			return
		}
		next(w, r.WithContext(auth.WithUserID(r.Context(), user)))
	}
}

// newTestServer serves all endpoints with a running pool and an in-memory
// note store. Relative paths resolve against root.
func newTestServer(t *testing.T, root string) *httptest.Server {
	t.Helper()

	pool := extract.NewPool(extract.PoolConfig{Logger: testutil.Logger(), WorkerCount: 2})
	ctx, cancel := context.WithCancel(context.Background())
	go pool.Start(ctx)

	services := &svcctx.Services{
		Extractor: pool,
		NoteStore: notes.NewMemoryStore(),
		Logger:    testutil.Logger(),
	}

	registry := api.NewRegistry()
	for _, ep := range All(Config{DocumentRoot: root}) {
		registry.Register(ep)
	}
	mux := http.NewServeMux()
	registry.RegisterRoutes(mux, headerAuth)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func writePDF(t *testing.T, dir, name string, pages ...string) []byte {
	t.Helper()
	data := testutil.MinimalPDF(pages...)
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
	return data
}

func postJSON(t *testing.T, url, body string) (int, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, data
}

func decodeError(t *testing.T, body []byte) string {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("invalid error body %q: %v", body, err)
	}
	return e.Error
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if !health.OK {
		t.Error("ok = false, want true")
	}
}

func TestStatus(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Extractor == nil || status.Extractor.Workers != 2 {
		t.Errorf("extractor = %+v, want 2 workers", status.Extractor)
	}
	if status.Notes != "ready" {
		t.Errorf("notes = %q, want ready", status.Notes)
	}
	if status.Auth != "not_configured" {
		t.Errorf("auth = %q, want not_configured", status.Auth)
	}
}

func TestParse_Path(t *testing.T) {
	root := t.TempDir()
	writePDF(t, root, "book.pdf", "Alpha", "Beta", "Gamma")
	writePDF(t, root, "SHOUT.PDF", "Loud")
	srv := newTestServer(t, root)

	t.Run("relative", func(t *testing.T) {
		status, body := postJSON(t, srv.URL+"/parse", `{"path":"book.pdf"}`)
		if status != http.StatusOK {
			t.Fatalf("status = %d, body = %s", status, body)
		}
		var resp ParseResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Pages == nil || *resp.Pages != 3 {
			t.Fatalf("pages = %v, want 3", resp.Pages)
		}
		if !strings.Contains(resp.Text, "-- 3 of 3 --") {
			t.Errorf("text missing final marker: %q", resp.Text)
		}
	})

	t.Run("absolute", func(t *testing.T) {
		body, _ := json.Marshal(ParseRequest{Path: filepath.Join(root, "book.pdf")})
		status, _ := postJSON(t, srv.URL+"/parse", string(body))
		if status != http.StatusOK {
			t.Errorf("status = %d, want 200", status)
		}
	})

	t.Run("extension_is_case_insensitive", func(t *testing.T) {
		status, body := postJSON(t, srv.URL+"/parse", `{"path":"SHOUT.PDF"}`)
		if status != http.StatusOK {
			t.Errorf("status = %d, body = %s", status, body)
		}
	})
}

func TestParse_Rejections(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("plain"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, root)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"empty object", `{}`, http.StatusBadRequest, ErrMsgNoInput},
		{"empty body", ``, http.StatusBadRequest, ErrMsgNoInput},
		{"invalid json", `{"path":`, http.StatusBadRequest, ErrMsgNoInput},
		{"not a pdf", `{"path":"notes.txt"}`, http.StatusBadRequest, ErrMsgNotPDF},
		{"no extension", `{"path":"book"}`, http.StatusBadRequest, ErrMsgNotPDF},
		{"pdf in the middle", `{"path":"book.pdf.txt"}`, http.StatusBadRequest, ErrMsgNotPDF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := postJSON(t, srv.URL+"/parse", tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", status, tt.wantStatus, body)
			}
			if got := decodeError(t, body); got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		status, body := postJSON(t, srv.URL+"/parse", `{"path":"absent.pdf"}`)
		if status != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", status)
		}
		if got := decodeError(t, body); !strings.Contains(got, "absent.pdf") {
			t.Errorf("error = %q, want the path mentioned", got)
		}
	})
}

func TestParse_Upload(t *testing.T) {
	root := t.TempDir()
	pdf := writePDF(t, root, "book.pdf", "Chapter one begins here", "Chapter two")
	srv := newTestServer(t, root)
	client := api.NewClient(srv.URL)
	ctx := context.Background()

	upload := func(t *testing.T, path string, data []byte, fields map[string]string) (int, ParseResponse, string) {
		t.Helper()
		raw, err := client.Multipart(ctx, path, "file", "upload.pdf", data, fields)
		if err != nil {
			t.Fatalf("Multipart() error = %v", err)
		}
		var resp ParseResponse
		if raw.StatusCode == http.StatusOK {
			if err := json.Unmarshal(raw.Body, &resp); err != nil {
				t.Fatal(err)
			}
			return raw.StatusCode, resp, ""
		}
		return raw.StatusCode, resp, decodeError(t, raw.Body)
	}

	t.Run("full text", func(t *testing.T) {
		status, resp, msg := upload(t, "/parse", pdf, nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d: %s", status, msg)
		}
		if resp.Pages == nil || *resp.Pages != 2 {
			t.Errorf("pages = %v, want 2", resp.Pages)
		}
		if !strings.Contains(resp.Text, "Chapter two") {
			t.Errorf("text = %q", resp.Text)
		}
	})

	limits := []struct {
		query string
		want  int // rune count, -1 for untruncated
	}{
		{"?limit=7", 7},
		{"?limit=0", -1},
		{"?limit=-3", -1},
		{"?limit=abc", -1},
		{"?limit=100000", -1},
	}
	for _, tt := range limits {
		t.Run("limit "+tt.query, func(t *testing.T) {
			status, resp, msg := upload(t, "/parse"+tt.query, pdf, nil)
			if status != http.StatusOK {
				t.Fatalf("status = %d: %s", status, msg)
			}
			n := utf8.RuneCountInString(resp.Text)
			if tt.want >= 0 && n != tt.want {
				t.Errorf("text has %d runes, want %d", n, tt.want)
			}
			if tt.want < 0 && !strings.Contains(resp.Text, "-- 2 of 2 --") {
				t.Errorf("text was truncated: %q", resp.Text)
			}
		})
	}

	t.Run("not a pdf", func(t *testing.T) {
		status, _, _ := upload(t, "/parse", []byte("just some text"), nil)
		if status != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", status)
		}
	})

	t.Run("path form field", func(t *testing.T) {
		raw, err := client.Multipart(ctx, "/parse", "other", "ignored.bin", []byte("x"), map[string]string{"path": "book.pdf"})
		if err != nil {
			t.Fatal(err)
		}
		if raw.StatusCode != http.StatusOK {
			t.Errorf("status = %d, body = %s", raw.StatusCode, raw.Body)
		}
	})
}

func TestNotesEndpoints(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	do := func(t *testing.T, method, path, user string, body any) (int, []byte) {
		t.Helper()
		var r io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				t.Fatal(err)
			}
			r = bytes.NewReader(data)
		}
		req, err := http.NewRequest(method, srv.URL+path, r)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if user != "" {
			req.Header.Set(userHeader, user)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		out, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, out
	}

	if status, _ := do(t, "GET", "/api/notes", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list = %d, want 401", status)
	}

	chapter := 3
	status, body := do(t, "POST", "/api/notes", "alice", notes.NoteData{
		BookID:          "walden",
		Chapter:         &chapter,
		HighlightedText: "I went to the woods",
	})
	if status != http.StatusCreated {
		t.Fatalf("create = %d: %s", status, body)
	}
	var created notes.CreateResponse
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		t.Fatalf("create body = %s", body)
	}

	t.Run("create validates", func(t *testing.T) {
		status, body := do(t, "POST", "/api/notes", "alice", notes.NoteData{BookID: "walden"})
		if status != http.StatusBadRequest {
			t.Errorf("status = %d: %s", status, body)
		}
	})

	t.Run("list by chapter", func(t *testing.T) {
		status, body := do(t, "GET", "/api/notes?book_id=walden&chapter=3", "alice", nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		var list notes.ListResponse
		if err := json.Unmarshal(body, &list); err != nil {
			t.Fatal(err)
		}
		if len(list.Notes) != 1 || list.Notes[0].ID != created.ID {
			t.Errorf("notes = %+v", list.Notes)
		}
	})

	t.Run("list other chapter", func(t *testing.T) {
		_, body := do(t, "GET", "/api/notes?book_id=walden&chapter=4", "alice", nil)
		var list notes.ListResponse
		if err := json.Unmarshal(body, &list); err != nil {
			t.Fatal(err)
		}
		if len(list.Notes) != 0 {
			t.Errorf("notes = %+v, want none", list.Notes)
		}
	})

	t.Run("bad chapter", func(t *testing.T) {
		if status, _ := do(t, "GET", "/api/notes?book_id=walden&chapter=three", "alice", nil); status != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", status)
		}
	})

	t.Run("update", func(t *testing.T) {
		color := "yellow"
		if status, body := do(t, "PATCH", "/api/notes/"+created.ID, "alice", notes.Update{Color: &color}); status != http.StatusNoContent {
			t.Fatalf("status = %d: %s", status, body)
		}
		empty := ""
		if status, _ := do(t, "PATCH", "/api/notes/"+created.ID, "alice", notes.Update{HighlightedText: &empty}); status != http.StatusBadRequest {
			t.Errorf("empty text status = %d, want 400", status)
		}
		if status, _ := do(t, "PATCH", "/api/notes/"+created.ID, "bob", notes.Update{Color: &color}); status != http.StatusNotFound {
			t.Errorf("other user status = %d, want 404", status)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if status, _ := do(t, "DELETE", "/api/notes/"+created.ID, "alice", nil); status != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", status)
		}
		if status, _ := do(t, "DELETE", "/api/notes/"+created.ID, "alice", nil); status != http.StatusNotFound {
			t.Errorf("second delete = %d, want 404", status)
		}
	})
}

func TestSwagger(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	resp, err := http.Get(srv.URL + "/swagger.json")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("invalid swagger document: %v", err)
	}
	for _, path := range []string{"/health", "/parse", "/api/notes"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("swagger document missing %s", path)
		}
	}
}

func TestCommands(t *testing.T) {
	registry := api.NewRegistry()
	for _, ep := range All(Config{}) {
		registry.Register(ep)
	}
	root := registry.BuildCommands(func() string { return "http://localhost:5050" })

	for _, path := range [][]string{{"health"}, {"parse"}, {"notes", "list"}, {"notes", "add"}, {"notes", "delete"}} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd == root {
			t.Errorf("command %v not found: %v", path, err)
		}
	}
}
