package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/meaningapp/meaning/internal/api"
	"github.com/meaningapp/meaning/internal/home"
	"github.com/meaningapp/meaning/internal/notes"
	"github.com/meaningapp/meaning/internal/reader"
	"github.com/meaningapp/meaning/internal/server/endpoints"
	"github.com/meaningapp/meaning/internal/testutil"
)

// startTestServer starts a server on a free port with a temporary home
// and returns it once /health answers.
func startTestServer(t *testing.T) (*Server, testutil.ServerConfig, *testutil.StartServer) {
	t.Helper()

	cfg := testutil.NewServerConfig(t)
	homeDir, err := home.New(cfg.HomeDir)
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}

	srv, err := New(Config{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Home:         homeDir,
		Logger:       cfg.Logger,
		DocumentRoot: cfg.DocsRoot,
		Secret:       []byte(cfg.Secret),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Start(ctx)
	}()
	starter := &testutil.StartServer{Cancel: cancel, Done: done}

	if err := testutil.WaitForServer(cfg.URL(), 10*time.Second); err != nil {
		starter.Stop()
		t.Fatalf("server did not start: %v", err)
	}
	return srv, cfg, starter
}

func TestServer_Lifecycle(t *testing.T) {
	srv, cfg, starter := startTestServer(t)

	t.Run("is_running", func(t *testing.T) {
		if !srv.IsRunning() {
			t.Error("IsRunning() = false, want true")
		}
	})

	t.Run("double_start", func(t *testing.T) {
		if err := srv.Start(context.Background()); err == nil {
			t.Error("second Start() should return error")
		}
	})

	t.Run("note_database_created", func(t *testing.T) {
		path := filepath.Join(cfg.HomeDir, home.DataDirName, home.NotesDBName)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("note database missing: %v", err)
		}
	})

	starter.Stop()

	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown, want false")
	}
}

func TestServer_CORS(t *testing.T) {
	_, cfg, starter := startTestServer(t)
	t.Cleanup(starter.Stop)

	req, err := http.NewRequest(http.MethodOptions, cfg.URL()+"/parse", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "http://reader.example")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Errorf("Allow-Headers = %q, want Authorization", got)
	}

	health, err := http.Get(cfg.URL() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	health.Body.Close()
	if got := health.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("GET Allow-Origin = %q, want *", got)
	}
}

func TestServer_Parse(t *testing.T) {
	_, cfg, starter := startTestServer(t)
	t.Cleanup(starter.Stop)

	pdf := testutil.MinimalPDF("First page text", "Second page text")
	if err := os.WriteFile(filepath.Join(cfg.DocsRoot, "book.pdf"), pdf, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.DocsRoot, "notes.txt"), []byte("plain"), 0o644); err != nil {
		t.Fatal(err)
	}

	client := reader.NewServiceClient(api.NewClient(cfg.URL()))
	ctx := context.Background()

	t.Run("relative_path", func(t *testing.T) {
		got, err := client.Parse(ctx, "book.pdf")
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if got.Pages == nil || *got.Pages != 2 {
			t.Fatalf("Pages = %v, want 2", got.Pages)
		}
		for _, want := range []string{"First page text", "-- 1 of 2 --", "Second page text", "-- 2 of 2 --"} {
			if !strings.Contains(got.Text, want) {
				t.Errorf("text missing %q:\n%s", want, got.Text)
			}
		}
	})

	t.Run("upload_with_limit", func(t *testing.T) {
		got, err := client.ParseFile(ctx, "upload.pdf", pdf, 5)
		if err != nil {
			t.Fatalf("ParseFile() error = %v", err)
		}
		if utf8.RuneCountInString(got.Text) != 5 || !strings.HasPrefix("First page text", got.Text) {
			t.Errorf("Text = %q, want the first 5 characters", got.Text)
		}
	})

	t.Run("not_a_pdf_path", func(t *testing.T) {
		_, err := client.Parse(ctx, "notes.txt")
		var svcErr *reader.ServiceError
		if !errors.As(err, &svcErr) {
			t.Fatalf("err = %v, want ServiceError", err)
		}
		if svcErr.StatusCode != http.StatusBadRequest || svcErr.Message != endpoints.ErrMsgNotPDF {
			t.Errorf("got %d %q", svcErr.StatusCode, svcErr.Message)
		}
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := client.Parse(ctx, "absent.pdf")
		var svcErr *reader.ServiceError
		if !errors.As(err, &svcErr) {
			t.Fatalf("err = %v, want ServiceError", err)
		}
		if svcErr.StatusCode != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", svcErr.StatusCode)
		}
	})

	t.Run("session_paginates", func(t *testing.T) {
		session := reader.NewSession(reader.Config{Fetcher: client})
		defer session.Close()

		session.Open(ctx, "book.pdf")
		session.Wait()

		if session.State() != reader.StateSuccess {
			t.Fatalf("State = %v, error = %q", session.State(), session.Loading().Error)
		}
		if session.PageCount() != 2 {
			t.Fatalf("PageCount = %d, want 2", session.PageCount())
		}
		if got := session.Content(); !strings.Contains(got, "First page text") || strings.Contains(got, "Second") {
			t.Errorf("Content = %q", got)
		}
	})
}

func TestServer_Notes(t *testing.T) {
	srv, cfg, starter := startTestServer(t)
	t.Cleanup(starter.Stop)
	ctx := context.Background()

	t.Run("requires_token", func(t *testing.T) {
		resp, err := http.Get(cfg.URL() + "/api/notes")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("rejects_bad_token", func(t *testing.T) {
		store := notes.NewHTTPStore(api.NewClient(cfg.URL(), api.WithToken("not-a-token")))
		_, err := store.List(ctx, "alice")
		if !api.IsStatus(err, http.StatusUnauthorized) {
			t.Errorf("err = %v, want 401", err)
		}
	})

	aliceToken, err := srv.Tokens().Issue("alice")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	bobToken, err := srv.Tokens().Issue("bob")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	alice := notes.NewHTTPStore(api.NewClient(cfg.URL(), api.WithToken(aliceToken)))
	bob := notes.NewHTTPStore(api.NewClient(cfg.URL(), api.WithToken(bobToken)))

	one, two := 1, 2
	id, err := alice.Save(ctx, "alice", notes.NoteData{BookID: "moby", Chapter: &one, HighlightedText: "Call me Ishmael."})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := alice.Save(ctx, "alice", notes.NoteData{BookID: "moby", Chapter: &two, HighlightedText: "The whale."}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	t.Run("list_for_chapter", func(t *testing.T) {
		got, err := alice.ListForBook(ctx, "alice", "moby", &one)
		if err != nil {
			t.Fatalf("ListForBook() error = %v", err)
		}
		if len(got) != 1 || got[0].ID != id {
			t.Fatalf("got %+v, want the chapter 1 note", got)
		}
	})

	t.Run("list_for_book", func(t *testing.T) {
		got, err := alice.ListForBook(ctx, "alice", "moby", nil)
		if err != nil {
			t.Fatalf("ListForBook() error = %v", err)
		}
		if len(got) != 2 || got[0].HighlightedText != "Call me Ishmael." {
			t.Fatalf("got %+v, want both notes oldest first", got)
		}
	})

	t.Run("other_user_sees_nothing", func(t *testing.T) {
		got, err := bob.ListForBook(ctx, "bob", "moby", nil)
		if err != nil {
			t.Fatalf("ListForBook() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("bob sees %d notes", len(got))
		}
		if err := bob.Delete(ctx, "bob", id); !errors.Is(err, notes.ErrNotFound) {
			t.Errorf("bob Delete() = %v, want ErrNotFound", err)
		}
	})

	t.Run("update_and_delete", func(t *testing.T) {
		note := "first line"
		if err := alice.Update(ctx, "alice", id, notes.Update{UserNote: &note}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		got, err := alice.ListForBook(ctx, "alice", "moby", &one)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].UserNote == nil || *got[0].UserNote != note {
			t.Fatalf("got %+v, want updated note", got)
		}

		if err := alice.Delete(ctx, "alice", id); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := alice.Delete(ctx, "alice", id); !errors.Is(err, notes.ErrNotFound) {
			t.Errorf("second Delete() = %v, want ErrNotFound", err)
		}
	})
}
