package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/meaningapp/meaning/internal/api"
	"github.com/meaningapp/meaning/internal/auth"
	"github.com/meaningapp/meaning/internal/notes"
	"github.com/meaningapp/meaning/internal/reader"
)

var (
	readToken   string
	readBook    string
	readChapter int
)

var readCmd = &cobra.Command{
	Use:   "read <path>",
	Short: "Read a PDF page by page",
	Long: `Open a PDF through the extraction service and page through it.

The path is resolved by the server (relative paths against its
extract.root). With a token (--token, client.token or MEANING_TOKEN)
highlights are saved to your notes and "notes" lists them.

Type "help" at the prompt for commands.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cm, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cm.Get()

		level := cfg.Log.SlogLevel()
		if level < slog.LevelWarn {
			level = slog.LevelWarn
		}
		logger := newLogger(os.Stderr, level)

		token := readToken
		if token == "" {
			token = cfg.ClientToken()
		}
		client := api.NewClient(getServerURL(), api.WithToken(token))
		if err := client.WaitHealthy(ctx, 10, 500*time.Millisecond); err != nil {
			return fmt.Errorf("extraction service at %s is not reachable: %w", client.BaseURL(), err)
		}

		interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))

		loop := &readLoop{
			bookID: readBook,
		}
		if loop.bookID == "" {
			loop.bookID = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}
		if readChapter > 0 {
			ch := readChapter
			loop.chapter = &ch
		}

		var session *reader.Session
		onChange := func() {}
		if interactive {
			loop.prompt = "meaning> "
			loop.progress = newProgressLine(os.Stdout)
			onChange = func() {
				if st := session.Loading(); st.Loading {
					loop.progress.update(st.Elapsed)
				}
			}
		}
		session = reader.NewSession(reader.Config{
			Fetcher:  reader.NewServiceClient(client),
			Logger:   logger,
			Tick:     cfg.Tick(),
			OnChange: onChange,
		})
		defer session.Close()
		loop.session = session

		if token != "" {
			userID, err := auth.PeekUserID(token)
			if err != nil {
				logger.Warn("ignoring unreadable token", "error", err)
			} else {
				broker := auth.NewBroker(auth.Event{Identity: &auth.Identity{UserID: userID}})
				loop.userID = userID
				loop.store = notes.NewHTTPStore(client)
				loop.notes = notes.NewSync(notes.SyncConfig{
					Store:  loop.store,
					Auth:   broker,
					Logger: logger,
				})
				loop.notes.Start()
				defer loop.notes.Close()
				loop.notes.SetBook(loop.bookID, loop.chapter)
			}
		}

		loop.open(ctx, args[0])
		loop.run(ctx, bufio.NewScanner(os.Stdin))
		return nil
	},
}

func init() {
	readCmd.Flags().StringVar(&readToken, "token", "", "Bearer token (default: client.token)")
	readCmd.Flags().StringVar(&readBook, "book", "", "Book id for notes (default: file name without extension)")
	readCmd.Flags().IntVar(&readChapter, "chapter", 0, "Chapter to scope notes to (0 = whole book)")
	readCmd.Flags().StringVar(&serverURL, "server", "", "Server URL (default: client.service_url)")

	rootCmd.AddCommand(readCmd)
}
