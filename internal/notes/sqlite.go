package notes

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its base FS and dialect in package globals.
var migrateMu sync.Mutex

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and runs migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, "migrations")
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Save(ctx context.Context, userID string, data NoteData) (string, error) {
	if err := data.Validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, user_id, book_id, chapter, highlighted_text, user_note, page_number, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, data.BookID, nullInt(data.Chapter), data.HighlightedText,
		nullString(data.UserNote), nullInt(data.PageNumber), nullString(data.Color),
		s.now().UTC().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting note: %w", err)
	}
	return id, nil
}

const selectNotes = `SELECT id, book_id, chapter, highlighted_text, user_note, page_number, color, created_at FROM notes`

func (s *SQLiteStore) List(ctx context.Context, userID string) ([]Note, error) {
	return s.query(ctx, selectNotes+` WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
}

func (s *SQLiteStore) ListForBook(ctx context.Context, userID, bookID string, chapter *int) ([]Note, error) {
	if ch := chapterFilter(chapter); ch != 0 {
		return s.query(ctx, selectNotes+` WHERE user_id = ? AND book_id = ? AND chapter = ? ORDER BY created_at, rowid`,
			userID, bookID, ch)
	}
	return s.query(ctx, selectNotes+` WHERE user_id = ? AND book_id = ? ORDER BY created_at, rowid`, userID, bookID)
}

func (s *SQLiteStore) Update(ctx context.Context, userID, id string, u Update) error {
	var sets []string
	var args []any
	if u.Chapter != nil {
		sets = append(sets, "chapter = ?")
		args = append(args, *u.Chapter)
	}
	if u.HighlightedText != nil {
		sets = append(sets, "highlighted_text = ?")
		args = append(args, *u.HighlightedText)
	}
	if u.UserNote != nil {
		sets = append(sets, "user_note = ?")
		args = append(args, *u.UserNote)
	}
	if u.PageNumber != nil {
		sets = append(sets, "page_number = ?")
		args = append(args, *u.PageNumber)
	}
	if u.Color != nil {
		sets = append(sets, "color = ?")
		args = append(args, *u.Color)
	}

	if len(sets) == 0 {
		// still report missing notes
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM notes WHERE id = ? AND user_id = ?`, id, userID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	args = append(args, id, userID)
	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("updating note: %w", err)
	}
	return affected(res)
}

func (s *SQLiteStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	return affected(res)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	notes := []Note{}
	for rows.Next() {
		var (
			n                 Note
			chapter, page     sql.NullInt64
			userNote, color   sql.NullString
			createdAtUnixNano int64
		)
		if err := rows.Scan(&n.ID, &n.BookID, &chapter, &n.HighlightedText, &userNote, &page, &color, &createdAtUnixNano); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		n.Chapter = intPtr(chapter)
		n.PageNumber = intPtr(page)
		n.UserNote = stringPtr(userNote)
		n.Color = stringPtr(color)
		n.CreatedAt = time.Unix(0, createdAtUnixNano).UTC()
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
