package notes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Used by tests and by the reader
// when no notes database is configured.
type MemoryStore struct {
	mu    sync.Mutex
	notes map[string]map[string]memNote // user -> id -> note
	seq   int64
	now   func() time.Time
}

type memNote struct {
	Note
	seq int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{notes: make(map[string]map[string]memNote), now: time.Now}
}

func (m *MemoryStore) Save(ctx context.Context, userID string, data NoteData) (string, error) {
	if err := data.Validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.notes[userID] == nil {
		m.notes[userID] = make(map[string]memNote)
	}
	m.seq++
	id := uuid.NewString()
	m.notes[userID][id] = memNote{
		Note: Note{ID: id, NoteData: data, CreatedAt: m.now().UTC()},
		seq:  m.seq,
	}
	return id, nil
}

func (m *MemoryStore) List(ctx context.Context, userID string) ([]Note, error) {
	notes := m.collect(userID, func(Note) bool { return true })
	for i, j := 0, len(notes)-1; i < j; i, j = i+1, j-1 {
		notes[i], notes[j] = notes[j], notes[i]
	}
	return notes, nil
}

func (m *MemoryStore) ListForBook(ctx context.Context, userID, bookID string, chapter *int) ([]Note, error) {
	ch := chapterFilter(chapter)
	return m.collect(userID, func(n Note) bool {
		if n.BookID != bookID {
			return false
		}
		return ch == 0 || (n.Chapter != nil && *n.Chapter == ch)
	}), nil
}

func (m *MemoryStore) Update(ctx context.Context, userID, id string, u Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notes[userID][id]
	if !ok {
		return ErrNotFound
	}
	u.apply(&n.NoteData)
	m.notes[userID][id] = n
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notes[userID][id]; !ok {
		return ErrNotFound
	}
	delete(m.notes[userID], id)
	return nil
}

// collect returns matching notes oldest first.
func (m *MemoryStore) collect(userID string, keep func(Note) bool) []Note {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]memNote, 0, len(m.notes[userID]))
	for _, n := range m.notes[userID] {
		if keep(n.Note) {
			matched = append(matched, n)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	notes := make([]Note, len(matched))
	for i, n := range matched {
		notes[i] = n.Note
	}
	return notes
}
