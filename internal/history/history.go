// Package history persists bounded conversation history as JSON files, one
// per project and mode. Every operation, including the read-modify-write in
// AppendTurn, runs under both an in-process mutex and a file lock, so
// concurrent goroutines or CLI processes cannot lose each other's turns.
// Writes are atomic (temp file + rename).
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/foodwatch-kr/regintel/internal/log"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn half.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// record is the on-disk file layout.
type record struct {
	Project   string    `json:"project"`
	Mode      string    `json:"mode"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// Store reads and writes conversation histories under a base directory.
type Store struct {
	dir         string
	maxMessages int
	mu          sync.Mutex
	logger      log.Logger
}

// NewStore creates the history directory if needed and returns a Store.
// maxMessages caps each history; older messages are evicted FIFO on save.
func NewStore(dir string, maxMessages int, logger log.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	return &Store{
		dir:         dir,
		maxMessages: maxMessages,
		logger:      logger,
	}, nil
}

// Key returns the history namespace for a project and mode.
func Key(project, mode string) string {
	return project + "_" + mode
}

// withLock runs fn while holding both the in-process mutex and the
// cross-process file lock for one history file. The mutex covers
// goroutines sharing this Store; the flock covers a second CLI
// invocation against the same file.
func (s *Store) withLock(path string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fileLock := flock.New(path + ".lock")
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("locking history %s: %w", path, err)
	}
	defer func() {
		_ = fileLock.Unlock()
	}()

	return fn()
}

// Load returns the saved history for a project and mode. A missing file is
// an empty history; a corrupted file is logged and treated as empty rather
// than breaking the conversation.
func (s *Store) Load(project, mode string) ([]Message, error) {
	path := s.path(project, mode)
	var messages []Message
	err := s.withLock(path, func() error {
		var err error
		messages, err = s.read(path)
		return err
	})
	return messages, err
}

// Save writes the history, evicting oldest messages beyond the cap.
func (s *Store) Save(project, mode string, messages []Message) error {
	path := s.path(project, mode)
	return s.withLock(path, func() error {
		return s.write(path, project, mode, messages)
	})
}

// AppendTurn loads the history, appends one user/assistant pair, and
// saves, all under one lock acquisition so concurrent appenders cannot
// erase each other's turns.
func (s *Store) AppendTurn(project, mode, question, answer string) error {
	path := s.path(project, mode)
	return s.withLock(path, func() error {
		messages, err := s.read(path)
		if err != nil {
			return err
		}
		now := time.Now()
		messages = append(messages,
			Message{Role: RoleUser, Content: question, Timestamp: now},
			Message{Role: RoleAssistant, Content: answer, Timestamp: now},
		)
		return s.write(path, project, mode, messages)
	})
}

// read loads one history file. Callers must hold the lock.
func (s *Store) read(path string) ([]Message, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is built from sanitized components
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading history %s: %w", path, err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("corrupted history file, starting fresh", "path", path, "error", err)
		return nil, nil
	}
	return rec.Messages, nil
}

// write persists one history file atomically: temp file in the same
// directory, then rename. Callers must hold the lock.
func (s *Store) write(path, project, mode string, messages []Message) error {
	if len(messages) > s.maxMessages {
		messages = messages[len(messages)-s.maxMessages:]
	}

	rec := record{
		Project:   project,
		Mode:      mode,
		UpdatedAt: time.Now(),
		Messages:  messages,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp history file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp history file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing history file: %w", err)
	}
	return nil
}

// Projects lists distinct project names across all saved histories, sorted.
func (s *Store) Projects() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading history directory: %w", err)
	}

	seen := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		// Project names can contain underscores, so the filename is not
		// authoritative; read the record's own project field.
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name())) // #nosec G304
		if err != nil {
			continue
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil || rec.Project == "" {
			continue
		}
		seen[rec.Project] = true
	}

	projects := make([]string, 0, len(seen))
	for p := range seen {
		projects = append(projects, p)
	}
	sort.Strings(projects)
	return projects, nil
}

// CleanupOlderThan deletes histories not updated within the retention
// window. Returns the number of files removed.
func (s *Store) CleanupOlderThan(retention time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("reading history directory: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())

		data, err := os.ReadFile(path) // #nosec G304
		if err != nil {
			continue
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if rec.UpdatedAt.Before(cutoff) {
			if err := os.Remove(path); err != nil {
				s.logger.Warn("failed to remove stale history", "path", path, "error", err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("pruned stale histories", "removed", removed)
	}
	return removed, nil
}

// path builds the history file path with sanitized components.
func (s *Store) path(project, mode string) string {
	return filepath.Join(s.dir, sanitize(Key(project, mode))+".json")
}

// sanitize keeps filenames safe: anything outside [a-zA-Z0-9._-] becomes "-".
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, name)
}
