// Package cachefile provides the persistent fragment cache: a single
// JSON-backed key-value store mapping comment ids to HTML fragments,
// guarded by an exclusive advisory lock on its directory.
//
// The store is read in full on Open, mutated in memory, and written back
// in full on Close via a temp file and an atomic rename, so another
// process never observes a half-written cache file. A schema version tag
// (`__version__`) guards the file format: a file carrying a different or
// missing tag is silently replaced with an empty store, whereas a file
// that is not valid JSON at all is a hard error.
package cachefile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// SchemaVersion is the store format written by this build. Files tagged
// with any other version are discarded on load, not migrated.
const SchemaVersion = 0

const (
	versionKey = "__version__"
	fileName   = "cache.json"
	dirName    = "lwncomments"
)

// ErrAlreadyLocked is returned when Open is called on a store that is
// already holding the cache directory lock.
var ErrAlreadyLocked = errors.New("cache is already open")

type Options struct {
	// Dir overrides the cache directory. If empty, DefaultDir is used.
	Dir string
	// Notice receives the one-line lock-contention notice. Defaults to
	// os.Stderr.
	Notice io.Writer
}

// Store is the in-memory view of the cache file, valid between Open and
// Close. At most one process may hold an open Store per directory.
type Store struct {
	dir     string
	notice  io.Writer
	lock    dirLock
	entries map[string]string
}

func New(opts Options) *Store {
	notice := opts.Notice
	if notice == nil {
		notice = os.Stderr
	}
	return &Store{
		dir:    opts.Dir,
		notice: notice,
	}
}

// DefaultDir resolves the per-user cache directory: $XDG_CACHE_HOME if
// set, otherwise ~/.cache, plus the tool's own subdirectory.
func DefaultDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, dirName), nil
}

// Open creates the cache directory if needed (owner-only permissions on
// every component created), acquires the exclusive directory lock
// (blocking, with a notice to the diagnostic stream if another process
// holds it) and loads the store from disk.
func (s *Store) Open() error {
	if s.lock.handle != nil {
		return ErrAlreadyLocked
	}

	if s.dir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return err
		}
		s.dir = dir
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	s.lock.dir = s.dir
	if err := s.lock.acquire(s.notice); err != nil {
		return err
	}

	if err := s.load(); err != nil {
		s.lock.release()
		return err
	}
	return nil
}

func (s *Store) path() string {
	return filepath.Join(s.dir, fileName)
}

func (s *Store) load() error {
	s.entries = make(map[string]string)

	raw, err := os.ReadFile(s.path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("corrupt cache file %s: %w", s.path(), err)
	}

	// A wrong or missing version tag is not corruption: the whole store
	// is discarded and rebuilt at the current version on the next Close.
	var version int
	tag, ok := doc[versionKey]
	if !ok || json.Unmarshal(tag, &version) != nil || version != SchemaVersion {
		return nil
	}

	for key, value := range doc {
		if key == versionKey {
			continue
		}
		var fragment string
		if err := json.Unmarshal(value, &fragment); err != nil {
			return fmt.Errorf("corrupt cache file %s: key %q: %w", s.path(), key, err)
		}
		s.entries[key] = fragment
	}
	return nil
}

// Get returns the cached fragment for a comment id. The second return
// value reports whether the id was present; absence is not an error.
func (s *Store) Get(id string) (string, bool) {
	fragment, ok := s.entries[id]
	return fragment, ok
}

// Put stores or replaces the fragment for a comment id in memory. The
// change reaches disk on Close.
func (s *Store) Put(id, fragment string) {
	s.entries[id] = fragment
}

// Len reports the number of cached fragments.
func (s *Store) Len() int {
	return len(s.entries)
}

// Close writes the whole store back to disk atomically and releases the
// directory lock. The lock is released even when persisting fails.
// Closing a store that is not open is a no-op.
func (s *Store) Close() error {
	if s.lock.handle == nil {
		return nil
	}
	defer s.lock.release()
	return s.persist()
}

func (s *Store) persist() error {
	doc := make(map[string]any, len(s.entries)+1)
	doc[versionKey] = SchemaVersion
	for key, fragment := range s.entries {
		doc[key] = fragment
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, fileName+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), s.path())
}
