package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store is a directory of named JSON buckets, the CLI's analogue of the
// browser's local storage. Each bucket persists one value under its own file.
type Store struct {
	dir string

	mu      sync.Mutex
	buckets map[string]*Bucket
}

// Open creates the state directory (if needed) and returns a Store over it.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("state directory is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &Store{dir: dir, buckets: map[string]*Bucket{}}, nil
}

// Dir returns the state directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Bucket returns the named bucket, creating the handle on first use.
// The same name always yields the same *Bucket so callers share its lock.
func (s *Store) Bucket(name string) *Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[name]; ok {
		return b
	}
	b := &Bucket{path: filepath.Join(s.dir, name+".json")}
	s.buckets[name] = b
	return b
}

// Bucket persists a single JSON value.
type Bucket struct {
	mu   sync.Mutex
	path string
}

// Load reads the bucket into v. It returns false with no error when the
// bucket has never been written.
func (b *Bucket) Load(v interface{}) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", b.path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parsing %s: %w", b.path, err)
	}
	return true, nil
}

// Save writes v to the bucket. The write goes through a temp file and a
// rename so a crash never leaves a half-written bucket behind.
func (b *Bucket) Save(v interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", b.path, err)
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("replacing %s: %w", b.path, err)
	}
	return nil
}

// Delete removes the bucket file. Deleting a missing bucket is not an error.
func (b *Bucket) Delete() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", b.path, err)
	}
	return nil
}
