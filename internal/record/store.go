package record

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

// Store persists the record document to a YAML file.
//
// Writes are atomic (write-to-temp plus rename) so a crash mid-write
// never leaves a half-written file. Mutations take an exclusive flock
// on a sidecar lock file for the duration of the load-mutate-save
// cycle, serializing concurrent CLI invocations against the same file.
type Store struct {
	path string
}

// NewStore creates a store backed by the file at path. The file does
// not need to exist yet; a missing file reads as an empty document.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the store file.
//
// Returns an empty document if the file does not exist (first run).
// Returns ErrStoreCorrupt if the file exists but cannot be parsed or
// fails validation.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDocument(), nil
		}
		return nil, fmt.Errorf("failed to read store file %s: %w", s.path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreCorrupt, s.path, err)
	}
	if doc.Records == nil {
		doc.Records = make(map[string]*Record)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreCorrupt, s.path, err)
	}

	return &doc, nil
}

// Save atomically persists the full document.
//
// The document is written to a temp file in the same directory and
// renamed into place. Returns ErrStoreWrite on any I/O failure, in
// which case the prior persisted version is untouched.
func (s *Store) Save(doc *Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid document: %w", err)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal store document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(tmpName)
		if werr == nil {
			werr = cerr
		}
		return fmt.Errorf("%w: %v", ErrStoreWrite, werr)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	return nil
}

// Mutate runs fn against the loaded document under an exclusive lock
// and saves the result if fn returns nil. No two concurrent
// invocations interleave their load-mutate-save cycles.
func (s *Store) Mutate(fn func(doc *Document) error) error {
	lock := flock.New(s.path + ".lock")
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock store file %s: %w", s.path, err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	doc, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.Save(doc)
}

// Create inserts a new record under the lock.
//
// Returns ErrDuplicateRecord if a record with the same name already
// exists.
func (s *Store) Create(r *Record) error {
	return s.Mutate(func(doc *Document) error {
		if _, ok := doc.Records[r.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateRecord, r.Name)
		}
		doc.Records[r.Name] = r
		return nil
	})
}

// Update applies a mutation to an existing record under the lock.
//
// Returns ErrRecordNotFound if no record with the given name exists.
func (s *Store) Update(name string, fn func(r *Record) error) error {
	return s.Mutate(func(doc *Document) error {
		r, ok := doc.Records[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, name)
		}
		return fn(r)
	})
}

// Delete removes a record under the lock.
//
// Returns ErrRecordNotFound if no record with the given name exists.
func (s *Store) Delete(name string) error {
	return s.Mutate(func(doc *Document) error {
		if _, ok := doc.Records[name]; !ok {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, name)
		}
		delete(doc.Records, name)
		return nil
	})
}
