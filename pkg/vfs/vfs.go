// Package vfs is the flat file store behind the disk device: short 8.3
// style names, a byte quota, and optional mirroring to a host directory.
package vfs

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"
)

// DefaultCapacity is the size of a 1.44MB floppy.
const DefaultCapacity = 1474560

// MaxNameLength bounds a name including its extension.
const MaxNameLength = 16

var validName = regexp.MustCompile(`^\.?[a-zA-Z0-9_]{1,12}(\.[a-zA-Z0-9]{1,3})?$`)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
	ErrFull        = errors.New("disk full")
)

type file struct {
	data     []byte
	modified time.Time
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	capacity int
	used     int
	files    map[string]*file
	dirty    map[string]bool
}

// NewStore returns an empty store holding at most capacity bytes of file
// data. capacity <= 0 selects DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		files:    make(map[string]*file),
		dirty:    make(map[string]bool),
	}
}

// ValidName reports whether name can be stored.
func ValidName(name string) bool {
	return validName.MatchString(name)
}

// Write creates or replaces name with a copy of data.
func (s *Store) Write(name string, data []byte) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old := 0
	if f, ok := s.files[name]; ok {
		old = len(f.data)
	}
	if s.used-old+len(data) > s.capacity {
		return ErrFull
	}
	s.files[name] = &file{data: append([]byte(nil), data...), modified: time.Now()}
	s.used += len(data) - old
	s.dirty[name] = true
	return nil
}

// Read returns a copy of name's contents.
func (s *Store) Read(name string) ([]byte, error) {
	if !ValidName(name) {
		return nil, ErrInvalidName
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), f.data...), nil
}

func (s *Store) Size(name string) (int, error) {
	if !ValidName(name) {
		return 0, ErrInvalidName
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[name]
	if !ok {
		return 0, ErrNotFound
	}
	return len(f.data), nil
}

func (s *Store) Delete(name string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[name]
	if !ok {
		return ErrNotFound
	}
	s.used -= len(f.data)
	delete(s.files, name)
	s.dirty[name] = true
	return nil
}

// Free returns the unused capacity in bytes.
func (s *Store) Free() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capacity - s.used
}

// List returns the stored names in sorted order.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Modified returns the last write time of name.
func (s *Store) Modified(name string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[name]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return f.modified, nil
}

// Dirty reports whether anything changed since the last Persist.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dirty) > 0
}

// Load adds every validly named regular file in dir. A missing dir is not
// an error. Files that would overflow the capacity are skipped.
func (s *Store) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.IsDir() || !ValidName(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil || s.used+len(data) > s.capacity {
			continue
		}
		modified := time.Now()
		if info, err := e.Info(); err == nil {
			modified = info.ModTime()
		}
		if old, ok := s.files[e.Name()]; ok {
			s.used -= len(old.data)
		}
		s.files[e.Name()] = &file{data: data, modified: modified}
		s.used += len(data)
	}
	return nil
}

// Persist mirrors every changed file, including deletions, into dir. The
// directory is created if needed. Files that fail to write stay dirty and
// the first error is returned.
func (s *Store) Persist(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	s.mu.Lock()
	writes := make(map[string]*file)
	var deletes []string
	for name := range s.dirty {
		if f, ok := s.files[name]; ok {
			writes[name] = &file{data: append([]byte(nil), f.data...), modified: f.modified}
		} else {
			deletes = append(deletes, name)
		}
	}
	s.dirty = make(map[string]bool)
	s.mu.Unlock()

	var firstErr error
	keep := func(name string, err error) {
		s.mu.Lock()
		s.dirty[name] = true
		s.mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}
	for _, name := range deletes {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			keep(name, err)
		}
	}
	for name, f := range writes {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, f.data, 0644); err != nil {
			keep(name, err)
			continue
		}
		_ = os.Chtimes(path, time.Now(), f.modified)
	}
	return firstErr
}
