package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kjk/travelstore/log"
	"github.com/kjk/travelstore/record"
	"github.com/kjk/travelstore/u"
)

// ErrNotFound is returned by searches when there's no record with a given key
var ErrNotFound = errors.New("record not found")

type Store struct {
	// path of the data file, required
	DataPath string

	// if true, will call file.Sync() after every append
	// this makes appends much slower
	SyncWrite bool

	// Index selects index implementation, IndexSorted by default
	Index IndexKind

	dataFilePath string
	index        index
	mu           sync.Mutex
}

// Open creates a store with a default configuration for a data file at path
func Open(path string) (*Store, error) {
	s := &Store{
		DataPath: path,
	}
	if err := OpenStore(s); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenStore initializes s configured by setting exported fields.
// The data file doesn't have to exist, it's created by the first Append.
// Index starts empty even if data file has records.
func OpenStore(s *Store) error {
	if s.DataPath == "" {
		return fmt.Errorf("data file path is not set")
	}
	path, err := filepath.Abs(s.DataPath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for data file: %w", err)
	}
	if u.DirExists(path) {
		return fmt.Errorf("data file path '%s' is a directory", path)
	}
	if kind := s.Index.String(); kind == "unknown" {
		return fmt.Errorf("invalid index kind %d", int(s.Index))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataFilePath = path
	s.index = newIndex(s.Index)
	return nil
}

// Path returns absolute path of the data file
func (s *Store) Path() string {
	return s.dataFilePath
}

// returns offset at which d was written
func appendToFile(path string, d []byte, sync bool) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return 0, err
	}
	// another process appending between Seek and Write would make
	// the offset wrong
	if err = lockFile(f); err != nil {
		f.Close()
		return 0, err
	}
	// closing f releases the lock
	// with O_APPEND writes go to the end, this tells us where that is
	off, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return 0, err
	}
	if _, err = f.Write(d); err != nil {
		f.Close()
		return 0, err
	}
	if sync {
		if err = f.Sync(); err != nil {
			f.Close()
			return 0, err
		}
	}
	if err = f.Close(); err != nil {
		return 0, err
	}
	return off, nil
}

// Append writes p to the end of data file and adds it to the index.
// Index is only updated if the write succeeded. A record that can't
// be encoded (see record.ErrInvalid) is rejected before touching the file.
func (s *Store) Append(p *record.Package) (IndexEntry, error) {
	d, err := record.Encode(p)
	if err != nil {
		return IndexEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	off, err := appendToFile(s.dataFilePath, d, s.SyncWrite)
	if err != nil {
		return IndexEntry{}, fmt.Errorf("append '%s' to '%s': %w", p.PackageID, s.dataFilePath, err)
	}
	e := IndexEntry{Key: p.PackageID, Offset: off}
	s.index.insert(e)
	log.Verbosef("store.Append: '%s' at offset %d, %d bytes\n", e.Key, off, len(d))
	return e, nil
}

// SearchByIndex finds a record using the index: binary search for the key
// and a single read at the recorded offset. Returns ErrNotFound if
// the key isn't in the index.
func (s *Store) SearchByIndex(key string) (*record.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index.find(key)
	if !ok {
		return nil, ErrNotFound
	}
	f, err := os.Open(s.dataFilePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := record.DecodeAt(f, e.Offset)
	if err != nil {
		return nil, fmt.Errorf("read '%s' at offset %d: %w", key, e.Offset, err)
	}
	return p, nil
}

// SearchSequential decodes records from the start of data file and returns
// the first one with the key. Returns ErrNotFound if there is none.
func (s *Store) SearchSequential(key string) (*record.Package, error) {
	var res *record.Package
	err := s.Scan(func(off int64, p *record.Package) error {
		if p.PackageID == key {
			res = p
			return errStopScan
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrNotFound
	}
	return res, nil
}

var errStopScan = errors.New("stop scan")

// Scan calls fn for every record in data file, in file order.
// It stops at first error returned by fn and returns it.
// A missing data file has no records.
// fn is called with the store locked so it must not call methods of s.
func (s *Store) Scan(fn func(off int64, p *record.Package) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.dataFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	dec := record.NewDecoder(f)
	for {
		p, err := dec.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("scan '%s': %w", s.dataFilePath, err)
		}
		if err = fn(dec.Offset(), p); err != nil {
			if err == errStopScan {
				return nil
			}
			return err
		}
	}
}

// Len returns number of entries in the index, which is the number
// of successful appends
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.len()
}

// Lookup returns index entry that SearchByIndex would read for key
func (s *Store) Lookup(key string) (IndexEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.find(key)
}

// Entries returns a copy of the index, sorted by key
func (s *Store) Entries() []IndexEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.entries()
}

// Size returns size of data file, 0 if it doesn't exist yet
func (s *Store) Size() (int64, error) {
	st, err := os.Stat(s.dataFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return st.Size(), nil
}
