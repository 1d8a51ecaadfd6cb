// Package store implements a single-file record store with an
// in-memory sorted index.
//
// Records (travel packages, see package record) are appended to a flat
// data file as self-delimiting frames. For every append the store
// remembers (key, offset) in an index kept sorted by key, which allows
// finding a record with a binary search followed by a single seek and
// read. SearchSequential ignores the index and decodes the file from the
// start.
//
// # Basic Usage
//
//	s, err := store.Open("travel_packages.dat")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_, err = s.Append(&record.Package{PackageID: "TUR12345", ...})
//	p, err := s.SearchByIndex("TUR12345")
//	if errors.Is(err, store.ErrNotFound) {
//	    // ...
//	}
//
// # Index
//
// The index lives only in memory. It is never persisted and Open doesn't
// scan an existing file: it only knows about records appended through
// this Store. Records written by earlier runs are still found by
// SearchSequential and Scan.
//
// Duplicate keys are kept. A new entry is inserted before existing
// entries with the same key, and SearchByIndex returns the leftmost
// match, i.e. the most recently appended record with that key.
// SearchSequential returns the first one in file order.
//
// # Thread Safety
//
// The Store is safe for concurrent use. Every operation opens and closes
// its own file handle while holding a mutex. On unix Append also takes
// an exclusive flock on the data file, so several processes can append
// to the same file and each gets back the correct offset.
package store
