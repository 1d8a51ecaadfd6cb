package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/kjk/travelstore/log"
	"github.com/kjk/travelstore/u"
)

// Snapshot copies data file dataPath to dstPath, compressed according
// to dstPath extension. Returns number of bytes read from dataPath.
// A missing data file is an error.
func Snapshot(dstPath string, dataPath string) (int64, error) {
	src, err := os.Open(dataPath)
	if err != nil {
		return 0, fmt.Errorf("archive.Snapshot: %w", err)
	}
	defer src.Close()

	f, err := newAtomicFile(dstPath)
	if err != nil {
		return 0, fmt.Errorf("archive.Snapshot: %w", err)
	}
	defer f.Cancel()

	w, err := u.NewCompressWriter(u.CompressionForPath(dstPath), f)
	if err != nil {
		return 0, fmt.Errorf("archive.Snapshot: %w", err)
	}
	n, err := io.Copy(w, src)
	if err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("archive.Snapshot: copying '%s': %w", dataPath, err)
	}
	if err = w.Close(); err != nil {
		return 0, fmt.Errorf("archive.Snapshot: %w", err)
	}
	if err = f.Close(); err != nil {
		return 0, fmt.Errorf("archive.Snapshot: %w", err)
	}
	log.Verbosef("archive.Snapshot: '%s' => '%s', %d bytes\n", dataPath, dstPath, n)
	return n, nil
}

// Restore decompresses snapshotPath into dstPath, replacing it atomically.
func Restore(dstPath string, snapshotPath string) error {
	r, err := u.OpenFileMaybeCompressed(snapshotPath)
	if err != nil {
		return fmt.Errorf("archive.Restore: %w", err)
	}
	defer r.Close()

	f, err := newAtomicFile(dstPath)
	if err != nil {
		return fmt.Errorf("archive.Restore: %w", err)
	}
	defer f.Cancel()

	n, err := io.Copy(f, r)
	if err != nil {
		return fmt.Errorf("archive.Restore: reading '%s': %w", snapshotPath, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("archive.Restore: %w", err)
	}
	log.Verbosef("archive.Restore: '%s' => '%s', %d bytes\n", snapshotPath, dstPath, n)
	return nil
}
