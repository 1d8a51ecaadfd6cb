package archive

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

var (
	// ErrCancelled is returned by calls subsequent to Cancel()
	ErrCancelled = errors.New("cancelled")

	_ io.WriteCloser = &atomicFile{}
)

// atomicFile writes to a temp file in destination directory and
// renames it over destination in Close
type atomicFile struct {
	dstPath string
	dir     string
	tmpFile *os.File
	tmpPath string
	err     error
}

func newAtomicFile(path string) (*atomicFile, error) {
	dir, fName := filepath.Split(path)
	if fName == "" {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}
	tmpFile, err := os.CreateTemp(dir, fName+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &atomicFile{
		dstPath: path,
		dir:     dir,
		tmpFile: tmpFile,
		tmpPath: tmpFile.Name(),
	}, nil
}

func (f *atomicFile) handleError(err error) error {
	if err == nil {
		return nil
	}
	// remember the first error
	if f.err == nil {
		f.err = err
	}
	_ = f.Close()
	return err
}

func (f *atomicFile) Write(d []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := f.tmpFile.Write(d)
	return n, f.handleError(err)
}

func (f *atomicFile) alreadyClosed() bool {
	return f.tmpFile == nil
}

// Cancel removes the temp file if not yet closed. Destination is not touched.
// Use with defer. A no-op after Close.
func (f *atomicFile) Cancel() {
	if f == nil || f.alreadyClosed() {
		return
	}
	f.err = ErrCancelled
	_ = f.Close()
}

// Close syncs and renames temp file to destination. Can be called
// multiple times, returns the first error
func (f *atomicFile) Close() error {
	if f.alreadyClosed() {
		return f.err
	}
	tmpFile := f.tmpFile
	f.tmpFile = nil

	// https://www.joeshaw.org/dont-defer-close-on-writable-files/
	errSync := tmpFile.Sync()
	errClose := tmpFile.Close()

	didRename := false
	defer func() {
		if !didRename {
			_ = os.Remove(f.tmpPath)
		}
	}()

	if f.err != nil {
		return f.err
	}
	err := errSync
	if err == nil {
		err = errClose
	}
	if err == nil {
		err = os.Rename(f.tmpPath, f.dstPath)
		didRename = (err == nil)
		// sync directory so the rename survives a crash
		fdir, _ := os.Open(f.dir)
		if fdir != nil {
			_ = fdir.Sync()
			_ = fdir.Close()
		}
	}
	f.err = err
	return err
}
