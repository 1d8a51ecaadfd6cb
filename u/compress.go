package u

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Compression is a compression format, identified by file extension
type Compression string

const (
	CompressionNone   Compression = ""
	CompressionGzip   Compression = ".gz"
	CompressionZstd   Compression = ".zst"
	CompressionBrotli Compression = ".br"
)

// CompressionForPath picks compression based on extension of path
func CompressionForPath(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	case ".br":
		return CompressionBrotli
	}
	return CompressionNone
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

// NewCompressWriter returns a writer that compresses to w.
// Close must be called to flush compressed data; it doesn't close w.
func NewCompressWriter(c Compression, w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionGzip:
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	case CompressionZstd:
		// in my tests SpeedBestCompression is much slower and not much better
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case CompressionBrotli:
		return brotli.NewWriterLevel(w, brotli.BestCompression), nil
	}
	return nil, fmt.Errorf("unknown compression '%s'", string(c))
}

// NewDecompressReader returns a reader that decompresses data from r.
// Close releases decompressor resources; it doesn't close r.
func NewDecompressReader(c Compression, r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionGzip:
		return gzip.NewReader(r)
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case CompressionBrotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	}
	return nil, fmt.Errorf("unknown compression '%s'", string(c))
}

// implement io.ReadCloser over os.File wrapped with io.Reader.
// io.Closer goes to both, io.Reader goes to wrapping reader
type readerWrappedFile struct {
	f *os.File
	r io.ReadCloser
}

func (rc *readerWrappedFile) Close() error {
	err := rc.r.Close()
	err2 := rc.f.Close()
	if err != nil {
		return err
	}
	return err2
}

func (rc *readerWrappedFile) Read(p []byte) (int, error) {
	return rc.r.Read(p)
}

// OpenFileMaybeCompressed opens a file that might be compressed with gzip,
// zstd or brotli, based on file extension
func OpenFileMaybeCompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewDecompressReader(CompressionForPath(path), f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &readerWrappedFile{
		f: f,
		r: r,
	}, nil
}

// ReadFileMaybeCompressed reads a file, decompressing if needed
func ReadFileMaybeCompressed(path string) ([]byte, error) {
	r, err := OpenFileMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
