package siser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

var (
	// ErrTruncated is returned when input ends in the middle of a frame
	ErrTruncated = errors.New("siser: truncated frame")
	// ErrMalformed is returned when data is not in siser format
	ErrMalformed = errors.New("siser: malformed data")
)

// MaxFrameSize limits the size of a frame payload we're willing to read.
// A larger size in a header is treated as corruption.
const MaxFrameSize = 64 * 1024 * 1024

// Reader reads frames from a bufio.Reader
type Reader struct {
	r *bufio.Reader

	// hints that the data was written without a timestamp
	// (see Writer.NoTimestamp)
	NoTimestamp bool

	// Data / Name / Timestamp are available after ReadNextFrame.
	// They are over-written in next ReadNextFrame.
	Data      []byte
	Name      string
	Timestamp time.Time

	// position of the current frame within the reader.
	// We keep track of it so that callers can index frames
	// by offset and seek to it
	CurrRecordPos int64

	// position of the next frame within the reader
	NextRecordPos int64

	err error

	// true if reached end of input at frame boundary
	done bool
}

// NewReader creates a new reader
func NewReader(r *bufio.Reader) *Reader {
	return &Reader{
		r: r,
	}
}

// NewReaderAt creates a reader for input that starts at position pos
// within a larger stream. Reported positions are relative to that stream.
func NewReaderAt(r *bufio.Reader, pos int64) *Reader {
	return &Reader{
		r:             r,
		CurrRecordPos: pos,
		NextRecordPos: pos,
	}
}

// Done returns true if we're finished reading from the reader
func (r *Reader) Done() bool {
	return r.err != nil || r.done
}

// Err returns error from last read. Clean end of input is not an error.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) setErr(sentinel error, format string, args ...any) bool {
	msg := fmt.Sprintf(format, args...)
	r.err = fmt.Errorf("%w: %s at offset %d", sentinel, msg, r.CurrRecordPos)
	return false
}

// ReadNextFrame reads next frame from the reader, returns false
// when there are no more frames. If returns false, check Err() to see
// if there were errors.
func (r *Reader) ReadNextFrame() bool {
	if r.Done() {
		return false
	}
	r.Name = ""
	r.Timestamp = time.Time{}
	r.CurrRecordPos = r.NextRecordPos

	hdr, err := r.r.ReadBytes('\n')
	if err != nil {
		if err != io.EOF {
			r.err = err
			return false
		}
		if len(hdr) > 0 {
			return r.setErr(ErrTruncated, "incomplete header '%s'", hdr)
		}
		r.done = true
		return false
	}
	recSize := int64(len(hdr))

	size, ok := r.parseHeader(hdr)
	if !ok {
		return r.setErr(ErrMalformed, "unexpected header '%s'", bytes.TrimSuffix(hdr, []byte{'\n'}))
	}

	// we try to re-use r.Data as long as it doesn't grow too much
	if cap(r.Data) > 1024*1024 {
		r.Data = nil
	}
	if size > int64(cap(r.Data)) {
		r.Data = make([]byte, size)
	} else {
		r.Data = r.Data[:size]
	}
	n, err := io.ReadFull(r.r, r.Data)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return r.setErr(ErrTruncated, "read %d of %d bytes", n, size)
		}
		r.err = err
		return false
	}
	recSize += int64(n)

	// same as padding logic in MarshalFrame
	if n > 0 && r.Data[n-1] != '\n' {
		c, err := r.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return r.setErr(ErrTruncated, "missing '\\n' after data")
			}
			r.err = err
			return false
		}
		if c != '\n' {
			return r.setErr(ErrMalformed, "expected '\\n' after data, got 0x%02x", c)
		}
		recSize++
	}
	r.NextRecordPos += recSize
	return true
}

// header format:
// "--- ${size} ${timestamp_in_unix_epoch_ms} ${name}\n"
// or (if NoTimestamp):
// "--- ${size} ${name}\n"
// ${name} is optional
func (r *Reader) parseHeader(hdr []byte) (int64, bool) {
	if !bytes.HasPrefix(hdr, hdrPrefix) {
		return 0, false
	}
	rest := hdr[len(hdrPrefix) : len(hdr)-1]
	dataSize, rest, _ := bytes.Cut(rest, []byte{' '})
	size, err := strconv.ParseInt(string(dataSize), 10, 64)
	if err != nil || size < 0 || size > MaxFrameSize {
		return 0, false
	}
	if r.NoTimestamp {
		r.Name = string(rest)
		return size, true
	}
	timestamp, name, _ := bytes.Cut(rest, []byte{' '})
	if len(timestamp) == 0 {
		return 0, false
	}
	timeMs, err := strconv.ParseInt(string(timestamp), 10, 64)
	if err != nil {
		return 0, false
	}
	r.Timestamp = TimeFromUnixMillisecond(timeMs)
	r.Name = string(name)
	return size, true
}
