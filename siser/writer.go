package siser

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

var hdrPrefix = []byte("--- ")

// Writer writes frames to an io.Writer
type Writer struct {
	w io.Writer
	// NoTimestamp disables writing timestamp, which
	// makes serialized data not depend on when they were written
	NoTimestamp bool

	writeBuf bytes.Buffer
	mu       sync.Mutex
}

// NewWriter creates a writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w: w,
	}
}

// Write writes d as a single frame with optional timestamp and name.
// If t is zero, current time is used (unless NoTimestamp).
// Returns number of bytes written (length of d + length of framing).
func (w *Writer) Write(d []byte, t time.Time, name string) (int, error) {
	if strings.ContainsAny(name, "\n") {
		return 0, fmt.Errorf("siser: name '%s' contains newline", name)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	// most writes should be small. if buffer gets big, don't keep it
	// around (unbounded cache is a mem leak)
	if w.writeBuf.Cap() > 100*1024 && len(d) < 50*1024 {
		w.writeBuf = bytes.Buffer{}
	}

	if w.NoTimestamp {
		t = time.Time{}
	} else if t.IsZero() {
		t = time.Now()
	}

	frame := MarshalFrame(name, t, d, &w.writeBuf)
	return w.w.Write(frame)
}

// MarshalFrame serializes d as a frame. Zero t is not written.
// wb is optional and allows re-using the buffer; returned bytes
// are valid until wb is modified.
func MarshalFrame(name string, t time.Time, d []byte, wb *bytes.Buffer) []byte {
	if wb == nil {
		wb = &bytes.Buffer{}
	} else {
		wb.Reset()
	}
	// it's ok to estimate more, estimating less will require an alloc
	wb.Grow(len(hdrPrefix) + len(name) + len(d) + 48)

	wb.Write(hdrPrefix)
	dataLen := len(d)
	wb.WriteString(strconv.Itoa(dataLen))
	if !t.IsZero() {
		wb.WriteByte(' ')
		wb.WriteString(strconv.FormatInt(TimeToUnixMillisecond(t), 10))
	}
	if name != "" {
		wb.WriteByte(' ')
		wb.WriteString(name)
	}
	wb.WriteByte('\n')
	if dataLen > 0 {
		wb.Write(d)
		if d[dataLen-1] != '\n' {
			wb.WriteByte('\n')
		}
	}
	return wb.Bytes()
}

// FrameSize returns the size of a frame MarshalFrame would create
// for data d written without a timestamp
func FrameSize(name string, d []byte) int {
	n := len(hdrPrefix) + len(strconv.Itoa(len(d))) + 1 + len(d)
	if name != "" {
		n += 1 + len(name)
	}
	if len(d) > 0 && d[len(d)-1] != '\n' {
		n++
	}
	return n
}
