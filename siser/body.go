package siser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Field is a single key/value pair of a Body
type Field struct {
	Key   string
	Value string
}

// Body accumulates key/value pairs serialized in siser body format.
// The zero value is ready to use.
type Body struct {
	buf bytes.Buffer
}

// Add appends key/value pair. Key can't contain ':' or '\n'.
func (b *Body) Add(key, val string) {
	panicIf(strings.ContainsAny(key, ":\n"), "siser: invalid key '%s'", key)
	b.buf.WriteString(key)
	if needsLongFormat(val) {
		b.buf.WriteString(":+")
		b.buf.WriteString(strconv.Itoa(len(val)))
		b.buf.WriteByte('\n')
		b.buf.WriteString(val)
		// header of the next field always starts on a new line
		if !emptyOrEndsWithNewline(val) {
			b.buf.WriteByte('\n')
		}
		return
	}
	b.buf.WriteString(": ")
	b.buf.WriteString(val)
	b.buf.WriteByte('\n')
}

// Bytes returns serialized body, valid until next Add or Reset
func (b *Body) Bytes() []byte {
	return b.buf.Bytes()
}

// Reset clears the body so it can be re-used
func (b *Body) Reset() {
	b.buf.Reset()
}

func emptyOrEndsWithNewline(s string) bool {
	n := len(s)
	return n == 0 || s[n-1] == '\n'
}

func serializableOnLine(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 32 || c > 126 {
			return false
		}
	}
	return true
}

// values that need size-prefixed format
func needsLongFormat(s string) bool {
	return len(s) == 0 || len(s) > 120 || !serializableOnLine(s)
}

// ParseBody decodes data created by Body.
// perf: fields is truncated and re-used to avoid allocations
func ParseBody(d []byte, fields []Field) ([]Field, error) {
	fields = fields[:0]
	for len(d) > 0 {
		idx := bytes.IndexByte(d, '\n')
		if idx == -1 {
			return nil, fmt.Errorf("%w: missing '\\n' after '%s'", ErrMalformed, d)
		}
		line := d[:idx]
		d = d[idx+1:]
		idx = bytes.IndexByte(line, ':')
		// at least ':' followed by ' ' or '+'
		if idx == -1 || idx+1 >= len(line) {
			return nil, fmt.Errorf("%w: line in unrecognized format '%s'", ErrMalformed, line)
		}
		key := string(line[:idx])
		kind := line[idx+1]
		val := line[idx+2:]
		switch kind {
		case ' ':
			fields = append(fields, Field{Key: key, Value: string(val)})
			continue
		case '+':
			// size-prefixed value, handled below
		default:
			return nil, fmt.Errorf("%w: line in unrecognized format '%s'", ErrMalformed, line)
		}

		n, err := strconv.Atoi(string(val))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: invalid value length in '%s'", ErrMalformed, line)
		}
		if n > len(d) {
			return nil, fmt.Errorf("%w: value length %d greater than remaining data of size %d", ErrMalformed, n, len(d))
		}
		fields = append(fields, Field{Key: key, Value: string(d[:n])})
		d = d[n:]
		// encoder might put optional newline
		if len(d) > 0 && d[0] == '\n' {
			d = d[1:]
		}
	}
	return fields, nil
}

// Get returns value of the first field with a given key
func Get(fields []Field, key string) (string, bool) {
	for _, f := range fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}
