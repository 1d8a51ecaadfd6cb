package record

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kjk/travelstore/siser"
)

// FrameName identifies frames holding a Package in version 1 of the format
const FrameName = "tp1"

// ErrCorrupt is returned (wrapped) when bytes can't be decoded as a record
var ErrCorrupt = errors.New("corrupt record")

// ErrInvalid is returned (wrapped) by Encode for a record that
// wouldn't decode back to the same value
var ErrInvalid = errors.New("invalid record")

const (
	keyID    = "id"
	keyDest  = "dest"
	keyHotel = "hotel"
	keyStart = "start"
	keyDays  = "days"
	keyPrice = "price"
)

// Encode serializes p as a self-delimiting frame. The result is exactly
// what gets appended to a data file.
// StartDate year must be in 0 to 9999 range.
func Encode(p *Package) ([]byte, error) {
	if y := p.StartDate.Year(); y < 0 || y > 9999 {
		return nil, fmt.Errorf("%w: '%s' start date year %d not in 0-9999 range", ErrInvalid, p.PackageID, y)
	}
	var b siser.Body
	b.Add(keyID, p.PackageID)
	b.Add(keyDest, p.Destination)
	b.Add(keyHotel, p.HotelName)
	b.Add(keyStart, p.StartDate.Format(DateFormat))
	b.Add(keyDays, strconv.Itoa(p.Duration))
	// shortest representation that parses back to the same float64
	b.Add(keyPrice, strconv.FormatFloat(p.Price, 'g', -1, 64))
	return siser.MarshalFrame(FrameName, time.Time{}, b.Bytes(), nil), nil
}

// Decode decodes a single frame created by Encode
func Decode(d []byte) (*Package, error) {
	dec := NewDecoder(bytes.NewReader(d))
	p, err := dec.Next()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: no data", ErrCorrupt)
	}
	if err != nil {
		return nil, err
	}
	if dec.r.NextRecordPos != int64(len(d)) {
		return nil, fmt.Errorf("%w: %d bytes of trailing data", ErrCorrupt, int64(len(d))-dec.r.NextRecordPos)
	}
	return p, nil
}

// DecodeAt seeks r to off and decodes exactly one record.
// A failed seek or read, including off at or past the end of r,
// is returned as an I/O error, not ErrCorrupt.
func DecodeAt(r io.ReadSeeker, off int64) (*Package, error) {
	if off < 0 {
		return nil, fmt.Errorf("invalid offset %d", off)
	}
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to offset %d: %w", off, err)
	}
	dec := newDecoderAt(r, off)
	p, err := dec.Next()
	if err == io.EOF {
		return nil, fmt.Errorf("no record at offset %d: %w", off, io.ErrUnexpectedEOF)
	}
	return p, err
}

// Decoder decodes records sequentially from a stream
type Decoder struct {
	r      *siser.Reader
	fields []siser.Field
}

// NewDecoder creates a decoder reading from the current position of r
func NewDecoder(r io.Reader) *Decoder {
	return newDecoderAt(r, 0)
}

func newDecoderAt(r io.Reader, off int64) *Decoder {
	sr := siser.NewReaderAt(bufio.NewReader(r), off)
	sr.NoTimestamp = true
	return &Decoder{
		r: sr,
	}
}

// Next decodes the next record. Returns io.EOF when the stream ends
// exactly at a record boundary and an error wrapping ErrCorrupt
// if it ends mid-record or a record can't be parsed.
func (d *Decoder) Next() (*Package, error) {
	if !d.r.ReadNextFrame() {
		err := d.r.Err()
		if err == nil {
			return nil, io.EOF
		}
		if errors.Is(err, siser.ErrTruncated) || errors.Is(err, siser.ErrMalformed) {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		return nil, err
	}
	off := d.r.CurrRecordPos
	if d.r.Name != FrameName {
		return nil, fmt.Errorf("%w: unsupported frame '%s' at offset %d", ErrCorrupt, d.r.Name, off)
	}
	var err error
	d.fields, err = siser.ParseBody(d.r.Data, d.fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w at offset %d", ErrCorrupt, err, off)
	}
	p, err := fromFields(d.fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %s at offset %d", ErrCorrupt, err, off)
	}
	return p, nil
}

// Offset returns position of the last record returned by Next
func (d *Decoder) Offset() int64 {
	return d.r.CurrRecordPos
}

func fromFields(fields []siser.Field) (*Package, error) {
	get := func(key string) (string, error) {
		v, ok := siser.Get(fields, key)
		if !ok {
			return "", fmt.Errorf("missing field '%s'", key)
		}
		return v, nil
	}
	var p Package
	var err error
	if p.PackageID, err = get(keyID); err != nil {
		return nil, err
	}
	if p.Destination, err = get(keyDest); err != nil {
		return nil, err
	}
	if p.HotelName, err = get(keyHotel); err != nil {
		return nil, err
	}
	s, err := get(keyStart)
	if err != nil {
		return nil, err
	}
	if p.StartDate, err = ParseDate(s); err != nil {
		return nil, fmt.Errorf("invalid field '%s': '%s'", keyStart, s)
	}
	if s, err = get(keyDays); err != nil {
		return nil, err
	}
	if p.Duration, err = strconv.Atoi(s); err != nil {
		return nil, fmt.Errorf("invalid field '%s': '%s'", keyDays, s)
	}
	if s, err = get(keyPrice); err != nil {
		return nil, err
	}
	if p.Price, err = strconv.ParseFloat(s, 64); err != nil {
		return nil, fmt.Errorf("invalid field '%s': '%s'", keyPrice, s)
	}
	return &p, nil
}
