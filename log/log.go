// Package log writes log messages to stdout and to daily log files.
//
// Messages go to <Dir>/log/YYYY-MM-DD.txt, errors (with callstack) also
// to <Dir>/errors/ and structured events to <Dir>/events/ as siser frames
// with toon-encoded payload. Before Init (or after Close) only stdout
// is written.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kjk/travelstore/siser"

	"github.com/toon-format/toon-go"
)

var (
	log       *WriteDaily
	errorsLog *WriteDaily
	eventsLog *WriteDaily
	// frames events written to eventsLog
	events *siser.Writer

	// if true, Verbosef() will log messages
	Verbose bool

	// where Logf() prints in addition to log file
	Out io.Writer = os.Stdout
)

// WriteDaily writes to a file named after current UTC day
// so that we get a new file every day
type WriteDaily struct {
	Dir         string
	currentDate int // YYYYMMDD format
	file        *os.File
	mu          sync.Mutex
}

func NewWriteDaily(dir string) *WriteDaily {
	return &WriteDaily{
		Dir: dir,
	}
}

// dayFromTime converts a time.Time to YYYYMMDD integer format
func dayFromTime(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// Write writes data to today's log file, creating it if needed.
// It's safe to call on nil receiver.
func (w *WriteDaily) Write(d []byte) (int, error) {
	if w == nil {
		return len(d), nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now().UTC()
	today := dayFromTime(now)
	if w.file != nil && w.currentDate != today {
		if err := w.close(); err != nil {
			return 0, err
		}
	}
	if w.file == nil {
		if err := os.MkdirAll(w.Dir, 0755); err != nil {
			return 0, err
		}
		path := filepath.Join(w.Dir, now.Format("2006-01-02")+".txt")
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return 0, err
		}
		w.file = f
		w.currentDate = today
	}
	return w.file.Write(d)
}

// WriteString writes a string to the daily log file
// it's safe to call on nil receiver
func (w *WriteDaily) WriteString(s string) error {
	_, err := w.Write([]byte(s))
	return err
}

func (w *WriteDaily) close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.currentDate = 0
	return err
}

// Close closes the daily log file
// it's safe to call on nil receiver
func (w *WriteDaily) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		_ = w.file.Sync()
	}
	return w.close()
}

type Config struct {
	// directory where log files are stored
	// each log type (regular, error, event) has its own subdirectory
	Dir string
}

// Init initializes logging to files in config.Dir
func Init(config *Config) {
	dir := config.Dir
	log = NewWriteDaily(filepath.Join(dir, "log"))
	errorsLog = NewWriteDaily(filepath.Join(dir, "errors"))
	// this doesn't create log files so if app doesn't
	// log events, it's a no-op
	eventsLog = NewWriteDaily(filepath.Join(dir, "events"))
	events = siser.NewWriter(eventsLog)
}

func closeWriteDaily(wd **WriteDaily) {
	_ = (*wd).Close()
	*wd = nil
}

// Close closes log files. Logging after Close only prints to Out.
func Close() {
	events = nil
	closeWriteDaily(&log)
	closeWriteDaily(&errorsLog)
	closeWriteDaily(&eventsLog)
}

func Logf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	fmt.Fprint(Out, s)
	_ = log.WriteString(s)
}

func Verbosef(format string, args ...any) {
	if !Verbose {
		return
	}
	Logf(format, args...)
}

func GetCallstack(skip int) string {
	var callers [32]uintptr
	n := runtime.Callers(skip+2, callers[:])
	frames := runtime.CallersFrames(callers[:n])
	var cs []string
	for {
		frame, more := frames.Next()
		cs = append(cs, frame.File+":"+strconv.Itoa(frame.Line))
		if !more {
			break
		}
	}
	return strings.Join(cs, "\n")
}

// Errorf logs an error message along with the callstack
func Errorf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	cs := GetCallstack(1)
	s = fmt.Sprintf("Error: %s\n%s\n", s, cs)
	Logf(s)
	_ = errorsLog.WriteString(s)
}

// if err != nil, log and return true
// IfErrf(err) => logs err.Error()
// IfErrf(err, "error is: %v", err) => logs message formatted
func IfErrf(err error, a ...any) bool {
	if err == nil {
		return false
	}
	if len(a) == 0 {
		Errorf("%s", err.Error())
		return true
	}
	s, ok := a[0].(string)
	if !ok {
		s = fmt.Sprintf("%v", a[0])
	}
	if len(a) > 1 {
		s = fmt.Sprintf(s, a[1:]...)
	}
	Errorf("%s", s)
	return true
}

func panicIf(cond bool, msg string) {
	if cond {
		panic(msg)
	}
}

// simpleTypeToStr converts simple types to string
// panics if v is of complex type
func simpleTypeToStr(v any) string {
	kind := reflect.TypeOf(v).Kind()
	switch kind {
	case reflect.Array, reflect.Slice, reflect.Struct, reflect.Map, reflect.Chan, reflect.Interface, reflect.Pointer:
		panic(fmt.Sprintf("simpleTypeToStr: value is of kind %v", kind))
	case reflect.String:
		return v.(string)
	}
	return fmt.Sprintf("%v", v)
}

// marshalEventVals encodes key/value pairs as toon
func marshalEventVals(vals ...any) ([]byte, error) {
	n := len(vals)
	panicIf(n%2 != 0, "Event: odd number of vals")
	if n == 0 {
		return nil, nil
	}
	m := map[string]any{}
	for i := 0; i < n; i += 2 {
		k := simpleTypeToStr(vals[i])
		m[k] = vals[i+1]
	}
	return toon.Marshal(m)
}

// Event logs a named event with key/value pairs to events log,
// as a siser frame stamped with current time
func Event(name string, vals ...any) {
	w := events
	if w == nil {
		return
	}
	d, err := marshalEventVals(vals...)
	if err != nil {
		Errorf("Event('%s'): %s", name, err)
		return
	}
	_, err = w.Write(d, time.Time{}, name)
	if err != nil {
		Errorf("Event('%s'): %s", name, err)
	}
}

func EventWithDuration(name string, dur time.Duration, vals ...any) {
	vals = append(vals, "durmicro", dur.Microseconds())
	Event(name, vals...)
}
