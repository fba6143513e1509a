// Package debug is a lightweight trace log shared across the VMM.
//
// Tracing is off until Open is called; every Writef before that is a no-op,
// so hot paths can trace unconditionally. Each line carries a timestamp and
// a source tag so interleaved subsystems can be told apart.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type sink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

var active atomic.Pointer[sink]

// Open starts tracing to w. The previous sink, if any, is dropped without
// being closed; the returned error is a warning about that, not a failure.
func Open(w io.Writer) error {
	s := &sink{w: w}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	if active.Swap(s) != nil {
		return fmt.Errorf("debug: already open, discarded old writer")
	}
	return nil
}

// OpenFile starts tracing to the named file, truncating any previous run.
func OpenFile(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	return Open(f)
}

// Close stops tracing and closes the underlying writer if it is closable.
func Close() error {
	s := active.Swap(nil)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Enabled reports whether a sink is currently attached.
func Enabled() bool {
	return active.Load() != nil
}

// Write emits a single trace line tagged with source.
func Write(source string, data string) {
	s := active.Load()
	if s == nil {
		return
	}
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%s [%s] %s\n", ts, source, data)
}

// Writef is Write with formatting.
func Writef(source string, format string, args ...any) {
	if active.Load() == nil {
		return
	}
	Write(source, fmt.Sprintf(format, args...))
}

// Debug is a trace handle pre-bound to a source tag.
type Debug interface {
	Write(data string)
	Writef(format string, args ...any)
}

type debugImpl struct {
	source string
}

func (d *debugImpl) Write(data string) { Write(d.source, data) }
func (d *debugImpl) Writef(format string, args ...any) {
	Writef(d.source, format, args...)
}

// WithSource returns a handle that tags every line with source.
func WithSource(source string) Debug {
	return &debugImpl{source: source}
}
