// Package sink accumulates decoded trace text in a fixed-size buffer and
// flushes it to the console in one piece.
package sink

import (
	"fmt"
	"io"
	"os"

	"github.com/adam-ii/dos-int21h/common"
)

// DefaultCapacity matches the fixed output buffer of the DOS tracer.
const DefaultCapacity = 4096

// TraceBuffer is a bounded byte buffer with a write cursor. The cursor never
// passes the capacity: a record that does not fit is cut short, the buffer
// never grows and nothing reports the loss.
//
// TraceBuffer is not synchronized. Nested traps append in the
// order they were entered; callers must not record from overlapping phases.
type TraceBuffer struct {
	buf    []byte
	cursor int
	out    io.Writer
	log    common.Logger
}

// New creates a buffer of the given capacity flushing to stdout.
// A capacity below one falls back to DefaultCapacity.
func New(capacity int) *TraceBuffer {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &TraceBuffer{
		buf: make([]byte, capacity),
		out: os.Stdout,
		log: common.NewNoOpLogger(),
	}
}

// SetOutput redirects flushed text. A nil writer is ignored.
func (b *TraceBuffer) SetOutput(w io.Writer) {
	if w != nil {
		b.out = w
	}
}

// SetLogger sets the logger used to report flush failures.
func (b *TraceBuffer) SetLogger(l common.Logger) {
	b.log = common.OrNoOp(l)
}

// Record renders format at the cursor. Text past the capacity is dropped.
func (b *TraceBuffer) Record(format string, args ...interface{}) {
	b.put([]byte(fmt.Sprintf(format, args...)))
}

func (b *TraceBuffer) put(p []byte) {
	n := copy(b.buf[b.cursor:], p)
	b.cursor += n
	if n < len(p) {
		b.log.Logf(common.SeverityDebug, "trace buffer full, dropped %d bytes", len(p)-n)
	}
}

// Flush emits the buffered text as one blob followed by a newline and
// rewinds the cursor. An empty buffer produces no output.
func (b *TraceBuffer) Flush() {
	if b.cursor == 0 {
		return
	}
	blob := make([]byte, b.cursor+1)
	copy(blob, b.buf[:b.cursor])
	blob[b.cursor] = '\n'
	if _, err := b.out.Write(blob); err != nil {
		b.log.Error(fmt.Errorf("flush trace buffer: %w", err))
	}
	b.cursor = 0
}

// Reset discards buffered text without emitting it.
func (b *TraceBuffer) Reset() { b.cursor = 0 }

// Len is the number of buffered bytes (the cursor position).
func (b *TraceBuffer) Len() int { return b.cursor }

// Cap is the fixed capacity.
func (b *TraceBuffer) Cap() int { return len(b.buf) }

// Bytes returns the buffered text. The slice aliases the buffer and is only
// valid until the next Record, Flush or Reset.
func (b *TraceBuffer) Bytes() []byte { return b.buf[:b.cursor] }
