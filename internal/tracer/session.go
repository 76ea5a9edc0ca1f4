// Package tracer assembles the pieces of a trace session: the chain that
// hooks the gate, the shim behind it, the decoder and the output buffer.
package tracer

import (
	"io"

	"github.com/adam-ii/dos-int21h/common"
	"github.com/adam-ii/dos-int21h/internal/decode"
	"github.com/adam-ii/dos-int21h/internal/ivt"
	"github.com/adam-ii/dos-int21h/internal/memacc"
	"github.com/adam-ii/dos-int21h/internal/rm"
	"github.com/adam-ii/dos-int21h/internal/sink"
	"github.com/adam-ii/dos-int21h/internal/trap"
)

// Host is the machine a session runs on.
type Host interface {
	trap.Platform
	memacc.FarReader
	// Register places a handler in code memory and returns its entry point.
	Register(name string, h ivt.Handler) rm.FarPtr
}

// Options configures a session. Zero values select the defaults.
type Options struct {
	Gate       uint8
	BufferSize int
	MaxString  int
	Output     io.Writer
}

// Session is one install -> run -> restore bracket around traced code.
type Session struct {
	chain *ivt.HandlerChain
	shim  *trap.Shim
	out   *sink.TraceBuffer
	log   common.Logger
}

// New builds a session hooking opts.Gate. vectors is how the session reads
// and writes the vector table; nothing is installed until Begin.
func New(host Host, vectors ivt.Vectors, opts Options, log common.Logger) *Session {
	log = common.OrNoOp(log)
	if opts.Gate == 0 {
		opts.Gate = rm.GateDOS
	}

	out := sink.New(opts.BufferSize)
	out.SetOutput(opts.Output)
	out.SetLogger(log)

	dec := decode.New(host)
	dec.SetMaxString(opts.MaxString)

	shim := trap.New(dec, out, host, log)
	entry := host.Register("int21trace", shim.Entry)
	chain := ivt.NewChain(vectors, opts.Gate, entry, log)
	shim.Attach(chain)

	return &Session{chain: chain, shim: shim, out: out, log: log}
}

// Begin hooks the gate.
func (s *Session) Begin() {
	s.chain.Install()
}

// End notes the restore in the trace and unhooks the gate. When the vector
// table is reached through DOS, the restoring call is itself traced.
func (s *Session) End() {
	if s.chain.Installed() {
		s.Note("\nrestore int %02xh -> %s\n", s.chain.Slot(), s.chain.Previous())
	}
	s.chain.Restore()
}

// Run hooks the gate, runs fn and unhooks the gate again, also when fn
// panics; the panic then continues.
func (s *Session) Run(fn func() error) error {
	s.Begin()
	defer s.End()
	return fn()
}

// Note adds a line of the traced program's own to the output.
func (s *Session) Note(format string, args ...interface{}) {
	s.out.Record(format, args...)
}

// Flush writes the accumulated output.
func (s *Session) Flush() {
	s.out.Flush()
}

// Chain is the session's handler chain.
func (s *Session) Chain() *ivt.HandlerChain { return s.chain }

// Shim is the session's trap entry.
func (s *Session) Shim() *trap.Shim { return s.shim }

// Buffer is the session's output buffer.
func (s *Session) Buffer() *sink.TraceBuffer { return s.out }
