// Package trap is the tracer's interrupt entry point: it captures the
// caller's registers, records the decoded call and hands the call on to the
// handler that owned the gate before the tracer.
package trap

import (
	"github.com/adam-ii/dos-int21h/common"
	"github.com/adam-ii/dos-int21h/internal/decode"
	"github.com/adam-ii/dos-int21h/internal/rm"
)

// Platform is what the shim needs from the machine it runs on.
type Platform interface {
	// CaptureRegisters copies the registers as they were when the trap
	// was taken.
	CaptureRegisters() rm.Snapshot
	// InvokePrevious transfers the trap, registers untouched, to the
	// handler at prev. It returns once that handler has returned.
	InvokePrevious(prev rm.FarPtr)
}

// Chain supplies the handler to forward to.
type Chain interface {
	Previous() rm.FarPtr
}

// Recorder receives decoded text.
type Recorder interface {
	Record(format string, args ...interface{})
}

// State is the shim's dispatch state.
type State int

const (
	// Armed: installed and waiting for a call.
	Armed State = iota
	// Dispatching: at least one trap is being processed.
	Dispatching
)

func (s State) String() string {
	if s == Dispatching {
		return "dispatching"
	}
	return "armed"
}

// Shim is the trap entry/exit code. Everything a trap works on is local to
// Entry, so a trap raised from inside the chained handler simply runs Entry
// again. Only the Recorder is shared between nested traps, and records land
// in the order the traps were entered.
type Shim struct {
	decoder  *decode.Decoder
	out      Recorder
	platform Platform
	chain    Chain
	depth    int
	traps    uint64
	log      common.Logger
}

// New creates a shim. The chain is attached separately because the chain
// needs the shim's entry address first.
func New(decoder *decode.Decoder, out Recorder, platform Platform, log common.Logger) *Shim {
	return &Shim{
		decoder:  decoder,
		out:      out,
		platform: platform,
		log:      common.OrNoOp(log),
	}
}

// Attach sets the chain whose previous handler every trap is forwarded to.
func (s *Shim) Attach(c Chain) {
	s.chain = c
}

// Entry handles one trap. The register capture comes first so the decoder
// sees the caller's values; the record is written before chaining because
// the chained handler may trap again; chaining always happens.
func (s *Shim) Entry() {
	snap := s.platform.CaptureRegisters()

	s.depth++
	defer func() { s.depth-- }()
	s.traps++
	if s.depth > 1 {
		s.log.Logf(common.SeverityDebug, "nested trap AH=%02x at depth %d", snap.AH, s.depth)
	}

	s.out.Record("\n%s", s.decoder.Render(snap))

	s.platform.InvokePrevious(s.chain.Previous())
}

// State reports whether a trap is being handled, the chained handler's
// share of it included.
func (s *Shim) State() State {
	if s.depth > 0 {
		return Dispatching
	}
	return Armed
}

// Traps is the number of traps taken since the shim was created.
func (s *Shim) Traps() uint64 { return s.traps }
