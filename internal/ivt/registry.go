package ivt

import (
	"fmt"

	"github.com/adam-ii/dos-int21h/internal/rm"
)

// Handler is interrupt service code. It reads and updates the machine's
// registers through whatever it closed over when it was registered.
type Handler func()

// HandlerSegment is where registered handlers live, the ROM area of a PC.
const HandlerSegment = 0xF000

// handlerStride spaces entry points one paragraph apart.
const handlerStride = 0x10

type registered struct {
	name    string
	handler Handler
}

// Registry stands in for code memory: it gives each Go handler a far
// address so that handlers can be stored in, and fetched from, the vector
// table like real entry points.
type Registry struct {
	next    uint16
	entries map[rm.FarPtr]registered
}

func NewRegistry() *Registry {
	return &Registry{
		next:    handlerStride, // keep F000:0000 free, a null-ish entry is easier to spot
		entries: make(map[rm.FarPtr]registered),
	}
}

// Register assigns h the next free entry point.
func (r *Registry) Register(name string, h Handler) rm.FarPtr {
	ptr := rm.Far(HandlerSegment, r.next)
	r.next += handlerStride
	r.entries[ptr] = registered{name: name, handler: h}
	return ptr
}

// Lookup returns the handler whose entry point is ptr.
func (r *Registry) Lookup(ptr rm.FarPtr) (Handler, bool) {
	e, ok := r.entries[ptr]
	return e.handler, ok
}

// Name describes ptr for log lines.
func (r *Registry) Name(ptr rm.FarPtr) string {
	if e, ok := r.entries[ptr]; ok {
		return fmt.Sprintf("%s@%s", e.name, ptr)
	}
	return fmt.Sprintf("unmapped@%s", ptr)
}
