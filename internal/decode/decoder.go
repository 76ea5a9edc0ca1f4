// Package decode turns a register snapshot taken at the DOS service gate
// into a readable description of the call and its arguments.
package decode

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/adam-ii/dos-int21h/internal/memacc"
	"github.com/adam-ii/dos-int21h/internal/rm"
)

// DefaultMaxString bounds how far the decoder scans for the NUL of an
// ASCIZ argument: a DOS path is at most 128 bytes including the NUL.
const DefaultMaxString = 128

// AnySub marks a rule that does not look at the sub-selector in AL.
const AnySub = -1

// Rule decodes one call number, optionally restricted to one AL value.
type Rule struct {
	Call rm.Call
	Sub  int
	Name string
	// Registers lists the argument registers for documentation.
	Registers string
	args      func(d *Decoder, s rm.Snapshot) []Arg
}

// Matches reports whether the rule applies to s.
func (r Rule) Matches(s rm.Snapshot) bool {
	if rm.Call(s.AH) != r.Call {
		return false
	}
	return r.Sub == AnySub || int(s.AL) == r.Sub
}

func (r Rule) String() string {
	sel := fmt.Sprintf("AH=%02x", uint8(r.Call))
	if r.Sub != AnySub {
		sel += fmt.Sprintf(",AL=%02x", r.Sub)
	}
	return fmt.Sprintf("%-12s %-28s %s", sel, r.Name, r.Registers)
}

// rules is the static dispatch table. IOCTL only decodes sub-function 00h;
// every other IOCTL sub-function falls through to the unhandled record.
var rules = []Rule{
	{
		Call:      rm.CallSetVector,
		Sub:       AnySub,
		Name:      "SET INTERRUPT VECTOR",
		Registers: "AL, DS:DX",
		args: func(d *Decoder, s rm.Snapshot) []Arg {
			return []Arg{
				byteArg(s.AL, "AL", "interrupt number"),
				pairArg(s.DS, s.DX, "DS:DX", "new interrupt handler"),
			}
		},
	},
	{
		Call:      rm.CallOpen,
		Sub:       AnySub,
		Name:      "OPEN EXISTING FILE",
		Registers: "AL, DS:DX",
		args: func(d *Decoder, s rm.Snapshot) []Arg {
			mode := byteArg(s.AL, "AL", "access and sharing modes")
			mode.Text = OpenModeName(s.AL)
			name := pairArg(s.DS, s.DX, "DS:DX", "ASCIZ filename")
			name.Text = d.asciz(s.DSDX())
			return []Arg{mode, name}
		},
	},
	{
		Call:      rm.CallClose,
		Sub:       AnySub,
		Name:      "CLOSE FILE",
		Registers: "BX",
		args: func(d *Decoder, s rm.Snapshot) []Arg {
			return []Arg{wordArg(s.BX, "BX", "file handle")}
		},
	},
	{
		Call:      rm.CallRead,
		Sub:       AnySub,
		Name:      "READ FROM FILE OR DEVICE",
		Registers: "BX, CX, DS:DX",
		args: func(d *Decoder, s rm.Snapshot) []Arg {
			return []Arg{
				wordArg(s.BX, "BX", "file handle"),
				wordArg(s.CX, "CX", "number of bytes to read"),
				pairArg(s.DS, s.DX, "DS:DX", "buffer for data"),
			}
		},
	},
	{
		Call:      rm.CallSeek,
		Sub:       AnySub,
		Name:      "SET CURRENT FILE POSITION",
		Registers: "AL, BX, CX:DX",
		args: func(d *Decoder, s rm.Snapshot) []Arg {
			origin := byteArg(s.AL, "AL", "origin of move")
			origin.Text = SeekOrigin.Name(s.AL)
			offset := pairArg(s.CX, s.DX, "CX:DX", "(signed) offset from origin of new file position")
			offset.Text = fmt.Sprintf("%d", int32(uint32(s.CX)<<16|uint32(s.DX)))
			return []Arg{
				origin,
				wordArg(s.BX, "BX", "file handle"),
				offset,
			}
		},
	},
	{
		Call:      rm.CallIOCTL,
		Sub:       int(rm.IOCTLGetDevInfo),
		Name:      "GET DEVICE INFORMATION",
		Registers: "BX",
		args: func(d *Decoder, s rm.Snapshot) []Arg {
			return []Arg{wordArg(s.BX, "BX", "handle")}
		},
	},
}

// Rules returns a copy of the dispatch table in lookup order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Lookup finds the rule for s.
func Lookup(s rm.Snapshot) (Rule, bool) {
	for _, r := range rules {
		if r.Matches(s) {
			return r, true
		}
	}
	return Rule{}, false
}

// Decoder renders snapshots. It holds no state that changes between calls,
// so decoding the same snapshot over the same memory always gives the same
// record. Memory is only ever read.
type Decoder struct {
	mem       memacc.FarReader
	maxString int
}

// New returns a decoder dereferencing pointer arguments through mem. A nil
// mem leaves pointer arguments undereferenced.
func New(mem memacc.FarReader) *Decoder {
	return &Decoder{mem: mem, maxString: DefaultMaxString}
}

// SetMaxString changes the ASCIZ scan limit. Values below one are ignored.
func (d *Decoder) SetMaxString(n int) {
	if n > 0 {
		d.maxString = n
	}
}

// Decode selects the rule for s and fills in its arguments. Calls without a
// rule produce the unhandled record.
func (d *Decoder) Decode(s rm.Snapshot) Record {
	r, ok := Lookup(s)
	if !ok {
		return Record{Call: rm.Call(s.AH), Unhandled: true, AL: s.AL}
	}
	return Record{
		Call: r.Call,
		Name: r.Name,
		AL:   s.AL,
		Args: r.args(d, s),
	}
}

// Render is Decode followed by Record.String.
func (d *Decoder) Render(s rm.Snapshot) string {
	return d.Decode(s).String()
}

func (d *Decoder) asciz(ptr rm.FarPtr) string {
	if d.mem == nil {
		return ""
	}
	s, terminated := memacc.ReadCString(d.mem, ptr, d.maxString)
	s = printable(s)
	if !terminated {
		s += "..."
	}
	return s
}

// printable converts DOS text (code page 437) for the host console. Control
// bytes are escaped so a corrupt pointer cannot put raw garbage out.
func printable(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c < 0x20 || c == 0x7F:
			fmt.Fprintf(&sb, "\\x%02x", c)
		case c > 0x7F:
			sb.WriteRune(charmap.CodePage437.DecodeByte(c))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
