package decode

import (
	"fmt"
	"strings"

	"github.com/adam-ii/dos-int21h/internal/rm"
)

// Arg is one decoded register argument.
type Arg struct {
	// Value is the raw register content, already in hex.
	Value string
	// Register names the register or register pair, e.g. "BX" or "DS:DX".
	Register string
	// Description says what the register holds for this call.
	Description string
	// Text is an optional interpretation: the string a pointer refers to,
	// a symbolic mode name, a signed offset.
	Text string
}

func (a Arg) String() string {
	line := fmt.Sprintf("  %-9s  %s = %s", a.Value, a.Register, a.Description)
	if a.Text != "" {
		line += " [" + a.Text + "]"
	}
	return line
}

// Record is the decoded form of one call.
type Record struct {
	Call rm.Call
	// Name is the service name, empty for unhandled calls.
	Name string
	// Unhandled is set when no rule matched; AL is kept so the record can
	// still say which sub-function was asked for.
	Unhandled bool
	AL        uint8
	Args      []Arg
}

// String renders the record as text, one line per argument, each line
// newline-terminated.
func (r Record) String() string {
	var sb strings.Builder
	if r.Unhandled {
		fmt.Fprintf(&sb, "Call AH=%02x: Unhandled, AL=%02x\n", uint8(r.Call), r.AL)
		return sb.String()
	}
	fmt.Fprintf(&sb, "Call AH=%02x: %s\n", uint8(r.Call), r.Name)
	for _, a := range r.Args {
		sb.WriteString(a.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func byteArg(v uint8, reg, desc string) Arg {
	return Arg{Value: fmt.Sprintf("%02x", v), Register: reg, Description: desc}
}

func wordArg(v uint16, reg, desc string) Arg {
	return Arg{Value: fmt.Sprintf("%04x", v), Register: reg, Description: desc}
}

func pairArg(hi, lo uint16, reg, desc string) Arg {
	return Arg{Value: fmt.Sprintf("%04x:%04x", hi, lo), Register: reg, Description: desc}
}
