package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/google/subcommands"

	"github.com/adam-ii/dos-int21h/internal/decode"
	"github.com/adam-ii/dos-int21h/internal/machine"
	"github.com/adam-ii/dos-int21h/internal/rm"
)

// hexValue is a register flag given in hex, with or without 0x.
type hexValue struct {
	v    uint64
	bits int
	set  bool
}

func (h *hexValue) String() string {
	return fmt.Sprintf("%x", h.v)
}

func (h *hexValue) Set(s string) error {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, 16, h.bits)
	if err != nil {
		return err
	}
	h.v, h.set = v, true
	return nil
}

// decodeCmd implements subcommands.Command for the "decode" command.
type decodeCmd struct {
	ah, al         hexValue
	bx, cx, dx, ds hexValue
	str            string
}

// Name implements subcommands.Command.
func (*decodeCmd) Name() string {
	return "decode"
}

// Synopsis implements subcommands.Command.
func (*decodeCmd) Synopsis() string {
	return "decode one call from register values"
}

// Usage implements subcommands.Command.
func (*decodeCmd) Usage() string {
	return `decode -ah 3d [-al 00] [-bx ..] [-cx ..] [-dx ..] [-ds ..] [-string TEST.TXT]
  - print the trace record for a call. -string places an ASCIZ string in
  memory and points DS:DX at it unless -ds/-dx are given.
`
}

// SetFlags implements subcommands.Command.
func (c *decodeCmd) SetFlags(f *flag.FlagSet) {
	c.ah.bits, c.al.bits = 8, 8
	for _, r := range []*hexValue{&c.bx, &c.cx, &c.dx, &c.ds} {
		r.bits = 16
	}
	f.Var(&c.ah, "ah", "AH, the call number (hex)")
	f.Var(&c.al, "al", "AL (hex)")
	f.Var(&c.bx, "bx", "BX (hex)")
	f.Var(&c.cx, "cx", "CX (hex)")
	f.Var(&c.dx, "dx", "DX (hex)")
	f.Var(&c.ds, "ds", "DS (hex)")
	f.StringVar(&c.str, "string", "", "ASCIZ string to place at DS:DX")
}

// Execute implements subcommands.Command.
func (c *decodeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", f.Args())
		return subcommands.ExitUsageError
	}
	if !c.ah.set {
		fmt.Fprintf(os.Stderr, "-ah is required\n")
		return subcommands.ExitUsageError
	}
	cfg, log, err := setup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	m, err := machine.New(log)
	if err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	defer m.Close()
	for _, img := range cfg.Memory {
		if err := m.LoadImage(img.Path, uint64(img.Base)); err != nil {
			log.Error(err)
			return subcommands.ExitFailure
		}
	}

	snap := rm.Snapshot{
		AH: uint8(c.ah.v),
		AL: uint8(c.al.v),
		BX: uint16(c.bx.v),
		CX: uint16(c.cx.v),
		DX: uint16(c.dx.v),
		DS: m.Regs.DS,
	}
	if c.ds.set {
		snap.DS = uint16(c.ds.v)
	}
	if c.str != "" {
		ptr, err := m.PutString(c.str)
		if err != nil {
			log.Error(err)
			return subcommands.ExitFailure
		}
		if !c.ds.set && !c.dx.set {
			snap.DS, snap.DX = ptr.Seg, ptr.Off
		}
	}

	d := decode.New(m)
	d.SetMaxString(cfg.MaxString)
	fmt.Print(d.Render(snap))
	return subcommands.ExitSuccess
}
