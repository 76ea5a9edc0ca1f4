package tracer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adam-ii/dos-int21h/internal/dos"
	"github.com/adam-ii/dos-int21h/internal/ivt"
	"github.com/adam-ii/dos-int21h/internal/machine"
	"github.com/adam-ii/dos-int21h/internal/rm"
)

func newHost(t *testing.T) (*machine.Machine, rm.FarPtr) {
	t.Helper()
	m, err := machine.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	k := dos.New(m, t.TempDir(), nil)
	k.SetConsole(bytes.NewReader(nil), &bytes.Buffer{})
	entry := k.Install(rm.GateDOS)
	t.Cleanup(func() {
		k.Close()
		m.Close()
	})
	return m, entry
}

// closeHandle issues CLOSE FILE on a device handle, which always succeeds.
func closeHandle(m *machine.Machine, h uint16) {
	m.Regs.SetAHAL(0x3E, 0)
	m.Regs.BX = h
	m.Int(rm.GateDOS)
}

func TestSessionTracesAndRestores(t *testing.T) {
	m, dosEntry := newHost(t)
	out := &bytes.Buffer{}
	s := New(m, machine.NewDOSVectors(m, rm.GateDOS), Options{Output: out}, nil)

	err := s.Run(func() error {
		if got := m.IVT.Get(rm.GateDOS); got != s.Chain().Entry() {
			t.Errorf("gate holds %s during run, want tracer entry %s", got, s.Chain().Entry())
		}
		s.Note("\nclose() fd=%d\n", 1)
		closeHandle(m, 1)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Flush()

	if got := m.IVT.Get(rm.GateDOS); got != dosEntry {
		t.Errorf("gate holds %s after run, want %s", got, dosEntry)
	}

	want := "\nclose() fd=1\n" +
		"\nCall AH=3e: CLOSE FILE\n" +
		"  0001       BX = file handle\n" +
		"\nrestore int 21h -> f000:0010\n" +
		"\nCall AH=25: SET INTERRUPT VECTOR\n" +
		"  21         AL = interrupt number\n" +
		"  f000:0010  DS:DX = new interrupt handler\n" +
		"\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	if s.Shim().Traps() != 2 {
		t.Errorf("Traps() = %d, want 2", s.Shim().Traps())
	}
}

func TestSessionRestoresAfterPanic(t *testing.T) {
	m, dosEntry := newHost(t)
	s := New(m, m.IVT, Options{Output: &bytes.Buffer{}}, nil)

	func() {
		defer func() {
			if r := recover(); r != "workload crashed" {
				t.Errorf("recover() = %v", r)
			}
		}()
		s.Run(func() error {
			closeHandle(m, 2)
			panic("workload crashed")
		})
	}()

	if got := m.IVT.Get(rm.GateDOS); got != dosEntry {
		t.Errorf("gate holds %s after panic, want %s", got, dosEntry)
	}
	if s.Chain().Installed() {
		t.Error("chain still installed after panic")
	}
	if !strings.Contains(string(s.Buffer().Bytes()), "Call AH=3e: CLOSE FILE") {
		t.Errorf("call before the panic not recorded: %q", s.Buffer().Bytes())
	}
}

func TestSessionReturnsWorkloadError(t *testing.T) {
	m, _ := newHost(t)
	s := New(m, m.IVT, Options{Output: &bytes.Buffer{}}, nil)
	boom := errors.New("boom")

	if err := s.Run(func() error { return boom }); !errors.Is(err, boom) {
		t.Errorf("Run() error = %v", err)
	}
	if s.Chain().Installed() {
		t.Error("chain still installed after error")
	}
}

func TestNestedSessions(t *testing.T) {
	m, dosEntry := newHost(t)
	outer := &bytes.Buffer{}
	inner := &bytes.Buffer{}
	var vectors ivt.Vectors = m.IVT
	a := New(m, vectors, Options{Output: outer}, nil)
	b := New(m, vectors, Options{Output: inner}, nil)

	a.Run(func() error {
		return b.Run(func() error {
			closeHandle(m, 3)
			return nil
		})
	})
	a.Flush()
	b.Flush()

	if got := m.IVT.Get(rm.GateDOS); got != dosEntry {
		t.Errorf("gate holds %s, want %s", got, dosEntry)
	}
	for name, buf := range map[string]*bytes.Buffer{"outer": outer, "inner": inner} {
		if !strings.Contains(buf.String(), "  0003       BX = file handle") {
			t.Errorf("%s session missed the call:\n%s", name, buf.String())
		}
	}
}

func TestSessionBufferSize(t *testing.T) {
	m, _ := newHost(t)
	out := &bytes.Buffer{}
	s := New(m, m.IVT, Options{Output: out, BufferSize: 16}, nil)

	s.Run(func() error {
		closeHandle(m, 4)
		return nil
	})
	s.Flush()

	if got := out.String(); got != "\nCall AH=3e: CLO\n" {
		t.Errorf("output = %q", got)
	}
}
