package machine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adam-ii/dos-int21h/internal/ivt"
	"github.com/adam-ii/dos-int21h/internal/memacc"
	"github.com/adam-ii/dos-int21h/internal/rm"
)

func newMachine(t *testing.T) *Machine {
	t.Helper()
	m, err := New(nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func TestIntDispatchesThroughVector(t *testing.T) {
	m := newMachine(t)

	var got uint16
	entry := m.Register("probe", func() { got = m.Regs.BX })
	m.IVT.Set(0x60, entry)

	m.Regs.BX = 0x1234
	m.Int(0x60)

	if got != 0x1234 {
		t.Errorf("handler saw BX=%04x, want 1234", got)
	}
}

func TestIntUnmappedVectorPanics(t *testing.T) {
	m := newMachine(t)

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrNoHandler) {
			t.Errorf("recover() = %v, want ErrNoHandler", r)
		}
	}()
	m.Int(0x61)
	t.Fatal("Int on an empty vector returned")
}

func TestPlatform(t *testing.T) {
	m := newMachine(t)
	m.Regs.SetAHAL(0x3D, 0x02)
	m.Regs.DX = 0x0010

	snap := m.CaptureRegisters()
	want := rm.Snapshot{AH: 0x3D, AL: 0x02, DX: 0x0010, DS: DataSegment, ES: DataSegment}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Errorf("CaptureRegisters() mismatch (-want +got):\n%s", diff)
	}

	called := false
	prev := m.Register("prev", func() { called = m.Regs.AH() == 0x3D })
	m.InvokePrevious(prev)
	if !called {
		t.Error("InvokePrevious did not reach the handler with registers intact")
	}
}

func TestAllocAndStrings(t *testing.T) {
	m := newMachine(t)

	a, err := m.PutString("TEST.TXT")
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Alloc(64)
	if err != nil {
		t.Fatal(err)
	}
	if a.Seg != DataSegment || a.Off != dataStart {
		t.Errorf("first allocation at %s", a)
	}
	if b.Off != a.Off+9 {
		t.Errorf("second allocation at %s, want offset %04x", b, a.Off+9)
	}

	s, ok := memacc.ReadCString(m, a, 128)
	if !ok || s != "TEST.TXT" {
		t.Errorf("ReadCString() = %q, %v", s, ok)
	}

	if n := m.Write(b, []byte{1, 2, 3}); n != 3 {
		t.Errorf("Write() = %d", n)
	}
	if diff := cmp.Diff([]byte{1, 2, 3}, m.Read(b, 3)); diff != "" {
		t.Errorf("Read() mismatch:\n%s", diff)
	}

	if _, err := m.Alloc(0x10000); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("oversized Alloc() error = %v", err)
	}
}

func TestLoadImage(t *testing.T) {
	m := newMachine(t)
	path := filepath.Join(t.TempDir(), "rom.bin")
	if err := os.WriteFile(path, []byte("ROMNAME\x00"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := m.LoadImage(path, 0x1000); !errors.Is(err, memacc.ErrRangeInvalid) {
		t.Errorf("image inside RAM: error = %v", err)
	}
	if err := m.LoadImage(path, 0xC0000); err != nil {
		t.Fatalf("LoadImage() error: %v", err)
	}
	if err := m.LoadImage(path, 0xC0004); !errors.Is(err, memacc.ErrMemAccOverlap) {
		t.Errorf("overlapping image: error = %v", err)
	}

	s, ok := memacc.ReadCString(m, rm.Far(0xC000, 0), 16)
	if !ok || s != "ROMNAME" {
		t.Errorf("ReadCString() = %q, %v", s, ok)
	}
	if n := m.Write(rm.Far(0xC000, 0), []byte("x")); n != 0 {
		t.Errorf("image accepted %d written bytes", n)
	}
}

func TestDOSVectorsSetGoesThroughGate(t *testing.T) {
	m := newMachine(t)

	var calls []rm.Snapshot
	dos := m.Register("dos", func() {
		calls = append(calls, m.CaptureRegisters())
		if m.Regs.AH() == uint8(rm.CallSetVector) {
			m.IVT.Set(m.Regs.AL(), m.Regs.DSDX())
		}
		m.Regs.BX = 0xDEAD // clobber, must not leak to the caller
	})
	m.IVT.Set(rm.GateDOS, dos)

	v := NewDOSVectors(m, rm.GateDOS)
	var target ivt.Vectors = v
	handler := rm.Far(0xF000, 0x0100)

	m.Regs.BX = 0x0005
	target.Set(0x60, handler)

	if got := v.Get(0x60); got != handler {
		t.Errorf("Get(60h) = %s, want %s", got, handler)
	}
	if len(calls) != 1 || calls[0].AH != 0x25 || calls[0].AL != 0x60 || calls[0].DSDX() != handler {
		t.Errorf("gate saw %+v", calls)
	}
	if m.Regs.BX != 0x0005 {
		t.Errorf("caller BX = %04x after Set, want 0005", m.Regs.BX)
	}
}
