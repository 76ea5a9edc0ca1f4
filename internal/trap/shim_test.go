package trap

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adam-ii/dos-int21h/internal/decode"
	"github.com/adam-ii/dos-int21h/internal/rm"
)

// events is a shared log of what the shim did, in order.
type events []string

func (e *events) add(format string, args ...interface{}) {
	*e = append(*e, fmt.Sprintf(format, args...))
}

type fakeRecorder struct {
	ev   *events
	text strings.Builder
}

func (r *fakeRecorder) Record(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	r.ev.add("record %s", strings.SplitN(strings.TrimPrefix(s, "\n"), "\n", 2)[0])
	r.text.WriteString(s)
}

type fakeChain struct{ prev rm.FarPtr }

func (c fakeChain) Previous() rm.FarPtr { return c.prev }

// fakePlatform serves queued snapshots. onInvoke runs as the chained
// handler, which lets a test raise a nested trap from inside it.
type fakePlatform struct {
	ev       *events
	snaps    []rm.Snapshot
	onInvoke func(depth int)
	invoked  []rm.FarPtr
}

func (p *fakePlatform) CaptureRegisters() rm.Snapshot {
	s := p.snaps[0]
	p.snaps = p.snaps[1:]
	p.ev.add("capture AH=%02x", s.AH)
	return s
}

func (p *fakePlatform) InvokePrevious(prev rm.FarPtr) {
	p.ev.add("chain %s", prev)
	p.invoked = append(p.invoked, prev)
	if p.onInvoke != nil {
		p.onInvoke(len(p.invoked))
	}
}

func newTestShim(snaps ...rm.Snapshot) (*Shim, *fakePlatform, *fakeRecorder, *events) {
	ev := &events{}
	plat := &fakePlatform{ev: ev, snaps: snaps}
	rec := &fakeRecorder{ev: ev}
	s := New(decode.New(nil), rec, plat, nil)
	s.Attach(fakeChain{prev: rm.Far(0xF000, 0x0010)})
	return s, plat, rec, ev
}

func TestEntryOrder(t *testing.T) {
	s, _, rec, ev := newTestShim(rm.Snapshot{AH: 0x3E, BX: 5})

	s.Entry()

	want := events{
		"capture AH=3e",
		"record Call AH=3e: CLOSE FILE",
		"chain f000:0010",
	}
	if diff := cmp.Diff(want, *ev); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
	wantText := "\nCall AH=3e: CLOSE FILE\n  0005       BX = file handle\n"
	if diff := cmp.Diff(wantText, rec.text.String()); diff != "" {
		t.Errorf("recorded text mismatch (-want +got):\n%s", diff)
	}
	if s.Traps() != 1 {
		t.Errorf("Traps() = %d, want 1", s.Traps())
	}
}

func TestEntryAlwaysChains(t *testing.T) {
	snaps := []rm.Snapshot{
		{AH: 0xFF, AL: 0x01},
		{AH: 0x44, AL: 0x07},
		{AH: 0x40},
		{AH: 0x25, AL: 0x21},
	}
	s, plat, rec, _ := newTestShim(snaps...)

	for range snaps {
		s.Entry()
	}

	if len(plat.invoked) != len(snaps) {
		t.Fatalf("chained %d times, want %d", len(plat.invoked), len(snaps))
	}
	for i, p := range plat.invoked {
		if p != rm.Far(0xF000, 0x0010) {
			t.Errorf("trap %d chained to %s", i, p)
		}
	}
	if !strings.Contains(rec.text.String(), "Call AH=ff: Unhandled, AL=01") {
		t.Errorf("unknown call not recorded:\n%s", rec.text.String())
	}
	if !strings.Contains(rec.text.String(), "Call AH=44: Unhandled, AL=07") {
		t.Errorf("ioctl sub-function 07 not recorded:\n%s", rec.text.String())
	}
}

func TestNestedTraps(t *testing.T) {
	s, plat, _, ev := newTestShim(
		rm.Snapshot{AH: 0x3D},
		rm.Snapshot{AH: 0x44},
	)

	var inner State
	plat.onInvoke = func(n int) {
		if n == 1 {
			// the previous handler issues a call of its own
			s.Entry()
			inner = s.State()
		}
	}

	if got := s.State(); got != Armed {
		t.Fatalf("State() before trap = %v", got)
	}
	s.Entry()

	want := events{
		"capture AH=3d",
		"record Call AH=3d: OPEN EXISTING FILE",
		"chain f000:0010",
		"capture AH=44",
		"record Call AH=44: GET DEVICE INFORMATION",
		"chain f000:0010",
	}
	if diff := cmp.Diff(want, *ev); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
	if inner != Dispatching {
		t.Errorf("State() after inner trap = %v, want dispatching", inner)
	}
	if got := s.State(); got != Armed {
		t.Errorf("State() after outer trap = %v, want armed", got)
	}
	if s.Traps() != 2 {
		t.Errorf("Traps() = %d, want 2", s.Traps())
	}
}

func TestStateRecoversFromPanickingHandler(t *testing.T) {
	s, plat, _, _ := newTestShim(rm.Snapshot{AH: 0x4C})
	plat.onInvoke = func(int) { panic("handler gone") }

	func() {
		defer func() { recover() }()
		s.Entry()
	}()

	if got := s.State(); got != Armed {
		t.Errorf("State() = %v, want armed", got)
	}
}

func TestStateString(t *testing.T) {
	if Armed.String() != "armed" || Dispatching.String() != "dispatching" {
		t.Errorf("State strings: %q %q", Armed, Dispatching)
	}
}
