package workload

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adam-ii/dos-int21h/internal/dos"
	"github.com/adam-ii/dos-int21h/internal/machine"
	"github.com/adam-ii/dos-int21h/internal/rm"
	"github.com/adam-ii/dos-int21h/internal/tracer"
)

type env struct {
	m     *machine.Machine
	io    *LowLevel
	sess  *tracer.Session
	out   *bytes.Buffer
	entry rm.FarPtr
}

func newEnv(t *testing.T, content string) *env {
	t.Helper()
	m, err := machine.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "TEST.TXT"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	k := dos.New(m, root, nil)
	k.SetConsole(bytes.NewReader(nil), &bytes.Buffer{})
	entry := k.Install(rm.GateDOS)
	t.Cleanup(func() {
		k.Close()
		m.Close()
	})

	out := &bytes.Buffer{}
	sess := tracer.New(m, machine.NewDOSVectors(m, rm.GateDOS), tracer.Options{Output: out}, nil)
	return &env{m: m, io: NewLowLevel(m, rm.GateDOS), sess: sess, out: out, entry: entry}
}

var callLine = regexp.MustCompile(`(?m)^Call AH=([0-9a-f]{2}): `)

func calls(trace string) []string {
	var out []string
	for _, m := range callLine.FindAllStringSubmatch(trace, -1) {
		out = append(out, m[1])
	}
	return out
}

func TestRunIOCallSequence(t *testing.T) {
	e := newEnv(t, strings.Repeat("0123456789", 10))

	if err := RunIO(e.sess, e.io, "TEST.TXT"); err != nil {
		t.Fatal(err)
	}

	want := []string{"3d", "3f", "42", "3e", "25"}
	if diff := cmp.Diff(want, calls(e.out.String())); diff != "" {
		t.Errorf("call sequence mismatch (-want +got):\n%s", diff)
	}
	if got := e.m.IVT.Get(rm.GateDOS); got != e.entry {
		t.Errorf("gate holds %s after run, want %s", got, e.entry)
	}

	trace := e.out.String()
	for _, line := range []string{
		"***** io.h functions *****\n",
		"\nopen(TEST.TXT) (1000:0100)\n",
		"  1000:0100  DS:DX = ASCIZ filename [TEST.TXT]\n",
		"\nread() fd=5 buffer=1000:0109 size=64\n",
		"  0040       CX = number of bytes to read\n",
		"  01         AL = origin of move [SEEK_CUR]\n",
		"\nclose() fd=5\n",
		"  0005       BX = file handle\n",
	} {
		if !strings.Contains(trace, line) {
			t.Errorf("trace lacks %q:\n%s", line, trace)
		}
	}
}

func TestRunStdioCallSequence(t *testing.T) {
	e := newEnv(t, strings.Repeat("x", 1000))

	if err := RunStdio(e.sess, NewStdio(e.io), "TEST.TXT"); err != nil {
		t.Fatal(err)
	}

	want := []string{"3d", "44", "3f", "42", "3e", "25"}
	if diff := cmp.Diff(want, calls(e.out.String())); diff != "" {
		t.Errorf("call sequence mismatch (-want +got):\n%s", diff)
	}
	if got := e.m.IVT.Get(rm.GateDOS); got != e.entry {
		t.Errorf("gate holds %s after run, want %s", got, e.entry)
	}
	trace := e.out.String()
	if !strings.Contains(trace, "Call AH=44: GET DEVICE INFORMATION\n  0005       BX = handle\n") {
		t.Errorf("device information record missing:\n%s", trace)
	}
	if !strings.Contains(trace, "  0200       CX = number of bytes to read\n") {
		t.Errorf("stream read should fill a whole buffer:\n%s", trace)
	}
}

func TestRunMissingFile(t *testing.T) {
	e := newEnv(t, "")

	if err := RunIO(e.sess, e.io, "NOFILE.TXT"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"3d", "25"}, calls(e.out.String())); diff != "" {
		t.Errorf("call sequence mismatch (-want +got):\n%s", diff)
	}
	if got := e.m.IVT.Get(rm.GateDOS); got != e.entry {
		t.Errorf("gate holds %s after run, want %s", got, e.entry)
	}
}

func TestStdioReadAndTell(t *testing.T) {
	e := newEnv(t, "abcdefghij")
	st := NewStdio(e.io)

	name, _ := e.m.PutString("TEST.TXT")
	f, err := st.Fopen(name, "r")
	if err != nil {
		t.Fatal(err)
	}
	dst, _ := e.m.Alloc(16)

	n, err := st.Fread(dst, 2, 2, f)
	if err != nil || n != 2 {
		t.Fatalf("Fread() = %d, %v", n, err)
	}
	if got := string(e.m.Read(dst, 4)); got != "abcd" {
		t.Errorf("read %q", got)
	}
	if pos, err := st.Ftell(f); err != nil || pos != 4 {
		t.Errorf("Ftell() = %d, %v, want 4", pos, err)
	}

	n, _ = st.Fread(dst, 1, 16, f)
	if n != 6 || !f.EOF() {
		t.Errorf("read to end = %d items, eof %v", n, f.EOF())
	}
	if err := st.Fclose(f); err != nil {
		t.Errorf("Fclose() error: %v", err)
	}

	if _, err := st.Fopen(name, "w"); err == nil {
		t.Error("write mode accepted")
	}
}

func TestLowLevelErrors(t *testing.T) {
	e := newEnv(t, "")

	if err := e.io.Close(9); err != rm.ErrInvalidHandle {
		t.Errorf("Close(9) error = %v", err)
	}
	name, _ := e.m.PutString("MISSING")
	if _, err := e.io.Open(name, ORdOnly); err != rm.ErrFileNotFound {
		t.Errorf("Open(MISSING) error = %v", err)
	}
	if pos, err := e.io.Lseek(9, 0, rm.SeekSet); err == nil || pos != -1 {
		t.Errorf("Lseek on bad handle = %d, %v", pos, err)
	}
}
