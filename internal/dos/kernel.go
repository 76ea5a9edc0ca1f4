// Package dos is the DOS kernel of the simulated machine: the handler that
// owns the service gate before any tracer hooks it. File calls are served
// from host files under a root directory.
package dos

import (
	"errors"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/adam-ii/dos-int21h/common"
	"github.com/adam-ii/dos-int21h/internal/machine"
	"github.com/adam-ii/dos-int21h/internal/memacc"
	"github.com/adam-ii/dos-int21h/internal/rm"
)

// MaxPath bounds ASCIZ path arguments, terminator included.
const MaxPath = 128

// Device information words returned by IOCTL 00h.
const (
	devInfoIsDevice uint16 = 0x0080
	devInfoConsole  uint16 = 0x80D3
	devInfoAux      uint16 = 0x80C0
	devInfoPrinter  uint16 = 0xA8C0
	// devInfoDriveC is bits 0-5 of a file's word: drive C.
	devInfoDriveC uint16 = 0x0002
	// devInfoClean is bit 6 of a file's word: not written since open.
	devInfoClean uint16 = 0x0040
)

// Kernel services the DOS calls. It keeps the handle table; everything else
// it works on lives in the machine.
type Kernel struct {
	m       *machine.Machine
	root    string
	files   map[uint16]*openFile
	stdin   io.Reader
	stdout  io.Writer
	console func() bool
	log     common.Logger

	exited   bool
	exitCode uint8
}

// New creates a kernel serving files below root, with the host's standard
// streams behind the standard handles.
func New(m *machine.Machine, root string, log common.Logger) *Kernel {
	return &Kernel{
		m:      m,
		root:   root,
		files:  make(map[uint16]*openFile),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		console: func() bool {
			return term.IsTerminal(int(os.Stdout.Fd()))
		},
		log: common.OrNoOp(log),
	}
}

// SetConsole replaces the streams behind the standard handles. A nil value
// keeps the current one.
func (k *Kernel) SetConsole(in io.Reader, out io.Writer) {
	if in != nil {
		k.stdin = in
	}
	if out != nil {
		k.stdout = out
	}
	k.console = func() bool { return false }
}

// Install places the kernel's entry point in gate, the way DOS sets up its
// vector at boot, and returns the entry point.
func (k *Kernel) Install(gate uint8) rm.FarPtr {
	entry := k.m.Register("dos", k.Handle)
	k.m.IVT.Set(gate, entry)
	return entry
}

// Exited reports whether a program terminated, and with what code.
func (k *Kernel) Exited() (bool, uint8) {
	return k.exited, k.exitCode
}

// Close closes every file still open.
func (k *Kernel) Close() {
	for h, o := range k.files {
		o.close()
		delete(k.files, h)
	}
}

// Handle is the interrupt handler. Results come back the DOS way: CF clear
// and values in registers, or CF set and an error code in AX.
func (k *Kernel) Handle() {
	r := &k.m.Regs
	var err error
	switch rm.Call(r.AH()) {
	case rm.CallSetVector:
		k.m.IVT.Set(r.AL(), r.DSDX())
	case rm.CallGetVector:
		v := k.m.IVT.Get(r.AL())
		r.ES, r.BX = v.Seg, v.Off
	case rm.CallOpen:
		err = k.open(r)
	case rm.CallClose:
		err = k.close(r)
	case rm.CallRead:
		err = k.read(r)
	case rm.CallWrite:
		err = k.write(r)
	case rm.CallSeek:
		err = k.seek(r)
	case rm.CallIOCTL:
		err = k.ioctl(r)
	case rm.CallTerminate:
		k.exited, k.exitCode = true, r.AL()
		k.log.Logf(common.SeverityInfo, "program terminated with code %d", r.AL())
	default:
		err = rm.ErrInvalidFunction
	}

	if err != nil {
		code := errorCode(err)
		k.log.Logf(common.SeverityDebug, "AH=%02x failed: %v (%v)", r.AH(), code, err)
		r.AX = uint16(code)
		r.SetCarry(true)
		return
	}
	r.SetCarry(false)
}

func (k *Kernel) open(r *rm.Registers) error {
	name, ok := memacc.ReadCString(k.m, r.DSDX(), MaxPath)
	if !ok {
		return rm.ErrPathNotFound
	}
	path, err := hostPath(k.root, []byte(name))
	if err != nil {
		return err
	}
	flags, err := openFlags(r.AL())
	if err != nil {
		return err
	}
	h, ok := k.freeHandle()
	if !ok {
		return rm.ErrTooManyOpen
	}

	f, err := os.OpenFile(path, flags, 0)
	if err != nil {
		return err
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		f.Close()
		return rm.ErrAccessDenied
	}
	lock, err := shareLock(path, r.AL())
	if err != nil {
		f.Close()
		return err
	}

	k.files[h] = &openFile{name: name, f: f, lock: lock}
	k.log.Logf(common.SeverityDebug, "open %q -> %s handle %d", name, path, h)
	r.AX = h
	return nil
}

func (k *Kernel) freeHandle() (uint16, bool) {
	for h := FirstFileHandle; h < MaxHandles; h++ {
		if _, used := k.files[h]; !used {
			return h, true
		}
	}
	return 0, false
}

func (k *Kernel) close(r *rm.Registers) error {
	if r.BX < FirstFileHandle {
		return nil
	}
	o, ok := k.files[r.BX]
	if !ok {
		return rm.ErrInvalidHandle
	}
	delete(k.files, r.BX)
	return o.close()
}

func (k *Kernel) read(r *rm.Registers) error {
	buf := make([]byte, r.CX)
	var n int
	switch {
	case r.BX == HandleStdin:
		n, _ = io.ReadAtLeast(k.stdin, buf, 1)
	case r.BX < FirstFileHandle:
		n = 0
	default:
		o, ok := k.files[r.BX]
		if !ok {
			return rm.ErrInvalidHandle
		}
		var err error
		n, err = io.ReadFull(o.f, buf)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return err
		}
	}
	k.m.Write(r.DSDX(), buf[:n])
	r.AX = uint16(n)
	return nil
}

func (k *Kernel) write(r *rm.Registers) error {
	data := k.m.Read(r.DSDX(), int(r.CX))
	switch {
	case r.BX == HandleStdout || r.BX == HandleStderr:
		k.stdout.Write(data)
	case r.BX < FirstFileHandle:
	default:
		o, ok := k.files[r.BX]
		if !ok {
			return rm.ErrInvalidHandle
		}
		o.written = true
		if len(data) == 0 {
			// a zero-length write truncates at the file position
			pos, err := o.f.Seek(0, io.SeekCurrent)
			if err != nil {
				return err
			}
			if err := o.f.Truncate(pos); err != nil {
				return err
			}
			break
		}
		if _, err := o.f.Write(data); err != nil {
			return err
		}
	}
	r.AX = uint16(len(data))
	return nil
}

func (k *Kernel) seek(r *rm.Registers) error {
	if r.AL() > rm.SeekEnd {
		return rm.ErrInvalidFunction
	}
	if r.BX < FirstFileHandle {
		r.DX, r.AX = 0, 0
		return nil
	}
	o, ok := k.files[r.BX]
	if !ok {
		return rm.ErrInvalidHandle
	}
	offset := int64(int32(uint32(r.CX)<<16 | uint32(r.DX)))
	// SeekSet, SeekCur and SeekEnd share their values with io.Seek*
	pos, err := o.f.Seek(offset, int(r.AL()))
	if err != nil {
		return rm.ErrInvalidFunction
	}
	r.DX, r.AX = uint16(pos>>16), uint16(pos)
	return nil
}

func (k *Kernel) ioctl(r *rm.Registers) error {
	switch r.AL() {
	case rm.IOCTLGetDevInfo:
		info, err := k.deviceInfo(r.BX)
		if err != nil {
			return err
		}
		r.DX, r.AX = info, info
		return nil
	case rm.IOCTLSetDevInfo:
		info, err := k.deviceInfo(r.BX)
		if err != nil {
			return err
		}
		if info&devInfoIsDevice == 0 || r.DH() != 0 {
			return rm.ErrInvalidFunction
		}
		return nil
	}
	return rm.ErrInvalidFunction
}

func (k *Kernel) deviceInfo(h uint16) (uint16, error) {
	switch h {
	case HandleStdin, HandleStdout, HandleStderr:
		if !k.console() {
			// redirected to a file on the host
			return devInfoDriveC, nil
		}
		return devInfoConsole, nil
	case HandleStdaux:
		return devInfoAux, nil
	case HandleStdprn:
		return devInfoPrinter, nil
	}
	o, ok := k.files[h]
	if !ok {
		return 0, rm.ErrInvalidHandle
	}
	if o.written {
		return devInfoDriveC, nil
	}
	return devInfoDriveC | devInfoClean, nil
}
