// Package workload holds the programs run under the tracer: a small C-style
// runtime issuing DOS calls through the service gate, in two layers, and the
// demo runs that exercise them.
package workload

import (
	"github.com/adam-ii/dos-int21h/internal/machine"
	"github.com/adam-ii/dos-int21h/internal/rm"
)

// Open modes for LowLevel.Open (AL of the OPEN call).
const (
	ORdOnly uint8 = 0x00
	OWrOnly uint8 = 0x01
	ORdWr   uint8 = 0x02
)

// LowLevel is the unbuffered handle layer (io.h): each function is one DOS
// call. Errors are the DOS error codes, as rm.ErrorCode.
type LowLevel struct {
	m    *machine.Machine
	gate uint8
}

// NewLowLevel returns the handle layer issuing calls on gate.
func NewLowLevel(m *machine.Machine, gate uint8) *LowLevel {
	return &LowLevel{m: m, gate: gate}
}

// Machine is the machine the layer runs on.
func (l *LowLevel) Machine() *machine.Machine { return l.m }

func (l *LowLevel) call(ah rm.Call, al uint8, set func(r *rm.Registers)) (uint16, error) {
	r := &l.m.Regs
	r.SetAHAL(uint8(ah), al)
	if set != nil {
		set(r)
	}
	l.m.Int(l.gate)
	if r.Carry() {
		return 0, rm.ErrorCode(r.AX)
	}
	return r.AX, nil
}

// Open opens the file whose ASCIZ name is at name.
func (l *LowLevel) Open(name rm.FarPtr, mode uint8) (uint16, error) {
	return l.call(rm.CallOpen, mode, func(r *rm.Registers) {
		r.DS, r.DX = name.Seg, name.Off
	})
}

// Read reads up to n bytes into buf.
func (l *LowLevel) Read(fd uint16, buf rm.FarPtr, n uint16) (uint16, error) {
	return l.call(rm.CallRead, 0, func(r *rm.Registers) {
		r.BX, r.CX = fd, n
		r.DS, r.DX = buf.Seg, buf.Off
	})
}

// Write writes n bytes from buf.
func (l *LowLevel) Write(fd uint16, buf rm.FarPtr, n uint16) (uint16, error) {
	return l.call(rm.CallWrite, 0, func(r *rm.Registers) {
		r.BX, r.CX = fd, n
		r.DS, r.DX = buf.Seg, buf.Off
	})
}

// Lseek moves the file position and returns the new one.
func (l *LowLevel) Lseek(fd uint16, offset int32, origin uint8) (int32, error) {
	lo, err := l.call(rm.CallSeek, origin, func(r *rm.Registers) {
		r.BX = fd
		r.CX, r.DX = uint16(uint32(offset)>>16), uint16(offset)
	})
	if err != nil {
		return -1, err
	}
	return int32(uint32(l.m.Regs.DX)<<16 | uint32(lo)), nil
}

// Tell is Lseek(fd, 0, SEEK_CUR).
func (l *LowLevel) Tell(fd uint16) (int32, error) {
	return l.Lseek(fd, 0, rm.SeekCur)
}

// DeviceInfo issues IOCTL GET DEVICE INFORMATION.
func (l *LowLevel) DeviceInfo(fd uint16) (uint16, error) {
	return l.call(rm.CallIOCTL, rm.IOCTLGetDevInfo, func(r *rm.Registers) {
		r.BX = fd
	})
}

// Close closes fd.
func (l *LowLevel) Close(fd uint16) error {
	_, err := l.call(rm.CallClose, 0, func(r *rm.Registers) {
		r.BX = fd
	})
	return err
}
