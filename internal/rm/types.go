// Package rm holds the real-mode vocabulary shared by the tracer: far
// pointers, the register file, the per-trap register snapshot and the DOS
// call numbers the tracer knows by name.
package rm

import "fmt"

// Addressing

// AddrMask wraps linear addresses at 1 MiB, as an 8086 (A20 disabled) does.
const AddrMask = 0xFFFFF

// FarPtr is a segment:offset pair.
type FarPtr struct {
	Seg uint16
	Off uint16
}

// Far builds a FarPtr.
func Far(seg, off uint16) FarPtr {
	return FarPtr{Seg: seg, Off: off}
}

// Linear returns the 20-bit physical address the pair refers to.
func (p FarPtr) Linear() uint32 {
	return (uint32(p.Seg)<<4 + uint32(p.Off)) & AddrMask
}

// Add returns p advanced by n bytes within the same segment.
func (p FarPtr) Add(n uint16) FarPtr {
	return FarPtr{Seg: p.Seg, Off: p.Off + n}
}

// IsNull reports whether p is 0000:0000.
func (p FarPtr) IsNull() bool {
	return p.Seg == 0 && p.Off == 0
}

func (p FarPtr) String() string {
	return fmt.Sprintf("%04x:%04x", p.Seg, p.Off)
}

// Register file

// Flag bits in Registers.Flags.
const (
	FlagCF uint16 = 1 << 0
	FlagZF uint16 = 1 << 6
	FlagIF uint16 = 1 << 9
)

// Registers is the 8086 register file of the simulated machine.
type Registers struct {
	AX, BX, CX, DX uint16
	SI, DI, BP, SP uint16
	CS, DS, ES, SS uint16
	IP             uint16
	Flags          uint16
}

func (r *Registers) AH() uint8 { return uint8(r.AX >> 8) }
func (r *Registers) AL() uint8 { return uint8(r.AX) }
func (r *Registers) BH() uint8 { return uint8(r.BX >> 8) }
func (r *Registers) BL() uint8 { return uint8(r.BX) }
func (r *Registers) DH() uint8 { return uint8(r.DX >> 8) }
func (r *Registers) DL() uint8 { return uint8(r.DX) }

func (r *Registers) SetAH(v uint8) { r.AX = uint16(v)<<8 | r.AX&0x00FF }
func (r *Registers) SetAL(v uint8) { r.AX = r.AX&0xFF00 | uint16(v) }

// SetAHAL loads AH and AL in one go, the usual way a caller sets up a call.
func (r *Registers) SetAHAL(ah, al uint8) { r.AX = uint16(ah)<<8 | uint16(al) }

// Carry reports the carry flag, which DOS uses to signal failure.
func (r *Registers) Carry() bool { return r.Flags&FlagCF != 0 }

// SetCarry sets or clears the carry flag.
func (r *Registers) SetCarry(on bool) {
	if on {
		r.Flags |= FlagCF
	} else {
		r.Flags &^= FlagCF
	}
}

// DSDX returns the DS:DX pair most DOS calls use for memory arguments.
func (r *Registers) DSDX() FarPtr { return FarPtr{Seg: r.DS, Off: r.DX} }

func (r *Registers) String() string {
	return fmt.Sprintf("AX=%04x BX=%04x CX=%04x DX=%04x SI=%04x DI=%04x DS=%04x ES=%04x FL=%04x",
		r.AX, r.BX, r.CX, r.DX, r.SI, r.DI, r.DS, r.ES, r.Flags)
}

// Snapshot is the immutable capture of the caller's registers at one trap.
// It is taken by value before any tracer code runs and never shared between
// trap invocations.
type Snapshot struct {
	AH, AL uint8
	BX     uint16
	CX     uint16
	DX     uint16
	DS     uint16
	ES     uint16
}

// SnapshotOf copies the argument registers out of r.
func SnapshotOf(r *Registers) Snapshot {
	return Snapshot{
		AH: r.AH(),
		AL: r.AL(),
		BX: r.BX,
		CX: r.CX,
		DX: r.DX,
		DS: r.DS,
		ES: r.ES,
	}
}

// DSDX returns the DS:DX far pointer held in the snapshot.
func (s Snapshot) DSDX() FarPtr { return FarPtr{Seg: s.DS, Off: s.DX} }

// Interrupt gates and DOS call numbers

// GateDOS is the general DOS service interrupt.
const GateDOS uint8 = 0x21

// Call is the DOS function number passed in AH.
type Call uint8

const (
	CallSetVector Call = 0x25
	CallGetVector Call = 0x35
	CallOpen      Call = 0x3D
	CallClose     Call = 0x3E
	CallRead      Call = 0x3F
	CallWrite     Call = 0x40
	CallSeek      Call = 0x42
	CallIOCTL     Call = 0x44
	CallTerminate Call = 0x4C
)

// IOCTL sub-functions (AL) for CallIOCTL.
const (
	IOCTLGetDevInfo uint8 = 0x00
	IOCTLSetDevInfo uint8 = 0x01
)

// Seek origins for CallSeek (AL).
const (
	SeekSet uint8 = 0
	SeekCur uint8 = 1
	SeekEnd uint8 = 2
)

// ErrorCode is a DOS error code returned in AX with CF set.
type ErrorCode uint16

const (
	ErrInvalidFunction ErrorCode = 0x01
	ErrFileNotFound    ErrorCode = 0x02
	ErrPathNotFound    ErrorCode = 0x03
	ErrTooManyOpen     ErrorCode = 0x04
	ErrAccessDenied    ErrorCode = 0x05
	ErrInvalidHandle   ErrorCode = 0x06
	ErrInvalidAccess   ErrorCode = 0x0C
	ErrSharing         ErrorCode = 0x20
)

func (e ErrorCode) Error() string {
	switch e {
	case ErrInvalidFunction:
		return "invalid function number"
	case ErrFileNotFound:
		return "file not found"
	case ErrPathNotFound:
		return "path not found"
	case ErrTooManyOpen:
		return "too many open files"
	case ErrAccessDenied:
		return "access denied"
	case ErrInvalidHandle:
		return "invalid handle"
	case ErrInvalidAccess:
		return "invalid access code"
	case ErrSharing:
		return "sharing violation"
	default:
		return fmt.Sprintf("dos error %02xh", uint16(e))
	}
}
