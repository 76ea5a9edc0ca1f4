// Package machine is a minimal real-mode PC: conventional memory with the
// vector table at the bottom, a register file, and Go interrupt handlers
// reachable through far addresses. It is the platform the tracer runs on.
package machine

import (
	"errors"
	"fmt"

	"github.com/adam-ii/dos-int21h/common"
	"github.com/adam-ii/dos-int21h/internal/ivt"
	"github.com/adam-ii/dos-int21h/internal/memacc"
	"github.com/adam-ii/dos-int21h/internal/rm"
)

var (
	// ErrNoHandler is the panic value when control reaches a far address
	// with no code behind it. On real hardware that is a crash.
	ErrNoHandler   = errors.New("no handler at address")
	ErrOutOfMemory = errors.New("data segment exhausted")
)

// UpperMemoryBase is the first linear address above conventional RAM. Memory
// images are mapped from here up.
const UpperMemoryBase = common.ConventionalMemorySize

// DataSegment is the program's data segment. Allocation starts past a
// PSP-sized gap.
const (
	DataSegment uint16 = 0x1000
	dataStart   uint16 = 0x0100
)

// Machine is one simulated PC. Regs is the live register file: handlers
// read their arguments from it and leave their results in it.
type Machine struct {
	Regs     rm.Registers
	Mem      *memacc.Mapper
	IVT      *ivt.Table
	Handlers *ivt.Registry

	next int
	log  common.Logger
}

// New boots a machine with zeroed conventional memory and an empty vector
// table.
func New(log common.Logger) (*Machine, error) {
	ram := common.NewConventionalMemory()
	mem := memacc.NewMapper()
	if err := mem.AddAccessor(memacc.NewMemoryBufferAccessor(ram)); err != nil {
		return nil, err
	}
	table, err := ivt.NewTable(mem)
	if err != nil {
		return nil, err
	}
	m := &Machine{
		Mem:      mem,
		IVT:      table,
		Handlers: ivt.NewRegistry(),
		next:     int(dataStart),
		log:      common.OrNoOp(log),
	}
	m.Regs.DS = DataSegment
	m.Regs.ES = DataSegment
	m.Regs.SS = DataSegment
	m.Regs.SP = 0xFFFE
	m.Regs.Flags = rm.FlagIF
	return m, nil
}

// LoadImage maps a raw memory image read-only at base. Images live above
// conventional RAM.
func (m *Machine) LoadImage(path string, base uint64) error {
	if base < UpperMemoryBase {
		return fmt.Errorf("%w: image base 0x%05x is inside conventional memory", memacc.ErrRangeInvalid, base)
	}
	acc, err := memacc.NewFileAccessor(path, base, 0, 0)
	if err != nil {
		return err
	}
	if err := m.Mem.AddAccessor(acc); err != nil {
		acc.Close()
		return err
	}
	m.log.Logf(common.SeverityInfo, "mapped %s", acc)
	return nil
}

// Close unmaps all memory, images included. The machine is unusable after.
func (m *Machine) Close() {
	m.Mem.RemoveAllAccessors()
}

// Register places h in code memory and returns its entry point.
func (m *Machine) Register(name string, h ivt.Handler) rm.FarPtr {
	return m.Handlers.Register(name, h)
}

// Int raises software interrupt n: control goes to whatever the vector
// table holds for n, and comes back when that handler returns.
func (m *Machine) Int(n uint8) {
	m.Call(m.IVT.Get(n))
}

// Call transfers control to the code at ptr and returns when it does. An
// address with no handler panics with ErrNoHandler.
func (m *Machine) Call(ptr rm.FarPtr) {
	h, ok := m.Handlers.Lookup(ptr)
	if !ok {
		panic(fmt.Errorf("%w: %s (%s)", ErrNoHandler, m.Handlers.Name(ptr), m.Regs.String()))
	}
	h()
}

// CaptureRegisters implements trap.Platform.
func (m *Machine) CaptureRegisters() rm.Snapshot {
	return rm.SnapshotOf(&m.Regs)
}

// InvokePrevious implements trap.Platform. Registers are shared, so the
// previous handler sees exactly what the trap saw.
func (m *Machine) InvokePrevious(prev rm.FarPtr) {
	m.Call(prev)
}

// ReadFar implements memacc.FarReader.
func (m *Machine) ReadFar(ptr rm.FarPtr, maxLen int) []byte {
	return m.Mem.ReadFar(ptr, maxLen)
}

// Alloc reserves n bytes in the data segment. Memory is never freed.
func (m *Machine) Alloc(n int) (rm.FarPtr, error) {
	if n < 0 || m.next+n > 0x10000 {
		return rm.FarPtr{}, fmt.Errorf("%w: %d bytes requested, %d left", ErrOutOfMemory, n, 0x10000-m.next)
	}
	ptr := rm.Far(DataSegment, uint16(m.next))
	m.next += n
	return ptr, nil
}

// PutString stores s with a terminating NUL in the data segment.
func (m *Machine) PutString(s string) (rm.FarPtr, error) {
	ptr, err := m.Alloc(len(s) + 1)
	if err != nil {
		return ptr, err
	}
	m.Write(ptr, append([]byte(s), 0))
	return ptr, nil
}

// Read copies n bytes at ptr out of memory.
func (m *Machine) Read(ptr rm.FarPtr, n int) []byte {
	return m.Mem.ReadFar(ptr, n)
}

// Write stores data at ptr and returns the number of bytes stored.
func (m *Machine) Write(ptr rm.FarPtr, data []byte) int {
	return m.Mem.WriteFar(ptr, data)
}

// DOSVectors reaches the vector table the way a program does: setting a
// vector is a DOS call through the service gate, so a tracer hooked into
// that gate sees it. Reading peeks at the table, which has no side effects.
type DOSVectors struct {
	m    *Machine
	gate uint8
}

// NewDOSVectors returns vector accessors issuing their calls on gate.
func NewDOSVectors(m *Machine, gate uint8) *DOSVectors {
	return &DOSVectors{m: m, gate: gate}
}

func (v *DOSVectors) Get(slot uint8) rm.FarPtr {
	return v.m.IVT.Get(slot)
}

// Set issues SET INTERRUPT VECTOR. The caller's registers are preserved.
func (v *DOSVectors) Set(slot uint8, handler rm.FarPtr) {
	saved := v.m.Regs
	v.m.Regs.SetAHAL(uint8(rm.CallSetVector), slot)
	v.m.Regs.DS = handler.Seg
	v.m.Regs.DX = handler.Off
	v.m.Int(v.gate)
	v.m.Regs = saved
}
