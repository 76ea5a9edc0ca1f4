package common

import (
	"fmt"
)

// ConventionalMemorySize is the RAM below the adapter area (640 KiB). The
// upper 384 KiB of the address space is left for ROM and memory images.
const ConventionalMemorySize = 0xA0000

// MemoryBuffer implements MemoryAccessor for a single contiguous region of memory.
// It backs the simulated machine's conventional memory and memory images
// loaded for decoding.
type MemoryBuffer struct {
	// BaseAddr is the starting address of this memory region
	BaseAddr uint64
	// Data holds the actual memory contents
	Data []byte
}

// NewMemoryBuffer creates a new memory buffer for the given address range.
func NewMemoryBuffer(baseAddr uint64, data []byte) *MemoryBuffer {
	return &MemoryBuffer{
		BaseAddr: baseAddr,
		Data:     data,
	}
}

// NewConventionalMemory returns a zeroed buffer spanning conventional RAM
// from linear address 0.
func NewConventionalMemory() *MemoryBuffer {
	return NewMemoryBuffer(0, make([]byte, ConventionalMemorySize))
}

// span returns the buffer offset for addr and the number of bytes
// available from there, capped at want.
func (mb *MemoryBuffer) span(addr uint64, want int) (uint64, int, error) {
	if addr < mb.BaseAddr {
		return 0, 0, fmt.Errorf("address 0x%05X is before buffer base 0x%05X", addr, mb.BaseAddr)
	}
	offset := addr - mb.BaseAddr
	if offset >= uint64(len(mb.Data)) {
		return 0, 0, fmt.Errorf("address 0x%05X is beyond buffer range (0x%05X - 0x%05X)",
			addr, mb.BaseAddr, mb.EndAddr())
	}
	available := uint64(len(mb.Data)) - offset
	n := uint64(want)
	if n > available {
		n = available
	}
	return offset, int(n), nil
}

// ReadMemory implements MemoryAccessor.ReadMemory.
func (mb *MemoryBuffer) ReadMemory(addr uint64, data []byte) (int, error) {
	offset, n, err := mb.span(addr, len(data))
	if err != nil {
		return 0, err
	}
	copy(data, mb.Data[offset:offset+uint64(n)])
	return n, nil
}

// WriteMemory implements MemoryWriter.WriteMemory. Writes running past the
// end of the region are cut short and report the stored length.
func (mb *MemoryBuffer) WriteMemory(addr uint64, data []byte) (int, error) {
	offset, n, err := mb.span(addr, len(data))
	if err != nil {
		return 0, err
	}
	copy(mb.Data[offset:offset+uint64(n)], data[:n])
	return n, nil
}

// Contains checks if the given address falls within this buffer's range.
func (mb *MemoryBuffer) Contains(addr uint64) bool {
	return addr >= mb.BaseAddr && addr < mb.BaseAddr+uint64(len(mb.Data))
}

// EndAddr returns the address immediately after the last byte in this buffer.
func (mb *MemoryBuffer) EndAddr() uint64 {
	return mb.BaseAddr + uint64(len(mb.Data))
}
