// Package memacc maps the simulated real-mode address space onto memory
// accessors and exposes the read-only far-pointer view the decoder uses.
package memacc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/adam-ii/dos-int21h/common"
	"github.com/adam-ii/dos-int21h/internal/rm"
)

// Common errors
var (
	ErrMemAccOverlap = errors.New("memory accessor overlap")
	ErrRangeInvalid  = errors.New("memory accessor range invalid")
	ErrAccessInvalid = errors.New("memory access invalid")
	ErrReadOnly      = errors.New("memory region is read-only")
	ErrFileAccess    = errors.New("file access error")
)

// Accessor is the interface for memory access objects. Ranges are
// inclusive, in 20-bit linear addresses.
type Accessor interface {
	StartAddr() uint64
	EndAddr() uint64
	Read(addr uint64, reqBytes uint32) ([]byte, error)
	String() string
}

// Writable is implemented by accessors backed by RAM.
type Writable interface {
	Write(addr uint64, data []byte) (int, error)
}

// BaseAccessor provides common fields for accessors.
type BaseAccessor struct {
	startAddr uint64
	endAddr   uint64
}

func (b *BaseAccessor) StartAddr() uint64 { return b.startAddr }
func (b *BaseAccessor) EndAddr() uint64   { return b.endAddr }
func (b *BaseAccessor) InRange(addr uint64) bool {
	return addr >= b.startAddr && addr <= b.endAddr
}
func (b *BaseAccessor) BytesInRange(addr uint64, reqBytes uint32) uint32 {
	if !b.InRange(addr) {
		return 0
	}
	available := b.endAddr - addr + 1
	if uint64(reqBytes) > available {
		return uint32(available)
	}
	return reqBytes
}

// -----------------------------------------------------------------------------
// Buffer Accessor
// -----------------------------------------------------------------------------

// BufferAccessor serves a RAM region out of a common.MemoryBuffer.
type BufferAccessor struct {
	BaseAccessor
	mem *common.MemoryBuffer
}

func NewBufferAccessor(addr uint64, data []byte) *BufferAccessor {
	return NewMemoryBufferAccessor(common.NewMemoryBuffer(addr, data))
}

// NewMemoryBufferAccessor maps an existing buffer at its base address.
func NewMemoryBufferAccessor(mb *common.MemoryBuffer) *BufferAccessor {
	return &BufferAccessor{
		BaseAccessor: BaseAccessor{
			startAddr: mb.BaseAddr,
			endAddr:   mb.EndAddr() - 1,
		},
		mem: mb,
	}
}

func (b *BufferAccessor) Read(addr uint64, reqBytes uint32) ([]byte, error) {
	count := b.BytesInRange(addr, reqBytes)
	if count == 0 {
		return nil, nil
	}
	offset := addr - b.startAddr
	return b.mem.Data[offset : offset+uint64(count)], nil
}

func (b *BufferAccessor) Write(addr uint64, data []byte) (int, error) {
	if b.BytesInRange(addr, uint32(len(data))) == 0 {
		return 0, nil
	}
	return b.mem.WriteMemory(addr, data)
}

func (b *BufferAccessor) String() string {
	return fmt.Sprintf("BuffAcc; Range::0x%05x:0x%05x", b.startAddr, b.endAddr)
}

// -----------------------------------------------------------------------------
// File Accessor
// -----------------------------------------------------------------------------

// FileAccessor serves a raw memory image from disk, read-only.
type FileAccessor struct {
	BaseAccessor
	filePath   string
	file       *os.File
	fileOffset int64
	mu         sync.Mutex
}

// NewFileAccessor maps size bytes of the file at path, starting at offset,
// to startAddr. A zero size maps the rest of the file.
func NewFileAccessor(path string, startAddr uint64, offset int64, size int64) (*FileAccessor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileAccess, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrFileAccess, err)
	}
	fileSize := info.Size()

	if size == 0 {
		size = fileSize - offset
	}
	if offset < 0 || size <= 0 || offset+size > fileSize {
		f.Close()
		return nil, fmt.Errorf("%w: %s offset %d size %d exceeds file size %d", ErrRangeInvalid, path, offset, size, fileSize)
	}
	if startAddr+uint64(size)-1 > rm.AddrMask {
		f.Close()
		return nil, fmt.Errorf("%w: image %s does not fit below 1 MiB at 0x%05x", ErrRangeInvalid, path, startAddr)
	}

	return &FileAccessor{
		BaseAccessor: BaseAccessor{
			startAddr: startAddr,
			endAddr:   startAddr + uint64(size) - 1,
		},
		filePath:   path,
		file:       f,
		fileOffset: offset,
	}, nil
}

func (f *FileAccessor) Read(addr uint64, reqBytes uint32) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := f.BytesInRange(addr, reqBytes)
	if count == 0 {
		return nil, nil
	}

	data := make([]byte, count)
	n, err := f.file.ReadAt(data, f.fileOffset+int64(addr-f.startAddr))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", ErrFileAccess, err)
	}
	return data[:n], nil
}

func (f *FileAccessor) Close() error {
	return f.file.Close()
}

func (f *FileAccessor) String() string {
	return fmt.Sprintf("FileAcc; Range::0x%05x:0x%05x; Filename=%s", f.startAddr, f.endAddr, f.filePath)
}

// -----------------------------------------------------------------------------
// Far pointer view
// -----------------------------------------------------------------------------

// FarReader is the read-only memory capability handed to the decoder.
// ReadFar returns at most maxLen bytes starting at ptr; fewer when memory
// ends or is unmapped. Offsets wrap inside the segment as on the 8086.
type FarReader interface {
	ReadFar(ptr rm.FarPtr, maxLen int) []byte
}

// FarReaderFunc adapts a function to FarReader.
type FarReaderFunc func(ptr rm.FarPtr, maxLen int) []byte

func (f FarReaderFunc) ReadFar(ptr rm.FarPtr, maxLen int) []byte {
	return f(ptr, maxLen)
}

// ReadCString reads a NUL-terminated string at ptr, looking at no more than
// max bytes. The second result is false when no terminator was found.
func ReadCString(r FarReader, ptr rm.FarPtr, max int) (string, bool) {
	b := r.ReadFar(ptr, max)
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), true
		}
	}
	return string(b), false
}

// segmentRuns calls fn for each linear run covering n bytes at ptr, splitting
// where the offset wraps to 0000 and where the address wraps past 1 MiB.
// fn returns false to stop early.
func segmentRuns(ptr rm.FarPtr, n int, fn func(linear uint64, size int) bool) {
	for n > 0 {
		linear := ptr.Linear()
		size := n
		if room := 0x10000 - int(ptr.Off); size > room {
			size = room
		}
		if room := rm.AddrMask + 1 - int(linear); size > room {
			size = room
		}
		if !fn(uint64(linear), size) {
			return
		}
		n -= size
		ptr = ptr.Add(uint16(size))
	}
}

// -----------------------------------------------------------------------------
// Mapper
// -----------------------------------------------------------------------------

// Mapper holds the non-overlapping accessors that make up the address space.
type Mapper struct {
	accessors []Accessor
	accCurr   Accessor
}

func NewMapper() *Mapper {
	return &Mapper{
		accessors: make([]Accessor, 0),
	}
}

// AddAccessor adds acc to the map. Accessors may not overlap.
func (m *Mapper) AddAccessor(acc Accessor) error {
	newStart := acc.StartAddr()
	newEnd := acc.EndAddr()
	if newEnd < newStart || newEnd > rm.AddrMask {
		return fmt.Errorf("%w: 0x%05x-0x%05x", ErrRangeInvalid, newStart, newEnd)
	}

	for _, existing := range m.accessors {
		// start1 <= end2 && start2 <= end1
		if existing.StartAddr() <= newEnd && newStart <= existing.EndAddr() {
			return fmt.Errorf("%w: %s conflicts with %s", ErrMemAccOverlap, acc, existing)
		}
	}

	m.accessors = append(m.accessors, acc)
	return nil
}

// RemoveAllAccessors drops every accessor, closing file accessors.
func (m *Mapper) RemoveAllAccessors() {
	for _, acc := range m.accessors {
		if fa, ok := acc.(*FileAccessor); ok {
			fa.Close()
		}
	}
	m.accessors = nil
	m.accCurr = nil
}

func (m *Mapper) GetAccessors() []Accessor {
	return m.accessors
}

func (m *Mapper) findAccessor(addr uint64) Accessor {
	if m.accCurr != nil && m.accCurr.StartAddr() <= addr && m.accCurr.EndAddr() >= addr {
		return m.accCurr
	}
	for _, acc := range m.accessors {
		if addr < acc.StartAddr() || addr > acc.EndAddr() {
			continue
		}
		m.accCurr = acc
		return acc
	}
	return nil
}

// ReadMemory implements common.MemoryAccessor. Reads continue across
// adjacent accessors; a gap ends the read short.
func (m *Mapper) ReadMemory(addr uint64, data []byte) (int, error) {
	total := 0
	for total < len(data) {
		acc := m.findAccessor(addr + uint64(total))
		if acc == nil {
			if total == 0 {
				return 0, fmt.Errorf("%w: 0x%05x", ErrAccessInvalid, addr)
			}
			break
		}
		b, err := acc.Read(addr+uint64(total), uint32(len(data)-total))
		if err != nil {
			return total, err
		}
		if len(b) == 0 {
			break
		}
		total += copy(data[total:], b)
	}
	return total, nil
}

// WriteMemory implements common.MemoryWriter.
func (m *Mapper) WriteMemory(addr uint64, data []byte) (int, error) {
	total := 0
	for total < len(data) {
		acc := m.findAccessor(addr + uint64(total))
		if acc == nil {
			if total == 0 {
				return 0, fmt.Errorf("%w: 0x%05x", ErrAccessInvalid, addr)
			}
			break
		}
		w, ok := acc.(Writable)
		if !ok {
			return total, fmt.Errorf("%w: %s", ErrReadOnly, acc)
		}
		n, err := w.Write(addr+uint64(total), data[total:])
		if err != nil {
			return total + n, err
		}
		if n == 0 {
			break
		}
		total += n
	}
	return total, nil
}

// ReadFar implements FarReader.
func (m *Mapper) ReadFar(ptr rm.FarPtr, maxLen int) []byte {
	out := make([]byte, 0, maxLen)
	segmentRuns(ptr, maxLen, func(linear uint64, size int) bool {
		buf := make([]byte, size)
		n, err := m.ReadMemory(linear, buf)
		out = append(out, buf[:n]...)
		return err == nil && n == size
	})
	return out
}

// WriteFar stores data at ptr and returns how many bytes landed.
func (m *Mapper) WriteFar(ptr rm.FarPtr, data []byte) int {
	written := 0
	segmentRuns(ptr, len(data), func(linear uint64, size int) bool {
		n, err := m.WriteMemory(linear, data[written:written+size])
		written += n
		return err == nil && n == size
	})
	return written
}
