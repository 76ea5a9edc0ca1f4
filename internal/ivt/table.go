// Package ivt models the real-mode interrupt vector table and the chain of
// handlers installed in one of its slots.
package ivt

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/adam-ii/dos-int21h/common"
	"github.com/adam-ii/dos-int21h/internal/rm"
)

// NumVectors is the number of slots in the table.
const NumVectors = 256

// TableBase is the linear address of vector 0. Each vector is four bytes:
// offset word, then segment word, little-endian.
const TableBase = 0x00000

var ErrTableMemory = errors.New("vector table memory not accessible")

// Vectors is the read/write primitive pair on the vector table. The
// primitives cannot fail once the table exists.
type Vectors interface {
	Get(slot uint8) rm.FarPtr
	Set(slot uint8, handler rm.FarPtr)
}

// Table is the vector table held in the machine's memory at 0000:0000.
type Table struct {
	mem common.ReadWriteMemory
}

// NewTable checks that the 1 KiB table area is mapped and writable.
func NewTable(mem common.ReadWriteMemory) (*Table, error) {
	buf := make([]byte, NumVectors*4)
	n, err := mem.ReadMemory(TableBase, buf)
	if err != nil || n != len(buf) {
		return nil, fmt.Errorf("%w: read %d of %d bytes: %v", ErrTableMemory, n, len(buf), err)
	}
	// write the same content back to prove the area is RAM
	n, err = mem.WriteMemory(TableBase, buf)
	if err != nil || n != len(buf) {
		return nil, fmt.Errorf("%w: write %d of %d bytes: %v", ErrTableMemory, n, len(buf), err)
	}
	return &Table{mem: mem}, nil
}

func vectorAddr(slot uint8) uint64 {
	return TableBase + uint64(slot)*4
}

// Get reads the handler address registered at slot.
func (t *Table) Get(slot uint8) rm.FarPtr {
	var b [4]byte
	t.mem.ReadMemory(vectorAddr(slot), b[:])
	return rm.FarPtr{
		Off: binary.LittleEndian.Uint16(b[0:2]),
		Seg: binary.LittleEndian.Uint16(b[2:4]),
	}
}

// Set registers handler at slot.
func (t *Table) Set(slot uint8, handler rm.FarPtr) {
	var b [4]byte
	binary.LittleEndian.PutUint16(b[0:2], handler.Off)
	binary.LittleEndian.PutUint16(b[2:4], handler.Seg)
	t.mem.WriteMemory(vectorAddr(slot), b[:])
}
