package common

// MemoryAccessor defines an interface for reading the traced machine's memory.
// The decoder uses it to inspect far-pointer arguments (file names, buffers)
// without knowing whether memory is a test fixture, a loaded image or the
// live simulated machine.
//
// Addresses are 20-bit real-mode linear addresses held in a uint64.
type MemoryAccessor interface {
	// ReadMemory reads bytes from memory at the specified address.
	// Returns the number of bytes successfully read and any error encountered.
	//
	// Implementations should:
	// - Return partial reads when the requested range exceeds available memory
	// - Return an error for completely invalid addresses
	ReadMemory(addr uint64, data []byte) (int, error)
}

// MemoryWriter is implemented by memory that the simulated machine and its
// services may store into. The tracer itself never writes caller memory.
type MemoryWriter interface {
	WriteMemory(addr uint64, data []byte) (int, error)
}

// ReadWriteMemory combines both halves.
type ReadWriteMemory interface {
	MemoryAccessor
	MemoryWriter
}
