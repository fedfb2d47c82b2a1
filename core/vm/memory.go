package vm

import "github.com/holiman/uint256"

// Memory is the byte-addressable scratch space of a call frame. It
// grows in 32-byte words; expansion cost is charged by the interpreter
// before Resize is called.
type Memory struct {
	store       []byte
	lastGasCost uint64
}

// NewMemory returns a new, empty memory.
func NewMemory() *Memory {
	return &Memory{}
}

// Set copies value into memory at the given offset. The caller must
// already have expanded the memory to cover the write.
func (m *Memory) Set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	if offset+size > uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	copy(m.store[offset:offset+size], value)
}

// Set32 writes val at the given offset as a big-endian 32-byte word.
func (m *Memory) Set32(offset uint64, val *uint256.Int) {
	if offset+32 > uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	val.PutUint256(m.store[offset : offset+32])
}

// Resize grows memory to size bytes. Memory never shrinks.
func (m *Memory) Resize(size uint64) {
	if uint64(len(m.store)) < size {
		m.store = append(m.store, make([]byte, size-uint64(len(m.store)))...)
	}
}

// Get returns a copy of [offset, offset+size).
func (m *Memory) Get(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, m.store[offset:offset+size])
	return out
}

// GetPtr returns a direct reference to [offset, offset+size).
func (m *Memory) GetPtr(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	return m.store[offset : offset+size]
}

// Copy copies size bytes from src to dst inside memory, handling overlap.
func (m *Memory) Copy(dst, src, size uint64) {
	if size == 0 {
		return
	}
	copy(m.store[dst:dst+size], m.store[src:src+size])
}

// Len returns the current memory size in bytes.
func (m *Memory) Len() int {
	return len(m.store)
}

// Data returns the full backing slice.
func (m *Memory) Data() []byte {
	return m.store
}
