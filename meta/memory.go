package meta

import "sync"

// ---------------------------------------------------------------------------
// MemoryView: read access to VM-owned metadata memory
// ---------------------------------------------------------------------------

// MemoryView provides pointer-width reads from the VM's live metadata
// memory. The annotation-presence probe is the only consumer; keeping the
// capability this narrow makes every raw-memory call site auditable.
//
// Reads of unmapped addresses return 0, matching a null pointer in the
// metadata structures.
type MemoryView interface {
	ReadPointer(addr uintptr) uintptr
}

// ---------------------------------------------------------------------------
// SparseMemory: map-backed metadata memory
// ---------------------------------------------------------------------------

// SparseMemory is a MemoryView over synthesized metadata. Restored
// snapshots materialize their annotation pointer tables into one, and tests
// use it to lay out metadata deterministically.
//
// Address 0 is never allocated, so a zero pointer always reads as null.
type SparseMemory struct {
	mu    sync.RWMutex
	words map[uintptr]uintptr
	next  uintptr
}

// NewSparseMemory creates an empty metadata memory.
func NewSparseMemory() *SparseMemory {
	return &SparseMemory{
		words: make(map[uintptr]uintptr),
		next:  0x1000,
	}
}

// ReadPointer returns the pointer stored at addr, or 0 if none was written.
func (m *SparseMemory) ReadPointer(addr uintptr) uintptr {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.words[addr]
}

// WritePointer stores a pointer value at addr.
func (m *SparseMemory) WritePointer(addr, value uintptr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words[addr] = value
}

// Alloc reserves size bytes of fresh metadata address space and returns the
// base address. The region reads as zero until written.
func (m *SparseMemory) Alloc(size int) uintptr {
	m.mu.Lock()
	defer m.mu.Unlock()

	base := m.next
	// Keep regions 16-byte aligned and non-adjacent.
	m.next += uintptr((size + 31) &^ 15)
	return base
}
