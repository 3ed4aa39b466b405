// Package mmio provides access to memory-mapped device registers.
package mmio

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Window is a block of 32-bit device registers mapped into
// the address space. Offsets are in bytes from the start of
// the window and must be word aligned.
type Window interface {
	Load32(off uint32) uint32
	Store32(off uint32, v uint32)
	// Size returns the size of the window in bytes.
	Size() int
	// Close unmaps the window. The window must not be
	// accessed afterwards.
	Close() error
}

// Mapper maps physical register blocks.
type Mapper interface {
	Map(base uint64, size int) (Window, error)
}

var ErrClosed = errors.New("mmio: window closed")

// mapping is a Window over mapped memory.
type mapping struct {
	regs  []uint32
	unmap func() error
}

func newMapping(mem []byte, unmap func() error) (*mapping, error) {
	if len(mem) == 0 || len(mem)%4 != 0 {
		return nil, fmt.Errorf("mmio: invalid mapping size %d", len(mem))
	}
	if uintptr(unsafe.Pointer(&mem[0]))%4 != 0 {
		return nil, errors.New("mmio: unaligned mapping")
	}
	return &mapping{
		regs:  unsafe.Slice((*uint32)(unsafe.Pointer(&mem[0])), len(mem)/4),
		unmap: unmap,
	}, nil
}

func (m *mapping) Load32(off uint32) uint32 {
	return atomic.LoadUint32(&m.regs[index(off)])
}

func (m *mapping) Store32(off uint32, v uint32) {
	atomic.StoreUint32(&m.regs[index(off)], v)
}

func (m *mapping) Size() int {
	return len(m.regs) * 4
}

func (m *mapping) Close() error {
	if m.unmap == nil {
		return ErrClosed
	}
	unmap := m.unmap
	m.unmap = nil
	m.regs = nil
	return unmap()
}

func index(off uint32) uint32 {
	if off%4 != 0 {
		panic(fmt.Sprintf("mmio: unaligned register offset %#x", off))
	}
	return off / 4
}

// pageSpan returns the page aligned start and length covering
// [base, base+size) together with the offset of base in the span.
func pageSpan(base uint64, size int, page int) (start uint64, length int, delta int) {
	p := uint64(page)
	start = base &^ (p - 1)
	delta = int(base - start)
	length = (delta + size + page - 1) &^ (page - 1)
	return
}
