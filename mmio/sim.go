package mmio

import (
	"fmt"
	"sync"
)

// Sim is an in-memory register file standing in for device
// memory. It records every register access.
type Sim struct {
	// Refuse, if set, is returned by Map.
	Refuse error

	mu     sync.Mutex
	mem    map[uint64]uint32
	hooks  map[uint64]func(uint32) uint32
	trace  []Access
	mapped int
}

// Access is a recorded register access.
type Access struct {
	Write bool
	Addr  uint64
	Value uint32
}

func (a Access) String() string {
	op := "R"
	if a.Write {
		op = "W"
	}
	return fmt.Sprintf("%s %#010x %#010x", op, a.Addr, a.Value)
}

func NewSim() *Sim {
	return &Sim{
		mem:   make(map[uint64]uint32),
		hooks: make(map[uint64]func(uint32) uint32),
	}
}

// Hook installs fn to transform values stored at addr, for
// emulating registers whose read back differs from what was
// written.
func (s *Sim) Hook(addr uint64, fn func(v uint32) uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[addr] = fn
}

// Poke sets a register without recording an access.
func (s *Sim) Poke(addr uint64, v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mem[addr] = v
}

// Peek reads a register without recording an access.
func (s *Sim) Peek(addr uint64) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem[addr]
}

// Trace returns the accesses recorded so far.
func (s *Sim) Trace() []Access {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Access(nil), s.trace...)
}

func (s *Sim) ResetTrace() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trace = nil
}

// Mapped returns the number of open windows.
func (s *Sim) Mapped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapped
}

func (s *Sim) Map(base uint64, size int) (Window, error) {
	if s.Refuse != nil {
		return nil, s.Refuse
	}
	if size <= 0 || size%4 != 0 || base%4 != 0 {
		return nil, fmt.Errorf("mmio: invalid window %#x+%d", base, size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapped++
	return &simWindow{sim: s, base: base, size: size}, nil
}

type simWindow struct {
	sim    *Sim
	base   uint64
	size   int
	closed bool
}

func (w *simWindow) addr(off uint32) uint64 {
	if w.closed {
		panic("mmio: access to closed window")
	}
	if off%4 != 0 || int(off)+4 > w.size {
		panic(fmt.Sprintf("mmio: register offset %#x outside window of %d bytes", off, w.size))
	}
	return w.base + uint64(off)
}

func (w *simWindow) Load32(off uint32) uint32 {
	a := w.addr(off)
	s := w.sim
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.mem[a]
	s.trace = append(s.trace, Access{Addr: a, Value: v})
	return v
}

func (w *simWindow) Store32(off uint32, v uint32) {
	a := w.addr(off)
	s := w.sim
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trace = append(s.trace, Access{Write: true, Addr: a, Value: v})
	if h := s.hooks[a]; h != nil {
		v = h(v)
	}
	s.mem[a] = v
}

func (w *simWindow) Size() int {
	return w.size
}

func (w *simWindow) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	w.sim.mu.Lock()
	defer w.sim.mu.Unlock()
	w.sim.mapped--
	return nil
}
