package mmio

import (
	"errors"
	"testing"
	"unsafe"
)

func TestMapping(t *testing.T) {
	backing := make([]uint32, 8)
	mem := unsafe.Slice((*byte)(unsafe.Pointer(&backing[0])), len(backing)*4)
	unmapped := 0
	m, err := newMapping(mem, func() error {
		unmapped++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := m.Size(), 32; got != want {
		t.Errorf("size %d, want %d", got, want)
	}
	m.Store32(0x14, 0xdeadbeef)
	if backing[5] != 0xdeadbeef {
		t.Errorf("store landed at wrong word: %#x", backing)
	}
	backing[4] = 1234
	if got := m.Load32(0x10); got != 1234 {
		t.Errorf("load 0x10 = %d, want 1234", got)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second close returned %v, want %v", err, ErrClosed)
	}
	if unmapped != 1 {
		t.Errorf("unmapped %d times", unmapped)
	}
}

func TestMappingRejectsOddSizes(t *testing.T) {
	if _, err := newMapping(make([]byte, 6), nil); err == nil {
		t.Error("6 byte mapping accepted")
	}
	if _, err := newMapping(nil, nil); err == nil {
		t.Error("empty mapping accepted")
	}
}

func TestUnalignedOffsetPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("unaligned access did not panic")
		}
	}()
	index(0x13)
}

func TestPageSpan(t *testing.T) {
	tests := []struct {
		base   uint64
		size   int
		start  uint64
		length int
		delta  int
	}{
		{0x2020c000, 0x28, 0x2020c000, 0x1000, 0},
		{0x201010a0, 0x8, 0x20101000, 0x1000, 0xa0},
		{0x3f200ff8, 0x10, 0x3f200000, 0x2000, 0xff8},
	}
	for _, test := range tests {
		start, length, delta := pageSpan(test.base, test.size, 4096)
		if start != test.start || length != test.length || delta != test.delta {
			t.Errorf("pageSpan(%#x, %d) = %#x, %#x, %#x, want %#x, %#x, %#x",
				test.base, test.size, start, length, delta, test.start, test.length, test.delta)
		}
	}
}

func TestSim(t *testing.T) {
	s := NewSim()
	s.Poke(0x1000, 7)
	w, err := s.Map(0x1000, 8)
	if err != nil {
		t.Fatal(err)
	}
	if got := w.Load32(0); got != 7 {
		t.Errorf("load = %d, want 7", got)
	}
	w.Store32(4, 9)
	if got := s.Peek(0x1004); got != 9 {
		t.Errorf("peek = %d, want 9", got)
	}
	want := []Access{
		{Addr: 0x1000, Value: 7},
		{Write: true, Addr: 0x1004, Value: 9},
	}
	got := s.Trace()
	if len(got) != len(want) {
		t.Fatalf("trace %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("access %d: %v, want %v", i, got[i], want[i])
		}
	}
	if s.Mapped() != 1 {
		t.Errorf("%d windows mapped", s.Mapped())
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if s.Mapped() != 0 {
		t.Errorf("%d windows mapped after close", s.Mapped())
	}
	if err := w.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second close returned %v", err)
	}
}

func TestSimHook(t *testing.T) {
	s := NewSim()
	s.Hook(0x10, func(v uint32) uint32 { return v &^ 0xff000000 })
	w, err := s.Map(0x10, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	w.Store32(0, 0x5a000011)
	if got := w.Load32(0); got != 0x11 {
		t.Errorf("hooked register reads %#x, want 0x11", got)
	}
}

func TestSimRefuse(t *testing.T) {
	s := NewSim()
	s.Refuse = errors.New("no access")
	if _, err := s.Map(0, 4); err != s.Refuse {
		t.Errorf("Map returned %v, want %v", err, s.Refuse)
	}
	if s.Mapped() != 0 {
		t.Error("refused map counted")
	}
}

func TestSimOutOfWindowPanics(t *testing.T) {
	s := NewSim()
	w, err := s.Map(0, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Error("out of window access did not panic")
		}
	}()
	w.Load32(8)
}
