package clock

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/physic"
	"rpipwm.org/mmio"
)

const base = 0x7e101000

// newSim returns a clock manager block whose control register
// ignores the password and reports BUSY while enabled.
func newSim(t *testing.T, busy bool) (*mmio.Sim, mmio.Window) {
	s := mmio.NewSim()
	s.Hook(base+PWMCTL, func(v uint32) uint32 {
		v &^= 0xff << 24
		if busy && v&ctlEnable != 0 {
			v |= ctlBusy
		}
		return v
	})
	s.Hook(base+PWMDIV, func(v uint32) uint32 {
		return v &^ (0xff << 24)
	})
	w, err := s.Map(base, Size)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })
	return s, w
}

func TestSetup(t *testing.T) {
	s, w := newSim(t, true)
	m := NewManager(w)
	if err := m.Setup(DefaultSrc, DefaultDivi); err != nil {
		t.Fatal(err)
	}
	var writes []mmio.Access
	for _, a := range s.Trace() {
		if a.Write {
			writes = append(writes, a)
		}
	}
	want := []mmio.Access{
		{Write: true, Addr: base + PWMCTL, Value: 0x5a000020},
		{Write: true, Addr: base + PWMDIV, Value: 0x5a000000 | 19<<12},
		{Write: true, Addr: base + PWMCTL, Value: 0x5a000011},
	}
	if len(writes) != len(want) {
		t.Fatalf("writes %v, want %v", writes, want)
	}
	for i := range want {
		if writes[i] != want[i] {
			t.Errorf("write %d: %v, want %v", i, writes[i], want[i])
		}
	}
	f, err := m.Rate()
	if err != nil {
		t.Fatal(err)
	}
	if want := 19200 * physic.KiloHertz / 19; f != want {
		t.Errorf("rate %v, want %v", f, want)
	}
	if hz := f / physic.Hertz; hz != 1010526 {
		t.Errorf("rate %d Hz, want 1010526 Hz", hz)
	}
}

func TestSetupInvalid(t *testing.T) {
	_, w := newSim(t, true)
	m := NewManager(w)
	tests := []struct {
		src  Src
		divi uint32
	}{
		{SrcGND, 19},
		{SrcOscillator, 0},
		{SrcOscillator, 4096},
		{Src(3), 2},
	}
	for _, test := range tests {
		if err := m.Setup(test.src, test.divi); err == nil {
			t.Errorf("Setup(%d, %d) succeeded", test.src, test.divi)
		}
	}
}

func TestSetupTimeout(t *testing.T) {
	_, w := newSim(t, false)
	m := NewManager(w)
	if err := m.Setup(SrcPLLD, 500); !errors.Is(err, ErrTimeout) {
		t.Errorf("Setup returned %v, want %v", err, ErrTimeout)
	}
}

func TestRateStopped(t *testing.T) {
	_, w := newSim(t, true)
	m := NewManager(w)
	if _, err := m.Rate(); !errors.Is(err, ErrStopped) {
		t.Errorf("Rate of stopped clock returned %v", err)
	}
}

func TestRateUnusableSource(t *testing.T) {
	s, w := newSim(t, true)
	s.Poke(base+PWMCTL, ctlEnable|uint32(SrcGND))
	s.Poke(base+PWMDIV, 2<<diviShift)
	if _, err := NewManager(w).Rate(); err == nil {
		t.Error("Rate succeeded for a grounded clock")
	}
}

func TestFixed(t *testing.T) {
	f, err := Fixed(physic.GigaHertz).Rate()
	if err != nil {
		t.Fatal(err)
	}
	if f != physic.GigaHertz {
		t.Errorf("rate %v", f)
	}
}

func TestOscillatorOverride(t *testing.T) {
	_, w := newSim(t, true)
	m := NewManager(w)
	m.Oscillator = 54 * physic.MegaHertz
	if err := m.Setup(SrcOscillator, 54); err != nil {
		t.Fatal(err)
	}
	f, err := m.Rate()
	if err != nil {
		t.Fatal(err)
	}
	if f != physic.MegaHertz {
		t.Errorf("rate %v, want 1MHz", f)
	}
}
