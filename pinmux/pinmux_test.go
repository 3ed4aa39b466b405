package pinmux

import (
	"testing"

	"rpipwm.org/mmio"
)

func TestPWM0(t *testing.T) {
	const base = 0x7e200000
	s := mmio.NewSim()
	// GPIO17 as output, GPIO19 as ALT4, GPIO18 as ALT0.
	s.Poke(base+0x04, 0b011_100_001<<21)
	w, err := s.Map(base, Size)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if got := PWM0.Pin.Number(); got != 18 {
		t.Fatalf("PWM0 on GPIO%d", got)
	}
	if err := SetFunc(w, PWM0.Pin.Number(), PWM0.Func); err != nil {
		t.Fatal(err)
	}
	if got, want := s.Peek(base+0x04), uint32(0b011_010_001<<21); got != want {
		t.Errorf("GPFSEL1 = %#x, want %#x", got, want)
	}
	for _, test := range []struct {
		pin int
		f   Func
	}{{17, Out}, {18, Alt5}, {19, Alt4}, {0, In}} {
		f, err := GetFunc(w, test.pin)
		if err != nil {
			t.Fatal(err)
		}
		if f != test.f {
			t.Errorf("GPIO%d is %v, want %v", test.pin, f, test.f)
		}
	}
}

func TestInvalidPin(t *testing.T) {
	s := mmio.NewSim()
	w, err := s.Map(0, Size)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := SetFunc(w, 54, Alt5); err == nil {
		t.Error("pin 54 accepted")
	}
	if _, err := GetFunc(w, -1); err == nil {
		t.Error("pin -1 accepted")
	}
}
