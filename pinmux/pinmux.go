// Package pinmux selects the functions of BCM2835 GPIO pins.
package pinmux

import (
	"fmt"

	"periph.io/x/host/v3/bcm283x"
	"rpipwm.org/mmio"
)

// Func is a GPIO function select value.
type Func uint32

const (
	In   Func = 0b000
	Out  Func = 0b001
	Alt0 Func = 0b100
	Alt1 Func = 0b101
	Alt2 Func = 0b110
	Alt3 Func = 0b111
	Alt4 Func = 0b011
	Alt5 Func = 0b010
)

func (f Func) String() string {
	switch f {
	case In:
		return "In"
	case Out:
		return "Out"
	case Alt0:
		return "ALT0"
	case Alt1:
		return "ALT1"
	case Alt2:
		return "ALT2"
	case Alt3:
		return "ALT3"
	case Alt4:
		return "ALT4"
	case Alt5:
		return "ALT5"
	}
	return fmt.Sprintf("Func(%d)", uint32(f))
}

const (
	// GPFSEL0 is the first function select register; each
	// register holds 10 pins of 3 bits.
	GPFSEL0 = 0x00
	numPins = 54

	// Size is the span of the function select registers.
	Size = GPFSEL0 + 4*((numPins+9)/10)
)

// PWM0 is the pin and function routing PWM channel 0 to
// the 40-pin header.
var PWM0 = struct {
	Pin  *bcm283x.Pin
	Func Func
}{bcm283x.GPIO18, Alt5}

func field(pin int) (off uint32, shift uint32, err error) {
	if pin < 0 || pin >= numPins {
		return 0, 0, fmt.Errorf("pinmux: no such pin %d", pin)
	}
	return GPFSEL0 + uint32(pin/10)*4, uint32(pin%10) * 3, nil
}

// SetFunc selects the function of pin by read-modify-write of its
// function select register in the GPIO block mapped by w.
func SetFunc(w mmio.Window, pin int, f Func) error {
	off, shift, err := field(pin)
	if err != nil {
		return err
	}
	v := w.Load32(off)
	v = v&^(0b111<<shift) | uint32(f)<<shift
	w.Store32(off, v)
	return nil
}

// GetFunc reports the selected function of pin.
func GetFunc(w mmio.Window, pin int) (Func, error) {
	off, shift, err := field(pin)
	if err != nil {
		return 0, err
	}
	return Func(w.Load32(off) >> shift & 0b111), nil
}
