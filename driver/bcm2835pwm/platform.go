package bcm2835pwm

import (
	"errors"
	"fmt"
	"strings"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3/distro"
	"rpipwm.org/clock"
	"rpipwm.org/mmio"
	"rpipwm.org/pinmux"
)

// Block offsets from the peripheral base.
const (
	clockOffset = 0x101000
	gpioOffset  = 0x200000
	pwmOffset   = 0x20c000
)

// Platform describes the SoC a Chip runs on.
type Platform struct {
	SoC string
	// Periph is the ARM physical address of the peripherals.
	Periph uint64
	// Oscillator is the crystal feeding the clock manager.
	Oscillator physic.Frequency
}

var socs = []Platform{
	{"bcm2711", 0xfe000000, 54 * physic.MegaHertz},
	{"bcm2837", 0x3f000000, 19200 * physic.KiloHertz},
	{"bcm2836", 0x3f000000, 19200 * physic.KiloHertz},
	{"bcm2835", 0x20000000, 19200 * physic.KiloHertz},
}

var ErrUnsupported = errors.New("bcm2835pwm: unsupported platform")

// Detect identifies the platform from the device tree.
func Detect() (Platform, error) {
	return platformFor(distro.DTCompatible())
}

func platformFor(compatible []string) (Platform, error) {
	for _, c := range compatible {
		for _, p := range socs {
			if strings.HasSuffix(c, ","+p.SoC) {
				return p, nil
			}
		}
	}
	return Platform{}, fmt.Errorf("%w: %q", ErrUnsupported, compatible)
}

func (p Platform) PWMBase() uint64   { return p.Periph + pwmOffset }
func (p Platform) ClockBase() uint64 { return p.Periph + clockOffset }
func (p Platform) GPIOBase() uint64  { return p.Periph + gpioOffset }

// Prepare routes PWM0 to its header pin and starts the PWM clock from
// the oscillator divided by divi. It returns the resulting clock.
func (p Platform) Prepare(m mmio.Mapper, divi uint32) (clock.Source, error) {
	gpio, err := m.Map(p.GPIOBase(), pinmux.Size)
	if err != nil {
		return nil, fmt.Errorf("bcm2835pwm: map GPIO: %w", err)
	}
	err = pinmux.SetFunc(gpio, pinmux.PWM0.Pin.Number(), pinmux.PWM0.Func)
	gpio.Close()
	if err != nil {
		return nil, fmt.Errorf("bcm2835pwm: %w", err)
	}
	cw, err := m.Map(p.ClockBase(), clock.Size)
	if err != nil {
		return nil, fmt.Errorf("bcm2835pwm: map clock manager: %w", err)
	}
	defer cw.Close()
	cm := clock.NewManager(cw)
	cm.Oscillator = p.Oscillator
	if err := cm.Setup(clock.SrcOscillator, divi); err != nil {
		return nil, fmt.Errorf("bcm2835pwm: %w", err)
	}
	rate, err := cm.Rate()
	if err != nil {
		return nil, fmt.Errorf("bcm2835pwm: %w", err)
	}
	return clock.Fixed(rate), nil
}

// Descriptor returns the descriptor of channel 0 on the platform.
func (p Platform) Descriptor(m mmio.Mapper, clk clock.Source) Descriptor {
	return Descriptor{
		Base:   p.PWMBase(),
		Clock:  clk,
		Mapper: m,
	}
}
