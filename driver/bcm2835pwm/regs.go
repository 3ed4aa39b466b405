package bcm2835pwm

import "fmt"

// PWM block registers.
const (
	CTL  = 0x00
	STA  = 0x04
	DMAC = 0x08
	RNG1 = 0x10
	DAT1 = 0x14
	FIF1 = 0x18
	RNG2 = 0x20
	DAT2 = 0x24

	// CTL settings for channel 1, the one wired to PWM0.
	PWEN1 = 0b1 << 0
	MODE1 = 0b1 << 1
	RPTL1 = 0b1 << 2
	SBIT1 = 0b1 << 3
	POLA1 = 0b1 << 4
	USEF1 = 0b1 << 5
	CLRF  = 0b1 << 6
	MSEN1 = 0b1 << 7
)

const (
	// ctlConfigMask covers the configuration bits of the
	// channel in CTL.
	ctlConfigMask = 0xff
	// ctlMode is the output mode programmed at attach: mark-space
	// PWM from the data register, output disabled.
	ctlMode = MSEN1
)

// RegisterMap locates the registers of one channel within the
// PWM block.
type RegisterMap struct {
	Control uint32
	Period  uint32
	Duty    uint32
}

// channels lists the register maps of the implemented channels.
var channels = map[int]RegisterMap{
	0: {Control: CTL, Period: RNG1, Duty: DAT1},
}

// span is the window size needed to cover the map.
func (m RegisterMap) span() int {
	return int(max(m.Control, m.Period, m.Duty)) + 4
}

// validate checks that the registers are word aligned, distinct and
// inside a window of size bytes.
func (m RegisterMap) validate(size int) error {
	regs := []struct {
		name string
		off  uint32
	}{
		{"control", m.Control},
		{"period", m.Period},
		{"duty", m.Duty},
	}
	for i, r := range regs {
		if r.off%4 != 0 {
			return fmt.Errorf("%w: %s register %#x unaligned", ErrRegisterMap, r.name, r.off)
		}
		if int64(r.off)+4 > int64(size) {
			return fmt.Errorf("%w: %s register %#x outside %d byte window", ErrRegisterMap, r.name, r.off, size)
		}
		for _, r2 := range regs[:i] {
			if r.off == r2.off {
				return fmt.Errorf("%w: %s and %s registers overlap", ErrRegisterMap, r2.name, r.name)
			}
		}
	}
	return nil
}
