// Package clock resolves the input clock of the PWM block.
//
// The BCM2835 feeds the PWM block from a general purpose clock
// generator in the clock manager. Manager programs that generator
// and reports the rate it runs at.
package clock

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
	"rpipwm.org/mmio"
)

// Source is a clock whose rate can be resolved.
type Source interface {
	Rate() (physic.Frequency, error)
}

// Fixed is a clock of known, constant rate.
type Fixed physic.Frequency

func (f Fixed) Rate() (physic.Frequency, error) {
	return physic.Frequency(f), nil
}

// Clock manager registers for the PWM clock, relative to
// the clock manager block.
const (
	PWMCTL = 0xa0
	PWMDIV = 0xa4

	// Size is the span of the clock manager block used by Manager.
	Size = PWMDIV + 4
)

const (
	passwd = 0x5a << 24

	ctlBusy    = 0b1 << 7
	ctlKill    = 0b1 << 5
	ctlEnable  = 0b1 << 4
	ctlSrcMask = 0xf

	diviShift = 12
	diviMax   = 1<<12 - 1
)

// Src is a clock generator source.
type Src uint32

const (
	SrcGND        Src = 0
	SrcOscillator Src = 1
	SrcPLLC       Src = 5
	SrcPLLD       Src = 6
	SrcHDMI       Src = 7
)

// Frequency of the source. Sources that are not usable
// for generating the PWM clock report 0.
func (s Src) Frequency() physic.Frequency {
	switch s {
	case SrcOscillator:
		return 19200 * physic.KiloHertz
	case SrcPLLC:
		return 1000 * physic.MegaHertz
	case SrcPLLD:
		return 500 * physic.MegaHertz
	case SrcHDMI:
		return 216 * physic.MegaHertz
	}
	return 0
}

// The PWM clock runs from the oscillator
// divided by 19, for a tick of roughly one microsecond.
const (
	DefaultSrc  = SrcOscillator
	DefaultDivi = 19
)

var (
	ErrStopped = errors.New("clock: PWM clock not running")
	ErrTimeout = errors.New("clock: timeout waiting for clock generator")
)

// busyPolls bounds the wait for the BUSY flag.
const busyPolls = 1000

// Manager programs the PWM clock generator.
type Manager struct {
	// Oscillator overrides the crystal frequency for SoCs not
	// running at 19.2 MHz, such as the 54 MHz BCM2711.
	Oscillator physic.Frequency

	w mmio.Window
}

func (m *Manager) frequency(src Src) physic.Frequency {
	if src == SrcOscillator && m.Oscillator != 0 {
		return m.Oscillator
	}
	return src.Frequency()
}

// NewManager returns a manager for the clock manager block
// mapped by w.
func NewManager(w mmio.Window) *Manager {
	return &Manager{w: w}
}

// Setup stops the PWM clock, programs its integer divisor and
// restarts it from src. The generator must not be changed
// while busy or its output glitches.
func (m *Manager) Setup(src Src, divi uint32) error {
	if m.frequency(src) == 0 {
		return fmt.Errorf("clock: unusable source %d", src)
	}
	if divi == 0 || divi > diviMax {
		return fmt.Errorf("clock: divisor %d out of range", divi)
	}
	m.w.Store32(PWMCTL, passwd|ctlKill)
	if err := m.wait(false); err != nil {
		return err
	}
	m.w.Store32(PWMDIV, passwd|divi<<diviShift)
	m.w.Store32(PWMCTL, passwd|ctlEnable|uint32(src))
	return m.wait(true)
}

func (m *Manager) wait(busy bool) error {
	for i := 0; ; i++ {
		if (m.w.Load32(PWMCTL)&ctlBusy != 0) == busy {
			return nil
		}
		if i == busyPolls {
			return ErrTimeout
		}
		time.Sleep(time.Microsecond)
	}
}

// Rate reads back the source and divisor of the running clock.
func (m *Manager) Rate() (physic.Frequency, error) {
	ctl := m.w.Load32(PWMCTL)
	if ctl&ctlEnable == 0 {
		return 0, ErrStopped
	}
	src := Src(ctl & ctlSrcMask)
	f := m.frequency(src)
	if f == 0 {
		return 0, fmt.Errorf("clock: PWM clock runs from unusable source %d", src)
	}
	divi := m.w.Load32(PWMDIV) >> diviShift & diviMax
	if divi == 0 {
		return 0, errors.New("clock: PWM clock divisor not set")
	}
	return f / physic.Frequency(divi), nil
}
