// Package bcm2835pwm drives PWM channel 0 of the BCM2835 family
// through its memory-mapped registers.
//
// A Chip owns the mapped register block and the scaler converting
// nanoseconds to ticks of the PWM clock. Enable, Disable and
// SetPolarity are read-modify-writes of the hardware control
// register, serialized per Chip.
package bcm2835pwm

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"
	"rpipwm.org/clock"
	"rpipwm.org/mmio"
	"rpipwm.org/pwmchip"
)

// NumLines is the number of lines a Chip registers. Only the
// first is wired to registers; the second is reserved.
const NumLines = 2

var (
	ErrClockUnavailable   = errors.New("bcm2835pwm: clock unavailable")
	ErrInvalidClockRate   = errors.New("bcm2835pwm: invalid clock rate")
	ErrMapFailed          = errors.New("bcm2835pwm: register map failed")
	ErrRegistrationFailed = errors.New("bcm2835pwm: registration failed")
	ErrRegisterMap        = errors.New("bcm2835pwm: invalid register map")
	ErrDetached           = errors.New("bcm2835pwm: detached")
	ErrInvalidDuration    = errors.New("bcm2835pwm: invalid duration")
	ErrOutOfRange         = errors.New("bcm2835pwm: duration out of register range")
	ErrInvalidPolarity    = errors.New("bcm2835pwm: invalid polarity")
	ErrReservedChannel    = errors.New("bcm2835pwm: reserved channel")
)

// Descriptor describes the hardware of a Chip.
type Descriptor struct {
	// Name of the chip in the registry. Defaults to the
	// hexadecimal base address followed by ".pwm".
	Name string
	// Base is the physical address of the PWM block.
	Base uint64
	// Channel selects the hardware channel.
	Channel int
	Clock   clock.Source
	Mapper  mmio.Mapper
}

// Chip is an attached PWM channel.
type Chip struct {
	name    string
	channel int
	regs    RegisterMap
	scaler  int64

	mu sync.Mutex
	w  mmio.Window // nil once detached.

	reg *pwmchip.Registry
	pc  *pwmchip.Chip
}

// Registers is a snapshot of the channel registers.
type Registers struct {
	Control uint32
	Period  uint32
	Duty    uint32
}

// scalerFor returns the nanoseconds per tick of a clock running
// at rate.
func scalerFor(rate physic.Frequency) (int64, error) {
	hz := int64(rate / physic.Hertz)
	if hz <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidClockRate, rate)
	}
	s := int64(time.Second) / hz
	if s == 0 {
		return 0, fmt.Errorf("%w: %v is faster than 1GHz", ErrInvalidClockRate, rate)
	}
	return s, nil
}

// Attach maps the PWM block described by d, programs the output mode
// with the output disabled and registers the chip in reg. A nil reg
// skips registration. On failure nothing acquired by Attach is kept.
func Attach(reg *pwmchip.Registry, d Descriptor) (*Chip, error) {
	if d.Clock == nil {
		return nil, ErrClockUnavailable
	}
	rate, err := d.Clock.Rate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClockUnavailable, err)
	}
	scaler, err := scalerFor(rate)
	if err != nil {
		return nil, err
	}
	regs, ok := channels[d.Channel]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrReservedChannel, d.Channel)
	}
	size := regs.span()
	if err := regs.validate(size); err != nil {
		return nil, err
	}
	if d.Mapper == nil {
		return nil, fmt.Errorf("%w: no mapper", ErrMapFailed)
	}
	w, err := d.Mapper.Map(d.Base, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMapFailed, err)
	}
	if w.Size() < size {
		w.Close()
		return nil, fmt.Errorf("%w: window of %d bytes, need %d", ErrMapFailed, w.Size(), size)
	}
	name := d.Name
	if name == "" {
		name = fmt.Sprintf("%x.pwm", d.Base)
	}
	c := &Chip{
		name:    name,
		channel: d.Channel,
		regs:    regs,
		scaler:  scaler,
		w:       w,
	}
	ctl := w.Load32(regs.Control)
	w.Store32(regs.Control, ctl&^ctlConfigMask|ctlMode)
	if reg != nil {
		pc, err := reg.Add(name, ops{c}, NumLines)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
		}
		c.reg, c.pc = reg, pc
	}
	return c, nil
}

// Detach unregisters the chip and unmaps its registers. It leaves
// the output running as last programmed; call Disable first for a
// guaranteed off output.
func (c *Chip) Detach() error {
	c.mu.Lock()
	detached := c.w == nil
	c.mu.Unlock()
	if detached {
		return ErrDetached
	}
	var errs []error
	if c.pc != nil {
		// Waits for line calls in flight.
		if err := c.reg.Remove(c.pc); err != nil {
			errs = append(errs, err)
		}
		c.pc = nil
	}
	c.mu.Lock()
	w := c.w
	c.w = nil
	c.mu.Unlock()
	if err := w.Close(); err != nil {
		errs = append(errs, fmt.Errorf("bcm2835pwm: unmap: %w", err))
	}
	return errors.Join(errs...)
}

func (c *Chip) Name() string { return c.name }

func (c *Chip) Channel() int { return c.channel }

// Scaler returns the nanoseconds per PWM clock tick.
func (c *Chip) Scaler() int64 { return c.scaler }

// Registered returns the registry entry of the chip, or nil.
func (c *Chip) Registered() *pwmchip.Chip { return c.pc }

// Configure programs the duty and period registers in ticks of the PWM
// clock, truncating. It leaves the control register alone; an enabled
// output briefly mixes old and new values until both writes land. A
// duty above the period is not rejected.
func (c *Chip) Configure(duty, period time.Duration) error {
	if duty < 0 || period < 0 {
		return fmt.Errorf("%w: duty %v, period %v", ErrInvalidDuration, duty, period)
	}
	d, p := int64(duty)/c.scaler, int64(period)/c.scaler
	if d > math.MaxUint32 || p > math.MaxUint32 {
		return fmt.Errorf("%w: duty %v, period %v", ErrOutOfRange, duty, period)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return ErrDetached
	}
	c.w.Store32(c.regs.Duty, uint32(d))
	c.w.Store32(c.regs.Period, uint32(p))
	return nil
}

// modify clears and sets bits of the control register in one
// read-modify-write.
func (c *Chip) modify(clear, set uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return ErrDetached
	}
	v := c.w.Load32(c.regs.Control)
	c.w.Store32(c.regs.Control, v&^clear|set)
	return nil
}

func (c *Chip) Enable() error {
	return c.modify(0, PWEN1)
}

func (c *Chip) Disable() error {
	return c.modify(PWEN1, 0)
}

func (c *Chip) SetPolarity(p pwmchip.Polarity) error {
	switch p {
	case pwmchip.Normal:
		return c.modify(POLA1, 0)
	case pwmchip.Inversed:
		return c.modify(0, POLA1)
	}
	return fmt.Errorf("%w: %v", ErrInvalidPolarity, p)
}

// Registers reads the channel registers.
func (c *Chip) Registers() (Registers, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return Registers{}, ErrDetached
	}
	return Registers{
		Control: c.w.Load32(c.regs.Control),
		Period:  c.w.Load32(c.regs.Period),
		Duty:    c.w.Load32(c.regs.Duty),
	}, nil
}

// State decodes the output state from the hardware registers.
func (c *Chip) State() (pwmchip.State, error) {
	r, err := c.Registers()
	if err != nil {
		return pwmchip.State{}, err
	}
	s := pwmchip.State{
		Period:  time.Duration(int64(r.Period) * c.scaler),
		Duty:    time.Duration(int64(r.Duty) * c.scaler),
		Enabled: r.Control&PWEN1 != 0,
	}
	if r.Control&POLA1 != 0 {
		s.Polarity = pwmchip.Inversed
	}
	return s, nil
}

// ops adapts a Chip to the registry.
type ops struct {
	c *Chip
}

func (o ops) check(hw int) error {
	if hw != 0 {
		return fmt.Errorf("%w: line %d", ErrReservedChannel, hw)
	}
	return nil
}

func (o ops) Config(hw int, duty, period time.Duration) error {
	if err := o.check(hw); err != nil {
		return err
	}
	return o.c.Configure(duty, period)
}

func (o ops) Enable(hw int) error {
	if err := o.check(hw); err != nil {
		return err
	}
	return o.c.Enable()
}

func (o ops) Disable(hw int) error {
	if err := o.check(hw); err != nil {
		return err
	}
	return o.c.Disable()
}

func (o ops) SetPolarity(hw int, p pwmchip.Polarity) error {
	if err := o.check(hw); err != nil {
		return err
	}
	return o.c.SetPolarity(p)
}
