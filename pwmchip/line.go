package pwmchip

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// DefaultPeriod is used by Out when no period has been set.
const DefaultPeriod = time.Millisecond

// Line is one logical PWM output.
type Line struct {
	chip *Chip
	hw   int

	mu      sync.Mutex
	label   string
	state   State
	removed bool
}

var _ gpio.PinOut = (*Line)(nil)

func (l *Line) Chip() *Chip { return l.chip }

// HW is the index of the line within its chip.
func (l *Line) HW() int { return l.hw }

func (l *Line) Number() int { return l.chip.base + l.hw }

func (l *Line) Name() string { return fmt.Sprintf("PWM%d", l.Number()) }

func (l *Line) String() string { return fmt.Sprintf("%s/%d", l.chip.name, l.hw) }

// Function is part of pin.Pin.
func (l *Line) Function() string {
	if l.State().Enabled {
		return "PWM"
	}
	return "Off"
}

// Request claims the line for label.
func (l *Line) Request(label string) error {
	if label == "" {
		return fmt.Errorf("pwmchip: %s: empty label", l)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.removed {
		return ErrRemoved
	}
	if l.label != "" {
		return fmt.Errorf("%w: %s requested by %s", ErrBusy, l, l.label)
	}
	l.label = label
	return nil
}

// Free releases a requested line.
func (l *Line) Free() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.label = ""
}

// Label returns the owner of the line, if requested.
func (l *Line) Label() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.label
}

// State returns the last applied state.
func (l *Line) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Line) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("pwmchip: %s: %s: %w", l, op, err)
}

func validate(s State) error {
	switch {
	case s.Period < 0 || s.Duty < 0:
		return fmt.Errorf("%w: negative duration", ErrInvalidState)
	case s.Duty > s.Period:
		return fmt.Errorf("%w: duty %v exceeds period %v", ErrInvalidState, s.Duty, s.Period)
	case s.Polarity != Normal && s.Polarity != Inversed:
		return fmt.Errorf("%w: %v", ErrInvalidState, s.Polarity)
	case s.Enabled && s.Period == 0:
		return fmt.Errorf("%w: enabled with zero period", ErrInvalidState)
	}
	return nil
}

// Apply moves the line to state s. Polarity only changes while the
// output is disabled, a line being turned off is disabled before it is
// reconfigured, and a line being turned on is configured before it is
// enabled.
func (l *Line) Apply(s State) error {
	if err := validate(s); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.removed {
		return ErrRemoved
	}
	ops, hw := l.chip.ops, l.hw
	if s.Polarity != l.state.Polarity {
		if l.state.Enabled {
			if err := ops.Disable(hw); err != nil {
				return l.wrap("disable", err)
			}
			l.state.Enabled = false
		}
		if err := ops.SetPolarity(hw, s.Polarity); err != nil {
			return l.wrap("set polarity", err)
		}
		l.state.Polarity = s.Polarity
	}
	if !s.Enabled && l.state.Enabled {
		if err := ops.Disable(hw); err != nil {
			return l.wrap("disable", err)
		}
		l.state.Enabled = false
	}
	if s.Period != l.state.Period || s.Duty != l.state.Duty {
		if err := ops.Config(hw, s.Duty, s.Period); err != nil {
			return l.wrap("config", err)
		}
		l.state.Period, l.state.Duty = s.Period, s.Duty
	}
	if s.Enabled && !l.state.Enabled {
		if err := ops.Enable(hw); err != nil {
			return l.wrap("enable", err)
		}
		l.state.Enabled = true
	}
	return nil
}

// Config programs duty and period without changing whether the
// output is enabled.
func (l *Line) Config(duty, period time.Duration) error {
	s := State{Period: period, Duty: duty, Polarity: Normal}
	if err := validate(s); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.removed {
		return ErrRemoved
	}
	if err := l.chip.ops.Config(l.hw, duty, period); err != nil {
		return l.wrap("config", err)
	}
	l.state.Period, l.state.Duty = period, duty
	return nil
}

func (l *Line) Enable() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.removed {
		return ErrRemoved
	}
	if err := l.chip.ops.Enable(l.hw); err != nil {
		return l.wrap("enable", err)
	}
	l.state.Enabled = true
	return nil
}

func (l *Line) Disable() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.removed {
		return ErrRemoved
	}
	if err := l.chip.ops.Disable(l.hw); err != nil {
		return l.wrap("disable", err)
	}
	l.state.Enabled = false
	return nil
}

// SetPolarity changes the polarity of a disabled line.
func (l *Line) SetPolarity(p Polarity) error {
	if p != Normal && p != Inversed {
		return fmt.Errorf("%w: %v", ErrInvalidState, p)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.removed {
		return ErrRemoved
	}
	if l.state.Enabled {
		return fmt.Errorf("%w: %s: polarity change while enabled", ErrBusy, l)
	}
	if err := l.chip.ops.SetPolarity(l.hw, p); err != nil {
		return l.wrap("set polarity", err)
	}
	l.state.Polarity = p
	return nil
}

// Halt disables the output.
func (l *Line) Halt() error {
	return l.Disable()
}

// Out drives the line constantly high or low, by running it at 100%
// or 0% duty.
func (l *Line) Out(level gpio.Level) error {
	s := l.State()
	if s.Period == 0 {
		s.Period = DefaultPeriod
	}
	s.Duty = 0
	if level == gpio.High {
		s.Duty = s.Period
	}
	s.Enabled = true
	return l.Apply(s)
}

// PWM runs the line at frequency f with the given duty cycle.
func (l *Line) PWM(duty gpio.Duty, f physic.Frequency) error {
	if f <= 0 {
		return fmt.Errorf("pwmchip: %s: invalid frequency %v", l, f)
	}
	if duty < 0 || duty > gpio.DutyMax {
		return fmt.Errorf("pwmchip: %s: invalid duty %v", l, duty)
	}
	s := l.State()
	s.Period = f.Period()
	s.Duty = time.Duration(int64(s.Period) * int64(duty) / int64(gpio.DutyMax))
	s.Enabled = true
	return l.Apply(s)
}
