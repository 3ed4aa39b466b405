// Package pwmchip is a registry of PWM controllers and the logical
// lines they provide.
//
// Drivers register a Chip backed by Ops; consumers find Lines by
// number or by chip name and drive them. Calls into a line are
// serialized, so a driver sees at most one call in flight per line.
package pwmchip

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Polarity of the output. A Normal output is high for the duty
// time at the start of each period.
type Polarity int

const (
	Normal Polarity = iota
	Inversed
)

func (p Polarity) String() string {
	switch p {
	case Normal:
		return "normal"
	case Inversed:
		return "inversed"
	}
	return fmt.Sprintf("Polarity(%d)", int(p))
}

func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(s) {
	case "normal":
		return Normal, nil
	case "inversed", "inverted":
		return Inversed, nil
	}
	return 0, fmt.Errorf("pwmchip: unknown polarity %q", s)
}

// Ops is implemented by drivers. The hw argument is the index of the
// line within the chip.
type Ops interface {
	Config(hw int, duty, period time.Duration) error
	Enable(hw int) error
	Disable(hw int) error
	SetPolarity(hw int, p Polarity) error
}

// State describes the desired or last applied output of a line.
type State struct {
	Period   time.Duration
	Duty     time.Duration
	Polarity Polarity
	Enabled  bool
}

func (s State) String() string {
	on := "off"
	if s.Enabled {
		on = "on"
	}
	return fmt.Sprintf("period %v duty %v %v %s", s.Period, s.Duty, s.Polarity, on)
}

var (
	ErrInvalidChip  = errors.New("pwmchip: invalid chip")
	ErrDuplicate    = errors.New("pwmchip: chip already registered")
	ErrNotFound     = errors.New("pwmchip: no such line")
	ErrBusy         = errors.New("pwmchip: line busy")
	ErrRemoved      = errors.New("pwmchip: chip removed")
	ErrInvalidState = errors.New("pwmchip: invalid state")
)

// Registry holds registered chips and numbers their lines.
type Registry struct {
	mu    sync.Mutex
	chips []*Chip // sorted by base
}

// Chip is a registered controller.
type Chip struct {
	name  string
	base  int
	ops   Ops
	lines []*Line
}

func (c *Chip) Name() string { return c.name }

// Base is the number of the first line of the chip.
func (c *Chip) Base() int { return c.base }

func (c *Chip) NumLines() int { return len(c.lines) }

// Line returns line hw of the chip.
func (c *Chip) Line(hw int) (*Line, error) {
	if hw < 0 || hw >= len(c.lines) {
		return nil, fmt.Errorf("%w: %s/%d", ErrNotFound, c.name, hw)
	}
	return c.lines[hw], nil
}

// Add registers a chip providing npwm lines. Lines are numbered from
// the lowest free range.
func (r *Registry) Add(name string, ops Ops, npwm int) (*Chip, error) {
	if name == "" || ops == nil || npwm <= 0 {
		return nil, ErrInvalidChip
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	base := 0
	for _, c := range r.chips {
		if c.name == name {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, name)
		}
	}
	for _, c := range r.chips {
		if base+npwm <= c.base {
			break
		}
		base = c.base + len(c.lines)
	}
	c := &Chip{name: name, base: base, ops: ops}
	for hw := range npwm {
		c.lines = append(c.lines, &Line{chip: c, hw: hw})
	}
	r.chips = append(r.chips, c)
	sort.Slice(r.chips, func(i, j int) bool {
		return r.chips[i].base < r.chips[j].base
	})
	return c, nil
}

// Remove unregisters a chip. It waits for calls in flight; later
// calls into its lines fail with ErrRemoved.
func (r *Registry) Remove(c *Chip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rc := range r.chips {
		if rc != c {
			continue
		}
		r.chips = append(r.chips[:i], r.chips[i+1:]...)
		for _, l := range c.lines {
			l.mu.Lock()
			l.removed = true
			l.mu.Unlock()
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, c.name)
}

// Chips returns the registered chips ordered by base.
func (r *Registry) Chips() []*Chip {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Chip(nil), r.chips...)
}

// Lines returns every registered line in number order.
func (r *Registry) Lines() []*Line {
	var lines []*Line
	for _, c := range r.Chips() {
		lines = append(lines, c.lines...)
	}
	return lines
}

// Line returns the line numbered n.
func (r *Registry) Line(n int) (*Line, error) {
	for _, c := range r.Chips() {
		if n >= c.base && n < c.base+len(c.lines) {
			return c.lines[n-c.base], nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrNotFound, n)
}

// Lookup returns line hw of the chip called name.
func (r *Registry) Lookup(name string, hw int) (*Line, error) {
	for _, c := range r.Chips() {
		if c.name == name {
			return c.Line(hw)
		}
	}
	return nil, fmt.Errorf("%w: %s/%d", ErrNotFound, name, hw)
}
