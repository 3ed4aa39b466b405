package bcm2835pwm

import (
	"log"

	"periph.io/x/conn/v3/driver"
	"rpipwm.org/clock"
	"rpipwm.org/mmio"
	"rpipwm.org/pwmchip"
)

// Driver attaches the PWM channel during periph's host
// initialization. Register it with driverreg before calling
// host.Init.
type Driver struct {
	Registry *pwmchip.Registry
	// Mapper defaults to mmio.DevMem.
	Mapper mmio.Mapper
	// Divi is the PWM clock divisor. Defaults to clock.DefaultDivi.
	Divi uint32

	chip *Chip
}

var _ driver.Impl = (*Driver)(nil)

func (d *Driver) String() string {
	return "bcm2835-pwm"
}

func (d *Driver) Prerequisites() []string {
	return nil
}

func (d *Driver) After() []string {
	return []string{"bcm2835-gpio"}
}

func (d *Driver) Init() (bool, error) {
	p, err := Detect()
	if err != nil {
		// Not a Raspberry Pi; skip.
		return false, err
	}
	m := d.Mapper
	if m == nil {
		m = mmio.DevMem{}
	}
	divi := d.Divi
	if divi == 0 {
		divi = clock.DefaultDivi
	}
	clk, err := p.Prepare(m, divi)
	if err != nil {
		return true, err
	}
	c, err := Attach(d.Registry, p.Descriptor(m, clk))
	if err != nil {
		return true, err
	}
	d.chip = c
	log.Printf("bcm2835pwm: attached %s on %s, %d ns per tick", c.Name(), p.SoC, c.Scaler())
	return true, nil
}

// Chip returns the attached chip, or nil if Init failed.
func (d *Driver) Chip() *Chip {
	return d.chip
}
