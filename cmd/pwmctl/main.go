// command pwmctl drives the hardware PWM channel of a Raspberry Pi.
//
// Without a mode flag, pwmctl applies -period, -duty, -inversed and
// -enable to the line and prints the resulting register contents.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
	"rpipwm.org/clock"
	"rpipwm.org/console"
	"rpipwm.org/driver/bcm2835pwm"
	"rpipwm.org/mmio"
	"rpipwm.org/pwmchip"
	"rpipwm.org/pwmproto"
	"rpipwm.org/serialport"
)

var (
	simulate    = flag.Bool("sim", false, "simulate the registers instead of mapping them")
	mem         = flag.String("mem", "devmem", "register access, devmem or pmem")
	clockHz     = flag.Int64("clock", 0, "PWM clock rate in Hz; leaves the clock manager untouched")
	divi        = flag.Uint("divi", clock.DefaultDivi, "PWM clock divisor of the oscillator")
	period      = flag.Duration("period", 0, "period to apply")
	duty        = flag.Duration("duty", 0, "duty cycle to apply")
	inversed    = flag.Bool("inversed", false, "inverse output polarity")
	enable      = flag.Bool("enable", true, "enable the output")
	interactive = flag.Bool("i", false, "adjust the output from the keyboard")
	cmdline     = flag.Bool("console", false, "read commands from standard input")
	serialDev   = flag.String("serial", "", "serve remote requests on a serial device")
	baud        = flag.Int("baud", serialport.DefaultBaud, "serial baud rate")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pwmctl: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	reg := new(pwmchip.Registry)
	var sim *mmio.Sim
	if *simulate {
		sim = bcm2835pwm.NewSim(bcm2835pwm.SimPlatform)
	}
	c, err := attach(reg, sim)
	if err != nil {
		return err
	}
	defer c.Detach()
	l, err := reg.Lookup(c.Name(), c.Channel())
	if err != nil {
		return err
	}
	if err := l.Request("pwmctl"); err != nil {
		return err
	}
	defer l.Free()
	if *period > 0 {
		s := pwmchip.State{Period: *period, Duty: *duty, Enabled: *enable}
		if *inversed {
			s.Polarity = pwmchip.Inversed
		}
		if err := l.Apply(s); err != nil {
			return err
		}
	}
	switch {
	case *interactive:
		return runInteractive(l)
	case *cmdline:
		return console.Run(os.Stdin, os.Stdout, reg)
	case *serialDev != "":
		s, err := serialport.Open(*serialDev, *baud)
		if err != nil {
			return err
		}
		defer s.Close()
		log.Printf("pwmctl: serving %s on %s", c.Name(), *serialDev)
		return pwmproto.Serve(s, reg)
	}
	st, err := c.State()
	if err != nil {
		return err
	}
	regs, err := c.Registers()
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", l, st)
	fmt.Printf("ctl %#010x rng %#010x dat %#010x\n", regs.Control, regs.Period, regs.Duty)
	if sim != nil {
		for _, a := range sim.Trace() {
			fmt.Println(a)
		}
	}
	return nil
}

// attach programs the PWM clock and attaches the chip, either
// directly or through periph's driver registry.
func attach(reg *pwmchip.Registry, sim *mmio.Sim) (*bcm2835pwm.Chip, error) {
	var m mmio.Mapper
	switch *mem {
	case "devmem":
		m = mmio.DevMem{}
	case "pmem":
		m = mmio.PMem{}
	default:
		return nil, fmt.Errorf("-mem must be devmem or pmem, got %q", *mem)
	}
	if sim != nil {
		m = sim
	}
	if *clockHz > 0 {
		p := bcm2835pwm.SimPlatform
		if sim == nil {
			var err error
			if p, err = bcm2835pwm.Detect(); err != nil {
				return nil, err
			}
		}
		clk := clock.Fixed(physic.Frequency(*clockHz) * physic.Hertz)
		return bcm2835pwm.Attach(reg, p.Descriptor(m, clk))
	}
	if sim != nil {
		p := bcm2835pwm.SimPlatform
		clk, err := p.Prepare(m, uint32(*divi))
		if err != nil {
			return nil, err
		}
		return bcm2835pwm.Attach(reg, p.Descriptor(m, clk))
	}
	drv := &bcm2835pwm.Driver{Registry: reg, Mapper: m, Divi: uint32(*divi)}
	if err := driverreg.Register(drv); err != nil {
		return nil, err
	}
	state, err := host.Init()
	if err != nil {
		return nil, err
	}
	for _, f := range state.Failed {
		if f.D == drv {
			return nil, f.Err
		}
	}
	c := drv.Chip()
	if c == nil {
		return nil, errors.New("no PWM hardware found; use -sim to simulate")
	}
	return c, nil
}
