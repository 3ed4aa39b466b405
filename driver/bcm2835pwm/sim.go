package bcm2835pwm

import (
	"rpipwm.org/clock"
	"rpipwm.org/mmio"
)

// NewSim returns a simulated register space for p, where the clock
// manager drops its password byte and reports BUSY while enabled.
func NewSim(p Platform) *mmio.Sim {
	sim := mmio.NewSim()
	sim.Hook(p.ClockBase()+clock.PWMCTL, func(v uint32) uint32 {
		v &^= 0xff << 24
		// BUSY follows ENAB.
		if v&(1<<4) != 0 {
			v |= 1 << 7
		}
		return v
	})
	sim.Hook(p.ClockBase()+clock.PWMDIV, func(v uint32) uint32 {
		return v &^ (0xff << 24)
	})
	return sim
}

// SimPlatform is the platform simulated when no board is present.
var SimPlatform = socs[len(socs)-1]
