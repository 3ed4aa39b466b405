package main

import (
	"fmt"
	"time"

	"github.com/mattn/go-tty"
	"rpipwm.org/pwmchip"
)

const keyHelp = "+/- duty, </> period, space on/off, i polarity, q quit"

func runInteractive(l *pwmchip.Line) error {
	t, err := tty.Open()
	if err != nil {
		return err
	}
	defer t.Close()
	out := t.Output()
	fmt.Fprintf(out, "%s: %s\r\n", l, keyHelp)
	s := l.State()
	if s.Period == 0 {
		s.Period = pwmchip.DefaultPeriod
	}
	for {
		fmt.Fprintf(out, "\r%s\x1b[K", s)
		r, err := t.ReadRune()
		if err != nil {
			return err
		}
		next, quit := keyState(s, r)
		if quit {
			fmt.Fprint(out, "\r\n")
			return nil
		}
		if next == s {
			continue
		}
		if err := l.Apply(next); err != nil {
			fmt.Fprintf(out, "\r\n%v\r\n", err)
			continue
		}
		s = next
	}
}

// keyState returns the state following s after pressing r.
func keyState(s pwmchip.State, r rune) (pwmchip.State, bool) {
	step := s.Period / 100
	switch r {
	case 'q', 0x03:
		return s, true
	case '+', '=', 'k':
		s.Duty += step
	case '-', 'j':
		s.Duty -= step
	case '>', '.':
		s.Period *= 2
		s.Duty *= 2
	case '<', ',':
		if s.Period > time.Microsecond {
			s.Period /= 2
			s.Duty /= 2
		}
	case ' ':
		s.Enabled = !s.Enabled
	case 'i':
		if s.Polarity == pwmchip.Normal {
			s.Polarity = pwmchip.Inversed
		} else {
			s.Polarity = pwmchip.Normal
		}
	}
	s.Duty = min(max(s.Duty, 0), s.Period)
	return s, false
}
