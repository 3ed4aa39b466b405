package main

import (
	"testing"
	"time"

	"rpipwm.org/pwmchip"
)

func TestKeyState(t *testing.T) {
	start := pwmchip.State{Period: time.Millisecond, Duty: 500 * time.Microsecond}
	tests := []struct {
		keys string
		want pwmchip.State
	}{
		{"+", pwmchip.State{Period: time.Millisecond, Duty: 510 * time.Microsecond}},
		{"--", pwmchip.State{Period: time.Millisecond, Duty: 480 * time.Microsecond}},
		{">", pwmchip.State{Period: 2 * time.Millisecond, Duty: time.Millisecond}},
		{"<", pwmchip.State{Period: 500 * time.Microsecond, Duty: 250 * time.Microsecond}},
		{" i", pwmchip.State{Period: time.Millisecond, Duty: 500 * time.Microsecond, Polarity: pwmchip.Inversed, Enabled: true}},
		{"ii", start},
		{"x", start},
	}
	for _, test := range tests {
		s := start
		for _, r := range test.keys {
			var quit bool
			if s, quit = keyState(s, r); quit {
				t.Fatalf("%q: quit", test.keys)
			}
		}
		if s != test.want {
			t.Errorf("%q: got %v, want %v", test.keys, s, test.want)
		}
	}
}

func TestKeyStateClamp(t *testing.T) {
	s := pwmchip.State{Period: time.Millisecond, Duty: 995 * time.Microsecond}
	s, _ = keyState(s, '+')
	if s.Duty != s.Period {
		t.Errorf("duty %v exceeds period %v", s.Duty, s.Period)
	}
	s.Duty = 5 * time.Microsecond
	s, _ = keyState(s, '-')
	if s.Duty != 0 {
		t.Errorf("negative duty %v", s.Duty)
	}
	if _, quit := keyState(s, 'q'); !quit {
		t.Error("q did not quit")
	}
}
