// Package console interprets text commands driving PWM lines, for
// use over a terminal or serial line.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"rpipwm.org/pwmchip"
)

const usage = `commands:
  lines                                 list lines
  state LINE                            show line state
  config LINE DUTY PERIOD               set duty and period
  enable LINE                           enable output
  disable LINE                          disable output
  polarity LINE normal|inversed         set polarity of a disabled line
  apply LINE DUTY PERIOD [POLARITY] [on|off]
  quit
durations are Go durations (1.5ms) or plain nanoseconds`

var errQuit = errors.New("quit")

// Run executes commands read line by line from r, writing results to
// w, until r ends or a quit command. Failing commands are reported
// and do not stop Run.
func Run(r io.Reader, w io.Writer, reg *pwmchip.Registry) error {
	s := bufio.NewScanner(r)
	for s.Scan() {
		err := Exec(w, reg, s.Text())
		if err == errQuit {
			return nil
		}
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
		}
	}
	return s.Err()
}

// Exec executes a single command.
func Exec(w io.Writer, reg *pwmchip.Registry, cmd string) error {
	args, err := shlex.Split(cmd)
	if err != nil {
		return err
	}
	if len(args) == 0 || strings.HasPrefix(args[0], "#") {
		return nil
	}
	name, args := args[0], args[1:]
	switch name {
	case "help":
		fmt.Fprintln(w, usage)
		return nil
	case "quit", "exit":
		return errQuit
	case "lines":
		for _, l := range reg.Lines() {
			fmt.Fprintf(w, "%d\t%s\t%s", l.Number(), l, l.State())
			if label := l.Label(); label != "" {
				fmt.Fprintf(w, "\t(%s)", label)
			}
			fmt.Fprintln(w)
		}
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("%s: missing line", name)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%s: invalid line %q", name, args[0])
	}
	l, err := reg.Line(n)
	if err != nil {
		return err
	}
	args = args[1:]
	switch name {
	case "state":
		err = nargs(name, args, 0)
	case "config":
		if err = nargs(name, args, 2); err != nil {
			break
		}
		var duty, period time.Duration
		if duty, period, err = durations(args[0], args[1]); err != nil {
			break
		}
		err = l.Config(duty, period)
	case "enable":
		if err = nargs(name, args, 0); err == nil {
			err = l.Enable()
		}
	case "disable":
		if err = nargs(name, args, 0); err == nil {
			err = l.Disable()
		}
	case "polarity":
		if err = nargs(name, args, 1); err != nil {
			break
		}
		var p pwmchip.Polarity
		if p, err = pwmchip.ParsePolarity(args[0]); err == nil {
			err = l.SetPolarity(p)
		}
	case "apply":
		err = apply(l, args)
	default:
		return fmt.Errorf("unknown command %q, try help", name)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d\t%s\n", l.Number(), l.State())
	return nil
}

func apply(l *pwmchip.Line, args []string) error {
	if len(args) < 2 || len(args) > 4 {
		return errors.New("apply: want DUTY PERIOD [POLARITY] [on|off]")
	}
	duty, period, err := durations(args[0], args[1])
	if err != nil {
		return err
	}
	s := pwmchip.State{Period: period, Duty: duty, Enabled: true}
	for _, a := range args[2:] {
		switch a {
		case "on":
			s.Enabled = true
		case "off":
			s.Enabled = false
		default:
			if s.Polarity, err = pwmchip.ParsePolarity(a); err != nil {
				return err
			}
		}
	}
	return l.Apply(s)
}

func nargs(name string, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s: want %d arguments after the line, got %d", name, n, len(args))
	}
	return nil
}

func durations(duty, period string) (time.Duration, time.Duration, error) {
	d, err := ParseDuration(duty)
	if err != nil {
		return 0, 0, err
	}
	p, err := ParseDuration(period)
	if err != nil {
		return 0, 0, err
	}
	return d, p, nil
}

// ParseDuration parses a Go duration or an integer number of
// nanoseconds.
func ParseDuration(s string) (time.Duration, error) {
	if ns, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ns), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
