// Package golden compares register access traces with golden files.
package golden

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"rpipwm.org/mmio"
)

// CompareTrace compares trace with the golden file at path, or
// rewrites the file if update is set.
func CompareTrace(path string, update bool, trace []mmio.Access) error {
	if update {
		return os.WriteFile(path, EncodeTrace(trace), 0o640)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	golden, err := DecodeTrace(b)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	mismatches := 0
	var first string
	for i := range min(len(trace), len(golden)) {
		if a1, a2 := trace[i], golden[i]; a1 != a2 {
			if mismatches == 0 {
				first = fmt.Sprintf("access %d is %v, want %v", i, a1, a2)
			}
			mismatches++
		}
	}
	if mismatches > 0 || len(trace) != len(golden) {
		if first == "" {
			first = "traces differ in length"
		}
		return fmt.Errorf("%s: trace lengths %d, %d, with %d/%d mismatches: %s", path, len(trace), len(golden), mismatches, len(golden), first)
	}
	return nil
}

// EncodeTrace formats a trace one access per line.
func EncodeTrace(trace []mmio.Access) []byte {
	buf := new(bytes.Buffer)
	for _, a := range trace {
		fmt.Fprintln(buf, a)
	}
	return buf.Bytes()
}

// DecodeTrace parses a trace in the format of EncodeTrace. Blank lines
// and lines starting with # are ignored.
func DecodeTrace(enc []byte) ([]mmio.Access, error) {
	var trace []mmio.Access
	s := bufio.NewScanner(bytes.NewReader(enc))
	for n := 1; s.Scan(); n++ {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f := strings.Fields(line)
		if len(f) != 3 {
			return nil, fmt.Errorf("line %d: malformed access %q", n, line)
		}
		var a mmio.Access
		switch f[0] {
		case "R":
		case "W":
			a.Write = true
		default:
			return nil, fmt.Errorf("line %d: unknown access %q", n, f[0])
		}
		addr, err := strconv.ParseUint(f[1], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		v, err := strconv.ParseUint(f[2], 0, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		a.Addr, a.Value = addr, uint32(v)
		trace = append(trace, a)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if len(trace) == 0 {
		return nil, errors.New("empty trace")
	}
	return trace, nil
}
