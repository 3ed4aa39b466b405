package serialport

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestCandidates(t *testing.T) {
	tests := []struct {
		dev, goos string
		want      []string
	}{
		{"/dev/ttyS0", "linux", []string{"/dev/ttyS0"}},
		{"", "linux", []string{"/dev/serial0", "/dev/ttyAMA0", "/dev/ttyUSB0"}},
		{"", "windows", []string{"COM3"}},
		{"", "plan9", nil},
	}
	for _, test := range tests {
		got := candidates(test.dev, test.goos)
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("candidates(%q, %q) = %v, want %v", test.dev, test.goos, got, test.want)
		}
	}
}

func TestOpenMissing(t *testing.T) {
	dev := filepath.Join(t.TempDir(), "missing")
	if s, err := Open(dev, 0); err == nil {
		s.Close()
		t.Fatalf("opened non-existent device %s", dev)
	}
}
