package mmio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// DevMem maps physical memory through a memory device
// such as /dev/mem.
type DevMem struct {
	// Path is the memory device. Defaults to /dev/mem.
	Path string
}

func (d DevMem) Map(base uint64, size int) (Window, error) {
	path := d.Path
	if path == "" {
		path = "/dev/mem"
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmio: %w", err)
	}
	// The mapping outlives the descriptor.
	defer f.Close()
	start, length, delta := pageSpan(base, size, os.Getpagesize())
	mem, err := unix.Mmap(int(f.Fd()), int64(start), length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmio: mmap %s at %#x: %w", path, start, err)
	}
	m, err := newMapping(mem[delta:delta+size], func() error {
		return unix.Munmap(mem)
	})
	if err != nil {
		unix.Munmap(mem)
		return nil, err
	}
	return m, nil
}
