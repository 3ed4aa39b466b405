package mmio

import (
	"fmt"

	"periph.io/x/host/v3/pmem"
)

// PMem maps physical memory through periph's pmem package.
type PMem struct{}

func (PMem) Map(base uint64, size int) (Window, error) {
	v, err := pmem.Map(base, size)
	if err != nil {
		return nil, fmt.Errorf("mmio: %w", err)
	}
	m, err := newMapping([]byte(v.Slice), v.Close)
	if err != nil {
		v.Close()
		return nil, err
	}
	return m, nil
}
