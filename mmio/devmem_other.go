//go:build !linux

package mmio

import "errors"

type DevMem struct {
	Path string
}

func (d DevMem) Map(base uint64, size int) (Window, error) {
	return nil, errors.New("mmio: memory devices are only supported on linux")
}
