//go:build linux

// Package shm allocates anonymous shared memory regions suitable for wl_shm pools.
package shm

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrInvalidSize is returned for non-positive region sizes
var ErrInvalidSize = errors.New("shm: invalid region size")

// Region is a memfd-backed mapping shared with the compositor.
type Region struct {
	name string
	fd   int
	data []byte

	once sync.Once
	err  error
}

// Create allocates an anonymous file of size bytes and maps it
// read/write. The descriptor is close-on-exec.
func Create(name string, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ftruncate %d bytes: %w", size, err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}

	return &Region{name: name, fd: fd, data: data}, nil
}

// Name returns the memfd name
func (r *Region) Name() string {
	return r.name
}

// Fd returns the descriptor backing the region. It stays owned by the Region.
func (r *Region) Fd() int {
	return r.fd
}

// Size returns the mapping length in bytes
func (r *Region) Size() int {
	return len(r.data)
}

// Bytes returns the live mapping. Contents change whenever the compositor
// copies into the region.
func (r *Region) Bytes() []byte {
	return r.data
}

// Close unmaps the region and closes its descriptor. Safe to call twice.
func (r *Region) Close() error {
	r.once.Do(func() {
		var errs []error
		if r.data != nil {
			if err := unix.Munmap(r.data); err != nil {
				errs = append(errs, fmt.Errorf("munmap: %w", err))
			}
			r.data = nil
		}
		if r.fd >= 0 {
			if err := unix.Close(r.fd); err != nil {
				errs = append(errs, fmt.Errorf("close: %w", err))
			}
			r.fd = -1
		}
		r.err = errors.Join(errs...)
	})
	return r.err
}
