//go:build cgo && linux

package gbm

/*
#cgo pkg-config: gbm
#include <stdint.h>
#include <gbm.h>
*/
import "C"

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Device is a GBM device created on an opened render node
type Device struct {
	mu   sync.Mutex
	path string
	fd   int
	dev  *C.struct_gbm_device
}

// Open opens the render node at path and creates a GBM device on it
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	dev := C.gbm_create_device(C.int(fd))
	if dev == nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w on %s", ErrCreateDevice, path)
	}

	return &Device{path: path, fd: fd, dev: dev}, nil
}

// Path returns the render node the device was opened on
func (d *Device) Path() string {
	return d.path
}

// Backend returns the name of the GBM backend, e.g. "drm"
func (d *Device) Backend() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return ""
	}
	return C.GoString(C.gbm_device_get_backend_name(d.dev))
}

// Create allocates a linear, renderable buffer object
func (d *Device) Create(width, height, format uint32) (*BO, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dev == nil {
		return nil, ErrClosed
	}

	flags := C.uint32_t(C.GBM_BO_USE_RENDERING | C.GBM_BO_USE_LINEAR)
	bo := C.gbm_bo_create(d.dev, C.uint32_t(width), C.uint32_t(height), C.uint32_t(format), flags)
	if bo == nil {
		return nil, fmt.Errorf("%w: %dx%d format %#08x", ErrCreateBO, width, height, format)
	}

	return &BO{bo: bo}, nil
}

// Close destroys the device and closes the render node
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dev == nil {
		return nil
	}
	C.gbm_device_destroy(d.dev)
	d.dev = nil
	return unix.Close(d.fd)
}

// BO is a single GBM buffer object
type BO struct {
	bo *C.struct_gbm_bo
}

// Stride returns the row pitch in bytes of plane 0
func (b *BO) Stride() uint32 {
	return uint32(C.gbm_bo_get_stride(b.bo))
}

// Offset returns the byte offset of the given plane
func (b *BO) Offset(plane int) uint32 {
	return uint32(C.gbm_bo_get_offset(b.bo, C.int(plane)))
}

// Modifier returns the format modifier of the allocation
func (b *BO) Modifier() uint64 {
	return uint64(C.gbm_bo_get_modifier(b.bo))
}

// ExportFd returns a new dma-buf descriptor for the buffer. The caller owns it.
func (b *BO) ExportFd() (int, error) {
	if b.bo == nil {
		return -1, ErrClosed
	}
	fd := int(C.gbm_bo_get_fd(b.bo))
	if fd < 0 {
		return -1, ErrExportFd
	}
	return fd, nil
}

// Destroy frees the buffer object
func (b *BO) Destroy() {
	if b.bo == nil {
		return
	}
	C.gbm_bo_destroy(b.bo)
	b.bo = nil
}
