package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Frame is one completed capture owned by the caller. Exactly one of Data
// or DMABuf is set, depending on the engine mode.
type Frame struct {
	Format uint32
	Width  uint32
	Height uint32
	Stride uint32

	// Data holds a copy of the mapped shared-memory frame
	Data []byte

	// DMABuf references the GPU buffer of a dma-buf frame
	DMABuf *DMABuf

	// Sequence numbers frames per engine, starting at 1
	Sequence uint64

	// Timestamp is set by the consumer that paces the frame
	Timestamp time.Time
}

// Size returns the frame byte size, stride × height
func (f *Frame) Size() int {
	return int(f.Stride) * int(f.Height)
}

// Pixels returns the frame contents. For dma-buf frames the buffer is mapped
// for reading and release must be called once the bytes are no longer used.
func (f *Frame) Pixels() (pixels []byte, release func() error, err error) {
	if f.DMABuf == nil {
		return f.Data, func() error { return nil }, nil
	}
	return f.DMABuf.Map()
}

// Close releases the frame's descriptor, if any
func (f *Frame) Close() error {
	if f.DMABuf == nil {
		return nil
	}
	return f.DMABuf.Close()
}

// DMABuf is a caller-owned duplicate of the engine's dma-buf descriptor
type DMABuf struct {
	fd       int
	Size     int
	Offset   uint32
	Modifier uint64

	once sync.Once
	err  error
}

// NewDMABuf takes ownership of fd
func NewDMABuf(fd, size int, offset uint32, modifier uint64) *DMABuf {
	return &DMABuf{fd: fd, Size: size, Offset: offset, Modifier: modifier}
}

// Fd returns the descriptor, or -1 once closed
func (d *DMABuf) Fd() int {
	return d.fd
}

// Close closes the descriptor. It is safe to call more than once.
func (d *DMABuf) Close() error {
	d.once.Do(func() {
		d.err = unix.Close(d.fd)
		d.fd = -1
	})
	return d.err
}

// linux/dma-buf.h
const (
	dmaBufIoctlSync = 0x40086200
	dmaBufSyncRead  = 1 << 0
	dmaBufSyncStart = 0 << 2
	dmaBufSyncEnd   = 1 << 2
)

type dmaBufSync struct {
	flags uint64
}

func (d *DMABuf) sync(flags uint64) error {
	arg := dmaBufSync{flags: flags}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), dmaBufIoctlSync, uintptr(unsafe.Pointer(&arg)))
	if errno != 0 {
		return errno
	}
	return nil
}

// Map maps the buffer read-only, bracketed by DMA_BUF_IOCTL_SYNC. The
// returned slice starts at the plane offset.
func (d *DMABuf) Map() ([]byte, func() error, error) {
	if d.fd < 0 {
		return nil, nil, errors.New("dma-buf is closed")
	}
	length := int(d.Offset) + d.Size
	mem, err := unix.Mmap(d.fd, 0, length, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap dma-buf: %w", err)
	}
	if err := d.sync(dmaBufSyncStart | dmaBufSyncRead); err != nil {
		_ = unix.Munmap(mem)
		return nil, nil, fmt.Errorf("dma-buf sync start: %w", err)
	}
	release := func() error {
		return errors.Join(d.sync(dmaBufSyncEnd|dmaBufSyncRead), unix.Munmap(mem))
	}
	return mem[d.Offset:], release, nil
}
