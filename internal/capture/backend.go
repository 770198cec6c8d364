package capture

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Backend owns the buffer storage of one engine mode. Session transitions
// call into it in order: Negotiate once the geometry is known, OnPeerReady
// after buffer_done, Confirm when an imported buffer is created, then
// Handoff after ready and Release when the session ends.
type Backend interface {
	Mode() Mode

	// Negotiate allocates or reuses storage for g and returns the final
	// geometry, including the stride chosen for GPU buffers.
	Negotiate(g Geometry) (Geometry, error)

	// OnPeerReady returns the buffer to copy into, or nil when the buffer
	// is created asynchronously and arrives through notify.
	OnPeerReady(notify func(Event)) (Buffer, error)

	// Confirm adopts an asynchronously created buffer
	Confirm(buf Buffer) error

	// Describe reports the live allocation
	Describe() Descriptor

	// Handoff produces the caller-owned frame after ready
	Handoff() (*Frame, error)

	// Release drops per-session objects and keeps reusable storage
	Release() error

	// Close releases everything
	Close() error
}

func newBackend(mode Mode, conn Conn, alloc Allocator, log zerolog.Logger) (Backend, error) {
	switch mode {
	case ModeSHM:
		f := conn.ShmFactory()
		if f == nil {
			return nil, fmt.Errorf("%w: wl_shm", ErrMissingCapability)
		}
		return newSHMBackend(f, log), nil
	case ModeGPU:
		f := conn.ParamsFactory()
		if f == nil {
			return nil, fmt.Errorf("%w: zwp_linux_dmabuf_v1", ErrMissingCapability)
		}
		if alloc == nil {
			return nil, ErrNoRenderDevice
		}
		return newGPUBackend(f, alloc, log), nil
	default:
		return nil, fmt.Errorf("unsupported capture mode %s", mode)
	}
}
