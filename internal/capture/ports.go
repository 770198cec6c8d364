package capture

// Buffer is a wl_buffer the compositor can copy a frame into
type Buffer interface {
	Destroy() error
}

// CaptureFrame is one zwlr_screencopy_frame_v1 instance
type CaptureFrame interface {
	Copy(buf Buffer) error
	Destroy() error
}

// ShmFactory is the bound wl_shm global
type ShmFactory interface {
	CreatePool(fd int, size int32) (ShmPool, error)
}

// ShmPool is a wl_shm_pool
type ShmPool interface {
	CreateBuffer(offset, width, height, stride int32, format uint32) (Buffer, error)
	Destroy() error
}

// ParamsFactory is the bound zwp_linux_dmabuf_v1 global
type ParamsFactory interface {
	// CreateParams creates a zwp_linux_buffer_params_v1 whose created and
	// failed events are delivered to notify as EventParamsCreated and
	// EventParamsFailed.
	CreateParams(notify func(Event)) (BufferParams, error)
}

// BufferParams is a zwp_linux_buffer_params_v1
type BufferParams interface {
	Add(fd int, plane, offset, stride, modifierHi, modifierLo uint32) error
	Create(width, height int32, format, flags uint32) error
	Destroy() error
}

// Conn is a live compositor connection with its capabilities bound.
type Conn interface {
	// CaptureOutput issues capture_output on the bound output and routes the
	// new frame's events to handle. Only the geometry event of mode is
	// listened for.
	CaptureOutput(showCursor bool, mode Mode, handle func(Event)) (CaptureFrame, error)

	// ShmFactory returns nil unless wl_shm was bound
	ShmFactory() ShmFactory

	// ParamsFactory returns nil unless zwp_linux_dmabuf_v1 was bound
	ParamsFactory() ParamsFactory

	// Dispatch blocks until one event has been read and dispatched
	Dispatch() error

	// Close disconnects. It must be safe to call more than once and from
	// another goroutine while Dispatch is blocked.
	Close() error
}

// Dialer connects to the compositor and binds the globals a mode needs
type Dialer interface {
	Dial(mode Mode) (Conn, error)
}

// DialerFunc adapts a function to Dialer
type DialerFunc func(mode Mode) (Conn, error)

// Dial calls f(mode)
func (f DialerFunc) Dial(mode Mode) (Conn, error) {
	return f(mode)
}

// Allocator creates GPU buffer objects on a render node
type Allocator interface {
	Allocate(width, height, format uint32) (BufferObject, error)
	Close() error
}

// BufferObject is one GPU allocation
type BufferObject interface {
	Stride() uint32
	Offset(plane int) uint32
	Modifier() uint64
	// ExportFd returns a new dma-buf descriptor owned by the caller
	ExportFd() (int, error)
	Destroy()
}
