package capture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/wlrsrc/internal/drm"
)

// Options configures an Engine
type Options struct {
	Mode       Mode
	ShowCursor bool

	// FindRenderNode locates the GPU render node in dma-buf mode.
	// Defaults to scanning /sys/class/drm.
	FindRenderNode func() (string, error)

	// OpenAllocator opens the GPU allocator on a render node.
	// Defaults to GBM.
	OpenAllocator func(path string) (Allocator, error)

	// OnCaps is called whenever the negotiated frame size changes
	OnCaps func(Caps)
}

// Stats counts engine activity
type Stats struct {
	Mode       string     `json:"mode"`
	Started    bool       `json:"started"`
	Frames     uint64     `json:"frames"`
	Failures   uint64     `json:"failures"`
	LastError  string     `json:"last_error,omitempty"`
	Broken     bool       `json:"broken"`
	Descriptor Descriptor `json:"descriptor"`
}

// Engine captures frames from the first (or configured) output of a
// wlroots compositor. ProduceFrame calls are single-flight.
type Engine struct {
	opts   Options
	dialer Dialer
	log    zerolog.Logger

	// frameMu is held for the whole of Start, Stop and ProduceFrame
	frameMu sync.Mutex

	mu       sync.Mutex
	conn     Conn
	backend  Backend
	started  bool
	broken   error
	caps     Caps
	hasCaps  bool
	seq      uint64
	frames   uint64
	failures uint64
	lastErr  error
	last     Descriptor
}

// NewEngine creates an engine that connects through dialer on Start
func NewEngine(dialer Dialer, opts Options, log zerolog.Logger) *Engine {
	if opts.FindRenderNode == nil {
		opts.FindRenderNode = func() (string, error) {
			return drm.FindRenderNode(drm.DefaultSysRoot)
		}
	}
	if opts.OpenAllocator == nil {
		opts.OpenAllocator = OpenGBM
	}
	return &Engine{
		opts:   opts,
		dialer: dialer,
		log:    log.With().Str("mode", opts.Mode.String()).Logger(),
	}
}

// Name returns the capturer name
func (e *Engine) Name() string {
	return "wlr-screencopy (" + e.opts.Mode.String() + ")"
}

// Mode returns the fixed buffer mode
func (e *Engine) Mode() Mode {
	return e.opts.Mode
}

// Start discovers the render device in dma-buf mode, connects to the
// compositor and prepares the backend. Calling Start on a started engine
// is a no-op.
func (e *Engine) Start() error {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()

	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if started {
		return nil
	}

	var alloc Allocator
	if e.opts.Mode == ModeGPU {
		node, err := e.opts.FindRenderNode()
		if err != nil {
			if errors.Is(err, ErrNoRenderDevice) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrNoRenderDevice, err)
		}
		alloc, err = e.opts.OpenAllocator(node)
		if err != nil {
			return fmt.Errorf("%w: open %s: %v", ErrNoRenderDevice, node, err)
		}
		ev := e.log.Info().Str("render_node", node)
		if s, ok := alloc.(fmt.Stringer); ok {
			ev = ev.Str("allocator", s.String())
		}
		ev.Msg("Using render node")
	}

	conn, err := e.dialer.Dial(e.opts.Mode)
	if err != nil {
		if alloc != nil {
			_ = alloc.Close()
		}
		if !errors.Is(err, ErrConnection) && !errors.Is(err, ErrMissingCapability) {
			err = fmt.Errorf("%w: %v", ErrConnection, err)
		}
		return err
	}

	backend, err := newBackend(e.opts.Mode, conn, alloc, e.log)
	if err != nil {
		if alloc != nil {
			_ = alloc.Close()
		}
		_ = conn.Close()
		return err
	}

	e.mu.Lock()
	e.conn = conn
	e.backend = backend
	e.started = true
	e.broken = nil
	e.mu.Unlock()

	e.log.Info().Bool("show_cursor", e.opts.ShowCursor).Msg("Capture engine started")
	return nil
}

// Stop releases the connection and all buffers. A frame in flight is
// unblocked by closing the connection and fails with ErrDispatch.
func (e *Engine) Stop() error {
	if !e.frameMu.TryLock() {
		e.mu.Lock()
		conn := e.conn
		e.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		e.frameMu.Lock()
	}
	defer e.frameMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return nil
	}

	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.log.Warn().Err(err).Msg("Failed to release capture buffers")
		}
	}
	var err error
	if e.conn != nil {
		err = e.conn.Close()
	}
	e.backend = nil
	e.conn = nil
	e.started = false
	e.broken = nil
	e.hasCaps = false

	e.log.Info().Uint64("frames", e.frames).Msg("Capture engine stopped")
	return err
}

// ProduceFrame requests one frame and pumps events until it is ready or
// failed. A failed session leaves the engine usable; a dispatch failure
// does not.
func (e *Engine) ProduceFrame() (*Frame, error) {
	if !e.frameMu.TryLock() {
		return nil, ErrBusy
	}
	defer e.frameMu.Unlock()

	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil, ErrNotStarted
	}
	if e.broken != nil {
		err := fmt.Errorf("%w: %v", ErrEngineBroken, e.broken)
		e.mu.Unlock()
		return nil, err
	}
	e.seq++
	id := e.seq
	conn, backend := e.conn, e.backend
	e.mu.Unlock()

	s := newSession(id, e.opts.Mode, e.opts.ShowCursor, conn, backend, e.log)
	s.onGeometry = e.publishCaps
	frame, err := e.pump(s)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.failures++
		e.lastErr = err
		if errors.Is(err, ErrDispatch) {
			e.broken = err
		}
		return nil, err
	}
	e.frames++
	e.last = backend.Describe()
	frame.Sequence = id
	return frame, nil
}

func (e *Engine) pump(s *session) (*Frame, error) {
	defer s.teardown()

	if err := s.begin(); err != nil {
		return nil, err
	}
	for !s.state.Terminal() {
		if err := s.conn.Dispatch(); err != nil {
			s.abort(fmt.Errorf("%w: %v", ErrDispatch, err))
		}
	}
	if s.state == StateFailed {
		return nil, s.err
	}
	return s.backend.Handoff()
}

func (e *Engine) publishCaps(g Geometry) {
	caps := CapsFor(e.opts.Mode, g)

	e.mu.Lock()
	changed := !e.hasCaps || e.caps != caps
	e.caps = caps
	e.hasCaps = true
	e.mu.Unlock()

	if !changed {
		return
	}
	e.log.Info().Str("caps", caps.String()).Msg("Negotiated capabilities")
	if e.opts.OnCaps != nil {
		e.opts.OnCaps(caps)
	}
}

// Caps returns the capabilities of the last negotiated geometry
func (e *Engine) Caps() (Caps, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.caps, e.hasCaps
}

// Describe returns the allocation used by the last completed frame
func (e *Engine) Describe() Descriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Stats returns a snapshot of engine counters
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Stats{
		Mode:       e.opts.Mode.String(),
		Started:    e.started,
		Frames:     e.frames,
		Failures:   e.failures,
		Broken:     e.broken != nil,
		Descriptor: e.last,
	}
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}
	return st
}
