// Package wayland connects the capture engine to a wlroots compositor
// through go-wayland and the screencopy and linux-dmabuf bindings.
package wayland

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rajveermalviya/go-wayland/wayland/client"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/wlrsrc/internal/capture"
	"github.com/bryanchriswhite/wlrsrc/internal/proto/linux_dmabuf"
	"github.com/bryanchriswhite/wlrsrc/internal/proto/wlr_screencopy"
)

// Highest protocol versions this client speaks
const (
	maxOutputVersion     = 4
	maxScreencopyVersion = 3
	maxDmabufVersion     = 3
	maxShmVersion        = 1
)

// Core interface names looked up in the registry
const (
	shmInterfaceName    = "wl_shm"
	outputInterfaceName = "wl_output"
)

// staleSender prefixes the error the client context returns for an event
// whose sender is not registered: a proxy destroyed while its events were
// in flight, or an object the compositor created on our behalf.
const staleSender = "ctx.Dispatch: unable find sender"

// factories selects which buffer factory globals are bound
type factories struct {
	shm    bool
	dmabuf bool
}

// factoriesFor binds only the factory of mode
func factoriesFor(mode capture.Mode) factories {
	if mode == capture.ModeGPU {
		return factories{dmabuf: true}
	}
	return factories{shm: true}
}

// Options selects the compositor socket and output
type Options struct {
	// Display is the socket name; empty uses $WAYLAND_DISPLAY
	Display string
	// Output is the wl_output name to capture; empty picks the first
	Output string
}

// OutputInfo describes an advertised wl_output
type OutputInfo struct {
	Global      uint32 `json:"global"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Width       int32  `json:"width"`
	Height      int32  `json:"height"`
	Refresh     int32  `json:"refresh_mhz"`

	proxy *client.Output
}

// Conn is a compositor connection implementing capture.Conn
type Conn struct {
	display  *client.Display
	ctx      *client.Context
	registry *client.Registry
	log      zerolog.Logger
	bind     factories

	shm               *client.Shm
	screencopy        *wlr_screencopy.ZwlrScreencopyManagerV1
	screencopyVersion uint32
	dmabuf            *linux_dmabuf.ZwpLinuxDmabufV1
	dmabufVersion     uint32
	dmabufFormats     map[uint32]struct{}
	outputs           []*OutputInfo
	output            *OutputInfo

	closeOnce sync.Once
	closeErr  error
}

// Dialer dials compositor connections for the capture engine
type Dialer struct {
	opts Options
	log  zerolog.Logger
}

// NewDialer creates a Dialer
func NewDialer(opts Options, log zerolog.Logger) *Dialer {
	return &Dialer{opts: opts, log: log}
}

// Dial connects, binds the outputs, the screencopy manager and the buffer
// factory of mode, and verifies that everything mode needs was advertised.
func (d *Dialer) Dial(mode capture.Mode) (capture.Conn, error) {
	c, err := connect(d.opts.Display, factoriesFor(mode), d.log)
	if err != nil {
		return nil, err
	}
	if err := c.require(mode); err != nil {
		c.Close()
		return nil, err
	}
	// The dma-buf format table and the output names arrive after binding.
	if mode == capture.ModeGPU || d.opts.Output != "" {
		if err := c.roundtrip(); err != nil {
			c.Close()
			return nil, fmt.Errorf("%w: roundtrip: %v", capture.ErrConnection, err)
		}
	}
	out, err := selectOutput(c.outputs, d.opts.Output)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.output = out
	c.log.Info().
		Str("output", out.Name).
		Int32("width", out.Width).
		Int32("height", out.Height).
		Uint32("screencopy_version", c.screencopyVersion).
		Msg("Connected to compositor")
	return c, nil
}

// connect binds the announced globals during one roundtrip
func connect(display string, bind factories, log zerolog.Logger) (*Conn, error) {
	d, err := client.Connect(display)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", capture.ErrConnection, err)
	}
	c := &Conn{
		display:       d,
		ctx:           d.Context(),
		log:           log,
		bind:          bind,
		dmabufFormats: make(map[uint32]struct{}),
	}

	registry, err := d.GetRegistry()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: get registry: %v", capture.ErrConnection, err)
	}
	c.registry = registry
	registry.SetGlobalHandler(c.handleGlobal)

	if err := c.roundtrip(); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: roundtrip: %v", capture.ErrConnection, err)
	}
	return c, nil
}

func (c *Conn) roundtrip() error {
	cb, err := c.display.Sync()
	if err != nil {
		return err
	}
	done := false
	cb.SetDoneHandler(func(client.CallbackDoneEvent) {
		done = true
	})
	for !done {
		if err := c.Dispatch(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) handleGlobal(e client.RegistryGlobalEvent) {
	switch e.Interface {
	case shmInterfaceName:
		if !c.bind.shm {
			return
		}
		shm := client.NewShm(c.ctx)
		if err := c.registry.Bind(e.Name, e.Interface, min(e.Version, maxShmVersion), shm); err == nil {
			c.shm = shm
		}

	case outputInterfaceName:
		output := client.NewOutput(c.ctx)
		if err := c.registry.Bind(e.Name, e.Interface, min(e.Version, maxOutputVersion), output); err != nil {
			return
		}
		info := &OutputInfo{Global: e.Name, proxy: output}
		output.SetNameHandler(func(ev client.OutputNameEvent) {
			info.Name = ev.Name
		})
		output.SetDescriptionHandler(func(ev client.OutputDescriptionEvent) {
			info.Description = ev.Description
		})
		output.SetModeHandler(func(ev client.OutputModeEvent) {
			if ev.Flags&uint32(client.OutputModeCurrent) == 0 {
				return
			}
			info.Width, info.Height, info.Refresh = ev.Width, ev.Height, ev.Refresh
		})
		c.outputs = append(c.outputs, info)

	case wlr_screencopy.ZwlrScreencopyManagerV1InterfaceName:
		sc := wlr_screencopy.NewZwlrScreencopyManagerV1(c.ctx)
		version := min(e.Version, maxScreencopyVersion)
		if err := c.registry.Bind(e.Name, e.Interface, version, sc); err == nil {
			c.screencopy = sc
			c.screencopyVersion = version
		}

	case linux_dmabuf.ZwpLinuxDmabufV1InterfaceName:
		if !c.bind.dmabuf {
			return
		}
		dmabuf := linux_dmabuf.NewZwpLinuxDmabufV1(c.ctx)
		version := min(e.Version, maxDmabufVersion)
		if err := c.registry.Bind(e.Name, e.Interface, version, dmabuf); err != nil {
			return
		}
		dmabuf.SetFormatHandler(func(ev linux_dmabuf.ZwpLinuxDmabufV1FormatEvent) {
			c.dmabufFormats[ev.Format] = struct{}{}
		})
		dmabuf.SetModifierHandler(func(ev linux_dmabuf.ZwpLinuxDmabufV1ModifierEvent) {
			c.dmabufFormats[ev.Format] = struct{}{}
		})
		c.dmabuf = dmabuf
		c.dmabufVersion = version
	}
}

// require checks the globals mode depends on
func (c *Conn) require(mode capture.Mode) error {
	if c.screencopy == nil {
		return fmt.Errorf("%w: %s", capture.ErrMissingCapability, wlr_screencopy.ZwlrScreencopyManagerV1InterfaceName)
	}
	switch mode {
	case capture.ModeSHM:
		if c.shm == nil {
			return fmt.Errorf("%w: %s", capture.ErrMissingCapability, shmInterfaceName)
		}
	case capture.ModeGPU:
		if c.dmabuf == nil {
			return fmt.Errorf("%w: %s", capture.ErrMissingCapability, linux_dmabuf.ZwpLinuxDmabufV1InterfaceName)
		}
		if c.screencopyVersion < 3 {
			return fmt.Errorf("%w: %s version 3 required for dma-buf, compositor offers %d",
				capture.ErrMissingCapability, wlr_screencopy.ZwlrScreencopyManagerV1InterfaceName, c.screencopyVersion)
		}
	}
	return nil
}

// selectOutput returns the named output, or the first advertised one
func selectOutput(outputs []*OutputInfo, name string) (*OutputInfo, error) {
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: no wl_output advertised", capture.ErrMissingCapability)
	}
	if name == "" {
		return outputs[0], nil
	}
	names := make([]string, 0, len(outputs))
	for _, o := range outputs {
		if o.Name == name {
			return o, nil
		}
		names = append(names, o.Name)
	}
	return nil, fmt.Errorf("%w: output %q not found (have %s)",
		capture.ErrMissingCapability, name, strings.Join(names, ", "))
}

// CaptureOutput implements capture.Conn
func (c *Conn) CaptureOutput(showCursor bool, mode capture.Mode, handle func(capture.Event)) (capture.CaptureFrame, error) {
	var overlayCursor int32
	if showCursor {
		overlayCursor = 1
	}
	frame, err := c.screencopy.CaptureOutput(overlayCursor, c.output.proxy)
	if err != nil {
		return nil, err
	}

	if mode == capture.ModeGPU {
		frame.SetLinuxDmabufHandler(func(e wlr_screencopy.ZwlrScreencopyFrameV1LinuxDmabufEvent) {
			handle(capture.Event{Kind: capture.EventLinuxDmabuf, Format: e.Format, Width: e.Width, Height: e.Height})
		})
	} else {
		legacy := c.screencopyVersion < 3
		frame.SetBufferHandler(func(e wlr_screencopy.ZwlrScreencopyFrameV1BufferEvent) {
			handle(capture.Event{Kind: capture.EventBuffer, Format: e.Format, Width: e.Width, Height: e.Height, Stride: e.Stride})
			// Before version 3 the buffer event is the only geometry event.
			if legacy {
				handle(capture.Event{Kind: capture.EventBufferDone})
			}
		})
	}
	frame.SetBufferDoneHandler(func(wlr_screencopy.ZwlrScreencopyFrameV1BufferDoneEvent) {
		handle(capture.Event{Kind: capture.EventBufferDone})
	})
	frame.SetFlagsHandler(func(e wlr_screencopy.ZwlrScreencopyFrameV1FlagsEvent) {
		handle(capture.Event{Kind: capture.EventFlags, Flags: e.Flags})
	})
	frame.SetDamageHandler(func(e wlr_screencopy.ZwlrScreencopyFrameV1DamageEvent) {
		handle(capture.Event{Kind: capture.EventDamage, Damage: capture.Rect{X: e.X, Y: e.Y, Width: e.Width, Height: e.Height}})
	})
	frame.SetReadyHandler(func(e wlr_screencopy.ZwlrScreencopyFrameV1ReadyEvent) {
		handle(capture.Event{Kind: capture.EventReady, TvSec: uint64(e.TvSecHi)<<32 | uint64(e.TvSecLo), TvNsec: e.TvNsec})
	})
	frame.SetFailedHandler(func(wlr_screencopy.ZwlrScreencopyFrameV1FailedEvent) {
		handle(capture.Event{Kind: capture.EventFailed})
	})
	return &captureFrame{frame: frame}, nil
}

// ShmFactory implements capture.Conn
func (c *Conn) ShmFactory() capture.ShmFactory {
	if c.shm == nil {
		return nil
	}
	return &shmFactory{shm: c.shm}
}

// ParamsFactory implements capture.Conn
func (c *Conn) ParamsFactory() capture.ParamsFactory {
	if c.dmabuf == nil {
		return nil
	}
	return &paramsFactory{dmabuf: c.dmabuf}
}

// Dispatch reads and dispatches one event. Events addressed to objects
// that were already destroyed are dropped.
func (c *Conn) Dispatch() error {
	err := c.ctx.Dispatch()
	if err != nil && isStaleSender(err) {
		c.log.Trace().Err(err).Msg("Dropped event for destroyed object")
		return nil
	}
	return err
}

func isStaleSender(err error) bool {
	return errors.Unwrap(err) == nil && strings.HasPrefix(err.Error(), staleSender)
}

// Close disconnects from the compositor
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.screencopy != nil {
			_ = c.screencopy.Destroy()
		}
		if c.dmabuf != nil {
			_ = c.dmabuf.Destroy()
		}
		c.closeErr = c.ctx.Close()
	})
	return c.closeErr
}

// Outputs returns the advertised outputs
func (c *Conn) Outputs() []OutputInfo {
	out := make([]OutputInfo, 0, len(c.outputs))
	for _, o := range c.outputs {
		out = append(out, *o)
	}
	return out
}

// DmabufFormats returns the sorted fourcc codes announced by the
// linux-dmabuf global
func (c *Conn) DmabufFormats() []uint32 {
	formats := make([]uint32, 0, len(c.dmabufFormats))
	for f := range c.dmabufFormats {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

type captureFrame struct {
	frame *wlr_screencopy.ZwlrScreencopyFrameV1
}

func (f *captureFrame) Copy(buf capture.Buffer) error {
	b, ok := buf.(*client.Buffer)
	if !ok {
		return fmt.Errorf("unexpected buffer type %T", buf)
	}
	return f.frame.Copy(b)
}

func (f *captureFrame) Destroy() error {
	return f.frame.Destroy()
}

type shmFactory struct {
	shm *client.Shm
}

func (f *shmFactory) CreatePool(fd int, size int32) (capture.ShmPool, error) {
	pool, err := f.shm.CreatePool(fd, size)
	if err != nil {
		return nil, err
	}
	return &shmPool{pool: pool}, nil
}

type shmPool struct {
	pool *client.ShmPool
}

func (p *shmPool) CreateBuffer(offset, width, height, stride int32, format uint32) (capture.Buffer, error) {
	buf, err := p.pool.CreateBuffer(offset, width, height, stride, format)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *shmPool) Destroy() error {
	return p.pool.Destroy()
}

type paramsFactory struct {
	dmabuf *linux_dmabuf.ZwpLinuxDmabufV1
}

func (f *paramsFactory) CreateParams(notify func(capture.Event)) (capture.BufferParams, error) {
	params, err := f.dmabuf.CreateParams()
	if err != nil {
		return nil, err
	}
	params.SetCreatedHandler(func(e linux_dmabuf.ZwpLinuxBufferParamsV1CreatedEvent) {
		notify(capture.Event{Kind: capture.EventParamsCreated, Buffer: e.Buffer})
	})
	params.SetFailedHandler(func(linux_dmabuf.ZwpLinuxBufferParamsV1FailedEvent) {
		notify(capture.Event{Kind: capture.EventParamsFailed})
	})
	return params, nil
}
