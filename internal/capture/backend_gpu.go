package capture

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/bryanchriswhite/wlrsrc/internal/gbm"
)

type gpuBackend struct {
	factory ParamsFactory
	alloc   Allocator
	log     zerolog.Logger

	bo     BufferObject
	fd     int
	geom   Geometry
	params BufferParams
	// buffer is the last imported wl_buffer; it outlives its session
	buffer Buffer
}

func newGPUBackend(factory ParamsFactory, alloc Allocator, log zerolog.Logger) *gpuBackend {
	return &gpuBackend{factory: factory, alloc: alloc, log: log, fd: -1}
}

func (b *gpuBackend) Mode() Mode { return ModeGPU }

func (b *gpuBackend) Negotiate(g Geometry) (Geometry, error) {
	if g.Width == 0 || g.Height == 0 {
		return g, fmt.Errorf("%w: empty frame %dx%d", ErrAllocation, g.Width, g.Height)
	}
	if b.bo != nil && b.geom.Width == g.Width && b.geom.Height == g.Height && b.geom.Format == g.Format {
		return b.geom, nil
	}
	b.dropAllocation()

	bo, err := b.alloc.Allocate(g.Width, g.Height, g.Format)
	if err != nil {
		return g, fmt.Errorf("%w: %v", ErrAllocation, err)
	}
	fd, err := bo.ExportFd()
	if err != nil {
		bo.Destroy()
		return g, fmt.Errorf("%w: export: %v", ErrAllocation, err)
	}
	g.Stride = bo.Stride()
	g.Offset = bo.Offset(0)
	g.Modifier = bo.Modifier()

	b.bo, b.fd, b.geom = bo, fd, g
	b.log.Debug().
		Uint32("width", g.Width).
		Uint32("height", g.Height).
		Uint32("stride", g.Stride).
		Uint32("offset", g.Offset).
		Uint64("modifier", g.Modifier).
		Str("format", FormatName(g.Format)).
		Msg("Allocated GPU buffer")
	return g, nil
}

func (b *gpuBackend) OnPeerReady(notify func(Event)) (Buffer, error) {
	if b.bo == nil {
		return nil, fmt.Errorf("%w: no buffer object", ErrAllocation)
	}
	b.destroyParams()

	params, err := b.factory.CreateParams(notify)
	if err != nil {
		return nil, fmt.Errorf("%w: create_params: %v", ErrDispatch, err)
	}
	b.params = params

	hi, lo := SplitModifier(b.geom.Modifier)
	if err := params.Add(b.fd, 0, b.geom.Offset, b.geom.Stride, hi, lo); err != nil {
		return nil, fmt.Errorf("%w: params add: %v", ErrDispatch, err)
	}
	if err := params.Create(int32(b.geom.Width), int32(b.geom.Height), b.geom.Format, 0); err != nil {
		return nil, fmt.Errorf("%w: params create: %v", ErrDispatch, err)
	}
	return nil, nil
}

// Confirm retains buf before destroying the buffer it replaces
func (b *gpuBackend) Confirm(buf Buffer) error {
	if buf == nil {
		return fmt.Errorf("%w: created event without a buffer", ErrNegotiation)
	}
	prev := b.buffer
	b.buffer = buf
	if prev != nil {
		if err := prev.Destroy(); err != nil {
			b.log.Warn().Err(err).Msg("Failed to destroy previous imported buffer")
		}
	}
	return nil
}

func (b *gpuBackend) Describe() Descriptor {
	return Descriptor{
		Mode:     ModeGPU,
		Fd:       b.fd,
		Size:     b.geom.Size(),
		Format:   b.geom.Format,
		Width:    b.geom.Width,
		Height:   b.geom.Height,
		Stride:   b.geom.Stride,
		Offset:   b.geom.Offset,
		Modifier: b.geom.Modifier,
	}
}

func (b *gpuBackend) Handoff() (*Frame, error) {
	if b.fd < 0 {
		return nil, fmt.Errorf("%w: no exported descriptor", ErrAllocation)
	}
	fd, err := unix.FcntlInt(uintptr(b.fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: dup dma-buf: %v", ErrAllocation, err)
	}
	return &Frame{
		Format: b.geom.Format,
		Width:  b.geom.Width,
		Height: b.geom.Height,
		Stride: b.geom.Stride,
		DMABuf: NewDMABuf(fd, b.geom.Size(), b.geom.Offset, b.geom.Modifier),
	}, nil
}

func (b *gpuBackend) Release() error {
	return b.destroyParams()
}

func (b *gpuBackend) Close() error {
	errs := []error{b.destroyParams()}
	if b.buffer != nil {
		errs = append(errs, b.buffer.Destroy())
		b.buffer = nil
	}
	errs = append(errs, b.dropAllocation(), b.alloc.Close())
	return errors.Join(errs...)
}

func (b *gpuBackend) destroyParams() error {
	if b.params == nil {
		return nil
	}
	err := b.params.Destroy()
	b.params = nil
	return err
}

func (b *gpuBackend) dropAllocation() error {
	var err error
	if b.fd >= 0 {
		err = unix.Close(b.fd)
		b.fd = -1
	}
	if b.bo != nil {
		b.bo.Destroy()
		b.bo = nil
	}
	b.geom = Geometry{}
	return err
}

type gbmAllocator struct {
	dev *gbm.Device
}

// OpenGBM opens a GBM allocator on the render node at path
func OpenGBM(path string) (Allocator, error) {
	dev, err := gbm.Open(path)
	if err != nil {
		return nil, err
	}
	return &gbmAllocator{dev: dev}, nil
}

func (a *gbmAllocator) Allocate(width, height, format uint32) (BufferObject, error) {
	bo, err := a.dev.Create(width, height, format)
	if err != nil {
		return nil, err
	}
	return bo, nil
}

func (a *gbmAllocator) String() string {
	return a.dev.Backend() + ":" + a.dev.Path()
}

func (a *gbmAllocator) Close() error {
	return a.dev.Close()
}
