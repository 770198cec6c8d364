package capture

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/wlrsrc/internal/shm"
)

const shmRegionName = "wlrsrc-frame"

type shmBackend struct {
	factory ShmFactory
	log     zerolog.Logger

	region *shm.Region
	pool   ShmPool
	buffer Buffer
	geom   Geometry
}

func newSHMBackend(factory ShmFactory, log zerolog.Logger) *shmBackend {
	return &shmBackend{factory: factory, log: log}
}

func (b *shmBackend) Mode() Mode { return ModeSHM }

func (b *shmBackend) Negotiate(g Geometry) (Geometry, error) {
	if g.Width == 0 || g.Height == 0 {
		return g, fmt.Errorf("%w: empty frame %dx%d", ErrAllocation, g.Width, g.Height)
	}
	if uint64(g.Stride) < uint64(g.Width)*uint64(BytesPerPixel(g.Format)) {
		return g, fmt.Errorf("%w: stride %d too small for width %d", ErrAllocation, g.Stride, g.Width)
	}
	size := g.Size()
	if size > math.MaxInt32 {
		return g, fmt.Errorf("%w: frame of %d bytes exceeds pool limit", ErrAllocation, size)
	}

	if b.buffer != nil && b.geom == g {
		return g, nil
	}
	b.dropStorage()

	region, err := shm.Create(shmRegionName, size)
	if err != nil {
		return g, fmt.Errorf("%w: %v", ErrAllocation, err)
	}
	pool, err := b.factory.CreatePool(region.Fd(), int32(size))
	if err != nil {
		_ = region.Close()
		return g, fmt.Errorf("%w: create pool: %v", ErrAllocation, err)
	}
	buffer, err := pool.CreateBuffer(0, int32(g.Width), int32(g.Height), int32(g.Stride), g.Format)
	if err != nil {
		_ = pool.Destroy()
		_ = region.Close()
		return g, fmt.Errorf("%w: create buffer: %v", ErrAllocation, err)
	}

	b.region, b.pool, b.buffer, b.geom = region, pool, buffer, g
	b.log.Debug().
		Str("memfd", region.Name()).
		Int("fd", region.Fd()).
		Uint32("width", g.Width).
		Uint32("height", g.Height).
		Uint32("stride", g.Stride).
		Int("size", size).
		Str("format", FormatName(g.Format)).
		Msg("Allocated shared memory buffer")
	return g, nil
}

func (b *shmBackend) OnPeerReady(func(Event)) (Buffer, error) {
	if b.buffer == nil {
		return nil, fmt.Errorf("%w: no buffer bound", ErrAllocation)
	}
	return b.buffer, nil
}

func (b *shmBackend) Confirm(Buffer) error {
	return errors.New("shared memory buffers are created synchronously")
}

func (b *shmBackend) Describe() Descriptor {
	d := Descriptor{
		Mode:   ModeSHM,
		Fd:     -1,
		Format: b.geom.Format,
		Width:  b.geom.Width,
		Height: b.geom.Height,
		Stride: b.geom.Stride,
	}
	if b.region != nil {
		d.Fd = b.region.Fd()
		d.Size = b.region.Size()
	}
	return d
}

func (b *shmBackend) Handoff() (*Frame, error) {
	if b.region == nil {
		return nil, fmt.Errorf("%w: no buffer bound", ErrAllocation)
	}
	data := make([]byte, b.region.Size())
	copy(data, b.region.Bytes())
	return &Frame{
		Format: b.geom.Format,
		Width:  b.geom.Width,
		Height: b.geom.Height,
		Stride: b.geom.Stride,
		Data:   data,
	}, nil
}

func (b *shmBackend) Release() error { return nil }

func (b *shmBackend) Close() error {
	return b.dropStorage()
}

func (b *shmBackend) dropStorage() error {
	var errs []error
	if b.buffer != nil {
		errs = append(errs, b.buffer.Destroy())
		b.buffer = nil
	}
	if b.pool != nil {
		errs = append(errs, b.pool.Destroy())
		b.pool = nil
	}
	if b.region != nil {
		errs = append(errs, b.region.Close())
		b.region = nil
	}
	b.geom = Geometry{}
	return errors.Join(errs...)
}
