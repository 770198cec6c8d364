package capture

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// fakeConn plays the compositor side of a screencopy session. Events are
// queued by requests and delivered one per Dispatch call. Like the wayland
// connection, events addressed to a destroyed object are dropped.
type fakeConn struct {
	format, width, height, stride uint32

	shm    *fakeShm
	params *fakeParamsFactory

	// fill is written into the bound buffer when copy is requested
	fill byte

	failCapture bool
	duplicate   bool
	// announceBoth sends buffer and linux_dmabuf as a version 3 compositor does
	announceBoth bool
	damage      bool
	paramsFail  int
	dispatchErr error

	gate *gate

	queue   []queued
	stale   int
	journal []string
	nextID  int
	closed  bool
	frames  int
	cursors []bool
}

// queued is an event for the object whose destroyed flag is dead
type queued struct {
	dead *bool
	fn   func()
}

type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newFakeConn(mode Mode, width, height uint32) *fakeConn {
	c := &fakeConn{
		width:  width,
		height: height,
		stride: width * 4,
		format: ShmFormatXRGB8888,
	}
	if mode == ModeGPU {
		c.format = FourccXRGB8888
		c.params = &fakeParamsFactory{conn: c}
	} else {
		c.shm = &fakeShm{conn: c}
	}
	return c
}

func (c *fakeConn) record(format string, args ...any) {
	c.journal = append(c.journal, fmt.Sprintf(format, args...))
}

func (c *fakeConn) push(dead *bool, fn func()) {
	c.queue = append(c.queue, queued{dead: dead, fn: fn})
}

func (c *fakeConn) CaptureOutput(showCursor bool, mode Mode, handle func(Event)) (CaptureFrame, error) {
	if c.closed {
		return nil, errors.New("fake: closed")
	}
	c.frames++
	c.cursors = append(c.cursors, showCursor)
	f := &fakeFrame{conn: c, handle: handle}

	if c.failCapture {
		c.failCapture = false
		c.push(&f.destroyed, func() { handle(Event{Kind: EventFailed}) })
		return f, nil
	}

	geometry := Event{Kind: mode.formatEvent(), Format: c.format, Width: c.width, Height: c.height}
	if mode == ModeSHM {
		geometry.Stride = c.stride
	}
	// The other mode's event uses a different size so that acting on it shows.
	events := []Event{geometry}
	if c.announceBoth {
		other := Event{Kind: EventLinuxDmabuf, Format: FourccXRGB8888, Width: c.width / 2, Height: c.height / 2}
		if mode == ModeGPU {
			other = Event{Kind: EventBuffer, Format: ShmFormatXRGB8888, Width: c.width / 2, Height: c.height / 2, Stride: c.width * 2}
			events = []Event{other, geometry}
		} else {
			events = append(events, other)
		}
	}
	for _, ev := range events {
		ev := ev
		c.push(&f.destroyed, func() { handle(ev) })
	}
	if c.duplicate {
		dup := geometry
		dup.Width, dup.Height, dup.Stride = 640, 480, 2560
		c.push(&f.destroyed, func() { handle(dup) })
	}
	c.push(&f.destroyed, func() { handle(Event{Kind: EventFlags, Flags: 1}) })
	c.push(&f.destroyed, func() { handle(Event{Kind: EventBufferDone}) })
	return f, nil
}

func (c *fakeConn) ShmFactory() ShmFactory {
	if c.shm == nil {
		return nil
	}
	return c.shm
}

func (c *fakeConn) ParamsFactory() ParamsFactory {
	if c.params == nil {
		return nil
	}
	return c.params
}

func (c *fakeConn) Dispatch() error {
	if g := c.gate; g != nil {
		c.gate = nil
		g.entered <- struct{}{}
		<-g.release
	}
	if c.dispatchErr != nil {
		return c.dispatchErr
	}
	if c.closed {
		return errors.New("fake: closed")
	}
	if len(c.queue) == 0 {
		return errors.New("fake: no pending events")
	}
	q := c.queue[0]
	c.queue = c.queue[1:]
	if q.dead != nil && *q.dead {
		c.stale++
		return nil
	}
	q.fn()
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) index(entry string) int {
	for i, e := range c.journal {
		if e == entry {
			return i
		}
	}
	return -1
}

type fakeFrame struct {
	conn      *fakeConn
	handle    func(Event)
	destroyed bool
}

func (f *fakeFrame) Copy(buf Buffer) error {
	c := f.conn
	fb := buf.(*fakeBuffer)
	c.record("copy %d", fb.id)
	if fb.fd >= 0 {
		content := bytes.Repeat([]byte{c.fill}, int(fb.size))
		if _, err := unix.Pwrite(fb.fd, content, 0); err != nil {
			return err
		}
	}
	if c.damage {
		c.push(&f.destroyed, func() { f.handle(Event{Kind: EventDamage, Damage: Rect{Width: 10, Height: 10}}) })
	}
	c.push(&f.destroyed, func() { f.handle(Event{Kind: EventReady, TvSec: 1}) })
	return nil
}

func (f *fakeFrame) Destroy() error {
	f.conn.record("destroy frame")
	f.destroyed = true
	return nil
}

type fakeBuffer struct {
	conn *fakeConn
	id   int
	fd   int
	size uint32
}

func (b *fakeBuffer) Destroy() error {
	b.conn.record("destroy buffer %d", b.id)
	return nil
}

type fakeShm struct {
	conn  *fakeConn
	pools int
}

func (s *fakeShm) CreatePool(fd int, size int32) (ShmPool, error) {
	s.pools++
	s.conn.record("create pool %d", size)
	return &fakePool{conn: s.conn, fd: fd}, nil
}

type fakePool struct {
	conn *fakeConn
	fd   int
}

func (p *fakePool) CreateBuffer(offset, width, height, stride int32, format uint32) (Buffer, error) {
	p.conn.nextID++
	p.conn.record("create buffer %d", p.conn.nextID)
	return &fakeBuffer{conn: p.conn, id: p.conn.nextID, fd: p.fd, size: uint32(stride) * uint32(height)}, nil
}

func (p *fakePool) Destroy() error {
	p.conn.record("destroy pool")
	return nil
}

type fakeParamsFactory struct {
	conn *fakeConn
}

func (f *fakeParamsFactory) CreateParams(notify func(Event)) (BufferParams, error) {
	return &fakeParams{conn: f.conn, notify: notify}, nil
}

type fakeParams struct {
	conn      *fakeConn
	notify    func(Event)
	destroyed bool
	fd     int
	stride uint32
	mod    uint64
}

func (p *fakeParams) Add(fd int, plane, offset, stride, modHi, modLo uint32) error {
	p.fd, p.stride, p.mod = fd, stride, JoinModifier(modHi, modLo)
	return nil
}

func (p *fakeParams) Create(width, height int32, format, flags uint32) error {
	c := p.conn
	if c.paramsFail > 0 {
		c.paramsFail--
		c.push(&p.destroyed, func() { p.notify(Event{Kind: EventParamsFailed}) })
		return nil
	}
	c.nextID++
	buf := &fakeBuffer{conn: c, id: c.nextID, fd: -1}
	c.push(&p.destroyed, func() {
		c.record("created buffer %d", buf.id)
		p.notify(Event{Kind: EventParamsCreated, Buffer: buf})
	})
	return nil
}

func (p *fakeParams) Destroy() error {
	p.conn.record("destroy params")
	p.destroyed = true
	return nil
}

type fakeAllocator struct {
	allocations int
	closed      bool
}

func (a *fakeAllocator) Allocate(width, height, format uint32) (BufferObject, error) {
	a.allocations++
	stride := (width*4 + 255) &^ 255
	fd, err := unix.MemfdCreate("fake-bo", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	if err := unix.Ftruncate(fd, int64(stride)*int64(height)); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &fakeBO{fd: fd, stride: stride}, nil
}

func (a *fakeAllocator) Close() error {
	a.closed = true
	return nil
}

type fakeBO struct {
	fd     int
	stride uint32
}

func (b *fakeBO) Stride() uint32          { return b.stride }
func (b *fakeBO) Offset(plane int) uint32 { return 0 }
func (b *fakeBO) Modifier() uint64        { return 0 }

func (b *fakeBO) ExportFd() (int, error) {
	return unix.FcntlInt(uintptr(b.fd), unix.F_DUPFD_CLOEXEC, 0)
}

func (b *fakeBO) Destroy() {
	unix.Close(b.fd)
}
