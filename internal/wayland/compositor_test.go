package wayland

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rajveermalviya/go-wayland/wayland/client"
	"golang.org/x/sys/unix"

	"github.com/bryanchriswhite/wlrsrc/internal/capture"
	"github.com/bryanchriswhite/wlrsrc/internal/proto/linux_dmabuf"
	"github.com/bryanchriswhite/wlrsrc/internal/proto/wlr_screencopy"
)

// Registry names of the advertised globals
const (
	globalShm = iota + 1
	globalOutput
	globalScreencopy
	globalDmabuf
)

// First id of objects created by the compositor
const serverIDBase = 0xff000000

// testCompositor speaks just enough of the wayland wire protocol on a unix
// socket to drive screencopy sessions through a real client context.
type testCompositor struct {
	path string
	ln   *net.UnixListener
	wg   sync.WaitGroup

	width, height     uint32
	screencopyVersion uint32
	fill              byte
	// badStride is the number of captures announcing a stride one pixel short
	badStride int
	// release sends wl_buffer.release for imported buffers after each copy
	release bool

	mu       sync.Mutex
	conn     *net.UnixConn
	bound    map[string]uint32
	captures int
	copies   int
	errs     []error
}

func newTestCompositor(t *testing.T, screencopyVersion uint32) *testCompositor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wayland-test")
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	tc := &testCompositor{
		path:              path,
		ln:                ln,
		width:             64,
		height:            48,
		screencopyVersion: screencopyVersion,
		fill:              0x5a,
	}
	tc.wg.Add(1)
	go tc.accept()
	t.Cleanup(func() {
		ln.Close()
		tc.mu.Lock()
		if tc.conn != nil {
			tc.conn.Close()
		}
		tc.mu.Unlock()
		tc.wg.Wait()
		for _, err := range tc.errs {
			t.Errorf("compositor: %v", err)
		}
	})
	return tc
}

func (tc *testCompositor) accept() {
	defer tc.wg.Done()
	for {
		conn, err := tc.ln.AcceptUnix()
		if err != nil {
			return
		}
		tc.mu.Lock()
		tc.conn = conn
		tc.bound = make(map[string]uint32)
		tc.mu.Unlock()
		tc.serve(conn)
	}
}

// Bound returns the interfaces bound on the last connection
func (tc *testCompositor) Bound() map[string]uint32 {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := make(map[string]uint32, len(tc.bound))
	for k, v := range tc.bound {
		out[k] = v
	}
	return out
}

func (tc *testCompositor) fail(err error) {
	tc.mu.Lock()
	tc.errs = append(tc.errs, err)
	tc.mu.Unlock()
}

// buffer is a wl_buffer backed by a pool or a dma-buf plane descriptor
type buffer struct {
	fd       int
	offset   int64
	size     int
	imported bool
}

type clientState struct {
	objects    map[uint32]string
	pools      map[uint32]int
	buffers    map[uint32]*buffer
	params     map[uint32]int
	nextServer uint32
	fds        []int
}

func (tc *testCompositor) serve(conn *net.UnixConn) {
	st := &clientState{
		objects:    map[uint32]string{1: "wl_display"},
		pools:      make(map[uint32]int),
		buffers:    make(map[uint32]*buffer),
		params:     make(map[uint32]int),
		nextServer: serverIDBase,
	}
	defer func() {
		for _, fd := range st.fds {
			unix.Close(fd)
		}
	}()
	for {
		id, opcode, body, fds, err := readRequest(conn)
		if err != nil {
			return
		}
		st.fds = append(st.fds, fds...)
		if err := tc.handle(st, id, opcode, body, fds); err != nil {
			tc.fail(err)
			return
		}
	}
}

func readRequest(conn *net.UnixConn) (id, opcode uint32, body []byte, fds []int, err error) {
	header := make([]byte, 8)
	oob := make([]byte, unix.CmsgSpace(4*4))
	n, oobn, _, _, err := conn.ReadMsgUnix(header, oob)
	if err != nil {
		return 0, 0, nil, nil, err
	}
	if n != 8 {
		return 0, 0, nil, nil, fmt.Errorf("short header: %d bytes", n)
	}
	if oobn > 0 {
		msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return 0, 0, nil, nil, err
		}
		for i := range msgs {
			rights, err := unix.ParseUnixRights(&msgs[i])
			if err != nil {
				return 0, 0, nil, nil, err
			}
			fds = append(fds, rights...)
		}
	}
	id = client.Uint32(header[:4])
	word := client.Uint32(header[4:])
	body = make([]byte, int(word>>16)-8)
	if _, err := io.ReadFull(conn, body); err != nil {
		return 0, 0, nil, nil, err
	}
	return id, word & 0xffff, body, fds, nil
}

// send writes one event; args are uint32, int32 or string
func (tc *testCompositor) send(id, opcode uint32, args ...any) error {
	var body []byte
	word := make([]byte, 4)
	for _, arg := range args {
		switch v := arg.(type) {
		case uint32:
			client.PutUint32(word, v)
			body = append(body, word...)
		case int32:
			client.PutUint32(word, uint32(v))
			body = append(body, word...)
		case string:
			s := make([]byte, 4+client.PaddedLen(len(v)+1))
			client.PutUint32(s, uint32(len(v)+1))
			copy(s[4:], v)
			body = append(body, s...)
		default:
			return fmt.Errorf("unsupported argument %T", arg)
		}
	}
	msg := make([]byte, 8+len(body))
	client.PutUint32(msg, id)
	client.PutUint32(msg[4:], uint32(len(msg))<<16|opcode)
	copy(msg[8:], body)

	tc.mu.Lock()
	conn := tc.conn
	tc.mu.Unlock()
	_, err := conn.Write(msg)
	return err
}

func (tc *testCompositor) handle(st *clientState, id, opcode uint32, body []byte, fds []int) error {
	arg := func(i int) uint32 { return client.Uint32(body[4*i:]) }
	iface, ok := st.objects[id]
	if !ok {
		return fmt.Errorf("request %d for unknown object %d", opcode, id)
	}

	switch iface {
	case "wl_display":
		switch opcode {
		case 0: // sync
			return tc.send(arg(0), 0, uint32(0))
		case 1: // get_registry
			registry := arg(0)
			st.objects[registry] = "wl_registry"
			globals := []struct {
				name    uint32
				iface   string
				version uint32
			}{
				{globalShm, shmInterfaceName, 1},
				{globalOutput, outputInterfaceName, 4},
				{globalScreencopy, wlr_screencopy.ZwlrScreencopyManagerV1InterfaceName, tc.screencopyVersion},
				{globalDmabuf, linux_dmabuf.ZwpLinuxDmabufV1InterfaceName, 3},
			}
			for _, g := range globals {
				if err := tc.send(registry, 0, g.name, g.iface, g.version); err != nil {
					return err
				}
			}
		}

	case "wl_registry":
		// bind: name, interface, version, new_id
		l := 4
		n := client.PaddedLen(int(client.Uint32(body[l:])))
		l += 4
		name := string(body[l : l+bytes.IndexByte(body[l:l+n], 0)])
		l += n
		version := client.Uint32(body[l:])
		newID := client.Uint32(body[l+4:])
		st.objects[newID] = name
		tc.mu.Lock()
		tc.bound[name] = version
		tc.mu.Unlock()
		return tc.onBind(name, newID)

	case shmInterfaceName:
		if opcode == 0 { // create_pool
			if len(fds) != 1 {
				return fmt.Errorf("create_pool carried %d descriptors", len(fds))
			}
			st.objects[arg(0)] = "wl_shm_pool"
			st.pools[arg(0)] = fds[0]
		}

	case "wl_shm_pool":
		switch opcode {
		case 0: // create_buffer: new_id, offset, width, height, stride, format
			st.objects[arg(0)] = "wl_buffer"
			st.buffers[arg(0)] = &buffer{
				fd:     st.pools[id],
				offset: int64(arg(1)),
				size:   int(arg(4)) * int(arg(3)),
			}
		case 1: // destroy
			delete(st.objects, id)
		}

	case "wl_buffer":
		if opcode == 0 {
			delete(st.objects, id)
			delete(st.buffers, id)
		}

	case wlr_screencopy.ZwlrScreencopyManagerV1InterfaceName:
		if opcode == 0 { // capture_output: new_id, overlay_cursor, output
			frame := arg(0)
			st.objects[frame] = "frame"
			return tc.announce(frame)
		}

	case "frame":
		switch opcode {
		case 0: // copy
			return tc.copy(st, id, arg(0))
		case 1: // destroy
			delete(st.objects, id)
		}

	case linux_dmabuf.ZwpLinuxDmabufV1InterfaceName:
		if opcode == 1 { // create_params
			st.objects[arg(0)] = "params"
		}

	case "params":
		switch opcode {
		case 0: // destroy
			delete(st.objects, id)
		case 1: // add: plane, offset, stride, modifier_hi, modifier_lo
			if len(fds) != 1 {
				return fmt.Errorf("params add carried %d descriptors", len(fds))
			}
			st.params[id] = fds[0]
		case 2: // create: width, height, format, flags
			created := st.nextServer
			st.nextServer++
			st.objects[created] = "wl_buffer"
			st.buffers[created] = &buffer{
				fd:       st.params[id],
				size:     int(arg(0)) * 4 * int(arg(1)),
				imported: true,
			}
			return tc.send(id, 0, created)
		}
	}
	return nil
}

func (tc *testCompositor) onBind(iface string, id uint32) error {
	switch iface {
	case shmInterfaceName:
		for _, format := range []uint32{capture.ShmFormatARGB8888, capture.ShmFormatXRGB8888} {
			if err := tc.send(id, 0, format); err != nil {
				return err
			}
		}
	case outputInterfaceName:
		if err := tc.send(id, 1, uint32(client.OutputModeCurrent), int32(tc.width), int32(tc.height), int32(60000)); err != nil {
			return err
		}
		if err := tc.send(id, 4, "DP-1"); err != nil {
			return err
		}
		return tc.send(id, 2)
	case linux_dmabuf.ZwpLinuxDmabufV1InterfaceName:
		return tc.send(id, 1, capture.FourccXRGB8888, uint32(0), uint32(0))
	}
	return nil
}

// announce sends the buffer events of a new frame the way wlroots does:
// both geometries and buffer_done from version 3 on, only buffer before.
func (tc *testCompositor) announce(frame uint32) error {
	tc.mu.Lock()
	tc.captures++
	stride := tc.width * 4
	if tc.captures <= tc.badStride {
		stride -= 4
	}
	tc.mu.Unlock()

	if err := tc.send(frame, 0, capture.ShmFormatXRGB8888, tc.width, tc.height, stride); err != nil {
		return err
	}
	if tc.screencopyVersion < 3 {
		return nil
	}
	if err := tc.send(frame, 5, capture.FourccXRGB8888, tc.width, tc.height); err != nil {
		return err
	}
	return tc.send(frame, 6)
}

func (tc *testCompositor) copy(st *clientState, frame, id uint32) error {
	buf, ok := st.buffers[id]
	if !ok {
		return tc.send(frame, 3) // failed
	}
	if _, err := unix.Pwrite(buf.fd, bytes.Repeat([]byte{tc.fill}, buf.size), buf.offset); err != nil {
		return fmt.Errorf("fill buffer %d: %w", id, err)
	}
	tc.mu.Lock()
	tc.copies++
	tc.mu.Unlock()
	if buf.imported && tc.release {
		if err := tc.send(id, 0); err != nil {
			return err
		}
	}
	if err := tc.send(frame, 1, uint32(0)); err != nil {
		return err
	}
	return tc.send(frame, 2, uint32(0), uint32(1), uint32(0))
}

// memfdAllocator stands in for GBM with linear memfd buffer objects
type memfdAllocator struct{}

func (memfdAllocator) Allocate(width, height, format uint32) (capture.BufferObject, error) {
	fd, err := unix.MemfdCreate("test-bo", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	if err := unix.Ftruncate(fd, int64(width)*4*int64(height)); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &memfdBO{fd: fd, stride: width * 4}, nil
}

func (memfdAllocator) Close() error { return nil }

type memfdBO struct {
	fd     int
	stride uint32
}

func (b *memfdBO) Stride() uint32    { return b.stride }
func (b *memfdBO) Offset(int) uint32 { return 0 }
func (b *memfdBO) Modifier() uint64  { return 0 }
func (b *memfdBO) Destroy()          { unix.Close(b.fd) }
func (b *memfdBO) ExportFd() (int, error) {
	return unix.FcntlInt(uintptr(b.fd), unix.F_DUPFD_CLOEXEC, 0)
}
