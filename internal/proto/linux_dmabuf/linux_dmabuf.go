// Package linux_dmabuf contains client bindings for linux-dmabuf-unstable-v1,
// written against github.com/rajveermalviya/go-wayland in its generated style.
package linux_dmabuf

import (
	"github.com/rajveermalviya/go-wayland/wayland/client"
	"golang.org/x/sys/unix"
)

// ZwpLinuxDmabufV1InterfaceName is the name of the interface as it appears in the [client.Registry].
const ZwpLinuxDmabufV1InterfaceName = "zwp_linux_dmabuf_v1"

// ZwpLinuxDmabufV1 : factory for creating dmabuf-based wl_buffers
//
// Following the interfaces from:
// https://www.khronos.org/registry/egl/extensions/EXT/EGL_EXT_image_dma_buf_import.txt
// https://www.khronos.org/registry/EGL/extensions/EXT/EGL_EXT_image_dma_buf_import_modifiers.txt
// and the Linux DRM sub-system's AddFb2 ioctl.
type ZwpLinuxDmabufV1 struct {
	client.BaseProxy
	formatHandler   ZwpLinuxDmabufV1FormatHandlerFunc
	modifierHandler ZwpLinuxDmabufV1ModifierHandlerFunc
}

// NewZwpLinuxDmabufV1 : factory for creating dmabuf-based wl_buffers
func NewZwpLinuxDmabufV1(ctx *client.Context) *ZwpLinuxDmabufV1 {
	zwpLinuxDmabufV1 := &ZwpLinuxDmabufV1{}
	ctx.Register(zwpLinuxDmabufV1)
	return zwpLinuxDmabufV1
}

// Destroy : unbind the factory
//
// Objects created through this interface, especially wl_buffers, will
// remain valid.
func (i *ZwpLinuxDmabufV1) Destroy() error {
	defer i.Context().Unregister(i)
	const opcode = 0
	const _reqBufLen = 8
	var _reqBuf [_reqBufLen]byte
	l := 0
	client.PutUint32(_reqBuf[l:4], i.ID())
	l += 4
	client.PutUint32(_reqBuf[l:l+4], uint32(_reqBufLen<<16|opcode&0x0000ffff))
	l += 4
	err := i.Context().WriteMsg(_reqBuf[:], nil)
	return err
}

// CreateParams : create a temporary object for buffer parameters
//
// This temporary object is used to collect multiple dmabuf handles into
// a single batch to create a wl_buffer. It can only be used once and
// should be destroyed after a 'created' or 'failed' event has been
// received.
func (i *ZwpLinuxDmabufV1) CreateParams() (*ZwpLinuxBufferParamsV1, error) {
	paramsID := NewZwpLinuxBufferParamsV1(i.Context())
	const opcode = 1
	const _reqBufLen = 8 + 4
	var _reqBuf [_reqBufLen]byte
	l := 0
	client.PutUint32(_reqBuf[l:4], i.ID())
	l += 4
	client.PutUint32(_reqBuf[l:l+4], uint32(_reqBufLen<<16|opcode&0x0000ffff))
	l += 4
	client.PutUint32(_reqBuf[l:l+4], paramsID.ID())
	l += 4
	err := i.Context().WriteMsg(_reqBuf[:], nil)
	return paramsID, err
}

// ZwpLinuxDmabufV1FormatEvent : supported buffer format
//
// This event advertises one buffer format that the server supports.
// All the supported formats are advertised once when the client
// binds to this interface.
type ZwpLinuxDmabufV1FormatEvent struct {
	Format uint32
}
type ZwpLinuxDmabufV1FormatHandlerFunc func(ZwpLinuxDmabufV1FormatEvent)

// SetFormatHandler : sets handler for ZwpLinuxDmabufV1FormatEvent
func (i *ZwpLinuxDmabufV1) SetFormatHandler(f ZwpLinuxDmabufV1FormatHandlerFunc) {
	i.formatHandler = f
}

// ZwpLinuxDmabufV1ModifierEvent : supported buffer format modifier
//
// This event advertises the formats that the server supports, along with
// the modifiers supported for each format.
type ZwpLinuxDmabufV1ModifierEvent struct {
	Format     uint32
	ModifierHi uint32
	ModifierLo uint32
}
type ZwpLinuxDmabufV1ModifierHandlerFunc func(ZwpLinuxDmabufV1ModifierEvent)

// SetModifierHandler : sets handler for ZwpLinuxDmabufV1ModifierEvent
func (i *ZwpLinuxDmabufV1) SetModifierHandler(f ZwpLinuxDmabufV1ModifierHandlerFunc) {
	i.modifierHandler = f
}

func (i *ZwpLinuxDmabufV1) Dispatch(opcode uint32, fd int, data []byte) {
	switch opcode {
	case 0:
		if i.formatHandler == nil {
			return
		}
		var e ZwpLinuxDmabufV1FormatEvent
		l := 0
		e.Format = client.Uint32(data[l : l+4])
		l += 4

		i.formatHandler(e)
	case 1:
		if i.modifierHandler == nil {
			return
		}
		var e ZwpLinuxDmabufV1ModifierEvent
		l := 0
		e.Format = client.Uint32(data[l : l+4])
		l += 4
		e.ModifierHi = client.Uint32(data[l : l+4])
		l += 4
		e.ModifierLo = client.Uint32(data[l : l+4])
		l += 4

		i.modifierHandler(e)
	}
}

// ZwpLinuxBufferParamsV1InterfaceName is the name of the interface as it appears in the [client.Registry].
const ZwpLinuxBufferParamsV1InterfaceName = "zwp_linux_buffer_params_v1"

// ZwpLinuxBufferParamsV1 : parameters for creating a dmabuf-based wl_buffer
//
// This temporary object is a collection of dmabufs and other
// parameters that together form a single logical buffer.
type ZwpLinuxBufferParamsV1 struct {
	client.BaseProxy
	createdHandler ZwpLinuxBufferParamsV1CreatedHandlerFunc
	failedHandler  ZwpLinuxBufferParamsV1FailedHandlerFunc
}

// NewZwpLinuxBufferParamsV1 : parameters for creating a dmabuf-based wl_buffer
func NewZwpLinuxBufferParamsV1(ctx *client.Context) *ZwpLinuxBufferParamsV1 {
	zwpLinuxBufferParamsV1 := &ZwpLinuxBufferParamsV1{}
	ctx.Register(zwpLinuxBufferParamsV1)
	return zwpLinuxBufferParamsV1
}

// Destroy : delete this object, used or not
//
// Cleans up the temporary data sent to the server for dmabuf-based
// wl_buffer creation.
func (i *ZwpLinuxBufferParamsV1) Destroy() error {
	defer i.Context().Unregister(i)
	const opcode = 0
	const _reqBufLen = 8
	var _reqBuf [_reqBufLen]byte
	l := 0
	client.PutUint32(_reqBuf[l:4], i.ID())
	l += 4
	client.PutUint32(_reqBuf[l:l+4], uint32(_reqBufLen<<16|opcode&0x0000ffff))
	l += 4
	err := i.Context().WriteMsg(_reqBuf[:], nil)
	return err
}

// Add : add a dmabuf to the temporary set
//
// This request adds one dmabuf to the set in this
// zwp_linux_buffer_params_v1. The fd is sent as ancillary data and stays
// owned by the caller.
func (i *ZwpLinuxBufferParamsV1) Add(fd int, planeIdx, offset, stride, modifierHi, modifierLo uint32) error {
	const opcode = 1
	const _reqBufLen = 8 + 4 + 4 + 4 + 4 + 4
	var _reqBuf [_reqBufLen]byte
	l := 0
	client.PutUint32(_reqBuf[l:4], i.ID())
	l += 4
	client.PutUint32(_reqBuf[l:l+4], uint32(_reqBufLen<<16|opcode&0x0000ffff))
	l += 4
	client.PutUint32(_reqBuf[l:l+4], planeIdx)
	l += 4
	client.PutUint32(_reqBuf[l:l+4], offset)
	l += 4
	client.PutUint32(_reqBuf[l:l+4], stride)
	l += 4
	client.PutUint32(_reqBuf[l:l+4], modifierHi)
	l += 4
	client.PutUint32(_reqBuf[l:l+4], modifierLo)
	l += 4
	oob := unix.UnixRights(fd)
	err := i.Context().WriteMsg(_reqBuf[:], oob)
	return err
}

// Create : create a wl_buffer from the given dmabufs
//
// This asks for creation of a wl_buffer from the added dmabuf
// buffers. The result is reported with a 'created' or 'failed' event.
func (i *ZwpLinuxBufferParamsV1) Create(width, height int32, format, flags uint32) error {
	const opcode = 2
	const _reqBufLen = 8 + 4 + 4 + 4 + 4
	var _reqBuf [_reqBufLen]byte
	l := 0
	client.PutUint32(_reqBuf[l:4], i.ID())
	l += 4
	client.PutUint32(_reqBuf[l:l+4], uint32(_reqBufLen<<16|opcode&0x0000ffff))
	l += 4
	client.PutUint32(_reqBuf[l:l+4], uint32(width))
	l += 4
	client.PutUint32(_reqBuf[l:l+4], uint32(height))
	l += 4
	client.PutUint32(_reqBuf[l:l+4], format)
	l += 4
	client.PutUint32(_reqBuf[l:l+4], flags)
	l += 4
	err := i.Context().WriteMsg(_reqBuf[:], nil)
	return err
}

type ZwpLinuxBufferParamsV1Flags uint32

// ZwpLinuxBufferParamsV1Flags :
const (
	// ZwpLinuxBufferParamsV1FlagsYInvert : contents are y-inverted
	ZwpLinuxBufferParamsV1FlagsYInvert ZwpLinuxBufferParamsV1Flags = 1
	// ZwpLinuxBufferParamsV1FlagsInterlaced : content is interlaced
	ZwpLinuxBufferParamsV1FlagsInterlaced ZwpLinuxBufferParamsV1Flags = 2
	// ZwpLinuxBufferParamsV1FlagsBottomFirst : bottom field first
	ZwpLinuxBufferParamsV1FlagsBottomFirst ZwpLinuxBufferParamsV1Flags = 4
)

// ZwpLinuxBufferParamsV1CreatedEvent : buffer creation succeeded
//
// This event indicates that the attempted buffer creation was
// successful. It provides the new wl_buffer referencing the dmabuf(s).
type ZwpLinuxBufferParamsV1CreatedEvent struct {
	Buffer *client.Buffer
}
type ZwpLinuxBufferParamsV1CreatedHandlerFunc func(ZwpLinuxBufferParamsV1CreatedEvent)

// SetCreatedHandler : sets handler for ZwpLinuxBufferParamsV1CreatedEvent
func (i *ZwpLinuxBufferParamsV1) SetCreatedHandler(f ZwpLinuxBufferParamsV1CreatedHandlerFunc) {
	i.createdHandler = f
}

// ZwpLinuxBufferParamsV1FailedEvent : buffer creation failed
//
// This event indicates that the attempted buffer creation has
// failed. It usually means that one of the dmabuf constraints
// has not been fulfilled.
type ZwpLinuxBufferParamsV1FailedEvent struct{}
type ZwpLinuxBufferParamsV1FailedHandlerFunc func(ZwpLinuxBufferParamsV1FailedEvent)

// SetFailedHandler : sets handler for ZwpLinuxBufferParamsV1FailedEvent
func (i *ZwpLinuxBufferParamsV1) SetFailedHandler(f ZwpLinuxBufferParamsV1FailedHandlerFunc) {
	i.failedHandler = f
}

func (i *ZwpLinuxBufferParamsV1) Dispatch(opcode uint32, fd int, data []byte) {
	switch opcode {
	case 0:
		if i.createdHandler == nil {
			return
		}
		var e ZwpLinuxBufferParamsV1CreatedEvent
		l := 0
		// The compositor allocates the id of the new wl_buffer.
		buffer := &client.Buffer{}
		buffer.SetContext(i.Context())
		buffer.SetID(client.Uint32(data[l : l+4]))
		e.Buffer = buffer
		l += 4

		i.createdHandler(e)
	case 1:
		if i.failedHandler == nil {
			return
		}
		var e ZwpLinuxBufferParamsV1FailedEvent

		i.failedHandler(e)
	}
}
