// Package capture implements the wlr-screencopy session engine: it negotiates
// buffer geometry with the compositor, binds shared-memory or dma-buf backing
// storage and hands completed frames to a synchronous caller.
package capture

import (
	"fmt"
	"strings"
)

// Capturer defines the interface for screen capture engines
type Capturer interface {
	// Start connects to the compositor and binds the required globals
	Start() error

	// Stop releases every resource acquired by Start
	Stop() error

	// ProduceFrame blocks until one full frame has been captured
	ProduceFrame() (*Frame, error)

	// Caps returns the output capabilities announced by the last negotiated
	// frame. ok is false until a frame geometry is known.
	Caps() (caps Caps, ok bool)

	// Name returns a human-readable name for this capturer
	Name() string
}

// Mode selects the buffer backend. It is fixed for the lifetime of an engine.
type Mode int

const (
	// ModeSHM delivers frames through a CPU-mapped wl_shm pool
	ModeSHM Mode = iota
	// ModeGPU delivers frames as linear dma-bufs allocated through GBM
	ModeGPU
)

func (m Mode) String() string {
	switch m {
	case ModeSHM:
		return "shm"
	case ModeGPU:
		return "dmabuf"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts the config spellings of a backend
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "shm", "":
		return ModeSHM, nil
	case "dmabuf", "gpu":
		return ModeGPU, nil
	default:
		return 0, fmt.Errorf("unknown capture backend %q", s)
	}
}

// formatEvent is the only geometry event honoured in this mode
func (m Mode) formatEvent() EventKind {
	if m == ModeGPU {
		return EventLinuxDmabuf
	}
	return EventBuffer
}

// Geometry is the buffer layout negotiated for one session. Stride, Offset
// and Modifier are filled in by the backend for dma-buf sessions.
type Geometry struct {
	Format   uint32
	Width    uint32
	Height   uint32
	Stride   uint32
	Offset   uint32
	Modifier uint64
}

// Size returns the byte size of the frame, stride × height
func (g Geometry) Size() int {
	return int(g.Stride) * int(g.Height)
}

// Descriptor describes the live backing allocation of a backend
type Descriptor struct {
	Mode     Mode   `json:"mode"`
	Fd       int    `json:"fd"`
	Size     int    `json:"size"`
	Format   uint32 `json:"format"`
	Width    uint32 `json:"width"`
	Height   uint32 `json:"height"`
	Stride   uint32 `json:"stride"`
	Offset   uint32 `json:"offset"`
	Modifier uint64 `json:"modifier"`
}

// Caps is the output capability announced to the consuming pipeline: a
// fixed BGRx layout at the negotiated size with an unconstrained rate.
type Caps struct {
	Format       string `json:"format"`
	Width        uint32 `json:"width"`
	Height       uint32 `json:"height"`
	FramerateNum int    `json:"framerate_num"`
	FramerateDen int    `json:"framerate_den"`
	DMABuf       bool   `json:"dmabuf"`
}

// CapsFor returns the caps announced for a negotiated geometry
func CapsFor(mode Mode, g Geometry) Caps {
	return Caps{
		Format:       "BGRx",
		Width:        g.Width,
		Height:       g.Height,
		FramerateNum: 0,
		FramerateDen: 1,
		DMABuf:       mode == ModeGPU,
	}
}

// String renders the caps in GStreamer caps syntax
func (c Caps) String() string {
	media := "video/x-raw"
	if c.DMABuf {
		media = "video/x-raw(memory:DMABuf)"
	}
	return fmt.Sprintf("%s,format=%s,width=%d,height=%d,framerate=%d/%d",
		media, c.Format, c.Width, c.Height, c.FramerateNum, c.FramerateDen)
}

// SplitModifier splits a 64-bit format modifier into the protocol's
// high and low words.
func SplitModifier(modifier uint64) (hi, lo uint32) {
	return uint32(modifier >> 32), uint32(modifier & 0xffffffff)
}

// JoinModifier reassembles a modifier from its protocol words
func JoinModifier(hi, lo uint32) uint64 {
	return uint64(hi)<<32 | uint64(lo)
}
