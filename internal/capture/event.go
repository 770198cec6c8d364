package capture

import "fmt"

// EventKind enumerates the compositor events a session reacts to
type EventKind int

const (
	// EventBuffer is zwlr_screencopy_frame_v1.buffer (wl_shm geometry)
	EventBuffer EventKind = iota + 1
	// EventLinuxDmabuf is zwlr_screencopy_frame_v1.linux_dmabuf
	EventLinuxDmabuf
	// EventBufferDone is zwlr_screencopy_frame_v1.buffer_done
	EventBufferDone
	EventFlags
	EventDamage
	EventReady
	EventFailed
	// EventParamsCreated is zwp_linux_buffer_params_v1.created
	EventParamsCreated
	// EventParamsFailed is zwp_linux_buffer_params_v1.failed
	EventParamsFailed
)

func (k EventKind) String() string {
	switch k {
	case EventBuffer:
		return "buffer"
	case EventLinuxDmabuf:
		return "linux_dmabuf"
	case EventBufferDone:
		return "buffer_done"
	case EventFlags:
		return "flags"
	case EventDamage:
		return "damage"
	case EventReady:
		return "ready"
	case EventFailed:
		return "failed"
	case EventParamsCreated:
		return "params_created"
	case EventParamsFailed:
		return "params_failed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Rect is a damaged region
type Rect struct {
	X, Y, Width, Height uint32
}

// Event is one incoming protocol event. Only the fields of its kind are set.
type Event struct {
	Kind EventKind

	// buffer, linux_dmabuf
	Format uint32
	Width  uint32
	Height uint32
	// buffer only
	Stride uint32

	// flags
	Flags uint32

	// damage
	Damage Rect

	// ready; carried for logging only
	TvSec  uint64
	TvNsec uint32

	// params_created
	Buffer Buffer
}

// State is the lifecycle position of a capture session
type State int

const (
	StateIdle State = iota
	StateRequested
	StateFormatKnown
	StateBufferBound
	StateParamsPending
	StateParamsReady
	StateCopyIssued
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequested:
		return "requested"
	case StateFormatKnown:
		return "format_known"
	case StateBufferBound:
		return "buffer_bound"
	case StateParamsPending:
		return "params_pending"
	case StateParamsReady:
		return "params_ready"
	case StateCopyIssued:
		return "copy_issued"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition can leave s
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed
}
