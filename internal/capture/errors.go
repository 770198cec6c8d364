package capture

import (
	"errors"

	"github.com/bryanchriswhite/wlrsrc/internal/drm"
)

var (
	// ErrConnection means the compositor could not be reached
	ErrConnection = errors.New("cannot connect to compositor")
	// ErrMissingCapability means a mandatory global was not advertised
	ErrMissingCapability = errors.New("missing compositor capability")
	// ErrNoRenderDevice means dma-buf mode has no usable render node
	ErrNoRenderDevice = drm.ErrNoRenderDevice
	// ErrAllocation means a shared-memory or GPU allocation failed mid-session
	ErrAllocation = errors.New("buffer allocation failed")
	// ErrNegotiation means the compositor rejected the buffer parameters
	ErrNegotiation = errors.New("buffer negotiation failed")
	// ErrDispatch means the transport failed while servicing events.
	// The engine must be restarted afterwards.
	ErrDispatch = errors.New("wayland dispatch failed")
	// ErrCaptureFailed means the compositor sent a failed event
	ErrCaptureFailed = errors.New("compositor failed the capture")

	// ErrNotStarted is returned by ProduceFrame before Start
	ErrNotStarted = errors.New("capture engine not started")
	// ErrBusy is returned when ProduceFrame is called while another call is
	// still in flight
	ErrBusy = errors.New("capture already in flight")
	// ErrEngineBroken is returned after a dispatch failure until the engine
	// is stopped and started again
	ErrEngineBroken = errors.New("capture engine unusable after dispatch failure")
)

// ErrorKind classifies capture errors for telemetry
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindConnection
	KindMissingCapability
	KindNoRenderDevice
	KindAllocation
	KindNegotiation
	KindDispatch
	KindCaptureFailed
	KindUsage
	KindUnknown
)

// String returns a short name of the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConnection:
		return "connection"
	case KindMissingCapability:
		return "missing_capability"
	case KindNoRenderDevice:
		return "no_render_device"
	case KindAllocation:
		return "allocation"
	case KindNegotiation:
		return "negotiation"
	case KindDispatch:
		return "dispatch"
	case KindCaptureFailed:
		return "capture_failed"
	case KindUsage:
		return "usage"
	default:
		return "unknown"
	}
}

// Classify maps an error onto its kind
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrConnection):
		return KindConnection
	case errors.Is(err, ErrMissingCapability):
		return KindMissingCapability
	case errors.Is(err, ErrNoRenderDevice):
		return KindNoRenderDevice
	case errors.Is(err, ErrAllocation):
		return KindAllocation
	case errors.Is(err, ErrNegotiation):
		return KindNegotiation
	case errors.Is(err, ErrDispatch), errors.Is(err, ErrEngineBroken):
		return KindDispatch
	case errors.Is(err, ErrCaptureFailed):
		return KindCaptureFailed
	case errors.Is(err, ErrNotStarted), errors.Is(err, ErrBusy):
		return KindUsage
	default:
		return KindUnknown
	}
}

// IsFatal reports whether err leaves the engine unusable until it is
// restarted. Session-level failures are not fatal.
func IsFatal(err error) bool {
	switch Classify(err) {
	case KindConnection, KindMissingCapability, KindNoRenderDevice, KindDispatch:
		return true
	default:
		return false
	}
}
