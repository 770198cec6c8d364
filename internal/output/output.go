package output

import (
	"github.com/bryanchriswhite/wlrsrc/internal/capture"
)

// Output defines the interface for frame consumers.
// This allows us to swap between different output methods:
// - MJPEG HTTP stream
// - GStreamer pipeline
type Output interface {
	// Start initializes the output mechanism
	Start() error

	// Stop cleanly shuts down the output
	Stop() error

	// WriteFrame sends a frame to the output. The frame stays owned by
	// the caller and must not be retained after WriteFrame returns.
	WriteFrame(frame *capture.Frame) error

	// Name returns a human-readable name for this output type
	Name() string

	// IsRunning returns true if the output is currently active
	IsRunning() bool
}

// Config holds common configuration for all output types
type Config struct {
	FPS     int
	Quality int
}
