package output

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/bryanchriswhite/wlrsrc/internal/capture"
)

const appsrcName = "wlrsrc"

// GstOutput pushes captured frames into a GStreamer pipeline through appsrc.
// The downstream part of the pipeline is given as a gst-launch description,
// e.g. "videoconvert ! x264enc ! matroskamux ! filesink location=out.mkv".
type GstOutput struct {
	description string
	log         zerolog.Logger

	mu       sync.Mutex
	pipeline *gst.Pipeline
	src      *app.Source
	caps     string
	running  bool
	start    time.Time
	pushed   uint64
}

// NewGstOutput creates an output feeding the given downstream description
func NewGstOutput(description string, log zerolog.Logger) *GstOutput {
	return &GstOutput{description: description, log: log}
}

// LaunchString returns the full pipeline description
func LaunchString(description string) string {
	desc := strings.TrimSpace(description)
	head := fmt.Sprintf("appsrc name=%s is-live=true do-timestamp=false format=time", appsrcName)
	if desc == "" {
		return head + " ! fakesink"
	}
	return head + " ! " + desc
}

// RawCaps returns system-memory caps describing frame
func RawCaps(frame *capture.Frame) (string, error) {
	format, err := gstFormat(frame.Format)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("video/x-raw,format=%s,width=%d,height=%d,framerate=0/1",
		format, frame.Width, frame.Height), nil
}

func gstFormat(format uint32) (string, error) {
	switch capture.Fourcc(format) {
	case capture.FourccXRGB8888:
		return "BGRx", nil
	case capture.FourccARGB8888:
		return "BGRA", nil
	case capture.FourccXBGR8888:
		return "RGBx", nil
	case capture.FourccABGR8888:
		return "RGBA", nil
	case capture.FourccRGB888:
		return "BGR", nil
	case capture.FourccBGR888:
		return "RGB", nil
	default:
		return "", fmt.Errorf("no GStreamer format for %s", capture.FormatName(format))
	}
}

// Start builds the pipeline and sets it playing
func (g *GstOutput) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return fmt.Errorf("pipeline already running")
	}

	gst.Init(nil)

	launch := LaunchString(g.description)
	g.log.Debug().Str("pipeline", launch).Msg("Creating GStreamer pipeline")

	pipeline, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	element, err := pipeline.GetElementByName(appsrcName)
	if err != nil {
		pipeline.Unref()
		return fmt.Errorf("failed to get appsrc: %w", err)
	}
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.Unref()
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	g.pipeline = pipeline
	g.src = app.SrcFromElement(element)
	g.caps = ""
	g.running = true
	g.start = time.Now()
	g.pushed = 0

	g.log.Info().Str("pipeline", launch).Msg("GStreamer pipeline started")
	return nil
}

// Stop sends end-of-stream and tears the pipeline down
func (g *GstOutput) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running {
		return nil
	}
	g.running = false

	if ret := g.src.EndStream(); ret != gst.FlowOK {
		g.log.Warn().Str("flow", ret.String()).Msg("End of stream not accepted")
	}
	if err := g.pipeline.SetState(gst.StateNull); err != nil {
		g.log.Warn().Err(err).Msg("Failed to stop pipeline")
	}
	g.pipeline.Unref()
	g.pipeline = nil
	g.src = nil

	g.log.Info().Uint64("frames", g.pushed).Msg("GStreamer pipeline stopped")
	return nil
}

// WriteFrame copies the frame into a GStreamer buffer and pushes it.
// Caps are renegotiated whenever the frame geometry changes.
func (g *GstOutput) WriteFrame(frame *capture.Frame) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running {
		return fmt.Errorf("pipeline not running")
	}

	caps, err := RawCaps(frame)
	if err != nil {
		return err
	}
	if caps != g.caps {
		g.src.SetCaps(gst.NewCapsFromString(caps))
		g.caps = caps
		g.log.Info().Str("caps", caps).Msg("Pipeline caps set")
	}

	pixels, release, err := frame.Pixels()
	if err != nil {
		return err
	}
	data, err := packRows(frame, pixels)
	if rerr := release(); rerr != nil {
		g.log.Debug().Err(rerr).Msg("Failed to release frame mapping")
	}
	if err != nil {
		return err
	}

	buffer := gst.NewBufferFromBytes(data)
	ts := frame.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	buffer.SetPresentationTimestamp(ts.Sub(g.start))

	if ret := g.src.PushBuffer(buffer); ret != gst.FlowOK {
		return fmt.Errorf("push buffer: %s", ret.String())
	}
	g.pushed++
	return nil
}

// packRows copies pixels into rows of exactly width × bytes per pixel, the
// layout raw video caps without a stride describe.
func packRows(frame *capture.Frame, pixels []byte) ([]byte, error) {
	w, h, stride := int(frame.Width), int(frame.Height), int(frame.Stride)
	row := w * int(capture.BytesPerPixel(frame.Format))
	if h == 0 || stride < row || len(pixels) < stride*(h-1)+row {
		return nil, fmt.Errorf("frame %dx%d stride %d does not fit %d bytes", w, h, stride, len(pixels))
	}
	data := make([]byte, row*h)
	if stride == row {
		copy(data, pixels)
		return data, nil
	}
	for y := 0; y < h; y++ {
		copy(data[y*row:(y+1)*row], pixels[y*stride:])
	}
	return data, nil
}

// Name returns the output type name
func (g *GstOutput) Name() string {
	return "GStreamer pipeline"
}

// IsRunning returns true if the pipeline is playing
func (g *GstOutput) IsRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
