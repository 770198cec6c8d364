// Package streamer paces the capture engine and feeds its frames to outputs.
package streamer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/wlrsrc/internal/capture"
	"github.com/bryanchriswhite/wlrsrc/internal/output"
)

// stopGrace bounds how long Stop waits for an in-flight frame before it
// stops the engine to unblock it.
const stopGrace = 2 * time.Second

// Options configures a Streamer
type Options struct {
	FPS int
}

// Stats reports streaming activity
type Stats struct {
	Running   bool          `json:"running"`
	Capturer  string        `json:"capturer"`
	FPS       int           `json:"fps"`
	Frames    uint64        `json:"frames"`
	Failures  uint64        `json:"failures"`
	Restarts  uint64        `json:"restarts"`
	LastError string        `json:"last_error,omitempty"`
	LastFrame time.Time     `json:"last_frame"`
	Caps      *capture.Caps `json:"caps,omitempty"`
}

type snapshotResult struct {
	img *image.RGBA
	err error
}

// Streamer calls ProduceFrame at a fixed rate on one goroutine and writes
// every frame to its outputs.
type Streamer struct {
	capturer capture.Capturer
	outputs  []output.Output
	interval time.Duration
	fps      int
	log      zerolog.Logger

	snapshots chan chan snapshotResult

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	stats   Stats
}

// New creates a streamer for an already started capturer
func New(c capture.Capturer, opts Options, log zerolog.Logger, outputs ...output.Output) *Streamer {
	fps := opts.FPS
	if fps <= 0 {
		fps = 30
	}
	return &Streamer{
		capturer:  c,
		outputs:   outputs,
		interval:  time.Second / time.Duration(fps),
		fps:       fps,
		log:       log,
		snapshots: make(chan chan snapshotResult, 8),
	}
}

// Start starts the outputs and the capture loop
func (s *Streamer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("streamer already running")
	}

	for i, out := range s.outputs {
		if err := out.Start(); err != nil {
			for _, started := range s.outputs[:i] {
				_ = started.Stop()
			}
			return fmt.Errorf("failed to start %s: %w", out.Name(), err)
		}
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(s.stopCh, s.doneCh)

	s.log.Info().Int("fps", s.fps).Str("capturer", s.capturer.Name()).Int("outputs", len(s.outputs)).Msg("Streamer started")
	return nil
}

// Stop ends the capture loop and stops the outputs
func (s *Streamer) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	select {
	case <-done:
	case <-time.After(stopGrace):
		s.log.Warn().Msg("Frame still in flight, stopping capture engine")
		if err := s.capturer.Stop(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to stop capture engine")
		}
		<-done
	}

	var errs []error
	for _, out := range s.outputs {
		if err := out.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", out.Name(), err))
		}
	}

	s.log.Info().Uint64("frames", s.Stats().Frames).Msg("Streamer stopped")
	return errors.Join(errs...)
}

// IsRunning returns true while the capture loop runs
func (s *Streamer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive()
}

// alive reports whether the loop goroutine is still running; s.mu must be held
func (s *Streamer) alive() bool {
	if !s.running {
		return false
	}
	select {
	case <-s.doneCh:
		return false
	default:
		return true
	}
}

func (s *Streamer) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if !s.tick(stop) {
			return
		}
	}
}

// tick produces and delivers one frame. It returns false when the loop
// must end.
func (s *Streamer) tick(stop chan struct{}) bool {
	frame, err := s.capturer.ProduceFrame()
	if err != nil {
		s.recordFailure(err)
		if !capture.IsFatal(err) && !errors.Is(err, capture.ErrNotStarted) {
			s.log.Debug().Err(err).Msg("Frame capture failed")
			return true
		}
		select {
		case <-stop:
			return false
		default:
		}
		return s.restart(err)
	}

	frame.Timestamp = time.Now()
	s.deliver(frame)
	return true
}

func (s *Streamer) restart(cause error) bool {
	s.log.Warn().Err(cause).Stringer("kind", capture.Classify(cause)).Msg("Capture engine failed, restarting")
	if err := s.capturer.Stop(); err != nil {
		s.log.Debug().Err(err).Msg("Error while stopping failed engine")
	}
	if err := s.capturer.Start(); err != nil {
		s.log.Error().Err(err).Msg("Capture engine restart failed, streamer giving up")
		s.recordFailure(err)
		return false
	}
	s.mu.Lock()
	s.stats.Restarts++
	s.mu.Unlock()
	return true
}

func (s *Streamer) deliver(frame *capture.Frame) {
	defer frame.Close()

	for _, out := range s.outputs {
		if !out.IsRunning() {
			continue
		}
		if err := out.WriteFrame(frame); err != nil {
			s.log.Warn().Err(err).Str("output", out.Name()).Msg("Failed to write frame")
		}
	}

	s.answerSnapshots(frame)

	s.mu.Lock()
	s.stats.Frames++
	s.stats.LastFrame = frame.Timestamp
	s.mu.Unlock()
}

func (s *Streamer) answerSnapshots(frame *capture.Frame) {
	var img *image.RGBA
	var err error
	converted := false
	for {
		select {
		case reply := <-s.snapshots:
			if !converted {
				img, err = output.FrameImage(frame)
				converted = true
			}
			reply <- snapshotResult{img: img, err: err}
		default:
			return
		}
	}
}

func (s *Streamer) recordFailure(err error) {
	s.mu.Lock()
	s.stats.Failures++
	s.stats.LastError = err.Error()
	s.mu.Unlock()
}

// Snapshot returns the next captured frame as an image. While the loop
// runs the frame is taken from it; otherwise one frame is captured directly.
func (s *Streamer) Snapshot(ctx context.Context) (*image.RGBA, error) {
	if !s.IsRunning() {
		frame, err := s.capturer.ProduceFrame()
		if err != nil {
			return nil, err
		}
		defer frame.Close()
		return output.FrameImage(frame)
	}

	reply := make(chan snapshotResult, 1)
	select {
	case s.snapshots <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.img, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats returns a snapshot of the streamer counters
func (s *Streamer) Stats() Stats {
	s.mu.Lock()
	st := s.stats
	st.Running = s.alive()
	s.mu.Unlock()

	st.Capturer = s.capturer.Name()
	st.FPS = s.fps
	if caps, ok := s.capturer.Caps(); ok {
		st.Caps = &caps
	}
	return st
}
