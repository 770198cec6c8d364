package streamer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/wlrsrc/internal/capture"
)

type fakeCapturer struct {
	mu          sync.Mutex
	started     bool
	starts      int
	stops       int
	seq         uint64
	errs        []error
	failRestart bool
}

func (f *fakeCapturer) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRestart && f.starts > 0 {
		return fmt.Errorf("%w: socket gone", capture.ErrConnection)
	}
	f.starts++
	f.started = true
	return nil
}

func (f *fakeCapturer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.started = false
	return nil
}

func (f *fakeCapturer) ProduceFrame() (*capture.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return nil, capture.ErrNotStarted
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	f.seq++
	return &capture.Frame{
		Format:   capture.ShmFormatXRGB8888,
		Width:    2,
		Height:   2,
		Stride:   8,
		Data:     make([]byte, 16),
		Sequence: f.seq,
	}, nil
}

func (f *fakeCapturer) Caps() (capture.Caps, bool) {
	return capture.CapsFor(capture.ModeSHM, capture.Geometry{Width: 2, Height: 2}), true
}

func (f *fakeCapturer) Name() string { return "fake" }

func (f *fakeCapturer) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

type fakeOutput struct {
	mu      sync.Mutex
	running bool
	seqs    []uint64
	stamped bool
}

func (o *fakeOutput) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = true
	return nil
}

func (o *fakeOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
	return nil
}

func (o *fakeOutput) WriteFrame(frame *capture.Frame) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seqs = append(o.seqs, frame.Sequence)
	o.stamped = !frame.Timestamp.IsZero()
	return nil
}

func (o *fakeOutput) Name() string { return "fake output" }

func (o *fakeOutput) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *fakeOutput) frames() []uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]uint64(nil), o.seqs...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startStreamer(t *testing.T, c *fakeCapturer, out *fakeOutput) *Streamer {
	t.Helper()
	if err := c.Start(); err != nil {
		t.Fatalf("capturer Start() error = %v", err)
	}
	s := New(c, Options{FPS: 200}, zerolog.Nop(), out)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return s
}

func TestStreamerDeliversFrames(t *testing.T) {
	c := &fakeCapturer{}
	out := &fakeOutput{}
	s := startStreamer(t, c, out)

	waitFor(t, "three frames", func() bool { return len(out.frames()) >= 3 })
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	seqs := out.frames()
	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Errorf("sequence not increasing: %v", seqs)
			break
		}
	}
	if !out.stamped {
		t.Error("frames were not timestamped")
	}
	if out.IsRunning() {
		t.Error("output still running after Stop")
	}
	st := s.Stats()
	if st.Running || st.Frames < 3 || st.Caps == nil {
		t.Errorf("stats = %+v", st)
	}
}

func TestStreamerRestartsAfterDispatchFailure(t *testing.T) {
	c := &fakeCapturer{errs: []error{fmt.Errorf("%w: broken pipe", capture.ErrDispatch)}}
	out := &fakeOutput{}
	s := startStreamer(t, c, out)
	defer s.Stop()

	waitFor(t, "a frame after restart", func() bool { return len(out.frames()) >= 1 })

	st := s.Stats()
	if st.Restarts != 1 || st.Failures != 1 {
		t.Errorf("restarts %d failures %d, want 1 and 1", st.Restarts, st.Failures)
	}
	if starts, stops := c.counts(); starts != 2 || stops != 1 {
		t.Errorf("starts %d stops %d, want 2 and 1", starts, stops)
	}
}

func TestStreamerSessionFailureDoesNotRestart(t *testing.T) {
	c := &fakeCapturer{errs: []error{capture.ErrCaptureFailed, fmt.Errorf("%w: rejected", capture.ErrNegotiation)}}
	out := &fakeOutput{}
	s := startStreamer(t, c, out)
	defer s.Stop()

	waitFor(t, "a frame", func() bool { return len(out.frames()) >= 1 })

	st := s.Stats()
	if st.Restarts != 0 || st.Failures != 2 {
		t.Errorf("restarts %d failures %d, want 0 and 2", st.Restarts, st.Failures)
	}
}

func TestStreamerGivesUpWhenRestartFails(t *testing.T) {
	c := &fakeCapturer{
		errs:        []error{fmt.Errorf("%w: eof", capture.ErrDispatch)},
		failRestart: true,
	}
	out := &fakeOutput{}
	s := startStreamer(t, c, out)

	waitFor(t, "the loop to end", func() bool { return !s.IsRunning() })
	if st := s.Stats(); st.Failures != 2 || st.LastError == "" {
		t.Errorf("stats = %+v, want the dispatch and restart failures recorded", st)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if out.IsRunning() {
		t.Error("output still running after Stop")
	}
}

func TestSnapshotWhileStopped(t *testing.T) {
	c := &fakeCapturer{}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	s := New(c, Options{FPS: 10}, zerolog.Nop())

	img, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 2 {
		t.Errorf("bounds = %v, want 2x2", img.Bounds())
	}
}

func TestSnapshotWhileRunning(t *testing.T) {
	c := &fakeCapturer{}
	s := startStreamer(t, c, &fakeOutput{})
	defer s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	img, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if img.Bounds().Dx() != 2 {
		t.Errorf("bounds = %v", img.Bounds())
	}
}
