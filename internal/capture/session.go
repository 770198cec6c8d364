package capture

import (
	"fmt"

	"github.com/rs/zerolog"
)

// session drives one capture_output request from Idle to a terminal state.
// Every incoming event is handled by exactly one transition function.
type session struct {
	id         uint64
	mode       Mode
	showCursor bool
	conn       Conn
	backend    Backend
	log        zerolog.Logger
	onGeometry func(Geometry)

	state State
	geom  Geometry
	frame CaptureFrame
	err   error
	trace []State
}

func newSession(id uint64, mode Mode, showCursor bool, conn Conn, backend Backend, log zerolog.Logger) *session {
	return &session{
		id:         id,
		mode:       mode,
		showCursor: showCursor,
		conn:       conn,
		backend:    backend,
		log:        log.With().Uint64("session", id).Logger(),
		state:      StateIdle,
		trace:      []State{StateIdle},
	}
}

func (s *session) begin() error {
	frame, err := s.conn.CaptureOutput(s.showCursor, s.mode, s.handle)
	if err != nil {
		s.abort(fmt.Errorf("%w: capture_output: %v", ErrDispatch, err))
		return s.err
	}
	s.frame = frame
	s.enter(StateRequested)
	return nil
}

func (s *session) handle(ev Event) {
	if s.state.Terminal() {
		s.log.Debug().Stringer("event", ev.Kind).Stringer("state", s.state).Msg("Event after completion ignored")
		return
	}

	var next State
	switch ev.Kind {
	case EventBuffer, EventLinuxDmabuf:
		next = s.onFormat(ev)
	case EventBufferDone:
		next = s.onBufferDone()
	case EventParamsCreated:
		next = s.onParamsCreated(ev.Buffer)
	case EventParamsFailed:
		next = s.onParamsFailed()
	case EventReady:
		next = s.onReady(ev)
	case EventFailed:
		next = s.fail(ErrCaptureFailed)
	case EventDamage, EventFlags:
		next = s.state
	default:
		s.log.Debug().Stringer("event", ev.Kind).Msg("Unhandled event")
		next = s.state
	}
	if next != s.state {
		s.enter(next)
	}
}

func (s *session) onFormat(ev Event) State {
	if ev.Kind != s.mode.formatEvent() {
		return s.state
	}
	if s.state != StateRequested {
		s.log.Debug().Stringer("state", s.state).Msg("Duplicate format event ignored")
		return s.state
	}

	s.geom = Geometry{Format: ev.Format, Width: ev.Width, Height: ev.Height, Stride: ev.Stride}
	s.enter(StateFormatKnown)
	if s.onGeometry != nil {
		s.onGeometry(s.geom)
	}

	g, err := s.backend.Negotiate(s.geom)
	if err != nil {
		return s.fail(err)
	}
	s.geom = g
	return StateBufferBound
}

func (s *session) onBufferDone() State {
	switch s.state {
	case StateRequested:
		return s.fail(fmt.Errorf("%w: buffer_done without a %s geometry", ErrNegotiation, s.mode))
	case StateBufferBound:
	default:
		return s.state
	}

	buf, err := s.backend.OnPeerReady(s.handle)
	if err != nil {
		return s.fail(err)
	}
	if buf == nil {
		return StateParamsPending
	}
	return s.copy(buf)
}

func (s *session) onParamsCreated(buf Buffer) State {
	if s.state != StateParamsPending {
		if buf != nil {
			_ = buf.Destroy()
		}
		return s.state
	}
	s.enter(StateParamsReady)
	if err := s.backend.Confirm(buf); err != nil {
		return s.fail(err)
	}
	return s.copy(buf)
}

func (s *session) onParamsFailed() State {
	if s.state != StateParamsPending {
		return s.state
	}
	return s.fail(fmt.Errorf("%w: compositor rejected dma-buf parameters", ErrNegotiation))
}

func (s *session) onReady(ev Event) State {
	if s.state != StateCopyIssued {
		return s.fail(fmt.Errorf("%w: ready received in state %s", ErrCaptureFailed, s.state))
	}
	s.log.Debug().Uint64("tv_sec", ev.TvSec).Uint32("tv_nsec", ev.TvNsec).Msg("Frame ready")
	return StateReady
}

func (s *session) copy(buf Buffer) State {
	if err := s.frame.Copy(buf); err != nil {
		return s.fail(fmt.Errorf("%w: copy: %v", ErrDispatch, err))
	}
	return StateCopyIssued
}

func (s *session) fail(err error) State {
	s.err = err
	return StateFailed
}

// abort forces a failure from outside the event path
func (s *session) abort(err error) {
	if s.state.Terminal() {
		return
	}
	s.err = err
	s.enter(StateFailed)
}

func (s *session) enter(state State) {
	s.log.Trace().Stringer("from", s.state).Stringer("to", state).Msg("Session transition")
	s.state = state
	s.trace = append(s.trace, state)
	if state == StateFailed {
		s.log.Debug().Err(s.err).Msg("Session failed")
	}
}

// teardown destroys the per-session protocol objects
func (s *session) teardown() {
	if s.frame != nil {
		if err := s.frame.Destroy(); err != nil {
			s.log.Debug().Err(err).Msg("Failed to destroy capture frame")
		}
		s.frame = nil
	}
	if err := s.backend.Release(); err != nil {
		s.log.Debug().Err(err).Msg("Failed to release session objects")
	}
}
