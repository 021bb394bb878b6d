package interval

import (
	"github.com/rs/zerolog"

	xglog "github.com/sadopc/dong/internal/log"
)

// Driver delivers ticks to a sequencer. Start begins periodic delivery and
// returns the function that ends it; no tick may be delivered after that
// function returns.
type Driver interface {
	Start() (stop func())
}

// DriverFunc adapts a function to Driver.
type DriverFunc func() (stop func())

func (f DriverFunc) Start() func() { return f() }

// Options configures a Sequencer. All fields are optional: without a Driver
// the host calls Tick itself.
type Options struct {
	Driver   Driver
	Observer func(Event)
	Logger   *zerolog.Logger
}

// Sequencer walks a session phase by phase, one tick per elapsed second.
// It is not safe for concurrent use; Runner provides a goroutine-safe host.
type Sequencer struct {
	session   *Session
	cursor    Cursor
	remaining int
	state     State

	driver     Driver
	stopDriver func()
	observer   func(Event)
	logger     zerolog.Logger
}

// NewSequencer takes ownership of session. A nil session behaves like a
// session with no sets.
func NewSequencer(session *Session, opts Options) *Sequencer {
	if session == nil {
		session = &Session{}
	}
	logger := xglog.WithComponent("sequencer")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Sequencer{
		session:  session,
		state:    StateIdle,
		driver:   opts.Driver,
		observer: opts.Observer,
		logger:   logger.With().Str("session", session.ID).Logger(),
	}
}

func (s *Sequencer) State() State { return s.state }

func (s *Sequencer) Cursor() Cursor { return s.cursor }

func (s *Sequencer) Remaining() int { return s.remaining }

// Snapshot returns a copy of the current state that the caller may keep.
func (s *Sequencer) Snapshot() Snapshot {
	snap := Snapshot{
		State:     s.state,
		Cursor:    s.cursor,
		Remaining: s.remaining,
		Running:   s.state == StateRunning,
	}
	if s.session != nil {
		snap.SessionID = s.session.ID
		snap.Sets = s.session.clone().Sets
	}
	return snap
}

// Start begins the first phase. A session without sets finishes at once.
func (s *Sequencer) Start() error {
	if s.state != StateIdle {
		return s.reject("start")
	}

	s.cursor = Cursor{}
	if len(s.session.Sets) == 0 {
		s.logger.Warn().Msg("session has no sets")
		s.finish()
		return nil
	}

	s.remaining = s.currentPhase().DurationSeconds
	s.state = StateRunning
	s.acquireDriver()
	s.logger.Debug().Int("sets", len(s.session.Sets)).Int("remaining", s.remaining).Msg("started")
	s.emit(Event{Type: EventSnapshot})
	return nil
}

// Tick advances time by one second. The second is charged to the current
// phase; a phase that reaches zero completes and the cursor moves on within
// the same tick, skipping through any zero-length phases.
func (s *Sequencer) Tick() error {
	if s.state != StateRunning {
		return s.reject("tick")
	}

	s.drainElapsed()
	if s.state == StateRunning {
		s.remaining--
		s.drainElapsed()
	}

	if s.state == StateFinished {
		return nil
	}
	s.emit(Event{Type: EventSnapshot})
	return nil
}

// Pause freezes the countdown, keeping cursor and remaining time.
func (s *Sequencer) Pause() error {
	if s.state != StateRunning {
		return s.reject("pause")
	}
	s.releaseDriver()
	s.state = StatePaused
	s.logger.Debug().Stringer("cursor", s.cursor).Int("remaining", s.remaining).Msg("paused")
	s.emit(Event{Type: EventSnapshot})
	return nil
}

// Resume continues a paused countdown from where it stopped.
func (s *Sequencer) Resume() error {
	if s.state != StatePaused {
		return s.reject("resume")
	}
	s.state = StateRunning
	s.acquireDriver()
	s.logger.Debug().Stringer("cursor", s.cursor).Int("remaining", s.remaining).Msg("resumed")
	s.emit(Event{Type: EventSnapshot})
	return nil
}

// Stop cancels the session. The session is discarded and the sequencer
// ignores every later command.
func (s *Sequencer) Stop() error {
	if s.state != StateRunning && s.state != StatePaused {
		return s.reject("stop")
	}
	s.releaseDriver()
	s.state = StateStopped
	s.logger.Info().Stringer("cursor", s.cursor).Msg("stopped")

	s.emit(Event{Type: EventSnapshot})
	s.emit(Event{Type: EventStopped})
	s.session = &Session{ID: s.session.ID}
	return nil
}

func (s *Sequencer) drainElapsed() {
	for s.state == StateRunning && s.remaining == 0 {
		s.completeCurrent()
		s.advance()
	}
}

func (s *Sequencer) completeCurrent() {
	set := &s.session.Sets[s.cursor.Set]
	set.Phases[s.cursor.Phase].Completed = true
	set.refresh()
	s.logger.Debug().Stringer("cursor", s.cursor).Bool("set_completed", set.Completed).Msg("phase completed")
	s.emit(Event{Type: EventPhaseCompleted, Cursor: s.cursor})
}

func (s *Sequencer) advance() {
	if s.cursor.Phase < len(s.session.Sets[s.cursor.Set].Phases)-1 {
		s.cursor.Phase++
		s.remaining = s.currentPhase().DurationSeconds
		return
	}

	s.cursor.Set++
	s.cursor.Phase = 0
	if s.cursor.Set < len(s.session.Sets) {
		s.remaining = s.currentPhase().DurationSeconds
		return
	}
	s.finish()
}

func (s *Sequencer) finish() {
	s.releaseDriver()
	s.cursor = Cursor{Set: len(s.session.Sets)}
	s.remaining = 0
	s.state = StateFinished
	s.logger.Info().Int("sets", len(s.session.Sets)).Msg("finished")

	s.emit(Event{Type: EventSnapshot})
	s.emit(Event{Type: EventFinished})
}

func (s *Sequencer) currentPhase() Phase {
	return s.session.Sets[s.cursor.Set].Phases[s.cursor.Phase]
}

func (s *Sequencer) acquireDriver() {
	if s.driver == nil || s.stopDriver != nil {
		return
	}
	s.stopDriver = s.driver.Start()
}

func (s *Sequencer) releaseDriver() {
	if s.stopDriver == nil {
		return
	}
	stop := s.stopDriver
	s.stopDriver = nil
	stop()
}

func (s *Sequencer) reject(op string) error {
	s.logger.Debug().Str("op", op).Stringer("state", s.state).Msg("ignored command")
	return &TransitionError{Op: op, State: s.state}
}

func (s *Sequencer) emit(ev Event) {
	if s.observer == nil {
		return
	}
	ev.Snapshot = s.Snapshot()
	s.observer(ev)
}
