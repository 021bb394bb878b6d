package interval

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is wrapped by every command rejected for the current state.
var ErrInvalidTransition = errors.New("invalid transition")

// State is the sequencer lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateFinished
	StateStopped
)

var stateNames = map[State]string{
	StateIdle:     "idle",
	StateRunning:  "running",
	StatePaused:   "paused",
	StateFinished: "finished",
	StateStopped:  "stopped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further command can change the state.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateStopped
}

// TransitionError describes a command that is not valid in the current state.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s while %s: %v", e.Op, e.State, ErrInvalidTransition)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Cursor is the (set, phase) position of the sequencer. A cursor whose Set
// equals the number of sets is past the last phase.
type Cursor struct {
	Set   int `json:"set"`
	Phase int `json:"phase"`
}

// Before reports whether c precedes o in session order.
func (c Cursor) Before(o Cursor) bool {
	if c.Set != o.Set {
		return c.Set < o.Set
	}
	return c.Phase < o.Phase
}

func (c Cursor) String() string {
	return fmt.Sprintf("%d-%d", c.Set, c.Phase)
}

// Snapshot is a read-only copy of the sequencer state.
type Snapshot struct {
	SessionID string `json:"session_id,omitempty"`
	State     State  `json:"state"`
	Cursor    Cursor `json:"cursor"`
	Remaining int    `json:"remaining"`
	Running   bool   `json:"running"`
	Sets      []Set  `json:"sets"`
}

// Current returns the phase under the cursor, if there is one.
func (s Snapshot) Current() (Phase, bool) {
	if s.Cursor.Set < 0 || s.Cursor.Set >= len(s.Sets) {
		return Phase{}, false
	}
	phases := s.Sets[s.Cursor.Set].Phases
	if s.Cursor.Phase < 0 || s.Cursor.Phase >= len(phases) {
		return Phase{}, false
	}
	return phases[s.Cursor.Phase], true
}

// EventType identifies what an Event reports.
type EventType int

const (
	EventSnapshot EventType = iota
	EventPhaseCompleted
	EventFinished
	EventStopped
)

var eventTypeNames = map[EventType]string{
	EventSnapshot:       "snapshot",
	EventPhaseCompleted: "phase_completed",
	EventFinished:       "finished",
	EventStopped:        "stopped",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Terminal reports whether the event ends the session.
func (t EventType) Terminal() bool {
	return t == EventFinished || t == EventStopped
}

// Event is emitted to the sequencer observer. For EventPhaseCompleted, Cursor
// is the position of the phase that just completed.
type Event struct {
	Type     EventType `json:"type"`
	Cursor   Cursor    `json:"cursor"`
	Snapshot Snapshot  `json:"snapshot"`
}
