package interval

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// ErrInvalidConfiguration is returned by Build for configurations that cannot
// produce a session.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// PhaseKind names a phase. Every set runs Action then Break.
type PhaseKind int

const (
	Action PhaseKind = iota
	Break
)

var phaseKindNames = map[PhaseKind]string{
	Action: "Action",
	Break:  "Break",
}

func (k PhaseKind) String() string {
	if name, ok := phaseKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("PhaseKind(%d)", int(k))
}

// MarshalText lets snapshots encode phase kinds by name.
func (k PhaseKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *PhaseKind) UnmarshalText(b []byte) error {
	for kind, name := range phaseKindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown phase kind %q", b)
}

// Phase is one timed unit inside a set.
type Phase struct {
	Kind            PhaseKind `json:"kind"`
	DurationSeconds int       `json:"duration_seconds"`
	Completed       bool      `json:"completed"`
}

// Set is an Action phase followed by a Break phase.
type Set struct {
	Phases    []Phase `json:"phases"`
	Completed bool    `json:"completed"`
}

func (s *Set) refresh() {
	for _, p := range s.Phases {
		if !p.Completed {
			s.Completed = false
			return
		}
	}
	s.Completed = true
}

// Session is the full sequence of sets for one timer run.
type Session struct {
	ID            string `json:"id"`
	ActionSeconds int    `json:"action_seconds"`
	BreakSeconds  int    `json:"break_seconds"`
	Sets          []Set  `json:"sets"`
}

// TotalSeconds is the sum of every phase duration in the session.
func (s *Session) TotalSeconds() int {
	total := 0
	for _, set := range s.Sets {
		for _, p := range set.Phases {
			total += p.DurationSeconds
		}
	}
	return total
}

// CompletedSets counts sets whose phases have all completed.
func (s *Session) CompletedSets() int {
	n := 0
	for _, set := range s.Sets {
		if set.Completed {
			n++
		}
	}
	return n
}

func (s *Session) clone() *Session {
	c := *s
	c.Sets = make([]Set, len(s.Sets))
	for i, set := range s.Sets {
		c.Sets[i] = Set{
			Phases:    append([]Phase(nil), set.Phases...),
			Completed: set.Completed,
		}
	}
	return &c
}

// Config is the user-facing timer configuration.
type Config struct {
	ActionMinutes float64
	BreakMinutes  float64
	Sets          int
}

// Validate reports whether Build would accept the configuration.
func (c Config) Validate() error {
	if c.Sets < 1 {
		return fmt.Errorf("%w: sets must be at least 1, got %d", ErrInvalidConfiguration, c.Sets)
	}
	if err := validMinutes("action", c.ActionMinutes); err != nil {
		return err
	}
	return validMinutes("break", c.BreakMinutes)
}

func validMinutes(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s minutes must be finite", ErrInvalidConfiguration, name)
	}
	if v < 0 {
		return fmt.Errorf("%w: %s minutes must not be negative, got %v", ErrInvalidConfiguration, name, v)
	}
	return nil
}

// Input limits of the setup screens. Build itself accepts any valid Config.
const (
	MaxMinutes = 60
	MinSets    = 1
	MaxSets    = 10
)

// CheckLimits validates cfg and additionally bounds it to the ranges offered
// to users.
func (c Config) CheckLimits() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Sets > MaxSets {
		return fmt.Errorf("%w: sets must be between %d and %d, got %d", ErrInvalidConfiguration, MinSets, MaxSets, c.Sets)
	}
	if c.ActionMinutes > MaxMinutes || c.BreakMinutes > MaxMinutes {
		return fmt.Errorf("%w: minutes must be between 0 and %d", ErrInvalidConfiguration, MaxMinutes)
	}
	return nil
}

// ToSeconds converts minutes to whole seconds, discarding fractions.
func ToSeconds(minutes float64) int {
	return int(minutes * 60)
}

// Build constructs the ordered sets for cfg. All phases start incomplete.
func Build(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	actionSecs := ToSeconds(cfg.ActionMinutes)
	breakSecs := ToSeconds(cfg.BreakMinutes)

	sets := make([]Set, cfg.Sets)
	for i := range sets {
		sets[i] = Set{
			Phases: []Phase{
				{Kind: Action, DurationSeconds: actionSecs},
				{Kind: Break, DurationSeconds: breakSecs},
			},
		}
	}

	return &Session{
		ID:            uuid.New().String(),
		ActionSeconds: actionSecs,
		BreakSeconds:  breakSecs,
		Sets:          sets,
	}, nil
}
