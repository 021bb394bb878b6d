package store

import "time"

// Run statuses.
const (
	RunRunning  = "running"
	RunFinished = "finished"
	RunStopped  = "stopped"
)

// Run is one recorded timer session.
type Run struct {
	ID            int64
	UID           string
	ActionSeconds int
	BreakSeconds  int
	SetCount      int
	CompletedSets int
	Status        string // running, finished, stopped
	StartedAt     time.Time
	EndedAt       *time.Time
}

// Duration is the planned length of the run in seconds.
func (r Run) Duration() int64 {
	return int64(r.ActionSeconds+r.BreakSeconds) * int64(r.SetCount)
}

type Setting struct {
	Key   string
	Value string
}

// DailySummary aggregates runs started on one day.
type DailySummary struct {
	Date          string
	Runs          int
	FinishedRuns  int
	CompletedSets int
	ActionSeconds int64 // action time of completed sets
}
