package interval

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

type countingDriver struct {
	starts int
	stops  int
	active int
}

func (d *countingDriver) Start() func() {
	d.starts++
	d.active++
	return func() {
		d.stops++
		d.active--
	}
}

type recorder struct {
	events []Event
}

func (r *recorder) observe(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) count(typ EventType) int {
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func (r *recorder) completed() []Cursor {
	var out []Cursor
	for _, ev := range r.events {
		if ev.Type == EventPhaseCompleted {
			out = append(out, ev.Cursor)
		}
	}
	return out
}

func newTestSequencer(t *testing.T, cfg Config) (*Sequencer, *countingDriver, *recorder) {
	t.Helper()
	session, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	d := &countingDriver{}
	rec := &recorder{}
	nop := zerolog.Nop()
	seq := NewSequencer(session, Options{Driver: d, Observer: rec.observe, Logger: &nop})
	return seq, d, rec
}

func tickN(t *testing.T, seq *Sequencer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := seq.Tick(); err != nil {
			t.Fatalf("tick %d: %v", i+1, err)
		}
	}
}

// ============================================================
// Full run
// ============================================================

func TestSequencerEndToEnd(t *testing.T) {
	seq, d, rec := newTestSequencer(t, Config{ActionMinutes: 0.1, BreakMinutes: 0.2, Sets: 2})

	if seq.State() != StateIdle {
		t.Fatalf("expected idle, got %s", seq.State())
	}
	if err := seq.Start(); err != nil {
		t.Fatal(err)
	}
	if seq.Remaining() != 6 || seq.Cursor() != (Cursor{0, 0}) {
		t.Fatalf("after start: cursor=%v remaining=%d", seq.Cursor(), seq.Remaining())
	}

	tickN(t, seq, 6)
	snap := seq.Snapshot()
	if snap.Cursor != (Cursor{0, 1}) || snap.Remaining != 12 {
		t.Fatalf("after 6 ticks: cursor=%v remaining=%d", snap.Cursor, snap.Remaining)
	}
	if !snap.Sets[0].Phases[0].Completed || snap.Sets[0].Completed {
		t.Fatal("action of set 0 should be complete, set 0 not yet")
	}

	tickN(t, seq, 12)
	snap = seq.Snapshot()
	if snap.Cursor != (Cursor{1, 0}) || snap.Remaining != 6 {
		t.Fatalf("after 18 ticks: cursor=%v remaining=%d", snap.Cursor, snap.Remaining)
	}
	if !snap.Sets[0].Completed {
		t.Fatal("set 0 should be complete")
	}

	tickN(t, seq, 17)
	if seq.State() != StateRunning {
		t.Fatalf("should still run after 35 ticks, got %s", seq.State())
	}
	if rec.count(EventFinished) != 0 {
		t.Fatal("finished fired early")
	}

	tickN(t, seq, 1)
	if seq.State() != StateFinished {
		t.Fatalf("expected finished after 36 ticks, got %s", seq.State())
	}
	if seq.Cursor() != (Cursor{2, 0}) {
		t.Fatalf("terminal cursor = %v", seq.Cursor())
	}
	if rec.count(EventFinished) != 1 {
		t.Fatalf("expected exactly one finished event, got %d", rec.count(EventFinished))
	}
	if d.active != 0 || d.starts != 1 || d.stops != 1 {
		t.Fatalf("driver starts=%d stops=%d active=%d", d.starts, d.stops, d.active)
	}

	snap = seq.Snapshot()
	for i, set := range snap.Sets {
		if !set.Completed {
			t.Fatalf("set %d not completed", i)
		}
	}

	err := seq.Tick()
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("tick after finish: %v", err)
	}
	if rec.count(EventFinished) != 1 {
		t.Fatal("finished fired twice")
	}
}

func TestSequencerEventOrderOnFinish(t *testing.T) {
	seq, _, rec := newTestSequencer(t, Config{ActionMinutes: 0.05, BreakMinutes: 0.05, Sets: 1})
	seq.Start()
	tickN(t, seq, 6)

	n := len(rec.events)
	if n < 3 {
		t.Fatalf("too few events: %d", n)
	}
	got := []EventType{rec.events[n-3].Type, rec.events[n-2].Type, rec.events[n-1].Type}
	want := []EventType{EventPhaseCompleted, EventSnapshot, EventFinished}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tail events = %v, want %v", got, want)
	}
	if rec.events[n-1].Snapshot.State != StateFinished {
		t.Fatalf("finished event carries state %s", rec.events[n-1].Snapshot.State)
	}
}

// ============================================================
// Invariants
// ============================================================

func TestSequencerRemainingWithinPhaseDuration(t *testing.T) {
	seq, _, _ := newTestSequencer(t, Config{ActionMinutes: 0.1, BreakMinutes: 0.05, Sets: 3})
	seq.Start()

	for seq.State() == StateRunning {
		if err := seq.Tick(); err != nil {
			t.Fatal(err)
		}
		if seq.State() != StateRunning {
			break
		}
		snap := seq.Snapshot()
		cur, ok := snap.Current()
		if !ok {
			t.Fatalf("no current phase at %v", snap.Cursor)
		}
		if snap.Remaining < 0 || snap.Remaining > cur.DurationSeconds {
			t.Fatalf("remaining %d outside [0,%d] at %v", snap.Remaining, cur.DurationSeconds, snap.Cursor)
		}
	}
}

func TestSequencerCursorVisitsEveryPhaseOnce(t *testing.T) {
	seq, _, rec := newTestSequencer(t, Config{ActionMinutes: 0.05, BreakMinutes: 0, Sets: 3})
	seq.Start()

	prev := seq.Cursor()
	ticks := 0
	for seq.State() == StateRunning {
		if err := seq.Tick(); err != nil {
			t.Fatal(err)
		}
		ticks++
		if seq.Cursor().Before(prev) {
			t.Fatalf("cursor went back from %v to %v", prev, seq.Cursor())
		}
		prev = seq.Cursor()
	}

	want := []Cursor{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 0}, {2, 1}}
	if got := rec.completed(); !reflect.DeepEqual(got, want) {
		t.Fatalf("completed cursors = %v, want %v", got, want)
	}
	if ticks != 9 {
		t.Fatalf("consumed %d ticks, want 9", ticks)
	}
}

func TestSequencerCompletedFlagsNeverRevert(t *testing.T) {
	seq, _, rec := newTestSequencer(t, Config{ActionMinutes: 0.05, BreakMinutes: 0.05, Sets: 2})
	seq.Start()
	tickN(t, seq, 12)

	seen := map[Cursor]bool{}
	for _, ev := range rec.events {
		for si, set := range ev.Snapshot.Sets {
			for pi, p := range set.Phases {
				c := Cursor{si, pi}
				if seen[c] && !p.Completed {
					t.Fatalf("phase %v reverted to incomplete", c)
				}
				if p.Completed {
					seen[c] = true
				}
			}
		}
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 completed phases, saw %d", len(seen))
	}
}

// ============================================================
// Zero-length phases
// ============================================================

func TestSequencerZeroBreakCompletesInSameTick(t *testing.T) {
	seq, _, rec := newTestSequencer(t, Config{ActionMinutes: 0.05, BreakMinutes: 0, Sets: 2})
	seq.Start()
	tickN(t, seq, 2)
	if len(rec.completed()) != 0 {
		t.Fatal("nothing should be complete yet")
	}

	tickN(t, seq, 1)
	if got := rec.completed(); !reflect.DeepEqual(got, []Cursor{{0, 0}, {0, 1}}) {
		t.Fatalf("completed = %v", got)
	}
	if seq.Cursor() != (Cursor{1, 0}) || seq.Remaining() != 3 {
		t.Fatalf("cursor=%v remaining=%d", seq.Cursor(), seq.Remaining())
	}
	if !seq.Snapshot().Sets[0].Completed {
		t.Fatal("set 0 should be complete")
	}
}

func TestSequencerZeroFirstPhase(t *testing.T) {
	seq, _, rec := newTestSequencer(t, Config{ActionMinutes: 0, BreakMinutes: 0.05, Sets: 1})
	seq.Start()
	if seq.Remaining() != 0 {
		t.Fatalf("remaining = %d", seq.Remaining())
	}

	tickN(t, seq, 1)
	if got := rec.completed(); !reflect.DeepEqual(got, []Cursor{{0, 0}}) {
		t.Fatalf("completed = %v", got)
	}
	if seq.Cursor() != (Cursor{0, 1}) || seq.Remaining() != 2 {
		t.Fatalf("cursor=%v remaining=%d", seq.Cursor(), seq.Remaining())
	}

	tickN(t, seq, 2)
	if seq.State() != StateFinished {
		t.Fatalf("expected finished, got %s", seq.State())
	}
}

func TestSequencerAllZeroFinishesOnFirstTick(t *testing.T) {
	seq, d, rec := newTestSequencer(t, Config{ActionMinutes: 0, BreakMinutes: 0, Sets: 3})
	seq.Start()
	tickN(t, seq, 1)

	if seq.State() != StateFinished {
		t.Fatalf("expected finished, got %s", seq.State())
	}
	if len(rec.completed()) != 6 {
		t.Fatalf("expected 6 completed phases, got %d", len(rec.completed()))
	}
	if rec.count(EventFinished) != 1 {
		t.Fatal("expected one finished event")
	}
	if d.active != 0 {
		t.Fatal("driver should be released")
	}
}

func TestSequencerWithoutSetsFinishesOnStart(t *testing.T) {
	d := &countingDriver{}
	rec := &recorder{}
	nop := zerolog.Nop()
	seq := NewSequencer(&Session{}, Options{Driver: d, Observer: rec.observe, Logger: &nop})

	if err := seq.Start(); err != nil {
		t.Fatal(err)
	}
	if seq.State() != StateFinished {
		t.Fatalf("expected finished, got %s", seq.State())
	}
	if rec.count(EventFinished) != 1 {
		t.Fatal("expected one finished event")
	}
	if d.starts != 0 {
		t.Fatal("driver should never start for an empty session")
	}
	if err := seq.Tick(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("tick after finish: %v", err)
	}
}

// ============================================================
// Commands
// ============================================================

func TestSequencerStartTwice(t *testing.T) {
	seq, d, _ := newTestSequencer(t, Config{ActionMinutes: 1, BreakMinutes: 1, Sets: 1})
	seq.Start()
	tickN(t, seq, 3)

	err := seq.Start()
	var te *TransitionError
	if !errors.As(err, &te) || te.Op != "start" || te.State != StateRunning {
		t.Fatalf("second start: %v", err)
	}
	if seq.Remaining() != 57 {
		t.Fatalf("second start changed remaining to %d", seq.Remaining())
	}
	if d.starts != 1 || d.active != 1 {
		t.Fatalf("driver starts=%d active=%d", d.starts, d.active)
	}
}

func TestSequencerCommandsWhileIdle(t *testing.T) {
	seq, d, rec := newTestSequencer(t, Config{ActionMinutes: 1, BreakMinutes: 1, Sets: 1})
	before := seq.Snapshot()

	ops := map[string]func() error{
		"tick":   seq.Tick,
		"pause":  seq.Pause,
		"resume": seq.Resume,
		"stop":   seq.Stop,
	}
	for name, op := range ops {
		err := op()
		var te *TransitionError
		if !errors.As(err, &te) || te.Op != name || te.State != StateIdle {
			t.Fatalf("%s while idle: %v", name, err)
		}
	}

	if !reflect.DeepEqual(seq.Snapshot(), before) {
		t.Fatal("rejected commands changed state")
	}
	if len(rec.events) != 0 {
		t.Fatalf("rejected commands emitted %d events", len(rec.events))
	}
	if d.starts != 0 {
		t.Fatal("driver started while idle")
	}
}

func TestSequencerPauseIdempotent(t *testing.T) {
	seq, d, _ := newTestSequencer(t, Config{ActionMinutes: 0.1, BreakMinutes: 0.1, Sets: 2})
	seq.Start()
	tickN(t, seq, 2)

	if err := seq.Pause(); err != nil {
		t.Fatal(err)
	}
	once := seq.Snapshot()

	if err := seq.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second pause: %v", err)
	}
	if !reflect.DeepEqual(seq.Snapshot(), once) {
		t.Fatal("second pause changed state")
	}
	if once.Running || once.State != StatePaused {
		t.Fatalf("paused snapshot: %+v", once)
	}
	if d.stops != 1 || d.active != 0 {
		t.Fatalf("driver stops=%d active=%d", d.stops, d.active)
	}
}

func TestSequencerPauseResumePreservesPosition(t *testing.T) {
	seq, d, _ := newTestSequencer(t, Config{ActionMinutes: 0.1, BreakMinutes: 0.2, Sets: 2})
	seq.Start()
	tickN(t, seq, 8)

	if err := seq.Pause(); err != nil {
		t.Fatal(err)
	}
	if err := seq.Tick(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("tick while paused: %v", err)
	}
	if seq.Cursor() != (Cursor{0, 1}) || seq.Remaining() != 10 {
		t.Fatalf("paused at cursor=%v remaining=%d", seq.Cursor(), seq.Remaining())
	}

	if err := seq.Resume(); err != nil {
		t.Fatal(err)
	}
	if seq.Cursor() != (Cursor{0, 1}) || seq.Remaining() != 10 {
		t.Fatalf("resumed at cursor=%v remaining=%d", seq.Cursor(), seq.Remaining())
	}
	if seq.State() != StateRunning {
		t.Fatalf("expected running, got %s", seq.State())
	}
	if err := seq.Resume(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("resume while running: %v", err)
	}
	if d.starts != 2 || d.active != 1 {
		t.Fatalf("driver starts=%d active=%d", d.starts, d.active)
	}

	tickN(t, seq, 28)
	if seq.State() != StateFinished {
		t.Fatalf("expected finished after 36 total ticks, got %s", seq.State())
	}
}

func TestSequencerStopThenTick(t *testing.T) {
	seq, d, rec := newTestSequencer(t, Config{ActionMinutes: 0.1, BreakMinutes: 0.2, Sets: 2})
	seq.Start()
	tickN(t, seq, 3)

	if err := seq.Stop(); err != nil {
		t.Fatal(err)
	}
	if seq.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", seq.State())
	}
	if d.active != 0 {
		t.Fatal("driver should be released on stop")
	}
	if rec.count(EventStopped) != 1 {
		t.Fatal("expected one stopped event")
	}
	last := rec.events[len(rec.events)-1]
	if last.Type != EventStopped || last.Snapshot.Remaining != 3 || len(last.Snapshot.Sets) != 2 {
		t.Fatalf("stopped event: %+v", last)
	}

	before := seq.Snapshot()
	for _, op := range []func() error{seq.Tick, seq.Pause, seq.Resume, seq.Stop, seq.Start} {
		if err := op(); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("command after stop: %v", err)
		}
	}
	if !reflect.DeepEqual(seq.Snapshot(), before) {
		t.Fatal("state changed after stop")
	}
	if rec.count(EventStopped) != 1 || rec.count(EventFinished) != 0 {
		t.Fatal("terminal events repeated")
	}
}

func TestSequencerStopWhilePaused(t *testing.T) {
	seq, d, rec := newTestSequencer(t, Config{ActionMinutes: 1, BreakMinutes: 1, Sets: 1})
	seq.Start()
	seq.Pause()

	if err := seq.Stop(); err != nil {
		t.Fatal(err)
	}
	if d.stops != 1 {
		t.Fatalf("driver released %d times, want 1", d.stops)
	}
	if rec.count(EventStopped) != 1 {
		t.Fatal("expected one stopped event")
	}
}

func TestSequencerSnapshotIsCopy(t *testing.T) {
	seq, _, _ := newTestSequencer(t, Config{ActionMinutes: 1, BreakMinutes: 1, Sets: 1})
	seq.Start()
	snap := seq.Snapshot()
	snap.Sets[0].Phases[0].Completed = true
	if seq.Snapshot().Sets[0].Phases[0].Completed {
		t.Fatal("snapshot mutation leaked into sequencer")
	}
}

func TestSequencerNilDriver(t *testing.T) {
	session, _ := Build(Config{ActionMinutes: 0.05, BreakMinutes: 0.05, Sets: 1})
	nop := zerolog.Nop()
	seq := NewSequencer(session, Options{Logger: &nop})
	seq.Start()
	seq.Pause()
	seq.Resume()
	tickN(t, seq, 6)
	if seq.State() != StateFinished {
		t.Fatalf("expected finished, got %s", seq.State())
	}
}
