package tui

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/sadopc/dong/internal/interval"
	xglog "github.com/sadopc/dong/internal/log"
	"github.com/sadopc/dong/internal/store"
)

type timerStage int

const (
	stageIdle timerStage = iota
	stageCountdown
	stageResult
)

type timerModel struct {
	store  *store.Store
	width  int
	height int
	logger zerolog.Logger

	stage      timerStage
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	actionMinutes *string
	breakMinutes  *string
	sets          *string

	seq     *interval.Sequencer
	driver  *teaDriver
	pending *[]interval.Event
	snap    interval.Snapshot
	runID   int64

	progress progress.Model
}

func newTimerModel(s *store.Store) timerModel {
	a, b, n := "", "", ""
	var pending []interval.Event
	m := timerModel{
		store:         s,
		logger:        xglog.WithComponent("tui"),
		actionMinutes: &a,
		breakMinutes:  &b,
		sets:          &n,
		driver:        newTeaDriver(time.Second),
		pending:       &pending,
		progress:      progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
	m.loadDefaults()
	return m
}

func (t *timerModel) loadDefaults() {
	cfg := t.store.TimerDefaults()
	*t.actionMinutes = strconv.FormatFloat(cfg.ActionMinutes, 'f', -1, 64)
	*t.breakMinutes = strconv.FormatFloat(cfg.BreakMinutes, 'f', -1, 64)
	*t.sets = strconv.Itoa(cfg.Sets)
}

func (t *timerModel) setSize(w, h int) {
	t.width = w
	t.height = h
	t.progress.Width = max(w-16, 10)
}

// active reports whether a countdown is running or paused.
func (t timerModel) active() bool {
	if t.seq == nil {
		return false
	}
	s := t.seq.State()
	return s == interval.StateRunning || s == interval.StatePaused
}

func (t timerModel) paused() bool {
	return t.seq != nil && t.seq.State() == interval.StatePaused
}

func (t timerModel) update(msg tea.Msg) (timerModel, tea.Cmd) {
	if t.formActive && t.form != nil {
		return t.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tickMsg:
		if t.seq == nil || !t.driver.accept(msg) {
			return t, nil
		}
		if err := t.seq.Tick(); err != nil {
			t.logger.Debug().Err(err).Msg("tick dropped")
		}
		return t.drain()

	case tea.KeyMsg:
		switch t.stage {
		case stageIdle:
			if key.Matches(msg, keys.Enter) || key.Matches(msg, keys.New) {
				return t.showForm()
			}
		case stageCountdown:
			switch {
			case key.Matches(msg, keys.Pause):
				return t.togglePause()
			case key.Matches(msg, keys.Stop):
				return t.stop()
			}
		case stageResult:
			if key.Matches(msg, keys.Enter) || key.Matches(msg, keys.Back) {
				t.stage = stageIdle
				return t, nil
			}
		}
	}
	return t, nil
}

func (t timerModel) showForm() (timerModel, tea.Cmd) {
	t.loadDefaults()

	t.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Action (min)").
				Description(fmt.Sprintf("0 to %d, fractions allowed", interval.MaxMinutes)).
				Value(t.actionMinutes).
				Validate(func(s string) error { _, err := parseMinutes(s); return err }),
			huh.NewInput().Title("Break (min)").
				Description(fmt.Sprintf("0 to %d", interval.MaxMinutes)).
				Value(t.breakMinutes).
				Validate(func(s string) error { _, err := parseMinutes(s); return err }),
			huh.NewInput().Title("Sets").
				Description(fmt.Sprintf("%d to %d", interval.MinSets, interval.MaxSets)).
				Value(t.sets).
				Validate(func(s string) error { _, err := parseSets(s); return err }),
		).Title("New countdown"),
	).WithShowHelp(true).WithShowErrors(true)

	t.formActive = true
	return t, t.form.Init()
}

func (t timerModel) updateForm(msg tea.Msg) (timerModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			t.formActive = false
			t.form = nil
			return t, nil
		}
	}

	form, cmd := t.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		t.form = f
	}

	if t.form.State == huh.StateCompleted {
		t.formActive = false
		t.form = nil
		cfg, err := parseConfig(*t.actionMinutes, *t.breakMinutes, *t.sets)
		if err != nil {
			return t, statusCmd(err.Error(), true)
		}
		return t.start(cfg)
	}

	return t, cmd
}

// start builds a session from cfg, records it and begins the countdown.
func (t timerModel) start(cfg interval.Config) (timerModel, tea.Cmd) {
	session, err := interval.Build(cfg)
	if err != nil {
		return t, statusCmd(err.Error(), true)
	}
	if err := t.store.SaveTimerDefaults(cfg); err != nil {
		t.logger.Warn().Err(err).Msg("save timer defaults")
	}

	t.runID = 0
	run, err := t.store.StartRun(session)
	if err != nil {
		t.logger.Error().Err(err).Msg("record run start")
	} else {
		t.runID = run.ID
	}

	logger := xglog.WithComponent("sequencer")
	pending := t.pending
	t.seq = interval.NewSequencer(session, interval.Options{
		Driver:   t.driver,
		Observer: func(ev interval.Event) { *pending = append(*pending, ev) },
		Logger:   &logger,
	})
	return t.begin()
}

// begin starts the prepared sequencer and switches to the countdown view.
// A sequencer that refuses to start leaves the model idle and closes its run.
func (t timerModel) begin() (timerModel, tea.Cmd) {
	if err := t.seq.Start(); err != nil {
		t.logger.Error().Err(err).Msg("start countdown")
		if t.runID != 0 {
			ev := interval.Event{Type: interval.EventStopped, Snapshot: t.seq.Snapshot()}
			if rerr := t.store.RecordEvent(t.runID, ev); rerr != nil {
				t.logger.Error().Err(rerr).Msg("record run stop")
			}
		}
		t.seq = nil
		t.stage = stageIdle
		*t.pending = (*t.pending)[:0]
		return t, statusCmd(err.Error(), true)
	}
	t.stage = stageCountdown

	t, cmd := t.drain()
	started := func() tea.Msg { return runStartedMsg{runID: t.runID} }
	return t, tea.Batch(started, cmd)
}

func (t timerModel) togglePause() (timerModel, tea.Cmd) {
	if t.seq == nil {
		return t, nil
	}
	var err error
	if t.seq.State() == interval.StatePaused {
		err = t.seq.Resume()
	} else {
		err = t.seq.Pause()
	}
	if err != nil {
		t.logger.Debug().Err(err).Msg("toggle ignored")
		return t, nil
	}
	return t.drain()
}

func (t timerModel) stop() (timerModel, tea.Cmd) {
	if !t.active() {
		return t, nil
	}
	if err := t.seq.Stop(); err != nil {
		return t, nil
	}
	return t.drain()
}

// drain applies the events the sequencer emitted since the last call: they
// are persisted, folded into the view state and the next tick is scheduled.
func (t timerModel) drain() (timerModel, tea.Cmd) {
	var cmds []tea.Cmd
	bell := false

	for _, ev := range *t.pending {
		if t.runID > 0 {
			if err := t.store.RecordEvent(t.runID, ev); err != nil {
				t.logger.Error().Err(err).Int64("run", t.runID).Msg("record event")
			}
		}
		t.snap = ev.Snapshot

		switch ev.Type {
		case interval.EventPhaseCompleted:
			bell = true
		case interval.EventFinished:
			t.stage = stageResult
			cmds = append(cmds, func() tea.Msg { return runEndedMsg{finished: true} })
		case interval.EventStopped:
			t.stage = stageIdle
			cmds = append(cmds, func() tea.Msg { return runEndedMsg{finished: false} })
		}
	}
	*t.pending = (*t.pending)[:0]

	if bell && t.stage == stageCountdown {
		if phase, ok := t.snap.Current(); ok {
			cmds = append(cmds, statusCmd(fmt.Sprintf("%s, set %d \a", phase.Kind, t.snap.Cursor.Set+1), false))
		}
	}
	if cmd := t.driver.next(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return t, tea.Batch(cmds...)
}

func statusCmd(text string, isError bool) tea.Cmd {
	return func() tea.Msg { return statusMsg{text: text, isError: isError} }
}

// --- View ---

func (t timerModel) view() string {
	w := t.width - 4

	if t.formActive && t.form != nil {
		title := titleStyle.Render("Countdown")
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", t.form.View()),
		)
	}

	switch t.stage {
	case stageCountdown:
		return t.viewCountdown(w)
	case stageResult:
		return t.viewResult(w)
	}
	return t.viewIdle(w)
}

func (t timerModel) viewIdle(w int) string {
	title := titleStyle.Render("Countdown")
	summary := fmt.Sprintf("%s min action  ·  %s min break  ·  %s sets",
		highlightStyle.Render(*t.actionMinutes),
		highlightStyle.Render(*t.breakMinutes),
		highlightStyle.Render(*t.sets),
	)
	hint := mutedStyle.Render("Press enter to set up a countdown")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Center, title, "", idleClockStyle.Width(w-6).Render("--:--"), "", summary, "", hint),
	)
}

func (t timerModel) viewCountdown(w int) string {
	phase, _ := t.snap.Current()
	clock := formatClock(t.snap.Remaining)

	timeDisplay := clockStyle(phase.Kind, t.paused()).Width(w - 6).Render(clock)
	var phaseLabel string
	switch {
	case t.paused():
		phaseLabel = warningStyle.Bold(true).Render("PAUSED")
	case phase.Kind == interval.Break:
		phaseLabel = successStyle.Bold(true).Render("BREAK")
	default:
		phaseLabel = accentStyle.Bold(true).Render("ACTION")
	}

	setLabel := mutedStyle.Render(fmt.Sprintf("Set %d/%d", min(t.snap.Cursor.Set+1, len(t.snap.Sets)), len(t.snap.Sets)))
	bar := t.progress.ViewAs(sessionProgress(t.snap))

	// Rows left for the set list after the countdown block and borders.
	capacity := max((t.height-16)/3, 1)
	list := t.renderSets(capacity)

	controls := mutedStyle.Render("space: pause/resume  x: stop")
	if t.paused() {
		controls = mutedStyle.Render("space: resume  x: stop")
	}

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Center,
			timeDisplay, phaseLabel, setLabel, "", bar, "",
			lipgloss.NewStyle().Width(w-6).Render(list), "", controls,
		),
	)
}

// renderSets lists the sets around the current one. Completed phases are
// struck through and the current phase is highlighted.
func (t timerModel) renderSets(capacity int) string {
	from, to := visibleSets(len(t.snap.Sets), t.snap.Cursor.Set, capacity)

	var rows []string
	for i := from; i < to; i++ {
		set := t.snap.Sets[i]
		header := fmt.Sprintf("Set %d", i+1)
		if set.Completed {
			rows = append(rows, successStyle.Render("✓ ")+donePhaseStyle.Render(header))
		} else {
			rows = append(rows, titleStyle.Render("  "+header))
		}

		for j, p := range set.Phases {
			line := fmt.Sprintf("%-7s %s", p.Kind, formatClock(p.DurationSeconds))
			cursor := interval.Cursor{Set: i, Phase: j}
			switch {
			case p.Completed:
				rows = append(rows, "    "+successStyle.Render("✓ ")+donePhaseStyle.Render(line))
			case cursor == t.snap.Cursor:
				rows = append(rows, "    "+currentPhaseStyle.Render("▶ "+line))
			default:
				rows = append(rows, "    "+normalItemStyle.Render("· "+line))
			}
		}
	}
	if from > 0 {
		rows = append([]string{mutedStyle.Render(fmt.Sprintf("  … %d earlier", from))}, rows...)
	}
	if to < len(t.snap.Sets) {
		rows = append(rows, mutedStyle.Render(fmt.Sprintf("  … %d more", len(t.snap.Sets)-to)))
	}
	return strings.Join(rows, "\n")
}

func (t timerModel) viewResult(w int) string {
	total := 0
	for _, set := range t.snap.Sets {
		for _, p := range set.Phases {
			total += p.DurationSeconds
		}
	}

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Center,
			congratsStyle.Render("Congratulations!"),
			"",
			titleStyle.Render("Countdown complete."),
			mutedStyle.Render(fmt.Sprintf("%d sets · %s", len(t.snap.Sets), formatClock(total))),
			"",
			mutedStyle.Render("enter: back"),
		),
	)
}

// visibleSets returns the window [from, to) of at most capacity sets that
// keeps current in view.
func visibleSets(total, current, capacity int) (int, int) {
	if capacity <= 0 || total <= capacity {
		return 0, total
	}
	current = max(0, min(current, total-1))
	from := current - capacity/2
	from = max(0, min(from, total-capacity))
	return from, from + capacity
}

// sessionProgress is the elapsed fraction of the whole session.
func sessionProgress(snap interval.Snapshot) float64 {
	total, elapsed := 0, 0
	for i, set := range snap.Sets {
		for j, p := range set.Phases {
			total += p.DurationSeconds
			switch {
			case p.Completed:
				elapsed += p.DurationSeconds
			case (interval.Cursor{Set: i, Phase: j}) == snap.Cursor:
				elapsed += p.DurationSeconds - snap.Remaining
			}
		}
	}
	if total == 0 {
		if snap.State == interval.StateFinished {
			return 1
		}
		return 0
	}
	return float64(elapsed) / float64(total)
}

// --- Input parsing ---

func parseMinutes(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("enter a number of minutes")
	}
	if v < 0 || v > interval.MaxMinutes {
		return 0, fmt.Errorf("must be between 0 and %d", interval.MaxMinutes)
	}
	return v, nil
}

func parseSets(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.New("enter a whole number of sets")
	}
	if n < interval.MinSets || n > interval.MaxSets {
		return 0, fmt.Errorf("must be between %d and %d", interval.MinSets, interval.MaxSets)
	}
	return n, nil
}

func parseConfig(action, brk, sets string) (interval.Config, error) {
	a, err := parseMinutes(action)
	if err != nil {
		return interval.Config{}, fmt.Errorf("action: %w", err)
	}
	b, err := parseMinutes(brk)
	if err != nil {
		return interval.Config{}, fmt.Errorf("break: %w", err)
	}
	n, err := parseSets(sets)
	if err != nil {
		return interval.Config{}, fmt.Errorf("sets: %w", err)
	}
	return interval.Config{ActionMinutes: a, BreakMinutes: b, Sets: n}, nil
}
