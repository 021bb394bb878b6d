package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// tickMsg is one second of countdown time. gen ties it to the driver
// activation that scheduled it.
type tickMsg struct {
	gen int
}

// teaDriver feeds a sequencer from the bubbletea loop. Every activation and
// every release bumps gen, so a tick already in flight when the countdown is
// paused or stopped is recognised as stale and dropped.
type teaDriver struct {
	interval time.Duration
	gen      int
	active   bool
	pending  bool
}

func newTeaDriver(interval time.Duration) *teaDriver {
	return &teaDriver{interval: interval}
}

func (d *teaDriver) Start() func() {
	d.gen++
	d.active = true
	d.pending = true
	gen := d.gen
	return func() {
		if d.gen != gen {
			return
		}
		d.gen++
		d.active = false
		d.pending = false
	}
}

// next returns the command for the next tick, or nil when none is due.
func (d *teaDriver) next() tea.Cmd {
	if !d.pending {
		return nil
	}
	d.pending = false
	gen := d.gen
	return tea.Tick(d.interval, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

// accept reports whether msg belongs to the live activation and, if so,
// arms the next tick.
func (d *teaDriver) accept(msg tickMsg) bool {
	if !d.active || msg.gen != d.gen {
		return false
	}
	d.pending = true
	return true
}
