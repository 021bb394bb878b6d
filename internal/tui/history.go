package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/dong/internal/store"
)

const recentRuns = 8

type historyModel struct {
	store  *store.Store
	width  int
	height int

	summaries []store.DailySummary
	runs      []store.Run
	offset    int // 7-day blocks back from today (0 = current)

	chart barchart.Model
}

func newHistoryModel(s *store.Store) historyModel {
	return historyModel{
		store: s,
		chart: barchart.New(60, 10),
	}
}

func (h *historyModel) setSize(w, height int) {
	h.width = w
	h.height = height
	h.buildChart()
}

type historyDataMsg struct {
	summaries []store.DailySummary
	runs      []store.Run
}

func (h historyModel) refresh() tea.Cmd {
	return func() tea.Msg {
		from, to := h.dateRange()
		summaries, _ := h.store.GetDailyRunSummary(from, to)
		runs, _ := h.store.ListRuns(recentRuns)
		return historyDataMsg{summaries: summaries, runs: runs}
	}
}

// dateRange covers the 7 days ending today, shifted back by offset weeks.
func (h historyModel) dateRange() (time.Time, time.Time) {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := today.AddDate(0, 0, 1-7*h.offset)
	return end.AddDate(0, 0, -7), end
}

func (h historyModel) update(msg tea.Msg) (historyModel, tea.Cmd) {
	switch msg := msg.(type) {
	case historyDataMsg:
		h.summaries = msg.summaries
		h.runs = msg.runs
		h.buildChart()
		return h, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			h.offset++
			return h, h.refresh()
		case key.Matches(msg, keys.Right):
			if h.offset > 0 {
				h.offset--
			}
			return h, h.refresh()
		}
	}
	return h, nil
}

func (h *historyModel) buildChart() {
	chartWidth := max(h.width-8, 20)
	chartHeight := 10
	if h.height > 30 {
		chartHeight = 14
	}

	h.chart = barchart.New(chartWidth, chartHeight)

	from, to := h.dateRange()
	byDate := make(map[string]store.DailySummary, len(h.summaries))
	for _, s := range h.summaries {
		byDate[s.Date] = s
	}

	var bars []barchart.BarData
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		s := byDate[d.Format("2006-01-02")]
		bars = append(bars, barchart.BarData{
			Label: d.Format("Mon 02"),
			Values: []barchart.BarValue{{
				Name:  "sets",
				Value: float64(s.CompletedSets),
				Style: lipgloss.NewStyle().Foreground(colorPrimary),
			}},
		})
	}

	h.chart.PushAll(bars)
	h.chart.Draw()
}

func (h historyModel) view() string {
	w := h.width - 4

	from, to := h.dateRange()
	dateLabel := mutedStyle.Render(fmt.Sprintf("%s to %s", from.Format("Jan 02"), to.Add(-24*time.Hour).Format("Jan 02, 2006")))
	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("History"), "  ", subtitleStyle.Render("sets completed per day"), "  ", dateLabel,
	)

	totals := h.renderTotals()
	table := h.renderRunsTable(w)
	nav := mutedStyle.Render("  ←/→: navigate  e: export")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", h.chart.View(), "", totals, "", table, "", nav,
		),
	)
}

func (h historyModel) renderTotals() string {
	var runs, finished, sets int
	var action int64
	for _, s := range h.summaries {
		runs += s.Runs
		finished += s.FinishedRuns
		sets += s.CompletedSets
		action += s.ActionSeconds
	}
	return fmt.Sprintf("  %s runs  %s finished  %s sets  %s action",
		highlightStyle.Render(fmt.Sprint(runs)),
		successStyle.Render(fmt.Sprint(finished)),
		highlightStyle.Render(fmt.Sprint(sets)),
		highlightStyle.Render(formatSeconds(action)),
	)
}

func (h historyModel) renderRunsTable(w int) string {
	if len(h.runs) == 0 {
		return mutedStyle.Render("  No runs yet")
	}

	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-17s %-9s %7s %7s %6s %9s", "Started", "Status", "Action", "Break", "Sets", "Planned")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 60))))

	for _, r := range h.runs {
		status := r.Status
		switch r.Status {
		case store.RunFinished:
			status = successStyle.Render(fmt.Sprintf("%-9s", status))
		case store.RunStopped:
			status = warningStyle.Render(fmt.Sprintf("%-9s", status))
		default:
			status = accentStyle.Render(fmt.Sprintf("%-9s", status))
		}
		rows = append(rows, fmt.Sprintf("  %-17s %s %7s %7s %6s %9s",
			r.StartedAt.Local().Format("Jan 02 15:04"),
			status,
			formatClock(r.ActionSeconds),
			formatClock(r.BreakSeconds),
			fmt.Sprintf("%d/%d", r.CompletedSets, r.SetCount),
			formatSeconds(r.Duration()),
		))
	}

	return strings.Join(rows, "\n")
}
