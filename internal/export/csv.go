package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sadopc/dong/internal/store"
)

var csvHeader = []string{"ID", "Session", "Status", "Started", "Ended", "Action (s)", "Break (s)", "Sets", "Completed Sets", "Planned"}

// ToCSV writes one row per run.
func ToCSV(runs []store.Run, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range runs {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.UID,
			r.Status,
			r.StartedAt.Local().Format(time.RFC3339),
			formatEnd(r.EndedAt),
			strconv.Itoa(r.ActionSeconds),
			strconv.Itoa(r.BreakSeconds),
			strconv.Itoa(r.SetCount),
			strconv.Itoa(r.CompletedSets),
			formatDuration(r.Duration()),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatEnd(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format(time.RFC3339)
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
