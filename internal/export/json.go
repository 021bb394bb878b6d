package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/dong/internal/store"
)

type jsonExport struct {
	ExportedAt string    `json:"exported_at"`
	Count      int       `json:"count"`
	Runs       []jsonRun `json:"runs"`
}

type jsonRun struct {
	ID            int64  `json:"id"`
	Session       string `json:"session"`
	Status        string `json:"status"`
	StartedAt     string `json:"started_at"`
	EndedAt       string `json:"ended_at,omitempty"`
	ActionSeconds int    `json:"action_seconds"`
	BreakSeconds  int    `json:"break_seconds"`
	Sets          int    `json:"sets"`
	CompletedSets int    `json:"completed_sets"`
	PlannedSec    int64  `json:"planned_seconds"`
	Planned       string `json:"planned"`
}

// ToJSON writes runs as an indented JSON document.
func ToJSON(runs []store.Run, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(runs),
	}

	for _, r := range runs {
		export.Runs = append(export.Runs, jsonRun{
			ID:            r.ID,
			Session:       r.UID,
			Status:        r.Status,
			StartedAt:     r.StartedAt.Local().Format(time.RFC3339),
			EndedAt:       formatEnd(r.EndedAt),
			ActionSeconds: r.ActionSeconds,
			BreakSeconds:  r.BreakSeconds,
			Sets:          r.SetCount,
			CompletedSets: r.CompletedSets,
			PlannedSec:    r.Duration(),
			Planned:       formatDuration(r.Duration()),
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
