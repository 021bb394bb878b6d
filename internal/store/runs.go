package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sadopc/dong/internal/interval"
)

const runColumns = `id, uid, action_seconds, break_seconds, set_count, completed_sets, status, started_at, ended_at`

// StartRun records the start of a session.
func (s *Store) StartRun(session *interval.Session) (*Run, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(
		`INSERT INTO runs (uid, action_seconds, break_seconds, set_count, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.ActionSeconds, session.BreakSeconds, len(session.Sets), RunRunning, now,
	)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetRun(id)
}

func (s *Store) GetRun(id int64) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A limit of 0 returns all.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// RecordEvent applies a sequencer event to the run row. Events that do not
// change history are ignored.
func (s *Store) RecordEvent(runID int64, ev interval.Event) error {
	switch ev.Type {
	case interval.EventPhaseCompleted:
		sets := ev.Snapshot.Sets
		if ev.Cursor.Set >= len(sets) || !sets[ev.Cursor.Set].Completed {
			return nil
		}
		return s.setCompletedSets(runID, completedSets(sets))
	case interval.EventFinished:
		return s.endRun(runID, RunFinished, completedSets(ev.Snapshot.Sets))
	case interval.EventStopped:
		return s.endRun(runID, RunStopped, completedSets(ev.Snapshot.Sets))
	}
	return nil
}

func (s *Store) setCompletedSets(id int64, n int) error {
	_, err := s.db.Exec(`UPDATE runs SET completed_sets = ? WHERE id = ?`, n, id)
	if err != nil {
		return fmt.Errorf("update run %d: %w", id, err)
	}
	return nil
}

func (s *Store) endRun(id int64, status string, n int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_sets = ?, ended_at = ? WHERE id = ? AND status = ?`,
		status, n, now, id, RunRunning,
	)
	if err != nil {
		return fmt.Errorf("end run %d: %w", id, err)
	}
	return nil
}

// GetDailyRunSummary aggregates runs started in [from, to) per day.
func (s *Store) GetDailyRunSummary(from, to time.Time) ([]DailySummary, error) {
	rows, err := s.db.Query(`
		SELECT date(started_at) AS day,
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'finished' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(completed_sets), 0),
		       COALESCE(SUM(completed_sets * action_seconds), 0)
		FROM runs
		WHERE started_at >= ? AND started_at < ?
		GROUP BY day
		ORDER BY day`,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("daily summary: %w", err)
	}
	defer rows.Close()

	var summaries []DailySummary
	for rows.Next() {
		var ds DailySummary
		if err := rows.Scan(&ds.Date, &ds.Runs, &ds.FinishedRuns, &ds.CompletedSets, &ds.ActionSeconds); err != nil {
			return nil, err
		}
		summaries = append(summaries, ds)
	}
	return summaries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	r := &Run{}
	var startedAt string
	var endedAt sql.NullString
	err := sc.Scan(&r.ID, &r.UID, &r.ActionSeconds, &r.BreakSeconds, &r.SetCount,
		&r.CompletedSets, &r.Status, &startedAt, &endedAt)
	if err != nil {
		return nil, err
	}
	r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if endedAt.Valid {
		t, _ := time.Parse(time.RFC3339, endedAt.String)
		r.EndedAt = &t
	}
	return r, nil
}

func completedSets(sets []interval.Set) int {
	n := 0
	for _, set := range sets {
		if set.Completed {
			n++
		}
	}
	return n
}
