package store

import (
	"fmt"
	"strconv"

	"github.com/sadopc/dong/internal/interval"
)

// Setting keys for the timer defaults.
const (
	KeyActionMinutes = "action_minutes"
	KeyBreakMinutes  = "break_minutes"
	KeySets          = "sets"
)

// DefaultTimerConfig matches the seeded settings rows.
var DefaultTimerConfig = interval.Config{ActionMinutes: 0.1, BreakMinutes: 0.2, Sets: 2}

func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

func (s *Store) GetAllSettings() ([]Setting, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// TimerDefaults reads the last used timer configuration. Missing or
// malformed values fall back to DefaultTimerConfig field by field.
func (s *Store) TimerDefaults() interval.Config {
	cfg := DefaultTimerConfig
	if v, err := s.GetSetting(KeyActionMinutes); err == nil {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ActionMinutes = f
		}
	}
	if v, err := s.GetSetting(KeyBreakMinutes); err == nil {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.BreakMinutes = f
		}
	}
	if v, err := s.GetSetting(KeySets); err == nil {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sets = n
		}
	}
	return cfg
}

func (s *Store) SaveTimerDefaults(cfg interval.Config) error {
	values := map[string]string{
		KeyActionMinutes: strconv.FormatFloat(cfg.ActionMinutes, 'f', -1, 64),
		KeyBreakMinutes:  strconv.FormatFloat(cfg.BreakMinutes, 'f', -1, 64),
		KeySets:          strconv.Itoa(cfg.Sets),
	}
	for k, v := range values {
		if err := s.SetSetting(k, v); err != nil {
			return fmt.Errorf("save setting %q: %w", k, err)
		}
	}
	return nil
}
