// Package schedule keeps the durable last-run state and drives periodic runs.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
)

// DefaultMinDays is the floor applied to the reported interval.
const DefaultMinDays = 5

// RunState is the on-disk record of the last fully successful run.
type RunState struct {
	LastRun string `json:"last_run"`
}

// accepted timestamp layouts, newest format first; the naive ones are read as local time
var lastRunLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

type Tracker struct {
	path    string
	minDays int
	now     func() time.Time
	logger  arbor.ILogger
}

func NewTracker(path string, minDays int, logger arbor.ILogger) *Tracker {
	if minDays <= 0 {
		minDays = DefaultMinDays
	}
	return &Tracker{path: path, minDays: minDays, now: time.Now, logger: logger}
}

// WithClock replaces the time source, for tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func (t *Tracker) Path() string { return t.path }

// LastRun returns the recorded timestamp. ok is false when the state file is
// missing or cannot be read.
func (t *Tracker) LastRun() (time.Time, bool) {
	ts, err := t.read()
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// ElapsedDays returns the whole days since the last successful run, never less
// than the floor. Missing or unreadable state reports the floor.
func (t *Tracker) ElapsedDays() int {
	last, err := t.read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			t.logger.Warn().Str("path", t.path).Msg("No previous run recorded, using minimum interval")
		} else {
			t.logger.Warn().Err(err).Str("path", t.path).Msg("Run state unreadable, using minimum interval")
		}
		return t.minDays
	}
	return max(wallDays(last, t.now()), t.minDays)
}

// wallDays counts whole days between the wall-clock readings of last and now in
// now's zone, so a DST shift inside the interval does not cost a day.
func wallDays(last, now time.Time) int {
	last = last.In(now.Location())
	return int(asUTC(now).Sub(asUTC(last)).Hours() / 24)
}

func asUTC(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.UTC)
}

// RecordSuccessfulRun overwrites the state with now. The write goes to a temp
// file first so a crash never leaves a half-written record.
func (t *Tracker) RecordSuccessfulRun(now time.Time) error {
	data, err := json.MarshalIndent(RunState{LastRun: now.Format(time.RFC3339Nano)}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".last_run-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		return fmt.Errorf("replace state %s: %w", t.path, err)
	}

	t.logger.Info().Str("path", t.path).Str("last_run", now.Format(time.RFC3339)).Msg("Run state recorded")
	return nil
}

func (t *Tracker) read() (time.Time, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return time.Time{}, err
	}
	var st RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return time.Time{}, fmt.Errorf("decode run state: %w", err)
	}
	if st.LastRun == "" {
		return time.Time{}, errors.New("run state has no last_run")
	}
	for _, layout := range lastRunLayouts {
		var ts time.Time
		if layout == time.RFC3339Nano {
			ts, err = time.Parse(layout, st.LastRun)
		} else {
			ts, err = time.ParseInLocation(layout, st.LastRun, time.Local)
		}
		if err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse last_run %q: %w", st.LastRun, err)
}
