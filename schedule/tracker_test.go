package schedule

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func newTestTracker(t *testing.T, now time.Time) *Tracker {
	t.Helper()
	path := filepath.Join(t.TempDir(), "last_run.json")
	return NewTracker(path, DefaultMinDays, arbor.NewNoOpLogger()).WithClock(func() time.Time { return now })
}

func writeState(t *testing.T, path, lastRun string) {
	t.Helper()
	data, err := json.Marshal(RunState{LastRun: lastRun})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestElapsedDays(t *testing.T) {
	now := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		state string // "" means no file
		want  int
	}{
		{"no state", "", 5},
		{"two days ago", now.Add(-48 * time.Hour).Format(time.RFC3339), 5},
		{"nine days ago", now.Add(-9 * 24 * time.Hour).Format(time.RFC3339), 9},
		{"nine and a half days", now.Add(-(9*24 + 12) * time.Hour).Format(time.RFC3339), 9},
		{"in the future", now.Add(24 * time.Hour).Format(time.RFC3339), 5},
		{"garbage timestamp", "last tuesday", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(t, now)
			if tt.state != "" {
				writeState(t, tr.Path(), tt.state)
			}
			assert.Equal(t, tt.want, tr.ElapsedDays())
		})
	}
}

func TestElapsedDaysAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		last time.Time
		now  time.Time
		want int
	}{
		// clocks sprang forward on 2024-03-10, so only 215 real hours passed
		{"spring forward", time.Date(2024, 3, 5, 9, 0, 0, 0, ny), time.Date(2024, 3, 14, 9, 0, 0, 0, ny), 9},
		{"fall back", time.Date(2024, 10, 30, 9, 0, 0, 0, ny), time.Date(2024, 11, 8, 9, 0, 0, 0, ny), 9},
		{"just short of a day", time.Date(2024, 3, 5, 9, 0, 0, 0, ny), time.Date(2024, 3, 14, 8, 59, 0, 0, ny), 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(t, tt.now)
			writeState(t, tr.Path(), tt.last.Format(time.RFC3339Nano))
			assert.Equal(t, tt.want, tr.ElapsedDays())
		})
	}
}

func TestElapsedDaysCorruptFile(t *testing.T) {
	tr := newTestTracker(t, time.Now())
	require.NoError(t, os.WriteFile(tr.Path(), []byte("{not json"), 0o644))

	assert.Equal(t, DefaultMinDays, tr.ElapsedDays())
	_, ok := tr.LastRun()
	assert.False(t, ok)
}

func TestRecordSuccessfulRun(t *testing.T) {
	now := time.Date(2024, 3, 20, 9, 30, 0, 0, time.UTC)
	tr := newTestTracker(t, now.Add(12*24*time.Hour))

	require.NoError(t, tr.RecordSuccessfulRun(now))

	last, ok := tr.LastRun()
	require.True(t, ok)
	assert.True(t, now.Equal(last))
	assert.Equal(t, 12, tr.ElapsedDays())

	data, err := os.ReadFile(tr.Path())
	require.NoError(t, err)
	var st RunState
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, now.Format(time.RFC3339Nano), st.LastRun)

	entries, err := os.ReadDir(filepath.Dir(tr.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestRecordCreatesStateDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state", "last_run.json")
	tr := NewTracker(path, 0, arbor.NewNoOpLogger())

	require.NoError(t, tr.RecordSuccessfulRun(time.Now()))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestLastRunAcceptsNaiveTimestamps(t *testing.T) {
	tr := newTestTracker(t, time.Now())

	writeState(t, tr.Path(), "2024-01-15T10:30:00.123456")
	last, ok := tr.LastRun()
	require.True(t, ok)
	assert.True(t, time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.Local).Equal(last))

	writeState(t, tr.Path(), "2024-01-15T10:30:00")
	last, ok = tr.LastRun()
	require.True(t, ok)
	assert.True(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local).Equal(last))
}
