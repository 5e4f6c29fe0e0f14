package usage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordAndSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	tracker, err := NewTracker(path)
	require.NoError(t, err)

	tracker.Record("gpt-4o", "electricity-hourly", 1000, 200, 0.05)
	tracker.Record("gpt-4o", "traffic-daily", 500, 100, 0.02)
	tracker.Record("llama-3.1-405b-instruct", "electricity-hourly", 300, 50, -1)

	snap := tracker.Snapshot()

	assert.Equal(t, int64(1800), snap.Total.Input)
	assert.Equal(t, int64(350), snap.Total.Output)
	assert.Equal(t, int64(2150), snap.Total.Total)
	// Negative cost marks unpriced models and must not subtract.
	assert.InDelta(t, 0.07, snap.Total.Cost, 1e-9)

	require.Contains(t, snap.ByModel, "gpt-4o")
	assert.Equal(t, int64(1500), snap.ByModel["gpt-4o"].Input)
	assert.InDelta(t, 0.07, snap.ByModel["gpt-4o"].Cost, 1e-9)

	require.Contains(t, snap.ByModel, "llama-3.1-405b-instruct")
	assert.Equal(t, float64(0), snap.ByModel["llama-3.1-405b-instruct"].Cost)

	require.Contains(t, snap.ByTask, "electricity-hourly")
	assert.Equal(t, int64(1300), snap.ByTask["electricity-hourly"].Input)
}

func TestTrackerSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	tracker, err := NewTracker(path)
	require.NoError(t, err)

	tracker.Record("gpt-4o", "electricity-hourly", 1000, 200, 0.05)
	require.NoError(t, tracker.Save())

	reloaded, err := NewTracker(path)
	require.NoError(t, err)

	snap := reloaded.Snapshot()
	assert.Equal(t, int64(1000), snap.Total.Input)
	assert.Equal(t, int64(200), snap.Total.Output)
	assert.InDelta(t, 0.05, snap.Total.Cost, 1e-9)
	require.Contains(t, snap.ByModel, "gpt-4o")
}

func TestTrackerMissingFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "usage.json")
	tracker, err := NewTracker(path)
	require.NoError(t, err)

	snap := tracker.Snapshot()
	assert.Equal(t, int64(0), snap.Total.Total)
	assert.Empty(t, snap.ByModel)
}
