package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmill/internal/model"
)

func TestMigrate_CurrentVersionPassesThrough(t *testing.T) {
	data := []byte(`{
		"version": 1,
		"sources": {"main": {"id": "main", "path": "/srv/main", "queue": []}},
		"coordinator": {"source_order": ["main"], "current_source": null, "last_switch": null}
	}`)

	state, err := Migrate(1, data)
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, state.Coordinator.SourceOrder)
	assert.Contains(t, state.Sources, "main")
}

func TestMigrate_V0SynthesizesCoordinator(t *testing.T) {
	data := []byte(`{
		"sources": {
			"zeta": {"path": "/srv/zeta", "queue": [], "statistics": {"total_queued": 3, "total_completed": 2, "total_failed": 1}},
			"alpha": {"path": "/srv/alpha", "queue": [], "statistics": {"total_queued": 1}}
		},
		"updated_at": "2025-11-02T10:00:00Z"
	}`)

	state, err := Migrate(0, data)
	require.NoError(t, err)

	// Deterministic order for legacy documents: sorted ids.
	assert.Equal(t, []string{"alpha", "zeta"}, state.Coordinator.SourceOrder)
	assert.Nil(t, state.Coordinator.CurrentSource)

	// Ids are backfilled from map keys.
	assert.Equal(t, "zeta", state.Sources["zeta"].ID)

	assert.Equal(t, 4, state.GlobalStatistics.TotalQueued)
	assert.Equal(t, 2, state.GlobalStatistics.TotalCompleted)
	assert.Equal(t, 1, state.GlobalStatistics.TotalFailed)
	assert.Equal(t, "2025-11-02T10:00:00Z", state.UpdatedAt)
	assert.Equal(t, model.SchemaVersion, state.Version)
}

func TestMigrate_UnknownVersionRejected(t *testing.T) {
	_, err := Migrate(99, []byte(`{"version": 99}`))
	require.Error(t, err)
}
