package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"taskmill/internal/model"
)

// Migrate converts a persisted document of any known schema version to the
// current one. It is a pure function of the raw bytes.
func Migrate(version int, data []byte) (*model.QueueState, error) {
	switch version {
	case model.SchemaVersion:
		var state model.QueueState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("parse state v%d: %w", version, err)
		}
		if state.Sources == nil {
			state.Sources = make(map[string]*model.SourceState)
		}
		return &state, nil
	case 0:
		return migrateV0(data)
	default:
		return nil, fmt.Errorf("unsupported state schema version %d", version)
	}
}

// v0 documents predate the coordinator block: a bare map of sources. The
// scheduling cursor is synthesized with a deterministic source order.
type stateV0 struct {
	Sources   map[string]*model.SourceState `json:"sources"`
	UpdatedAt string                        `json:"updated_at"`
}

func migrateV0(data []byte) (*model.QueueState, error) {
	var old stateV0
	if err := json.Unmarshal(data, &old); err != nil {
		return nil, fmt.Errorf("parse state v0: %w", err)
	}

	state := model.NewQueueState()
	state.UpdatedAt = old.UpdatedAt

	order := make([]string, 0, len(old.Sources))
	for id, src := range old.Sources {
		if src == nil {
			continue
		}
		if src.ID == "" {
			src.ID = id
		}
		state.Sources[id] = src
		order = append(order, id)

		state.GlobalStatistics.TotalQueued += src.Statistics.TotalQueued
		state.GlobalStatistics.TotalCompleted += src.Statistics.TotalCompleted
		state.GlobalStatistics.TotalFailed += src.Statistics.TotalFailed
	}
	sort.Strings(order)
	state.Coordinator.SourceOrder = order

	return state, nil
}
