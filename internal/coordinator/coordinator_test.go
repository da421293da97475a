package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmill/internal/model"
)

const now = "2026-01-15T09:00:00Z"

func dispatch(t *testing.T, cs model.CoordinatorState, pending map[string]bool) (string, model.CoordinatorState) {
	t.Helper()
	id, updated, ok := Next(cs, pending, now)
	require.True(t, ok, "expected an eligible source")
	return id, updated
}

func TestNext_FirstDispatchPicksFirstPending(t *testing.T) {
	cs := model.CoordinatorState{SourceOrder: []string{"main", "aux"}}

	id, updated, ok := Next(cs, map[string]bool{"main": true, "aux": true}, now)
	require.True(t, ok)
	assert.Equal(t, "main", id)
	require.NotNil(t, updated.CurrentSource)
	assert.Equal(t, "main", *updated.CurrentSource)
	require.NotNil(t, updated.LastSwitch)
	assert.Equal(t, now, *updated.LastSwitch)
}

func TestNext_AlwaysAdvancesEvenIfCurrentStillPending(t *testing.T) {
	// A has 2 pending, B has 1: dispatches must go A, B, A, none.
	cs := model.CoordinatorState{SourceOrder: []string{"A", "B"}}

	id, cs := dispatch(t, cs, map[string]bool{"A": true, "B": true})
	assert.Equal(t, "A", id)

	// A still has pending work, but the scheduler moves forward.
	id, cs = dispatch(t, cs, map[string]bool{"A": true, "B": true})
	assert.Equal(t, "B", id)

	id, cs = dispatch(t, cs, map[string]bool{"A": true})
	assert.Equal(t, "A", id)

	_, _, ok := Next(cs, map[string]bool{}, now)
	assert.False(t, ok)
}

func TestNext_WrapsPastEnd(t *testing.T) {
	cur := "c"
	cs := model.CoordinatorState{
		SourceOrder:   []string{"a", "b", "c"},
		CurrentSource: &cur,
	}

	id, _, ok := Next(cs, map[string]bool{"a": true}, now)
	require.True(t, ok)
	assert.Equal(t, "a", id)
}

func TestNext_WrapCanLandOnCurrent(t *testing.T) {
	cur := "a"
	cs := model.CoordinatorState{
		SourceOrder:   []string{"a", "b"},
		CurrentSource: &cur,
	}

	// Only the current source has pending work; it is dispatched again.
	id, _, ok := Next(cs, map[string]bool{"a": true}, now)
	require.True(t, ok)
	assert.Equal(t, "a", id)
}

func TestNext_NoEligibleSource(t *testing.T) {
	cs := model.CoordinatorState{SourceOrder: []string{"a", "b"}}

	_, updated, ok := Next(cs, map[string]bool{}, now)
	assert.False(t, ok)
	assert.Nil(t, updated.CurrentSource)

	_, _, ok = Next(model.CoordinatorState{}, map[string]bool{"a": true}, now)
	assert.False(t, ok)
}

func TestNext_StaleCursorFallsBackToStart(t *testing.T) {
	// Cursor points at a source that was removed without RemoveSource
	// (e.g. hand-edited state); scanning starts from the beginning.
	gone := "gone"
	cs := model.CoordinatorState{
		SourceOrder:   []string{"a", "b"},
		CurrentSource: &gone,
	}

	id, _, ok := Next(cs, map[string]bool{"b": true}, now)
	require.True(t, ok)
	assert.Equal(t, "b", id)
}

func TestAddSource_AppendsOnceAtEnd(t *testing.T) {
	cs := model.CoordinatorState{SourceOrder: []string{"a"}}
	cs = AddSource(cs, "b")
	cs = AddSource(cs, "b")
	assert.Equal(t, []string{"a", "b"}, cs.SourceOrder)
}

func TestRemoveSource(t *testing.T) {
	cur := "b"
	cs := model.CoordinatorState{
		SourceOrder:   []string{"a", "b", "c"},
		CurrentSource: &cur,
	}

	cs = RemoveSource(cs, "b")
	assert.Equal(t, []string{"a", "c"}, cs.SourceOrder)
	assert.Nil(t, cs.CurrentSource, "cursor resets when current source is removed")

	cs = RemoveSource(cs, "missing")
	assert.Equal(t, []string{"a", "c"}, cs.SourceOrder)
}

func TestRoundRobin_EndToEndSequence(t *testing.T) {
	// sourceOrder=[main,aux]; main has m1, m2; aux has a1.
	cs := model.CoordinatorState{SourceOrder: []string{"main", "aux"}}
	pendingCounts := map[string]int{"main": 2, "aux": 1}
	pendingSet := func() map[string]bool {
		set := make(map[string]bool)
		for id, n := range pendingCounts {
			if n > 0 {
				set[id] = true
			}
		}
		return set
	}

	var order []string
	for {
		id, updated, ok := Next(cs, pendingSet(), now)
		if !ok {
			break
		}
		cs = updated
		order = append(order, id)
		pendingCounts[id]--
	}

	assert.Equal(t, []string{"main", "aux", "main"}, order)
	require.NotNil(t, cs.CurrentSource)
	assert.Equal(t, "main", *cs.CurrentSource)
}
