// Package coordinator implements the strict forward round-robin that picks
// which source may dispatch its next task. It is pure scheduling logic: the
// functions take the persisted cursor by value and return the updated one,
// with no I/O and no clock beyond the caller-supplied timestamp.
//
// The policy deliberately always advances past the current source, even when
// that source still has pending work. Draining a source before switching
// would starve later sources; moving forward guarantees fairness.
package coordinator

import "taskmill/internal/model"

// Next returns the id of the next eligible source and the advanced cursor.
// pending holds the ids of sources that currently have dispatchable work.
// ok is false when no source is eligible; the cursor is returned unchanged
// in that case.
func Next(cs model.CoordinatorState, pending map[string]bool, now string) (id string, updated model.CoordinatorState, ok bool) {
	order := cs.SourceOrder
	if len(order) == 0 || len(pending) == 0 {
		return "", cs, false
	}

	start := 0
	if cs.CurrentSource != nil {
		if idx := indexOf(order, *cs.CurrentSource); idx >= 0 {
			start = idx + 1
		}
	}

	// Scan strictly after the cursor, then wrap to the beginning. The wrap
	// may land back on the current source; that is correct when it is the
	// only one with pending work.
	for i := 0; i < len(order); i++ {
		candidate := order[(start+i)%len(order)]
		if pending[candidate] {
			cs.CurrentSource = &candidate
			cs.LastSwitch = &now
			return candidate, cs, true
		}
	}
	return "", cs, false
}

// AddSource appends a source to the stable order, preserving the fairness
// ordering already observed by existing sources. Adding a known id is a
// no-op.
func AddSource(cs model.CoordinatorState, id string) model.CoordinatorState {
	if indexOf(cs.SourceOrder, id) >= 0 {
		return cs
	}
	cs.SourceOrder = append(append([]string(nil), cs.SourceOrder...), id)
	return cs
}

// RemoveSource drops a source from the order. If it was the current cursor,
// the cursor resets to none.
func RemoveSource(cs model.CoordinatorState, id string) model.CoordinatorState {
	idx := indexOf(cs.SourceOrder, id)
	if idx < 0 {
		return cs
	}
	order := make([]string, 0, len(cs.SourceOrder)-1)
	order = append(order, cs.SourceOrder[:idx]...)
	order = append(order, cs.SourceOrder[idx+1:]...)
	cs.SourceOrder = order

	if cs.CurrentSource != nil && *cs.CurrentSource == id {
		cs.CurrentSource = nil
	}
	return cs
}

func indexOf(order []string, id string) int {
	for i, s := range order {
		if s == id {
			return i
		}
	}
	return -1
}
