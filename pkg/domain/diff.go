package domain

import (
	"reflect"
)

// SnapshotDiff represents the changes between two execution projections.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// IsRunning is set when the global run flag flipped.
	IsRunning *bool `json:"isRunning,omitempty"`

	// Statuses contains changed or added node statuses.
	// Nodes that disappeared from the projection are reported as pending.
	Statuses map[string]Status `json:"nodeExecutionState,omitempty"`

	// Results contains changed, added or deleted results.
	// For deletions, the key is present with a nil value.
	Results map[string]any `json:"nodeResults,omitempty"`

	// Errors contains new or changed error messages.
	Errors map[string]string `json:"nodeErrors,omitempty"`
}

// Diff calculates the difference between two snapshots.
// If old is nil, it returns a diff representing the entire new snapshot (initial load).
// It returns nil when nothing changed.
func Diff(old *Snapshot, new Snapshot) *SnapshotDiff {
	diff := &SnapshotDiff{}

	if old == nil || old.IsRunning != new.IsRunning {
		running := new.IsRunning
		diff.IsRunning = &running
	}

	diff.Statuses = diffStatuses(old, new)
	diff.Results = diffResults(old, new)
	diff.Errors = diffErrors(old, new)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffStatuses(old *Snapshot, new Snapshot) map[string]Status {
	delta := make(map[string]Status)
	for id, st := range new.NodeExecutionState {
		if old == nil || old.NodeExecutionState[id] != st {
			delta[id] = st
		}
	}
	if old != nil {
		for id := range old.NodeExecutionState {
			if _, exists := new.NodeExecutionState[id]; !exists {
				delta[id] = StatusPending
			}
		}
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}

func diffResults(old *Snapshot, new Snapshot) map[string]any {
	delta := make(map[string]any)
	for id, v := range new.NodeResults {
		if old == nil {
			delta[id] = v
			continue
		}
		prev, exists := old.NodeResults[id]
		if !exists || !reflect.DeepEqual(prev, v) {
			delta[id] = v
		}
	}
	if old != nil {
		for id := range old.NodeResults {
			if _, exists := new.NodeResults[id]; !exists {
				delta[id] = nil
			}
		}
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}

func diffErrors(old *Snapshot, new Snapshot) map[string]string {
	delta := make(map[string]string)
	for id, msg := range new.NodeErrors {
		if old == nil || old.NodeErrors[id] != msg {
			delta[id] = msg
		}
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d.IsRunning == nil &&
		len(d.Statuses) == 0 &&
		len(d.Results) == 0 &&
		len(d.Errors) == 0
}
