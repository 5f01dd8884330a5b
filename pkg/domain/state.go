package domain

// Status is the execution status of a single node within a run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running" // Adapter in flight, or trigger armed and waiting
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Snapshot is the read-only execution projection consumed by user interfaces.
type Snapshot struct {
	// IsRunning is the global run flag.
	IsRunning bool `json:"isRunning"`

	// NodeExecutionState maps node IDs to their current status.
	NodeExecutionState map[string]Status `json:"nodeExecutionState"`

	// NodeResults maps node IDs to the last adapter output.
	// Long-running handles are projected by their description, never by reference.
	NodeResults map[string]any `json:"nodeResults"`

	// NodeErrors holds the message of the last failure per node.
	NodeErrors map[string]string `json:"nodeErrors,omitempty"`
}

// NewSnapshot returns an empty, idle projection.
func NewSnapshot() Snapshot {
	return Snapshot{
		NodeExecutionState: make(map[string]Status),
		NodeResults:        make(map[string]any),
		NodeErrors:         make(map[string]string),
	}
}

// Status returns the status of a node, or StatusPending when it has none yet.
func (s Snapshot) Status(nodeID string) Status {
	if st, ok := s.NodeExecutionState[nodeID]; ok {
		return st
	}
	return StatusPending
}
