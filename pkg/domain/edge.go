package domain

// Default visual attributes of edges created by the graph store.
const (
	EdgeRenderType = "smoothstep"
)

// Edge is a directed connection between two nodes.
// Handles are optional; a nil handle only matches another nil handle.
type Edge struct {
	ID           string  `json:"id" yaml:"id"`
	Source       string  `json:"source" yaml:"source"`
	Target       string  `json:"target" yaml:"target"`
	SourceHandle *string `json:"sourceHandle" yaml:"sourceHandle"`
	TargetHandle *string `json:"targetHandle" yaml:"targetHandle"`
	Type         string  `json:"type,omitempty" yaml:"type,omitempty"`
	Animated     bool    `json:"animated,omitempty" yaml:"animated,omitempty"`
}

// ConnectParams describes a new connection requested by the user.
type ConnectParams struct {
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	SourceHandle *string `json:"sourceHandle"`
	TargetHandle *string `json:"targetHandle"`
}

// Connects reports whether the edge carries exactly the given connection tuple.
func (e Edge) Connects(p ConnectParams) bool {
	return e.Source == p.Source &&
		e.Target == p.Target &&
		sameHandle(e.SourceHandle, p.SourceHandle) &&
		sameHandle(e.TargetHandle, p.TargetHandle)
}

// References reports whether the edge touches the node as source or target.
func (e Edge) References(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// Clone returns a copy of the edge that shares no handle pointers.
func (e Edge) Clone() Edge {
	e.SourceHandle = cloneHandle(e.SourceHandle)
	e.TargetHandle = cloneHandle(e.TargetHandle)
	return e
}

func sameHandle(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneHandle(h *string) *string {
	if h == nil {
		return nil
	}
	v := *h
	return &v
}
