package domain

// NodeRenderType is the canvas render type assigned to every node created by the graph store.
const NodeRenderType = "customNode"

// Executable node types known to the default catalog.
const (
	TypeTelegramReceive = "telegram-receive"
	TypeTelegramSend    = "telegram"
	TypeArweaveUpload   = "arweave-upload"
	TypeDelay           = "delay"
)

// Position is a 2D canvas coordinate.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// NodeData is the user-facing configuration of a node.
// Type is the executable node type; it selects the capability adapter.
type NodeData struct {
	Label       string         `json:"label" yaml:"label"`
	Type        string         `json:"type" yaml:"type"`
	Icon        string         `json:"icon" yaml:"icon"`
	Description string         `json:"description" yaml:"description"`
	Config      map[string]any `json:"config" yaml:"config"`
}

// Clone returns a deep copy of the node data.
func (d NodeData) Clone() NodeData {
	d.Config = CloneConfig(d.Config)
	return d
}

// Node represents a logical unit in the graph.
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	Type     string   `json:"type" yaml:"type"` // canvas render type, e.g. "customNode"
	Position Position `json:"position" yaml:"position"`
	Data     NodeData `json:"data" yaml:"data"`
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	n.Data = n.Data.Clone()
	return n
}

// NodeDataPatch is a partial update of NodeData.
// Nil fields are left untouched; Config is merged key by key.
type NodeDataPatch struct {
	Label       *string        `json:"label,omitempty"`
	Type        *string        `json:"type,omitempty"`
	Icon        *string        `json:"icon,omitempty"`
	Description *string        `json:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

// Apply merges the patch into data and returns the result.
// The input is not modified.
func (p NodeDataPatch) Apply(data NodeData) NodeData {
	out := data.Clone()
	if p.Label != nil {
		out.Label = *p.Label
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Icon != nil {
		out.Icon = *p.Icon
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Config != nil {
		if out.Config == nil {
			out.Config = make(map[string]any, len(p.Config))
		}
		for k, v := range CloneConfig(p.Config) {
			out.Config[k] = v
		}
	}
	return out
}

// CloneConfig deep-copies a node configuration.
// Nested maps and slices are copied; other values are shared.
func CloneConfig(cfg map[string]any) map[string]any {
	if cfg == nil {
		return nil
	}
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneConfig(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
