package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
)

// GraphOverlay contains execution state to visualize on the graph.
type GraphOverlay struct {
	Statuses map[string]domain.Status
}

// OverlayFromSnapshot builds an overlay from an execution snapshot.
func OverlayFromSnapshot(s domain.Snapshot) *GraphOverlay {
	return &GraphOverlay{Statuses: s.NodeExecutionState}
}

// GenerateMermaid produces a Mermaid flowchart from a workflow graph.
// It applies semantic styling:
// - Trigger: ((Circle))
// - Notification: [/Parallelogram/]
// - Upload: [(Cylinder)]
// - Delay: {{Hexagon}}
// - Default: [Rectangle]
// Edges into background targets are dotted, since nothing waits for them.
func GenerateMermaid(g domain.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	types := make(map[string]string, len(g.Nodes))
	for _, node := range g.Nodes {
		types[node.ID] = node.Data.Type
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch node.Data.Type {
		case domain.TypeTelegramReceive:
			opener, closer = "((", "))"
		case domain.TypeTelegramSend:
			opener, closer = "[/", "/]"
		case domain.TypeArweaveUpload:
			opener, closer = "[(", ")]"
		case domain.TypeDelay:
			opener, closer = "{{", "}}"
		}

		label := node.Data.Label
		if label == "" {
			label = node.ID
		}
		label = strings.ReplaceAll(label, "\"", "'")
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)
	}

	for _, e := range g.Edges {
		arrow := "-->"
		if types[e.Target] == domain.TypeArweaveUpload {
			arrow = "-.->"
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.Source), arrow, sanitizeMermaidID(e.Target))
	}

	if overlay != nil && len(overlay.Statuses) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast regardless of theme.
		sb.WriteString("    classDef running fill:#fff9c4,stroke:#fbc02d,stroke-width:3px,color:#000;\n")
		sb.WriteString("    classDef success fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef error fill:#ffcdd2,stroke:#c62828,stroke-width:3px,color:#000;\n")

		ids := make([]string, 0, len(overlay.Statuses))
		for id := range overlay.Statuses {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			st := overlay.Statuses[id]
			if st == domain.StatusPending {
				continue
			}
			fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(id), st)
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
