package weft

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/weft/pkg/domain"
)

// ReadGraph decodes a graph in the snapshot format {"nodes": [...], "edges": [...]}.
func ReadGraph(r io.Reader) (domain.Graph, error) {
	var g domain.Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return domain.Graph{}, fmt.Errorf("decode graph: %w", err)
	}
	return g, nil
}

// ReadGraphFile reads a graph from a JSON file.
func ReadGraphFile(path string) (domain.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Graph{}, err
	}
	defer f.Close()
	return ReadGraph(f)
}

// WriteGraph encodes g in the snapshot format, indented for humans.
func WriteGraph(w io.Writer, g domain.Graph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}
