package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pcbforge/pcbforge/pkg/contour"
)

type forestDoc struct {
	Nodes []forestNode `json:"nodes"`
}

type forestNode struct {
	Label    string `json:"label"`
	Class    string `json:"class"`
	Depth    int    `json:"depth"`
	Solid    bool   `json:"solid"`
	Polarity string `json:"polarity"`
	Source   string `json:"source"`
	Parent   string `json:"parent,omitempty"`
	Points   int    `json:"points"`
}

// WriteForestJSON encodes a classified forest as JSON and writes it to
// w. Nodes appear in input order; parents are referenced by label.
func WriteForestJSON(f *contour.Forest, w io.Writer) error {
	out := forestDoc{Nodes: make([]forestNode, len(f.Nodes))}
	for i, n := range f.Nodes {
		nd := forestNode{
			Label:    n.Label,
			Class:    n.Class.String(),
			Depth:    n.Depth,
			Solid:    n.Solid,
			Polarity: n.Polarity.String(),
			Source:   string(n.Source),
			Points:   len(n.Ring),
		}
		if n.Parent >= 0 {
			nd.Parent = f.Nodes[n.Parent].Label
		}
		out.Nodes[i] = nd
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportForestJSON writes a classified forest to a JSON file at path.
// This is a convenience wrapper around [WriteForestJSON].
func ExportForestJSON(f *contour.Forest, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()
	return WriteForestJSON(f, file)
}
