package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/pcbforge/pcbforge/pkg/contour"
)

// ToDOT converts a containment forest to Graphviz DOT format. Each
// contour is a node labeled with its class and solidity; edges run
// from parent to directly nested child. The resulting DOT string can
// be rendered with [DOTToSVG].
func ToDOT(f *contour.Forest) string {
	var buf bytes.Buffer
	buf.WriteString("digraph forest {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fontsize=12, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	for i, n := range f.Nodes {
		label := fmt.Sprintf("%s\\n%s, depth %d", n.Label, n.Class, n.Depth)
		fill := "lightgrey"
		if n.Solid {
			fill = "sandybrown"
		}
		fmt.Fprintf(&buf, "  n%d [label=\"%s\", fillcolor=%s];\n", i, label, fill)
	}

	buf.WriteString("\n")
	for i, n := range f.Nodes {
		for _, child := range n.Children {
			fmt.Fprintf(&buf, "  n%d -> n%d;\n", i, child)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// DOTToSVG renders a DOT graph to SVG using Graphviz.
func DOTToSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the Graphviz svg tag to a zero-origin
// viewBox with explicit pixel dimensions.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
