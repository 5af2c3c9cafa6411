package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pcbforge/pcbforge/pkg/artwork"
	"github.com/pcbforge/pcbforge/pkg/artwork/drill"
	"github.com/pcbforge/pcbforge/pkg/artwork/gerber"
	"github.com/pcbforge/pcbforge/pkg/config"
	"github.com/pcbforge/pcbforge/pkg/contour"
	forgeio "github.com/pcbforge/pcbforge/pkg/io"
	"github.com/pcbforge/pcbforge/pkg/render"
	"github.com/pcbforge/pcbforge/pkg/units"
)

// inspectOpts holds the command-line flags for the inspect command.
type inspectOpts struct {
	format    string // table, json, svg, dot, or graph
	output    string // output file path (stdout if empty)
	chordStep string
	outlines  bool
}

// newInspectCmd creates the inspect command, which interprets one
// artwork file and reports its classified contour forest.
func newInspectCmd() *cobra.Command {
	opts := inspectOpts{format: "table"}

	cmd := &cobra.Command{
		Use:   "inspect <artwork-file>",
		Short: "Classify one artwork layer and report its contours",
		Long: `Inspect interprets a single Gerber or Excellon file, builds its
contour polygons, and classifies them into a containment forest.

Formats:
  table   contour summary on stdout
  json    containment forest as JSON
  svg     board view of the classified polygons
  dot     containment forest in Graphviz DOT
  graph   containment forest rendered to SVG via Graphviz

Examples:
  pcbforge inspect copper.gbr
  pcbforge inspect edge.gbr --format svg -o edge.svg
  pcbforge inspect holes.drl --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", opts.format, "output format: table, json, svg, dot, or graph")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().StringVar(&opts.chordStep, "chord-step", "", `arc flattening step, e.g. "0.1 mm"`)
	cmd.Flags().BoolVar(&opts.outlines, "outlines", false, "draw contour outlines in the svg view")

	return cmd
}

func runInspect(ctx context.Context, path string, opts inspectOpts) error {
	logger := loggerFromContext(ctx)

	forest, err := classifyFile(path, opts.chordStep, logger)
	if err != nil {
		return err
	}
	logger.Debug("classified artwork", "path", path, "contours", len(forest.Nodes))

	var out []byte
	switch opts.format {
	case "table":
		return printForest(path, forest)
	case "json":
		if opts.output != "" {
			return forgeio.ExportForestJSON(forest, opts.output)
		}
		return forgeio.WriteForestJSON(forest, os.Stdout)
	case "svg":
		out = render.ForestSVG(forest, render.SVGOptions{Outlines: opts.outlines})
	case "dot":
		out = []byte(render.ToDOT(forest))
	case "graph":
		out, err = render.DOTToSVG(ctx, render.ToDOT(forest))
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}

	if opts.output == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	if err := forgeio.WriteAtomic(opts.output, out, 0o644); err != nil {
		return err
	}
	printSuccess("Wrote %s", opts.output)
	return nil
}

// classifyFile interprets an artwork file and classifies its
// contours. The parser is chosen by filename.
func classifyFile(path, chordStep string, logger *log.Logger) (*contour.Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	parser, err := artwork.Detect(path, gerber.Parser{}, drill.Parser{})
	if err != nil {
		return nil, err
	}
	art, err := parser.Parse(filepath.Base(path), data, artwork.Options{Logger: logger})
	if err != nil {
		return nil, err
	}

	var step float64
	if chordStep != "" {
		q, err := config.ParseQuantity(chordStep)
		if err != nil {
			return nil, err
		}
		v, err := q.Convert(units.Millimeter)
		if err != nil {
			return nil, err
		}
		step = v.Magnitude
	}

	polys, err := contour.Build(art.Primitives, contour.Options{ChordStep: step})
	if err != nil {
		return nil, err
	}
	return contour.Classify(polys)
}

// printForest writes a contour summary table to stdout.
func printForest(path string, f *contour.Forest) error {
	printInfo("Contours in %s", StyleHighlight.Render(path))
	printNewline()

	solids, holes := 0, 0
	for _, n := range f.Nodes {
		if n.Solid {
			solids++
		} else {
			holes++
		}
	}

	for _, root := range f.Roots {
		printForestNode(f, root)
	}

	printNewline()
	printDetail("%d contours · %d solid · %d holes · %d roots",
		len(f.Nodes), solids, holes, len(f.Roots))
	return nil
}

func printForestNode(f *contour.Forest, idx int) {
	n := f.Nodes[idx]
	bbox := n.Ring.BoundingBox()
	indent := strings.Repeat("  ", n.Depth)

	fill := "hole"
	if n.Solid {
		fill = "solid"
	}
	fmt.Printf("%s%s %s  %s\n",
		indent,
		StyleValue.Render(n.Label),
		StyleDim.Render(fmt.Sprintf("(%s, %s)", n.Class, fill)),
		StyleDim.Render(fmt.Sprintf("%.2f×%.2f mm", bbox.Width(), bbox.Height())))

	for _, child := range n.Children {
		printForestNode(f, child)
	}
}
