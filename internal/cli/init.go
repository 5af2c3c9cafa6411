package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pcbforge/pcbforge/pkg/artwork/drill"
	"github.com/pcbforge/pcbforge/pkg/artwork/gerber"
	forgeio "github.com/pcbforge/pcbforge/pkg/io"
)

// initOpts holds the command-line flags for the init command.
type initOpts struct {
	name   string // project name, defaults to the directory name
	output string // job file to write
	yes    bool   // accept heuristic layer guesses without prompting
	force  bool   // overwrite an existing job file
}

// layerRole is one slot in a scaffolded job file.
type layerRole struct {
	key       string // edge, mask, drill
	title     string
	operation string
	drill     bool
	// guess reports whether a filename is a likely match.
	guess func(name string) bool
}

var layerRoles = []layerRole{
	{
		key:       "mask",
		title:     "Select the copper or solder mask layer to engrave",
		operation: "engrave_mask",
		guess: func(name string) bool {
			return strings.HasSuffix(name, ".gtl") || strings.HasSuffix(name, ".gbl") ||
				strings.HasSuffix(name, ".gts") || strings.HasSuffix(name, ".gbs") ||
				strings.Contains(name, "mask") || strings.Contains(name, "copper")
		},
	},
	{
		key:       "drill",
		title:     "Select the drill file",
		operation: "cut_board",
		drill:     true,
		guess: func(name string) bool {
			return strings.HasSuffix(name, ".drl") || strings.HasSuffix(name, ".xnc") ||
				strings.Contains(name, "drill")
		},
	},
	{
		key:       "edge",
		title:     "Select the board outline layer to cut",
		operation: "cut_board",
		guess: func(name string) bool {
			return strings.HasSuffix(name, ".gko") || strings.HasSuffix(name, ".gm1") ||
				strings.HasSuffix(name, ".gml") ||
				strings.Contains(name, "edge") || strings.Contains(name, "outline")
		},
	},
}

// newInitCmd creates the init command, which scans a directory for
// artwork files and scaffolds a job file around them.
func newInitCmd() *cobra.Command {
	opts := initOpts{output: "forge.toml"}

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Scaffold a job file from the artwork in a directory",
		Long: `Init scans a directory for Gerber and Excellon files, asks which
file fills each role (mask engraving, drilling, edge cutting), and
writes a starter forge.toml. Roles without a matching file are left
out; pass --yes to accept the heuristic guesses without prompting.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "project name (default: directory name)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "job file to write")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "accept heuristic layer guesses without prompting")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing job file")

	return cmd
}

func runInit(dir string, opts initOpts) error {
	target := opts.output
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, opts.output)
	}
	if _, err := os.Stat(target); err == nil && !opts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", target)
	}

	name := opts.name
	if name == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		name = filepath.Base(abs)
	}

	gerbers, drills, err := scanArtwork(dir)
	if err != nil {
		return err
	}
	if len(gerbers) == 0 && len(drills) == 0 {
		return fmt.Errorf("no Gerber or drill files found in %s", dir)
	}

	chosen, err := chooseLayers(gerbers, drills, opts.yes)
	if err != nil {
		return err
	}
	if len(chosen) == 0 {
		return fmt.Errorf("no layers selected")
	}

	doc := renderForgeTOML(name, chosen)
	if err := forgeio.WriteAtomic(target, []byte(doc), 0o644); err != nil {
		return err
	}

	printSuccess("Wrote %s", target)
	for _, role := range layerRoles {
		if file, ok := chosen[role.key]; ok {
			printDetail("%s: %s", role.key, file)
		}
	}
	printNewline()
	printNextStep("Review the machine settings, then build", "pcbforge build -f "+opts.output)
	return nil
}

// scanArtwork lists the Gerber and drill files directly inside dir,
// sorted by name.
func scanArtwork(dir string) (gerbers, drills []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case (gerber.Parser{}).Supports(name):
			gerbers = append(gerbers, name)
		case (drill.Parser{}).Supports(name):
			drills = append(drills, name)
		}
	}
	sort.Strings(gerbers)
	sort.Strings(drills)
	return gerbers, drills, nil
}

// chooseLayers fills each role either from heuristics or the
// interactive picker. The returned map is keyed by role.
func chooseLayers(gerbers, drills []string, yes bool) (map[string]string, error) {
	chosen := map[string]string{}
	for _, role := range layerRoles {
		pool := gerbers
		format := "gerber"
		if role.drill {
			pool = drills
			format = "excellon"
		}

		if yes {
			if file, ok := guessLayer(role, pool); ok {
				chosen[role.key] = file
			}
			continue
		}

		candidates := make([]layerCandidate, 0, len(pool))
		for _, file := range pool {
			candidates = append(candidates, layerCandidate{
				Path:   file,
				Format: format,
				Guess:  role.guess(strings.ToLower(file)),
			})
		}
		file, err := pickLayer(role.title, candidates)
		if err != nil {
			return nil, err
		}
		if file != "" {
			chosen[role.key] = file
		}
	}
	return chosen, nil
}

// guessLayer picks the first heuristic match for a role.
func guessLayer(role layerRole, pool []string) (string, bool) {
	for _, file := range pool {
		if role.guess(strings.ToLower(file)) {
			return file, true
		}
	}
	return "", false
}

// renderForgeTOML produces the scaffolded job file. Machine
// references are omitted so the global defaults apply.
func renderForgeTOML(name string, chosen map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "project_name = %q\n", name)
	b.WriteString("board_version = \"1\"\n")

	if file, ok := chosen["mask"]; ok {
		b.WriteString("\n[[outputs]]\n")
		b.WriteString("file = \"mask.gcode\"\n\n")
		b.WriteString("[[outputs.stages]]\n")
		b.WriteString("operation = \"engrave_mask\"\n")
		fmt.Fprintf(&b, "gerber_file = %q\n", file)
	}
	if file, ok := chosen["drill"]; ok {
		b.WriteString("\n[[outputs]]\n")
		b.WriteString("file = \"drill.gcode\"\n\n")
		b.WriteString("[[outputs.stages]]\n")
		b.WriteString("operation = \"cut_board\"\n")
		fmt.Fprintf(&b, "drill_file = %q\n", file)
	}
	if file, ok := chosen["edge"]; ok {
		b.WriteString("\n[[outputs]]\n")
		b.WriteString("file = \"edge.gcode\"\n\n")
		b.WriteString("[[outputs.stages]]\n")
		b.WriteString("operation = \"cut_board\"\n")
		fmt.Fprintf(&b, "gerber_file = %q\n", file)
		b.WriteString("select_lines = \"outer\"\n")
	}
	return b.String()
}
