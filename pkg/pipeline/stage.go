package pipeline

import (
	"context"
	"math"
	"path/filepath"
	"time"

	"github.com/pcbforge/pcbforge/pkg/artwork"
	"github.com/pcbforge/pcbforge/pkg/artwork/drill"
	"github.com/pcbforge/pcbforge/pkg/artwork/gerber"
	"github.com/pcbforge/pcbforge/pkg/config"
	"github.com/pcbforge/pcbforge/pkg/contour"
	"github.com/pcbforge/pcbforge/pkg/errors"
	"github.com/pcbforge/pcbforge/pkg/motion"
	"github.com/pcbforge/pcbforge/pkg/observability"
	"github.com/pcbforge/pcbforge/pkg/plan"
)

// runStage executes one stage: interpret artwork, build and classify
// polygons, plan passes, mirror for backside work, and emit commands.
func (r *Runner) runStage(ctx context.Context, job *config.Job, st config.Stage, data []byte, opts Options) ([]motion.Command, error) {
	hooks := observability.Pipeline()
	hooks.OnStageStart(ctx, st.Name, string(st.Operation))
	start := time.Now()

	cmds, err := r.planStage(ctx, job, st, data, opts)

	duration := time.Since(start)
	hooks.OnStageComplete(ctx, st.Name, string(st.Operation), duration, err)
	if err != nil {
		return nil, err
	}
	r.Logger.Info("planned stage",
		"stage", st.Name,
		"operation", st.Operation,
		"commands", len(cmds),
		"duration", duration)
	return cmds, nil
}

func (r *Runner) planStage(ctx context.Context, job *config.Job, st config.Stage, data []byte, opts Options) ([]motion.Command, error) {
	hooks := observability.Pipeline()
	source := filepath.Base(st.ArtworkPath)

	var parser artwork.Parser
	if st.DrillSource {
		parser = drill.Parser{}
	} else {
		parser = gerber.Parser{}
	}

	parseStart := time.Now()
	hooks.OnParseStart(ctx, source)
	art, err := parser.Parse(source, data, artwork.Options{Logger: r.Logger})
	var primitives int
	if art != nil {
		primitives = len(art.Primitives)
	}
	hooks.OnParseComplete(ctx, source, primitives, time.Since(parseStart), err)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("interpreted artwork",
		"source", source,
		"format", parser.Format(),
		"primitives", primitives)

	polys, err := contour.Build(art.Primitives, contour.Options{ChordStep: opts.ChordStep})
	if err != nil {
		return nil, err
	}
	forest, err := contour.Classify(polys)
	if err != nil {
		return nil, err
	}

	planOpts := plan.Options{
		Stage:     st.Name,
		ChordStep: opts.ChordStep,
		Logger:    r.Logger,
	}
	var passes []plan.Pass
	switch st.Operation {
	case config.OpCutBoard:
		passes, err = plan.CutBoard(forest, st.Tool, *st.Cut, planOpts)
	case config.OpEngraveMask:
		passes, err = plan.EngraveMask(forest, st.Tool, *st.Engrave, planOpts)
	default:
		err = errors.New(errors.KindInternal, "stage %s has unresolved operation %q", st.Name, st.Operation)
	}
	if err != nil {
		return nil, err
	}

	if st.Backside {
		passes = plan.MirrorPasses(passes, mirrorAxis(job, forest))
	}

	return motion.Emit(passes, st.Tool, st.Params, st.Machine)
}

// mirrorAxis picks the reflection line for backside stages: the
// artwork's horizontal midline when the job aligns backsides to the
// front copper, the reference origin otherwise.
func mirrorAxis(job *config.Job, forest *contour.Forest) float64 {
	if !job.AlignBackside {
		return 0
	}
	minX, maxX := math.Inf(1), math.Inf(-1)
	for _, n := range forest.Nodes {
		for _, p := range n.Ring {
			minX = math.Min(minX, p.X)
			maxX = math.Max(maxX, p.X)
		}
	}
	if minX > maxX {
		return 0
	}
	return (minX + maxX) / 2
}
