// Package pipeline executes resolved jobs: for every output file it
// runs the declared stages in order, concatenates their command
// streams, encodes G-code, and writes the file atomically.
//
// Output files are independent and build in parallel; an error in one
// file aborts only that file. Encoded streams are cached keyed by a
// digest of the artwork bytes, the resolved stage descriptors, and the
// tool version, so unchanged boards skip planning entirely.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pcbforge/pcbforge/pkg/buildinfo"
	"github.com/pcbforge/pcbforge/pkg/cache"
	"github.com/pcbforge/pcbforge/pkg/config"
	"github.com/pcbforge/pcbforge/pkg/errors"
	forgeio "github.com/pcbforge/pcbforge/pkg/io"
	"github.com/pcbforge/pcbforge/pkg/motion"
	"github.com/pcbforge/pcbforge/pkg/observability"
)

// Runner encapsulates job execution with caching.
// Both CLI and server can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store build results. Multiple goroutines can safely use the same
// Runner with different jobs.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Options configures one run.
type Options struct {
	// TargetDir is the directory output file paths resolve against.
	// Empty uses the job directory.
	TargetDir string
	// NoCache bypasses the cache for both reads and writes.
	NoCache bool
	// ChordStep overrides the arc linearization step in millimeters.
	ChordStep float64
	// TTL bounds the lifetime of cached streams. Zero stores without
	// expiry.
	TTL time.Duration
}

// FileResult reports the outcome for one output file.
type FileResult struct {
	File     string
	Path     string
	Bytes    int
	CacheHit bool
	Duration time.Duration
	Err      error
}

// Result reports a completed run.
type Result struct {
	RunID string
	Files []FileResult
}

// Failed returns the results that ended in error.
func (r *Result) Failed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// Run builds every output file of the job. Files build concurrently;
// per-file failures are reported in the result, not returned. The
// returned error covers only run-level problems such as context
// cancellation.
func (r *Runner) Run(ctx context.Context, job *config.Job, opts Options) (*Result, error) {
	if len(job.Outputs) == 0 {
		return nil, errors.New(errors.KindConfig, "job has no outputs")
	}
	if opts.TargetDir == "" {
		opts.TargetDir = job.Dir
	}

	result := &Result{
		RunID: uuid.NewString(),
		Files: make([]FileResult, len(job.Outputs)),
	}
	r.Logger.Info("starting build",
		"project", job.ProjectName,
		"outputs", len(job.Outputs),
		"run", result.RunID)

	var g errgroup.Group
	for i, out := range job.Outputs {
		g.Go(func() error {
			result.Files[i] = r.buildFile(ctx, job, out, result.RunID, opts)
			return nil
		})
	}
	_ = g.Wait()

	return result, ctx.Err()
}

// buildFile produces one output file end to end. Failures never leave
// a partial file behind.
func (r *Runner) buildFile(ctx context.Context, job *config.Job, out config.Output, runID string, opts Options) FileResult {
	start := time.Now()
	res := FileResult{File: out.File, Path: out.File}
	if !filepath.IsAbs(res.Path) {
		res.Path = filepath.Join(opts.TargetDir, out.File)
	}

	hooks := observability.Pipeline()
	hooks.OnOutputStart(ctx, out.File)

	stream, hit, err := r.buildStream(ctx, job, out, opts)
	res.CacheHit = hit
	if err == nil {
		stamped := fmt.Sprintf("; pcbforge %s run %s\n%s", buildinfo.Version, runID, stream)
		res.Bytes = len(stamped)
		err = forgeio.WriteAtomic(res.Path, []byte(stamped), 0o644)
	}
	res.Err = err
	res.Duration = time.Since(start)
	hooks.OnOutputComplete(ctx, out.File, res.Bytes, res.Duration, err)

	if err != nil {
		r.Logger.Error("output failed", "file", out.File, "err", err)
	} else {
		r.Logger.Info("wrote output",
			"file", out.File,
			"bytes", res.Bytes,
			"cache", hit,
			"duration", res.Duration)
	}
	return res
}

// buildStream returns the encoded command stream for one output,
// consulting the cache first.
func (r *Runner) buildStream(ctx context.Context, job *config.Job, out config.Output, opts Options) (string, bool, error) {
	// All stage artwork is read up front: the bytes feed both the cache
	// digest and the interpreters.
	artworks := make([][]byte, len(out.Stages))
	for i, st := range out.Stages {
		data, err := os.ReadFile(st.ArtworkPath)
		if err != nil {
			return "", false, errors.Wrap(errors.KindConfig, err, "reading artwork for stage %s", st.Name)
		}
		artworks[i] = data
	}

	key, err := r.streamKey(out, artworks)
	if err != nil {
		return "", false, err
	}

	cacheHooks := observability.Cache()
	if !opts.NoCache {
		if data, hit, err := r.Cache.Get(ctx, key); err != nil {
			r.Logger.Warn("cache read failed", "file", out.File, "err", err)
		} else if hit {
			cacheHooks.OnCacheHit(ctx, "output")
			return string(data), true, nil
		} else {
			cacheHooks.OnCacheMiss(ctx, "output")
		}
	}

	var cmds []motion.Command
	// A tool's init sequence splices in once per file, ahead of the
	// first stage that equips it. Stages sharing a tool must not repeat
	// it mid-stream.
	initDone := make(map[string]bool)
	for i, st := range out.Stages {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		if init := st.Tool.InitSequence; init != "" && !initDone[st.Tool.Name] {
			cmds = append(cmds, motion.InsertSequence{Text: init})
		}
		initDone[st.Tool.Name] = true
		stageCmds, err := r.runStage(ctx, job, st, artworks[i], opts)
		if err != nil {
			return "", false, err
		}
		cmds = append(cmds, stageCmds...)
	}

	encoded, err := motion.EncodeGCode(cmds, motion.EncodeOptions{})
	if err != nil {
		return "", false, err
	}

	if !opts.NoCache {
		if err := r.Cache.Set(ctx, key, []byte(encoded), opts.TTL); err != nil {
			r.Logger.Warn("cache write failed", "file", out.File, "err", err)
		} else {
			cacheHooks.OnCacheSet(ctx, "output", len(encoded))
		}
	}
	return encoded, false, nil
}

// streamKey digests everything that determines the encoded stream:
// artwork bytes, resolved stage descriptors, and the tool version.
func (r *Runner) streamKey(out config.Output, artworks [][]byte) (string, error) {
	parts := make([][]byte, 0, len(artworks)+2)
	parts = append(parts, artworks...)

	descriptors, err := json.Marshal(out.Stages)
	if err != nil {
		return "", errors.Wrap(errors.KindInternal, err, "marshaling stage descriptors")
	}
	parts = append(parts, descriptors, []byte(buildinfo.Version))

	return r.Keyer.OutputKey(out.File, cache.Digest(parts...)), nil
}
