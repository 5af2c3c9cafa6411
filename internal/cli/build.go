package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pcbforge/pcbforge/pkg/cache"
	"github.com/pcbforge/pcbforge/pkg/config"
	"github.com/pcbforge/pcbforge/pkg/pipeline"
	"github.com/pcbforge/pcbforge/pkg/units"
)

// buildOpts holds the command-line flags for the build command.
type buildOpts struct {
	forgePath    string // job file path
	globalPath   string // machine config path, empty for the default location
	targetDir    string // output directory override
	machine      string // "machine/config" default override
	noCache      bool   // skip cache lookup and store
	cacheBackend string // file, redis, mongo, or none
	cacheURL     string // connection string for redis and mongo backends
	cacheTTL     time.Duration
	chordStep    string // arc flattening step, e.g. "0.1 mm"
}

// newBuildCmd creates the build command, which resolves a job file
// against the machine configuration and writes every G-code output it
// declares.
func newBuildCmd() *cobra.Command {
	opts := buildOpts{
		forgePath:    "forge.toml",
		cacheBackend: "file",
		cacheTTL:     30 * 24 * time.Hour,
	}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build all G-code outputs declared in a job file",
		Long: `Build resolves a forge.toml job file against the machine configuration
and plans every declared output: engraving passes for solder masks,
cutting passes for board edges, and drilling cycles for hole plans.

Outputs are cached by artwork content and resolved stage parameters,
so unchanged outputs are rewritten from cache.

Examples:
  pcbforge build                               # forge.toml in the current directory
  pcbforge build -f boards/blinky/forge.toml   # explicit job file
  pcbforge build --target out/ --no-cache      # fresh plan into out/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.forgePath, "forge", "f", opts.forgePath, "job file to build")
	cmd.Flags().StringVar(&opts.globalPath, "config", "", "machine configuration file (default ~/.config/pcbforge/config.toml)")
	cmd.Flags().StringVarP(&opts.targetDir, "target", "t", "", "directory for outputs (default: job file directory)")
	cmd.Flags().StringVarP(&opts.machine, "machine", "m", "", `"machine/config" for stages without an explicit machine_config`)
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "plan every output from scratch")
	cmd.Flags().StringVar(&opts.cacheBackend, "cache-backend", opts.cacheBackend, "cache backend: file, redis, mongo, or none")
	cmd.Flags().StringVar(&opts.cacheURL, "cache-url", "", "connection URL for the redis or mongo cache backend")
	cmd.Flags().DurationVar(&opts.cacheTTL, "cache-ttl", opts.cacheTTL, "lifetime of cached outputs")
	cmd.Flags().StringVar(&opts.chordStep, "chord-step", "", `arc flattening step, e.g. "0.1 mm"`)

	return cmd
}

func runBuild(ctx context.Context, opts buildOpts) error {
	logger := loggerFromContext(ctx)

	job, err := loadJob(opts.forgePath, opts.globalPath, opts.machine, logger)
	if err != nil {
		return err
	}

	var chordStep float64
	if opts.chordStep != "" {
		q, err := config.ParseQuantity(opts.chordStep)
		if err != nil {
			return err
		}
		v, err := q.Convert(units.Millimeter)
		if err != nil {
			return err
		}
		chordStep = v.Magnitude
	}

	backend, err := openCache(ctx, opts)
	if err != nil {
		return err
	}
	defer backend.Close()
	keyer := cache.NewScopedKeyer(nil, job.ProjectName)

	printInfo("Building %s", StyleHighlight.Render(job.ProjectName))
	track := newProgress(logger)

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Planning %d outputs...", len(job.Outputs)))
	spinner.Start()

	runner := pipeline.NewRunner(backend, keyer, logger)
	result, err := runner.Run(ctx, job, pipeline.Options{
		TargetDir: opts.targetDir,
		NoCache:   opts.noCache,
		ChordStep: chordStep,
		TTL:       opts.cacheTTL,
	})
	spinner.Stop()
	if err != nil {
		return err
	}

	stagesByFile := map[string]int{}
	for _, out := range job.Outputs {
		stagesByFile[out.File] = len(out.Stages)
	}

	for _, f := range result.Files {
		if f.Err != nil {
			printError("%s: %v", f.File, f.Err)
			continue
		}
		printFile(f.Path)
		printOutputStats(f.Bytes, stagesByFile[f.File], f.CacheHit)
	}

	if failed := result.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d outputs failed", len(failed), len(result.Files))
	}

	track.done(fmt.Sprintf("Built %d outputs", len(result.Files)))
	printNewline()
	printNextStep("Preview the job", "pcbforge serve -f "+opts.forgePath)
	return nil
}

// loadJob reads the machine configuration and the job file and
// resolves them into an executable job. A missing global config at
// the default location is not an error; job files can carry their
// own machine definitions. A non-empty machineOverride replaces the
// default machine references for stages without an explicit one.
func loadJob(forgePath, globalPath, machineOverride string, logger *log.Logger) (*config.Job, error) {
	explicit := globalPath != ""
	if !explicit {
		var err error
		globalPath, err = config.DefaultGlobalPath()
		if err != nil {
			return nil, err
		}
	}

	var global *config.Global
	g, err := config.LoadGlobal(globalPath)
	switch {
	case err == nil:
		global = g
	case !explicit && errors.Is(err, os.ErrNotExist):
		logger.Debugf("no machine configuration at %s", globalPath)
	default:
		return nil, err
	}

	if machineOverride != "" {
		if global == nil {
			global = &config.Global{}
		}
		global.OverrideDefaults(machineOverride)
	}

	forge, err := config.LoadForge(forgePath)
	if err != nil {
		return nil, err
	}
	return config.Resolve(global, forge)
}

// openCache constructs the cache backend selected by flags.
func openCache(ctx context.Context, opts buildOpts) (cache.Cache, error) {
	if opts.noCache {
		return cache.NewNullCache(), nil
	}
	switch opts.cacheBackend {
	case "", "file":
		dir, err := cache.DefaultDir()
		if err != nil {
			return nil, err
		}
		return cache.NewFileCache(dir)
	case "redis":
		if opts.cacheURL == "" {
			return nil, fmt.Errorf("redis cache backend needs --cache-url")
		}
		return cache.NewRedisCache(ctx, opts.cacheURL)
	case "mongo":
		if opts.cacheURL == "" {
			return nil, fmt.Errorf("mongo cache backend needs --cache-url")
		}
		return cache.NewMongoCache(ctx, opts.cacheURL, "pcbforge", "outputs")
	case "none":
		return cache.NewNullCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.cacheBackend)
	}
}
