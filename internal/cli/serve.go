package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pcbforge/pcbforge/internal/server"
	"github.com/pcbforge/pcbforge/pkg/cache"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	forgePath  string
	globalPath string
	addr       string
	noCache    bool
}

// newServeCmd creates the serve command, which previews a job in the
// browser without writing any G-code.
func newServeCmd() *cobra.Command {
	opts := serveOpts{forgePath: "forge.toml", addr: "localhost:8347"}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Preview a job's layers in the browser",
		Long: `Serve starts a local read-only server that renders every artwork
layer the job references and summarizes the outputs a build would
write. Layer previews re-render when the artwork files change.

Examples:
  pcbforge serve
  pcbforge serve -f boards/blinky/forge.toml --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.forgePath, "forge", "f", opts.forgePath, "job file to preview")
	cmd.Flags().StringVar(&opts.globalPath, "config", "", "machine configuration file (default ~/.config/pcbforge/config.toml)")
	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "re-render layer previews on every request")

	return cmd
}

func runServe(ctx context.Context, opts serveOpts) error {
	logger := loggerFromContext(ctx)

	job, err := loadJob(opts.forgePath, opts.globalPath, "", logger)
	if err != nil {
		return err
	}

	var backend cache.Cache = cache.NewNullCache()
	if !opts.noCache {
		dir, err := cache.DefaultDir()
		if err != nil {
			return err
		}
		backend, err = cache.NewFileCache(dir)
		if err != nil {
			return err
		}
	}
	defer backend.Close()

	srv := server.New(job, backend, cache.NewScopedKeyer(nil, job.ProjectName), logger)
	httpSrv := &http.Server{
		Addr:              opts.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	printInfo("Previewing %s", StyleHighlight.Render(job.ProjectName))
	printDetail("%d layers from %s", len(srv.LayerNames()), opts.forgePath)
	printNewline()
	printKeyValue("Address", "http://"+opts.addr+"/")
	printNextStep("Stop the server", "ctrl-c")

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		logger.Info("server stopped")
		return nil
	}
}
