package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/phylotrace/phylotrace/internal/server"
	"github.com/phylotrace/phylotrace/pkg/cache"
	"github.com/phylotrace/phylotrace/pkg/pipeline"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr    string
	noCache bool
}

// newServeCmd creates the serve command, which exposes the pipeline over
// HTTP.
func newServeCmd() *cobra.Command {
	opts := serveOpts{addr: ":8080"}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reconstruction pipeline over HTTP",
		Long: `Start an HTTP server exposing the reconstruction pipeline.

Routes:
  GET  /healthz   liveness probe
  POST /v1/label  run a reconstruction (JSON in, JSON out)`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runServe(c.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the result cache")

	return cmd
}

func runServe(ctx context.Context, opts serveOpts) error {
	logger := loggerFromContext(ctx)

	c, err := labelCache(opts.noCache)
	if err != nil {
		printWarning("Caching disabled: %v", err)
		c = cache.NewNullCache()
	}
	defer c.Close()

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           server.New(pipeline.NewRunner(c), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", opts.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
