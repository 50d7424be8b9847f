package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/purplejs/purplejs/api"
	"github.com/purplejs/purplejs/cmd/state"
	"github.com/purplejs/purplejs/errext"
	"github.com/purplejs/purplejs/errext/exitcodes"
	"github.com/purplejs/purplejs/http/handler"
	"github.com/purplejs/purplejs/internal/lib/trace"
	"github.com/purplejs/purplejs/js"
	"github.com/purplejs/purplejs/loader"
)

const shutdownTimeout = 10 * time.Second

// cmdServe handles the `purple serve` sub-command
type cmdServe struct {
	gs *state.GlobalState
	// ready is called with the address the server listens on.
	ready func(addr net.Addr)
}

func (c *cmdServe) run(cmd *cobra.Command, args []string) error {
	conf, err := getConsolidatedConfig(c.gs, cmd.Flags())
	if err != nil {
		return err
	}
	cwd, err := c.gs.Getwd()
	if err != nil {
		return err
	}
	app, err := loader.ReadApplication(c.gs.FS, args[0], cwd)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	logger := c.gs.Logger

	ctx, cancel := context.WithCancel(c.gs.Ctx)
	defer cancel()

	sessions := handler.NewSessions()
	defer sessions.Close()
	builder := newEngineBuilder(c.gs, conf, app).Module(sessions.Module())
	pool, err := js.NewPool(int(conf.PoolSize.Int64), builder.Build)
	if err != nil {
		return err
	}
	defer pool.Close()

	// load the application once, so errors in it stop the server from starting
	engine, err := pool.Get(ctx)
	if err != nil {
		return err
	}
	_, err = engine.Require(app.Main.Path)
	pool.Put(engine)
	if err != nil {
		return err
	}

	tp, err := trace.TracerProviderFromConfigLine(ctx, conf.TracesOutput.String)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Couldn't shut down the tracer provider")
		}
	}()

	h := handler.New(pool, sessions, handler.Options{
		Script:        app.Main.Path,
		ScriptTimeout: conf.ScriptTimeout.TimeDuration(),
		MaxBodySize:   conf.MaxBodySize.Int64,
	}, conf.Mode(), logger)

	srv, err := api.GetServer(api.Options{
		Addr:        conf.Address.String,
		RateLimit:   conf.RateLimit.Float64,
		RateBurst:   int(conf.RateBurst.Int64),
		Compression: conf.CompressionList(),
	}, h, logger, tp)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return errext.WithExitCodeIfNone(
			fmt.Errorf("couldn't listen on %s: %w", srv.Addr, err), exitcodes.CannotStartServer)
	}

	if !c.gs.Flags.Quiet {
		printToStdout(c.gs, getBanner(c.gs.Flags.NoColor || !c.gs.Stdout.IsTTY)+"\n\n")
	}
	logger.WithField("mode", conf.Mode()).Infof("Serving %s on http://%s", args[0], ln.Addr())
	if c.ready != nil {
		c.ready(ln.Addr())
	}

	stopSignalHandling := handleAbortSignals(c.gs, func(sig os.Signal) {
		logger.WithField("sig", sig).Info("Stopping the server...")
		cancel()
	})
	defer stopSignalHandling()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return errext.WithExitCodeIfNone(err, exitcodes.CannotStartServer)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	sessions.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("couldn't shut down the server: %w", err)
	}
	logger.Debug("Server stopped")
	return nil
}

func getCmdServe(gs *state.GlobalState) *cobra.Command {
	c := &cmdServe{gs: gs}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an application",
		Long: `Serve an application.

The script is the main module of the application. It exports functions named
after the HTTP methods it handles, like get and post, or a service function
that handles all of them. Modules are required relative to the directory of
the script.`,
		Example: `
  # Serve an application in development mode, reloading edited scripts.
  ` + gs.BinaryName + ` serve --run-mode dev app/main.js

  # Serve on all interfaces with a rate limit and gzip only.
  ` + gs.BinaryName + ` serve -a :8080 --rate-limit 100 --compression gzip main.js`,
		Args: exactArgsWithMsg(1, "arg should either be a path to the main script"),
		RunE: c.run,
	}
	serveCmd.Flags().SortFlags = false
	serveCmd.Flags().AddFlagSet(serveFlagSet())
	return serveCmd
}
