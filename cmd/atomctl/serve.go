package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	atomerrors "github.com/vango-dev/atom/internal/errors"
	"github.com/vango-dev/atom/pkg/atom"
	"github.com/vango-dev/atom/pkg/inspect"
)

func serveCmd() *cobra.Command {
	var (
		addr      string
		skipSteps bool
	)

	cmd := &cobra.Command{
		Use:   "serve <scenario.yaml>",
		Short: "Serve a live inspector for a scenario",
		Long: `Serve runs the scenario steps, then keeps the store alive behind an
HTTP inspector.

Routes:
  GET  /atoms               every atom with value and edges
  GET  /atoms/{name}        one atom
  PUT  /atoms/{name}        write a JSON value
  GET  /atoms/{name}/watch  WebSocket stream of changes
  GET  /metrics             Prometheus metrics

Examples:
  atomctl serve counter.yaml
  ATOMCTL_ADDR=:8080 atomctl serve counter.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd, args[0])
			if err != nil {
				return err
			}
			if addr != "" {
				env.cfg.Serve.Addr = addr
			}
			return runServe(cmd, env, skipSteps)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from atomctl.yaml)")
	cmd.Flags().BoolVar(&skipSteps, "skip-steps", false, "Start from initial values without running the steps")
	return cmd
}

func runServe(cmd *cobra.Command, env *environment, skipSteps bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := atom.NewLoop(env.storeOptions()...)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
	}()
	defer func() {
		loop.Close()
		<-loopDone
	}()

	if !skipSteps {
		err := loop.Do(ctx, func(s *atom.Store) error {
			report := env.program.Run(s, nil)
			for _, d := range report.Failures {
				env.logger.Warn("step failed", "error", d.FormatCompact())
			}
			return nil
		})
		if err != nil {
			return atomerrors.FromError(err, "AT105")
		}
	}

	names := env.program.Names()
	entries := make([]inspect.Entry, 0, len(names))
	for _, name := range names {
		e, _ := env.program.Entry(name)
		entries = append(entries, inspect.Dynamic(name, e.Atom, e.Spec.Writable()))
	}

	opts := []inspect.Option{
		inspect.WithLogger(env.logger.With("component", "atom.inspect")),
		inspect.WithWriteTimeout(env.cfg.Serve.WriteTimeout),
	}
	if env.cfg.Metrics.Enabled {
		opts = append(opts, inspect.WithGatherer(env.registry))
	}

	server := &http.Server{
		Addr:              env.cfg.Serve.Addr,
		Handler:           inspect.New(loop, entries, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			info(cmd, "Shutting down...")
		case <-ctx.Done():
		}
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		server.Shutdown(shutdownCtx)
	}()

	success(cmd, "Inspecting %s on http://%s", env.program.Scenario.Name, env.cfg.Serve.Addr)
	info(cmd, "%d atoms", len(entries))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
