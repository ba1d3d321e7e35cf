package main

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/atom/internal/config"
	"github.com/vango-dev/atom/internal/scenario"
	"github.com/vango-dev/atom/pkg/atom"
	"github.com/vango-dev/atom/pkg/observe/metrics"
	"github.com/vango-dev/atom/pkg/observe/tracing"
)

// environment is what every command needs before touching a store.
type environment struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	program  *scenario.Program
}

func loadEnvironment(cmd *cobra.Command, path string) (*environment, error) {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	sc, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}
	program, err := scenario.Build(sc)
	if err != nil {
		return nil, err
	}

	return &environment{
		cfg:      cfg,
		logger:   cfg.Logger(cmd.ErrOrStderr()).With("scenario", sc.Name),
		registry: prometheus.NewRegistry(),
		program:  program,
	}, nil
}

// storeOptions translates the configuration into store options.
func (e *environment) storeOptions() []atom.Option {
	observers := []atom.Observer{atom.NewSlogObserver(e.logger)}
	if e.cfg.Metrics.Enabled {
		observers = append(observers, metrics.New(
			metrics.WithNamespace(e.cfg.Metrics.Namespace),
			metrics.WithRegistry(e.registry),
		))
	}
	if e.cfg.Tracing.Enabled {
		observers = append(observers, tracing.New(tracing.WithTracerName(e.cfg.Tracing.TracerName)))
	}

	opts := []atom.Option{
		atom.WithLogger(e.logger.With("component", "atom.store")),
		atom.WithObserver(atom.NewMultiObserver(observers...)),
		atom.WithQueueSize(e.cfg.Store.QueueSize),
	}
	if e.cfg.Store.PrimitiveEviction {
		opts = append(opts, atom.WithPrimitiveEviction())
	}
	return opts
}
