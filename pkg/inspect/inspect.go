// Package inspect serves a live view of an atom store over HTTP.
//
// Routes:
//
//	GET  /healthz             liveness probe
//	GET  /atoms               every registered atom with value and graph edges
//	GET  /atoms/{name}        one atom
//	PUT  /atoms/{name}        write a JSON body to the atom
//	GET  /atoms/{name}/watch  WebSocket stream, one frame per change
//	GET  /metrics             Prometheus metrics, when a gatherer is set
//
// All store access goes through the atom.Loop, so the inspector can run
// next to any other goroutine using the same loop.
package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vango-dev/atom/pkg/atom"
)

// Config configures the inspector.
type Config struct {
	// Logger receives request and connection logs.
	// Default: slog.Default() with component=atom.inspect
	Logger *slog.Logger

	// Gatherer, when set, is served on /metrics.
	Gatherer prometheus.Gatherer

	// WriteTimeout bounds each WebSocket frame write (default: 10s).
	WriteTimeout time.Duration

	// MaxBodyBytes limits PUT bodies (default: 1 MiB).
	MaxBodyBytes int64

	// CheckOrigin validates WebSocket origins. Default: same-origin only.
	CheckOrigin func(r *http.Request) bool
}

// Option configures the inspector.
type Option func(*Config)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithGatherer serves metrics from g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *Config) { c.Gatherer = g }
}

// WithWriteTimeout sets the WebSocket write timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) { c.WriteTimeout = d }
}

// WithCheckOrigin sets the WebSocket origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(c *Config) { c.CheckOrigin = fn }
}

// Inspector is an http.Handler exposing registered atoms.
type Inspector struct {
	loop     *atom.Loop
	entries  map[string]Entry
	byID     map[uint64]string
	names    []string
	config   Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

// New creates an inspector over loop. Entry names must be unique; later
// duplicates replace earlier ones.
func New(loop *atom.Loop, entries []Entry, opts ...Option) *Inspector {
	config := Config{
		WriteTimeout: 10 * time.Second,
		MaxBodyBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default().With("component", "atom.inspect")
	}

	i := &Inspector{
		loop:    loop,
		entries: make(map[string]Entry, len(entries)),
		byID:    make(map[uint64]string, len(entries)),
		config:  config,
		logger:  config.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: config.CheckOrigin,
		},
	}
	for _, e := range entries {
		if _, dup := i.entries[e.Name]; !dup {
			i.names = append(i.names, e.Name)
		}
		i.entries[e.Name] = e
		i.byID[e.Atom.ID()] = e.Name
	}
	sort.Strings(i.names)
	i.router = i.routes()
	return i
}

func (i *Inspector) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Get("/atoms", i.handleList)
	r.Get("/atoms/{name}", i.handleGet)
	r.Put("/atoms/{name}", i.handlePut)
	r.Get("/atoms/{name}/watch", i.handleWatch)
	if i.config.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(i.config.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// ServeHTTP implements http.Handler.
func (i *Inspector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	i.router.ServeHTTP(w, r)
}

// AtomView is the JSON form of one atom.
type AtomView struct {
	Name         string   `json:"name"`
	ID           uint64   `json:"id"`
	Label        string   `json:"label"`
	Value        any      `json:"value"`
	Error        string   `json:"error,omitempty"`
	Pending      bool     `json:"pending,omitempty"`
	Version      uint64   `json:"version"`
	Writable     bool     `json:"writable"`
	Mounted      bool     `json:"mounted"`
	Listeners    int      `json:"listeners"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
}

// view reads e and describes it. It must run on the loop.
func (i *Inspector) view(s *atom.Store, e Entry) AtomView {
	v := AtomView{
		Name:     e.Name,
		ID:       e.Atom.ID(),
		Label:    e.Atom.String(),
		Writable: e.Writable(),
		Mounted:   s.IsMounted(e.Atom),
		Listeners: s.Listeners(e.Atom),
	}
	value, err := s.ReadAny(e.Atom)
	switch {
	case errors.Is(err, atom.ErrPending):
		v.Pending = true
	case err != nil:
		v.Error = err.Error()
	default:
		v.Value = value
	}
	for _, info := range s.Snapshot() {
		if info.Atom.ID() == v.ID {
			v.Version = info.Version
			break
		}
	}
	v.Dependencies = i.namesOf(s.Dependencies(e.Atom))
	v.Dependents = i.namesOf(s.Dependents(e.Atom))
	return v
}

func (i *Inspector) namesOf(defs []atom.Definition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		if name, ok := i.byID[d.ID()]; ok {
			out = append(out, name)
		} else {
			out = append(out, d.String())
		}
	}
	return out
}

func (i *Inspector) handleList(w http.ResponseWriter, r *http.Request) {
	var views []AtomView
	err := i.loop.Do(r.Context(), func(s *atom.Store) error {
		views = make([]AtomView, 0, len(i.names))
		for _, name := range i.names {
			views = append(views, i.view(s, i.entries[name]))
		}
		return nil
	})
	if err != nil {
		i.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	i.writeJSON(w, http.StatusOK, views)
}

func (i *Inspector) lookup(w http.ResponseWriter, r *http.Request) (Entry, bool) {
	name := chi.URLParam(r, "name")
	e, ok := i.entries[name]
	if !ok {
		i.writeError(w, http.StatusNotFound, fmt.Errorf("unknown atom %q", name))
	}
	return e, ok
}

func (i *Inspector) handleGet(w http.ResponseWriter, r *http.Request) {
	e, ok := i.lookup(w, r)
	if !ok {
		return
	}
	var v AtomView
	if err := i.loop.Do(r.Context(), func(s *atom.Store) error {
		v = i.view(s, e)
		return nil
	}); err != nil {
		i.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	i.writeJSON(w, http.StatusOK, v)
}

func (i *Inspector) handlePut(w http.ResponseWriter, r *http.Request) {
	e, ok := i.lookup(w, r)
	if !ok {
		return
	}
	if !e.Writable() {
		i.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("atom %q is read-only", e.Name))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, i.config.MaxBodyBytes))
	if err != nil {
		i.writeError(w, http.StatusBadRequest, err)
		return
	}
	arg, err := e.Decode(body)
	if err != nil {
		i.writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	var v AtomView
	var writeErr error
	err = i.loop.Do(r.Context(), func(s *atom.Store) error {
		writeErr = s.WriteAny(e.Atom, arg)
		v = i.view(s, e)
		return nil
	})
	switch {
	case err != nil:
		i.writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(writeErr, atom.ErrNotWritable):
		i.writeError(w, http.StatusMethodNotAllowed, writeErr)
	case writeErr != nil:
		i.writeError(w, http.StatusUnprocessableEntity, writeErr)
	default:
		i.logger.Debug("atom written", "atom", e.Name)
		i.writeJSON(w, http.StatusOK, v)
	}
}

func (i *Inspector) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		i.logger.Warn("encode response", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (i *Inspector) writeError(w http.ResponseWriter, status int, err error) {
	i.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// detached returns a context for cleanup work after a request ends.
func detached() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
