// Package mapengine runs user mapping scripts against documents on a pool
// of isolated script workers and returns everything the scripts emit as a
// flat, type-tagged token stream.
package mapengine

import (
	"sync"

	"github.com/cryguy/mapengine/internal/mapper"
	"github.com/cryguy/mapengine/internal/metrics"
	"github.com/cryguy/mapengine/internal/source"
	"go.uber.org/zap"
)

// Engine routes documents to a fixed pool of script workers.
type Engine struct {
	pool *mapper.Pool
}

type engineOptions struct {
	log      *zap.Logger
	metrics  *metrics.Metrics
	loader   ScriptLoader
	backend  string
	capacity int
}

// Option configures an Engine.
type Option func(*engineOptions)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *engineOptions) { o.log = l }
}

// WithMetrics records route and load metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *engineOptions) { o.metrics = m }
}

// WithScriptLoader sets where LoadScript reads sources from. The default
// reads files relative to the working directory.
func WithScriptLoader(l ScriptLoader) Option {
	return func(o *engineOptions) { o.loader = l }
}

// WithBackend selects the script runtime ("quickjs", "goja", or "v8" in
// binaries built with -tags v8).
func WithBackend(name string) Option {
	return func(o *engineOptions) { o.backend = name }
}

// WithResultCapacity sets the token and slot bound of one invocation.
func WithResultCapacity(n int) Option {
	return func(o *engineOptions) { o.capacity = n }
}

var (
	engineOnce sync.Once
	engine     *Engine
	engineErr  error
)

// CreateEngine creates the process-wide engine with workerCount workers.
// Only the first call does any work; every later call returns the first
// handle and error whatever its arguments.
func CreateEngine(workerCount int, opts ...Option) (*Engine, error) {
	engineOnce.Do(func() {
		engine, engineErr = New(EngineConfig{Workers: workerCount}, nil, opts...)
	})
	return engine, engineErr
}

// New creates an independent engine. A nil loader falls back to the
// WithScriptLoader option, then to files relative to the working directory.
// Construction failures wrap ErrEngineInit.
func New(cfg EngineConfig, loader ScriptLoader, opts ...Option) (*Engine, error) {
	o := engineOptions{loader: loader}
	for _, opt := range opts {
		opt(&o)
	}
	if o.backend != "" {
		cfg.Backend = o.backend
	}
	if o.capacity > 0 {
		cfg.ResultCapacity = o.capacity
	}
	if o.loader == nil {
		o.loader = &source.FileLoader{Root: "."}
	}

	pool, err := mapper.NewPool(cfg, o.loader,
		mapper.WithLogger(o.log),
		mapper.WithMetrics(o.metrics))
	if err != nil {
		return nil, err
	}
	return &Engine{pool: pool}, nil
}

// LoadScript compiles the script at path on every worker. Compile
// failures are reported per worker and never abort the broadcast.
func (e *Engine) LoadScript(path string) LoadReport {
	return e.pool.LoadScript(path)
}

// Route maps one document on the next worker in round robin order. The
// returned Result is an owned copy.
func (e *Engine) Route(meta Metadata, doc []byte, path string) Result {
	return e.pool.Route(meta, doc, path)
}

// Workers returns the pool size.
func (e *Engine) Workers() int { return e.pool.Size() }

// Backend returns the script runtime name.
func (e *Engine) Backend() string { return e.pool.Backend() }

// Close releases every worker. Routes after Close carry ErrClosed.
func (e *Engine) Close() error {
	return e.pool.Close()
}
