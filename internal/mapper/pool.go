package mapper

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cryguy/mapengine/internal/core"
	"github.com/cryguy/mapengine/internal/emit"
	"github.com/cryguy/mapengine/internal/metrics"
	"go.uber.org/zap"
)

// Pool is a fixed set of script workers. Routes are spread round robin
// over an atomic counter; script loads are broadcast to every worker.
type Pool struct {
	workers []*Worker
	counter atomic.Uint64
	loader  core.ScriptLoader
	backend string

	log     *zap.Logger
	metrics *metrics.Metrics

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

type options struct {
	log     *zap.Logger
	metrics *metrics.Metrics
	factory core.RuntimeFactory
}

// Option configures a Pool.
type Option func(*options)

// WithLogger sets the pool's logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records route and load metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRuntimeFactory overrides the factory looked up from the backend name.
func WithRuntimeFactory(f core.RuntimeFactory) Option {
	return func(o *options) { o.factory = f }
}

// LoadReport summarizes one broadcast load across every worker.
type LoadReport struct {
	Path       string  `json:"path"`
	Registered int     `json:"registered"` // workers holding a mapping function for Path
	Missing    int     `json:"missing"`    // workers where the script ran but defined no OnMap
	Errors     []error `json:"-"`          // one *core.CompileError per failing worker
}

// Failed returns the number of workers that could not compile the script.
func (r LoadReport) Failed() int { return len(r.Errors) }

// Err joins the per-worker compile errors, or returns nil.
func (r LoadReport) Err() error { return errors.Join(r.Errors...) }

// NewPool starts cfg.Workers runtimes of the configured backend and
// installs the emit bridge in each. Every failure wraps core.ErrEngineInit
// and closes the runtimes created so far.
func NewPool(cfg core.EngineConfig, loader core.ScriptLoader, opts ...Option) (*Pool, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}

	if cfg.Workers <= 0 || cfg.Workers > core.MaxWorkers {
		return nil, fmt.Errorf("%w: worker count %d outside 1..%d", core.ErrEngineInit, cfg.Workers, core.MaxWorkers)
	}
	if loader == nil {
		return nil, fmt.Errorf("%w: script loader not set", core.ErrEngineInit)
	}

	backend := cfg.BackendName()
	factory := o.factory
	if factory == nil {
		f, err := Backend(backend)
		if err != nil {
			return nil, err
		}
		factory = f
	}

	p := &Pool{
		workers: make([]*Worker, 0, cfg.Workers),
		loader:  loader,
		backend: backend,
		log:     o.log.With(zap.String("backend", backend)),
		metrics: o.metrics,
	}
	for i := 0; i < cfg.Workers; i++ {
		rt, err := factory()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("%w: starting runtime %d: %v", core.ErrEngineInit, i, err)
		}
		w, err := NewWorker(i, rt, cfg.Capacity(), p.log)
		if err != nil {
			rt.Close()
			p.Close()
			return nil, fmt.Errorf("%w: worker %d: %v", core.ErrEngineInit, i, err)
		}
		p.workers = append(p.workers, w)
	}

	p.metrics.SetWorkers(len(p.workers))
	p.log.Info("Worker pool started",
		zap.Int("workers", len(p.workers)),
		zap.Int("capacity", cfg.Capacity()))
	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Backend returns the name of the runtime backend.
func (p *Pool) Backend() string { return p.backend }

// LoadScript reads the script at path once and compiles it on every
// worker in turn. Per-worker failures are collected in the report and
// never stop the broadcast.
func (p *Pool) LoadScript(path string) LoadReport {
	report := LoadReport{Path: path}
	if p.closed.Load() {
		for _, w := range p.workers {
			report.Errors = append(report.Errors, &core.CompileError{Worker: w.id, Path: path, Err: core.ErrClosed})
		}
		return report
	}

	source, err := p.loader.LoadScript(path)
	if err != nil {
		p.log.Error("Reading script failed", zap.String("path", path), zap.Error(err))
		for _, w := range p.workers {
			report.Errors = append(report.Errors, &core.CompileError{Worker: w.id, Path: path, Err: err})
			p.metrics.RecordLoad(metrics.LoadFailed)
		}
		return report
	}

	for _, w := range p.workers {
		ok, err := w.LoadScript(path, source)
		switch {
		case err != nil:
			report.Errors = append(report.Errors, err)
			p.metrics.RecordLoad(metrics.LoadFailed)
		case ok:
			report.Registered++
			p.metrics.RecordLoad(metrics.LoadRegistered)
		default:
			report.Missing++
			p.metrics.RecordLoad(metrics.LoadMissing)
		}
	}

	p.log.Info("Script loaded",
		zap.String("path", path),
		zap.Int("registered", report.Registered),
		zap.Int("missing", report.Missing),
		zap.Int("failed", report.Failed()))
	return report
}

// Route runs the mapping function for path on the next worker in round
// robin order. Concurrent routes on different workers run in parallel.
func (p *Pool) Route(meta core.Metadata, doc []byte, path string) emit.Result {
	if p.closed.Load() {
		return emit.Result{Worker: -1, Path: path, Err: core.ErrClosed}
	}
	n := p.counter.Add(1) - 1
	w := p.workers[n%uint64(len(p.workers))]

	start := time.Now()
	res := w.Invoke(meta, doc, path)
	p.metrics.RecordRoute(w.id, outcome(w, path, res), p.backend, res.Len(), time.Since(start))
	return res
}

func outcome(w *Worker, path string, res emit.Result) string {
	switch {
	case errors.Is(res.Err, core.ErrCapacityExceeded):
		return metrics.OutcomeOverflow
	case res.Err != nil:
		return metrics.OutcomeScriptError
	case res.Len() == 0 && !w.Registered(path):
		return metrics.OutcomeUnregistered
	}
	return metrics.OutcomeOK
}

// Close releases every worker's runtime. Later routes return a result
// carrying core.ErrClosed.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		var errs []error
		for _, w := range p.workers {
			if err := w.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		p.closeErr = errors.Join(errs...)
		p.metrics.SetWorkers(0)
		p.log.Info("Worker pool closed")
	})
	return p.closeErr
}
