// Package mapper runs mapping scripts on a fixed pool of isolated script
// workers and collects their emitted values.
package mapper

import (
	"fmt"
	"sync"

	"github.com/cryguy/mapengine/internal/core"
	"github.com/cryguy/mapengine/internal/emit"
	"go.uber.org/zap"
)

// Worker owns one script runtime, the registry of scripts compiled into
// it and the result buffer its invocations write to. All access goes
// through mu; parallelism only exists across workers.
type Worker struct {
	id  int
	log *zap.Logger

	mu       sync.Mutex
	rt       core.JSRuntime
	registry map[string]bool
	buf      *emit.Buffer
	closed   bool
}

// NewWorker installs the emit bridge into rt and returns a worker that
// owns it. On error rt is left for the caller to close.
func NewWorker(id int, rt core.JSRuntime, capacity int, log *zap.Logger) (*Worker, error) {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Worker{
		id:       id,
		log:      log.With(zap.Int("worker", id)),
		rt:       rt,
		registry: make(map[string]bool),
		buf:      emit.NewBuffer(capacity),
	}
	if err := rt.RegisterFunc(emitSinkName, w.sink); err != nil {
		return nil, fmt.Errorf("registering emit sink: %w", err)
	}
	if err := rt.Eval(bootstrapSource(w.buf.Capacity())); err != nil {
		return nil, fmt.Errorf("installing bootstrap: %w", err)
	}
	return w, nil
}

// ID returns the worker's index in its pool.
func (w *Worker) ID() int { return w.id }

// sink receives the descriptors of one emit call. An error aborts the
// calling script with a TypeError; the buffer keeps what fit.
func (w *Worker) sink(descriptors string) (string, error) {
	args, err := emit.DecodeArgs([]byte(descriptors))
	if err != nil {
		return "", err
	}
	if err := emit.FlattenAll(w.buf, args); err != nil {
		return "", err
	}
	return "", nil
}

// Registered reports whether path has a mapping function on this worker.
func (w *Worker) Registered(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registry[path]
}

// LoadScript runs source in the worker's context and registers its global
// OnMap under path. A failing script leaves any earlier registration for
// path in place and returns a *core.CompileError. A script that runs but
// defines no OnMap returns registered == false and no error.
func (w *Worker) LoadScript(path, source string) (registered bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false, &core.CompileError{Worker: w.id, Path: path, Err: core.ErrClosed}
	}
	if err := w.rt.Eval(clearEntryJS); err != nil {
		return false, w.compileError(path, err)
	}
	if err := w.rt.Eval(source); err != nil {
		return false, w.compileError(path, err)
	}
	ok, err := w.rt.EvalBool(registerJS(path))
	if err != nil {
		return false, w.compileError(path, err)
	}
	if !ok {
		w.log.Warn("Script defines no OnMap", zap.String("path", path))
		return false, nil
	}
	w.registry[path] = true
	w.log.Debug("Script registered", zap.String("path", path))
	return true, nil
}

func (w *Worker) compileError(path string, err error) error {
	w.log.Error("Script failed to compile", zap.String("path", path), zap.Error(err))
	return &core.CompileError{Worker: w.id, Path: path, Err: err}
}

// Invoke runs the mapping function registered under path against one
// document and returns an owned copy of everything it emitted. An
// unregistered path yields an empty result. Script exceptions and capacity
// overflow are recorded in Result.Err with the tokens written before them.
func (w *Worker) Invoke(meta core.Metadata, doc []byte, path string) (res emit.Result) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Reset()
	if w.closed {
		res = w.snapshot(path)
		res.Err = core.ErrClosed
		return res
	}
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Panic during invoke", zap.String("path", path), zap.Any("panic", r))
			res = w.snapshot(path)
			res.Err = &core.ScriptError{Worker: w.id, Path: path, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if !w.registry[path] {
		return w.snapshot(path)
	}

	runErr := w.rt.Eval(invokeJS(path, meta, doc))
	res = w.snapshot(path)
	switch {
	case w.buf.Err() != nil:
		// Overflow wins over the TypeError the sink threw to stop the script.
		res.Err = w.buf.Err()
		w.log.Warn("Emit capacity exceeded",
			zap.String("path", path),
			zap.String("id", meta.ID),
			zap.Int("tokens", res.Len()),
			zap.Error(res.Err))
	case runErr != nil:
		res.Err = &core.ScriptError{Worker: w.id, Path: path, Err: runErr}
		w.log.Warn("Mapping function threw",
			zap.String("path", path),
			zap.String("id", meta.ID),
			zap.Int("tokens", res.Len()),
			zap.Error(runErr))
	default:
		w.log.Debug("Invoked",
			zap.String("path", path),
			zap.String("id", meta.ID),
			zap.Int("tokens", res.Len()))
	}
	return res
}

func (w *Worker) snapshot(path string) emit.Result {
	res := w.buf.Snapshot()
	res.Worker = w.id
	res.Path = path
	return res
}

// Close releases the worker's runtime.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.rt.Close()
}
