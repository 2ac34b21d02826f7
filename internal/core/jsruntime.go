package core

// JSRuntime abstracts the JavaScript engine (QuickJS, goja or V8) behind a
// common interface used by the map workers in internal/mapper. A JSRuntime
// owns exactly one execution context and is not safe for concurrent use;
// callers serialize access themselves.
type JSRuntime interface {
	// Eval evaluates JavaScript source and discards the result.
	Eval(js string) error

	// EvalString evaluates JavaScript and returns the result as a Go string.
	EvalString(js string) (string, error)

	// EvalBool evaluates JavaScript and returns the result as a Go bool.
	EvalBool(js string) (bool, error)

	// RegisterFunc registers a Go function as a global JavaScript function.
	// Arguments and return values are limited to string, int, float64 and
	// bool. A func(...) (T, error) that returns a non-nil error throws a
	// TypeError in the calling script instead of returning.
	RegisterFunc(name string, fn any) error

	// Close releases the execution context.
	Close() error
}

// RuntimeFactory creates a fresh JSRuntime with its own execution context.
type RuntimeFactory func() (JSRuntime, error)
