// Package gojaengine runs map scripts on the pure-Go goja interpreter.
package gojaengine

import (
	"fmt"
	"reflect"

	"github.com/cryguy/mapengine/internal/core"
	"github.com/dop251/goja"
)

// gojaRuntime implements core.JSRuntime on a goja.Runtime. goja runtimes
// are not goroutine-safe; callers hold the worker guard.
type gojaRuntime struct {
	vm *goja.Runtime
}

var _ core.JSRuntime = (*gojaRuntime)(nil)

// New creates a goja runtime wrapped as a core.JSRuntime.
func New() (core.JSRuntime, error) {
	return &gojaRuntime{vm: goja.New()}, nil
}

// Eval evaluates JavaScript and discards the result.
func (r *gojaRuntime) Eval(js string) error {
	_, err := r.vm.RunString(js)
	return err
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *gojaRuntime) EvalString(js string) (string, error) {
	v, err := r.vm.RunString(js)
	if err != nil {
		return "", err
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", nil
	}
	return v.String(), nil
}

// EvalBool evaluates JavaScript and returns the result as a Go bool.
func (r *gojaRuntime) EvalBool(js string) (bool, error) {
	v, err := r.vm.RunString(js)
	if err != nil {
		return false, err
	}
	if v == nil {
		return false, fmt.Errorf("expected bool, got nil")
	}
	b, ok := v.Export().(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", v.Export())
	}
	return b, nil
}

// RegisterFunc registers a Go function as a global JavaScript function,
// marshaling string, int, int64, float64 and bool arguments by reflection.
// A non-nil error in the last return position is thrown as a TypeError.
func (r *gojaRuntime) RegisterFunc(name string, fn any) error {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("RegisterFunc: expected function, got %T", fn)
	}

	wrapper := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < fnType.NumIn() {
			panic(r.vm.NewTypeError("%s requires at least %d argument(s), got %d", name, fnType.NumIn(), len(call.Arguments)))
		}

		goArgs := make([]reflect.Value, fnType.NumIn())
		for i := 0; i < fnType.NumIn(); i++ {
			goArgs[i] = jsToGoArg(call.Argument(i), fnType.In(i))
		}

		results := fnVal.Call(goArgs)

		switch fnType.NumOut() {
		case 0:
			return goja.Undefined()
		case 1:
			return r.vm.ToValue(results[0].Interface())
		case 2:
			if errVal := results[1]; !errVal.IsNil() {
				panic(r.vm.NewTypeError("calling %s: %s", name, errVal.Interface().(error).Error()))
			}
			return r.vm.ToValue(results[0].Interface())
		default:
			return goja.Undefined()
		}
	}
	return r.vm.Set(name, wrapper)
}

// Close drops the interpreter. goja holds no native resources.
func (r *gojaRuntime) Close() error {
	r.vm.Interrupt("runtime closed")
	return nil
}

func jsToGoArg(val goja.Value, targetType reflect.Type) reflect.Value {
	switch targetType.Kind() {
	case reflect.String:
		return reflect.ValueOf(val.String())
	case reflect.Int:
		return reflect.ValueOf(int(val.ToInteger()))
	case reflect.Int64:
		return reflect.ValueOf(val.ToInteger())
	case reflect.Float64:
		return reflect.ValueOf(val.ToFloat())
	case reflect.Bool:
		return reflect.ValueOf(val.ToBoolean())
	default:
		return reflect.Zero(targetType)
	}
}
