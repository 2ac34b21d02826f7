package core

// ScriptLoader retrieves mapping script source code by path.
type ScriptLoader interface {
	LoadScript(path string) (string, error)
}

// ScriptLoaderFunc adapts a plain function to ScriptLoader.
type ScriptLoaderFunc func(path string) (string, error)

// LoadScript calls f(path).
func (f ScriptLoaderFunc) LoadScript(path string) (string, error) {
	return f(path)
}

// StaticScripts is an in-memory ScriptLoader keyed by path.
type StaticScripts map[string]string

// LoadScript returns the source registered under path.
func (s StaticScripts) LoadScript(path string) (string, error) {
	src, ok := s[path]
	if !ok {
		return "", &ScriptNotFoundError{Path: path}
	}
	return src, nil
}
