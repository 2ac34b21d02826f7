// Package source loads mapping scripts from disk.
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/cryguy/mapengine/internal/core"
	"github.com/evanw/esbuild/pkg/api"
)

// DefaultMaxBytes bounds the decoded size of one script.
const DefaultMaxBytes = 1 << 20

// moduleGlobal receives the exports of a transformed module.
const moduleGlobal = "globalThis.__map_module"

// exposeEntryJS publishes a module's OnMap export (or its default export
// when that is a function) as the global entry point.
const exposeEntryJS = `;(function(m) {
	if (!m) return;
	var f = typeof m.OnMap === "function" ? m.OnMap : m.default;
	if (typeof f === "function") globalThis.OnMap = f;
})(globalThis.__map_module);
delete globalThis.__map_module;
`

// FileLoader reads scripts below Root. Files ending in .br are brotli
// compressed; the name without .br decides how the source is treated.
// .mjs, .ts and .mts sources are transformed from module form into a plain
// script, as are .js sources using import or export when Transform is set.
// Plain .js scripts are always loaded as written.
type FileLoader struct {
	Root      string
	Transform bool  // also transform .js modules
	MaxBytes  int64 // 0 means DefaultMaxBytes
}

var _ core.ScriptLoader = (*FileLoader)(nil)

// LoadScript returns the script source stored at path relative to Root.
func (l *FileLoader) LoadScript(path string) (string, error) {
	full, err := l.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := ReadFile(full, l.maxBytes())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &core.ScriptNotFoundError{Path: path}
		}
		return "", err
	}

	name := strings.TrimSuffix(full, ".br")
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".ts", ".mts":
		return TransformModule(string(data), api.LoaderTS)
	case ".mjs":
		return TransformModule(string(data), api.LoaderJS)
	default:
		if l.Transform && isModule(string(data)) {
			return TransformModule(string(data), api.LoaderJS)
		}
		return string(data), nil
	}
}

func (l *FileLoader) maxBytes() int64 {
	if l.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return l.MaxBytes
}

// resolve maps path into Root and rejects paths that leave it.
func (l *FileLoader) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty script path")
	}
	root := l.Root
	if root == "" {
		root = "."
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("script path %q must be relative", path)
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("script path %q escapes the script root", path)
	}
	return filepath.Join(root, clean), nil
}

// ReadFile reads the file at path, decompressing it when the name ends in
// .br. Content larger than max bytes after decoding is rejected.
func ReadFile(path string, max int64) ([]byte, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, max+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, max)
	}
	return data, nil
}

// Open opens path for reading and layers a brotli decoder over it when
// the name ends in .br.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".br") {
		return f, nil
	}
	return &brotliFile{Reader: brotli.NewReader(f), f: f}, nil
}

type brotliFile struct {
	*brotli.Reader
	f *os.File
}

func (b *brotliFile) Close() error { return b.f.Close() }

// isModule reports whether esbuild parses source as an ES module. Sources
// that fail to parse count as modules so TransformModule reports the error.
func isModule(source string) bool {
	result := api.Build(api.BuildOptions{
		Stdin:    &api.StdinOptions{Contents: source, Loader: api.LoaderJS},
		Metafile: true,
		Write:    false,
		LogLevel: api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return true
	}
	var meta struct {
		Inputs map[string]struct {
			Format string `json:"format"`
		} `json:"inputs"`
	}
	if err := json.Unmarshal([]byte(result.Metafile), &meta); err != nil {
		return true
	}
	for _, in := range meta.Inputs {
		if in.Format == "esm" {
			return true
		}
	}
	return false
}

// TransformModule converts an ES module (or TypeScript) source into a plain
// script that defines the global OnMap from the module's exports.
func TransformModule(source string, loader api.Loader) (string, error) {
	result := api.Transform(source, api.TransformOptions{
		Loader:     loader,
		Format:     api.FormatIIFE,
		GlobalName: moduleGlobal,
		Target:     api.ES2017,
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, m := range result.Errors {
			if m.Location != nil {
				msgs = append(msgs, fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text))
			} else {
				msgs = append(msgs, m.Text)
			}
		}
		return "", fmt.Errorf("transforming module: %s", strings.Join(msgs, "; "))
	}
	var buf bytes.Buffer
	buf.Write(result.Code)
	buf.WriteString(exposeEntryJS)
	return buf.String(), nil
}
