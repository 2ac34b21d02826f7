// Package config loads the engine configuration from a JSON file and
// MAPENGINE_* environment variables.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/cryguy/mapengine/internal/core"
	"github.com/cryguy/mapengine/internal/mapper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment key EnvOverlay reads.
const EnvPrefix = "MAPENGINE_"

// Config is the full application configuration.
type Config struct {
	Workers        int      `json:"workers"`
	Backend        string   `json:"backend"`
	ResultCapacity int      `json:"result_capacity"`
	ScriptRoot     string   `json:"script_root"`
	Transform      bool     `json:"transform"` // run .js sources through the module transform
	Scripts        []string `json:"scripts"`   // loaded at startup, relative to ScriptRoot
	Logging        Logging  `json:"logging"`
	Server         Server   `json:"server"`
}

// Logging configures the zap logger.
type Logging struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Server configures the route server.
type Server struct {
	Listen          string `json:"listen"`
	MaxConns        int    `json:"max_conns"`         // 0 means unlimited
	MaxMessageBytes int64  `json:"max_message_bytes"` // websocket read limit
}

// Defaults returns a Config with safe defaults.
func Defaults() Config {
	return Config{
		Workers:        4,
		Backend:        core.DefaultBackend,
		ResultCapacity: core.DefaultResultCapacity,
		ScriptRoot:     ".",
		Logging:        Logging{Level: "info"},
		Server: Server{
			Listen:          ":8095",
			MaxConns:        256,
			MaxMessageBytes: 1 << 20,
		},
	}
}

// Engine returns the library-owned subset of the configuration.
func (c Config) Engine() core.EngineConfig {
	return core.EngineConfig{
		Workers:        c.Workers,
		Backend:        c.Backend,
		ResultCapacity: c.ResultCapacity,
	}
}

// LoadJSON parses a Config from raw JSON, or from the file at path when raw
// is empty. Unknown fields are rejected.
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Merge overlays over onto base. Zero values in over do not override.
func Merge(base, over Config) Config {
	out := base
	if over.Workers != 0 {
		out.Workers = over.Workers
	}
	if s := strings.TrimSpace(over.Backend); s != "" {
		out.Backend = s
	}
	if over.ResultCapacity != 0 {
		out.ResultCapacity = over.ResultCapacity
	}
	if s := strings.TrimSpace(over.ScriptRoot); s != "" {
		out.ScriptRoot = s
	}
	if over.Transform {
		out.Transform = true
	}
	if len(over.Scripts) > 0 {
		out.Scripts = slices.Clone(over.Scripts)
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if over.Logging.Development {
		out.Logging.Development = true
	}
	if s := strings.TrimSpace(over.Server.Listen); s != "" {
		out.Server.Listen = s
	}
	if over.Server.MaxConns != 0 {
		out.Server.MaxConns = over.Server.MaxConns
	}
	if over.Server.MaxMessageBytes != 0 {
		out.Server.MaxMessageBytes = over.Server.MaxMessageBytes
	}
	return out
}

// EnvOverlay builds an override Config from environment entries of the
// form KEY=VALUE. Supported keys after the MAPENGINE_ prefix: WORKERS,
// BACKEND, RESULT_CAPACITY, SCRIPT_ROOT, TRANSFORM, SCRIPTS (comma
// separated), LOG_LEVEL, LOG_DEVELOPMENT, LISTEN, MAX_CONNS,
// MAX_MESSAGE_BYTES. Other keys are ignored.
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		name := strings.TrimPrefix(key, EnvPrefix)
		val = strings.TrimSpace(val)
		var err error
		switch name {
		case "WORKERS":
			over.Workers, err = strconv.Atoi(val)
		case "BACKEND":
			over.Backend = val
		case "RESULT_CAPACITY":
			over.ResultCapacity, err = strconv.Atoi(val)
		case "SCRIPT_ROOT":
			over.ScriptRoot = val
		case "TRANSFORM":
			over.Transform, err = strconv.ParseBool(val)
		case "SCRIPTS":
			for _, s := range strings.Split(val, ",") {
				if s = strings.TrimSpace(s); s != "" {
					over.Scripts = append(over.Scripts, s)
				}
			}
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "LOG_DEVELOPMENT":
			over.Logging.Development, err = strconv.ParseBool(val)
		case "LISTEN":
			over.Server.Listen = val
		case "MAX_CONNS":
			over.Server.MaxConns, err = strconv.Atoi(val)
		case "MAX_MESSAGE_BYTES":
			over.Server.MaxMessageBytes, err = strconv.ParseInt(val, 10, 64)
		}
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", key, err)
		}
	}
	return over, nil
}

// Validate checks the boundaries the engine relies on.
func Validate(cfg Config) error {
	if cfg.Workers < 1 || cfg.Workers > core.MaxWorkers {
		return fmt.Errorf("config: workers must be in 1..%d, got %d", core.MaxWorkers, cfg.Workers)
	}
	if cfg.ResultCapacity < 1 {
		return fmt.Errorf("config: result_capacity must be >= 1, got %d", cfg.ResultCapacity)
	}
	backend := cfg.Engine().BackendName()
	if !slices.Contains(mapper.Backends(), backend) {
		return fmt.Errorf("config: backend %q not available (have %v)", backend, mapper.Backends())
	}
	if _, err := zapcore.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("config: logging.level: %w", err)
	}
	if cfg.Server.MaxConns < 0 {
		return errors.New("config: server.max_conns must be >= 0")
	}
	if cfg.Server.MaxMessageBytes < 0 {
		return errors.New("config: server.max_message_bytes must be >= 0")
	}
	for _, s := range cfg.Scripts {
		if strings.TrimSpace(s) == "" {
			return errors.New("config: script path cannot be empty")
		}
	}
	return nil
}

// Load resolves the effective configuration: defaults, then the JSON file
// at path (if any), then the environment. The result is validated.
func Load(path string, environ []string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		file, err := LoadJSON(path, nil)
		if err != nil {
			return Config{}, err
		}
		cfg = Merge(cfg, file)
	}
	env, err := EnvOverlay(environ)
	if err != nil {
		return Config{}, err
	}
	cfg = Merge(cfg, env)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
