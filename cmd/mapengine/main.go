// Command mapengine runs mapping scripts over document sources or serves
// them over a websocket route endpoint.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cryguy/mapengine"
	"github.com/cryguy/mapengine/internal/config"
	"github.com/cryguy/mapengine/internal/docsource"
	"github.com/cryguy/mapengine/internal/logging"
	"github.com/cryguy/mapengine/internal/metrics"
	"github.com/cryguy/mapengine/internal/server"
	"github.com/cryguy/mapengine/internal/source"
)

const usage = `usage:
  mapengine run   -script view.js [-docs docs.db | -jsonl docs.jsonl] [-config cfg.json]
  mapengine serve -script view.js [-listen :8095] [-config cfg.json]
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "mapengine:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	switch args[0] {
	case "run":
		return runCmd(ctx, args[1:], stdout)
	case "serve":
		return serveCmd(ctx, args[1:])
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	return fmt.Errorf("unknown command %q\n%s", args[0], usage)
}

// common holds the flags both subcommands share.
type common struct {
	configPath string
	script     string
	backend    string
	workers    int
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "JSON config file")
	fs.StringVar(&c.script, "script", "", "mapping script, relative to the script root")
	fs.StringVar(&c.backend, "backend", "", "script runtime (overrides config)")
	fs.IntVar(&c.workers, "workers", 0, "number of workers (overrides config)")
}

// setup resolves the configuration and builds the logger and engine.
func (c *common) setup(opts ...mapengine.Option) (config.Config, *zap.Logger, *mapengine.Engine, error) {
	cfg, err := config.Load(c.configPath, os.Environ())
	if err != nil {
		return cfg, nil, nil, err
	}
	cfg = config.Merge(cfg, config.Config{Workers: c.workers, Backend: c.backend})
	if c.script != "" {
		cfg.Scripts = append([]string{c.script}, cfg.Scripts...)
	}
	if err := config.Validate(cfg); err != nil {
		return cfg, nil, nil, err
	}
	if len(cfg.Scripts) == 0 {
		return cfg, nil, nil, errors.New("no script given (-script or config scripts)")
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return cfg, nil, nil, err
	}
	loader := &source.FileLoader{Root: cfg.ScriptRoot, Transform: cfg.Transform}
	opts = append([]mapengine.Option{mapengine.WithLogger(log)}, opts...)
	eng, err := mapengine.New(cfg.Engine(), loader, opts...)
	if err != nil {
		_ = log.Sync()
		return cfg, nil, nil, err
	}

	for _, path := range cfg.Scripts {
		report := eng.LoadScript(path)
		if report.Registered == 0 {
			eng.Close()
			_ = log.Sync()
			if err := report.Err(); err != nil {
				return cfg, nil, nil, fmt.Errorf("loading %s: %w", path, err)
			}
			return cfg, nil, nil, fmt.Errorf("loading %s: script defines no OnMap", path)
		}
	}
	return cfg, log, eng, nil
}

// runLine is one output record of the run command.
type runLine struct {
	ID     string `json:"id"`
	Worker int    `json:"worker"`
	Values []any  `json:"values"`
	Error  string `json:"error,omitempty"`
}

func runCmd(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var c common
	c.register(fs)
	dbPath := fs.String("docs", "", "SQLite document database")
	jsonlPath := fs.String("jsonl", "", "JSON-lines document file (.br for brotli)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		src docsource.Source
		err error
	)
	switch {
	case *dbPath != "" && *jsonlPath != "":
		return errors.New("-docs and -jsonl are mutually exclusive")
	case *dbPath != "":
		src, err = docsource.OpenSQLite(*dbPath)
	case *jsonlPath != "":
		src, err = docsource.OpenJSONLines(*jsonlPath)
	default:
		src = docsource.NewJSONLines(os.Stdin)
	}
	if err != nil {
		return err
	}
	defer src.Close()

	cfg, log, eng, err := c.setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer eng.Close()
	path := cfg.Scripts[0]

	enc := json.NewEncoder(stdout)
	routed, failed := 0, 0
	err = src.Each(ctx, func(d docsource.Document) error {
		res := eng.Route(d.Meta, d.Body, path)
		line := runLine{ID: d.Meta.ID, Worker: res.Worker, Values: []any{}}
		values, decodeErr := res.Decode()
		for _, v := range values {
			line.Values = append(line.Values, mapengine.JSONSafe(v))
		}
		switch {
		case res.Err != nil:
			line.Error = res.Err.Error()
		case decodeErr != nil:
			line.Error = decodeErr.Error()
		}
		if line.Error != "" {
			failed++
		}
		routed++
		return enc.Encode(line)
	})
	log.Info("Run finished", zap.String("path", path), zap.Int("routed", routed), zap.Int("failed", failed))
	return err
}

func serveCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var c common
	c.register(fs)
	listen := fs.String("listen", "", "listen address (overrides config)")
	maxConns := fs.Int("max-conns", -1, "maximum open connections, 0 for no limit (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	cfg, log, eng, err := c.setup(mapengine.WithMetrics(m))
	if err != nil {
		return err
	}
	defer log.Sync()
	defer eng.Close()

	addr := cfg.Server.Listen
	if *listen != "" {
		addr = *listen
	}
	conns := cfg.Server.MaxConns
	if *maxConns >= 0 {
		conns = *maxConns
	}

	srv := server.New(eng, server.Options{
		Logger:          log,
		Gatherer:        reg,
		DefaultPath:     cfg.Scripts[0],
		MaxMessageBytes: cfg.Server.MaxMessageBytes,
	})
	return srv.ListenAndServe(ctx, addr, conns)
}
