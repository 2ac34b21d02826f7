// Package server exposes a map engine over HTTP: a websocket route
// endpoint, script loading and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/cryguy/mapengine/internal/core"
	"github.com/cryguy/mapengine/internal/emit"
	"github.com/cryguy/mapengine/internal/mapper"
)

// DefaultMaxMessageBytes is the websocket read limit when none is set.
const DefaultMaxMessageBytes = 1 << 20

// Router is the engine surface the server drives.
type Router interface {
	LoadScript(path string) mapper.LoadReport
	Route(meta core.Metadata, doc []byte, path string) emit.Result
}

// Options configures a Server.
type Options struct {
	Logger          *zap.Logger
	Gatherer        prometheus.Gatherer // nil means the default gatherer
	DefaultPath     string              // used by route frames without a path
	MaxMessageBytes int64
}

// Server serves GET /route (websocket), POST /load, GET /metrics and
// GET /health.
type Server struct {
	router Router
	opts   Options
	log    *zap.Logger
}

// New creates a Server routing through r.
func New(r Router, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = DefaultMaxMessageBytes
	}
	return &Server{router: r, opts: opts, log: opts.Logger}
}

// Handler returns the HTTP handler with every endpoint mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /route", s.handleRoute)
	mux.HandleFunc("POST /load", s.handleLoad)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Serve accepts connections on ln until ctx is done, holding at most
// maxConns connections open at once (0 means no limit).
func (s *Server) Serve(ctx context.Context, ln net.Listener, maxConns int) error {
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("Route server listening", zap.String("addr", ln.Addr().String()), zap.Int("max_conns", maxConns))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string, maxConns int) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, maxConns)
}

// RouteRequest is one websocket text frame sent to /route.
type RouteRequest struct {
	Meta core.Metadata   `json:"meta"`
	Doc  json.RawMessage `json:"doc"`
	Path string          `json:"path,omitempty"`
}

// RouteResponse answers one RouteRequest.
type RouteResponse struct {
	RequestID string   `json:"request_id"`
	Worker    int      `json:"worker"`
	Tokens    []string `json:"tokens"`
	Values    []any    `json:"values"`
	Error     string   `json:"error,omitempty"`
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.opts.MaxMessageBytes)

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				s.log.Debug("Websocket read ended", zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			_ = conn.Close(websocket.StatusUnsupportedData, "text frames only")
			return
		}

		resp := s.route(data)
		out, err := json.Marshal(resp)
		if err != nil {
			out, _ = json.Marshal(RouteResponse{RequestID: resp.RequestID, Worker: resp.Worker, Error: err.Error()})
		}
		if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
			s.log.Debug("Websocket write failed", zap.Error(err))
			return
		}
	}
}

func (s *Server) route(frame []byte) RouteResponse {
	resp := RouteResponse{RequestID: uuid.NewString(), Worker: -1}
	log := s.log.With(zap.String("request_id", resp.RequestID))

	var req RouteRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		resp.Error = fmt.Sprintf("decoding route request: %v", err)
		return resp
	}
	if req.Path == "" {
		req.Path = s.opts.DefaultPath
	}
	if req.Path == "" {
		resp.Error = "route request has no path"
		return resp
	}
	if len(req.Doc) == 0 {
		req.Doc = json.RawMessage("null")
	}

	res := s.router.Route(req.Meta, req.Doc, req.Path)
	resp.Worker = res.Worker
	resp.Tokens = make([]string, 0, res.Len())
	for _, k := range res.Tokens() {
		resp.Tokens = append(resp.Tokens, k.String())
	}
	values, decodeErr := res.Decode()
	resp.Values = make([]any, 0, len(values))
	for _, v := range values {
		resp.Values = append(resp.Values, emit.JSONSafe(v))
	}

	switch {
	case res.Err != nil:
		resp.Error = res.Err.Error()
	case decodeErr != nil:
		resp.Error = decodeErr.Error()
	}
	log.Debug("Routed",
		zap.String("path", req.Path),
		zap.String("id", req.Meta.ID),
		zap.Int("worker", res.Worker),
		zap.Int("tokens", res.Len()),
		zap.String("error", resp.Error))
	return resp
}

// LoadRequest is the body of POST /load.
type LoadRequest struct {
	Path string `json:"path"`
}

// LoadResponse reports a broadcast load.
type LoadResponse struct {
	Path       string   `json:"path"`
	Registered int      `json:"registered"`
	Missing    int      `json:"missing"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil || req.Path == "" {
		http.Error(w, `{"error":"body must be {\"path\": \"...\"}"}`, http.StatusBadRequest)
		return
	}

	report := s.router.LoadScript(req.Path)
	resp := LoadResponse{
		Path:       report.Path,
		Registered: report.Registered,
		Missing:    report.Missing,
		Failed:     report.Failed(),
	}
	for _, err := range report.Errors {
		resp.Errors = append(resp.Errors, err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("Writing load response failed", zap.Error(err))
	}
}
