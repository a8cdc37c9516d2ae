package world

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	MCPPath     = "/mcp"
	HealthPath  = "/healthz"
	MetricsPath = "/metrics"
)

// Server exposes a routing table as an MCP tool server.
type Server struct {
	rt      *RoutingTable
	mcp     *mcp.Server
	metrics *Metrics
	logger  zerolog.Logger
	// instance is echoed by the health endpoint so a launcher can tell its
	// own world from another one bound to the same port.
	instance string
}

func NewServer(name string, rt *RoutingTable, metrics *Metrics, logger zerolog.Logger) *Server {
	s := &Server{
		rt:      rt,
		mcp:     mcp.NewServer(&mcp.Implementation{Name: name, Version: "1.0.0"}, nil),
		metrics: metrics,
		logger:  logger,
	}
	for _, route := range rt.Routes() {
		s.mcp.AddTool(&mcp.Tool{
			Name:        route.Name,
			Description: route.Op.Description,
			InputSchema: route.Op.InputSchema(),
		}, s.handle(route))
	}
	return s
}

func (s *Server) SetInstance(id string) {
	s.instance = id
}

func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

func (s *Server) handle(route Route) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		out, err := s.rt.Invoke(ctx, route.Name, req.Params.Arguments)
		s.metrics.observe(route.Name, err != nil, time.Since(start))
		if err != nil {
			s.logger.Debug().Str("tool", route.Name).Err(err).Msg("tool returned error")
			return errorResult(err), nil
		}
		text, err := renderResult(out)
		if err != nil {
			return errorResult(err), nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, nil
	}
}

func errorResult(err error) *mcp.CallToolResult {
	msg := err.Error()
	var toolErr *ToolOperationError
	if errors.As(err, &toolErr) {
		msg = toolErr.Err.Error()
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

func renderResult(out any) (string, error) {
	switch v := out.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(data), nil
}

// Handler serves MCP over streamable HTTP plus liveness and metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(MCPPath, mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil))
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		health := map[string]any{"status": "ok", "apps": s.rt.Apps()}
		if s.instance != "" {
			health["instance"] = s.instance
		}
		json.NewEncoder(w).Encode(health)
	})
	if s.metrics != nil {
		mux.Handle(MetricsPath, promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return mux
}

// Serve listens on addr until ctx is cancelled. A port that is already bound
// fails immediately.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info().Str("addr", ln.Addr().String()).Strs("apps", s.rt.Apps()).Msg("world listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeStdio serves the same tools over stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}
