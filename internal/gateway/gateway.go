package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stellarlinkco/gsc-mcp/internal/config"
	"github.com/stellarlinkco/gsc-mcp/internal/logging"
	"github.com/stellarlinkco/gsc-mcp/internal/tools"
)

const tracerName = "github.com/stellarlinkco/gsc-mcp/internal/gateway"

// Options for creating a Gateway
type Options struct {
	Transport  mcp.Transport  // defaults to stdio
	SignalChan chan os.Signal // for testing signal handling
	Logger     *slog.Logger
	Tracer     trace.Tracer
}

// Gateway serves the tool catalog over MCP.
type Gateway struct {
	cfg        *config.Config
	registry   *tools.Registry
	server     *mcp.Server
	transport  mcp.Transport
	logger     *slog.Logger
	tracer     trace.Tracer
	signalChan chan os.Signal
}

// New creates a Gateway serving on stdio
func New(cfg *config.Config, registry *tools.Registry) (*Gateway, error) {
	return NewWithOptions(cfg, registry, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(cfg *config.Config, registry *tools.Registry, opts Options) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("gateway: config is required")
	}
	if registry == nil {
		return nil, errors.New("gateway: tool registry is required")
	}

	g := &Gateway{
		cfg:        cfg,
		registry:   registry,
		transport:  opts.Transport,
		logger:     opts.Logger,
		tracer:     opts.Tracer,
		signalChan: opts.SignalChan,
	}
	if g.transport == nil {
		g.transport = &mcp.StdioTransport{}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = logging.Component(g.logger, "gateway")
	if g.tracer == nil {
		g.tracer = otel.Tracer(tracerName)
	}

	g.server = mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
	}, &mcp.ServerOptions{
		Instructions: cfg.Server.Instructions,
		Logger:       logging.Component(g.logger, "mcp"),
	})

	for _, t := range registry.Tools() {
		g.server.AddTool(protocolTool(t), g.handle)
	}
	return g, nil
}

// Server exposes the underlying MCP server, e.g. to connect extra transports.
func (g *Gateway) Server() *mcp.Server {
	return g.server
}

func protocolTool(t tools.Tool) *mcp.Tool {
	ann := &mcp.ToolAnnotations{
		Title:         t.Title,
		ReadOnlyHint:  t.ReadOnly,
		OpenWorldHint: boolPtr(true),
	}
	if !t.ReadOnly {
		ann.DestructiveHint = boolPtr(false)
		ann.IdempotentHint = true
	}
	return &mcp.Tool{
		Name:        t.Name,
		Title:       t.Title,
		Description: t.Description,
		InputSchema: t.InputSchema,
		Annotations: ann,
	}
}

func (g *Gateway) handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.Params.Name
	callID := uuid.NewString()
	logger := g.logger.With("tool", name, "call_id", callID)

	ctx, span := g.tracer.Start(ctx, "tool."+name, trace.WithAttributes(
		attribute.String("mcp.tool", name),
		attribute.String("mcp.call_id", callID),
	))
	defer span.End()

	start := time.Now()
	text, err := g.registry.Call(ctx, name, req.Params.Arguments)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("tool call failed", "duration", elapsed, "error", err)
		return errorResult(err), nil
	}

	span.SetStatus(codes.Ok, "")
	logger.Info("tool call completed", "duration", elapsed, "bytes", len(text))
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

// Run serves until the session ends, ctx is cancelled, or SIGINT/SIGTERM
// arrives. A signal or cancellation is a clean shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}
	go func() {
		select {
		case sig := <-sigCh:
			g.logger.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	g.logger.Info("serving tools", "server", g.cfg.Server.Name, "version", g.cfg.Server.Version, "tools", len(g.registry.Tools()))
	err := g.server.Run(ctx, g.transport)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("run mcp server: %w", err)
	}
	g.logger.Info("shutdown complete")
	return nil
}

func boolPtr(b bool) *bool { return &b }
