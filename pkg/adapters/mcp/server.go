// Package mcp exposes a Workflow as Model Context Protocol tools and resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/graph"
)

const (
	graphURI = "weft://graph"
	stateURI = "weft://state"
)

// Workflow is the subset of weft.Workflow exposed to MCP clients.
type Workflow interface {
	Graph() *graph.Store
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	CheckNow(ctx context.Context, nodeID string) error
	Snapshot() domain.Snapshot
	Save(ctx context.Context) error
	Load(ctx context.Context) (bool, error)
	Validate() error
}

var _ Workflow = (*weft.Workflow)(nil)

// Server wraps a Workflow and exposes it as an MCP Server.
type Server struct {
	workflow  Workflow
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(wf Workflow, opts ...Option) *Server {
	s := &Server{
		workflow:  wf,
		mcpServer: server.NewMCPServer("weft-mcp", strings.TrimSpace(weft.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_workflow",
		mcp.WithDescription("Start executing the workflow from its trigger nodes."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := s.workflow.Start(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("start failed: %v", err)), nil
		}
		return s.jsonResult(s.workflow.Snapshot())
	})

	s.mcpServer.AddTool(mcp.NewTool("stop_workflow",
		mcp.WithDescription("Stop the workflow, tearing down every armed trigger."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := s.workflow.Stop(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stop failed: %v", err)), nil
		}
		return s.jsonResult(s.workflow.Snapshot())
	})

	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Get the execution state: running flag, per-node status, results and errors."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.jsonResult(s.workflow.Snapshot())
	})

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the workflow graph: nodes and edges."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.jsonResult(s.workflow.Graph().Graph())
	})

	s.mcpServer.AddTool(mcp.NewTool("check_node",
		mcp.WithDescription("Ask an armed trigger node to poll for new items immediately."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("ID of the trigger node")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		nodeID, err := request.RequireString("node_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.workflow.CheckNow(ctx, nodeID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("check failed: %v", err)), nil
		}
		return mcp.NewToolResultText("checked " + nodeID), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("save_workflow",
		mcp.WithDescription("Persist the current graph."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := s.workflow.Save(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", err)), nil
		}
		return mcp.NewToolResultText("saved"), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("load_workflow",
		mcp.WithDescription("Replace the graph with the saved one, if any."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		loaded, err := s.workflow.Load(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
		}
		if !loaded {
			return mcp.NewToolResultText("no saved workflow"), nil
		}
		return s.jsonResult(s.workflow.Graph().Graph())
	})

	s.mcpServer.AddTool(mcp.NewTool("validate_workflow",
		mcp.WithDescription("Check the graph for dangling edges, unknown types and invalid node configs."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := s.workflow.Validate(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("valid"), nil
	})
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(graphURI, "Current Workflow Graph",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return s.jsonResource(graphURI, s.workflow.Graph().Graph())
	})

	s.mcpServer.AddResource(mcp.NewResource(stateURI, "Current Execution State",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return s.jsonResource(stateURI, s.workflow.Snapshot())
	})
}

func (s *Server) jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("MCP result encode failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
