package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/pybox-dev/pybox/config"
	"github.com/pybox-dev/pybox/orchestrator"
)

// Executor is the orchestrator surface the server drives.
type Executor interface {
	Execute(ctx context.Context, req orchestrator.ExecutionRequest) orchestrator.ExecutionResult
	Reset(ctx context.Context) error
}

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	executor  Executor
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, executor Executor) (*MCPServer, error) {
	s := &MCPServer{
		config:   cfg,
		logger:   logger,
		executor: executor,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.String("sandbox.backend", s.config.Sandbox.Backend),
		zap.String("sandbox.image", s.config.Sandbox.Image),
		zap.String("sandbox.work_dir", s.config.Sandbox.WorkDir),
		zap.Int("sandbox.memory_mb", s.config.Sandbox.MemoryMB),
		zap.Float64("sandbox.cpu_limit", s.config.Sandbox.CPULimit),
		zap.Int("sandbox.timeout_sec", s.config.Sandbox.TimeoutSec),
		zap.Int("sandbox.install_timeout_sec", s.config.Sandbox.InstallTimeoutSec),
		zap.Bool("sandbox.network_enabled", s.config.Sandbox.NetworkEnabled),
	)

	// Create the MCP server
	s.mcpServer = server.NewMCPServer("pybox", "A sandboxed Python execution server")

	// Register the tools
	s.registerExecuteTool()
	s.registerResetTool()

	return s, nil
}

// registerExecuteTool registers the sandbox_python_execute tool
func (s *MCPServer) registerExecuteTool() {
	tool := mcp.Tool{
		Name: "sandbox_python_execute",
		Description: "Executes Python code in a secure sandbox environment. " +
			"The code runs in an isolated container with limited resources. " +
			"Only print outputs are captured - use print statements to see results. " +
			"The session stays open between calls; use reset_sandbox or auto_terminate to end it.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "The Python code to execute in the sandbox.",
				},
				"timeout": map[string]any{
					"type":        "integer",
					"description": "Execution timeout in seconds (default: 30).",
					"default":     30,
				},
				"install_packages": map[string]any{
					"type":        "string",
					"description": "Optional comma-separated list of pip packages to install before execution.",
					"default":     "",
				},
				"allow_network": map[string]any{
					"type":        "boolean",
					"description": "Whether to allow network access in the sandbox (default: false).",
					"default":     false,
				},
				"auto_terminate": map[string]any{
					"type":        "boolean",
					"description": "Whether to automatically terminate the session after execution (default: false).",
					"default":     false,
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecute)
}

// registerResetTool registers the reset_sandbox tool
func (s *MCPServer) registerResetTool() {
	tool := mcp.Tool{
		Name: "reset_sandbox",
		Description: "Ends the current sandbox session, destroying the environment " +
			"and clearing all installed packages and files.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}

	s.mcpServer.AddTool(tool, s.handleReset)
}

// handleExecute handles the sandbox_python_execute tool
func (s *MCPServer) handleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.Info("code execution requested")

	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	timeout := request.GetInt("timeout", s.config.Sandbox.TimeoutSec)
	packages := splitPackages(request.GetString("install_packages", ""))
	allowNetwork := request.GetBool("allow_network", false)
	autoTerminate := request.GetBool("auto_terminate", false)

	s.logger.Info("executing code in sandbox",
		zap.Int("timeout_sec", timeout),
		zap.Strings("packages", packages),
		zap.Bool("allow_network", allowNetwork),
		zap.Bool("auto_terminate", autoTerminate))

	result := s.executor.Execute(ctx, orchestrator.ExecutionRequest{
		Code:           code,
		TimeoutSeconds: timeout,
		Packages:       packages,
		AllowNetwork:   allowNetwork,
		AutoTerminate:  autoTerminate,
	})

	s.logger.Info("code execution completed",
		zap.Bool("succeeded", result.Succeeded),
		zap.String("error_kind", string(result.ErrorKind)),
		zap.Int("output_len", len(result.RawOutput)))

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: result.HumanMessage,
			},
		},
		IsError: !result.Succeeded,
	}, nil
}

// handleReset handles the reset_sandbox tool
func (s *MCPServer) handleReset(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.Info("sandbox reset requested")

	if err := s.executor.Reset(ctx); err != nil {
		s.logger.Error("sandbox reset failed", zap.Error(err))
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf("Reset failed: %v", err),
				},
			},
			IsError: true,
		}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: "Sandbox session has been reset.",
			},
		},
	}, nil
}

// splitPackages turns the tool's comma-separated package list into the
// ordered package names the orchestrator expects.
func splitPackages(list string) []string {
	var packages []string
	for _, pkg := range strings.Split(list, ",") {
		if pkg = strings.TrimSpace(pkg); pkg != "" {
			packages = append(packages, pkg)
		}
	}
	return packages
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
