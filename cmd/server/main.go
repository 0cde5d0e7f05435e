// Package main wires the pybox MCP server together.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/pybox-dev/pybox/config"
	"github.com/pybox-dev/pybox/logger"
	"github.com/pybox-dev/pybox/mcpserver"
	"github.com/pybox-dev/pybox/orchestrator"
	"github.com/pybox-dev/pybox/sandbox"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Sandbox provider factory based on config
			sandbox.NewFromConfig,

			// Execution orchestrator
			orchestrator.New,
			func(o *orchestrator.Orchestrator) mcpserver.Executor { return o },

			// MCP Server
			mcpserver.New,
		),

		fx.Invoke(
			// Tear down a live sandbox session on shutdown
			func(lc fx.Lifecycle, orch *orchestrator.Orchestrator) {
				lc.Append(fx.Hook{
					OnStop: func(ctx context.Context) error {
						return orch.Reset(ctx)
					},
				})
			},

			// Start the appropriate transport based on config
			func(cfg *config.Config, server *mcpserver.MCPServer) {
				switch cfg.Server.Transport {
				case "stdio":
					// Use fx to run this as a background task
					go func() {
						if err := server.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				case "http":
					go func() {
						if err := server.ServeHTTP(); err != nil {
							panic(err)
						}
					}()
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}
