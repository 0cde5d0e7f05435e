// Package main is the entry point for the pybox MCP server.
//
// The server exposes sandboxed Python execution to agent callers over the
// Model Context Protocol. Code runs inside an isolated, resource-bounded
// environment whose lifecycle, dependency installation, and teardown are
// handled by the execution orchestrator.
package main
