// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes the
// sandboxed Python execution tool to agent callers. It uses the
// mark3labs/mcp-go library to handle the protocol details and is a pure
// pass-through: it builds an execution request from tool arguments and
// returns the result's human-readable message.
package mcpserver
