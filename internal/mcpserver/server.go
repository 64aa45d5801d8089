// Package mcpserver exposes a toolrouter.Router as an MCP server speaking
// JSON-RPC over stdio. Every tool call is forwarded to the router, which
// resolves execution context, enforces project scope, and merges
// reminders before the result is serialized back to the client.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/kdlbs/scribe-mcp/internal/common/logger"
	"github.com/kdlbs/scribe-mcp/internal/execctx"
	"github.com/kdlbs/scribe-mcp/internal/toolrouter"
)

const serverInstructions = "This server mediates structured progress logging for autonomous coding " +
	"agents working in this repository. Call set_project before any other project-scoped tool. " +
	"Use append_entry after completing meaningful units of work, not after every file edit. " +
	"Check the reminders returned with each response - they surface missing documentation, " +
	"stale logs, and warm-up guidance without you having to ask for them. " +
	"append_event, open_bug, open_security, and link_fix operate independently of the current " +
	"project and are always available."

// Server wraps an *server.MCPServer wired to a toolrouter.Router.
type Server struct {
	mcp    *server.MCPServer
	router *toolrouter.Router
	logger *logger.Logger

	// baseIdentityCache holds the process-level agent_kind/agent_model
	// resolved once at startup; identityFor overlays per-call overrides
	// onto a copy of it for every tool invocation.
	baseIdentityCache execctx.AgentIdentity
}

// New builds a Server with every tool registered against router.
func New(router *toolrouter.Router, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	s := &Server{router: router, logger: log}
	s.mcp = server.NewMCPServer(
		"scribe-mcp",
		"0.1.0",
		server.WithInstructions(serverInstructions),
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// Serve runs the server on stdio until the client disconnects or the
// process receives a termination signal. stdout carries the JSON-RPC
// transport; all logging is routed to stderr by the logger package.
func (s *Server) Serve() error {
	s.logger.Info("scribe mcp server listening on stdio")
	return server.ServeStdio(s.mcp)
}
