// Package mcp exposes the gate over the Model Context Protocol on
// stdio: policy checks, compliance reporting, audit verification, and
// knowledge retrieval as MCP tools.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/opgate/opgate/internal/learner"
	"github.com/opgate/opgate/internal/ledger"
	"github.com/opgate/opgate/internal/orchestrator"
	"github.com/opgate/opgate/internal/oversight"
)

// Server wraps the MCP SDK server around the oversight components.
type Server struct {
	mcpServer *mcpsdk.Server
	engine    *oversight.Engine
	orch      *orchestrator.Orchestrator
	ledger    *ledger.Ledger
	learner   *learner.Learner
}

// New creates an MCP server over the given components.
func New(engine *oversight.Engine, orch *orchestrator.Orchestrator, lg *ledger.Ledger, lrn *learner.Learner) *Server {
	s := &Server{
		engine:  engine,
		orch:    orch,
		ledger:  lg,
		learner: lrn,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "opgate",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all opgate tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "opgate_check",
		Description: "Evaluate an operation against the active principles and impact indicators without executing it. Returns the decision with violations and guidance.",
	}, s.handleCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "opgate_report",
		Description: "Produce the compliance report: decision counts, approval rate, entries per event type, and audit chain integrity.",
	}, s.handleReport)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "opgate_audit_verify",
		Description: "Verify the audit ledger hash chain. Reports the first broken sequence number if the chain is invalid.",
	}, s.handleAuditVerify)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "opgate_knowledge",
		Description: "Retrieve consolidated knowledge entries for a category, in insertion order.",
	}, s.handleKnowledge)
}
