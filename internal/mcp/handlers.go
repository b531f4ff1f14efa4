package mcp

import (
	"context"

	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/opgate/opgate/internal/learner"
	"github.com/opgate/opgate/internal/model"
)

// CheckInput defines parameters for the opgate_check tool.
type CheckInput struct {
	Operation string         `json:"operation" jsonschema:"operation name"`
	Context   map[string]any `json:"context,omitempty" jsonschema:"operation context fields (purpose, harmAssessment, containsPersonalData, ...)"`
}

// CheckOutput contains the oversight decision.
type CheckOutput struct {
	Approved   bool              `json:"approved"`
	RiskLevel  string            `json:"risk_level"`
	Violations []model.Violation `json:"violations,omitempty"`
	Guidance   string            `json:"guidance,omitempty"`
}

// ReportInput is empty.
type ReportInput struct{}

// ReportOutput contains the compliance report.
type ReportOutput struct {
	Decisions     uint64         `json:"decisions"`
	Approvals     uint64         `json:"approvals"`
	ApprovalRate  float64        `json:"approval_rate"`
	EntriesByType map[string]int `json:"entries_by_type"`
	ChainValid    bool           `json:"chain_valid"`
	ChainEntries  int            `json:"chain_entries"`
}

// AuditVerifyInput is empty.
type AuditVerifyInput struct{}

// AuditVerifyOutput contains the chain verification result.
type AuditVerifyOutput struct {
	Valid    bool    `json:"valid"`
	Entries  int     `json:"entries"`
	BrokenAt *uint64 `json:"broken_at,omitempty"`
	Detail   string  `json:"detail,omitempty"`
}

// KnowledgeInput defines parameters for the opgate_knowledge tool.
type KnowledgeInput struct {
	Category string `json:"category" jsonschema:"knowledge category to retrieve"`
}

// KnowledgeOutput lists the category's entries.
type KnowledgeOutput struct {
	Category string                   `json:"category"`
	Entries  []learner.KnowledgeEntry `json:"entries"`
}

func (s *Server) handleCheck(ctx context.Context, _ *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, CheckOutput, error) {
	op := model.Operation{
		ID:      uuid.NewString(),
		Name:    input.Operation,
		Context: input.Context,
	}
	decision, err := s.engine.Oversee(ctx, op)
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, CheckOutput{}, err
	}
	out := CheckOutput{
		Approved:   decision.Approved,
		RiskLevel:  string(decision.RiskLevel),
		Violations: decision.Violations,
		Guidance:   decision.Guidance,
	}
	return nil, out, nil
}

func (s *Server) handleReport(ctx context.Context, _ *mcpsdk.CallToolRequest, _ ReportInput) (*mcpsdk.CallToolResult, ReportOutput, error) {
	report, err := s.orch.ComplianceReport(ctx)
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, ReportOutput{}, err
	}
	out := ReportOutput{
		Decisions:     report.Decisions,
		Approvals:     report.Approvals,
		ApprovalRate:  report.ApprovalRate,
		EntriesByType: report.EntriesByType,
		ChainValid:    report.ChainIntegrity.Valid,
		ChainEntries:  report.ChainIntegrity.Entries,
	}
	return nil, out, nil
}

func (s *Server) handleAuditVerify(ctx context.Context, _ *mcpsdk.CallToolRequest, _ AuditVerifyInput) (*mcpsdk.CallToolResult, AuditVerifyOutput, error) {
	res, err := s.ledger.VerifyIntegrity(ctx)
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, AuditVerifyOutput{}, err
	}
	out := AuditVerifyOutput{
		Valid:    res.Valid,
		Entries:  res.Entries,
		BrokenAt: res.BrokenAt,
		Detail:   res.Detail,
	}
	return nil, out, nil
}

func (s *Server) handleKnowledge(_ context.Context, _ *mcpsdk.CallToolRequest, input KnowledgeInput) (*mcpsdk.CallToolResult, KnowledgeOutput, error) {
	out := KnowledgeOutput{
		Category: input.Category,
		Entries:  s.learner.RetrieveKnowledge(input.Category),
	}
	return nil, out, nil
}
