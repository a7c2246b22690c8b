package model

// TurnInput is the graph input for one conversational turn.
type TurnInput struct {
	SessionID string   `json:"session_id"`
	Query     string   `json:"query"`
	// Documents holds the marked-up text of every file mounted on this turn.
	Documents []string `json:"documents"`
	// ToolDefs are request-scoped dynamic tool declarations; the tool set is
	// rebuilt from these on every run, never mutated on a shared agent.
	ToolDefs []ToolDefinition `json:"tool_defs"`
}

// TurnResult is the terminal graph output. Exactly one of the terminal nodes
// (chat, auditor on MISSING, policy_enrichment) fills FinalReport and sets
// Completed before the run reaches END.
type TurnResult struct {
	FinalReport      string
	Intent           Intent
	Decision         *AuditDecision
	MissingMaterials []string
	Trace            []string
	Completed        bool
}

// WorkflowState is the per-run local state of the workflow graph.
// Concurrency model for Eino local state:
//   - registered via compose.WithGenLocalState, one value per Invoke;
//   - read and written only inside WithStatePreHandler/WithStatePostHandler
//     or compose.ProcessState, which Eino serializes;
//   - cross-turn continuity lives in the Session Store, never here.
type WorkflowState struct {
	SessionID string
	Query     string

	// Accumulated uploaded-document text, append-only within the turn.
	Documents []string

	Intent   Intent
	Entities *Entities
	Decision *AuditDecision

	// Evidence fragments gathered by agent tools, append-only.
	WebEvidence  []string
	RAGStandards []string

	// Trace is the ordered internal reasoning/decision log for this turn.
	Trace []string

	MissingMaterials []string
	FinalReport      string
	Completed        bool

	ToolDefs []ToolDefinition
}

// AddTrace appends one human-readable line to the turn's internal trace.
func (s *WorkflowState) AddTrace(line string) {
	s.Trace = append(s.Trace, line)
}
