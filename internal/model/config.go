package model

// ================ Config ================

// RouterModelConfig drives the small, fast model used for intent routing,
// chit-chat and title generation.
type RouterModelConfig struct {
	Model       string  `envconfig:"ROUTER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"ROUTER_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"ROUTER_TEMPERATURE" default:"0.1"`
}

// ExpertModelConfig drives the stronger model used for extraction, auditing
// and policy analysis.
type ExpertModelConfig struct {
	Model       string  `envconfig:"EXPERT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"EXPERT_MAX_TOKENS" default:"8192"`
	Temperature float32 `envconfig:"EXPERT_TEMPERATURE" default:"0.3"`
}

// WorkflowConfig holds the orchestration tunables. Truncation and window
// sizes are deliberately configuration, not constants.
type WorkflowConfig struct {
	// ExtractMaxChars bounds the document prefix fed to entity extraction.
	ExtractMaxChars int `envconfig:"WORKFLOW_EXTRACT_MAX_CHARS" default:"30000"`
	// ToolMaxCalls caps agent-loop iterations; the loop must never be unbounded.
	ToolMaxCalls int `envconfig:"WORKFLOW_TOOL_MAX_CALLS" default:"8"`
	// RetrievalTopK is the passage count requested from the policy KB.
	RetrievalTopK int `envconfig:"WORKFLOW_RETRIEVAL_TOP_K" default:"4"`
	// RouterHistoryTurns is the transcript window given to the intent router.
	RouterHistoryTurns int `envconfig:"WORKFLOW_ROUTER_HISTORY_TURNS" default:"3"`
	// ChatHistoryTurns is the transcript window given to the chat leaf.
	ChatHistoryTurns int `envconfig:"WORKFLOW_CHAT_HISTORY_TURNS" default:"10"`
}
