package model

import "context"

// ParamType is the declared type of one dynamic-tool parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamInteger ParamType = "integer"
)

// ParamSpec declares one named parameter of a dynamic tool.
type ParamSpec struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required"`
}

// ToolDefinition is a user-declared HTTP-endpoint wrapper that can be
// materialized into an invocable agent tool. Disabled definitions must
// never be materialized.
type ToolDefinition struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name"`
	Description string            `json:"desc"`
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers,omitempty"`
	Params      []ParamSpec       `json:"params,omitempty"`
	Enabled     bool              `json:"enabled"`
	OwnerID     string            `json:"-"`
}

// ServerDefinition is a stored external-server (MCP) declaration. It is
// persisted and listed; materialization is out of scope here.
type ServerDefinition struct {
	ID      string            `json:"id,omitempty"`
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Enabled bool              `json:"enabled"`
	OwnerID string            `json:"-"`
}

// ConfigRepository is user-scoped CRUD for tool and server definitions.
// Mutations against rows owned by someone else must fail with a permission
// error, not silently no-op.
type ConfigRepository interface {
	CreateTool(ctx context.Context, def *ToolDefinition) error
	ListTools(ctx context.Context, ownerID string) ([]*ToolDefinition, error)
	UpdateTool(ctx context.Context, ownerID string, def *ToolDefinition) error
	DeleteTool(ctx context.Context, ownerID, id string) error

	// EnabledTools returns the definitions eligible for materialization on a
	// chat turn.
	EnabledTools(ctx context.Context, ownerID string) ([]ToolDefinition, error)

	CreateServer(ctx context.Context, def *ServerDefinition) error
	ListServers(ctx context.Context, ownerID string) ([]*ServerDefinition, error)
	UpdateServer(ctx context.Context, ownerID string, def *ServerDefinition) error
	DeleteServer(ctx context.Context, ownerID, id string) error
}
