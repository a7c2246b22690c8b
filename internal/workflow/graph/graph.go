package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/green-credit-copilot/server/internal/model"
	"github.com/green-credit-copilot/server/internal/workflow/graph/nodes"
	"github.com/green-credit-copilot/server/internal/workflow/graph/observers"
	"github.com/green-credit-copilot/server/internal/workflow/graph/tools"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// Runner executes the compiled workflow graph for one turn.
type Runner interface {
	Invoke(ctx context.Context, in *model.TurnInput) (*model.TurnResult, error)
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	ChatModels  *nodes.ChatModels
	SessionRepo model.SessionRepository
	Registry    *tools.Registry
	Retriever   tools.StandardsRetriever
	Workflow    model.WorkflowConfig
}

// GraphBuilder handles the construction of the credit-review workflow graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[*model.TurnInput, *model.TurnResult]
}

type graphRunner struct {
	runnable compose.Runnable[*model.TurnInput, *model.TurnResult]
}

func (r *graphRunner) Invoke(ctx context.Context, in *model.TurnInput) (*model.TurnResult, error) {
	return r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
}

// BuildWorkflowGraph constructs and compiles the turn-processing graph and
// returns a Runner over it.
func BuildWorkflowGraph(ctx context.Context, config *GraphConfig) (Runner, error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Router == nil || config.ChatModels.Expert == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.Registry == nil {
		return nil, fmt.Errorf("tool registry is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[*model.TurnInput, *model.TurnResult](
			compose.WithGenLocalState(func(ctx context.Context) *model.WorkflowState {
				return &model.WorkflowState{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}
	logx.Debug().Msg("Workflow graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	cfg := b.config.Workflow

	b.graph.AddLambdaNode(nodes.NodeRouter,
		nodes.NewRouterNode(b.config.ChatModels.Router, b.config.SessionRepo, cfg.RouterHistoryTurns),
		compose.WithStatePreHandler(nodes.NewRouterPreHandler()),
		compose.WithStatePostHandler(nodes.NewRouterPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeExtractor,
		nodes.NewExtractorNode(b.config.ChatModels.Expert, cfg.ExtractMaxChars),
		compose.WithStatePostHandler(nodes.NewExtractorPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeAuditor,
		nodes.NewAuditorNode(b.config.ChatModels.Expert, b.config.Registry, cfg.ExtractMaxChars, cfg.ToolMaxCalls),
		compose.WithStatePostHandler(nodes.NewResultPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodePolicy,
		nodes.NewPolicyNode(b.config.ChatModels.Expert, b.config.Retriever, cfg.RetrievalTopK),
		compose.WithStatePostHandler(nodes.NewResultPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeChat,
		nodes.NewChatNode(b.config.ChatModels.Router, b.config.SessionRepo, cfg.ChatHistoryTurns),
		compose.WithStatePostHandler(nodes.NewResultPostHandler()),
	)
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeRouter},
		{nodes.NodeExtractor, nodes.NodeAuditor},
		{nodes.NodePolicy, compose.END},
		{nodes.NodeChat, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	intentBranch := compose.NewGraphBranch(
		nodes.NewIntentCondition(),
		map[string]bool{
			nodes.NodeChat:      true,
			nodes.NodeExtractor: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeRouter, intentBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding intent branch")
		return fmt.Errorf("error adding intent branch: %w", err)
	}

	auditBranch := compose.NewGraphBranch(
		nodes.NewAuditCondition(),
		map[string]bool{
			nodes.NodePolicy: true,
			compose.END:      true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeAuditor, auditBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding audit branch")
		return fmt.Errorf("error adding audit branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.TurnInput, *model.TurnResult], error) {
	// Limit total run steps; the agent loop runs inside the auditor node so
	// the graph itself stays short.
	maxSteps := 10 + b.config.Workflow.ToolMaxCalls
	if maxSteps < 20 {
		maxSteps = 20
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
