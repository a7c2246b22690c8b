package nodes

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/green-credit-copilot/server/internal/model"
	"github.com/green-credit-copilot/server/internal/stream"
	"github.com/green-credit-copilot/server/internal/workflow/graph/prompts"
	"github.com/green-credit-copilot/server/internal/workflow/graph/tools"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// NewAuditorNode runs the agentic compliance audit. On MISSING it finishes
// the turn with the guide message; on PASS it hands over to policy
// enrichment with Completed left false.
func NewAuditorNode(m einomodel.ToolCallingChatModel, registry *tools.Registry, maxChars, maxCalls int) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, entities *model.Entities) (*model.TurnResult, error) {
		stream.FromContext(ctx).Status(NodeAuditor, "正在进行合规审核…")

		var query string
		var documents []string
		var toolDefs []model.ToolDefinition
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.WorkflowState) error {
			query = s.Query
			documents = s.Documents
			toolDefs = s.ToolDefs
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("auditor state: %w", err)
		}

		systemPrompt, err := prompts.RenderAuditorSystem(ctx, entities,
			BoundedDocumentText(documents, maxChars), tools.ToolSubmitAuditResult)
		if err != nil {
			return nil, fmt.Errorf("render auditor prompt: %w", err)
		}

		turnTools := registry.BuildTools(toolDefs)
		index, err := tools.Index(ctx, turnTools)
		if err != nil {
			return nil, fmt.Errorf("index audit tools: %w", err)
		}
		infos, err := tools.ToolInfos(ctx, turnTools)
		if err != nil {
			return nil, fmt.Errorf("audit tool infos: %w", err)
		}

		msgs := []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(query),
		}
		decision, evidence, err := RunAuditLoop(ctx, msgs, AuditLoopConfig{
			Model:    m,
			Tools:    index,
			Infos:    infos,
			MaxCalls: maxCalls,
			Node:     NodeAuditor,
		})
		if err != nil {
			return nil, err
		}

		// Persist the decision and gathered evidence for downstream nodes
		// before branching.
		err = compose.ProcessState(ctx, func(_ context.Context, s *model.WorkflowState) error {
			s.Decision = decision
			s.MissingMaterials = decision.MissingItems
			s.WebEvidence = append(s.WebEvidence, evidence...)
			s.AddTrace("审核结论：" + string(decision.Status))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("auditor state: %w", err)
		}

		logx.Debug().
			Str("status", string(decision.Status)).
			Int("missing_items", len(decision.MissingItems)).
			Msg("Audit decision recorded")

		if decision.Status == model.AuditMissing {
			return &model.TurnResult{
				FinalReport:      missingReport(decision),
				Decision:         decision,
				MissingMaterials: decision.MissingItems,
				Completed:        true,
			}, nil
		}
		return &model.TurnResult{Decision: decision, Completed: false}, nil
	})
}

// missingReport renders the user-facing reply for a failed audit and feeds
// it through the answer stream so the client sees it like any other answer.
func missingReport(d *model.AuditDecision) string {
	var b strings.Builder
	if d.GuideMessage != "" {
		b.WriteString(d.GuideMessage)
	} else {
		b.WriteString("项目材料存在缺失，暂时无法完成审核。")
	}
	if len(d.MissingItems) > 0 {
		b.WriteString("\n\n缺失材料：\n")
		for _, item := range d.MissingItems {
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
