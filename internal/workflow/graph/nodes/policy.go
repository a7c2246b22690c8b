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

// NewPolicyNode writes the final policy-compliance report for projects that
// passed the audit. Retrieval happens up front; an empty knowledge base is
// reported to the model explicitly so it does not invent clauses.
func NewPolicyNode(m einomodel.BaseChatModel, retriever tools.StandardsRetriever, topK int) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *model.TurnResult) (*model.TurnResult, error) {
		stream.FromContext(ctx).Status(NodePolicy, "正在撰写政策分析报告…")

		var entities *model.Entities
		var evidence []string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.WorkflowState) error {
			entities = s.Entities
			evidence = s.WebEvidence
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("policy state: %w", err)
		}

		standards := retrieveStandards(ctx, retriever, entities, topK)
		if standards != "" {
			err = compose.ProcessState(ctx, func(_ context.Context, s *model.WorkflowState) error {
				s.RAGStandards = append(s.RAGStandards, standards)
				s.AddTrace("标准检索：已获取条款上下文")
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("policy state: %w", err)
			}
		}

		systemPrompt, err := prompts.RenderPolicySystem(ctx, entities, auditSummary(in.Decision), standards, formatEvidence(evidence))
		if err != nil {
			return nil, fmt.Errorf("render policy prompt: %w", err)
		}

		msgs := []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage("请基于以上信息输出政策符合性分析报告。"),
		}
		out, err := streamGenerate(ctx, NodePolicy, streamAnswer, m, msgs)
		if err != nil {
			return nil, err
		}

		return &model.TurnResult{
			FinalReport: out.Content,
			Intent:      in.Intent,
			Decision:    in.Decision,
			Completed:   true,
		}, nil
	})
}

func retrieveStandards(ctx context.Context, retriever tools.StandardsRetriever, entities *model.Entities, topK int) string {
	if retriever == nil {
		return ""
	}
	query := strings.TrimSpace(entities.PurposeOr("") + " " + entities.IndustryOr("") + " 绿色信贷 准入标准")
	clauses, err := retriever.Search(ctx, query, topK)
	if err != nil {
		logx.Warn().Err(err).Msg("standards retrieval failed, report continues without clauses")
		return ""
	}
	return model.FormatClauses(clauses)
}

// formatEvidence joins the audit loop's tool outputs into a bulleted block,
// capping each line so a verbose tool cannot crowd out the clauses.
func formatEvidence(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	for _, line := range lines {
		runes := []rune(line)
		if len(runes) > 800 {
			line = string(runes[:800]) + "…"
		}
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func auditSummary(d *model.AuditDecision) string {
	if d == nil {
		return "初审已通过。"
	}
	if d.Reason != "" {
		return fmt.Sprintf("初审结论：%s。%s", d.Status, d.Reason)
	}
	return fmt.Sprintf("初审结论：%s。", d.Status)
}
