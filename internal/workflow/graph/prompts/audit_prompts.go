package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/green-credit-copilot/server/internal/model"
)

//go:embed template/auditor_prompt.txt
var auditorSystemPrompt string

//go:embed template/policy_prompt.txt
var policySystemPrompt string

//go:embed template/title_prompt.txt
var titlePrompt string

//go:embed template/optimizer_prompt.txt
var optimizerPrompt string

const noDocumentsPlaceholder = "（用户未提供任何申报材料）"

// RenderAuditorSystem renders the compliance auditor system prompt with the
// extracted project profile and the truncated document text.
func RenderAuditorSystem(ctx context.Context, entities *model.Entities, documents, decisionTool string) (string, error) {
	if documents == "" {
		documents = noDocumentsPlaceholder
	}
	return renderTemplate(ctx, "auditor", auditorSystemPrompt, map[string]any{
		"Company":      entities.CompanyOr("未提供"),
		"Purpose":      entities.PurposeOr("未提供"),
		"Industry":     entities.IndustryOr("未提供"),
		"Documents":    documents,
		"DecisionTool": decisionTool,
	})
}

// RenderPolicySystem renders the policy analysis system prompt with the
// retrieved standard clauses, the upstream audit summary and the evidence
// gathered by the audit tools.
func RenderPolicySystem(ctx context.Context, entities *model.Entities, auditSummary, standards, evidence string) (string, error) {
	if standards == "" {
		standards = "未检索到相关标准条款。"
	}
	if evidence == "" {
		evidence = "（初审阶段未调用核查工具）"
	}
	return renderTemplate(ctx, "policy", policySystemPrompt, map[string]any{
		"Company":      entities.CompanyOr("未提供"),
		"Purpose":      entities.PurposeOr("未提供"),
		"Industry":     entities.IndustryOr("未提供"),
		"AuditSummary": auditSummary,
		"Standards":    standards,
		"Evidence":     evidence,
	})
}

// RenderOptimizer renders the input-rewrite prompt.
func RenderOptimizer(ctx context.Context, query string) (string, error) {
	return renderTemplate(ctx, "optimizer", optimizerPrompt, map[string]any{
		"Query": query,
	})
}

// RenderTitle renders the one-shot session title prompt.
func RenderTitle(ctx context.Context, query string) (string, error) {
	return renderTemplate(ctx, "title", titlePrompt, map[string]any{
		"Query": query,
	})
}

// renderTemplate renders a Go-template prompt via the Eino prompt component
// to both format and emit callbacks.
func renderTemplate(ctx context.Context, name, tplText string, vars map[string]any) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(tplText),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs[0].Content, nil
}
