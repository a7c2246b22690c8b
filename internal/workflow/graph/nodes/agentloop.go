package nodes

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/green-credit-copilot/server/internal/model"
	"github.com/green-credit-copilot/server/internal/stream"
	"github.com/green-credit-copilot/server/internal/workflow/graph/parsers"
	"github.com/green-credit-copilot/server/internal/workflow/graph/tools"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// AuditLoopConfig wires one agent-loop run. Tools and Infos are request
// scoped: the caller rebuilds them per turn and binds them with WithTools,
// so the shared model instance is never mutated.
type AuditLoopConfig struct {
	Model    einomodel.ToolCallingChatModel
	Tools    map[string]tool.InvokableTool
	Infos    []*schema.ToolInfo
	MaxCalls int
	Node     string
}

// RunAuditLoop drives the bounded tool-calling loop until the model submits
// an audit decision. The decision tool is intercepted rather than executed;
// the first submission wins and later ones are acknowledged without effect.
// A loop that exhausts its budget falls back to a conservative MISSING
// decision instead of failing the turn. The second return value holds one
// line per successful real tool execution, in call order.
func RunAuditLoop(ctx context.Context, msgs []*schema.Message, cfg AuditLoopConfig) (*model.AuditDecision, []string, error) {
	if cfg.MaxCalls <= 0 {
		cfg.MaxCalls = 8
	}
	bound, err := cfg.Model.WithTools(cfg.Infos)
	if err != nil {
		return nil, nil, fmt.Errorf("bind audit tools: %w", err)
	}

	em := stream.FromContext(ctx)
	var decision *model.AuditDecision
	var evidence []string
	toolCallSeq := 0

	for iter := 0; iter < cfg.MaxCalls; iter++ {
		out, err := streamGenerate(ctx, cfg.Node, streamThought, bound, msgs)
		if err != nil {
			return nil, nil, err
		}

		// Some providers omit tool_call IDs; synthesize them so tool results
		// correlate.
		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				toolCallSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", toolCallSeq)
			}
		}
		msgs = append(msgs, out)

		if len(out.ToolCalls) == 0 {
			if decision != nil {
				break
			}
			logx.Debug().Int("iteration", iter).Msg("No tool calls, reminding model to submit decision")
			msgs = append(msgs, schema.UserMessage(
				"请调用 "+tools.ToolSubmitAuditResult+" 工具提交最终审核结论，不要以普通文本作答。"))
			continue
		}

		for _, call := range out.ToolCalls {
			name := call.Function.Name
			args := call.Function.Arguments

			if name == tools.ToolSubmitAuditResult {
				if decision != nil {
					msgs = append(msgs, schema.ToolMessage("结论已受理，请勿重复提交。", call.ID))
					continue
				}
				d, perr := parsers.ParseDecision(args)
				if perr != nil {
					logx.Warn().Err(perr).Msg("Bad audit decision arguments")
					msgs = append(msgs, schema.ToolMessage(
						"结论参数无法解析，请按参数说明重新调用工具提交。", call.ID))
					continue
				}
				decision = d
				msgs = append(msgs, schema.ToolMessage("结论已受理。", call.ID))
				continue
			}

			result, line := executeTool(ctx, em, cfg, call)
			msgs = append(msgs, result)
			if line != "" {
				evidence = append(evidence, line)
			}
		}

		if decision != nil {
			break
		}
	}

	if decision == nil {
		logx.Warn().Int("max_calls", cfg.MaxCalls).Msg("Audit loop exhausted without a decision, degrading to MISSING")
		decision = &model.AuditDecision{
			Status:       model.AuditMissing,
			GuideMessage: "本次审核未能得出明确结论，请补充企业资质证明、环评批复和贷款用途说明后重新提交。",
			Reason:       "审核流程超出工具调用上限，未收到有效结论。",
		}
		decision.Normalize()
	}
	return decision, evidence, nil
}

// executeTool runs one real tool call with start/end events on the stream.
// The second return value is the evidence line for a successful execution,
// empty when the call was unknown or failed.
func executeTool(ctx context.Context, em *stream.Emitter, cfg AuditLoopConfig, call schema.ToolCall) (*schema.Message, string) {
	name := call.Function.Name
	args := call.Function.Arguments

	t, ok := cfg.Tools[name]
	if !ok {
		logx.Warn().Str("tool_name", name).Msg("Unknown or invalid tool call; returning fallback result")
		return schema.ToolMessage(fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"note\":\"ignored\"}", name), call.ID), ""
	}

	em.ToolStart(cfg.Node, call.ID, name, args)
	out, err := t.InvokableRun(ctx, args)
	if err != nil {
		logx.Warn().Str("tool_name", name).Err(err).Msg("Tool execution failed")
		out = fmt.Sprintf("{\"error\":%q}", err.Error())
		em.ToolEnd(cfg.Node, call.ID, name, out)
		return schema.ToolMessage(out, call.ID), ""
	}
	em.ToolEnd(cfg.Node, call.ID, name, out)
	return schema.ToolMessage(out, call.ID), name + "：" + out
}
