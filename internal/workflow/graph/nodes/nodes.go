package nodes

import (
	"context"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/green-credit-copilot/server/internal/model"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// Node names double as event provenance tags on the stream.
const (
	NodeRouter    = "router"
	NodeExtractor = "extractor"
	NodeAuditor   = "auditor"
	NodePolicy    = "policy_enrichment"
	NodeChat      = "chat"
)

// NewRouterPreHandler seeds the per-run state from the turn input.
func NewRouterPreHandler() func(context.Context, *model.TurnInput, *model.WorkflowState) (*model.TurnInput, error) {
	return func(ctx context.Context, in *model.TurnInput, s *model.WorkflowState) (*model.TurnInput, error) {
		s.SessionID = in.SessionID
		s.Query = in.Query
		s.Documents = in.Documents
		s.ToolDefs = in.ToolDefs
		return in, nil
	}
}

// NewRouterPostHandler records the routed intent into state.
func NewRouterPostHandler() func(context.Context, model.Intent, *model.WorkflowState) (model.Intent, error) {
	return func(ctx context.Context, out model.Intent, s *model.WorkflowState) (model.Intent, error) {
		s.Intent = out
		s.AddTrace("意图识别：" + string(out))
		return out, nil
	}
}

// NewIntentCondition routes chit-chat straight to the chat leaf and every
// credit-related intent into extraction.
func NewIntentCondition() func(context.Context, model.Intent) (string, error) {
	return func(ctx context.Context, intent model.Intent) (string, error) {
		switch intent {
		case model.IntentGeneralChat:
			logx.Debug().Str("intent", string(intent)).Msg("Routing to chat")
			return NodeChat, nil
		default:
			logx.Debug().Str("intent", string(intent)).Msg("Routing to extractor")
			return NodeExtractor, nil
		}
	}
}

// NewExtractorPostHandler records extracted entities into state.
func NewExtractorPostHandler() func(context.Context, *model.Entities, *model.WorkflowState) (*model.Entities, error) {
	return func(ctx context.Context, out *model.Entities, s *model.WorkflowState) (*model.Entities, error) {
		s.Entities = out
		s.AddTrace("要素抽取：" + out.Summary())
		return out, nil
	}
}

// NewAuditCondition ends the run when the auditor already produced the final
// answer (missing materials), otherwise continues into policy enrichment.
func NewAuditCondition() func(context.Context, *model.TurnResult) (string, error) {
	return func(ctx context.Context, out *model.TurnResult) (string, error) {
		if out.Completed {
			logx.Debug().Msg("Audit stopped the run, routing to end")
			return compose.END, nil
		}
		logx.Debug().Msg("Audit passed, routing to policy enrichment")
		return NodePolicy, nil
	}
}

// NewResultPostHandler merges a terminal node's result with the accumulated
// state so END always receives the full trace.
func NewResultPostHandler() func(context.Context, *model.TurnResult, *model.WorkflowState) (*model.TurnResult, error) {
	return func(ctx context.Context, out *model.TurnResult, s *model.WorkflowState) (*model.TurnResult, error) {
		if out == nil {
			out = &model.TurnResult{}
		}
		if out.Intent == "" {
			out.Intent = s.Intent
		}
		if out.Decision == nil {
			out.Decision = s.Decision
		}
		if len(out.MissingMaterials) == 0 {
			out.MissingMaterials = s.MissingMaterials
		}
		out.Trace = append(s.Trace, out.Trace...)
		s.FinalReport = out.FinalReport
		s.Completed = out.Completed
		return out, nil
	}
}

// historyMessages converts persisted turns into chat messages, oldest first.
func historyMessages(turns []model.Turn) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case "user":
			msgs = append(msgs, schema.UserMessage(t.Content))
		case "assistant":
			msgs = append(msgs, schema.AssistantMessage(t.Content, nil))
		}
	}
	return msgs
}
