package nodes

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/green-credit-copilot/server/internal/model"
	"github.com/green-credit-copilot/server/internal/workflow/graph/prompts"
	"github.com/green-credit-copilot/server/internal/stream"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// NewRouterNode classifies the turn into one of the four workflow intents.
// The raw label never leaves the process as answer text; it only drives the
// branch. Classification failures fail open to general chat.
func NewRouterNode(m einomodel.BaseChatModel, repo model.SessionRepository, historyTurns int) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *model.TurnInput) (model.Intent, error) {
		stream.FromContext(ctx).Status(NodeRouter, "正在理解您的请求…")

		systemPrompt, err := prompts.RenderRouterSystem(ctx)
		if err != nil {
			return "", fmt.Errorf("render router prompt: %w", err)
		}

		msgs := []*schema.Message{schema.SystemMessage(systemPrompt)}
		if repo != nil && historyTurns > 0 {
			turns, err := repo.RecentTurns(ctx, in.SessionID, historyTurns*2)
			if err != nil {
				logx.Warn().Str("session_id", in.SessionID).Err(err).Msg("router history unavailable")
			} else {
				msgs = append(msgs, historyMessages(turns)...)
			}
		}
		msgs = append(msgs, schema.UserMessage(routerUserPrompt(in)))

		out, err := streamGenerate(ctx, NodeRouter, streamThought, m, msgs)
		if err != nil {
			logx.Warn().Err(err).Msg("router model failed, defaulting to general chat")
			return model.IntentGeneralChat, nil
		}

		intent := model.ParseIntent(out.Content)
		logx.Debug().Str("intent", string(intent)).Msg("Intent routed")
		return intent, nil
	})
}

func routerUserPrompt(in *model.TurnInput) string {
	var b strings.Builder
	b.WriteString(in.Query)
	if len(in.Documents) > 0 {
		fmt.Fprintf(&b, "\n\n（用户本轮上传了 %d 份项目文档）", len(in.Documents))
	}
	return b.String()
}
