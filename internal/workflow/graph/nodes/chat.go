package nodes

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/green-credit-copilot/server/internal/model"
	"github.com/green-credit-copilot/server/internal/workflow/graph/prompts"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// NewChatNode answers general conversation with the fast model and a recent
// transcript window. Its tokens are the user-facing answer.
func NewChatNode(m einomodel.BaseChatModel, repo model.SessionRepository, historyTurns int) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.Intent) (*model.TurnResult, error) {
		var sessionID, query string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.WorkflowState) error {
			sessionID = s.SessionID
			query = s.Query
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("chat state: %w", err)
		}

		systemPrompt, err := prompts.RenderChatSystem(ctx)
		if err != nil {
			return nil, fmt.Errorf("render chat prompt: %w", err)
		}

		msgs := []*schema.Message{schema.SystemMessage(systemPrompt)}
		if repo != nil && historyTurns > 0 {
			turns, err := repo.RecentTurns(ctx, sessionID, historyTurns*2)
			if err != nil {
				logx.Warn().Str("session_id", sessionID).Err(err).Msg("chat history unavailable")
			} else {
				msgs = append(msgs, historyMessages(turns)...)
			}
		}
		msgs = append(msgs, schema.UserMessage(query))

		out, err := streamGenerate(ctx, NodeChat, streamAnswer, m, msgs)
		if err != nil {
			return nil, err
		}

		return &model.TurnResult{
			FinalReport: out.Content,
			Intent:      model.IntentGeneralChat,
			Completed:   true,
		}, nil
	})
}
