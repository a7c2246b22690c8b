package nodes

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/green-credit-copilot/server/internal/model"
	"github.com/green-credit-copilot/server/internal/workflow/graph/parsers"
	"github.com/green-credit-copilot/server/internal/workflow/graph/prompts"
	"github.com/green-credit-copilot/server/internal/stream"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// NewExtractorNode pulls the structured project profile out of the query and
// the attached documents. Document text is bounded before prompting;
// unparseable model output degrades to empty entities instead of failing
// the turn, the auditor then reports what is missing.
func NewExtractorNode(m einomodel.BaseChatModel, maxChars int) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.Intent) (*model.Entities, error) {
		stream.FromContext(ctx).Status(NodeExtractor, "正在提取项目关键信息…")

		var query string
		var documents []string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.WorkflowState) error {
			query = s.Query
			documents = s.Documents
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("extractor state: %w", err)
		}

		systemPrompt, err := prompts.RenderExtractorSystem(ctx)
		if err != nil {
			return nil, fmt.Errorf("render extractor prompt: %w", err)
		}

		msgs := []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(extractorUserPrompt(query, documents, maxChars)),
		}

		out, err := streamGenerate(ctx, NodeExtractor, streamThought, m, msgs)
		if err != nil {
			logx.Warn().Err(err).Msg("extractor model failed, continuing with empty entities")
			return &model.Entities{}, nil
		}
		return parsers.ParseEntities(out.Content), nil
	})
}

// extractorUserPrompt assembles the user turn with a bounded document prefix.
func extractorUserPrompt(query string, documents []string, maxChars int) string {
	var b strings.Builder
	b.WriteString("用户消息：")
	b.WriteString(query)
	if docs := BoundedDocumentText(documents, maxChars); docs != "" {
		b.WriteString("\n\n项目文档内容：\n")
		b.WriteString(docs)
	}
	return b.String()
}

// BoundedDocumentText joins document texts and truncates to maxChars runes,
// cutting on a rune boundary so multi-byte text is never split.
func BoundedDocumentText(documents []string, maxChars int) string {
	joined := strings.Join(documents, "\n\n---\n\n")
	if maxChars <= 0 {
		return joined
	}
	runes := []rune(joined)
	if len(runes) <= maxChars {
		return joined
	}
	return string(runes[:maxChars]) + "\n…（文档内容过长，已截断）"
}
