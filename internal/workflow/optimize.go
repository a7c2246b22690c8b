package workflow

import (
	"context"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/green-credit-copilot/server/internal/workflow/graph/prompts"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// Prefixes the model wraps its rewrite in despite being told not to.
var optimizerPrefixes = []string{
	"优化后的Prompt：",
	"Optimization Result:",
	"优化后的提示词：",
	"Optimized Query:",
}

// InputOptimizer rewrites a raw user utterance into a clearer request using
// the fast model. It fails open: any error hands the original input back so
// the caller's flow is never blocked on the rewrite.
type InputOptimizer struct {
	model   einomodel.BaseChatModel
	timeout time.Duration
}

func NewInputOptimizer(m einomodel.BaseChatModel) *InputOptimizer {
	return &InputOptimizer{model: m, timeout: 30 * time.Second}
}

// Optimize returns the rewritten input, or the original one unchanged when
// the rewrite fails or comes back empty.
func (o *InputOptimizer) Optimize(ctx context.Context, input string) string {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	system, err := prompts.RenderOptimizer(ctx, input)
	if err != nil {
		logx.Warn().Err(err).Msg("input optimization failed, using raw input")
		return input
	}
	resp, err := o.model.Generate(ctx, []*schema.Message{schema.SystemMessage(system)})
	if err != nil {
		logx.Warn().Err(err).Msg("input optimization failed, using raw input")
		return input
	}

	out := cleanOptimized(resp.Content)
	if out == "" {
		return input
	}
	return out
}

// cleanOptimized trims whitespace and the boilerplate prefixes around the
// rewritten text.
func cleanOptimized(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range optimizerPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
		}
	}
	return s
}
