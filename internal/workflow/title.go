package workflow

import (
	"context"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/green-credit-copilot/server/internal/model"
	"github.com/green-credit-copilot/server/internal/workflow/graph/prompts"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

const maxTitleRunes = 30

// TitleGenerator assigns the auto-generated session title from the first
// user utterance. Runs off the request path; SetTitleOnce makes retries and
// races harmless.
type TitleGenerator struct {
	model    einomodel.BaseChatModel
	sessions model.SessionRepository
	timeout  time.Duration
}

func NewTitleGenerator(m einomodel.BaseChatModel, sessions model.SessionRepository) *TitleGenerator {
	return &TitleGenerator{model: m, sessions: sessions, timeout: 30 * time.Second}
}

// GenerateAsync fires the title generation in the background.
func (g *TitleGenerator) GenerateAsync(sessionID, query string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()
		if err := g.generate(ctx, sessionID, query); err != nil {
			logx.Warn().Err(err).Str("session_id", sessionID).Msg("title generation failed")
		}
	}()
}

func (g *TitleGenerator) generate(ctx context.Context, sessionID, query string) error {
	system, err := prompts.RenderTitle(ctx, query)
	if err != nil {
		return err
	}
	resp, err := g.model.Generate(ctx, []*schema.Message{schema.SystemMessage(system)})
	if err != nil {
		return err
	}

	title := cleanTitle(resp.Content)
	if title == "" {
		return nil
	}
	set, err := g.sessions.SetTitleOnce(ctx, sessionID, title)
	if err != nil {
		return err
	}
	if set {
		logx.Debug().Str("session_id", sessionID).Str("title", title).Msg("session title assigned")
	}
	return nil
}

// cleanTitle strips quoting and whitespace the model tends to wrap titles in
// and bounds the length.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "\"'“”《》「」 ")
	r := []rune(s)
	if len(r) > maxTitleRunes {
		s = string(r[:maxTitleRunes])
	}
	return s
}
