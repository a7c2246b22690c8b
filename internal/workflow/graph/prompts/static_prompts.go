package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/router_prompt.txt
var routerSystemPrompt string

//go:embed template/extractor_prompt.txt
var extractorSystemPrompt string

//go:embed template/chat_prompt.txt
var chatSystemPrompt string

// RenderRouterSystem renders the intent router system prompt via the Eino
// prompt component. This triggers Prompt callbacks and returns the final
// system prompt string.
func RenderRouterSystem(ctx context.Context) (string, error) {
	return renderStatic(ctx, "router", routerSystemPrompt)
}

// RenderExtractorSystem renders the entity extractor system prompt.
func RenderExtractorSystem(ctx context.Context) (string, error) {
	return renderStatic(ctx, "extractor", extractorSystemPrompt)
}

// RenderChatSystem renders the general assistant system prompt.
func RenderChatSystem(ctx context.Context) (string, error) {
	return renderStatic(ctx, "chat", chatSystemPrompt)
}

// renderStatic wraps a fixed prompt in a messages placeholder so the Eino
// prompt component still emits callbacks without touching braces in the text.
func renderStatic(ctx context.Context, name, content string) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("%s prompt callbacks: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt callbacks: empty result", name)
	}
	return msgs[0].Content, nil
}
