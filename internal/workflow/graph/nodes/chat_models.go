package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/green-credit-copilot/server/internal/model"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey       string
	BaseURL      string
	RouterConfig *model.RouterModelConfig
	ExpertConfig *model.ExpertModelConfig
}

// ChatModels holds the two models the workflow runs on: a small fast one for
// routing, chit-chat and titles, and a stronger one for extraction, auditing
// and policy analysis. Both are tool-calling capable; tools are bound per
// request via WithTools, never on these shared instances.
type ChatModels struct {
	Router          einomodel.ToolCallingChatModel
	Expert          einomodel.ToolCallingChatModel
	RouterModelName string
	ExpertModelName string
}

// NewChatModels creates both chat models with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	routerModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.RouterConfig.Model,
		Temperature: &config.RouterConfig.Temperature,
		MaxTokens:   &config.RouterConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating router model")
		return nil, fmt.Errorf("error creating router model: %w", err)
	}

	expertModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.ExpertConfig.Model,
		Temperature: &config.ExpertConfig.Temperature,
		MaxTokens:   &config.ExpertConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating expert model")
		return nil, fmt.Errorf("error creating expert model: %w", err)
	}

	return &ChatModels{
		Router:          routerModel,
		Expert:          expertModel,
		RouterModelName: config.RouterConfig.Model,
		ExpertModelName: config.ExpertConfig.Model,
	}, nil
}
