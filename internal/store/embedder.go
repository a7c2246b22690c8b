package store

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// EmbedderConfig selects the embedding model.
type EmbedderConfig struct {
	Model string `envconfig:"EMBED_MODEL" default:"gemini-embedding-001"`
}

// GeminiEmbedder embeds text through the Gemini embeddings API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

func NewGeminiEmbedder(client *genai.Client, cfg EmbedderConfig) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: cfg.Model}
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.Text(t)...)
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed content: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("embed content: empty embedding at %d", i)
		}
		out[i] = emb.Values
	}
	logx.Debug().Int("texts", len(texts)).Int("dim", len(out[0])).Msg("embedded batch")
	return out, nil
}
