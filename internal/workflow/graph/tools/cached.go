package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/green-credit-copilot/server/pkg/cache"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// cachedTool memoizes successful tool results keyed by the exact argument
// JSON. Failures are never cached, so transient errors retry on the next call.
type cachedTool struct {
	inner  tool.InvokableTool
	bucket *cache.Bucket
}

// WithCache wraps an invokable tool with success-only result memoization.
// Each tool gets its own bucket so identical argument strings on different
// tools stay independent.
func WithCache(inner tool.InvokableTool, svc *cache.Service, toolName string) tool.InvokableTool {
	if svc == nil {
		return inner
	}
	return &cachedTool{inner: inner, bucket: svc.Bucket("tool:" + toolName)}
}

func (t *cachedTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return t.inner.Info(ctx)
}

func (t *cachedTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	key := argsKey(argumentsInJSON)
	if v, ok := t.bucket.Get(key); ok {
		if s, ok := v.(string); ok {
			logx.Debug().Str("component", "tool_cache").Msg("tool result served from cache")
			return s, nil
		}
	}

	out, err := t.inner.InvokableRun(ctx, argumentsInJSON, opts...)
	if err != nil {
		return "", err
	}
	t.bucket.Set(key, out)
	return out, nil
}

func argsKey(arguments string) string {
	sum := sha256.Sum256([]byte(arguments))
	return hex.EncodeToString(sum[:])
}
