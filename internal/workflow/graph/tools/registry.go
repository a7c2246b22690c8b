package tools

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/green-credit-copilot/server/internal/model"
	"github.com/green-credit-copilot/server/pkg/cache"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// Registry assembles the audit agent's toolset: the built-in tools plus any
// user-configured dynamic tools attached to the current turn.
type Registry struct {
	retriever   StandardsRetriever
	cache       *cache.Service
	searchCfg   SearchConfig
	topK        int
	dynTimeout  time.Duration
	builtinName map[string]bool
}

func NewRegistry(retriever StandardsRetriever, cacheSvc *cache.Service, searchCfg SearchConfig, topK int) *Registry {
	if topK <= 0 {
		topK = 4
	}
	return &Registry{
		retriever:  retriever,
		cache:      cacheSvc,
		searchCfg:  searchCfg,
		topK:       topK,
		dynTimeout: 15 * time.Second,
		builtinName: map[string]bool{
			ToolEnterpriseProfile: true,
			ToolWebSearch:         true,
			ToolSearchStandards:   true,
			ToolSubmitAuditResult: true,
		},
	}
}

// BuildTools materializes the toolset for one turn. Disabled definitions are
// skipped; a dynamic tool shadowing a builtin name is rejected.
func (r *Registry) BuildTools(defs []model.ToolDefinition) []tool.InvokableTool {
	out := []tool.InvokableTool{
		r.withCache(createEnterpriseProfileTool(), ToolEnterpriseProfile),
		r.withCache(createWebSearchTool(r.searchCfg), ToolWebSearch),
	}
	if r.retriever != nil {
		out = append(out, r.withCache(createSearchStandardsTool(r.retriever, r.topK), ToolSearchStandards))
	}

	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		if r.builtinName[def.Name] {
			logx.Warn().Str("tool", def.Name).Msg("dynamic tool shadows builtin, skipped")
			continue
		}
		dyn, err := NewDynamicTool(def, r.dynTimeout)
		if err != nil {
			logx.Warn().Str("tool", def.Name).Err(err).Msg("dynamic tool rejected")
			continue
		}
		// Dynamic tools are not cached: user endpoints may be stateful.
		out = append(out, dyn)
	}
	return out
}

// ToolInfos collects binding metadata for the given tools plus the decision
// tool, which has no executable body.
func ToolInfos(ctx context.Context, ts []tool.InvokableTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(ts)+1)
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	infos = append(infos, DecisionToolInfo())
	return infos, nil
}

// Index maps tools by name for dispatch.
func Index(ctx context.Context, ts []tool.InvokableTool) (map[string]tool.InvokableTool, error) {
	m := make(map[string]tool.InvokableTool, len(ts))
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, err
		}
		m[info.Name] = t
	}
	return m, nil
}

func (r *Registry) withCache(t tool.InvokableTool, name string) tool.InvokableTool {
	return WithCache(t, r.cache, name)
}
