package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	logx "github.com/green-credit-copilot/server/pkg/logger"
)

const ToolWebSearch = "web_search"

// SearchConfig configures the external web search provider. With no endpoint
// the tool falls back to a curated offline corpus so the audit loop keeps
// working in development.
type SearchConfig struct {
	Endpoint string `envconfig:"SEARCH_ENDPOINT"`
	APIKey   string `envconfig:"SEARCH_API_KEY"`
	Timeout  string `envconfig:"SEARCH_TIMEOUT" default:"10s"`
}

type WebSearchInput struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

type WebSearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet"`
}

type WebSearchOutput struct {
	Results []WebSearchResult `json:"results"`
	Total   int               `json:"total"`
}

func createWebSearchTool(cfg SearchConfig) tool.InvokableTool {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolWebSearch,
			Desc: "搜索最新的绿色信贷政策、行业新闻和监管动态。当申报材料或本地标准库无法回答时使用。",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     schema.String,
					Desc:     "中文搜索关键词，例如：光伏行业 绿色信贷 准入政策 2025。",
					Required: true,
				},
				"max_results": {
					Type: schema.Number,
					Desc: "返回结果数量上限，默认 5。",
				},
			}),
		},
		func(ctx context.Context, in *WebSearchInput) (*WebSearchOutput, error) {
			query := strings.TrimSpace(in.Query)
			if query == "" {
				return nil, fmt.Errorf("query is required")
			}
			if in.MaxResults <= 0 {
				in.MaxResults = 5
			}

			if cfg.Endpoint == "" {
				return offlineSearch(query, in.MaxResults), nil
			}

			results, err := remoteSearch(ctx, client, cfg, query, in.MaxResults)
			if err != nil {
				logx.Warn().Str("tool", ToolWebSearch).Err(err).Msg("remote search failed, using offline corpus")
				return offlineSearch(query, in.MaxResults), nil
			}
			return results, nil
		},
	)
}

func remoteSearch(ctx context.Context, client *http.Client, cfg SearchConfig, query string, max int) (*WebSearchOutput, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", max))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var out WebSearchOutput
	if err := sonic.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("search response: %w", err)
	}
	if len(out.Results) > max {
		out.Results = out.Results[:max]
	}
	out.Total = len(out.Results)
	return &out, nil
}

func offlineSearch(query string, max int) *WebSearchOutput {
	var matched []WebSearchResult
	for _, doc := range offlineCorpus {
		for _, kw := range doc.keywords {
			if strings.Contains(query, kw) {
				matched = append(matched, doc.result)
				break
			}
		}
	}
	if len(matched) == 0 {
		matched = append(matched, WebSearchResult{
			Title:   "未找到相关结果",
			Snippet: fmt.Sprintf("关于「%s」未检索到公开信息，请结合申报材料与本地标准库判断。", query),
		})
	}
	if len(matched) > max {
		matched = matched[:max]
	}
	return &WebSearchOutput{Results: matched, Total: len(matched)}
}

var offlineCorpus = []struct {
	keywords []string
	result   WebSearchResult
}{
	{
		keywords: []string{"光伏", "太阳能"},
		result: WebSearchResult{
			Title:   "国家能源局：持续加大光伏发电项目信贷支持力度",
			Snippet: "分布式与集中式光伏电站建设属于绿色信贷重点支持领域，金融机构应优先保障合规项目的融资需求。",
		},
	},
	{
		keywords: []string{"风电", "风力"},
		result: WebSearchResult{
			Title:   "风电产业绿色金融支持政策要点",
			Snippet: "陆上与海上风电项目纳入绿色产业指导目录，需提供环评批复及并网消纳证明。",
		},
	},
	{
		keywords: []string{"化工", "高耗能", "煤"},
		result: WebSearchResult{
			Title:   "高耗能高排放行业信贷准入收紧",
			Snippet: "对两高项目实行清单化管理，存在环保处罚未整改的企业原则上不得新增授信。",
		},
	},
	{
		keywords: []string{"环评", "环保"},
		result: WebSearchResult{
			Title:   "环评批复是绿色信贷审核的必备材料",
			Snippet: "未取得环境影响评价批复的建设项目不得发放贷款，批复文号应可在生态环境部门网站核验。",
		},
	},
}
