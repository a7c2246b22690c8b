package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/green-credit-copilot/server/internal/model"
)

const ToolSearchStandards = "search_green_standards"

// StandardsRetriever is the vector search surface the standards tool needs.
type StandardsRetriever interface {
	Search(ctx context.Context, query string, topK int) ([]model.StandardClause, error)
}

type SearchStandardsInput struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type SearchStandardsOutput struct {
	Clauses []model.StandardClause `json:"clauses"`
	Total   int                    `json:"total"`
	Notice  string                 `json:"notice,omitempty"`
}

func createSearchStandardsTool(retriever StandardsRetriever, defaultTopK int) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolSearchStandards,
			Desc: "在本地绿色信贷标准库中检索相关条款，返回条款原文及其来源文件。判断项目是否符合准入标准时优先使用本工具。",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     schema.String,
					Desc:     "检索语句，描述要核对的准入要求，例如：光伏电站建设项目 环评要求。",
					Required: true,
				},
				"top_k": {
					Type: schema.Number,
					Desc: "返回条款数量上限。",
				},
			}),
		},
		func(ctx context.Context, in *SearchStandardsInput) (*SearchStandardsOutput, error) {
			query := strings.TrimSpace(in.Query)
			if query == "" {
				return nil, fmt.Errorf("query is required")
			}
			topK := in.TopK
			if topK <= 0 {
				topK = defaultTopK
			}

			clauses, err := retriever.Search(ctx, query, topK)
			if err != nil {
				return nil, fmt.Errorf("standards search: %w", err)
			}
			out := &SearchStandardsOutput{Clauses: clauses, Total: len(clauses)}
			// An empty result is a legitimate answer, never an error. Say so
			// explicitly so the model does not invent clauses to fill the gap.
			if len(clauses) == 0 {
				out.Notice = "标准库中未检索到相关条款，请勿编造条款内容。"
			}
			return out, nil
		},
	)
}
