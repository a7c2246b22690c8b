package tools

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/green-credit-copilot/server/internal/model"
	"github.com/green-credit-copilot/server/pkg/cache"
)

type stubRetriever struct {
	clauses []model.StandardClause
	err     error
	calls   int
}

func (s *stubRetriever) Search(_ context.Context, _ string, _ int) ([]model.StandardClause, error) {
	s.calls++
	return s.clauses, s.err
}

func TestRegistryBuildsBuiltinsAndDynamics(t *testing.T) {
	reg := NewRegistry(&stubRetriever{}, nil, SearchConfig{}, 4)
	ts := reg.BuildTools([]model.ToolDefinition{
		{Name: "stock_quote", URL: "http://example.com", Method: "GET", Enabled: true},
		{Name: "disabled_tool", URL: "http://example.com", Method: "GET", Enabled: false},
		{Name: ToolWebSearch, URL: "http://example.com", Method: "GET", Enabled: true},
	})

	idx, err := Index(context.Background(), ts)
	require.NoError(t, err)
	assert.Contains(t, idx, ToolEnterpriseProfile)
	assert.Contains(t, idx, ToolWebSearch)
	assert.Contains(t, idx, ToolSearchStandards)
	assert.Contains(t, idx, "stock_quote")
	assert.NotContains(t, idx, "disabled_tool")
	// builtin web_search is not shadowed by the dynamic definition
	assert.Len(t, ts, 4)
}

func TestRegistrySkipsStandardsWithoutRetriever(t *testing.T) {
	reg := NewRegistry(nil, nil, SearchConfig{}, 4)
	idx, err := Index(context.Background(), reg.BuildTools(nil))
	require.NoError(t, err)
	assert.NotContains(t, idx, ToolSearchStandards)
}

func TestToolInfosAlwaysIncludeDecisionTool(t *testing.T) {
	reg := NewRegistry(nil, nil, SearchConfig{}, 4)
	infos, err := ToolInfos(context.Background(), reg.BuildTools(nil))
	require.NoError(t, err)

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.Contains(t, names, ToolSubmitAuditResult)
}

func TestStandardsToolReportsEmptinessExplicitly(t *testing.T) {
	st := createSearchStandardsTool(&stubRetriever{}, 4)
	out, err := st.InvokableRun(context.Background(), `{"query": "光伏 环评"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "未检索到相关条款")
}

type countingTool struct {
	calls int
	fail  bool
}

func (c *countingTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: "counting"}, nil
}

func (c *countingTool) InvokableRun(_ context.Context, args string, _ ...tool.Option) (string, error) {
	c.calls++
	if c.fail {
		return "", fmt.Errorf("transient failure")
	}
	return "result for " + args, nil
}

func TestWithCacheMemoizesSuccessOnly(t *testing.T) {
	svc := cache.New(time.Minute, time.Minute)

	ok := &countingTool{}
	cached := WithCache(ok, svc, "counting")
	for i := 0; i < 3; i++ {
		out, err := cached.InvokableRun(context.Background(), `{"q":"a"}`)
		require.NoError(t, err)
		assert.Equal(t, `result for {"q":"a"}`, out)
	}
	assert.Equal(t, 1, ok.calls)

	// Different arguments miss the cache.
	_, err := cached.InvokableRun(context.Background(), `{"q":"b"}`)
	require.NoError(t, err)
	assert.Equal(t, 2, ok.calls)

	// Failures are retried every time.
	bad := &countingTool{fail: true}
	cachedBad := WithCache(bad, svc, "failing")
	for i := 0; i < 3; i++ {
		_, err := cachedBad.InvokableRun(context.Background(), `{}`)
		assert.Error(t, err)
	}
	assert.Equal(t, 3, bad.calls)
}

func TestEnterpriseProfileJoinsRegistries(t *testing.T) {
	et := createEnterpriseProfileTool()
	out, err := et.InvokableRun(context.Background(), `{"company_name": "华东化工集团有限公司"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "废水超标")
	assert.Contains(t, out, "被执行人")

	_, err = et.InvokableRun(context.Background(), `{"company_name": ""}`)
	assert.Error(t, err)
}
