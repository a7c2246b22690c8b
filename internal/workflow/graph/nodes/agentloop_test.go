package nodes

import (
	"context"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/green-credit-copilot/server/internal/model"
	"github.com/green-credit-copilot/server/internal/workflow/graph/tools"
)

type loopModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	i         int
}

func (m *loopModel) next() *schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.i >= len(m.responses) {
		return schema.AssistantMessage("没有更多内容。", nil)
	}
	out := m.responses[m.i]
	m.i++
	return out
}

func (m *loopModel) Generate(context.Context, []*schema.Message, ...einomodel.Option) (*schema.Message, error) {
	return m.next(), nil
}

func (m *loopModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return schema.StreamReaderFromArray([]*schema.Message{m.next()}), nil
}

func (m *loopModel) WithTools([]*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return m, nil
}

type echoTool struct{ calls int }

func (e *echoTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: "echo"}, nil
}

func (e *echoTool) InvokableRun(_ context.Context, args string, _ ...tool.Option) (string, error) {
	e.calls++
	return args, nil
}

func submitCall(id, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{ID: id, Function: schema.FunctionCall{Name: tools.ToolSubmitAuditResult, Arguments: args}},
		},
	}
}

func TestAuditLoopFirstSubmissionWins(t *testing.T) {
	m := &loopModel{responses: []*schema.Message{
		{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{
				{ID: "c1", Function: schema.FunctionCall{Name: tools.ToolSubmitAuditResult, Arguments: `{"status": "PASS", "reason": "第一份结论"}`}},
				{ID: "c2", Function: schema.FunctionCall{Name: tools.ToolSubmitAuditResult, Arguments: `{"status": "MISSING", "reason": "第二份结论"}`}},
			},
		},
	}}

	d, evidence, err := RunAuditLoop(context.Background(), []*schema.Message{schema.UserMessage("审核")}, AuditLoopConfig{
		Model: m, Tools: map[string]tool.InvokableTool{}, MaxCalls: 4, Node: NodeAuditor,
	})
	require.NoError(t, err)
	assert.Equal(t, model.AuditPass, d.Status)
	assert.Equal(t, "第一份结论", d.Reason)
	assert.Empty(t, evidence)
}

func TestAuditLoopExecutesRealToolsThenDecides(t *testing.T) {
	echo := &echoTool{}
	m := &loopModel{responses: []*schema.Message{
		{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{
				{Function: schema.FunctionCall{Name: "echo", Arguments: `{"q": "核实"}`}},
			},
		},
		submitCall("c2", `{"status": "MISSING", "missing_items": ["环评批复"], "guide_message": "请补充环评批复。", "reason": "缺少环评"}`),
	}}

	d, evidence, err := RunAuditLoop(context.Background(), []*schema.Message{schema.UserMessage("审核")}, AuditLoopConfig{
		Model: m, Tools: map[string]tool.InvokableTool{"echo": echo}, MaxCalls: 4, Node: NodeAuditor,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, echo.calls)
	assert.Equal(t, model.AuditMissing, d.Status)
	assert.Equal(t, []string{"环评批复"}, d.MissingItems)
	assert.Equal(t, []string{`echo：{"q": "核实"}`}, evidence)
}

func TestAuditLoopBudgetExhaustionDegradesToMissing(t *testing.T) {
	// The model never submits a decision, only chatters.
	m := &loopModel{responses: []*schema.Message{
		schema.AssistantMessage("我认为材料齐全。", nil),
		schema.AssistantMessage("应该可以通过。", nil),
		schema.AssistantMessage("没有更多补充。", nil),
	}}

	d, evidence, err := RunAuditLoop(context.Background(), []*schema.Message{schema.UserMessage("审核")}, AuditLoopConfig{
		Model: m, Tools: map[string]tool.InvokableTool{}, MaxCalls: 3, Node: NodeAuditor,
	})
	require.NoError(t, err)
	assert.Equal(t, model.AuditMissing, d.Status)
	assert.NotEmpty(t, d.GuideMessage)
	assert.Empty(t, evidence)
}

func TestAuditLoopBadDecisionArgumentsRetry(t *testing.T) {
	m := &loopModel{responses: []*schema.Message{
		submitCall("c1", "这不是JSON"),
		submitCall("c2", `{"status": "PASS", "reason": "重试成功"}`),
	}}

	d, evidence, err := RunAuditLoop(context.Background(), []*schema.Message{schema.UserMessage("审核")}, AuditLoopConfig{
		Model: m, Tools: map[string]tool.InvokableTool{}, MaxCalls: 4, Node: NodeAuditor,
	})
	require.NoError(t, err)
	assert.Equal(t, model.AuditPass, d.Status)
	assert.Equal(t, "重试成功", d.Reason)
	assert.Empty(t, evidence)
}

func TestAuditLoopUnknownToolFallback(t *testing.T) {
	m := &loopModel{responses: []*schema.Message{
		{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{
				{Function: schema.FunctionCall{Name: "halluzinated_tool", Arguments: `{}`}},
			},
		},
		submitCall("c2", `{"status": "PASS", "reason": "ok"}`),
	}}

	d, evidence, err := RunAuditLoop(context.Background(), []*schema.Message{schema.UserMessage("审核")}, AuditLoopConfig{
		Model: m, Tools: map[string]tool.InvokableTool{}, MaxCalls: 4, Node: NodeAuditor,
	})
	require.NoError(t, err)
	assert.Equal(t, model.AuditPass, d.Status)
	assert.Empty(t, evidence)
}

type failTool struct{}

func (failTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: "broken"}, nil
}

func (failTool) InvokableRun(context.Context, string, ...tool.Option) (string, error) {
	return "", context.DeadlineExceeded
}

func TestAuditLoopFailedToolYieldsNoEvidence(t *testing.T) {
	m := &loopModel{responses: []*schema.Message{
		{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{
				{Function: schema.FunctionCall{Name: "broken", Arguments: `{}`}},
			},
		},
		submitCall("c2", `{"status": "PASS", "reason": "ok"}`),
	}}

	d, evidence, err := RunAuditLoop(context.Background(), []*schema.Message{schema.UserMessage("审核")}, AuditLoopConfig{
		Model: m, Tools: map[string]tool.InvokableTool{"broken": failTool{}}, MaxCalls: 4, Node: NodeAuditor,
	})
	require.NoError(t, err)
	assert.Equal(t, model.AuditPass, d.Status)
	assert.Empty(t, evidence)
}

func TestBoundedDocumentTextCutsOnRuneBoundary(t *testing.T) {
	out := BoundedDocumentText([]string{"绿色信贷审核材料内容"}, 4)
	assert.Contains(t, out, "绿色信贷")
	assert.Contains(t, out, "已截断")
	assert.NotContains(t, out, "审核材料")

	// Under the limit nothing changes.
	assert.Equal(t, "短文本", BoundedDocumentText([]string{"短文本"}, 100))
}
