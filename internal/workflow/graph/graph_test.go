package graph

import (
	"context"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/green-credit-copilot/server/internal/model"
	"github.com/green-credit-copilot/server/internal/stream"
	"github.com/green-credit-copilot/server/internal/workflow/graph/nodes"
	"github.com/green-credit-copilot/server/internal/workflow/graph/tools"
)

// scriptedModel replays a fixed sequence of assistant messages, one per call.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	i         int
}

func (m *scriptedModel) next() *schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.i >= len(m.responses) {
		return schema.AssistantMessage("（脚本已耗尽）", nil)
	}
	out := m.responses[m.i]
	m.i++
	return out
}

func (m *scriptedModel) Generate(ctx context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	return m.next(), nil
}

func (m *scriptedModel) Stream(ctx context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return schema.StreamReaderFromArray([]*schema.Message{m.next()}), nil
}

func (m *scriptedModel) WithTools(_ []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return m, nil
}

type fixedRetriever struct{ clauses []model.StandardClause }

func (r *fixedRetriever) Search(context.Context, string, int) ([]model.StandardClause, error) {
	return r.clauses, nil
}

func toolCallMsg(id, name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{ID: id, Function: schema.FunctionCall{Name: name, Arguments: args}},
		},
	}
}

func buildTestRunner(t *testing.T, router, expert *scriptedModel) Runner {
	t.Helper()
	retriever := &fixedRetriever{clauses: []model.StandardClause{
		{Source: "绿色产业指导目录", Text: "光伏发电项目属于清洁能源产业。", Score: 0.92},
	}}
	runner, err := BuildWorkflowGraph(context.Background(), &GraphConfig{
		ChatModels: &nodes.ChatModels{
			Router:          router,
			Expert:          expert,
			RouterModelName: "router-test",
			ExpertModelName: "expert-test",
		},
		Registry:  tools.NewRegistry(retriever, nil, tools.SearchConfig{}, 4),
		Retriever: retriever,
		Workflow: model.WorkflowConfig{
			ExtractMaxChars:    30000,
			ToolMaxCalls:       8,
			RetrievalTopK:      4,
			RouterHistoryTurns: 3,
			ChatHistoryTurns:   10,
		},
	})
	require.NoError(t, err)
	return runner
}

// invokeCollecting runs the graph with an emitter attached and returns the
// result plus every event emitted during the run.
func invokeCollecting(t *testing.T, runner Runner, in *model.TurnInput) (*model.TurnResult, []stream.Event) {
	t.Helper()
	em := stream.NewEmitter(256)
	ctx := stream.NewContext(context.Background(), em)

	out, err := runner.Invoke(ctx, in)
	require.NoError(t, err)
	em.Close()

	var events []stream.Event
	for ev := range em.Events() {
		events = append(events, ev)
	}
	return out, events
}

func TestGeneralChatPath(t *testing.T) {
	router := &scriptedModel{responses: []*schema.Message{
		schema.AssistantMessage("GENERAL_CHAT", nil),
		schema.AssistantMessage("您好！我是绿色信贷助手，很高兴为您服务。", nil),
	}}
	expert := &scriptedModel{}

	runner := buildTestRunner(t, router, expert)
	out, events := invokeCollecting(t, runner, &model.TurnInput{SessionID: "s1", Query: "你好"})

	assert.True(t, out.Completed)
	assert.Equal(t, model.IntentGeneralChat, out.Intent)
	assert.Equal(t, "您好！我是绿色信贷助手，很高兴为您服务。", out.FinalReport)
	assert.Nil(t, out.Decision)

	for _, ev := range events {
		assert.NotEqual(t, stream.EventToolStart, ev.Type)
		assert.NotEqual(t, stream.EventToolEnd, ev.Type)
		if ev.Type == stream.EventAnswerDelta {
			assert.Equal(t, nodes.NodeChat, ev.Node)
		}
	}
	// The expert model must never run on the chat path.
	assert.Equal(t, 0, expert.i)
}

func TestAuditMissingStopsTheRun(t *testing.T) {
	router := &scriptedModel{responses: []*schema.Message{
		schema.AssistantMessage("PROJECT_AUDIT", nil),
	}}
	expert := &scriptedModel{responses: []*schema.Message{
		schema.AssistantMessage(`{"company_name": "绿源新能源有限公司", "loan_purpose": null}`, nil),
		toolCallMsg("c1", tools.ToolSubmitAuditResult,
			`{"status": "MISSING", "missing_items": ["贷款用途说明", "环评批复"], "guide_message": "请补充贷款用途说明和环评批复。", "reason": "申报材料不完整"}`),
	}}

	runner := buildTestRunner(t, router, expert)
	out, events := invokeCollecting(t, runner, &model.TurnInput{
		SessionID: "s2",
		Query:     "请审核这个项目",
		Documents: []string{"[Page 1]\n企业全称：绿源新能源有限公司"},
	})

	assert.True(t, out.Completed)
	require.NotNil(t, out.Decision)
	assert.Equal(t, model.AuditMissing, out.Decision.Status)
	assert.Equal(t, []string{"贷款用途说明", "环评批复"}, out.MissingMaterials)
	assert.Contains(t, out.FinalReport, "请补充贷款用途说明和环评批复。")
	assert.Contains(t, out.FinalReport, "环评批复")

	// The decision tool is intercepted: it never shows up as a tool event.
	for _, ev := range events {
		if ev.Type == stream.EventToolStart || ev.Type == stream.EventToolEnd {
			p := ev.Payload.(stream.ToolPayload)
			assert.NotEqual(t, tools.ToolSubmitAuditResult, p.Name)
		}
	}
	// Policy enrichment never runs, so the expert script is fully consumed.
	assert.Equal(t, 2, expert.i)
}

func TestAuditPassRunsPolicyEnrichment(t *testing.T) {
	router := &scriptedModel{responses: []*schema.Message{
		schema.AssistantMessage("PROJECT_AUDIT", nil),
	}}
	expert := &scriptedModel{responses: []*schema.Message{
		schema.AssistantMessage(`{"company_name": "绿源新能源有限公司", "loan_purpose": "光伏电站建设", "industry_category": "电力、热力生产和供应业"}`, nil),
		toolCallMsg("c1", tools.ToolEnterpriseProfile, `{"company_name": "绿源新能源有限公司"}`),
		toolCallMsg("c2", tools.ToolSubmitAuditResult,
			`{"status": "PASS", "guide_message": "材料齐全", "reason": "必备材料齐全，无环保处罚记录"}`),
		schema.AssistantMessage("## 项目概述\n绿源新能源有限公司光伏电站建设项目符合绿色信贷支持方向。", nil),
	}}

	runner := buildTestRunner(t, router, expert)
	out, events := invokeCollecting(t, runner, &model.TurnInput{
		SessionID: "s3",
		Query:     "请审核这个光伏项目",
		Documents: []string{"[Page 1]\n企业全称：绿源新能源有限公司\n贷款用途：光伏电站建设"},
	})

	assert.True(t, out.Completed)
	require.NotNil(t, out.Decision)
	assert.Equal(t, model.AuditPass, out.Decision.Status)
	assert.Empty(t, out.Decision.MissingItems)
	assert.Contains(t, out.FinalReport, "项目概述")

	var toolStarts, answerNodesSeen []string
	for _, ev := range events {
		switch ev.Type {
		case stream.EventToolStart:
			toolStarts = append(toolStarts, ev.Payload.(stream.ToolPayload).Name)
		case stream.EventAnswerDelta:
			answerNodesSeen = append(answerNodesSeen, ev.Node)
		}
	}
	assert.Equal(t, []string{tools.ToolEnterpriseProfile}, toolStarts)
	for _, n := range answerNodesSeen {
		assert.Equal(t, nodes.NodePolicy, n)
	}
	assert.NotEmpty(t, answerNodesSeen)
}

func TestRouterLabelNeverBecomesAnswer(t *testing.T) {
	router := &scriptedModel{responses: []*schema.Message{
		schema.AssistantMessage("GENERAL_CHAT", nil),
		schema.AssistantMessage("好的。", nil),
	}}
	runner := buildTestRunner(t, router, &scriptedModel{})
	_, events := invokeCollecting(t, runner, &model.TurnInput{SessionID: "s4", Query: "在吗"})

	for _, ev := range events {
		if ev.Type == stream.EventAnswerDelta {
			assert.NotEqual(t, nodes.NodeRouter, ev.Node)
		}
		if ev.Node == nodes.NodeRouter && ev.Type == stream.EventThoughtDelta {
			// Router label reaches the stream only as thought provenance; the
			// mux suppresses it from the wire.
			p := ev.Payload.(stream.DeltaPayload)
			assert.Equal(t, "GENERAL_CHAT", p.Delta)
		}
	}
}
