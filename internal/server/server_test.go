package server

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/green-credit-copilot/server/internal/core"
	"github.com/green-credit-copilot/server/internal/docparse"
	"github.com/green-credit-copilot/server/internal/documents"
	"github.com/green-credit-copilot/server/internal/model"
	"github.com/green-credit-copilot/server/internal/repo"
	"github.com/green-credit-copilot/server/internal/stream"
	"github.com/green-credit-copilot/server/internal/workflow"
)

type fakeRunner struct{}

func (fakeRunner) Invoke(ctx context.Context, in *model.TurnInput) (*model.TurnResult, error) {
	em := stream.FromContext(ctx)
	em.Status("router", "正在理解您的请求…")
	em.Answer("chat", "您好！")
	return &model.TurnResult{FinalReport: "您好！", Intent: model.IntentGeneralChat, Completed: true}, nil
}

type stubModel struct {
	content string
}

func (m stubModel) Generate(context.Context, []*schema.Message, ...einomodel.Option) (*schema.Message, error) {
	return schema.AssistantMessage(m.content, nil), nil
}

func (m stubModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage(m.content, nil)}), nil
}

func newTestServer(t *testing.T) (*Server, model.SessionRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))

	sessions := repo.NewMemorySessionRepository()
	configRepo := repo.NewGormConfigRepository(db)
	docs := documents.NewService(repo.NewGormDocumentRepository(db), docparse.New(), nil, nil, documents.Config{IndexTimeout: "5s"})
	turns := workflow.NewService(fakeRunner{}, sessions, docs, configRepo, nil)
	optimizer := workflow.NewInputOptimizer(stubModel{content: "优化后的提示词：请审查绿源新能源有限公司的光伏电站贷款项目。"})

	return New(Config{}, core.Testing, turns, docs, sessions, configRepo, optimizer), sessions
}

// closeNotifyRecorder adds the http.CloseNotifier method gin's c.Stream
// requires, which httptest.ResponseRecorder does not implement.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
}

func (c *closeNotifyRecorder) CloseNotify() <-chan bool { return make(chan bool) }

func doJSON(t *testing.T, s *Server, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(&closeNotifyRecorder{w}, req)
	return w
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChatStreamEmitsSSE(t *testing.T) {
	s, sessions := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/chat/stream", "user-1", `{"query":"你好"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, `"event":"answer_delta"`)
	assert.Contains(t, body, "您好！")
	assert.Contains(t, body, `"event":"done"`)
	assert.Equal(t, 1, strings.Count(body, `"event":"done"`))

	list, err := sessions.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	n, err := sessions.TurnCount(context.Background(), list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestChatStreamRejectsEmptyQuery(t *testing.T) {
	s, _ := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/v1/chat/stream", "user-1", `{"query":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOptimizationRewritesInput(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/optimization", "user-1", `{"input":"帮我看看这个光伏的单子"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"optimized_input":"请审查绿源新能源有限公司的光伏电站贷款项目。"`)
}

func TestOptimizationRejectsEmptyInput(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/optimization", "user-1", `{"input":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionRoutesEnforceOwnership(t *testing.T) {
	s, sessions := newTestServer(t)
	sess, err := sessions.Create(context.Background(), "user-1", "")
	require.NoError(t, err)

	w := doJSON(t, s, http.MethodGet, "/api/v1/sessions/"+sess.ID, "user-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/sessions/"+sess.ID, "user-2", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, s, http.MethodDelete, "/api/v1/sessions/"+sess.ID, "user-2", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, s, http.MethodPut, "/api/v1/sessions/"+sess.ID+"/rename", "user-1", `{"title":"审查会话"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	got, err := sessions.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "审查会话", got.Title)

	w = doJSON(t, s, http.MethodDelete, "/api/v1/sessions/"+sess.ID, "user-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/sessions/"+sess.ID, "user-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func uploadFile(t *testing.T, s *Server, userID, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", userID)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(&closeNotifyRecorder{w}, req)
	return w
}

func TestDocumentRoutes(t *testing.T) {
	s, _ := newTestServer(t)

	w := uploadFile(t, s, "user-1", "说明.txt", "企业全称：绿源新能源有限公司\n\n贷款用途：光伏电站建设")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"status":"COMPLETED"`)

	hash := documents.HashBytes([]byte("企业全称：绿源新能源有限公司\n\n贷款用途：光伏电站建设"))
	assert.Contains(t, body, hash)

	w = doJSON(t, s, http.MethodGet, "/api/v1/documents", "user-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "说明.txt")

	w = doJSON(t, s, http.MethodGet, "/api/v1/documents/"+hash, "user-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "贷款用途：光伏电站建设")

	w = doJSON(t, s, http.MethodGet, "/api/v1/documents/"+hash, "user-2", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, s, http.MethodDelete, "/api/v1/documents/"+hash, "user-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/documents/"+hash, "user-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentUploadRejectsUnsupportedType(t *testing.T) {
	s, _ := newTestServer(t)
	w := uploadFile(t, s, "user-1", "archive.zip", "PK")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestToolRoutes(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/tools", "user-1",
		`{"name":"weather_lookup","desc":"查询天气","url":"https://api.example.com/weather","method":"GET","enabled":true,"params":[{"name":"city","type":"string","required":true}]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created model.ToolDefinition
	require.NoError(t, unmarshalBody(w, &created))
	require.NotEmpty(t, created.ID)

	w = doJSON(t, s, http.MethodGet, "/api/v1/tools", "user-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "weather_lookup")

	w = doJSON(t, s, http.MethodGet, "/api/v1/tools", "user-2", "")
	assert.NotContains(t, w.Body.String(), "weather_lookup")

	w = doJSON(t, s, http.MethodPut, "/api/v1/tools/"+created.ID, "user-2",
		`{"name":"weather_lookup","url":"https://api.example.com/weather","method":"GET"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, s, http.MethodDelete, "/api/v1/tools/"+created.ID, "user-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestToolCreateValidation(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/tools", "user-1", `{"name":"","url":"https://x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/tools", "user-1", `{"name":"t","url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/tools", "user-1", `{"name":"t","url":"https://x.example.com","method":"TRACE"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServerRoutes(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/servers", "user-1",
		`{"name":"policy-mcp","type":"stdio","command":"policy-server","enabled":true}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created model.ServerDefinition
	require.NoError(t, unmarshalBody(w, &created))

	w = doJSON(t, s, http.MethodGet, "/api/v1/servers", "user-1", "")
	assert.Contains(t, w.Body.String(), "policy-mcp")

	w = doJSON(t, s, http.MethodDelete, "/api/v1/servers/"+created.ID, "user-2", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, s, http.MethodDelete, "/api/v1/servers/"+created.ID, "user-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func unmarshalBody(w *httptest.ResponseRecorder, out any) error {
	return sonic.Unmarshal(w.Body.Bytes(), out)
}
