package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	errx "github.com/green-credit-copilot/server/internal/core/error"
	"github.com/green-credit-copilot/server/internal/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestDocumentSaveGetRoundTrip(t *testing.T) {
	r := NewGormDocumentRepository(openTestDB(t))
	ctx := context.Background()

	doc := &model.CachedDocument{
		FileHash: "a1b2c3",
		Filename: "环评批复.pdf",
		FileType: ".pdf",
		FileSize: 2048,
		OwnerID:  "user-1",
		Status:   model.DocPending,
		Fragments: []model.Fragment{
			{Text: "第一页内容", Meta: model.FragmentMeta{Page: 1}},
			{Text: "第二页内容", Meta: model.FragmentMeta{Page: 2}},
		},
	}
	require.NoError(t, r.Save(ctx, doc))

	got, err := r.Get(ctx, "a1b2c3")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "环评批复.pdf", got.Filename)
	assert.Equal(t, model.DocPending, got.Status)
	require.Len(t, got.Fragments, 2)
	assert.Equal(t, 2, got.Fragments[1].Meta.Page)
}

func TestDocumentGetMissingReturnsNil(t *testing.T) {
	r := NewGormDocumentRepository(openTestDB(t))
	got, err := r.Get(context.Background(), "no-such-hash")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDocumentUpdateStatus(t *testing.T) {
	r := NewGormDocumentRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, &model.CachedDocument{
		FileHash: "h1", Filename: "a.txt", OwnerID: "user-1", Status: model.DocPending,
	}))

	require.NoError(t, r.UpdateStatus(ctx, "h1", model.DocFailed, "no extractable text"))
	got, err := r.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, model.DocFailed, got.Status)
	assert.Equal(t, "no extractable text", got.ErrorMessage)

	err = r.UpdateStatus(ctx, "missing", model.DocCompleted, "")
	assert.Error(t, err)
}

func TestDocumentListScopedByOwner(t *testing.T) {
	r := NewGormDocumentRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, &model.CachedDocument{FileHash: "h1", Filename: "a.txt", OwnerID: "user-1", Status: model.DocCompleted}))
	require.NoError(t, r.Save(ctx, &model.CachedDocument{FileHash: "h2", Filename: "b.txt", OwnerID: "user-2", Status: model.DocCompleted}))

	docs, err := r.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "h1", docs[0].FileHash)

	require.NoError(t, r.Delete(ctx, "h1"))
	docs, err = r.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestToolDefinitionCRUD(t *testing.T) {
	r := NewGormConfigRepository(openTestDB(t))
	ctx := context.Background()

	def := &model.ToolDefinition{
		Name:        "weather_lookup",
		Description: "查询指定城市天气",
		URL:         "https://api.example.com/weather",
		Method:      "GET",
		Headers:     map[string]string{"Authorization": "Bearer token"},
		Params: []model.ParamSpec{
			{Name: "city", Type: model.ParamString, Required: true},
		},
		Enabled: true,
		OwnerID: "user-1",
	}
	require.NoError(t, r.CreateTool(ctx, def))
	assert.NotEmpty(t, def.ID)

	defs, err := r.ListTools(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "weather_lookup", defs[0].Name)
	assert.Equal(t, "Bearer token", defs[0].Headers["Authorization"])
	require.Len(t, defs[0].Params, 1)
	assert.True(t, defs[0].Params[0].Required)

	def.Enabled = false
	require.NoError(t, r.UpdateTool(ctx, "user-1", def))
	enabled, err := r.EnabledTools(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, enabled)

	require.NoError(t, r.DeleteTool(ctx, "user-1", def.ID))
	defs, err = r.ListTools(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestToolOwnershipEnforced(t *testing.T) {
	r := NewGormConfigRepository(openTestDB(t))
	ctx := context.Background()

	def := &model.ToolDefinition{
		Name: "t", URL: "https://example.com", Method: "GET", OwnerID: "user-1", Enabled: true,
	}
	require.NoError(t, r.CreateTool(ctx, def))

	err := r.DeleteTool(ctx, "user-2", def.ID)
	var appErr *errx.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, errx.PermissionDeniedMessage, appErr.Message)

	err = r.UpdateTool(ctx, "user-2", def)
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, errx.PermissionDeniedMessage, appErr.Message)

	// Owner scoping also hides the row from foreign listings.
	defs, err := r.ListTools(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestServerDefinitionCRUD(t *testing.T) {
	r := NewGormConfigRepository(openTestDB(t))
	ctx := context.Background()

	def := &model.ServerDefinition{
		Name:    "policy-mcp",
		Type:    "stdio",
		Command: "policy-server",
		Args:    []string{"--kb", "green"},
		Env:     map[string]string{"KB_PATH": "/data/kb"},
		Enabled: true,
		OwnerID: "user-1",
	}
	require.NoError(t, r.CreateServer(ctx, def))
	assert.NotEmpty(t, def.ID)

	defs, err := r.ListServers(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, []string{"--kb", "green"}, defs[0].Args)
	assert.Equal(t, "/data/kb", defs[0].Env["KB_PATH"])

	def.Enabled = false
	require.NoError(t, r.UpdateServer(ctx, "user-1", def))

	assert.Error(t, r.DeleteServer(ctx, "user-2", def.ID))
	require.NoError(t, r.DeleteServer(ctx, "user-1", def.ID))
}
