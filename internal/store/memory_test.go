package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/green-credit-copilot/server/internal/model"
)

func TestMemoryStoreSearchRanksByOverlap(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.IndexFragments(ctx, "h1", "绿色产业指导目录", []model.Fragment{
		{Text: "光伏发电项目属于清洁能源产业，纳入绿色信贷支持范围。", Meta: model.FragmentMeta{Paragraph: 1}},
		{Text: "燃煤发电项目不属于绿色信贷支持范围。", Meta: model.FragmentMeta{Paragraph: 2}},
	}))

	hits, err := s.Search(ctx, "光伏发电 绿色信贷", 4)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Contains(t, hits[0].Text, "光伏发电")
	assert.Equal(t, "绿色产业指导目录", hits[0].Source)
}

func TestMemoryStoreDeleteDocument(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.IndexFragments(ctx, "h1", "a.pdf", []model.Fragment{{Text: "环评批复要求"}}))
	require.NoError(t, s.IndexFragments(ctx, "h2", "b.pdf", []model.Fragment{{Text: "环评批复文号"}}))
	require.NoError(t, s.DeleteDocument(ctx, "h1"))

	hits, err := s.Search(ctx, "环评批复", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b.pdf", hits[0].Source)
}

func TestMemoryStoreNoMatchIsEmptyNotError(t *testing.T) {
	s := NewMemoryStore()
	hits, err := s.Search(context.Background(), "毫不相关的查询词", 4)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
