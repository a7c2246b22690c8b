package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentMarkers(t *testing.T) {
	assert.Equal(t, "[Page 3]", Fragment{Meta: FragmentMeta{Page: 3}}.Marker())
	assert.Equal(t, "[Sheet: 明细, Row: 7]", Fragment{Meta: FragmentMeta{Sheet: "明细", Row: 7}}.Marker())
	assert.Equal(t, "[Slide 2]", Fragment{Meta: FragmentMeta{Slide: 2}}.Marker())
	assert.Equal(t, "[Para 5]", Fragment{Meta: FragmentMeta{Paragraph: 5}}.Marker())
	assert.Equal(t, "", Fragment{}.Marker())
}

func TestFormatFragments(t *testing.T) {
	out := FormatFragments([]Fragment{
		{Text: "第一页内容", Meta: FragmentMeta{Page: 1}},
		{Text: "无定位内容"},
	})
	assert.Equal(t, "[Page 1]\n第一页内容\n\n无定位内容", out)
}

func TestFragmentListRoundTrip(t *testing.T) {
	in := []Fragment{
		{Text: "企业全称：绿源新能源有限公司", Meta: FragmentMeta{Page: 1, Source: "report.pdf"}},
		{Text: "贷款用途：光伏电站建设", Meta: FragmentMeta{Sheet: "Sheet1", Row: 12}},
		{Text: "段落文本", Meta: FragmentMeta{Paragraph: 3}},
	}

	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out []Fragment
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}
