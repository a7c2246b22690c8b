package workflow

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

type failingModel struct{}

func (failingModel) Generate(context.Context, []*schema.Message, ...einomodel.Option) (*schema.Message, error) {
	return nil, errors.New("model unavailable")
}

func (failingModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("model unavailable")
}

func TestOptimizeStripsBoilerplatePrefix(t *testing.T) {
	o := NewInputOptimizer(&fixedModel{content: "优化后的Prompt：请审查绿源新能源有限公司的光伏电站贷款项目。"})
	out := o.Optimize(context.Background(), "帮我看看这个光伏的单子")
	assert.Equal(t, "请审查绿源新能源有限公司的光伏电站贷款项目。", out)
}

func TestOptimizePassesCleanOutputThrough(t *testing.T) {
	o := NewInputOptimizer(&fixedModel{content: "  请评估该风电项目是否符合绿色信贷准入要求。\n"})
	out := o.Optimize(context.Background(), "风电项目行不行")
	assert.Equal(t, "请评估该风电项目是否符合绿色信贷准入要求。", out)
}

func TestOptimizeFailsOpenOnModelError(t *testing.T) {
	o := NewInputOptimizer(failingModel{})
	out := o.Optimize(context.Background(), "帮我审这个项目")
	assert.Equal(t, "帮我审这个项目", out)
}

func TestOptimizeFallsBackOnEmptyRewrite(t *testing.T) {
	o := NewInputOptimizer(&fixedModel{content: "   "})
	out := o.Optimize(context.Background(), "帮我审这个项目")
	assert.Equal(t, "帮我审这个项目", out)
}
