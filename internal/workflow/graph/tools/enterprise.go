package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

const ToolEnterpriseProfile = "enterprise_profile"

type EnterpriseProfileInput struct {
	CompanyName string `json:"company_name"`
}

type EnterpriseProfileOutput struct {
	CompanyName   string   `json:"company_name"`
	Registration  string   `json:"registration"`
	EnvPenalties  []string `json:"env_penalties"`
	CreditRecord  string   `json:"credit_record"`
	ProfileSource string   `json:"profile_source"`
}

// createEnterpriseProfileTool builds the company background lookup. The three
// registries are independent, so they are queried concurrently and joined.
func createEnterpriseProfileTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolEnterpriseProfile,
			Desc: "查询企业背景信息，返回工商登记状态、环保处罚记录和信用记录。审核任何项目前应先用本工具核实申贷企业。",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"company_name": {
					Type:     schema.String,
					Desc:     "企业的完整注册名称，须与申报材料中的企业全称一致。",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *EnterpriseProfileInput) (*EnterpriseProfileOutput, error) {
			name := strings.TrimSpace(in.CompanyName)
			if name == "" {
				return nil, fmt.Errorf("company_name is required")
			}

			out := &EnterpriseProfileOutput{CompanyName: name, ProfileSource: "registry"}

			var wg sync.WaitGroup
			wg.Add(3)
			go func() {
				defer wg.Done()
				out.Registration = lookupRegistration(name)
			}()
			go func() {
				defer wg.Done()
				out.EnvPenalties = lookupEnvPenalties(name)
			}()
			go func() {
				defer wg.Done()
				out.CreditRecord = lookupCreditRecord(name)
			}()
			wg.Wait()

			return out, nil
		},
	)
}

type enterpriseRecord struct {
	Registration string
	EnvPenalties []string
	CreditRecord string
}

func lookupRegistration(name string) string {
	if r, ok := enterpriseRegistry[name]; ok {
		return r.Registration
	}
	return "存续（在营、开业、在册）"
}

func lookupEnvPenalties(name string) []string {
	if r, ok := enterpriseRegistry[name]; ok {
		return r.EnvPenalties
	}
	return nil
}

func lookupCreditRecord(name string) string {
	if r, ok := enterpriseRegistry[name]; ok {
		return r.CreditRecord
	}
	return "未查询到失信记录"
}

var enterpriseRegistry = map[string]enterpriseRecord{
	"绿源新能源有限公司": {
		Registration: "存续（在营、开业、在册），注册资本 5000 万元，成立于 2018 年",
		EnvPenalties: nil,
		CreditRecord: "未查询到失信记录",
	},
	"华东化工集团有限公司": {
		Registration: "存续（在营、开业、在册），注册资本 2 亿元，成立于 2005 年",
		EnvPenalties: []string{
			"2024-03 因废水超标排放被处罚款 45 万元",
			"2023-11 因未批先建被责令停产整治",
		},
		CreditRecord: "存在 1 条被执行人记录",
	},
	"蓝天风电科技股份有限公司": {
		Registration: "存续（在营、开业、在册），注册资本 1.2 亿元，成立于 2015 年",
		EnvPenalties: nil,
		CreditRecord: "未查询到失信记录",
	},
}
