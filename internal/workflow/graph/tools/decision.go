package tools

import (
	"github.com/cloudwego/eino/schema"
)

// ToolSubmitAuditResult is the decision tool the auditor must call to finish
// an audit. It is never executed as a real tool: the agent loop intercepts
// the call and records the decision, and the first submission wins.
const ToolSubmitAuditResult = "submit_audit_result"

// DecisionToolInfo describes the decision tool for model binding.
func DecisionToolInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolSubmitAuditResult,
		Desc: "提交最终审核结论。完成合规审核后必须调用本工具，且只能调用一次。结论只能通过本工具提交，不要在普通回复中给出。",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"status": {
				Type:     schema.String,
				Desc:     "审核结论：材料齐全且合规为 PASS，存在缺失或不合规为 MISSING。",
				Required: true,
			},
			"missing_items": {
				Type: schema.Array,
				ElemInfo: &schema.ParameterInfo{
					Type: schema.String,
					Desc: "单项缺失材料的名称",
				},
				Desc: "缺失材料清单。status 为 MISSING 时逐项列出，status 为 PASS 时留空。",
			},
			"guide_message": {
				Type: schema.String,
				Desc: "面向用户的中文引导语，告知下一步需要补充什么材料。",
			},
			"reason": {
				Type:     schema.String,
				Desc:     "判定依据的简要说明。",
				Required: true,
			},
		}),
	}
}
