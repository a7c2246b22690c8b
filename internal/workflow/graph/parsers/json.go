package parsers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/green-credit-copilot/server/internal/model"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// basic safety limit to avoid pathological inputs
const maxContentLen = 128 * 1024 // 128KB

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON pulls a JSON object out of free-form model output. Tried in
// order: fenced code block, first balanced top-level object, whole string.
func ExtractJSON(content string) (string, error) {
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "json_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("empty content")
	}

	if m := fencedJSONRe.FindStringSubmatch(content); len(m) == 2 {
		if candidate := strings.TrimSpace(m[1]); validJSON(candidate) {
			return candidate, nil
		}
	}
	if candidate := balancedObject(content); candidate != "" && validJSON(candidate) {
		return candidate, nil
	}
	if validJSON(content) {
		return content, nil
	}
	return "", fmt.Errorf("no json object found")
}

// balancedObject returns the first brace-balanced object in s, respecting
// string literals and escapes.
func balancedObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func validJSON(s string) bool {
	var v any
	return sonic.UnmarshalString(s, &v) == nil
}

// ParseEntities decodes the extractor model's output into entity fields.
// Unparseable output degrades to an empty set rather than failing the turn.
func ParseEntities(content string) *model.Entities {
	raw, err := ExtractJSON(content)
	if err != nil {
		logx.Warn().Str("component", "entity_parser").Err(err).Msg("no json in extractor output")
		return &model.Entities{}
	}

	var payload struct {
		CompanyName      *string `json:"company_name"`
		LoanPurpose      *string `json:"loan_purpose"`
		IndustryCategory *string `json:"industry_category"`
	}
	if err := sonic.UnmarshalString(raw, &payload); err != nil {
		logx.Warn().Str("component", "entity_parser").Err(err).Msg("bad json in extractor output")
		return &model.Entities{}
	}

	return &model.Entities{
		CompanyName:      cleanField(payload.CompanyName),
		LoanPurpose:      cleanField(payload.LoanPurpose),
		IndustryCategory: cleanField(payload.IndustryCategory),
	}
}

// ParseDecision decodes a submit_audit_result tool call's arguments.
func ParseDecision(arguments string) (*model.AuditDecision, error) {
	raw, err := ExtractJSON(arguments)
	if err != nil {
		return nil, fmt.Errorf("audit decision: %w", err)
	}
	var d model.AuditDecision
	if err := sonic.UnmarshalString(raw, &d); err != nil {
		return nil, fmt.Errorf("audit decision: %w", err)
	}
	d.Normalize()
	return &d, nil
}

// cleanField drops null-ish placeholder strings the model sometimes emits
// instead of a JSON null.
func cleanField(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	switch strings.ToLower(v) {
	case "", "null", "none", "n/a", "未知", "无":
		return nil
	}
	return &v
}
