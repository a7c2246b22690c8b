package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/green-credit-copilot/server/internal/model"
)

const dynamicToolMaxBody = 256 * 1024 // 256KB per tool response

// dynamicTool adapts a user-configured HTTP tool definition into an Eino
// tool. GET requests map arguments to query parameters; everything else
// sends them as a JSON body.
type dynamicTool struct {
	def    model.ToolDefinition
	client *http.Client
}

// NewDynamicTool builds a callable tool from a stored definition.
func NewDynamicTool(def model.ToolDefinition, timeout time.Duration) (tool.InvokableTool, error) {
	if strings.TrimSpace(def.Name) == "" {
		return nil, fmt.Errorf("dynamic tool: name is required")
	}
	if _, err := url.ParseRequestURI(def.URL); err != nil {
		return nil, fmt.Errorf("dynamic tool %s: bad url: %w", def.Name, err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &dynamicTool{
		def:    def,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (t *dynamicTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	params := make(map[string]*schema.ParameterInfo, len(t.def.Params))
	for _, p := range t.def.Params {
		params[p.Name] = &schema.ParameterInfo{
			Type:     einoParamType(p.Type),
			Desc:     p.Description,
			Required: p.Required,
		}
	}
	return &schema.ToolInfo{
		Name:        t.def.Name,
		Desc:        t.def.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

func (t *dynamicTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args map[string]any
	if strings.TrimSpace(argumentsInJSON) != "" {
		if err := sonic.UnmarshalString(argumentsInJSON, &args); err != nil {
			return "", fmt.Errorf("tool %s: bad arguments: %w", t.def.Name, err)
		}
	}

	method := strings.ToUpper(strings.TrimSpace(t.def.Method))
	if method == "" {
		method = http.MethodGet
	}

	var req *http.Request
	var err error
	if method == http.MethodGet {
		req, err = t.buildGetRequest(ctx, args)
	} else {
		req, err = t.buildBodyRequest(ctx, method, argumentsInJSON)
	}
	if err != nil {
		return "", err
	}
	for k, v := range t.def.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", t.def.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, dynamicToolMaxBody))
	if err != nil {
		return "", fmt.Errorf("tool %s: read response: %w", t.def.Name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("tool %s: status %d: %s", t.def.Name, resp.StatusCode, truncate(string(body), 200))
	}
	return string(body), nil
}

func (t *dynamicTool) buildGetRequest(ctx context.Context, args map[string]any) (*http.Request, error) {
	u, err := url.Parse(t.def.URL)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", t.def.Name, err)
	}
	q := u.Query()
	for k, v := range args {
		q.Set(k, fmt.Sprintf("%v", v))
	}
	u.RawQuery = q.Encode()
	return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
}

func (t *dynamicTool) buildBodyRequest(ctx context.Context, method, argumentsInJSON string) (*http.Request, error) {
	if strings.TrimSpace(argumentsInJSON) == "" {
		argumentsInJSON = "{}"
	}
	req, err := http.NewRequestWithContext(ctx, method, t.def.URL, strings.NewReader(argumentsInJSON))
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", t.def.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func einoParamType(t model.ParamType) schema.DataType {
	switch t {
	case model.ParamNumber:
		return schema.Number
	case model.ParamBoolean:
		return schema.Boolean
	case model.ParamInteger:
		return schema.Integer
	default:
		return schema.String
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
