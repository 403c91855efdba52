package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type anthropicClient struct {
	client anthropic.Client
	model  string
}

func newAnthropicClient(cfg Config) (Client, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5-20250514"
	}

	return &anthropicClient{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Chat forces a single tool call carrying the response schema. Anthropic has
// no response_format equivalent, so the tool input is the structured payload.
func (c *anthropicClient) Chat(ctx context.Context, req Request, result any) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}

	var inputSchema anthropic.ToolInputSchemaParam
	data, err := json.Marshal(req.Schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	if err := json.Unmarshal(data, &inputSchema); err != nil {
		return nil, fmt.Errorf("convert schema: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: req.SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(req.UserPrompt),
				},
			},
		},
		Tools: []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        req.SchemaName,
					Description: anthropic.String("Structured response schema"),
					InputSchema: inputSchema,
				},
			},
		},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: req.SchemaName},
		},
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic chat: %w", err)
	}

	slog.DebugContext(ctx, "llm chat completed",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.InputTokens,
		"completion_tokens", resp.Usage.OutputTokens)

	for _, block := range resp.Content {
		if block.Type == "tool_use" && block.Name == req.SchemaName {
			if err := json.Unmarshal(block.Input, result); err != nil {
				return nil, fmt.Errorf("unmarshal response: %w", err)
			}
			return &Response{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
			}, nil
		}
	}

	return nil, fmt.Errorf("no structured response in output (stop_reason %s)", resp.StopReason)
}

func (c *anthropicClient) Model() string {
	return c.model
}
