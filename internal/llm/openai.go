package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// openAIModels lists the chat models the pipeline is tuned for.
var openAIModels = []string{
	"gpt-4.1-mini",
	"gpt-4.1",
	"gpt-4o",
	"gpt-4o-mini",
}

// OpenAIProvider implements LLMProvider on the OpenAI Chat Completions API.
type OpenAIProvider struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	reqOpts     []option.RequestOption
}

// OpenAIOption configures the OpenAI provider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIBaseURL sets a custom base URL (e.g., for Azure OpenAI or proxies).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if url != "" {
			p.reqOpts = append(p.reqOpts, option.WithBaseURL(strings.TrimRight(url, "/")+"/"))
		}
	}
}

// WithOpenAIModel sets the default model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithOpenAITemperature sets the default sampling temperature.
func WithOpenAITemperature(t float64) OpenAIOption {
	return func(p *OpenAIProvider) { p.temperature = t }
}

// WithOpenAIMaxTokens caps completion tokens.
func WithOpenAIMaxTokens(n int) OpenAIOption {
	return func(p *OpenAIProvider) { p.maxTokens = n }
}

// WithOpenAITimeout bounds each request.
func WithOpenAITimeout(d time.Duration) OpenAIOption {
	return func(p *OpenAIProvider) {
		if d > 0 {
			p.reqOpts = append(p.reqOpts, option.WithRequestTimeout(d))
		}
	}
}

// WithOpenAIHTTPClient sets a custom HTTP client.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.reqOpts = append(p.reqOpts, option.WithHTTPClient(client)) }
}

// WithOpenAIRequestOptions appends raw SDK request options (middleware, headers).
func WithOpenAIRequestOptions(opts ...option.RequestOption) OpenAIOption {
	return func(p *OpenAIProvider) { p.reqOpts = append(p.reqOpts, opts...) }
}

// NewOpenAIProvider creates an OpenAI provider. The SDK's own retries are
// disabled; a failed request surfaces immediately.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	p := &OpenAIProvider{
		model:       "gpt-4.1-mini",
		temperature: 0.3,
		maxTokens:   4096,
	}
	for _, opt := range opts {
		opt(p)
	}
	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, p.reqOpts...)
	p.client = openai.NewClient(clientOpts...)
	return p, nil
}

func (p *OpenAIProvider) Name() string     { return ProviderOpenAI }
func (p *OpenAIProvider) Models() []string { return openAIModels }

// Ping verifies the API key by listing models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return mapOpenAIError(err)
	}
	return nil
}

// Chat sends a chat completion request to OpenAI.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	model := resolveModel(opts, p.model)

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		Messages:            toOpenAIMessages(messages),
		Temperature:         openai.Float(resolveTemperature(opts, p.temperature)),
		MaxCompletionTokens: openai.Int(int64(resolveMaxTokens(opts, p.maxTokens))),
	}
	if opts != nil && opts.TopP > 0 {
		params.TopP = openai.Float(opts.TopP)
	}
	if len(tools) > 0 {
		params.Tools = toOpenAITools(tools)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai: %w", ErrEmptyResponse)
	}

	choice := completion.Choices[0]
	resp := &Response{
		Content:      choice.Message.Content,
		FinishReason: openAIFinishReason(choice.FinishReason),
		Model:        completion.Model,
		Provider:     ProviderOpenAI,
		Latency:      time.Since(start),
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	if resp.Model == "" {
		resp.Model = model
	}
	for _, tc := range choice.Message.ToolCalls {
		args := tc.Function.Arguments
		if args == "" {
			args = "{}"
		}
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(args),
		})
	}
	if len(resp.ToolCalls) > 0 {
		resp.FinishReason = FinishToolCalls
	}
	return resp, nil
}

// ── Conversion Helpers ──

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			asst := &openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				asst.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(m.Content),
				}
			}
			for _, tc := range m.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: string(tc.Arguments),
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: asst})
		}
	}
	return out
}

func toOpenAITools(tools []Tool) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		def := openai.FunctionDefinitionParam{
			Name:       t.Name,
			Parameters: t.Parameters.Map(),
		}
		if t.Description != "" {
			def.Description = openai.String(t.Description)
		}
		out = append(out, openai.ChatCompletionFunctionTool(def))
	}
	return out
}

func openAIFinishReason(reason string) FinishReason {
	switch reason {
	case "tool_calls", "function_call":
		return FinishToolCalls
	case "length":
		return FinishLength
	case "":
		return FinishStop
	default:
		return FinishReason(reason)
	}
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("openai: %w: %v", ErrNoAPIKey, err)
		case http.StatusNotFound:
			return fmt.Errorf("openai: %w: %v", ErrInvalidModel, err)
		}
		if apiErr.StatusCode >= 500 {
			return fmt.Errorf("openai: %w: %v", ErrProviderDown, err)
		}
		if strings.Contains(apiErr.Error(), "context_length") {
			return fmt.Errorf("openai: %w: %v", ErrContextLength, err)
		}
	}
	return fmt.Errorf("openai: %w", err)
}
