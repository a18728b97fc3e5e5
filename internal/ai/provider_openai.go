package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIBaseURL  = "https://api.openai.com/v1"
	defaultMistralBaseURL = "https://api.mistral.ai/v1"

	defaultOpenAIModel  = "gpt-4o-mini"
	defaultMistralModel = "mistral-small-latest"
)

// OpenAIProvider implements Provider for OpenAI and OpenAI-compatible APIs
// (Mistral, DeepSeek, Groq, etc.) via a configurable base URL.
type OpenAIProvider struct {
	client *openai.Client
	name   string
	model  string
}

type openAIOptions struct {
	baseURL    string
	httpClient *http.Client
	name       string
	model      string
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*openAIOptions)

// WithBaseURL sets the base URL for the OpenAI-compatible API.
func WithBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) {
		if url != "" {
			o.baseURL = url
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(o *openAIOptions) {
		o.httpClient = client
	}
}

// WithModel sets the model used when a request does not name one.
func WithModel(model string) OpenAIOption {
	return func(o *openAIOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithProviderName sets the provider name (for multi-instance use, e.g. "mistral").
func WithProviderName(name string) OpenAIOption {
	return func(o *openAIOptions) {
		o.name = name
	}
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	o := &openAIOptions{
		baseURL: defaultOpenAIBaseURL,
		name:    "openai",
		model:   defaultOpenAIModel,
	}
	for _, opt := range opts {
		opt(o)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = o.baseURL
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		name:   o.name,
		model:  o.model,
	}
}

// NewMistralProvider creates a provider for the Mistral API, which speaks
// the OpenAI chat completions protocol.
func NewMistralProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	opts = append([]OpenAIOption{
		WithBaseURL(defaultMistralBaseURL),
		WithProviderName("mistral"),
		WithModel(defaultMistralModel),
	}, opts...)
	return NewOpenAIProvider(apiKey, opts...)
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    buildOpenAIMessages(req),
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return CompletionResponse{}, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return CompletionResponse{}, &ErrEmptyResponse{Provider: p.name}
	}

	return CompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		Provider:     p.name,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", mapOpenAIError(err))
	}
	return nil
}

func buildOpenAIMessages(req CompletionRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	return messages
}

func mapOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}
	return &ErrProviderUnavailable{Err: err}
}
