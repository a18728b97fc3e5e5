package ai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const defaultGoogleModel = "gemini-2.0-flash"

// GoogleProvider implements Provider for Google Gemini.
type GoogleProvider struct {
	client *genai.Client
	model  string
}

// GoogleOption configures a GoogleProvider.
type GoogleOption func(*genai.ClientConfig, *string)

// WithGoogleBaseURL sets the API base URL (for testing).
func WithGoogleBaseURL(url string) GoogleOption {
	return func(cfg *genai.ClientConfig, _ *string) {
		cfg.HTTPOptions.BaseURL = url
	}
}

// WithGoogleModel overrides the default model.
func WithGoogleModel(model string) GoogleOption {
	return func(_ *genai.ClientConfig, m *string) {
		if model != "" {
			*m = model
		}
	}
}

// NewGoogleProvider creates a new Google Gemini provider.
func NewGoogleProvider(ctx context.Context, apiKey string, opts ...GoogleOption) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	model := defaultGoogleModel
	for _, opt := range opts {
		opt(cfg, &model)
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GoogleProvider{client: client, model: model}, nil
}

func (p *GoogleProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	config := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}

	result, err := p.client.Models.GenerateContent(ctx, model, buildGeminiContents(req.Messages), config)
	if err != nil {
		return CompletionResponse{}, mapGeminiError(err)
	}

	text := result.Text()
	if text == "" {
		return CompletionResponse{}, &ErrEmptyResponse{Provider: "google"}
	}

	resp := CompletionResponse{
		Content:  text,
		Model:    model,
		Provider: "google",
	}
	if result.UsageMetadata != nil {
		resp.InputTokens = int(result.UsageMetadata.PromptTokenCount)
		resp.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	return resp, nil
}

func (p *GoogleProvider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.Models.Get(ctx, p.model, nil); err != nil {
		return fmt.Errorf("health check failed: %w", mapGeminiError(err))
	}
	return nil
}

func buildGeminiContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, len(msgs))
	for i, m := range msgs {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		out[i] = &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		}
	}
	return out
}

func mapGeminiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, err)
	}
	return &ErrProviderUnavailable{Err: err}
}
