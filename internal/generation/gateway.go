package generation

import (
	"context"
	"fmt"

	"github.com/p-n-ai/pai-lessons/internal/ai"
)

// Gateway sends a prompt to a language model and returns its raw text.
type Gateway interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenerationError reports that the model produced no usable text.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Completer is the subset of ai.Router a RouterGateway needs.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
}

// RouterGateway generates through an AI completer, usually an ai.Router
// with its provider fallback chain.
type RouterGateway struct {
	completer   Completer
	model       string
	maxTokens   int
	temperature float64
}

// GatewayConfig holds model call parameters.
type GatewayConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

const (
	defaultMaxTokens   = 2500
	defaultTemperature = 0.3
)

// NewRouterGateway creates a gateway over c.
func NewRouterGateway(c Completer, cfg GatewayConfig) *RouterGateway {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	return &RouterGateway{
		completer:   c,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func (g *RouterGateway) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.completer.Complete(ctx, ai.CompletionRequest{
		Messages:    ai.UserPrompt(prompt),
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		JSONMode:    true,
	})
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	return resp.Content, nil
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, prompt string) (string, error)

func (f GatewayFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
