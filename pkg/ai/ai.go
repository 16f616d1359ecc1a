// Package ai is the LLM surface of the diagram assistant. Adapters for
// OpenAI compatible endpoints and Ollama live in subpackages.
package ai

import (
	"context"
	"math"
	"sync"
)

// GenerateOptions holds configuration for AI generation requests.
type GenerateOptions struct {
	Model         string   // Model identifier to use for generation
	SystemPrompts []string // System prompts prepended to the request
	Temperature   float64  // Sampling temperature (0.0-2.0)
	Thinking      string   // Reasoning effort, empty to disable
	MaxTokens     int64    // Upper bound for the answer, 0 for the model default
}

// GenerateOption is a functional option for configuring AI generation requests.
type GenerateOption func(*GenerateOptions)

func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature sets the sampling temperature. Lower values make the
// output more focused and deterministic.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

func WithThinking(thinking string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Thinking = thinking
	}
}

func WithMaxTokens(n int64) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = n
	}
}

// Apply returns defaults with opts applied in order.
func Apply(defaults GenerateOptions, opts []GenerateOption) GenerateOptions {
	for _, o := range opts {
		o(&defaults)
	}
	return defaults
}

// ModelMetrics contains accumulated usage of a client.
type ModelMetrics struct {
	Requests       int     `json:"requests"`
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// Metrics accumulates ModelMetrics across concurrent requests.
type Metrics struct {
	mu sync.Mutex
	m  ModelMetrics
}

func (m *Metrics) Add(in ModelMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.m.Requests++
	m.m.InputTokens += in.InputTokens
	m.m.OutputTokens += in.OutputTokens
	m.m.TotalTokens += in.TotalTokens
	m.m.DurationMs += in.DurationMs

	if m.m.DurationMs > 0 {
		tokensPerSecond := (float64(m.m.TotalTokens) * 1000.0) / float64(m.m.DurationMs)
		m.m.TokenPerSecond = float32(math.Round(tokensPerSecond*100) / 100)
	}
}

func (m *Metrics) Get() ModelMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m
}

// ChatClient generates completions from a chat model.
type ChatClient interface {
	// GenerateCompletionWithFormat asks for JSON matching the schema of out
	// and decodes the answer into out.
	GenerateCompletionWithFormat(
		ctx context.Context,
		name string,
		description string,
		prompt string,
		out any,
		opts ...GenerateOption,
	) error
	// GetMetrics returns the usage accumulated over the client's lifetime.
	GetMetrics() ModelMetrics
}
