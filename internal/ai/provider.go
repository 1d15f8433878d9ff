// Package ai provides text completion backends used to enhance image descriptions
// and to chat about an image.
package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/metrics"
)

// ErrNoProvider is returned by NewProvider when no LLM provider is configured.
var ErrNoProvider = errors.New("no LLM provider configured")

// Role of a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Provider defines the interface for LLM backends.
type Provider interface {
	Name() string
	// Complete sends the system prompt and the conversation and returns the reply text.
	Complete(ctx context.Context, system string, messages []Message) (string, error)

	// Usage tracking.
	GetUsage() Usage
	ResetUsage()
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64 // in USD
}

// RequestPricing holds input/output prices per 1M tokens
type RequestPricing struct {
	Input  float64
	Output float64
}

// usageTracker accumulates token counts. It is safe for concurrent use.
type usageTracker struct {
	mu      sync.Mutex
	usage   Usage
	pricing RequestPricing
}

func (u *usageTracker) trackUsage(inputTokens, outputTokens int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.usage.InputTokens += int(inputTokens)
	u.usage.OutputTokens += int(outputTokens)
	u.usage.TotalCost += float64(inputTokens) / 1_000_000 * u.pricing.Input
	u.usage.TotalCost += float64(outputTokens) / 1_000_000 * u.pricing.Output
}

func (u *usageTracker) GetUsage() Usage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.usage
}

func (u *usageTracker) ResetUsage() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.usage = Usage{}
}

// NewProvider creates the provider selected by cfg.LLM.Provider.
// It returns ErrNoProvider when the selection is empty.
func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.LLM.Provider {
	case "":
		return nil, ErrNoProvider
	case "openai":
		if cfg.OpenAI.Token == "" {
			return nil, errors.New("OPENAI_TOKEN is required for the openai provider")
		}
		model := cfg.OpenAI.Model
		if model == "" {
			model = string(defaultOpenAIModel)
		}
		return NewOpenAIProvider(cfg.OpenAI.Token, model, pricingFor(cfg, model)), nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, errors.New("GEMINI_API_KEY is required for the gemini provider")
		}
		return NewGeminiProvider(ctx, cfg.Gemini.APIKey, pricingFor(cfg, geminiModel))
	case "ollama":
		return NewOllamaProvider(cfg.Ollama.URL, cfg.Ollama.Model)
	case "llamacpp":
		return NewLlamaCppProvider(cfg.LlamaCpp.URL, cfg.LlamaCpp.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
	}
}

func pricingFor(cfg *config.Config, model string) RequestPricing {
	p := cfg.GetModelPricing(model).Standard
	return RequestPricing{Input: p.Input, Output: p.Output}
}

// Exclusive serializes calls to a Provider and records request metrics.
type Exclusive struct {
	mu    sync.Mutex
	inner Provider
}

func NewExclusive(p Provider) *Exclusive {
	return &Exclusive{inner: p}
}

func (e *Exclusive) Name() string {
	return e.inner.Name()
}

func (e *Exclusive) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	start := time.Now()
	reply, err := e.inner.Complete(ctx, system, messages)
	metrics.InferenceDuration.WithLabelValues("llm").Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.LLMRequestsTotal.WithLabelValues(e.inner.Name(), status).Inc()
	return reply, err
}

func (e *Exclusive) GetUsage() Usage {
	return e.inner.GetUsage()
}

func (e *Exclusive) ResetUsage() {
	e.inner.ResetUsage()
}
