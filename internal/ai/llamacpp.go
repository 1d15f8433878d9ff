package ai

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/openai/openai-go/option"
)

const (
	defaultLlamaCppURL   = "http://localhost:8080"
	defaultLlamaCppModel = "llama"
)

// NewLlamaCppProvider creates a provider for a llama.cpp server through its
// OpenAI-compatible endpoint. Local inference is free, so no pricing applies.
func NewLlamaCppProvider(baseURL, model string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = defaultLlamaCppURL
	}
	if model == "" {
		model = defaultLlamaCppModel
	}
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid llama.cpp URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid llama.cpp URL scheme %q: must be http or https", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("invalid llama.cpp URL: missing host")
	}

	return NewOpenAIProvider("llamacpp", model, RequestPricing{},
		option.WithBaseURL(parsed.String()+"/v1/"),
		option.WithMaxRetries(0),
	), nil
}
