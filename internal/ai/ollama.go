package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2"
)

// OllamaProvider implements Provider using a local Ollama server.
type OllamaProvider struct {
	usageTracker
	client *api.Client
	model  string
}

// NewOllamaProvider creates a new Ollama provider with the given config.
func NewOllamaProvider(baseURL, model string) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid Ollama URL scheme %q: must be http or https", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("invalid Ollama URL: missing host")
	}

	return &OllamaProvider{
		client: api.NewClient(&url.URL{Scheme: parsed.Scheme, Host: parsed.Host}, http.DefaultClient),
		model:  model,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return p.model
}

func (p *OllamaProvider) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	msgs := make([]api.Message, 0, len(messages)+1)
	if system != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: system})
	}
	for _, m := range messages {
		msgs = append(msgs, api.Message{Role: string(m.Role), Content: m.Content})
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model:    p.model,
		Messages: msgs,
		Stream:   &streamFalse,
	}

	var reply strings.Builder
	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		if resp.Done {
			p.trackUsage(int64(resp.PromptEvalCount), int64(resp.EvalCount))
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}

	content := strings.TrimSpace(reply.String())
	if content == "" {
		return "", errors.New("empty response from ollama")
	}
	return content, nil
}
