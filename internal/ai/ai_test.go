package ai

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kozaktomas/photo-gallery/internal/config"
)

func TestUsageTracker(t *testing.T) {
	u := usageTracker{pricing: RequestPricing{Input: 0.40, Output: 1.60}}
	u.trackUsage(1_000_000, 500_000)
	u.trackUsage(500_000, 0)

	got := u.GetUsage()
	if got.InputTokens != 1_500_000 {
		t.Errorf("InputTokens = %d, want 1500000", got.InputTokens)
	}
	if got.OutputTokens != 500_000 {
		t.Errorf("OutputTokens = %d, want 500000", got.OutputTokens)
	}
	if math.Abs(got.TotalCost-1.40) > 1e-9 {
		t.Errorf("TotalCost = %v, want 1.40", got.TotalCost)
	}

	u.ResetUsage()
	if got := u.GetUsage(); got != (Usage{}) {
		t.Errorf("after reset usage = %+v, want zero", got)
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantErr  bool
		wantName string
	}{
		{name: "none", cfg: config.Config{}, wantErr: true},
		{name: "unknown", cfg: config.Config{LLM: config.LLMConfig{Provider: "watson"}}, wantErr: true},
		{name: "openai without token", cfg: config.Config{LLM: config.LLMConfig{Provider: "openai"}}, wantErr: true},
		{name: "gemini without key", cfg: config.Config{LLM: config.LLMConfig{Provider: "gemini"}}, wantErr: true},
		{
			name:     "openai default model",
			cfg:      config.Config{LLM: config.LLMConfig{Provider: "openai"}, OpenAI: config.OpenAIConfig{Token: "sk-test"}},
			wantName: "gpt-4.1-mini",
		},
		{name: "ollama defaults", cfg: config.Config{LLM: config.LLMConfig{Provider: "ollama"}}, wantName: "llama3.2"},
		{
			name:    "ollama bad scheme",
			cfg:     config.Config{LLM: config.LLMConfig{Provider: "ollama"}, Ollama: config.OllamaConfig{URL: "ftp://host"}},
			wantErr: true,
		},
		{
			name:     "llamacpp custom model",
			cfg:      config.Config{LLM: config.LLMConfig{Provider: "llamacpp"}, LlamaCpp: config.LlamaCppConfig{Model: "qwen"}},
			wantName: "qwen",
		},
		{
			name:    "llamacpp missing host",
			cfg:     config.Config{LLM: config.LLMConfig{Provider: "llamacpp"}, LlamaCpp: config.LlamaCppConfig{URL: "http://"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(context.Background(), &tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewProvider() expected error, got provider %v", p)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProvider() error = %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

func TestNewProvider_NoneIsErrNoProvider(t *testing.T) {
	_, err := NewProvider(context.Background(), &config.Config{})
	if !errors.Is(err, ErrNoProvider) {
		t.Errorf("NewProvider() error = %v, want ErrNoProvider", err)
	}
}

func TestLlamaCppProvider_Complete(t *testing.T) {
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s, want /v1/chat/completions", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "qwen",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "  A sunny beach.  "}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	}))
	defer server.Close()

	p, err := NewLlamaCppProvider(server.URL, "qwen")
	if err != nil {
		t.Fatalf("NewLlamaCppProvider() error = %v", err)
	}

	reply, err := p.Complete(context.Background(), "be brief", []Message{
		{Role: RoleUser, Content: "describe"},
		{Role: RoleAssistant, Content: "ok"},
		{Role: RoleUser, Content: "again"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "A sunny beach." {
		t.Errorf("Complete() = %q, want %q", reply, "A sunny beach.")
	}

	if gotBody.Model != "qwen" {
		t.Errorf("request model = %q, want qwen", gotBody.Model)
	}
	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(gotBody.Messages) != len(wantRoles) {
		t.Fatalf("request has %d messages, want %d", len(gotBody.Messages), len(wantRoles))
	}
	for i, role := range wantRoles {
		if gotBody.Messages[i].Role != role {
			t.Errorf("messages[%d].role = %q, want %q", i, gotBody.Messages[i].Role, role)
		}
	}

	usage := p.GetUsage()
	if usage.InputTokens != 12 || usage.OutputTokens != 4 {
		t.Errorf("usage = %+v, want 12 in / 4 out", usage)
	}
	if usage.TotalCost != 0 {
		t.Errorf("TotalCost = %v, want 0 for local inference", usage.TotalCost)
	}
}

func TestOllamaProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Stream   *bool  `json:"stream"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream == nil || *req.Stream {
			t.Error("expected stream=false")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v, want system + user", req.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"Two dogs."},"done":true,"prompt_eval_count":20,"eval_count":3}` + "\n"))
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL, "")
	if err != nil {
		t.Fatalf("NewOllamaProvider() error = %v", err)
	}

	reply, err := p.Complete(context.Background(), "system prompt", []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "Two dogs." {
		t.Errorf("Complete() = %q, want %q", reply, "Two dogs.")
	}
	if u := p.GetUsage(); u.InputTokens != 20 || u.OutputTokens != 3 {
		t.Errorf("usage = %+v, want 20 in / 3 out", u)
	}
}

func TestOllamaProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL, "llama3.2")
	if err != nil {
		t.Fatalf("NewOllamaProvider() error = %v", err)
	}
	if _, err := p.Complete(context.Background(), "", []Message{{Role: RoleUser, Content: "hi"}}); err == nil {
		t.Error("Complete() expected error for 500 response")
	}
}

func TestGeminiContents(t *testing.T) {
	contents := geminiContents([]Message{
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
	})
	if len(contents) != 2 {
		t.Fatalf("len = %d, want 2", len(contents))
	}
	if contents[0].Role != "user" || contents[1].Role != "model" {
		t.Errorf("roles = %q, %q, want user, model", contents[0].Role, contents[1].Role)
	}
	if contents[1].Parts[0].Text != "a1" {
		t.Errorf("text = %q, want a1", contents[1].Parts[0].Text)
	}
}

// stubProvider is a Provider for wrapper tests.
type stubProvider struct {
	usageTracker
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	err      error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	if n > s.maxSeen.Load() {
		s.maxSeen.Store(n)
	}
	time.Sleep(2 * time.Millisecond)
	if s.err != nil {
		return "", s.err
	}
	return strings.ToUpper(messages[len(messages)-1].Content), nil
}

func TestExclusive_SerializesCalls(t *testing.T) {
	stub := &stubProvider{}
	e := NewExclusive(stub)

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply, err := e.Complete(context.Background(), "", []Message{{Role: RoleUser, Content: "x"}})
			if err != nil || reply != "X" {
				t.Errorf("Complete() = %q, %v", reply, err)
			}
		}()
	}
	wg.Wait()

	if got := stub.maxSeen.Load(); got != 1 {
		t.Errorf("max in-flight = %d, want 1", got)
	}
	if e.Name() != "stub" {
		t.Errorf("Name() = %q, want stub", e.Name())
	}
}

func TestExclusive_PropagatesErrors(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	e := NewExclusive(&stubProvider{err: wantErr})

	if _, err := e.Complete(context.Background(), "", []Message{{Role: RoleUser, Content: "x"}}); !errors.Is(err, wantErr) {
		t.Errorf("Complete() error = %v, want %v", err, wantErr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Complete(ctx, "", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Complete() with cancelled ctx error = %v, want context.Canceled", err)
	}
}
