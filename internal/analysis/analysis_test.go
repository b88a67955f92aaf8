package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/crisisfeed/internal/model"
)

func TestOpenAIExtractor_ExtractKeywords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != openai.ChatMessageRoleSystem {
			t.Errorf("Expected system and user messages, got %+v", req.Messages)
		}

		resp := openai.ChatCompletionResponse{
			ID:    "chatcmpl-123",
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{
				{
					Message: openai.ChatCompletionMessage{
						Role:    openai.ChatMessageRoleAssistant,
						Content: `["Flood", "shelter", "flood", "I-45"]`,
					},
					FinishReason: "stop",
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	e, err := NewOpenAIExtractor(model.LLMConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}

	got, err := e.ExtractKeywords(context.Background(), "Flooding on I-45, shelter at the high school")
	if err != nil {
		t.Fatalf("ExtractKeywords failed: %v", err)
	}

	want := []string{"flood", "shelter", "i-45"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keyword %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestOpenAIExtractor_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	e, err := NewOpenAIExtractor(model.LLMConfig{APIKey: "bad", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}

	if _, err := e.ExtractKeywords(context.Background(), "anything"); err == nil {
		t.Error("Expected error for 401 response")
	}
}

func TestNewOpenAIExtractor_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIExtractor(model.LLMConfig{}); err == nil {
		t.Error("Expected error without API key")
	}
}

func TestOllamaExtractor_ExtractKeywords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "llama3.1:8b" || req.Stream {
			t.Errorf("unexpected request: %+v", req)
		}

		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:    req.Model,
			Response: "wildfire, evacuation\nsmoke",
			Done:     true,
		})
	}))
	defer server.Close()

	e, err := NewOllamaExtractor(model.LLMConfig{Model: "llama3.1:8b", BaseURL: server.URL + "/"}, model.HTTPConfig{})
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}

	got, err := e.ExtractKeywords(context.Background(), "smoke everywhere, evacuation ordered")
	if err != nil {
		t.Fatalf("ExtractKeywords failed: %v", err)
	}
	if len(got) != 3 || got[0] != "wildfire" || got[2] != "smoke" {
		t.Errorf("unexpected keywords: %v", got)
	}
}

func TestOllamaExtractor_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer server.Close()

	e, err := NewOllamaExtractor(model.LLMConfig{Model: "missing", BaseURL: server.URL}, model.HTTPConfig{})
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}
	if _, err := e.ExtractKeywords(context.Background(), "text"); err == nil {
		t.Error("Expected error for 404 response")
	}
}

func TestParseKeywords(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  int
	}{
		{"json array", `["a", "b"]`, 2},
		{"fenced json", "```json\n[\"a\",\"b\",\"c\"]\n```", 3},
		{"comma list", "flood, storm, , flood", 2},
		{"bullets", "- flood\n- storm", 2},
		{"empty", "[]", 0},
		{"capped", `["1","2","3","4","5","6","7","8","9","10"]`, MaxKeywords},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseKeywords(tt.reply); len(got) != tt.want {
				t.Errorf("ParseKeywords(%q) = %v, want %d keywords", tt.reply, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	e, err := New(model.LLMConfig{}, model.HTTPConfig{})
	if err != nil || e != nil {
		t.Errorf("empty provider should disable extraction, got %v, %v", e, err)
	}

	if _, err := New(model.LLMConfig{Provider: "bogus"}, model.HTTPConfig{}); err == nil {
		t.Error("Expected error for unknown provider")
	}

	e, err = New(model.LLMConfig{Provider: "OpenAI", APIKey: "k"}, model.HTTPConfig{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if e.Name() != "openai" {
		t.Errorf("Expected openai, got %s", e.Name())
	}
}
