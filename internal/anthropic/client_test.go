package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-test" {
			t.Errorf("api key header = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("missing anthropic-version header")
		}

		var req struct {
			Model     string    `json:"model"`
			MaxTokens int       `json:"max_tokens"`
			System    string    `json:"system"`
			Messages  []Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "claude-sonnet-4-6" || req.MaxTokens != 1500 {
			t.Errorf("model/max_tokens = %q/%d", req.Model, req.MaxTokens)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}
		if req.System == "" {
			t.Error("system prompt not forwarded")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"*Schedule*\n\nNothing today."}]}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL, "claude-sonnet-4-6", 1500)
	got, err := c.Generate(context.Background(), "you are a chief of staff", "brief me")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(got, "*Schedule*") {
		t.Errorf("got %q", got)
	}
}

func TestChat_History(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []Message `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 3 {
			t.Errorf("got %d messages, want 3", len(req.Messages))
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	c := NewClient("sk", srv.URL, "m", 100)
	_, err := c.Chat(context.Background(), "sys", []Message{
		{Role: "user", Content: "earlier"},
		{Role: "assistant", Content: "reply"},
		{Role: "user", Content: "now"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
}

func TestGenerate_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	c := NewClient("sk", srv.URL, "m", 100)
	_, err := c.Generate(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "rate_limit_error") || !strings.Contains(err.Error(), "slow down") {
		t.Errorf("error should carry provider detail: %v", err)
	}
}

func TestGenerate_NoTextContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	c := NewClient("sk", srv.URL, "m", 100)
	if _, err := c.Generate(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error for empty content")
	}
}
