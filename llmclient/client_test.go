package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"clause-agent/config"
	apperrors "clause-agent/errors"

	"go.uber.org/zap"
)

func testConfig(llmURL, embedURL string) *config.Config {
	return &config.Config{
		LLMAPIURL:         llmURL,
		LLMAppCode:        "test-code",
		LLMModel:          "qwen72b",
		EmbeddingURL:      embedURL,
		EmbeddingAppCode:  "test-code",
		MaxRetries:        2,
		RetryBackoff:      time.Millisecond,
		RetryBackoffMax:   2 * time.Millisecond,
		LLMRequestTimeout: 5 * time.Second,
	}
}

func TestGenerateSendsDefaultsAndAuth(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "宽限期为60天。"}},
			},
		})
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := New(testConfig(server.URL, server.URL), logger)

	got, err := client.Generate(context.Background(), "宽限期是多久", "你是保险助手", 0, -1)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "宽限期为60天。" {
		t.Errorf("Generate() = %q, want the completion text", got)
	}
	if gotAuth != "Bearer test-code" {
		t.Errorf("Authorization = %q, want bearer app code", gotAuth)
	}
	if gotReq.MaxTokens != 1000 || gotReq.Temperature != 0.7 {
		t.Errorf("defaults not applied: max_tokens=%d temperature=%v", gotReq.MaxTokens, gotReq.Temperature)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("messages = %+v, want system prompt first", gotReq.Messages)
	}
}

func TestGenerateRetriesOnServerError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := New(testConfig(server.URL, server.URL), logger)

	got, err := client.Generate(context.Background(), "问题", "", 100, 0)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("Generate() = %q, want ok", got)
	}
	if attempts.Load() != 3 {
		t.Errorf("server saw %d attempts, want 3", attempts.Load())
	}
}

func TestGenerateExhaustedRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := New(testConfig(server.URL, server.URL), logger)

	_, err := client.Generate(context.Background(), "问题", "", 100, 0)
	if !apperrors.IsLLMCommunication(err) {
		t.Errorf("Generate() error = %v, want LLM communication failure", err)
	}
}

func TestEmbedFallbackVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := New(testConfig(server.URL, server.URL), logger)

	vector, err := client.Embed(context.Background(), "宽限期")
	if err == nil {
		t.Fatal("Embed() error = nil, want failure after retries")
	}
	if len(vector) != 1 || vector[0] != 0 {
		t.Errorf("Embed() fallback vector = %v, want [0]", vector)
	}
}

func TestEmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		json.NewDecoder(r.Body).Decode(&req)
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"embedding": []float32{float32(i), 1}}
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := New(testConfig(server.URL, server.URL), logger)

	vectors, err := client.EmbedBatch(context.Background(), []string{"一", "二", "三"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("EmbedBatch() returned %d vectors, want 3", len(vectors))
	}
	if vectors[2][0] != 2 {
		t.Errorf("vectors[2] = %v, want index-tagged embedding", vectors[2])
	}
}

func TestBackoffCap(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	cfg := testConfig("http://unused", "http://unused")
	cfg.RetryBackoff = 100 * time.Millisecond
	cfg.RetryBackoffMax = 150 * time.Millisecond
	client := New(cfg, logger)

	start := time.Now()
	client.backoffSleep(4) // uncapped would be 1.6s
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("backoffSleep not capped: slept %v", elapsed)
	}
}

func TestGenerateNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := New(testConfig(server.URL, server.URL), logger)

	_, err := client.Generate(context.Background(), "问题", "", 100, 0)
	if err == nil || !strings.Contains(err.Error(), "no response choices") {
		t.Errorf("Generate() error = %v, want no-choices failure", err)
	}
}
