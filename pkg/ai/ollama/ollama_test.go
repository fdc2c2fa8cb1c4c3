package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"
)

func TestHeaderTransport(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := &http.Client{Transport: &headerTransport{
		headers: map[string]string{"Authorization": "Bearer secret"},
		rt:      http.DefaultTransport,
	}}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if got != "Bearer secret" {
		t.Fatalf("Authorization = %q, want %q", got, "Bearer secret")
	}
}

func TestNewRequestSizesContext(t *testing.T) {
	c, err := NewGraphOllamaClient(NewGraphOllamaClientParams{
		SummaryModel: "llama3",
		Tokenizer:    ai.WordTokenizer{},
	})
	if err != nil {
		t.Fatalf("NewGraphOllamaClient() error = %v", err)
	}

	short := c.newRequest(ai.GenerateOptions{Model: "llama3"}, "hello world")
	if _, ok := short.Options["num_ctx"]; ok {
		t.Fatalf("short prompt should keep the default context")
	}

	long := make([]byte, 0, 5000*2)
	for range 5000 {
		long = append(long, 'a', ' ')
	}
	req := c.newRequest(ai.GenerateOptions{Model: "llama3", SystemPrompts: []string{"sys"}}, string(long))
	if req.Options["num_ctx"] != 5000+contextHeadroom {
		t.Fatalf("num_ctx = %v", req.Options["num_ctx"])
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", req.Messages)
	}
}

func TestBlankEmbedding(t *testing.T) {
	c, err := NewGraphOllamaClient(NewGraphOllamaClientParams{EmbeddingDim: 8})
	if err != nil {
		t.Fatalf("NewGraphOllamaClient() error = %v", err)
	}
	got, err := c.GenerateEmbedding(context.Background(), []byte(" \n"))
	if err != nil {
		t.Fatalf("GenerateEmbedding() error = %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("len = %d, want 8", len(got))
	}
}
