package ai

import (
	"context"
	"strings"
	"testing"
)

type fakeCompletionClient struct {
	answer  string
	prompts []string
}

func (f *fakeCompletionClient) GenerateCompletion(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.answer, nil
}

func (f *fakeCompletionClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...GenerateOption) error {
	return nil
}

func (f *fakeCompletionClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return nil, nil
}

func (f *fakeCompletionClient) ResetMetrics()            {}
func (f *fakeCompletionClient) GetMetrics() ModelMetrics { return ModelMetrics{} }

func TestLLMSummarizer(t *testing.T) {
	client := &fakeCompletionClient{answer: "  merged summary  "}
	s := NewLLMSummarizer(NewLLMSummarizerParams{
		Client:    client,
		Tokenizer: WordTokenizer{},
		MaxTokens: 4,
		Separator: "<SEP>",
	})
	ctx := context.Background()

	tests := []struct {
		name    string
		in      []string
		want    string
		llmCall bool
	}{
		{name: "empty", in: nil, want: ""},
		{name: "single passes through", in: []string{" one description "}, want: "one description"},
		{name: "short joined", in: []string{"a b", "c d"}, want: "a b<SEP>c d"},
		{name: "long summarized", in: []string{"one two three", "four five six", "seven"}, want: "merged summary", llmCall: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(client.prompts)
			got, err := s.Summarize(ctx, tt.in)
			if err != nil {
				t.Fatalf("Summarize() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Summarize() = %q, want %q", got, tt.want)
			}
			if called := len(client.prompts) > before; called != tt.llmCall {
				t.Fatalf("llm called = %v, want %v", called, tt.llmCall)
			}
		})
	}

	if !strings.Contains(client.prompts[0], "four five six") {
		t.Fatalf("prompt does not carry descriptions: %s", client.prompts[0])
	}
}

func TestMetricsRecorder(t *testing.T) {
	var r MetricsRecorder
	r.Add(ModelMetrics{InputTokens: 10, OutputTokens: 5, TotalTokens: 15, DurationMs: 1000})
	r.Add(ModelMetrics{InputTokens: 5, TotalTokens: 5, DurationMs: 1000})

	got := r.Snapshot()
	if got.TotalTokens != 20 || got.Requests != 2 || got.TokenPerSecond != 10 {
		t.Fatalf("Snapshot() = %+v", got)
	}
	r.Reset()
	if r.Snapshot() != (ModelMetrics{}) {
		t.Fatalf("Reset() left %+v", r.Snapshot())
	}
}
