package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/graphrag/pkg/logger"
)

const (
	defaultSummaryMaxTokens = 500
	defaultSummaryMaxWords  = 100
)

// LLMSummarizer compacts multiple descriptions into one. While the joined
// descriptions stay below MaxTokens they are passed through unchanged
// (joined with the field separator); above it the LLM writes a summary.
//
// A LLMSummarizer should be created using NewLLMSummarizer.
type LLMSummarizer struct {
	client    GraphAIClient
	tokenizer Tokenizer
	maxTokens int
	maxWords  int
	separator string
	opts      []GenerateOption
}

// NewLLMSummarizerParams configures a LLMSummarizer.
//
// Separator is used to join descriptions that are passed through; it should
// be common.FieldSeparator so that later merges split them again.
type NewLLMSummarizerParams struct {
	Client    GraphAIClient
	Tokenizer Tokenizer
	MaxTokens int
	MaxWords  int
	Separator string
	Options   []GenerateOption
}

// NewLLMSummarizer creates a summarizer.
//
// Example:
//
//	s := ai.NewLLMSummarizer(ai.NewLLMSummarizerParams{
//		Client:    client,
//		Tokenizer: ai.TokenizerOrFallback("o200k_base"),
//		MaxTokens: 500,
//		Separator: common.FieldSeparator,
//	})
func NewLLMSummarizer(params NewLLMSummarizerParams) *LLMSummarizer {
	if params.Tokenizer == nil {
		params.Tokenizer = WordTokenizer{}
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = defaultSummaryMaxTokens
	}
	if params.MaxWords <= 0 {
		params.MaxWords = defaultSummaryMaxWords
	}
	if params.Separator == "" {
		params.Separator = "\n"
	}
	return &LLMSummarizer{
		client:    params.Client,
		tokenizer: params.Tokenizer,
		maxTokens: params.MaxTokens,
		maxWords:  params.MaxWords,
		separator: params.Separator,
		opts:      params.Options,
	}
}

// Summarize returns a single description for descriptions.
func (s *LLMSummarizer) Summarize(ctx context.Context, descriptions []string) (string, error) {
	cleaned := make([]string, 0, len(descriptions))
	for _, d := range descriptions {
		if d = strings.TrimSpace(d); d != "" {
			cleaned = append(cleaned, d)
		}
	}
	switch len(cleaned) {
	case 0:
		return "", nil
	case 1:
		return cleaned[0], nil
	}

	joined := strings.Join(cleaned, s.separator)
	if s.tokenizer.Count(joined) < s.maxTokens || s.client == nil {
		return joined, nil
	}

	logger.Debug("[Summarize] Summarizing descriptions", "count", len(cleaned))
	prompt := fmt.Sprintf(SummarizePrompt, strings.Join(cleaned, "\n"), s.maxWords)
	out, err := s.client.GenerateCompletion(ctx, prompt, s.opts...)
	if err != nil {
		return "", fmt.Errorf("summarize descriptions: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return joined, nil
	}
	return out, nil
}
