package query

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
)

// Keywords split a query into themes (high level) and concrete entities
// (low level).
type Keywords struct {
	HighLevel []string `json:"high_level_keywords" jsonschema_description:"Overarching concepts or themes of the query"`
	LowLevel  []string `json:"low_level_keywords" jsonschema_description:"Specific entities, details or concrete terms of the query"`
}

// KeywordExtractor derives keywords from a free text query.
type KeywordExtractor interface {
	ExtractKeywords(ctx context.Context, input string) (Keywords, error)
}

// LLMKeywordExtractor asks the model for keywords with a JSON schema bound
// completion.
type LLMKeywordExtractor struct {
	client ai.GraphAIClient
	opts   []ai.GenerateOption
}

// NewLLMKeywordExtractor returns an extractor backed by client.
func NewLLMKeywordExtractor(client ai.GraphAIClient, opts ...ai.GenerateOption) *LLMKeywordExtractor {
	return &LLMKeywordExtractor{client: client, opts: opts}
}

func (x *LLMKeywordExtractor) ExtractKeywords(ctx context.Context, input string) (Keywords, error) {
	var out Keywords
	err := x.client.GenerateCompletionWithFormat(
		ctx,
		"query_keywords",
		"High and low level keywords of a user query.",
		fmt.Sprintf(ai.KeywordsPrompt, input),
		&out,
		x.opts...,
	)
	if err != nil {
		return Keywords{}, fmt.Errorf("extract keywords: %w", err)
	}
	out.HighLevel = common.UnionStrings(out.HighLevel)
	out.LowLevel = common.UnionStrings(out.LowLevel)
	return out, nil
}
