package ai

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tiktoken encoding used when none is configured.
const DefaultEncoding = "o200k_base"

// Tokenizer counts text in model tokens.
type Tokenizer interface {
	Count(text string) int
}

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

var (
	encMu    sync.Mutex
	encCache = map[string]*tiktoken.Tiktoken{}
)

// NewTokenizer returns a tiktoken backed tokenizer for the named encoding.
// Encodings are loaded once per process.
func NewTokenizer(encoding string) (Tokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	encMu.Lock()
	defer encMu.Unlock()
	if enc, ok := encCache[encoding]; ok {
		return &tiktokenTokenizer{enc: enc}, nil
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	encCache[encoding] = enc
	return &tiktokenTokenizer{enc: enc}, nil
}

func (t *tiktokenTokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// WordTokenizer approximates tokens by whitespace separated words. It needs
// no encoding files; tests use it and TokenizerOrFallback returns it when
// the configured encoding cannot be loaded.
type WordTokenizer struct{}

func (WordTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

// TokenizerOrFallback loads the encoding and falls back to WordTokenizer on
// failure.
func TokenizerOrFallback(encoding string) Tokenizer {
	t, err := NewTokenizer(encoding)
	if err != nil {
		return WordTokenizer{}
	}
	return t
}
