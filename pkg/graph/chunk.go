package graph

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
)

// DefaultChunkMaxTokens is the chunk size used when none is configured.
const DefaultChunkMaxTokens = 1200

var tableDelimRe = regexp.MustCompile(`^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)+\|?\s*$`)

// Chunker cuts documents into token bounded chunks along sentence
// boundaries. Markdown tables are kept in one piece.
//
// A Chunker should be created using NewChunker.
type Chunker struct {
	tokenizer ai.Tokenizer
	maxTokens int
}

// NewChunker returns a chunker. A nil tokenizer falls back to
// ai.WordTokenizer, maxTokens <= 0 to DefaultChunkMaxTokens.
func NewChunker(tokenizer ai.Tokenizer, maxTokens int) *Chunker {
	if tokenizer == nil {
		tokenizer = ai.WordTokenizer{}
	}
	if maxTokens <= 0 {
		maxTokens = DefaultChunkMaxTokens
	}
	return &Chunker{tokenizer: tokenizer, maxTokens: maxTokens}
}

// Split packs consecutive sentences of text into chunks of at most
// maxTokens tokens. A single sentence larger than the limit becomes a chunk
// of its own. Blank text yields no chunks.
func (c *Chunker) Split(documentID, text string) []common.Chunk {
	sentences := splitIntoSentences(strings.TrimSpace(text))
	if len(sentences) == 0 {
		return nil
	}

	var (
		chunks  []common.Chunk
		current string
		tokens  int
	)
	flush := func() {
		if current == "" {
			return
		}
		chunks = append(chunks, common.NewChunk(documentID, len(chunks), tokens, current))
		current = ""
		tokens = 0
	}

	for _, sentence := range sentences {
		if current == "" {
			current = sentence
			tokens = c.tokenizer.Count(current)
			continue
		}

		candidate := current + " " + sentence
		n := c.tokenizer.Count(candidate)
		if n <= c.maxTokens {
			current = candidate
			tokens = n
			continue
		}
		flush()
		current = sentence
		tokens = c.tokenizer.Count(current)
	}
	flush()

	return chunks
}

func isTableRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && strings.Contains(trimmed, "|")
}

func endsSentence(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}

type sentenceBuffer struct {
	sentences []string
	current   strings.Builder
}

func (b *sentenceBuffer) flush() {
	if b.current.Len() > 0 {
		b.sentences = append(b.sentences, strings.TrimSpace(b.current.String()))
		b.current.Reset()
	}
}

// addLine appends the sentences of a prose line. A sentence without closing
// punctuation continues on the next line.
func (b *sentenceBuffer) addLine(line string) {
	for _, sentence := range splitLineIntoSentences(line) {
		if b.current.Len() > 0 {
			b.current.WriteString(" ")
		}
		b.current.WriteString(sentence)
		if endsSentence(sentence) {
			b.flush()
		}
	}
}

func splitIntoSentences(text string) []string {
	lines := strings.Split(text, "\n")
	var buf sentenceBuffer
	inTable := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if !inTable && isTableRow(line) && i+1 < len(lines) && tableDelimRe.MatchString(strings.TrimSpace(lines[i+1])) {
			buf.flush()
			inTable = true
			buf.current.WriteString(line)
			continue
		}

		if !inTable && isTableRow(line) {
			buf.flush()
			buf.sentences = append(buf.sentences, trimmed)
			continue
		}

		if inTable {
			if isTableRow(line) {
				buf.current.WriteString("\n")
				buf.current.WriteString(line)
				continue
			}
			inTable = false
			buf.flush()
			if trimmed != "" {
				buf.addLine(trimmed)
			}
			continue
		}

		if trimmed == "" {
			buf.flush()
			continue
		}
		buf.addLine(trimmed)
	}
	buf.flush()

	var result []string
	for _, sentence := range buf.sentences {
		if strings.TrimSpace(sentence) != "" {
			result = append(result, sentence)
		}
	}
	return result
}

// splitLineIntoSentences splits at terminal punctuation. A number followed by
// a period and a space at the start of a sentence is a list marker
// ("1. First"); elsewhere ("born in 2008. He") the period ends the sentence.
func splitLineIntoSentences(line string) []string {
	var sentences []string
	var current strings.Builder

	for i := 0; i < len(line); i++ {
		current.WriteByte(line[i])

		if line[i] != '.' && line[i] != '!' && line[i] != '?' {
			continue
		}
		if line[i] == '.' && i+1 < len(line) && line[i+1] == ' ' && isListMarker(current.String()) {
			continue
		}

		j := i + 1
		for j < len(line) && (line[j] == '.' || line[j] == '!' || line[j] == '?') {
			current.WriteByte(line[j])
			j++
		}
		for j < len(line) && strings.IndexByte("\"')]}", line[j]) >= 0 {
			current.WriteByte(line[j])
			j++
		}

		if sentence := strings.TrimSpace(current.String()); sentence != "" {
			sentences = append(sentences, sentence)
		}
		current.Reset()
		i = j - 1
	}

	if remaining := strings.TrimSpace(current.String()); remaining != "" {
		sentences = append(sentences, remaining)
	}
	return sentences
}

// isListMarker reports whether sentence is only a number and a period.
func isListMarker(sentence string) bool {
	digits := strings.TrimSuffix(strings.TrimSpace(sentence), ".")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
