package biz

import (
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// tokenizerEncoding is the cl100k_base encoding used for all counting.
// Every component counts tokens through the same TokenCounter so batch
// decisions and usage reports agree.
const tokenizerEncoding = "cl100k_base"

// countChunkSize bounds how much text is encoded at once. Very large
// documents are counted piecewise and the chunk counts summed.
const countChunkSize = 100_000

// TokenCounter counts tokens in document text.
type TokenCounter struct {
	encoder *tiktoken.Tiktoken
	logger  *zap.Logger
}

// NewTokenCounter builds a TokenCounter. When the encoding cannot be
// loaded the counter degrades to a word-count estimate and logs it.
func NewTokenCounter(logger *zap.Logger) *TokenCounter {
	encoder, err := tiktoken.GetEncoding(tokenizerEncoding)
	if err != nil {
		logger.Warn("tokenizer encoding unavailable, falling back to word estimate",
			zap.String("encoding", tokenizerEncoding),
			zap.Error(err))
		encoder = nil
	}
	return &TokenCounter{encoder: encoder, logger: logger}
}

// Count returns the token count of text. Empty text counts as zero.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.encoder == nil {
		return c.estimate(text)
	}

	total := 0
	for start := 0; start < len(text); {
		end := start + countChunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			// Back off to a rune boundary so chunks stay valid UTF-8.
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
		}
		total += len(c.encoder.Encode(text[start:end], nil, nil))
		start = end
	}
	return total
}

// estimate approximates the token count from the word count. Legal text
// averages under two tokens per word, so this overestimates slightly,
// which keeps batches under the ceiling.
func (c *TokenCounter) estimate(text string) int {
	return len(strings.Fields(text)) * 2
}
