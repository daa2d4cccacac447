package biz

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dealtracker/cmd/legalpack-service/internal/domain"
)

// Batcher packs processed documents into token-bounded batches for the
// analysis calls. Packing is greedy and preserves document order, so the
// same inputs always produce the same batches.
type Batcher struct {
	counter    *TokenCounter
	batchLimit int
	logger     *zap.Logger
}

// NewBatcher builds a Batcher with the configured per-batch token ceiling.
func NewBatcher(counter *TokenCounter, batchLimit int, logger *zap.Logger) *Batcher {
	return &Batcher{counter: counter, batchLimit: batchLimit, logger: logger}
}

// Pack groups documents into batches whose token counts stay at or below
// the batch limit. Documents that exceed the limit on their own are split
// at sentence boundaries first. A nil or empty input yields no batches.
func (b *Batcher) Pack(documents []*domain.ProcessedDocument) []*domain.TokenBatch {
	var batches []*domain.TokenBatch
	current := &domain.TokenBatch{}

	for _, doc := range documents {
		parts := []*domain.ProcessedDocument{doc}
		if doc.TokenCount > b.batchLimit {
			parts = b.SplitDocument(doc)
			b.logger.Info("document exceeds batch limit, splitting",
				zap.String("document", doc.Name),
				zap.Int("tokens", doc.TokenCount),
				zap.Int("parts", len(parts)))
		}

		for _, part := range parts {
			if !current.Empty() && current.TokenCount+part.TokenCount > b.batchLimit {
				batches = append(batches, current)
				current = &domain.TokenBatch{}
			}
			current.Add(part)
		}
	}

	if !current.Empty() {
		batches = append(batches, current)
	}
	for _, batch := range batches {
		batchTokens.Observe(float64(batch.TokenCount))
	}
	return batches
}

// SplitDocument breaks an oversized document into fragments at ". "
// sentence boundaries. Fragments carry the separator they were split on,
// so concatenating the fragment contents reproduces the original text
// exactly. A fragment whose single sentence alone exceeds the limit is
// emitted as-is; there is no smaller boundary to cut at.
func (b *Batcher) SplitDocument(doc *domain.ProcessedDocument) []*domain.ProcessedDocument {
	sentences := strings.SplitAfter(doc.Content, ". ")

	var pieces []string
	var builder strings.Builder
	builderTokens := 0

	flush := func() {
		if builder.Len() > 0 {
			pieces = append(pieces, builder.String())
			builder.Reset()
			builderTokens = 0
		}
	}

	for _, sentence := range sentences {
		if sentence == "" {
			continue
		}
		tokens := b.counter.Count(sentence)
		if builderTokens+tokens > b.batchLimit {
			flush()
		}
		builder.WriteString(sentence)
		builderTokens += tokens
	}
	flush()

	fragments := make([]*domain.ProcessedDocument, 0, len(pieces))
	for i, piece := range pieces {
		fragments = append(fragments, &domain.ProcessedDocument{
			Name:       fmt.Sprintf("%s (part %d/%d)", doc.Name, i+1, len(pieces)),
			Content:    piece,
			CharLength: len(piece),
			TokenCount: b.counter.Count(piece),
		})
	}
	return fragments
}
