package biz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dealtracker/cmd/legalpack-service/internal/domain"
)

// wordCounter always uses the word estimate, so token counts in tests
// are deterministic regardless of the encoding data on the machine.
func wordCounter() *TokenCounter {
	return &TokenCounter{logger: zap.NewNop()}
}

func doc(name string, tokens int) *domain.ProcessedDocument {
	return &domain.ProcessedDocument{Name: name, Content: name, TokenCount: tokens}
}

func TestPack_GreedyOrderPreserving(t *testing.T) {
	batcher := NewBatcher(wordCounter(), 8000, zap.NewNop())

	batches := batcher.Pack([]*domain.ProcessedDocument{
		doc("a.pdf", 4000),
		doc("b.pdf", 4000),
		doc("c.pdf", 4000),
	})

	require.Len(t, batches, 2)
	require.Len(t, batches[0].Documents, 2)
	assert.Equal(t, "a.pdf", batches[0].Documents[0].Name)
	assert.Equal(t, "b.pdf", batches[0].Documents[1].Name)
	assert.Equal(t, 8000, batches[0].TokenCount)
	require.Len(t, batches[1].Documents, 1)
	assert.Equal(t, "c.pdf", batches[1].Documents[0].Name)
}

func TestPack_EmptyInput(t *testing.T) {
	batcher := NewBatcher(wordCounter(), 8000, zap.NewNop())

	assert.Empty(t, batcher.Pack(nil))
	assert.Empty(t, batcher.Pack([]*domain.ProcessedDocument{}))
}

func TestPack_SingleDocumentUnderLimit(t *testing.T) {
	batcher := NewBatcher(wordCounter(), 8000, zap.NewNop())

	batches := batcher.Pack([]*domain.ProcessedDocument{doc("only.pdf", 100)})

	require.Len(t, batches, 1)
	assert.Equal(t, 100, batches[0].TokenCount)
}

func TestPack_Deterministic(t *testing.T) {
	batcher := NewBatcher(wordCounter(), 5000, zap.NewNop())
	docs := []*domain.ProcessedDocument{
		doc("a.pdf", 3000), doc("b.pdf", 3000), doc("c.pdf", 1000), doc("d.pdf", 4000),
	}

	first := batcher.Pack(docs)
	second := batcher.Pack(docs)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].TokenCount, second[i].TokenCount)
		assert.Equal(t, first[i].Documents, second[i].Documents)
	}
}

func TestSplitDocument_LosslessRejoin(t *testing.T) {
	counter := wordCounter()
	batcher := NewBatcher(counter, 40, zap.NewNop())

	var sentences []string
	for i := 0; i < 50; i++ {
		sentences = append(sentences, fmt.Sprintf("Clause %d covers the usual ground rent terms", i))
	}
	content := strings.Join(sentences, ". ")
	oversized := &domain.ProcessedDocument{
		Name:       "lease.pdf",
		Content:    content,
		TokenCount: counter.Count(content),
	}

	fragments := batcher.SplitDocument(oversized)

	require.Greater(t, len(fragments), 1)
	var rejoined strings.Builder
	for i, fragment := range fragments {
		rejoined.WriteString(fragment.Content)
		assert.Equal(t, fmt.Sprintf("lease.pdf (part %d/%d)", i+1, len(fragments)), fragment.Name)
	}
	assert.Equal(t, content, rejoined.String())
}

func TestPack_OversizedDocumentIsSplit(t *testing.T) {
	counter := wordCounter()
	batcher := NewBatcher(counter, 40, zap.NewNop())

	var sentences []string
	for i := 0; i < 30; i++ {
		sentences = append(sentences, fmt.Sprintf("Entry %d records a registered charge", i))
	}
	content := strings.Join(sentences, ". ")
	oversized := &domain.ProcessedDocument{
		Name:       "register.pdf",
		Content:    content,
		TokenCount: counter.Count(content),
	}

	batches := batcher.Pack([]*domain.ProcessedDocument{oversized})

	require.NotEmpty(t, batches)
	for _, batch := range batches {
		assert.LessOrEqual(t, batch.TokenCount, 40)
		for _, fragment := range batch.Documents {
			assert.Contains(t, fragment.Name, "register.pdf (part ")
		}
	}
}
