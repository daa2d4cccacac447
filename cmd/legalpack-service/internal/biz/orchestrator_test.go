package biz

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dealtracker/cmd/legalpack-service/internal/domain"
)

// scriptedClient returns canned responses (or errors) in call order and
// records every request it sees.
type scriptedClient struct {
	responses []string
	errs      []error
	requests  []*CompletionRequest
}

func (c *scriptedClient) Complete(_ context.Context, req *CompletionRequest) (string, error) {
	i := len(c.requests)
	c.requests = append(c.requests, req)
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return "", fmt.Errorf("unexpected call %d", i)
}

func singleBatch(names ...string) []*domain.TokenBatch {
	batch := &domain.TokenBatch{}
	for _, name := range names {
		batch.Add(&domain.ProcessedDocument{Name: name, Content: name + " content", TokenCount: 10})
	}
	return []*domain.TokenBatch{batch}
}

func TestAnalyzeBatches_SingleBatch(t *testing.T) {
	client := &scriptedClient{responses: []string{"batch analysis"}}
	orchestrator := NewOrchestrator(client, 4096, zap.NewNop())

	analysis, err := orchestrator.AnalyzeBatches(context.Background(), singleBatch("lease.pdf"))
	require.NoError(t, err)

	assert.Equal(t, "batch analysis", analysis)
	require.Len(t, client.requests, 1)
	assert.Contains(t, client.requests[0].Prompt, "DOCUMENT: lease.pdf")
	assert.Contains(t, client.requests[0].Prompt, "lease.pdf content")
	assert.Contains(t, client.requests[0].System, "expert conveyancer")
	assert.Equal(t, 4096, client.requests[0].MaxTokens)
}

func TestAnalyzeBatches_NoBatches(t *testing.T) {
	orchestrator := NewOrchestrator(&scriptedClient{}, 4096, zap.NewNop())

	_, err := orchestrator.AnalyzeBatches(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrNoDocuments)
}

func TestAnalyzeBatches_ToleratesBatchFailure(t *testing.T) {
	client := &scriptedClient{
		responses: []string{"", "second batch analysis"},
		errs:      []error{errors.New("upstream timeout"), nil},
	}
	orchestrator := NewOrchestrator(client, 4096, zap.NewNop())

	batches := append(singleBatch("a.pdf"), singleBatch("b.pdf")...)
	analysis, err := orchestrator.AnalyzeBatches(context.Background(), batches)
	require.NoError(t, err)

	// One surviving batch means no consolidation call.
	assert.Equal(t, "second batch analysis", analysis)
	assert.Len(t, client.requests, 2)
}

func TestAnalyzeBatches_AllFail(t *testing.T) {
	client := &scriptedClient{
		errs: []error{errors.New("upstream down"), errors.New("upstream down")},
	}
	orchestrator := NewOrchestrator(client, 4096, zap.NewNop())

	batches := append(singleBatch("a.pdf"), singleBatch("b.pdf")...)
	_, err := orchestrator.AnalyzeBatches(context.Background(), batches)
	assert.ErrorIs(t, err, domain.ErrAnalysisFailed)
}

func TestAnalyzeBatches_Consolidates(t *testing.T) {
	client := &scriptedClient{responses: []string{"first", "second", "consolidated summary"}}
	orchestrator := NewOrchestrator(client, 4096, zap.NewNop())

	batches := append(singleBatch("a.pdf"), singleBatch("b.pdf")...)
	analysis, err := orchestrator.AnalyzeBatches(context.Background(), batches)
	require.NoError(t, err)

	assert.Equal(t, "consolidated summary", analysis)
	require.Len(t, client.requests, 3)
	assert.Contains(t, client.requests[2].System, "consolidate")
	assert.Contains(t, client.requests[2].Prompt, "first")
	assert.Contains(t, client.requests[2].Prompt, "second")
}

func TestAnalyzeBatches_ConsolidationFallback(t *testing.T) {
	client := &scriptedClient{
		responses: []string{"first", "second", ""},
		errs:      []error{nil, nil, errors.New("upstream timeout")},
	}
	orchestrator := NewOrchestrator(client, 4096, zap.NewNop())

	batches := append(singleBatch("a.pdf"), singleBatch("b.pdf")...)
	analysis, err := orchestrator.AnalyzeBatches(context.Background(), batches)
	require.NoError(t, err)

	// The batch work is kept even when the summary call fails.
	assert.Equal(t, "first\n\nsecond", analysis)
}

func TestAnswerFollowUp(t *testing.T) {
	client := &scriptedClient{responses: []string{"the covenant restricts commercial use"}}
	orchestrator := NewOrchestrator(client, 4096, zap.NewNop())

	session := &domain.AnalysisSession{
		ID:              "lps_test",
		InitialAnalysis: "full pack analysis",
		QAHistory: []domain.QAEntry{
			{Question: "Is there ground rent?", Answer: "Yes, 250 per year."},
		},
	}

	answer, err := orchestrator.AnswerFollowUp(context.Background(), session, "What does the covenant restrict?")
	require.NoError(t, err)

	assert.Equal(t, "the covenant restricts commercial use", answer)
	require.Len(t, client.requests, 1)
	prompt := client.requests[0].Prompt
	assert.Contains(t, prompt, "full pack analysis")
	assert.Contains(t, prompt, "Q: Is there ground rent?")
	assert.Contains(t, prompt, "A: Yes, 250 per year.")
	assert.Contains(t, prompt, "Question: What does the covenant restrict?")
	// The model is told to cite sources and to flag gaps instead of guessing.
	assert.Contains(t, prompt, "cite the source document")
	assert.Contains(t, prompt, "INFORMATION NOT FOUND IN LEGAL PACK")
	// Documents are never re-sent on follow-ups.
	assert.NotContains(t, prompt, "DOCUMENT:")
}

func TestAnswerFollowUp_Failure(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("upstream down")}}
	orchestrator := NewOrchestrator(client, 4096, zap.NewNop())

	session := &domain.AnalysisSession{ID: "lps_test", InitialAnalysis: "analysis"}
	_, err := orchestrator.AnswerFollowUp(context.Background(), session, "anything?")
	assert.ErrorIs(t, err, domain.ErrFollowUpFailed)
}
