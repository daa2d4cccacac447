package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"dealtracker/cmd/legalpack-service/internal/domain"
	"dealtracker/pkg/observability"
)

const tracerName = "legalpack.analysis"

const (
	batchSystemPrompt = "You are an expert conveyancer analyzing a legal pack for an auction property. " +
		"Analyze this batch of documents and identify key risks and important information."

	batchUserPrompt = `Analyze these legal pack documents, focusing on:
1. Key risks and issues
2. Legal restrictions or covenants
3. Financial obligations
4. Development constraints
5. Environmental concerns
6. Missing critical information

Format your response in these sections:
1. DOCUMENT SUMMARY
2. KEY FINDINGS AND RISKS
3. IMPORTANT INFORMATION`

	consolidateSystemPrompt = "You are an expert conveyancer. Review and consolidate the following analyses " +
		"of legal pack documents into a single, coherent summary. Focus on the most important findings and risks."

	followUpSystemPrompt = "You are an expert conveyancer analyzing a legal pack for an auction property. " +
		"You have previously provided a comprehensive analysis, and now need to answer a specific follow-up question."

	followUpInstructions = `Answer the question specifically, using only information evidenced in the analysis above.
- For every fact you rely on, cite the source document it came from
- When the information needed is missing or unclear, state "INFORMATION NOT FOUND IN LEGAL PACK: [specify what's missing]"
- Do not assume or imply anything the legal pack does not explicitly state`
)

// CompletionRequest is a single LLM completion call.
type CompletionRequest struct {
	System    string
	Prompt    string
	MaxTokens int
}

// CompletionClient sends completion requests to the LLM backend.
type CompletionClient interface {
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
}

// Orchestrator drives the analysis calls. It holds no per-request state;
// everything it needs arrives as arguments, so concurrent requests share
// one instance safely.
type Orchestrator struct {
	llm              CompletionClient
	outputTokenLimit int
	logger           *zap.Logger
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(llm CompletionClient, outputTokenLimit int, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{llm: llm, outputTokenLimit: outputTokenLimit, logger: logger}
}

// AnalyzeBatches runs one completion per batch and merges the results.
// A failed batch is logged and skipped; the analysis proceeds on the
// batches that succeed. Only when every batch fails does the whole
// analysis fail. With more than one successful batch a consolidation
// call produces the final summary; if that call fails the batch
// responses are joined as-is rather than losing the work.
func (o *Orchestrator) AnalyzeBatches(ctx context.Context, batches []*domain.TokenBatch) (string, error) {
	if len(batches) == 0 {
		return "", domain.ErrNoDocuments
	}
	batchesPerAnalysis.Observe(float64(len(batches)))

	ctx, span := observability.StartSpan(ctx, tracerName, "analysis.initial")
	defer span.End()
	observability.SetAttributes(span, attribute.Int("batches", len(batches)))

	var responses []string
	var lastErr error
	for i, batch := range batches {
		response, err := o.analyzeBatch(ctx, batch)
		if err != nil {
			lastErr = err
			o.logger.Error("batch analysis failed",
				zap.Int("batch", i+1),
				zap.Int("batches", len(batches)),
				zap.Int("batch_tokens", batch.TokenCount),
				zap.Error(err))
			continue
		}
		responses = append(responses, response)
	}

	if len(responses) == 0 {
		err := fmt.Errorf("%w: %v", domain.ErrAnalysisFailed, lastErr)
		observability.RecordError(span, err)
		return "", err
	}
	if len(responses) == 1 {
		return responses[0], nil
	}

	combined := strings.Join(responses, "\n\n")
	consolidated, err := o.consolidate(ctx, combined)
	if err != nil {
		o.logger.Warn("consolidation failed, returning joined batch analyses", zap.Error(err))
		return combined, nil
	}
	return consolidated, nil
}

func (o *Orchestrator) analyzeBatch(ctx context.Context, batch *domain.TokenBatch) (string, error) {
	ctx, span := observability.StartSpan(ctx, tracerName, "analysis.batch")
	defer span.End()
	observability.SetAttributes(span,
		attribute.Int("documents", len(batch.Documents)),
		attribute.Int("tokens", batch.TokenCount))

	var builder strings.Builder
	builder.WriteString("Documents to analyze:\n")
	for _, doc := range batch.Documents {
		writeFramedDocument(&builder, doc)
	}
	builder.WriteString("\n\n")
	builder.WriteString(batchUserPrompt)

	return o.complete(ctx, "batch", &CompletionRequest{
		System:    batchSystemPrompt,
		Prompt:    builder.String(),
		MaxTokens: o.outputTokenLimit,
	})
}

func (o *Orchestrator) consolidate(ctx context.Context, combined string) (string, error) {
	prompt := fmt.Sprintf("Previous analyses:\n\n%s\n\nProvide a consolidated summary focusing on:\n"+
		"1. Most significant risks and findings\n"+
		"2. Key recommendations\n"+
		"3. Critical missing information", combined)

	return o.complete(ctx, "consolidate", &CompletionRequest{
		System:    consolidateSystemPrompt,
		Prompt:    prompt,
		MaxTokens: o.outputTokenLimit,
	})
}

// AnswerFollowUp answers one question about a completed analysis. The
// documents are not re-sent; the stored analysis and the question
// history are the full context for the call.
func (o *Orchestrator) AnswerFollowUp(ctx context.Context, session *domain.AnalysisSession, question string) (string, error) {
	ctx, span := observability.StartSpan(ctx, tracerName, "analysis.follow_up")
	defer span.End()
	observability.SetAttributes(span,
		attribute.String("session_id", session.ID),
		attribute.Int("history_entries", len(session.QAHistory)))

	var callCtx strings.Builder
	callCtx.WriteString("Here is the initial analysis of the legal pack:\n\n")
	callCtx.WriteString(session.InitialAnalysis)
	callCtx.WriteString("\n\n")

	if len(session.QAHistory) > 0 {
		callCtx.WriteString("Previous questions and answers:\n\n")
		for _, qa := range session.QAHistory {
			fmt.Fprintf(&callCtx, "Q: %s\nA: %s\n\n", qa.Question, qa.Answer)
		}
	}

	prompt := fmt.Sprintf("Context:\n%s\n%s\n\nQuestion: %s", callCtx.String(), followUpInstructions, question)
	answer, err := o.complete(ctx, "follow_up", &CompletionRequest{
		System:    followUpSystemPrompt,
		Prompt:    prompt,
		MaxTokens: o.outputTokenLimit,
	})
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", domain.ErrFollowUpFailed, err)
		observability.RecordError(span, wrapped)
		return "", wrapped
	}
	return answer, nil
}

func (o *Orchestrator) complete(ctx context.Context, kind string, req *CompletionRequest) (string, error) {
	start := time.Now()
	response, err := o.llm.Complete(ctx, req)
	llmCallDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		llmCalls.WithLabelValues(kind, "error").Inc()
		return "", err
	}
	llmCalls.WithLabelValues(kind, "success").Inc()
	return response, nil
}

// writeFramedDocument writes one document with the separator frame the
// analysis prompt expects.
func writeFramedDocument(builder *strings.Builder, doc *domain.ProcessedDocument) {
	frame := strings.Repeat("=", 50)
	fmt.Fprintf(builder, "\n%s\nDOCUMENT: %s\n%s\n%s", frame, doc.Name, frame, doc.Content)
}
