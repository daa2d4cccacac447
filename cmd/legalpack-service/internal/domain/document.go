package domain

import "fmt"

// ProcessedDocument is one source file after text extraction.
// Instances are immutable once built; TokenCount is always computed by the
// shared token counter so every component sees the same number.
type ProcessedDocument struct {
	Name       string `json:"name"`
	Content    string `json:"content"`
	CharLength int    `json:"char_length"`
	TokenCount int    `json:"token_count"`
}

// NewProcessedDocument builds a ProcessedDocument from extracted text.
func NewProcessedDocument(name, content string, tokenCount int) (*ProcessedDocument, error) {
	if name == "" {
		return nil, ErrInvalidDocumentName
	}
	if tokenCount < 0 {
		return nil, fmt.Errorf("%w: negative token count %d", ErrInvalidDocument, tokenCount)
	}
	return &ProcessedDocument{
		Name:       name,
		Content:    content,
		CharLength: len(content),
		TokenCount: tokenCount,
	}, nil
}

// OutcomeStatus classifies one file's extraction attempt.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// ExtractionOutcome records one archive member's extraction result. It feeds
// the processing summary only; the orchestrator never consumes it.
type ExtractionOutcome struct {
	Filename string             `json:"filename"`
	Status   OutcomeStatus      `json:"status"`
	Reason   string             `json:"reason,omitempty"`
	Document *ProcessedDocument `json:"document,omitempty"`
}

// Succeeded reports whether the outcome carries a document.
func (o *ExtractionOutcome) Succeeded() bool {
	return o.Status == OutcomeSucceeded
}

// Summary renders the outcome as one transcript line.
func (o *ExtractionOutcome) Summary() string {
	if o.Succeeded() {
		return fmt.Sprintf("processed %s (%d tokens)", o.Filename, o.Document.TokenCount)
	}
	return fmt.Sprintf("failed %s: %s", o.Filename, o.Reason)
}

// TokenBatch groups documents (or fragments) whose combined token count stays
// under the configured batch ceiling.
type TokenBatch struct {
	Documents  []*ProcessedDocument
	TokenCount int
}

// Add appends a document and accumulates its token count. The caller is
// responsible for the ceiling check.
func (b *TokenBatch) Add(doc *ProcessedDocument) {
	b.Documents = append(b.Documents, doc)
	b.TokenCount += doc.TokenCount
}

// Empty reports whether the batch holds no documents.
func (b *TokenBatch) Empty() bool {
	return len(b.Documents) == 0
}

// DocumentTokens is one entry of the token usage report.
type DocumentTokens struct {
	Name   string `json:"name"`
	Tokens int    `json:"tokens"`
}

// TokenUsage is the per-document and total token report returned to callers.
type TokenUsage struct {
	TotalTokens int              `json:"total_tokens"`
	Documents   []DocumentTokens `json:"documents"`
}

// UsageFromDocuments builds a token usage report from processed documents.
func UsageFromDocuments(docs []*ProcessedDocument) TokenUsage {
	usage := TokenUsage{Documents: make([]DocumentTokens, 0, len(docs))}
	for _, doc := range docs {
		usage.TotalTokens += doc.TokenCount
		usage.Documents = append(usage.Documents, DocumentTokens{Name: doc.Name, Tokens: doc.TokenCount})
	}
	return usage
}
