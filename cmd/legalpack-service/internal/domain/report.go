package domain

import (
	"strings"
	"time"
)

// ProcessingReport is the audit record of one bundle run: every member file
// appears in exactly one outcome, and the transcript alone must be enough to
// explain what the run did after the fact.
type ProcessingReport struct {
	Outcomes    []*ExtractionOutcome `json:"outcomes"`
	ProcessedAt time.Time            `json:"processed_at"`
	TotalTokens int                  `json:"total_tokens"`
}

// Documents returns the successfully extracted documents in processing order.
func (r *ProcessingReport) Documents() []*ProcessedDocument {
	docs := make([]*ProcessedDocument, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			docs = append(docs, o.Document)
		}
	}
	return docs
}

// FailedFiles returns the filenames whose extraction failed.
func (r *ProcessingReport) FailedFiles() []string {
	var failed []string
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			failed = append(failed, o.Filename)
		}
	}
	return failed
}

// Transcript renders one line per outcome, in processing order.
func (r *ProcessingReport) Transcript() string {
	lines := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		lines = append(lines, o.Summary())
	}
	return strings.Join(lines, "\n")
}

// TokenUsage reports token counts for the succeeded documents.
func (r *ProcessingReport) TokenUsage() TokenUsage {
	return UsageFromDocuments(r.Documents())
}
