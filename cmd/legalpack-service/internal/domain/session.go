package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionRepository persists analysis sessions. Create rejects a
// duplicate id with ErrSessionExists. GetByID distinguishes a missing
// session (ErrSessionNotFound) from unreachable storage
// (ErrStorageUnavailable). AppendQA serializes concurrent appends to
// the same session, so the history never loses an entry.
type SessionRepository interface {
	Create(ctx context.Context, session *AnalysisSession) error
	GetByID(ctx context.Context, id string) (*AnalysisSession, error)
	AppendQA(ctx context.Context, id string, entry QAEntry) error
}

// QAEntry is one follow-up question and its answer.
type QAEntry struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// AnalysisSession ties an initial analysis and its document set to the chain
// of follow-up questions. InitialAnalysis is write-once; QAHistory is
// append-only and grows by exactly one entry per successful follow-up.
type AnalysisSession struct {
	ID              string
	PropertyID      string
	Documents       []*ProcessedDocument
	InitialAnalysis string
	QAHistory       []QAEntry
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewAnalysisSession creates a session for a finished initial analysis.
// The id is assigned here exactly once and never reused.
func NewAnalysisSession(propertyID string, docs []*ProcessedDocument, initialAnalysis string) (*AnalysisSession, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	if initialAnalysis == "" {
		return nil, ErrEmptyAnalysis
	}
	now := time.Now().UTC()
	return &AnalysisSession{
		ID:              "lps_" + uuid.New().String(),
		PropertyID:      propertyID,
		Documents:       docs,
		InitialAnalysis: initialAnalysis,
		QAHistory:       []QAEntry{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// AppendQA appends one entry to the history. It never touches
// InitialAnalysis or Documents.
func (s *AnalysisSession) AppendQA(question, answer string) QAEntry {
	entry := QAEntry{
		Question:  question,
		Answer:    answer,
		Timestamp: time.Now().UTC(),
	}
	s.QAHistory = append(s.QAHistory, entry)
	s.UpdatedAt = entry.Timestamp
	return entry
}

// TokenUsage reports token counts for the session's documents.
func (s *AnalysisSession) TokenUsage() TokenUsage {
	return UsageFromDocuments(s.Documents)
}

// Validate checks the session invariants that storage relies on.
func (s *AnalysisSession) Validate() error {
	if s.ID == "" {
		return ErrInvalidSessionID
	}
	if len(s.Documents) == 0 {
		return ErrNoDocuments
	}
	if s.InitialAnalysis == "" {
		return ErrEmptyAnalysis
	}
	return nil
}
