package biz

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"dealtracker/cmd/legalpack-service/internal/conf"
	"dealtracker/cmd/legalpack-service/internal/domain"
)

// ArtifactStore keeps the original upload and the processing report for
// audit, keyed by session.
type ArtifactStore interface {
	SaveUpload(ctx context.Context, sessionID, filename string, data []byte) error
	SaveReport(ctx context.Context, sessionID string, report *domain.ProcessingReport, analysis string) error
}

// AnalysisCompletedEvent announces a finished initial analysis.
type AnalysisCompletedEvent struct {
	SessionID     string    `json:"session_id"`
	UploadID      string    `json:"upload_id"`
	PropertyID    string    `json:"property_id,omitempty"`
	DocumentCount int       `json:"document_count"`
	FailedFiles   []string  `json:"failed_files,omitempty"`
	TotalTokens   int       `json:"total_tokens"`
	Timestamp     time.Time `json:"timestamp"`
}

// DocumentFailedEvent announces one file that could not be processed.
type DocumentFailedEvent struct {
	UploadID  string    `json:"upload_id"`
	Filename  string    `json:"filename"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// EventPublisher emits pipeline events to the message bus.
type EventPublisher interface {
	PublishAnalysisCompleted(ctx context.Context, event *AnalysisCompletedEvent) error
	PublishDocumentFailed(ctx context.Context, event *DocumentFailedEvent) error
}

// StatusTracker records the transient processing state of an upload so
// clients can poll while the analysis runs.
type StatusTracker interface {
	Set(ctx context.Context, status *domain.ProcessingStatus) error
	Get(ctx context.Context, uploadID string) (*domain.ProcessingStatus, error)
}

// AnalyzeRequest is one uploaded legal pack, either a ZIP bundle or a
// single document.
type AnalyzeRequest struct {
	UploadID   string
	PropertyID string
	Filename   string
	Data       []byte
}

// AnalyzeResult is the outcome of an initial analysis run.
type AnalyzeResult struct {
	Session *domain.AnalysisSession
	Report  *domain.ProcessingReport
}

// LegalPackUsecase runs the document pipeline end to end: expand,
// extract, batch, analyze, persist. Artifact storage, events, and
// status updates are best-effort; only the analysis itself and the
// session write can fail a request.
type LegalPackUsecase struct {
	expander           *Expander
	batcher            *Batcher
	orchestrator       *Orchestrator
	sessions           domain.SessionRepository
	artifacts          ArtifactStore
	events             EventPublisher
	status             StatusTracker
	totalDocumentLimit int
	logger             *zap.Logger
}

// NewLegalPackUsecase wires the pipeline together.
func NewLegalPackUsecase(
	cfg *conf.Config,
	expander *Expander,
	batcher *Batcher,
	orchestrator *Orchestrator,
	sessions domain.SessionRepository,
	artifacts ArtifactStore,
	events EventPublisher,
	status StatusTracker,
	logger *zap.Logger,
) *LegalPackUsecase {
	return &LegalPackUsecase{
		expander:           expander,
		batcher:            batcher,
		orchestrator:       orchestrator,
		sessions:           sessions,
		artifacts:          artifacts,
		events:             events,
		status:             status,
		totalDocumentLimit: cfg.Analysis.TotalDocumentLimit,
		logger:             logger,
	}
}

// AnalyzeUpload processes one uploaded pack and returns the new session.
func (uc *LegalPackUsecase) AnalyzeUpload(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResult, error) {
	uc.setStatus(ctx, &domain.ProcessingStatus{
		UploadID: req.UploadID,
		State:    domain.StateProcessing,
	})

	report, err := uc.buildReport(ctx, req)
	if err != nil {
		uc.failStatus(ctx, req.UploadID, err.Error(), nil)
		return nil, err
	}

	documents := report.Documents()
	if len(documents) == 0 {
		err := fmt.Errorf("%w: every file in the upload failed extraction", domain.ErrNoDocuments)
		uc.failStatus(ctx, req.UploadID, err.Error(), report.FailedFiles())
		return nil, err
	}
	if report.TotalTokens > uc.totalDocumentLimit {
		err := fmt.Errorf("%w: %d tokens, limit %d", domain.ErrPackTooLarge, report.TotalTokens, uc.totalDocumentLimit)
		uc.failStatus(ctx, req.UploadID, err.Error(), report.FailedFiles())
		return nil, err
	}

	batches := uc.batcher.Pack(documents)
	uc.logger.Info("analyzing legal pack",
		zap.String("upload_id", req.UploadID),
		zap.Int("documents", len(documents)),
		zap.Int("failed_files", len(report.FailedFiles())),
		zap.Int("total_tokens", report.TotalTokens),
		zap.Int("batches", len(batches)))

	analysis, err := uc.orchestrator.AnalyzeBatches(ctx, batches)
	if err != nil {
		uc.failStatus(ctx, req.UploadID, err.Error(), report.FailedFiles())
		return nil, err
	}

	session, err := domain.NewAnalysisSession(req.PropertyID, documents, analysis)
	if err != nil {
		uc.failStatus(ctx, req.UploadID, err.Error(), report.FailedFiles())
		return nil, err
	}
	if err := uc.sessions.Create(ctx, session); err != nil {
		uc.failStatus(ctx, req.UploadID, err.Error(), report.FailedFiles())
		return nil, fmt.Errorf("persist session: %w", err)
	}
	sessionsCreated.Inc()

	uc.saveArtifacts(ctx, session.ID, req, report, analysis)
	uc.publishEvents(ctx, session, req, report)
	uc.setStatus(ctx, &domain.ProcessingStatus{
		UploadID:    req.UploadID,
		State:       domain.StateCompleted,
		SessionID:   session.ID,
		FailedFiles: report.FailedFiles(),
	})

	return &AnalyzeResult{Session: session, Report: report}, nil
}

// buildReport expands a ZIP upload or processes a single file into a
// one-outcome report.
func (uc *LegalPackUsecase) buildReport(ctx context.Context, req *AnalyzeRequest) (*domain.ProcessingReport, error) {
	if strings.EqualFold(filepath.Ext(req.Filename), ".zip") {
		return uc.expander.Expand(ctx, req.Data)
	}

	report := &domain.ProcessingReport{ProcessedAt: time.Now().UTC()}
	outcome := uc.expander.processMember(ctx, req.Filename, req.Data)
	report.Outcomes = append(report.Outcomes, outcome)
	if outcome.Succeeded() {
		report.TotalTokens = outcome.Document.TokenCount
	}
	return report, nil
}

// AskFollowUp answers one question against an existing session. The
// entry is appended to the history only after the answer succeeds, so a
// failed call leaves the session untouched.
func (uc *LegalPackUsecase) AskFollowUp(ctx context.Context, sessionID, question string) (*domain.QAEntry, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}

	session, err := uc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	answer, err := uc.orchestrator.AnswerFollowUp(ctx, session, question)
	if err != nil {
		return nil, err
	}

	entry := session.AppendQA(question, answer)
	if err := uc.sessions.AppendQA(ctx, session.ID, entry); err != nil {
		return nil, fmt.Errorf("persist follow-up: %w", err)
	}
	followUpQuestions.Inc()
	return &entry, nil
}

// GetSession loads a session by id.
func (uc *LegalPackUsecase) GetSession(ctx context.Context, sessionID string) (*domain.AnalysisSession, error) {
	return uc.sessions.GetByID(ctx, sessionID)
}

// GetStatus returns the processing state of an upload.
func (uc *LegalPackUsecase) GetStatus(ctx context.Context, uploadID string) (*domain.ProcessingStatus, error) {
	if uc.status == nil {
		return nil, domain.ErrStorageUnavailable
	}
	return uc.status.Get(ctx, uploadID)
}

func (uc *LegalPackUsecase) setStatus(ctx context.Context, status *domain.ProcessingStatus) {
	if uc.status == nil {
		return
	}
	status.UpdatedAt = time.Now().UTC()
	if err := uc.status.Set(ctx, status); err != nil {
		uc.logger.Warn("failed to record processing status",
			zap.String("upload_id", status.UploadID),
			zap.Error(err))
	}
}

func (uc *LegalPackUsecase) failStatus(ctx context.Context, uploadID, message string, failedFiles []string) {
	uc.setStatus(ctx, &domain.ProcessingStatus{
		UploadID:    uploadID,
		State:       domain.StateFailed,
		Message:     message,
		FailedFiles: failedFiles,
	})
}

func (uc *LegalPackUsecase) saveArtifacts(ctx context.Context, sessionID string, req *AnalyzeRequest, report *domain.ProcessingReport, analysis string) {
	if uc.artifacts == nil {
		return
	}
	if err := uc.artifacts.SaveUpload(ctx, sessionID, req.Filename, req.Data); err != nil {
		uc.logger.Warn("failed to archive upload",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
	if err := uc.artifacts.SaveReport(ctx, sessionID, report, analysis); err != nil {
		uc.logger.Warn("failed to archive processing report",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}

func (uc *LegalPackUsecase) publishEvents(ctx context.Context, session *domain.AnalysisSession, req *AnalyzeRequest, report *domain.ProcessingReport) {
	if uc.events == nil {
		return
	}
	now := time.Now().UTC()
	completed := &AnalysisCompletedEvent{
		SessionID:     session.ID,
		UploadID:      req.UploadID,
		PropertyID:    req.PropertyID,
		DocumentCount: len(session.Documents),
		FailedFiles:   report.FailedFiles(),
		TotalTokens:   report.TotalTokens,
		Timestamp:     now,
	}
	if err := uc.events.PublishAnalysisCompleted(ctx, completed); err != nil {
		uc.logger.Warn("failed to publish analysis event",
			zap.String("session_id", session.ID),
			zap.Error(err))
	}
	for _, outcome := range report.Outcomes {
		if outcome.Succeeded() {
			continue
		}
		failed := &DocumentFailedEvent{
			UploadID:  req.UploadID,
			Filename:  outcome.Filename,
			Reason:    outcome.Reason,
			Timestamp: now,
		}
		if err := uc.events.PublishDocumentFailed(ctx, failed); err != nil {
			uc.logger.Warn("failed to publish document failure event",
				zap.String("filename", outcome.Filename),
				zap.Error(err))
		}
	}
}
