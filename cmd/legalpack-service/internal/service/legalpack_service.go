package service

import (
	"context"

	"dealtracker/cmd/legalpack-service/internal/biz"
	"dealtracker/cmd/legalpack-service/internal/domain"
)

// LegalPackService is the transport-facing facade over the pipeline.
type LegalPackService struct {
	packUc *biz.LegalPackUsecase
}

// NewLegalPackService creates the service.
func NewLegalPackService(packUc *biz.LegalPackUsecase) *LegalPackService {
	return &LegalPackService{packUc: packUc}
}

// AnalyzeUpload runs the full pipeline over one uploaded pack.
func (s *LegalPackService) AnalyzeUpload(ctx context.Context, req *biz.AnalyzeRequest) (*biz.AnalyzeResult, error) {
	return s.packUc.AnalyzeUpload(ctx, req)
}

// AskFollowUp answers one question against an existing session.
func (s *LegalPackService) AskFollowUp(ctx context.Context, sessionID, question string) (*domain.QAEntry, error) {
	return s.packUc.AskFollowUp(ctx, sessionID, question)
}

// GetSession loads a session by id.
func (s *LegalPackService) GetSession(ctx context.Context, sessionID string) (*domain.AnalysisSession, error) {
	return s.packUc.GetSession(ctx, sessionID)
}

// GetStatus returns the processing state of an upload.
func (s *LegalPackService) GetStatus(ctx context.Context, uploadID string) (*domain.ProcessingStatus, error) {
	return s.packUc.GetStatus(ctx, uploadID)
}
