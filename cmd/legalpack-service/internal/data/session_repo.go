package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dealtracker/cmd/legalpack-service/internal/domain"
)

// SessionPO is the persisted shape of an analysis session. Documents and
// the question history are stored as jsonb blobs; the service reads
// sessions whole, never querying inside them.
type SessionPO struct {
	ID              string `gorm:"primaryKey;size:64"`
	PropertyID      string `gorm:"size:64;index:idx_property"`
	Documents       string `gorm:"type:jsonb;not null"`
	InitialAnalysis string `gorm:"type:text;not null"`
	QAHistory       string `gorm:"type:jsonb;not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName maps the PO to its table.
func (SessionPO) TableName() string {
	return "legalpack.analysis_sessions"
}

// SessionRepository is the Postgres-backed session store.
type SessionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSessionRepository creates the session repository.
func NewSessionRepository(db *gorm.DB, logger *zap.Logger) domain.SessionRepository {
	return &SessionRepository{db: db, logger: logger}
}

// Create inserts a new session. A duplicate id is rejected with
// domain.ErrSessionExists.
func (r *SessionRepository) Create(ctx context.Context, session *domain.AnalysisSession) error {
	if err := session.Validate(); err != nil {
		return err
	}
	po, err := toSessionPO(session)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(po).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrSessionExists
		}
		r.logger.Error("failed to create session",
			zap.String("session_id", session.ID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// GetByID loads one session. A missing row maps to ErrSessionNotFound;
// any other failure maps to ErrStorageUnavailable so callers can tell
// "re-upload" apart from "retry later".
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.AnalysisSession, error) {
	if id == "" {
		return nil, domain.ErrInvalidSessionID
	}

	var po SessionPO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		r.logger.Error("failed to load session",
			zap.String("session_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return toDomainSession(&po)
}

// AppendQA appends one entry to a session's history inside a
// row-locking transaction. Concurrent appends to the same session
// serialize on the lock, so no entry is lost.
func (r *SessionRepository) AppendQA(ctx context.Context, id string, entry domain.QAEntry) error {
	if id == "" {
		return domain.ErrInvalidSessionID
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var po SessionPO
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&po).Error; err != nil {
			return err
		}

		var history []domain.QAEntry
		if err := json.Unmarshal([]byte(po.QAHistory), &history); err != nil {
			return fmt.Errorf("decode qa history: %w", err)
		}
		history = append(history, entry)

		encoded, err := json.Marshal(history)
		if err != nil {
			return fmt.Errorf("encode qa history: %w", err)
		}

		return tx.Model(&SessionPO{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"qa_history": string(encoded),
				"updated_at": entry.Timestamp,
			}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrSessionNotFound
		}
		r.logger.Error("failed to append qa entry",
			zap.String("session_id", id),
			zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func toSessionPO(session *domain.AnalysisSession) (*SessionPO, error) {
	documents, err := json.Marshal(session.Documents)
	if err != nil {
		return nil, fmt.Errorf("encode documents: %w", err)
	}
	history, err := json.Marshal(session.QAHistory)
	if err != nil {
		return nil, fmt.Errorf("encode qa history: %w", err)
	}
	return &SessionPO{
		ID:              session.ID,
		PropertyID:      session.PropertyID,
		Documents:       string(documents),
		InitialAnalysis: session.InitialAnalysis,
		QAHistory:       string(history),
		CreatedAt:       session.CreatedAt,
		UpdatedAt:       session.UpdatedAt,
	}, nil
}

func toDomainSession(po *SessionPO) (*domain.AnalysisSession, error) {
	var documents []*domain.ProcessedDocument
	if err := json.Unmarshal([]byte(po.Documents), &documents); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	var history []domain.QAEntry
	if err := json.Unmarshal([]byte(po.QAHistory), &history); err != nil {
		return nil, fmt.Errorf("decode qa history: %w", err)
	}
	return &domain.AnalysisSession{
		ID:              po.ID,
		PropertyID:      po.PropertyID,
		Documents:       documents,
		InitialAnalysis: po.InitialAnalysis,
		QAHistory:       history,
		CreatedAt:       po.CreatedAt,
		UpdatedAt:       po.UpdatedAt,
	}, nil
}
