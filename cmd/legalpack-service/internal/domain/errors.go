package domain

import "errors"

var (
	// Session errors
	ErrSessionNotFound  = errors.New("analysis session not found")
	ErrSessionExists    = errors.New("analysis session already exists")
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrNoDocuments      = errors.New("session has no documents")
	ErrEmptyAnalysis    = errors.New("initial analysis is empty")

	// Document errors
	ErrInvalidDocument     = errors.New("invalid document")
	ErrInvalidDocumentName = errors.New("invalid document name")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrExtractionFailed    = errors.New("could not extract text from file")

	// Archive errors
	ErrArchiveCorrupt = errors.New("archive is corrupt or unreadable")
	ErrArchiveEmpty   = errors.New("no processable files found in archive")

	// Analysis errors
	ErrAnalysisFailed = errors.New("failed to get initial analysis")
	ErrFollowUpFailed = errors.New("failed to get follow-up answer")
	ErrEmptyQuestion  = errors.New("no question provided")
	ErrPackTooLarge   = errors.New("legal pack exceeds the total token limit")

	// Storage errors, distinct from not-found so callers can retry vs re-upload
	ErrStorageUnavailable = errors.New("session storage unavailable")
)
