package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"dealtracker/cmd/legalpack-service/internal/biz"
	"dealtracker/cmd/legalpack-service/internal/conf"
	"dealtracker/cmd/legalpack-service/internal/domain"
)

// ArtifactStore keeps per-session audit artifacts in object storage:
// the original upload under bundles/ and the processing report with the
// final analysis under reports/.
type ArtifactStore struct {
	client     *minio.Client
	bucketName string
}

var _ biz.ArtifactStore = (*ArtifactStore)(nil)

// NewArtifactStore creates the store and ensures the bucket exists.
func NewArtifactStore(cfg *conf.Config) (*ArtifactStore, error) {
	minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKeyID, cfg.Storage.SecretAccessKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	store := &ArtifactStore{
		client:     minioClient,
		bucketName: cfg.Storage.BucketName,
	}
	if err := store.ensureBucket(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket: %w", err)
	}
	return store, nil
}

func (s *ArtifactStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// SaveUpload archives the original upload bytes for a session.
func (s *ArtifactStore) SaveUpload(ctx context.Context, sessionID, filename string, data []byte) error {
	objectName := fmt.Sprintf("bundles/%s/%s", sessionID, filename)
	return s.putObject(ctx, objectName, data, "application/octet-stream")
}

// reportArtifact is the stored shape of a processing report.
type reportArtifact struct {
	SessionID string                   `json:"session_id"`
	Report    *domain.ProcessingReport `json:"report"`
	Analysis  string                   `json:"analysis"`
	SavedAt   time.Time                `json:"saved_at"`
}

// SaveReport stores the outcome ledger and the final analysis as JSON.
func (s *ArtifactStore) SaveReport(ctx context.Context, sessionID string, report *domain.ProcessingReport, analysis string) error {
	artifact := reportArtifact{
		SessionID: sessionID,
		Report:    report,
		Analysis:  analysis,
		SavedAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	objectName := fmt.Sprintf("reports/%s.json", sessionID)
	return s.putObject(ctx, objectName, data, "application/json")
}

func (s *ArtifactStore) putObject(ctx context.Context, objectName string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucketName, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"uploaded-at": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", objectName, err)
	}
	return nil
}
