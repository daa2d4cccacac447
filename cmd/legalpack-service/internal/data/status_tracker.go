package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dealtracker/cmd/legalpack-service/internal/biz"
	"dealtracker/cmd/legalpack-service/internal/conf"
	"dealtracker/cmd/legalpack-service/internal/domain"
)

const statusKeyPrefix = "legalpack:status:"

// StatusTracker keeps transient upload-processing state in Redis with a
// TTL. Statuses are a progress signal, not a system of record; an
// expired key simply reads as unknown.
type StatusTracker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ biz.StatusTracker = (*StatusTracker)(nil)

// NewRedisClient builds the Redis client and verifies connectivity.
func NewRedisClient(cfg *conf.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

// NewStatusTracker creates the tracker.
func NewStatusTracker(client *redis.Client, cfg *conf.Config, logger *zap.Logger) *StatusTracker {
	return &StatusTracker{client: client, ttl: cfg.Redis.StatusTTL, logger: logger}
}

// Set writes the status for an upload.
func (t *StatusTracker) Set(ctx context.Context, status *domain.ProcessingStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	if err := t.client.Set(ctx, statusKeyPrefix+status.UploadID, data, t.ttl).Err(); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}

// Get reads the status for an upload. An expired or unknown upload id
// maps to ErrSessionNotFound.
func (t *StatusTracker) Get(ctx context.Context, uploadID string) (*domain.ProcessingStatus, error) {
	data, err := t.client.Get(ctx, statusKeyPrefix+uploadID).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	var status domain.ProcessingStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}
