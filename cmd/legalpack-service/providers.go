package main

import (
	"go.uber.org/zap"

	"dealtracker/cmd/legalpack-service/internal/biz"
	"dealtracker/cmd/legalpack-service/internal/conf"
	"dealtracker/cmd/legalpack-service/internal/data"
	"dealtracker/cmd/legalpack-service/internal/infrastructure/event"
	"dealtracker/cmd/legalpack-service/internal/infrastructure/llm"
	"dealtracker/cmd/legalpack-service/internal/infrastructure/ocr"
	"dealtracker/cmd/legalpack-service/internal/infrastructure/storage"
)

func provideCompletionClient(cfg *conf.Config, logger *zap.Logger) (biz.CompletionClient, error) {
	return llm.NewAnthropicClient(cfg, logger)
}

func provideRasterizer(cfg *conf.Config, logger *zap.Logger) biz.PageRasterizer {
	if !cfg.OCR.Enabled {
		return nil
	}
	rasterizer := ocr.NewPopplerRasterizer(cfg.OCR.PopplerPath, logger)
	if !rasterizer.Available() {
		logger.Warn("pdftoppm not found, scanned pages will use native text only",
			zap.String("binary", cfg.OCR.PopplerPath))
		return nil
	}
	return rasterizer
}

func provideDetector(cfg *conf.Config, logger *zap.Logger) biz.TextDetector {
	if !cfg.OCR.Enabled {
		return nil
	}
	detector := ocr.NewVisionDetector(cfg, logger)
	if detector == nil {
		return nil
	}
	return detector
}

func provideBatcher(cfg *conf.Config, counter *biz.TokenCounter, logger *zap.Logger) *biz.Batcher {
	return biz.NewBatcher(counter, cfg.Analysis.BatchTokenLimit, logger)
}

func provideOrchestrator(cfg *conf.Config, client biz.CompletionClient, logger *zap.Logger) *biz.Orchestrator {
	return biz.NewOrchestrator(client, cfg.Analysis.OutputTokenLimit, logger)
}

// provideArtifactStore returns nil when object storage is not
// configured; artifact writes are best-effort and skipped.
func provideArtifactStore(cfg *conf.Config, logger *zap.Logger) (biz.ArtifactStore, error) {
	if cfg.Storage.Endpoint == "" {
		logger.Warn("object storage not configured, audit artifacts disabled")
		return nil, nil
	}
	return storage.NewArtifactStore(cfg)
}

// provideEventPublisher returns the publisher and its close function.
// Both are nil-safe when events are disabled.
func provideEventPublisher(cfg *conf.Config) (biz.EventPublisher, func()) {
	publisher := event.NewPublisher(cfg)
	if publisher == nil {
		return nil, func() {}
	}
	return publisher, func() { publisher.Close() }
}

func provideStatusTracker(cfg *conf.Config, logger *zap.Logger) (biz.StatusTracker, func(), error) {
	client, err := data.NewRedisClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	return data.NewStatusTracker(client, cfg, logger), func() { client.Close() }, nil
}
