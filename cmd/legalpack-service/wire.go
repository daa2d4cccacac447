//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"dealtracker/cmd/legalpack-service/internal/biz"
	"dealtracker/cmd/legalpack-service/internal/conf"
	"dealtracker/cmd/legalpack-service/internal/data"
	"dealtracker/cmd/legalpack-service/internal/server"
	"dealtracker/cmd/legalpack-service/internal/service"
)

// initApp assembles the service.
func initApp(cfg *conf.Config, logger *zap.Logger) (*server.HTTPServer, func(), error) {
	wire.Build(
		// Data layer
		data.NewDB,
		data.NewSessionRepository,
		provideStatusTracker,

		// Infrastructure
		provideCompletionClient,
		provideRasterizer,
		provideDetector,
		provideArtifactStore,
		provideEventPublisher,

		// Biz layer
		biz.NewTokenCounter,
		biz.NewExtractor,
		biz.NewExpander,
		provideBatcher,
		provideOrchestrator,
		biz.NewLegalPackUsecase,

		// Service layer
		service.NewLegalPackService,

		// Server layer
		server.NewHTTPServer,
	)
	return nil, nil, nil
}
