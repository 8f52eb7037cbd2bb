//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/pollenpilot/internal/bootstrap"
	"github.com/yanqian/pollenpilot/internal/domain/chat"
	"github.com/yanqian/pollenpilot/internal/infra/config"
	httpiface "github.com/yanqian/pollenpilot/internal/interface/http"
	"github.com/yanqian/pollenpilot/pkg/logger"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		provideChatConfig,
		provideLocation,
		provideCompleter,
		provideTokenCounter,
		provideArchiver,
		provideSessionStore,
		chat.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
