package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MarcoPoloResearchLab/codenotes/internal/config"
	"github.com/MarcoPoloResearchLab/codenotes/internal/logging"
	"github.com/MarcoPoloResearchLab/codenotes/internal/notes"
	"github.com/MarcoPoloResearchLab/codenotes/internal/storage"
	"go.uber.org/zap"
)

// application is the wired note store behind every subcommand.
type application struct {
	config  config.AppConfig
	logger  *zap.Logger
	store   *notes.Store
	closeKV func() error
}

func (c *cli) openApplication(ctx context.Context, stderr io.Writer) (*application, error) {
	appConfig, err := config.Load(c.viper)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return nil, err
	}

	keyValueStore, closeKV, err := storage.OpenKeyValueStore(appConfig.StorageDriver, appConfig.StoragePath, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	idProvider := notes.NewUUIDProvider()
	adapter, err := storage.NewAdapter(storage.AdapterConfig{
		Store:      keyValueStore,
		Key:        appConfig.StorageKey,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		_ = closeKV()
		return nil, err
	}

	store, err := notes.NewStore(notes.StoreConfig{
		Repository: adapter,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		_ = closeKV()
		return nil, err
	}

	result, err := store.Initialize(ctx)
	if err != nil {
		if !errors.Is(err, notes.ErrPersist) {
			_ = closeKV()
			return nil, err
		}
		fmt.Fprintf(stderr, "warning: notes could not be saved: %v\n", err)
	}
	if result.Recovered != nil {
		fmt.Fprintf(stderr, "warning: stored notes were unreadable and have been replaced by the welcome note: %v\n", result.Recovered)
	}

	return &application{
		config:  appConfig,
		logger:  logger,
		store:   store,
		closeKV: closeKV,
	}, nil
}

func (a *application) Close() error {
	_ = a.logger.Sync()
	return a.closeKV()
}
