package main

import (
	"time"

	"go.uber.org/zap"

	"calbot/internal/bot"
	"calbot/internal/calendar"
	"calbot/internal/extractor"
	"calbot/internal/quota"
	"calbot/internal/storage"
	"calbot/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}
		store, err = storage.NewPostgresStorage(dbConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize collaborators
	ext := extractor.NewLLMExtractor(
		cfg.LLM.APIKey,
		cfg.LLM.BaseURL,
		cfg.LLM.Model,
		cfg.LLM.MaxTokens,
		cfg.LLM.Temperature,
		logger,
	)
	cal := calendar.NewCalDAVProvider(cfg.Calendar.Timezone, logger)
	tracker := quota.NewTracker(cfg.Quota.DailyTokenLimit)

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, bot.Options{
		Debounce:      time.Duration(cfg.Batch.DebounceMs) * time.Millisecond,
		MaxBatchItems: cfg.Batch.MaxItems,
	}, store, ext, cal, tracker, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
