package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/textscan/comprobante-service/api"
	"github.com/textscan/comprobante-service/internal/ai"
	"github.com/textscan/comprobante-service/internal/auth"
	"github.com/textscan/comprobante-service/internal/db"
	"github.com/textscan/comprobante-service/internal/extractor"
	"github.com/textscan/comprobante-service/internal/models"
	"github.com/textscan/comprobante-service/internal/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	if err := auth.Init(); err != nil {
		logger.Error("failed to initialize auth", "error", err)
		os.Exit(1)
	}
	logger.Info("JWT authentication initialized")

	if err := db.Init(); err != nil {
		logger.Warn("database not available, running without persistence", "error", err)
	} else {
		defer db.Close()
	}

	if err := storage.Init(); err != nil {
		logger.Warn("MinIO storage not available, images will not be stored", "error", err)
	} else {
		logger.Info("MinIO storage initialized")
	}

	config, err := loadConfig("config.yaml")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ext, err := buildExtractor(config, logger)
	if err != nil {
		logger.Error("failed to configure extractor", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(config, ext, logger)
	router := handler.SetupRoutes()

	// JWT middleware skips /health and /api/login
	protectedRouter := auth.JWTMiddleware(router)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	logger.Info("starting comprobante service",
		"version", api.Version,
		"addr", addr,
		"extractionMode", config.Extraction.Mode,
		"sequenceStrategy", config.Sequence.Strategy,
		"database", db.Pool != nil,
		"storage", storage.Client != nil,
	)

	if err := http.ListenAndServe(addr, protectedRouter); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// buildExtractor wires the extraction variant selected by config. "fallback"
// tries the model first and degrades to pattern matching when the backend is
// unreachable or returns an unusable payload.
func buildExtractor(config *models.Config, logger *slog.Logger) (extractor.Extractor, error) {
	clock := extractor.SystemClock()
	sequence, err := buildSequenceGenerator(config, clock)
	if err != nil {
		return nil, err
	}
	defaults := buildDefaults(config)

	rules := extractor.NewRules(clock, sequence, defaults)

	switch config.Extraction.Mode {
	case "", "rules":
		return rules, nil

	case "ai":
		provider, err := buildProvider(config)
		if err != nil {
			return nil, err
		}
		return ai.NewModel(provider, clock, sequence, defaults), nil

	case "fallback":
		provider, err := buildProvider(config)
		if err != nil {
			return nil, err
		}
		model := ai.NewModel(provider, clock, sequence, defaults)
		return ai.NewFallback(model, rules, logger), nil

	default:
		return nil, fmt.Errorf("unsupported extraction mode: %s", config.Extraction.Mode)
	}
}

func buildSequenceGenerator(config *models.Config, clock extractor.Clock) (extractor.SequenceGenerator, error) {
	switch config.Sequence.Strategy {
	case "", "timestamp":
		return &extractor.TimestampSuffixGenerator{Clock: clock}, nil

	case "daily":
		var counter extractor.SequenceCounterProvider
		switch config.Sequence.Counter {
		case "", "random":
			counter = extractor.RandomCounterProvider{}
		case "atomic":
			if db.Pool == nil {
				return nil, fmt.Errorf("atomic sequence counter requires a database")
			}
			counter = &extractor.AtomicDailyCounterProvider{Store: dailySequenceStore{}}
		default:
			return nil, fmt.Errorf("unsupported sequence counter: %s", config.Sequence.Counter)
		}
		return &extractor.DailyCounterGenerator{Clock: clock, Counter: counter}, nil

	default:
		return nil, fmt.Errorf("unsupported sequence strategy: %s", config.Sequence.Strategy)
	}
}

// dailySequenceStore adapts the db package to the extractor's store interface
type dailySequenceStore struct{}

func (dailySequenceStore) NextDailySequence(ctx context.Context, day string) (int, error) {
	return db.NextDailySequence(ctx, day)
}

func buildDefaults(config *models.Config) extractor.Defaults {
	defaults := extractor.StandardDefaults()
	if config.Emisor != nil {
		defaults.Emisor = *config.Emisor
	}
	if config.Receptor != nil {
		defaults.Receptor = *config.Receptor
	}
	return defaults
}

func buildProvider(config *models.Config) (ai.Provider, error) {
	switch config.AI.DefaultProvider {
	case "openai":
		return ai.NewOpenAIProvider(
			config.AI.OpenAI.APIKey,
			config.AI.OpenAI.BaseURL,
			config.AI.OpenAI.Model,
		), nil
	case "gemini":
		return ai.NewGeminiProvider(
			config.AI.Gemini.APIKey,
			config.AI.Gemini.Model,
		), nil
	case "ollama":
		return ai.NewOllamaProvider(
			config.AI.Ollama.BaseURL,
			config.AI.Ollama.Model,
		), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", config.AI.DefaultProvider)
	}
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadConfig(path string) (*models.Config, error) {
	var config models.Config

	// A missing config file is fine; defaults plus environment overrides
	// cover the common deployment
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if config.Port == 0 {
		config.Port = 8080
	}
	if config.OCR.Language == "" {
		config.OCR.Language = "spa"
	}
	if config.OCR.Engine == "" {
		config.OCR.Engine = "tesseract"
	}

	// Environment overrides
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if mode := os.Getenv("EXTRACTION_MODE"); mode != "" {
		config.Extraction.Mode = mode
	}
	if strategy := os.Getenv("SEQUENCE_STRATEGY"); strategy != "" {
		config.Sequence.Strategy = strategy
	}
	if counter := os.Getenv("SEQUENCE_COUNTER"); counter != "" {
		config.Sequence.Counter = counter
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.AI.OpenAI.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.AI.Gemini.APIKey = apiKey
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.AI.Ollama.BaseURL = baseURL
	}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		config.AI.DefaultProvider = provider
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.AI.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		config.AI.OpenAI.Model = model
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.AI.Gemini.Model = model
	}

	return &config, nil
}
