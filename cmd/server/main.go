package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/borjarodrigo23ia/ocr-ia/api"
	"github.com/borjarodrigo23ia/ocr-ia/internal/dolibarr"
	"github.com/borjarodrigo23ia/ocr-ia/internal/history"
	"github.com/borjarodrigo23ia/ocr-ia/internal/models"
	"github.com/borjarodrigo23ia/ocr-ia/internal/processor"
	"github.com/borjarodrigo23ia/ocr-ia/internal/storage"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_FORMAT") != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	erp, err := dolibarr.NewClient(config.Dolibarr)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure the Dolibarr client")
	}

	ctx := context.Background()

	hist, err := history.Open(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("history database not available, running without persistence")
	} else if hist.Enabled() {
		defer hist.Close()
	}

	archive, err := storage.Open(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("document archive not available, uploads will not be stored")
	}

	handler := api.NewHandler(config, erp, processor.New(erp), hist, archive)
	router := handler.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	log.Info().
		Str("addr", addr).
		Str("dolibarr", config.Dolibarr.BaseURL).
		Str("aiProvider", config.AI.DefaultProvider).
		Int("geminiKeys", len(config.AI.Gemini.Keys)).
		Bool("auth", config.Auth.Secret != "").
		Bool("history", hist.Enabled()).
		Bool("archive", archive.Enabled()).
		Msg("starting invoice OCR service")

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 5 * time.Minute,
	}
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// loadConfig reads config.yaml when present and applies environment
// overrides on top, so a pure-env deployment needs no file at all.
func loadConfig(path string) (*models.Config, error) {
	config := &models.Config{Port: 8080, Host: "0.0.0.0"}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if baseURL := os.Getenv("DOLIBARR_BASE_URL"); baseURL != "" {
		config.Dolibarr.BaseURL = baseURL
	}
	if apiKey := os.Getenv("DOLIBARR_API_KEY"); apiKey != "" {
		config.Dolibarr.APIKey = apiKey
	}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		config.AI.DefaultProvider = provider
	}
	if config.AI.DefaultProvider == "" {
		config.AI.DefaultProvider = "gemini"
	}

	// Up to three Gemini key/model pairs for rate-limit failover.
	geminiEnv := []struct{ key, model string }{
		{"GOOGLE_API_KEY", "GOOGLE_GEMINI_MODEL"},
		{"GOOGLE_API_KEY_2", "GOOGLE_GEMINI_MODEL_2"},
		{"GOOGLE_API_KEY_3", "GOOGLE_GEMINI_MODEL_3"},
	}
	for _, env := range geminiEnv {
		if apiKey := os.Getenv(env.key); apiKey != "" {
			config.AI.Gemini.Keys = append(config.AI.Gemini.Keys, models.GeminiKey{
				APIKey: apiKey,
				Model:  os.Getenv(env.model),
			})
		}
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.AI.OpenAI.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.AI.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		config.AI.OpenAI.Model = model
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.Secret = secret
	}
	if username := os.Getenv("AUTH_USERNAME"); username != "" {
		config.Auth.Username = username
	}
	if password := os.Getenv("AUTH_PASSWORD"); password != "" {
		config.Auth.Password = password
	}

	return config, nil
}
