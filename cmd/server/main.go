package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/muyusufspa/spgpt/internal/auth"
	"github.com/muyusufspa/spgpt/internal/config"
	"github.com/muyusufspa/spgpt/internal/document"
	"github.com/muyusufspa/spgpt/internal/extraction"
	"github.com/muyusufspa/spgpt/internal/lookup"
	"github.com/muyusufspa/spgpt/internal/ollama"
	"github.com/muyusufspa/spgpt/internal/posting"
	"github.com/muyusufspa/spgpt/internal/prefs"
	"github.com/muyusufspa/spgpt/internal/qa"
	"github.com/muyusufspa/spgpt/internal/server"
	"github.com/muyusufspa/spgpt/internal/store"
	"github.com/muyusufspa/spgpt/pkg/utils"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting invoice assistant service",
		zap.Int("port", cfg.Server.Port))

	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}

	accounts, err := store.Open(store.Config{
		Path:     cfg.Database.Path,
		SeedPath: cfg.Database.SeedPath,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize account store", zap.Error(err))
	}
	defer accounts.Close()

	preferences, err := prefs.NewStore(cfg.Data.Dir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize preference store", zap.Error(err))
	}

	completions := ollama.NewClient(ollama.Config{
		BaseURL: cfg.Ollama.BaseURL,
		Model:   cfg.Ollama.Model,
		Client:  &http.Client{Timeout: cfg.Ollama.Timeout},
	}, logger)

	reader := document.NewReader(logger)

	extractor := extraction.NewGateway(reader, completions, extraction.Config{
		RequestOwner:    cfg.Extraction.RequestOwner,
		DefaultApprover: cfg.Extraction.DefaultApprover,
	}, logger)

	poster := posting.NewGateway(posting.Config{
		Endpoint: cfg.Posting.Endpoint,
		Token:    cfg.Posting.Token,
		Client:   &http.Client{Timeout: cfg.Posting.Timeout},
	}, preferences, logger)

	qaService := qa.NewService(completions, reader, logger)

	airports := lookup.NewAirportClient(lookup.AirportConfig{
		URL:      cfg.Lookup.AirportURL,
		Username: cfg.Lookup.AirportUsername,
		Password: cfg.Lookup.AirportPassword,
		Client:   &http.Client{Timeout: cfg.Lookup.Timeout},
	}, logger)

	approvers := lookup.NewApproverClient(lookup.ApproverConfig{
		BaseURL: cfg.Lookup.ApproverBaseURL,
		Token:   cfg.Lookup.ApproverToken,
		Client:  &http.Client{Timeout: cfg.Lookup.Timeout},
	}, logger)

	sessions := auth.NewManager(accounts, accounts, logger)

	srv := server.New(cfg.Server, server.Deps{
		Sessions:  sessions,
		Users:     accounts,
		Prefs:     preferences,
		QA:        qaService,
		Airports:  airports,
		Approvers: approvers,
		Extractor: extractor,
		Poster:    poster,
		Activity:  accounts,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
