package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/barbarosson/advisory/internal/agent"
	"github.com/barbarosson/advisory/internal/auth"
	"github.com/barbarosson/advisory/internal/config"
	"github.com/barbarosson/advisory/internal/llm"
	"github.com/barbarosson/advisory/internal/service"
	"github.com/barbarosson/advisory/internal/store"
	transport "github.com/barbarosson/advisory/internal/transport/http"
	"github.com/barbarosson/advisory/policy"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting advisory service",
		zap.Int("port", cfg.Server.Port),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("llm_model", cfg.LLM.Model))

	st, err := newStore(cfg)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	verifier := auth.NewClient(cfg.Auth.BaseURL, cfg.Auth.AnonKey, cfg.Auth.Timeout)
	llmClient := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Timeout)

	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		logger.Fatal("failed to initialize policy engine", zap.Error(err))
	}

	profiles := []*agent.Profile{
		agent.NewAccountingProfile(st),
		agent.NewCFOProfile(st),
	}

	svc := service.New(st, llmClient, policyEngine, profiles, cfg, logger)
	e := transport.NewServer(svc, verifier, cfg, logger)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return store.NewPostgresStore(cfg.Database.DSN)
	default:
		return store.NewSQLiteStore(cfg.Database.DSN)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if err := zapCfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zapCfg.Build()
}
