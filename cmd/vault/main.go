package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/devricklin/feishu-vault/internal/api"
	"github.com/devricklin/feishu-vault/internal/biz"
	"github.com/devricklin/feishu-vault/internal/biz/domain"
	"github.com/devricklin/feishu-vault/internal/biz/usecase"
	"github.com/devricklin/feishu-vault/internal/conf"
	"github.com/devricklin/feishu-vault/internal/data"
	"github.com/devricklin/feishu-vault/internal/infra/feishu"
	"github.com/devricklin/feishu-vault/internal/logging"
	"github.com/devricklin/feishu-vault/internal/server"
	"github.com/devricklin/feishu-vault/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logging.Logger("vault")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := conf.LoadFromEnv()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	logging.Init(cfg.Log.ToLoggingConfig())
	if err := run(cfg); err != nil {
		logger := logging.Logger("vault")
		logger.Error().Err(err).Msg("vault stopped")
		os.Exit(1)
	}
}

func run(cfg *conf.Config) error {
	log := logging.Logger("vault")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize repository layer
	store, err := data.NewData(ctx, cfg.Vault.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open store %s: %w", cfg.Vault.DBPath, err)
	}
	defer store.Close()
	log.Info().Str("path", cfg.Vault.DBPath).Msg("store ready")

	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
	transport := data.NewFeishuTransport(feishuClient, cfg.Vault.SendTimeout)
	repos := data.NewRepositories(store, transport)

	scheduler := service.NewDeletionScheduler(repos.Transport, cfg.Vault.DeleteTimeout)

	// Initialize usecase layer
	operator := domain.NewOperator(cfg.Vault.OperatorID)
	uc := &biz.Usecases{
		Users:     usecase.NewUserUsecase(repos.Users),
		Authoring: usecase.NewAuthoringUsecase(operator, repos.Sessions, cfg.Vault.DeepLinkBase),
		Delivery:  usecase.NewDeliveryUsecase(repos.Sessions, repos.Transport, scheduler),
		Broadcast: usecase.NewBroadcastUsecase(operator, repos.Users, repos.Transport, cfg.Vault.BroadcastRate),
		Messages:  usecase.NewCannedMessageUsecase(operator, repos.Messages),
	}

	// Initialize service layer
	replies := cfg.Replies.ToReplies()
	commands := service.NewCommandService(uc, repos.Transport, transport, replies)

	// Initialize HTTP API server for vault-mcp
	apiServer := api.NewServer(repos.Sessions, uc.Users, uc.Messages, uc.Broadcast, scheduler, api.Options{
		Addr:         cfg.API.Addr,
		OperatorID:   cfg.Vault.OperatorID,
		DeepLinkBase: cfg.Vault.DeepLinkBase,
		DefaultStart: replies.DefaultStart,
		DefaultHelp:  replies.DefaultHelp,
	})
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error().Err(err).Msg("API server error")
		}
	}()

	srv := server.NewFeishuServer(feishuClient, commands)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()
	log.Info().Str("operator", cfg.Vault.OperatorID).Str("api", cfg.API.Addr).Msg("vault bot started")

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("feishu connection failed: %w", err)
		}
	}

	// Graceful shutdown
	srv.Stop()
	commands.Stop()
	if pending := scheduler.Pending(); pending > 0 {
		log.Warn().Int("pending", pending).Msg("dropping scheduled deletions")
	}
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server shutdown failed")
	}
	return runErr
}
