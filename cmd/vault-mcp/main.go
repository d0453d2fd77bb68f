package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/devricklin/feishu-vault/internal/logging"
	"github.com/devricklin/feishu-vault/internal/mcp"
)

// This MCP server exposes the vault operator API over stdio.
// It talks to a running vault process through VAULT_API_URL.

const (
	version       = "v1.0.0"
	defaultAPIURL = "http://127.0.0.1:9876"
)

func main() {
	_ = godotenv.Load()

	// stdout carries the MCP protocol, logs go to stderr
	logging.Init(logging.Config{Level: os.Getenv("LOG_LEVEL"), Output: os.Stderr})
	log := logging.Logger("vault-mcp")

	apiURL := os.Getenv("VAULT_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("api", apiURL).Msg("starting MCP server")
	server := mcp.NewServer(mcp.NewClient(apiURL), version)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("MCP server stopped")
		os.Exit(1)
	}
}
