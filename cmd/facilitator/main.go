// Command facilitator runs the hyper402 payment facilitator HTTP service.
//
// Configuration is read from the environment (a .env file is loaded when
// present):
//
//	FACILITATOR_PRIVATE_KEY  hex private key of the settlement account;
//	                         when unset the service runs verify-only
//	CHAIN_CONFIGS            JSON array of chain configs overriding the
//	                         built-in chain set
//	PORT                     listen port, default 3002
//	LOG_LEVEL                debug, info, warn or error, default info
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	hyper402 "github.com/waqaswahid1/hyper402"
	"github.com/waqaswahid1/hyper402/ethbackend"
	"github.com/waqaswahid1/hyper402/facilitator"
	x402http "github.com/waqaswahid1/hyper402/http"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	registry := hyper402.LoadRegistry([]byte(os.Getenv("CHAIN_CONFIGS")), logger)

	var (
		backend *ethbackend.Backend
		err     error
	)
	if key := os.Getenv("FACILITATOR_PRIVATE_KEY"); key != "" {
		backend, err = ethbackend.New(key, ethbackend.WithLogger(logger))
		if err != nil {
			logger.Error("invalid facilitator private key", "error", err)
			os.Exit(1)
		}
		logger.Info("facilitator wallet loaded", "address", backend.Address().Hex())
	} else {
		backend = ethbackend.NewReadOnly(ethbackend.WithLogger(logger))
		logger.Warn("FACILITATOR_PRIVATE_KEY not set, running verify-only")
	}

	var wallet facilitator.Wallet
	if backend.CanSign() {
		wallet = backend
	}

	engine := facilitator.New(registry, backend, wallet,
		facilitator.WithLogger(logger),
	)

	server := x402http.NewServer(engine, registry, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3002"
	}
	if err := server.Run(":" + port); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
