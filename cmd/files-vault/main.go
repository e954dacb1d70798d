package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/caarlos0/env/v11"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"

	"github.com/pavel-fokin/files-vault/internal/files"
	"github.com/pavel-fokin/files-vault/internal/keys"
	"github.com/pavel-fokin/files-vault/internal/server"
	"github.com/pavel-fokin/files-vault/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg := server.Config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := keys.ValidateBits(cfg.RSAKeyBits); err != nil {
		log.Fatalf("invalid FILES_VAULT_RSA_KEY_BITS: %v", err)
	}

	store, err := storage.Open(context.Background(), cfg.StoreURI)
	if err != nil {
		log.Fatalf("failed to open record store: %v", err)
	}

	fileService := files.NewService(store, files.Options{
		MaxFileSize:   cfg.MaxFileSize,
		RetentionDays: cfg.RetentionDays,
		Workers:       cfg.Workers,
	})

	srv := server.New(&cfg, fileService)

	go func() {
		slog.Info("Starting server", "addr", srv.Addr, "env", cfg.Environment, "rsa_key_bits", cfg.RSAKeyBits)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				slog.Info("Shutting down server")
				if err := srv.Shutdown(ctx); err != nil {
					return err
				}
				return store.Close()
			},
		},
	)

	exitCode := <-wait
	slog.Info("Server stopped", "exit_code", exitCode)
	os.Exit(exitCode)
}
