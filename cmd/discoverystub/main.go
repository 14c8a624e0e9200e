// Package main runs the in-process Discovery stub as a standalone service,
// for trying discoveryctl without a real backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RegistryAccord/discovery-go/internal/config"
	"github.com/RegistryAccord/discovery-go/internal/server"
)

func main() {
	cfg := config.LoadStub()

	// Configure structured logging for the application
	logLevel := slog.LevelInfo
	if cfg.Env == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	opts := []server.Option{server.WithLogger(logger)}
	switch {
	case cfg.Token != "":
		opts = append(opts, server.WithBearerToken(cfg.Token))
	case cfg.Username != "":
		opts = append(opts, server.WithBasicAuth(cfg.Username, cfg.Password))
	}
	mux, err := server.NewMux(opts...)
	if err != nil {
		logger.Error("failed to create stub service", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second, // uploads
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("stub starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("stub failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down stub")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("stub shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stub exited")
}
