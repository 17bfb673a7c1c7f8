// Command seatdesk runs the seat-change case service: project intake over
// chat, asynchronous report generation, and a polling JSON API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"seatdesk/pkg/chat"
	"seatdesk/pkg/completion"
	"seatdesk/pkg/completion/providers"
	"seatdesk/pkg/config"
	"seatdesk/pkg/logx"
	"seatdesk/pkg/metrics"
	"seatdesk/pkg/persistence"
	"seatdesk/pkg/report"
	"seatdesk/pkg/utils"
	"seatdesk/pkg/webapi"
)

const shutdownGrace = 30 * time.Second

func main() {
	var configPath string
	var secretsPath string
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&secretsPath, "secrets", "seatdesk.secrets", "Path to encrypted secrets file")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	logger := logx.NewLogger("main")
	if err := run(logger, configPath, secretsPath); err != nil {
		logger.Error("Fatal: %v", err)
		os.Exit(1)
	}
}

func run(logger *logx.Logger, configPath, secretsPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if err := loadSecrets(secretsPath); err != nil {
		return err
	}

	if err := persistence.Initialize(cfg.Database.Path); err != nil {
		return err
	}
	defer func() { _ = persistence.Close() }()
	ops := persistence.Ops()

	client, err := providers.NewClient(cfg)
	if err != nil {
		return err
	}
	logger.Info("Completion provider: %s (%s)", cfg.Completion.Provider, client.ModelName())
	completions := completion.NewService(client, cfg.Completion.MaxTokens, cfg.Completion.Temperature)

	counter, err := utils.NewTokenCounter()
	if err != nil {
		return err
	}

	recorder := metrics.NewPrometheusRecorder()

	var queries *metrics.QueryService
	if cfg.Metrics.PrometheusURL != "" {
		queries, err = metrics.NewQueryService(cfg.Metrics.PrometheusURL)
		if err != nil {
			return err
		}
		logger.Info("Metrics query service enabled: %s", cfg.Metrics.PrometheusURL)
	}

	orchestrator := report.NewOrchestrator(ops, completions, recorder, cfg.Generation.ReportsDir, cfg.Generation.Timeout)
	chatService := chat.NewService(ops, completions, orchestrator, counter, recorder,
		cfg.Chat.MaxHistoryMessages, cfg.Chat.MaxContextTokens)

	mux := http.NewServeMux()
	webapi.NewServer(ops, chatService, orchestrator, queries).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening on %s", cfg.Server.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("HTTP shutdown: %v", err)
	}
	if err := orchestrator.Shutdown(ctx); err != nil {
		logger.Warn("Report orchestrator shutdown: %v", err)
	}
	logger.Info("Shutdown complete")
	return nil
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// loadSecrets decrypts the secrets file when one exists. The password comes
// from SEATDESK_PASSWORD, or an interactive prompt when running on a
// terminal.
func loadSecrets(secretsPath string) error {
	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return nil
	}

	password := os.Getenv("SEATDESK_PASSWORD")
	if password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Secrets password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
	}
	if password == "" {
		return fmt.Errorf("secrets file %s exists but no password provided (set SEATDESK_PASSWORD)", secretsPath)
	}

	return config.LoadSecretsFile(secretsPath, password)
}
