package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/walson-a/atlasbot/internal/api"
	"github.com/walson-a/atlasbot/internal/config"
	"github.com/walson-a/atlasbot/internal/knowledge"
	"github.com/walson-a/atlasbot/internal/mailer"
	"github.com/walson-a/atlasbot/internal/openrouter"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // the completion call retries with backoff
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe initializes and starts the HTTP API server.
func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()

	if cfg.APIKey == "" {
		logger.Warn("OPENROUTER_API_KEY not set, chat requests will fail until it is configured")
	}

	assistant := openrouter.New(openrouter.Config{
		BaseURL:         cfg.BaseURL,
		APIKey:          cfg.APIKey,
		EmbedModel:      cfg.EmbedModel,
		ChatModel:       cfg.ChatModel,
		Temperature:     cfg.Temperature,
		MaxTokens:       cfg.MaxTokens,
		MaxAttempts:     cfg.MaxAttempts,
		EmbedBackoff:    cfg.EmbedBackoff,
		CompleteBackoff: cfg.CompleteBackoff,
		Referer:         "https://walson.dev",
		Title:           "AtlasBot",
	}, &http.Client{Timeout: cfg.RequestTimeout}, logger.With("component", "openrouter"))

	store := knowledge.NewStore(cfg.StorePath(), logger.With("component", "store"))

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:      logger.With("component", "api"),
		Store:       store,
		Assistant:   assistant,
		Mailer:      mailer.New(mailer.DefaultBaseURL, cfg.ResendAPIKey, nil),
		Retrieval:   api.RetrievalPolicy{TopK: cfg.TopK, MinScore: cfg.MinScore},
		ChatRate:    api.RatePolicy{Limit: cfg.ChatRateLimit, Window: cfg.ChatRateWindow},
		ContactRate: api.RatePolicy{Limit: cfg.ContactRateLimit, Window: cfg.ContactRateWindow},
		MailFrom:    cfg.MailFrom,
		MailTo:      cfg.MailTo,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.Addr,
		"store", cfg.StorePath(),
		"chat_model", cfg.ChatModel,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
