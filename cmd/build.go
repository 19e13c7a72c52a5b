package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/walson-a/atlasbot/internal/config"
	"github.com/walson-a/atlasbot/internal/content"
	"github.com/walson-a/atlasbot/internal/knowledge"
	"github.com/walson-a/atlasbot/internal/openrouter"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the knowledge base from the content files",
	Long: `Build chunks the portfolio content (profile, projects, timeline),
embeds every chunk through the provider and writes the vector store
atomically. Run it after editing the content files, then restart the
server to pick up the new store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd)
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateBuild(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := newLogger()

	portfolio, err := content.Load(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("loading content: %w", err)
	}

	embedder := openrouter.New(openrouter.Config{
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		EmbedModel:   cfg.EmbedModel,
		MaxAttempts:  cfg.MaxAttempts,
		EmbedBackoff: cfg.EmbedBackoff,
		Referer:      "https://walson.dev",
		Title:        "AtlasBot",
	}, &http.Client{Timeout: cfg.RequestTimeout}, logger.With("component", "openrouter"))

	builder := knowledge.NewBuilder(embedder, cfg.StorePath(), cfg.KnowledgeDir(), logger.With("component", "builder"))

	n, err := builder.Build(cmd.Context(), portfolio)
	if err != nil {
		return fmt.Errorf("building knowledge base: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Knowledge base built: %d items written to %s\n", n, cfg.StorePath())
	return nil
}
