package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/walson-a/atlasbot/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "atlasbot",
	Short: "AtlasBot - portfolio chat assistant backend",
	Long: `AtlasBot serves the chat assistant embedded in the portfolio website.
It answers visitor questions from a local knowledge base built out of the
portfolio content, and relays contact-form submissions.

Run 'atlasbot serve' to start the HTTP API, or 'atlasbot build' to
regenerate the knowledge base after editing the content files.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	// .env is a development convenience; in production the variables come
	// from the real environment, so a missing file is not an error.
	_ = godotenv.Load()
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG enables debug level;
// ATLAS_LOG_JSON switches to JSON output for log collectors.
func newLogger() log.Logger {
	return log.New(log.Config{
		Level: logLevel(),
		JSON:  os.Getenv("ATLAS_LOG_JSON") != "",
	})
}

func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
