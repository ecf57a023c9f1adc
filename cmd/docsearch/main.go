package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"docsearch/internal/app"
	"docsearch/internal/config"
	"docsearch/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "docsearch",
	Short: "Workspace-scoped document ingestion and hybrid search",
	Long: `docsearch ingests PDF, DOCX, text and image files into workspaces and
answers queries with combined vector and keyword retrieval.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml); environment defaults apply when empty")
}

func main() {
	_ = godotenv.Load(".env")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.LoadFile(cfgFile)
}

// openApp builds the full engine. Callers must Close the result.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	bctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	a, err := app.Build(bctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	return a, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database and vector index schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		cmd.Printf("schema ready (vector backend %s)\n", a.Config.VectorBackend)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
