package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"notesim/config"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "notesim",
	Short: "Semantic similarity over a vault of markdown notes",
	Long: `notesim keeps an embedding cache for a vault of markdown notes, ranks
notes by cosine similarity, and serves semantic search to MCP clients.

Example usage:
  notesim refresh                      # Embed new and modified notes
  notesim similar "Project ideas"      # Interactive similar-notes panel
  notesim search -q "sleep and memory" # Search by free text
  notesim serve                        # Start the MCP server`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}
		rootDir, err = filepath.Abs(rootDir)
		if err != nil {
			return fmt.Errorf("invalid vault directory: %w", err)
		}

		// Credentials may live in a .env next to the vault or the working directory.
		_ = godotenv.Load(filepath.Join(rootDir, ".env"))
		_ = godotenv.Load()

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		slog.SetDefault(newLogger(cfg.Logging.Level))
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./notesim.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "vault directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

// newLogger returns a text logger on stderr. Unknown levels fall back to info.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
