package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"perspective/config"
	"perspective/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	debug   bool

	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "perspective",
	Short: "Answer questions from the point of view of a person's collected writing",
	Long: `Perspective embeds labeled text fragments into a vector store and answers
questions by retrieving the closest fragments and synthesizing a perspective
with a language model.

Example usage:
  perspective ingest posts.jsonl                 # Embed labeled fragments
  perspective ask -q "What does this person value?"
  perspective serve                              # Start the HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		// API keys may live in a dotenv file next to the config.
		if err := godotenv.Load(filepath.Join(rootDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if !filepath.IsAbs(cfg.Store.DataDir) {
			cfg.Store.DataDir = filepath.Join(rootDir, cfg.Store.DataDir)
		}
		if debug {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logCloser, err = logging.Setup(cfg.Logging.Level, cfg.Logging.File)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./perspective.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
