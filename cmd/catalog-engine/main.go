// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the catalog-engine CLI.
// Each pipeline stage is a subcommand: fetch, compact, annotate and score.
// A scheduler chains them in that order.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/catalog-engine/internal/logging"
	"github.com/pdiddy/catalog-engine/internal/metrics"
	"github.com/pdiddy/catalog-engine/internal/secrets"
	"github.com/pdiddy/catalog-engine/internal/storage"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	defaultStorageRoot = "data"
	defaultSecretsDir  = ".secrets/"
	defaultConfigsDir  = "configs"
	defaultUserAgent   = "catalog-engine/0.1"
)

// Per-invocation dependencies, built in PersistentPreRunE and passed to
// each component at construction.
var (
	loadedSecrets secrets.Secrets
	logger        zerolog.Logger
	recorder      *metrics.Recorder
)

// secretDefault returns fallback if set, or the named secret otherwise.
func secretDefault(name, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return loadedSecrets.Get(name)
}

// rootCmd is the base command for the catalog-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "catalog-engine",
	Short: "Batch pipeline that ingests, compacts, annotates and scores catalog items",
	Long: `catalog-engine ingests item metadata from an external video catalog,
compacts the immutable raw records into one deduplicated stream per
partition, annotates items with a language model, and ranks them with a
versioned weighted scoring configuration.

Each stage is a subcommand: fetch, compact, annotate and score. A scheduler
(cron, Airflow, or mage daily) runs them in that order.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(types.LoggingConfig{
			Level:  viper.GetString("logging.level"),
			Format: viper.GetString("logging.format"),
		}, os.Stderr)
		recorder = metrics.New()

		s, err := secrets.Load(viper.GetString("secrets.dir"), logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if names := s.Names(); len(names) > 0 {
			logger.Debug().Strs("secrets", names).Msg("loaded secrets")
		}
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug().Str("config", used).Msg("using config file")
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("metrics.textfile")
		if path == "" {
			return nil
		}
		if err := recorder.WriteTextfile(path); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./catalog-engine.yaml or ~/.config/catalog-engine/catalog-engine.yaml)")
	pf.String("storage-root", defaultStorageRoot, "storage root: local path, file:// URI or gs://bucket/prefix")
	pf.String("credentials-file", "", "service account key for gs:// storage roots")
	pf.String("configs-dir", defaultConfigsDir, "directory holding channels.yaml and discovery_keywords.yaml")
	pf.String("secrets-dir", defaultSecretsDir, "directory of secret files")
	pf.String("log-level", "info", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "json", "log format: json or console")
	pf.String("metrics-file", "", "write run metrics to this Prometheus textfile")

	_ = viper.BindPFlag("storage.root", pf.Lookup("storage-root"))
	_ = viper.BindPFlag("storage.credentials_file", pf.Lookup("credentials-file"))
	_ = viper.BindPFlag("sources.dir", pf.Lookup("configs-dir"))
	_ = viper.BindPFlag("secrets.dir", pf.Lookup("secrets-dir"))
	_ = viper.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", pf.Lookup("log-format"))
	_ = viper.BindPFlag("metrics.textfile", pf.Lookup("metrics-file"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("catalog-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "catalog-engine"))
		}
	}

	viper.SetEnvPrefix("CATALOG_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "warning: could not read config %s: %v\n", cfgFile, err)
		}
	}
}

// --- shared helpers ---

func storageConfig() types.StorageConfig {
	return types.StorageConfig{
		Root:            viper.GetString("storage.root"),
		CredentialsFile: viper.GetString("storage.credentials_file"),
	}
}

func openStore(ctx context.Context) (storage.Store, error) {
	return storage.Open(ctx, storageConfig())
}

// fetchDate returns the --date flag, defaulting to today in UTC.
func fetchDate(cmd *cobra.Command) (string, error) {
	date, _ := cmd.Flags().GetString("date")
	if date == "" {
		return time.Now().UTC().Format(types.DateLayout), nil
	}
	if _, err := time.Parse(types.DateLayout, date); err != nil {
		return "", fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
	}
	return date, nil
}

// timeStage records the stage duration when the returned func is called.
func timeStage(stage string) func() {
	start := time.Now()
	return func() { recorder.ObserveStage(stage, time.Since(start)) }
}

func retryConfig(prefix string) types.RetryConfig {
	return types.RetryConfig{
		MaxAttempts: viper.GetInt(prefix + ".max_attempts"),
		BackoffStep: viper.GetDuration(prefix + ".backoff_step"),
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
