// Package cmd implements the CLI commands for the camera relay service.
package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"camera-relay/internal/platform/config"
	"camera-relay/internal/platform/logger"
)

var (
	cfgFile string
	envFile string

	// Populated by PersistentPreRunE before any command runs.
	appConfig *config.Config
	appLogger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "camera-relay",
	Short: "Camera stream supervision service",
	Long: `camera-relay maps registered cameras to live HLS relay sessions.

It resolves each camera's RTSP address, picks encoder settings from the
camera's quality tier, serves the session playlist to viewers and
periodically probes active sessions, flagging the ones that fail.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initEnv)

	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initConfigAndLogging()
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./camera-relay.yaml or /etc/camera-relay/camera-relay.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
	rootCmd.PersistentFlags().String("database-driver", "sqlite", "camera store driver (sqlite, postgres, mysql)")
	rootCmd.PersistentFlags().String("database-dsn", "camera-relay.db", "camera store DSN")

	mustBindPFlag("database.driver", rootCmd.PersistentFlags().Lookup("database-driver"))
	mustBindPFlag("database.dsn", rootCmd.PersistentFlags().Lookup("database-dsn"))
}

// initEnv loads the dotenv file. A missing file is fine; the process
// environment and defaults still apply.
func initEnv() {
	_ = config.LoadEnvFile(envFile)
}

// initConfigAndLogging loads configuration and builds the logger.
//
// Priority order (highest to lowest):
//  1. CLI flags, only if explicitly provided
//  2. Environment variables (CAMRELAY_LOGGING_LEVEL, ...)
//  3. Config file values
//  4. Built-in defaults
func initConfigAndLogging() error {
	cfg, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}

	// Logging flags are not bound to viper so that their defaults never
	// shadow env or file values.
	if rootCmd.PersistentFlags().Changed("log-level") {
		cfg.Logging.Level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		cfg.Logging.Format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)

	appConfig = cfg
	appLogger = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(appLogger)

	if used := viper.ConfigFileUsed(); used != "" {
		appLogger.Debug("using config file", slog.String("path", used))
	}
	return nil
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}
