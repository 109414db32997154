package cmd

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"go-photosync/internal/config"
	"go-photosync/internal/models"
)

// Persistent flag values. Whether the user actually set them is checked via
// cobra's Changed, so zero values here never shadow the config file.
var (
	cfgFile             string
	logLevelFlag        string
	logFormatFlag       string
	logFileFlag         string
	savePathFlag        string
	dbPathFlag          string
	maxRetriesFlag      int
	retryDelayFlag      int
	downloadTimeoutFlag int
)

// globalConfig holds the loaded configuration, populated before any command runs.
var globalConfig models.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "photosync",
	Short: "Mirror a remote photo library into a local content store",
	Long: `Photosync incrementally downloads the photo and video renditions of a
remote library catalog into a flat local directory, tracking every file in a
local database so interrupted or repeated runs only fetch what is missing.`,
	PersistentPreRunE: loadGlobalConfig,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default is ./config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", config.DefaultLogLevel, "Logging level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", config.DefaultLogFormat, "Logging format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "Also write logs to this file, with rotation")
	rootCmd.PersistentFlags().StringVar(&savePathFlag, "save-path", "", "Directory to store downloaded renditions (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db-path", "", "Path of the tracking database (overrides config, default is <save-path>/photosync.db)")
	rootCmd.PersistentFlags().IntVar(&maxRetriesFlag, "max-retries", 0, "Attempts per download before giving up (0 uses config default)")
	rootCmd.PersistentFlags().IntVar(&retryDelayFlag, "retry-delay", 0, "Initial retry backoff in ms (0 uses config default)")
	rootCmd.PersistentFlags().IntVar(&downloadTimeoutFlag, "download-timeout", 0, "Per-attempt download timeout in seconds (0 uses config default)")
}

// loadGlobalConfig merges defaults, the config file, and explicitly set flags,
// then configures logging from the result.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	flags := config.CliFlags{}
	set := cmd.Flags()
	if set.Changed("config") {
		flags.ConfigFilePath = &cfgFile
	}
	if set.Changed("log-level") {
		flags.LogLevel = &logLevelFlag
	}
	if set.Changed("log-format") {
		flags.LogFormat = &logFormatFlag
	}
	if set.Changed("log-file") {
		flags.LogFile = &logFileFlag
	}
	if set.Changed("save-path") {
		flags.SavePath = &savePathFlag
	}
	if set.Changed("db-path") {
		flags.DatabasePath = &dbPathFlag
	}
	if set.Changed("max-retries") {
		flags.MaxRetries = &maxRetriesFlag
	}
	if set.Changed("retry-delay") {
		flags.InitialRetryDelayMs = &retryDelayFlag
	}
	if set.Changed("download-timeout") {
		flags.DownloadTimeoutSec = &downloadTimeoutFlag
	}
	flags.Sync = collectSyncFlags(cmd)

	cfg, err := config.Initialize(flags)
	if err != nil {
		return err
	}
	globalConfig = cfg

	initLogging(cfg)
	return nil
}

// initLogging points logrus at the configured level, format and optional
// rotating log file.
func initLogging(cfg models.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Invalid log level %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if cfg.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		log.SetOutput(io.MultiWriter(os.Stderr, rotating))
	}
}
