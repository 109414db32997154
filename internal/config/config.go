package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go-photosync/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultSavePath            = "photos"
	DefaultDatabasePath        = "photosync.db" // Relative to SavePath if not set
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultLogFile             = ""
	DefaultMaxRetries          = 3
	DefaultInitialRetryDelayMs = 1000 // milliseconds
	DefaultDownloadTimeoutSec  = 120  // seconds, per attempt
	DefaultConfigFilePath      = "config.toml"

	// Sync specific defaults
	DefaultConfigSyncConcurrency = 5
	DefaultConfigSyncCatalog     = ""
	DefaultConfigSyncSince       = ""
	DefaultConfigSyncRecent      = 0
)

// setViperDefaults configures Viper with the application's default values.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("savepath", DefaultSavePath)
	v.SetDefault("databasepath", DefaultDatabasePath)
	v.SetDefault("loglevel", DefaultLogLevel)
	v.SetDefault("logformat", DefaultLogFormat)
	v.SetDefault("logfile", DefaultLogFile)
	v.SetDefault("maxretries", DefaultMaxRetries)
	v.SetDefault("initialretrydelayms", DefaultInitialRetryDelayMs)
	v.SetDefault("downloadtimeoutsec", DefaultDownloadTimeoutSec)

	// Sync defaults
	v.SetDefault("sync.concurrency", DefaultConfigSyncConcurrency)
	v.SetDefault("sync.catalog", DefaultConfigSyncCatalog)
	v.SetDefault("sync.since", DefaultConfigSyncSince)
	v.SetDefault("sync.recent", DefaultConfigSyncRecent)
}

// CliFlags holds pointers to values received from command-line flags.
// Nil fields indicate the flag was not provided by the user.
type CliFlags struct {
	// Global/Persistent Flags
	ConfigFilePath      *string
	LogLevel            *string // --log-level
	LogFormat           *string // --log-format
	LogFile             *string // --log-file
	SavePath            *string // --save-path
	DatabasePath        *string // --db-path
	MaxRetries          *int    // --max-retries
	InitialRetryDelayMs *int    // --retry-delay
	DownloadTimeoutSec  *int    // --download-timeout

	Sync *CliSyncFlags
}

type CliSyncFlags struct {
	Catalog     *string // --catalog
	Since       *string // --since
	Recent      *int    // --recent
	Concurrency *int    // -c
}

// Initialize loads configuration based on defaults, config file, and flags.
// Precedence: Flags > Config File > Defaults.
func Initialize(flags CliFlags) (models.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PHOTOSYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setViperDefaults(v)

	actualConfigFilePath := DefaultConfigFilePath
	if flags.ConfigFilePath != nil {
		actualConfigFilePath = *flags.ConfigFilePath
	}
	v.SetConfigFile(actualConfigFilePath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Debugf("Config file '%s' not found, using defaults and CLI flags only", actualConfigFilePath)
		} else if flags.ConfigFilePath != nil {
			// The user pointed at a specific file; a broken one is an error.
			return models.Config{}, fmt.Errorf("failed to read config file %s: %w", actualConfigFilePath, err)
		} else {
			log.Warnf("Error reading config file '%s': %v. Using defaults and CLI flags only.", actualConfigFilePath, err)
		}
	} else {
		log.Debugf("Read config file: %s", v.ConfigFileUsed())
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return models.Config{}, fmt.Errorf("failed to unmarshal config from viper: %w", err)
	}

	// --- Override with CLI Flags ---
	if flags.SavePath != nil {
		cfg.SavePath = *flags.SavePath
	}
	if flags.DatabasePath != nil {
		cfg.DatabasePath = *flags.DatabasePath
	}
	if flags.LogLevel != nil {
		cfg.LogLevel = *flags.LogLevel
	}
	if flags.LogFormat != nil {
		cfg.LogFormat = *flags.LogFormat
	}
	if flags.LogFile != nil {
		cfg.LogFile = *flags.LogFile
	}
	if flags.MaxRetries != nil {
		cfg.MaxRetries = *flags.MaxRetries
	}
	if flags.InitialRetryDelayMs != nil {
		cfg.InitialRetryDelayMs = *flags.InitialRetryDelayMs
	}
	if flags.DownloadTimeoutSec != nil {
		cfg.DownloadTimeoutSec = *flags.DownloadTimeoutSec
	}
	if flags.Sync != nil {
		if flags.Sync.Catalog != nil {
			cfg.Sync.Catalog = *flags.Sync.Catalog
		}
		if flags.Sync.Since != nil {
			cfg.Sync.Since = *flags.Sync.Since
		}
		if flags.Sync.Recent != nil {
			cfg.Sync.Recent = *flags.Sync.Recent
		}
		if flags.Sync.Concurrency != nil {
			cfg.Sync.Concurrency = *flags.Sync.Concurrency
		}
	}

	// Database lives next to the content unless pointed elsewhere.
	if cfg.DatabasePath == "" || cfg.DatabasePath == DefaultDatabasePath {
		cfg.DatabasePath = filepath.Join(cfg.SavePath, DefaultDatabasePath)
	}

	if err := validate(cfg); err != nil {
		return models.Config{}, err
	}

	log.Debugf("Configuration initialized: save path %s, database %s", cfg.SavePath, cfg.DatabasePath)
	return cfg, nil
}

func validate(cfg models.Config) error {
	if cfg.SavePath == "" {
		return fmt.Errorf("SavePath cannot be empty (set via --save-path flag or SavePath in config)")
	}
	if cfg.Sync.Concurrency < 1 {
		return fmt.Errorf("Sync.Concurrency must be at least 1, got %d", cfg.Sync.Concurrency)
	}
	if cfg.MaxRetries < 1 {
		return fmt.Errorf("MaxRetries must be at least 1, got %d", cfg.MaxRetries)
	}
	if cfg.Sync.Since != "" {
		if _, err := time.Parse(time.RFC3339, cfg.Sync.Since); err != nil {
			return fmt.Errorf("Sync.Since must be an RFC 3339 timestamp: %w", err)
		}
	}
	if cfg.Sync.Recent < 0 {
		return fmt.Errorf("Sync.Recent cannot be negative, got %d", cfg.Sync.Recent)
	}
	return nil
}

// SinceTime parses the configured Since bound. Validation has already
// guaranteed the format, so a zero time means no bound.
func SinceTime(cfg models.Config) time.Time {
	if cfg.Sync.Since == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, cfg.Sync.Since)
	return t
}
