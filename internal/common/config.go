package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config is the application configuration. Every behavioural threshold lives
// here rather than in code so that page caps, probe caps and retry ceilings
// can be tuned without a rebuild.
type Config struct {
	Platform PlatformConfig `toml:"platform"`
	Browser  BrowserConfig  `toml:"browser"`
	Storage  StorageConfig  `toml:"storage"`
	Run      RunConfig      `toml:"run"`
	Resolver ResolverConfig `toml:"resolver"`
	Retry    RetryConfig    `toml:"retry"`
	Message  MessageConfig  `toml:"message"`
	Publish  PublishConfig  `toml:"publish"`
	Logging  LoggingConfig  `toml:"logging"`
}

// PlatformConfig identifies the remote platform and the acting identity.
type PlatformConfig struct {
	BaseURL    string `toml:"base_url" validate:"required,url"`
	LoginNick  string `toml:"login_nick" validate:"required"`
	LoginPass  string `toml:"login_pass"`
	CookieFile string `toml:"cookie_file"`
}

// BrowserConfig controls the automation surface.
type BrowserConfig struct {
	Headless    bool          `toml:"headless"`
	UserAgent   string        `toml:"user_agent"`
	PageTimeout time.Duration `toml:"page_timeout" validate:"gt=0"`
	WaitTimeout time.Duration `toml:"wait_timeout" validate:"gt=0"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration.
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// RunConfig bounds a single run.
type RunConfig struct {
	// MaxItems caps the number of tasks taken per run. 0 = unlimited.
	MaxItems int `toml:"max_items" validate:"gte=0"`
	// Schedule is an optional cron expression; when set the selected mode is
	// re-run on that schedule instead of once.
	Schedule string `toml:"schedule"`
}

// ResolverConfig bounds the open-content cascade. The numeric-ID bounds are
// empirical: candidate digit runs shorter than MinIDDigits tend to be user
// identifiers, values at or above MaxIDValue have never been observed as
// content IDs.
type ResolverConfig struct {
	MaxPages    int   `toml:"max_pages" validate:"gt=0"`
	ProbeLimit  int   `toml:"probe_limit" validate:"gt=0"`
	MinIDDigits int   `toml:"min_id_digits" validate:"gt=0"`
	MaxIDDigits int   `toml:"max_id_digits" validate:"gtefield=MinIDDigits"`
	MinIDValue  int64 `toml:"min_id_value" validate:"gt=0"`
	MaxIDValue  int64 `toml:"max_id_value" validate:"gtfield=MinIDValue"`
}

// RetryConfig governs in-run denial retries, cross-run re-queueing and store
// write retries.
type RetryConfig struct {
	// DeniedRetries is the number of additional in-run attempts after a
	// platform denial.
	DeniedRetries int `toml:"denied_retries" validate:"gte=0"`
	// MaxAttempts is the cross-run attempt ceiling for Failed rows.
	MaxAttempts int `toml:"max_attempts" validate:"gt=0"`
	// StoreRetries bounds the exponential backoff applied to queue writes.
	StoreRetries int `toml:"store_retries" validate:"gt=0"`
	// DeniedBackoff is the delay before each denial retry.
	DeniedBackoff time.Duration `toml:"denied_backoff" validate:"gte=0"`
	// Cooldown is the mandatory delay between tasks.
	Cooldown time.Duration `toml:"cooldown" validate:"gte=0"`
}

// MessageConfig bounds outgoing messages.
type MessageConfig struct {
	MaxLength int `toml:"max_length" validate:"gt=0"`
}

// PublishConfig bounds the publish executor.
type PublishConfig struct {
	MaxCaptionLength int           `toml:"max_caption_length" validate:"gt=0"`
	MaxTagsLength    int           `toml:"max_tags_length" validate:"gt=0"`
	RepeatCharLimit  int           `toml:"repeat_char_limit" validate:"gt=1"`
	DownloadTimeout  time.Duration `toml:"download_timeout" validate:"gt=0"`
	DownloadRetries  int           `toml:"download_retries" validate:"gt=0"`
	TempDir          string        `toml:"temp_dir"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values. The resolver
// bounds mirror the observed platform behaviour; only user-facing settings
// should need a config file.
func NewDefaultConfig() *Config {
	return &Config{
		Platform: PlatformConfig{
			BaseURL:    "https://damadam.pk",
			CookieFile: "mitto_cookies.json",
		},
		Browser: BrowserConfig{
			Headless:    true,
			UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			PageTimeout: 45 * time.Second,
			WaitTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Run: RunConfig{
			MaxItems: 0, // unlimited
		},
		Resolver: ResolverConfig{
			MaxPages:    4,
			ProbeLimit:  20,
			MinIDDigits: 8,
			MaxIDDigits: 10,
			MinIDValue:  1_000_000,
			MaxIDValue:  1_000_000_000,
		},
		Retry: RetryConfig{
			DeniedRetries: 1,
			MaxAttempts:   3,
			StoreRetries:  3,
			DeniedBackoff: 5 * time.Second,
			Cooldown:      2 * time.Second,
		},
		Message: MessageConfig{
			MaxLength: 350,
		},
		Publish: PublishConfig{
			MaxCaptionLength: 120,
			MaxTagsLength:    60,
			RepeatCharLimit:  4,
			DownloadTimeout:  30 * time.Second,
			DownloadRetries:  3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 ->
// file2 -> ... -> env. Later files override earlier ones; environment
// variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration against its constraint tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvOverrides applies MITTO_* environment variable overrides.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("MITTO_BASE_URL"); v != "" {
		config.Platform.BaseURL = v
	}
	if v := os.Getenv("MITTO_LOGIN_NICK"); v != "" {
		config.Platform.LoginNick = v
	}
	if v := os.Getenv("MITTO_LOGIN_PASS"); v != "" {
		config.Platform.LoginPass = v
	}
	if v := os.Getenv("MITTO_COOKIE_FILE"); v != "" {
		config.Platform.CookieFile = v
	}
	if v := os.Getenv("MITTO_HEADLESS"); v != "" {
		config.Browser.Headless = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("MITTO_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("MITTO_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Run.MaxItems = n
		}
	}
	if v := os.Getenv("MITTO_MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Resolver.MaxPages = n
		}
	}
	if v := os.Getenv("MITTO_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("MITTO_LOG_OUTPUT"); v != "" {
		outputs := []string{}
		for _, o := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}
