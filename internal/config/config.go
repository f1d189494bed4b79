package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the bot reads from the environment
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required,notEmpty"`
	AdminID      string `env:"BOT_OWNER_ID"`
	Prefix       string `env:"COMMAND_PREFIX" envDefault:"k!"`

	CatalogPath  string `env:"CATALOG_PATH" envDefault:"playlist.json"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"kenny.db"`

	SoundCloudClientID string `env:"SOUNDCLOUD_CLIENT_ID"`

	SearchAPIKey   string            `env:"CSE_API_KEY"`
	SearchEngineID string            `env:"CSE_ENGINE_ID"`
	SearchSafe     string            `env:"CSE_SAFE" envDefault:"active"`
	TitleSuffixes  map[string]string `env:"CSE_TITLE_SUFFIXES" envSeparator:";" envKeyValSeparator:"="`
	SearchInterval time.Duration     `env:"SEARCH_RATE" envDefault:"1s"`

	GistUser  string `env:"GIST_USERNAME"`
	GistToken string `env:"GIST_TOKEN"`

	Volume  float64 `env:"MUSIC_VOLUME" envDefault:"0.5"`
	Shuffle bool    `env:"MUSIC_SHUFFLE" envDefault:"true"`

	PresenceGames    []string      `env:"PRESENCE_GAMES" envSeparator:"|"`
	PresenceInterval time.Duration `env:"PRESENCE_INTERVAL" envDefault:"10m"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Configuration errors
var (
	ErrDiscordTokenNotSet  = errors.New("DISCORD_TOKEN is not set")
	ErrInvalidVolume       = errors.New("volume must be between 0 and 1.5")
	ErrInvalidPrefix       = errors.New("command prefix must not be empty")
	ErrInvalidInterval     = errors.New("presence interval must be at least one minute")
	ErrInvalidSearchSafety = errors.New("CSE_SAFE must be active or off")
	ErrInvalidLogFormat    = errors.New("LOG_FORMAT must be text or json")
)

// OfflineConfig is the subset of Config needed by tools that do not connect to Discord
type OfflineConfig struct {
	CatalogPath  string `env:"CATALOG_PATH" envDefault:"playlist.json"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"kenny.db"`
}

// LoadOfflineConfig is LoadConfig without the Discord credentials
func LoadOfflineConfig(envFile string) (*OfflineConfig, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := env.ParseAs[OfflineConfig]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// LoadConfig reads envFile (if it exists) into the process environment and parses it
func LoadConfig(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	return Parse(env.Options{})
}

func loadEnvFile(envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return nil
}

// Parse builds a Config from the environment described by opts
func Parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		if strings.Contains(err.Error(), "DISCORD_TOKEN") {
			return nil, fmt.Errorf("%w: %v", ErrDiscordTokenNotSet, err)
		}
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.Prefix = strings.TrimSpace(cfg.Prefix)
	cfg.PresenceGames = cleanGames(cfg.PresenceGames)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.DiscordToken == "" {
		errs = append(errs, ErrDiscordTokenNotSet)
	}
	if c.Volume < 0 || c.Volume > 1.5 {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidVolume, c.Volume))
	}
	if c.Prefix == "" {
		errs = append(errs, ErrInvalidPrefix)
	}
	if c.PresenceInterval < time.Minute {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidInterval, c.PresenceInterval))
	}
	if c.SearchSafe != "active" && c.SearchSafe != "off" {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidSearchSafety, c.SearchSafe))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.LogFormat))
	}

	return errors.Join(errs...)
}

// SearchEnabled reports whether Google CSE credentials are configured
func (c *Config) SearchEnabled() bool {
	return c.SearchAPIKey != "" && c.SearchEngineID != ""
}

// MirrorEnabled reports whether gist credentials are configured
func (c *Config) MirrorEnabled() bool {
	return c.GistUser != "" && c.GistToken != ""
}

func cleanGames(games []string) []string {
	out := games[:0]
	for _, g := range games {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}
