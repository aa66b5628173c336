package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Reddit configuration
	Subreddit    string `long:"subreddit" env:"SUBREDDIT" description:"Subreddit to watch for pings (required)" required:"true"`
	ClientID     string `long:"client-id" env:"REDDIT_CLIENT_ID" description:"Reddit script app client ID (required)" required:"true"`
	ClientSecret string `long:"client-secret" env:"REDDIT_CLIENT_SECRET" description:"Reddit script app client secret (required)" required:"true"`
	Username     string `long:"username" env:"REDDIT_USERNAME" description:"Reddit bot account username (required)" required:"true"`
	Password     string `long:"password" env:"REDDIT_PASSWORD" description:"Reddit bot account password (required)" required:"true"`

	// Application configuration
	PollInterval    int    `long:"poll-interval" env:"POLL_INTERVAL" default:"5" description:"Comment stream poll interval in seconds"`
	BackoffInterval int    `long:"backoff-interval" env:"BACKOFF_INTERVAL" default:"60" description:"Sleep interval in seconds after a transient upstream error"`
	CacheFile       string `long:"cache-file" env:"CACHE_FILE" default:"./parsed.cache" description:"Path to the persisted de-duplication cache"`
	DBPath          string `long:"db-path" env:"DB_PATH" default:"./userpinger.db" description:"Path to the sqlite ping history database"`
	Port            string `long:"port" env:"PORT" default:"8080" description:"HTTP status server port"`
	APIAccessKey    string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"user-pinger/1.0" description:"User agent string for Reddit API requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Subreddit:       raw.Subreddit,
		ClientID:        raw.ClientID,
		ClientSecret:    raw.ClientSecret,
		Username:        raw.Username,
		Password:        raw.Password,
		PollInterval:    raw.PollInterval,
		BackoffInterval: raw.BackoffInterval,
		CacheFile:       raw.CacheFile,
		DBPath:          raw.DBPath,
		Port:            raw.Port,
		APIAccessKey:    raw.APIAccessKey,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return err
		}
		time.Local = loc
	}
	return nil
}
