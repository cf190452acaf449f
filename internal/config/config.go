package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultMongoURI       = "mongodb://127.0.0.1:27017"
	DefaultMongoDatabase  = "chatsink"
	DefaultGatewayURL     = "http://127.0.0.1:3000"
	DefaultBlobDir        = "data/blobs"
	DefaultReplyModel     = "gpt-4o-mini"
	DefaultReplyTimeout   = 30
	DefaultContextWindow  = 10
	DefaultFetchWindow    = 30
	DefaultSyncParallel   = 4
	DefaultFetchTimeout   = 60
	DefaultReplyMaxTokens = 150
)

type Config struct {
	Log     LogConfig     `toml:"log"`
	Server  ServerConfig  `toml:"server"`
	Mongo   MongoConfig   `toml:"mongo"`
	Gateway GatewayConfig `toml:"gateway"`
	Blobs   BlobConfig    `toml:"blobs"`
	Reply   ReplyConfig   `toml:"reply"`
	Sync    SyncConfig    `toml:"sync"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type MongoConfig struct {
	URI      string `toml:"uri" validate:"required"`
	Database string `toml:"database" validate:"required"`
}

// GatewayConfig points at the WhatsApp web-bridge sidecar. The sidecar owns
// the session and QR lifecycle; this process only consumes its event stream
// and REST endpoints.
type GatewayConfig struct {
	BaseURL string `toml:"base_url" validate:"required,url"`
	Token   string `toml:"token"`
	// FetchTimeoutSeconds bounds attachment downloads and history fetches.
	FetchTimeoutSeconds int `toml:"fetch_timeout_seconds"`
}

type BlobConfig struct {
	Dir string `toml:"dir" validate:"required"`
}

// ReplyConfig configures the auto-reply orchestrator and its completion
// backend (any OpenAI-compatible endpoint).
type ReplyConfig struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxTokens      int    `toml:"max_tokens"`
	ContextWindow  int    `toml:"context_window" validate:"gt=0"`
	// TriggerPhrases gate replies in group conversations. Direct
	// conversations always reply when enabled.
	TriggerPhrases []string `toml:"trigger_phrases"`
}

type SyncConfig struct {
	// FetchWindow is how many recent messages to pull per conversation
	// when reconciling against the store.
	FetchWindow int `toml:"fetch_window" validate:"gt=0"`
	// OnStart runs a full reconciliation once the gateway is connected.
	OnStart bool `toml:"on_start"`
	// Schedule is an optional cron expression for periodic reconciliation.
	Schedule string `toml:"schedule"`
	// Parallel bounds how many conversations reconcile concurrently.
	Parallel int `toml:"parallel" validate:"gt=0"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Mongo: MongoConfig{
			URI:      DefaultMongoURI,
			Database: DefaultMongoDatabase,
		},
		Gateway: GatewayConfig{
			BaseURL:             DefaultGatewayURL,
			FetchTimeoutSeconds: DefaultFetchTimeout,
		},
		Blobs: BlobConfig{
			Dir: DefaultBlobDir,
		},
		Reply: ReplyConfig{
			Enabled:        true,
			Model:          DefaultReplyModel,
			TimeoutSeconds: DefaultReplyTimeout,
			MaxTokens:      DefaultReplyMaxTokens,
			ContextWindow:  DefaultContextWindow,
		},
		Sync: SyncConfig{
			FetchWindow: DefaultFetchWindow,
			OnStart:     true,
			Parallel:    DefaultSyncParallel,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultConfigPath {
			// Running on pure defaults is fine for local setups.
			return cfg, cfg.validate()
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
