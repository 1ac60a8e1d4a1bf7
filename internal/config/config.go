package config

import (
	"fmt"
	"time"
)

// Channel storage backends.
const (
	StorageSQLite = "sqlite"
	StorageYAML   = "yaml"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string        `mapstructure:"database_path" yaml:"database_path"`
	JWTSecret    string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer    string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience  string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL     time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`

	// MessagesFile overrides entries of the built-in message catalog.
	MessagesFile string `mapstructure:"messages_file" yaml:"messages_file"`

	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Channels   ChannelsConfig   `mapstructure:"channels" yaml:"channels"`
	Moderation ModerationConfig `mapstructure:"moderation" yaml:"moderation"`
	Chat       ChatConfig       `mapstructure:"chat" yaml:"chat"`
}

// StorageConfig selects where channel state lives. Users always live in the database.
type StorageConfig struct {
	Channels    string `mapstructure:"channels" yaml:"channels"`
	ChannelsDir string `mapstructure:"channels_dir" yaml:"channels_dir"`
}

// ChannelsConfig controls channel lifecycle.
type ChannelsConfig struct {
	ZeroMemberRemove bool `mapstructure:"zero_member_remove" yaml:"zero_member_remove"`
	CreateOnJoin     bool `mapstructure:"create_on_join" yaml:"create_on_join"`
	MaxNameLength    int  `mapstructure:"max_name_length" yaml:"max_name_length"`
	// GlobalChannel names the channel that receives global chat. Empty means
	// global chat goes to everyone online.
	GlobalChannel  string `mapstructure:"global_channel" yaml:"global_channel"`
	ShowListOnJoin bool   `mapstructure:"show_list_on_join" yaml:"show_list_on_join"`
}

// ModerationConfig lists global moderators and the mute sweep period.
type ModerationConfig struct {
	Admins        []string      `mapstructure:"admins" yaml:"admins"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

// ChatConfig controls chat filtering and flood protection.
type ChatConfig struct {
	NGWords            []string `mapstructure:"ng_words" yaml:"ng_words"`
	NGWordAction       string   `mapstructure:"ng_word_action" yaml:"ng_word_action"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	// NoJoinAsGlobal sends chat from members without a channel to global chat.
	NoJoinAsGlobal bool `mapstructure:"no_join_as_global" yaml:"no_join_as_global"`
	// GlobalMarker prefixes a line that goes to global chat. Empty disables it.
	GlobalMarker string `mapstructure:"global_marker" yaml:"global_marker"`
	LogChat      bool   `mapstructure:"log_chat" yaml:"log_chat"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "chanserv.db",
		JWTSecret:         "change-me",
		JWTIssuer:         "chanserv",
		JWTAudience:       "chanserv",
		TokenTTL:          24 * time.Hour,
		Storage: StorageConfig{
			Channels:    StorageSQLite,
			ChannelsDir: "channels",
		},
		Channels: ChannelsConfig{
			ZeroMemberRemove: false,
			CreateOnJoin:     true,
			MaxNameLength:    20,
			GlobalChannel:    "",
			ShowListOnJoin:   false,
		},
		Moderation: ModerationConfig{
			Admins:        []string{},
			SweepInterval: time.Minute,
		},
		Chat: ChatConfig{
			NGWords:            []string{},
			NGWordAction:       "mask",
			RateLimitPerMinute: 120,
			NoJoinAsGlobal:     true,
			GlobalMarker:       "!",
			LogChat:            true,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Only the settings exposed as command line flags are considered.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Channels {
	case StorageSQLite:
	case StorageYAML:
		if c.Storage.ChannelsDir == "" {
			return fmt.Errorf("storage.channels_dir is required for yaml storage")
		}
	default:
		return fmt.Errorf("unknown storage.channels %q", c.Storage.Channels)
	}
	if c.Channels.MaxNameLength <= 0 {
		return fmt.Errorf("channels.max_name_length must be positive, got %d", c.Channels.MaxNameLength)
	}
	switch c.Chat.NGWordAction {
	case "mask", "kick", "ban":
	default:
		return fmt.Errorf("unknown chat.ng_word_action %q", c.Chat.NGWordAction)
	}
	if c.Moderation.SweepInterval < 0 {
		return fmt.Errorf("moderation.sweep_interval must not be negative")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	return nil
}
