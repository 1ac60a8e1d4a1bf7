package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "CHANSERV"
	envConfigDefaultPath = "CHANSERV_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()
	configPath := resolveConfigPath(explicitPath)
	v := newViper(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, configPath, fmt.Errorf("validate config: %w", err)
	}

	return cfg, configPath, nil
}

// Watch re-reads the config file whenever it changes and hands every valid
// result to onChange. Invalid edits are logged and ignored.
func Watch(logger *zerolog.Logger, path string, onChange func(Config)) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("config watch disabled")
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg := Default()
		if err := v.Unmarshal(&cfg); err != nil {
			logger.Warn().Err(err).Str("path", e.Name).Msg("ignoring unreadable config change")
			return
		}
		if err := cfg.Validate(); err != nil {
			logger.Warn().Err(err).Str("path", e.Name).Msg("ignoring invalid config change")
			return
		}
		logger.Info().Str("path", e.Name).Msg("config changed")
		onChange(cfg)
	})
	v.WatchConfig()
}

func newViper(configPath string) *viper.Viper {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("jwt_secret", cfg.JWTSecret)
	v.SetDefault("jwt_issuer", cfg.JWTIssuer)
	v.SetDefault("jwt_audience", cfg.JWTAudience)
	v.SetDefault("token_ttl", cfg.TokenTTL)
	v.SetDefault("messages_file", cfg.MessagesFile)
	v.SetDefault("storage.channels", cfg.Storage.Channels)
	v.SetDefault("storage.channels_dir", cfg.Storage.ChannelsDir)
	v.SetDefault("channels.zero_member_remove", cfg.Channels.ZeroMemberRemove)
	v.SetDefault("channels.create_on_join", cfg.Channels.CreateOnJoin)
	v.SetDefault("channels.max_name_length", cfg.Channels.MaxNameLength)
	v.SetDefault("channels.global_channel", cfg.Channels.GlobalChannel)
	v.SetDefault("channels.show_list_on_join", cfg.Channels.ShowListOnJoin)
	v.SetDefault("moderation.admins", cfg.Moderation.Admins)
	v.SetDefault("moderation.sweep_interval", cfg.Moderation.SweepInterval)
	v.SetDefault("chat.ng_words", cfg.Chat.NGWords)
	v.SetDefault("chat.ng_word_action", cfg.Chat.NGWordAction)
	v.SetDefault("chat.rate_limit_per_minute", cfg.Chat.RateLimitPerMinute)
	v.SetDefault("chat.no_join_as_global", cfg.Chat.NoJoinAsGlobal)
	v.SetDefault("chat.global_marker", cfg.Chat.GlobalMarker)
	v.SetDefault("chat.log_chat", cfg.Chat.LogChat)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(configPath)
	return v
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
