package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/caarlos0/env/v11"
)

type DiscordConfig struct {
	Token   string `json:"token" env:"PARROT_DISCORD_TOKEN"`
	GuildID string `json:"guild_id" env:"PARROT_DISCORD_GUILD_ID"`
}

type VoicevoxConfig struct {
	URL                string  `json:"url" env:"PARROT_VOICEVOX_URL"`
	DefaultSpeakerID   int     `json:"default_speaker_id" env:"PARROT_VOICEVOX_DEFAULT_SPEAKER_ID"`
	DefaultSpeedScale  float64 `json:"default_speed_scale" env:"PARROT_VOICEVOX_DEFAULT_SPEED_SCALE"`
	RequestTimeoutSecs int     `json:"request_timeout_secs" env:"PARROT_VOICEVOX_REQUEST_TIMEOUT_SECS"`
}

type StorageConfig struct {
	DatabasePath string `json:"database_path" env:"PARROT_STORAGE_DATABASE_PATH"`
	SnapshotPath string `json:"snapshot_path" env:"PARROT_STORAGE_SNAPSHOT_PATH"`
	ScratchDir   string `json:"scratch_dir" env:"PARROT_STORAGE_SCRATCH_DIR"`
}

type Config struct {
	Discord  DiscordConfig  `json:"discord"`
	Voicevox VoicevoxConfig `json:"voicevox"`
	Storage  StorageConfig  `json:"storage"`
	LogLevel string         `json:"log_level" env:"PARROT_LOG_LEVEL"`
	LogFile  string         `json:"log_file" env:"PARROT_LOG_FILE"`
}

func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			Token:   "",
			GuildID: "",
		},
		Voicevox: VoicevoxConfig{
			URL:                "http://localhost:50021",
			DefaultSpeakerID:   1,
			DefaultSpeedScale:  1.0,
			RequestTimeoutSecs: 10,
		},
		Storage: StorageConfig{
			DatabasePath: "parrot.db",
			SnapshotPath: "user_dict.json",
			ScratchDir:   "temp",
		},
		LogLevel: "info",
	}
}

// LoadConfig reads path as JSON (missing file keeps the defaults), then
// applies PARROT_* environment overrides on top.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the invariants the rest of the process relies on.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token cannot be empty")
	}
	if _, err := strconv.ParseUint(c.Discord.GuildID, 10, 64); err != nil {
		return fmt.Errorf("guild id must be a valid number: %q", c.Discord.GuildID)
	}
	if _, err := url.ParseRequestURI(c.Voicevox.URL); err != nil {
		return fmt.Errorf("invalid voicevox url: %w", err)
	}
	if c.Voicevox.DefaultSpeedScale <= 0 || c.Voicevox.DefaultSpeedScale > 2.0 {
		return fmt.Errorf("speed scale must be between 0.0 and 2.0, got %v", c.Voicevox.DefaultSpeedScale)
	}
	if c.Voicevox.RequestTimeoutSecs <= 0 {
		return fmt.Errorf("request timeout must be positive, got %d", c.Voicevox.RequestTimeoutSecs)
	}
	return nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
