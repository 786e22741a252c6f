package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "RSS_DIGEST_CONFIG"
	dbPathEnv         = "FRESHRSS_DB_PATH"
	dbUserEnv         = "FRESHRSS_USER"
	hoursBackEnv      = "HOURS_BACK"
	aiAPIKeyEnv       = "GEMINI_API_KEY"
	aiStage1ModelEnv  = "GEMINI_STAGE1_MODEL_ID"
	aiStage2ModelEnv  = "GEMINI_STAGE2_MODEL_ID"
	aiBaseURLEnv      = "GEMINI_BASE_URL"
	stage1WorkersEnv  = "STAGE1_MAX_WORKERS"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	telegraphTokenEnv = "TELEGRAPH_ACCESS_TOKEN"
)

// Config holds all settings required across the application. It is loaded
// once at startup and passed by value; nothing re-reads it mid-run.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Digest    DigestConfig    `yaml:"digest"`
	AI        AIConfig        `yaml:"ai"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Telegraph TelegraphConfig `yaml:"telegraph"`
	State     StateConfig     `yaml:"state"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig locates the FreshRSS SQLite database and the account
// whose entries feed the digest.
type DatabaseConfig struct {
	Path string `yaml:"path"`
	User string `yaml:"user"`
}

// DigestConfig controls the generation run itself.
type DigestConfig struct {
	HoursBack       int `yaml:"hoursBack"`
	StageOneWorkers int `yaml:"stageOneWorkers"`
}

// AIConfig defines how to contact the OpenAI-compatible summarization API.
type AIConfig struct {
	BaseURL     string `yaml:"baseUrl"`
	APIKey      string `yaml:"apiKey"`
	Stage1Model string `yaml:"stage1Model"`
	Stage2Model string `yaml:"stage2Model"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// TelegraphConfig holds the optional republishing account.
type TelegraphConfig struct {
	AccessToken string `yaml:"accessToken"`
	AuthorName  string `yaml:"authorName"`
}

// StateConfig locates the two persisted JSON state files.
type StateConfig struct {
	ProcessedIDsFile  string `yaml:"processedIdsFile"`
	DigestHistoryFile string `yaml:"digestHistoryFile"`
}

// LoggingConfig selects log verbosity and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if cfg.AI.Stage1Model == "" {
		cfg.AI.Stage1Model = cfg.AI.Stage2Model
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(dbPathEnv); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(dbUserEnv); v != "" {
		c.Database.User = v
	}

	if v := os.Getenv(hoursBackEnv); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			c.Digest.HoursBack = hours
		} else {
			log.Printf("config: invalid %s=%q, keeping %d", hoursBackEnv, v, c.Digest.HoursBack)
		}
	}
	if v := os.Getenv(stage1WorkersEnv); v != "" {
		if workers, err := strconv.Atoi(v); err == nil && workers > 0 {
			c.Digest.StageOneWorkers = workers
		} else {
			log.Printf("config: invalid %s=%q, keeping %d", stage1WorkersEnv, v, c.Digest.StageOneWorkers)
		}
	}

	if v := os.Getenv(aiAPIKeyEnv); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv(aiBaseURLEnv); v != "" {
		c.AI.BaseURL = v
	}
	if v := os.Getenv(aiStage1ModelEnv); v != "" {
		c.AI.Stage1Model = v
	}
	if v := os.Getenv(aiStage2ModelEnv); v != "" {
		c.AI.Stage2Model = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Telegram.ChatID = v
	}

	if v := os.Getenv(telegraphTokenEnv); v != "" {
		c.Telegraph.AccessToken = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.Path != "" {
		base.Database.Path = override.Database.Path
	}
	if override.Database.User != "" {
		base.Database.User = override.Database.User
	}

	if override.Digest.HoursBack > 0 {
		base.Digest.HoursBack = override.Digest.HoursBack
	}
	if override.Digest.StageOneWorkers > 0 {
		base.Digest.StageOneWorkers = override.Digest.StageOneWorkers
	}

	if override.AI.BaseURL != "" {
		base.AI.BaseURL = override.AI.BaseURL
	}
	if override.AI.APIKey != "" {
		base.AI.APIKey = override.AI.APIKey
	}
	if override.AI.Stage1Model != "" {
		base.AI.Stage1Model = override.AI.Stage1Model
	}
	if override.AI.Stage2Model != "" {
		base.AI.Stage2Model = override.AI.Stage2Model
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.ChatID != "" {
		base.Telegram.ChatID = override.Telegram.ChatID
	}

	if override.Telegraph.AccessToken != "" {
		base.Telegraph.AccessToken = override.Telegraph.AccessToken
	}
	if override.Telegraph.AuthorName != "" {
		base.Telegraph.AuthorName = override.Telegraph.AuthorName
	}

	if override.State.ProcessedIDsFile != "" {
		base.State.ProcessedIDsFile = override.State.ProcessedIDsFile
	}
	if override.State.DigestHistoryFile != "" {
		base.State.DigestHistoryFile = override.State.DigestHistoryFile
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{Path: "freshrss.db", User: "admin"},
		Digest:   DigestConfig{HoursBack: 8, StageOneWorkers: 20},
		AI: AIConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta/openai",
			Stage2Model: "gemini-2.0-flash",
		},
		Telegraph: TelegraphConfig{AuthorName: "RSS Digest Bot"},
		State: StateConfig{
			ProcessedIDsFile:  filepath.Join("logs", "processed_entry_ids.json"),
			DigestHistoryFile: filepath.Join("logs", "digest_history.json"),
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
