// Package config loads process configuration from a file with environment
// variable expansion, following a provider+settings layout per subsystem.
package config

import (
	"fmt"
	"os"

	"github.com/hanavoice/hana/pkg/configutil"
	"github.com/spf13/viper"
)

// DefaultBasePrompt is the agent persona used when the config provides
// none: a morning-call assistant that greets, shares the date, and asks
// about the day's plans.
const DefaultBasePrompt = `당신은 매일 아침 전화를 걸어주는 AI 모닝콜 비서 '하나'예요.

규칙:
- 전화가 연결되면 먼저 밝고 따뜻하게 아침 인사를 해주세요
- 오늘 날짜와 요일을 알려주세요
- 오늘 하루 계획이나 할 일이 있는지 물어봐주세요
- 응답은 2-3문장으로 짧고 자연스럽게
- 격려와 응원의 말로 하루를 시작할 수 있게 해주세요
- 반말로 친근하게 대화해주세요
`

// ProviderConfig names a provider and carries its free-form settings map,
// decoded into a typed struct at the wiring site.
type ProviderConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type StorageConfig struct {
	CallLogsDir string `mapstructure:"call_logs_dir"`
}

type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	LogFormat   string         `mapstructure:"log_format"`
	BasePrompt  string         `mapstructure:"base_prompt"`
	MemoryDir   string         `mapstructure:"memory_dir"`
	Transport   ProviderConfig `mapstructure:"transport"`
	Realtime    ProviderConfig `mapstructure:"realtime"`
	Extraction  ProviderConfig `mapstructure:"extraction"`
	Storage     StorageConfig  `mapstructure:"storage"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("base_prompt", DefaultBasePrompt)
	v.SetDefault("transport.provider", "twilio")
	v.SetDefault("realtime.provider", "openai")
	v.SetDefault("extraction.provider", "openai")
	v.SetDefault("storage.call_logs_dir", "call_logs")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := configutil.RequireString(c.Transport.Provider, "transport.provider"); err != nil {
		return err
	}
	if err := configutil.RequireString(c.Realtime.Provider, "realtime.provider"); err != nil {
		return err
	}
	if err := configutil.RequireString(c.Storage.CallLogsDir, "storage.call_logs_dir"); err != nil {
		return err
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	cfg.Environment = os.ExpandEnv(cfg.Environment)
	cfg.BasePrompt = os.ExpandEnv(cfg.BasePrompt)
	cfg.MemoryDir = os.ExpandEnv(cfg.MemoryDir)
	cfg.Storage.CallLogsDir = os.ExpandEnv(cfg.Storage.CallLogsDir)
	cfg.Transport.Settings = expandSettings(cfg.Transport.Settings)
	cfg.Realtime.Settings = expandSettings(cfg.Realtime.Settings)
	cfg.Extraction.Settings = expandSettings(cfg.Extraction.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, val := range settings {
		if s, ok := val.(string); ok {
			settings[k] = os.ExpandEnv(s)
		}
	}
	return settings
}
