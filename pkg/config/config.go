// Package config loads dashboard server configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation
const (
	DefaultBind            = "0.0.0.0:8889"
	DefaultComposeDir      = "/root/meta-ads-master-agent"
	DefaultSettingsFile    = "/root/meta-ads-master-agent/settings.env"
	DefaultModel           = "gpt-4o-mini"
	DefaultCompletionsURL  = "https://api.openai.com/v1"
	DefaultCommandTimeout  = 30 * time.Second
	DefaultStatusPushEvery = 5 * time.Second
)

// Config represents the complete dashboard configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Compose  ComposeConfig  `yaml:"compose"`
	Chat     ChatConfig     `yaml:"chat"`
	Settings SettingsConfig `yaml:"settings"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Bind            string        `yaml:"bind"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	StatusPushEvery time.Duration `yaml:"status_push_every"`
}

// ComposeConfig locates the docker-compose project.
type ComposeConfig struct {
	ProjectDir     string        `yaml:"project_dir"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// ChatConfig configures the completion API and the remote microservices the
// chat tools call.
type ChatConfig struct {
	DefaultModel     string            `yaml:"default_model"`
	CompletionsURL   string            `yaml:"completions_url"`
	ServiceEndpoints map[string]string `yaml:"service_endpoints"`
}

// SettingsConfig locates the user settings file.
type SettingsConfig struct {
	Path string `yaml:"path"`
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Bind:            DefaultBind,
			AllowedOrigins:  []string{"*"},
			StatusPushEvery: DefaultStatusPushEvery,
		},
		Compose: ComposeConfig{
			ProjectDir:     DefaultComposeDir,
			CommandTimeout: DefaultCommandTimeout,
		},
		Chat: ChatConfig{
			DefaultModel:   DefaultModel,
			CompletionsURL: DefaultCompletionsURL,
			ServiceEndpoints: map[string]string{
				"master":               "http://localhost:8000",
				"image-generator":      "http://localhost:8001",
				"performance-analyzer": "http://localhost:8002",
				"campaign-manager":     "http://localhost:8003",
			},
		},
		Settings: SettingsConfig{
			Path: DefaultSettingsFile,
		},
	}
}

// Load builds the config from defaults plus an optional YAML override file.
// A missing file at path is not an error; an unreadable or malformed one is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	mergeConfigs(cfg, &override)
	return cfg, nil
}

// mergeConfigs merges non-zero override fields into base.
func mergeConfigs(base, override *Config) {
	if override == nil {
		return
	}
	if override.Server.Bind != "" {
		base.Server.Bind = override.Server.Bind
	}
	if len(override.Server.AllowedOrigins) > 0 {
		base.Server.AllowedOrigins = append([]string{}, override.Server.AllowedOrigins...)
	}
	if override.Server.StatusPushEvery != 0 {
		base.Server.StatusPushEvery = override.Server.StatusPushEvery
	}
	if override.Compose.ProjectDir != "" {
		base.Compose.ProjectDir = override.Compose.ProjectDir
	}
	if override.Compose.CommandTimeout != 0 {
		base.Compose.CommandTimeout = override.Compose.CommandTimeout
	}
	if override.Chat.DefaultModel != "" {
		base.Chat.DefaultModel = override.Chat.DefaultModel
	}
	if override.Chat.CompletionsURL != "" {
		base.Chat.CompletionsURL = override.Chat.CompletionsURL
	}
	if len(override.Chat.ServiceEndpoints) > 0 {
		for k, v := range override.Chat.ServiceEndpoints {
			base.Chat.ServiceEndpoints[k] = v
		}
	}
	if override.Settings.Path != "" {
		base.Settings.Path = override.Settings.Path
	}
}
