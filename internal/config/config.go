// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the mailcal service.
type Config struct {
	// Model API
	OpenAIBaseURL  string
	OpenAIAPIKey   string
	TextModel      string
	VisionModel    string
	ExtractTimeout time.Duration

	// Outbound mail
	PostmarkBaseURL string
	PostmarkToken   string
	SenderAddress   string

	// Redis
	RedisURL string

	// Server
	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	OpenAI struct {
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		TextModel   string `yaml:"text_model"`
		VisionModel string `yaml:"vision_model"`
	} `yaml:"openai"`
	Postmark struct {
		BaseURL     string `yaml:"base_url"`
		ServerToken string `yaml:"server_token"`
		Sender      string `yaml:"sender"`
	} `yaml:"postmark"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings. A missing config file is not
// an error — everything can come from the environment.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	var raw rawConfig
	if data, err := os.ReadFile(configPath); err == nil {
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	cfg := &Config{
		OpenAIBaseURL:   firstNonEmpty(raw.OpenAI.BaseURL, envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")),
		OpenAIAPIKey:    firstNonEmpty(raw.OpenAI.APIKey, os.Getenv("OPENAI_API_KEY")),
		TextModel:       firstNonEmpty(raw.OpenAI.TextModel, os.Getenv("OPENAI_TEXT_MODEL")),
		VisionModel:     firstNonEmpty(raw.OpenAI.VisionModel, os.Getenv("OPENAI_VISION_MODEL")),
		ExtractTimeout:  envOrDefaultDuration("EXTRACT_TIMEOUT", 90*time.Second),
		PostmarkBaseURL: firstNonEmpty(raw.Postmark.BaseURL, envOrDefault("POSTMARK_BASE_URL", "https://api.postmarkapp.com")),
		PostmarkToken:   firstNonEmpty(raw.Postmark.ServerToken, os.Getenv("POSTMARK_SERVER_TOKEN")),
		SenderAddress:   firstNonEmpty(raw.Postmark.Sender, envOrDefault("SENDER_EMAIL_ADDRESS", "events@voxlify.com")),
		RedisURL:        firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		Port:            envOrDefaultInt("PORT", 8080),
	}

	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("no OpenAI API key configured — set OPENAI_API_KEY or openai.api_key in config.yaml")
	}
	if cfg.PostmarkToken == "" {
		return nil, fmt.Errorf("no Postmark server token configured — set POSTMARK_SERVER_TOKEN or postmark.server_token in config.yaml")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
