// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	// IdentityURL is the root of the external identity provider's auth API.
	IdentityURL string
	// IdentityServiceKey is the service credential for the identity provider.
	IdentityServiceKey string

	// InferenceURL is the hosted function that produces assistant replies.
	InferenceURL string
	// InferenceToken is the authorization credential for the inference
	// endpoint.
	InferenceToken string

	PersonaPath string
	Persona     Persona
}

// Persona configures the assistant's identity and the request knobs sent to
// the inference endpoint.
type Persona struct {
	Name         string  `yaml:"name"`
	SystemPrompt string  `yaml:"system_prompt"`
	Model        string  `yaml:"model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
}

// DefaultPersona returns the built-in assistant persona, used when no
// persona file is configured.
func DefaultPersona() Persona {
	return Persona{
		Name:         "ALICE",
		SystemPrompt: "You are ALICE, a 19-year-old female AI assistant. You are friendly, playful, and love to help people.",
		Model:        "gpt-4",
		MaxTokens:    200,
		Temperature:  0.7,
	}
}

// Load reads configuration from environment variables and, when configured,
// the persona file.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		DBPath:             getEnv("DB_PATH", "./data/chat.db"),
		IdentityURL:        getEnv("IDENTITY_URL", ""),
		IdentityServiceKey: getEnv("IDENTITY_SERVICE_KEY", ""),
		InferenceURL:       getEnv("INFERENCE_URL", ""),
		InferenceToken:     getEnv("INFERENCE_TOKEN", ""),
		PersonaPath:        getEnv("PERSONA_PATH", ""),
	}

	persona, err := loadPersona(cfg.PersonaPath)
	if err != nil {
		return nil, err
	}
	cfg.Persona = persona

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadPersona(path string) (Persona, error) {
	persona := DefaultPersona()
	if path == "" {
		return persona, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("read persona file: %w", err)
	}
	if err := yaml.Unmarshal(data, &persona); err != nil {
		return Persona{}, fmt.Errorf("parse persona file: %w", err)
	}
	if persona.SystemPrompt == "" {
		return Persona{}, fmt.Errorf("persona file %s: system_prompt cannot be empty", path)
	}
	return persona, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.IdentityURL == "" {
		return fmt.Errorf("IDENTITY_URL cannot be empty")
	}
	if c.InferenceURL == "" {
		return fmt.Errorf("INFERENCE_URL cannot be empty")
	}
	if c.Persona.SystemPrompt == "" {
		return fmt.Errorf("persona system prompt cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
