package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// ConfigTomlFile is the name of the persisted config inside the codex home.
const ConfigTomlFile = "config.toml"

// Loader reads config.toml from a codex home. It never writes.
type Loader struct {
	codexHome string
}

// NewLoader creates a new config loader
func NewLoader(codexHome string) *Loader {
	return &Loader{
		codexHome: codexHome,
	}
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	return filepath.Join(l.codexHome, ConfigTomlFile)
}

// Load reads config.toml, then layers `key=value` CLI overrides on top. A
// missing file yields an empty ConfigToml.
func (l *Loader) Load(cliOverrides ...string) (ConfigToml, error) {
	configPath := l.GetConfigPath()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return ConfigToml{}, &ConfigError{Field: configPath, Err: fmt.Errorf("failed to read config file: %w", err)}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return ConfigToml{}, fmt.Errorf("failed to stat config file: %w", err)
	}

	for _, raw := range cliOverrides {
		key, value, err := parseOverride(raw)
		if err != nil {
			return ConfigToml{}, &ConfigError{Field: "-c", Value: raw, Err: err}
		}
		v.Set(key, value)
	}

	var cfg ConfigToml
	if err := v.Unmarshal(&cfg); err != nil {
		return ConfigToml{}, &ConfigError{Field: configPath, Err: fmt.Errorf("failed to unmarshal config: %w", err)}
	}
	return cfg, nil
}

// parseOverride splits `key=value`. Quoted values are unquoted and booleans
// are decoded; everything else stays a string.
func parseOverride(raw string) (string, interface{}, error) {
	key, value, ok := strings.Cut(raw, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("expected key=value")
	}
	value = strings.TrimSpace(value)
	if unquoted, err := strconv.Unquote(value); err == nil {
		return key, unquoted, nil
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return key, b, nil
	}
	return key, value, nil
}

// LoadConfigToml is a convenience function that creates a loader and loads
// the config
func LoadConfigToml(codexHome string, cliOverrides ...string) (ConfigToml, error) {
	return NewLoader(codexHome).Load(cliOverrides...)
}

// LoadWithOverrides locates the codex home, reads config.toml and resolves
// it against overrides and the environment.
func LoadWithOverrides(overrides ConfigOverrides, env EnvLookup, cliOverrides ...string) (*Config, error) {
	codexHome, _ := FindCodexHome(overrides.CodexHome, env)
	base, err := LoadConfigToml(codexHome, cliOverrides...)
	if err != nil {
		return nil, err
	}
	return LoadFromBaseConfigWithOverrides(base, overrides, codexHome, env)
}

// LoadFromBaseConfigWithOverrides resolves an already loaded base config
// with the given codex home.
func LoadFromBaseConfigWithOverrides(base ConfigToml, overrides ConfigOverrides, codexHome string, env EnvLookup) (*Config, error) {
	if overrides.CodexHome == nil && codexHome != "" {
		overrides.CodexHome = &codexHome
	}
	return Resolve(base, overrides, env)
}
