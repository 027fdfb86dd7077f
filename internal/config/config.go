// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads mistral settings from the config file, MISTRAL_*
// environment variables and command line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Thermoquad/mistral/internal/statefile"
	"github.com/Thermoquad/mistral/pkg/aircode"
)

const (
	appName    = "mistral"
	configName = "config"
	configType = "yaml"

	// EnvPrefix prefixes environment overrides, e.g. MISTRAL_CONNECTION_PORT
	EnvPrefix = "MISTRAL"
)

// ErrUnknownPreset is returned by Preset for names not in the config
var ErrUnknownPreset = errors.New("unknown preset")

// Config is the full configuration
type Config struct {
	Connection ConnectionConfig              `mapstructure:"connection"`
	Variant    string                        `mapstructure:"variant"`
	Log        LogConfig                     `mapstructure:"log"`
	MQTT       MQTTConfig                    `mapstructure:"mqtt"`
	API        APIConfig                     `mapstructure:"api"`
	Presets    map[string]statefile.Document `mapstructure:"presets"`
}

// ConnectionConfig selects the IR bridge link
type ConnectionConfig struct {
	Port        string `mapstructure:"port"`
	Baud        int    `mapstructure:"baud"`
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	NoSSLVerify bool   `mapstructure:"no_ssl_verify"`
	Address     uint64 `mapstructure:"address"`
}

// LogConfig controls diagnostics
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// MQTTConfig configures the Home Assistant bridge
type MQTTConfig struct {
	Broker          string `mapstructure:"broker"`
	ClientID        string `mapstructure:"client_id"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Prefix          string `mapstructure:"prefix"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
	DeviceID        string `mapstructure:"device_id"`
	DeviceName      string `mapstructure:"device_name"`
}

// APIConfig configures the HTTP API
type APIConfig struct {
	Listen string `mapstructure:"listen"`
}

// flagKeys maps persistent command line flags to config keys
var flagKeys = map[string]string{
	"port":          "connection.port",
	"baud":          "connection.baud",
	"url":           "connection.url",
	"username":      "connection.username",
	"no-ssl-verify": "connection.no_ssl_verify",
	"address":       "connection.address",
	"variant":       "variant",
	"log-level":     "log.level",
	"log-file":      "log.file",
	"broker":        "mqtt.broker",
	"listen":        "api.listen",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("connection.port", "")
	v.SetDefault("connection.baud", 115200)
	v.SetDefault("connection.url", "")
	v.SetDefault("connection.username", "admin")
	v.SetDefault("connection.password", "")
	v.SetDefault("connection.no_ssl_verify", false)
	v.SetDefault("connection.address", 0)
	v.SetDefault("variant", aircode.Structured.Name())
	v.SetDefault("log.level", "")
	v.SetDefault("log.file", "")
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.prefix", "mistral")
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")
	v.SetDefault("mqtt.device_id", "mistral_ac")
	v.SetDefault("mqtt.device_name", "Air Conditioner")
	v.SetDefault("api.listen", ":8470")
}

// Default returns the configuration with no file, environment or flags
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// GetConfigDir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/mistral or $HOME/.config/mistral
//   - macOS: $HOME/.config/mistral
//   - Windows: %LOCALAPPDATA%\mistral
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			return filepath.Join(userProfile, "AppData", "Local", appName), nil
		}
		return filepath.Join(localAppData, appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			return filepath.Join(xdgConfigHome, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// Load reads the configuration. An empty path searches the config
// directory and tolerates a missing file; an explicit path must exist.
// Changed flags in flags override file and environment values.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if _, err := aircode.LookupVariant(cfg.Variant); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FrameVariant returns the configured frame variant
func (c *Config) FrameVariant() aircode.Variant {
	v, err := aircode.LookupVariant(c.Variant)
	if err != nil {
		return aircode.Structured
	}
	return v
}

// PresetNames returns the configured preset names in order
func (c *Config) PresetNames() []string {
	names := make([]string, 0, len(c.Presets))
	for name := range c.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns the named preset state. Names are case-insensitive.
func (c *Config) Preset(name string) (aircode.Controller, error) {
	doc, ok := c.Presets[strings.ToLower(name)]
	if !ok {
		return aircode.Controller{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	ctrl, err := doc.Controller()
	if err != nil {
		return aircode.Controller{}, fmt.Errorf("preset %q: %w", name, err)
	}
	return ctrl, nil
}
