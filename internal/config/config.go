// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/sigil-dev/walletlink/internal/store"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix for config overrides, e.g.
// WALLETLINK_NETWORKING_LISTEN.
const EnvPrefix = "WALLETLINK"

// Config is the top-level walletlink configuration.
type Config struct {
	DataDir       string              `mapstructure:"data_dir"`
	Networking    NetworkingConfig    `mapstructure:"networking"`
	Server        ServerConfig        `mapstructure:"server"`
	Sessions      SessionsConfig      `mapstructure:"sessions"`
	Storage       StorageConfig       `mapstructure:"storage"`
	WalletConnect WalletConnectConfig `mapstructure:"walletconnect"`
}

// NetworkingConfig controls where the local API listens.
type NetworkingConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// ServerConfig holds API settings. APIToken may be a keyring://service/key
// reference.
type ServerConfig struct {
	APIToken         string          `mapstructure:"api_token"`
	CommandRateLimit RateLimitConfig `mapstructure:"command_rate_limit"`
}

// RateLimitConfig throttles session commands per client IP. A zero rate
// disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// SessionsConfig controls session retention.
type SessionsConfig struct {
	MaxLocalSessions int `mapstructure:"max_local_sessions"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// WalletConnectConfig describes this wallet to dApps.
type WalletConnectConfig struct {
	ClientMeta ClientMetaConfig `mapstructure:"client_meta"`
	// KeyringSessionKeys keeps v1 session symmetric keys in the OS keyring
	// instead of the data directory.
	KeyringSessionKeys bool `mapstructure:"keyring_session_keys"`
}

// ClientMetaConfig is the wallet metadata sent during handshakes.
type ClientMetaConfig struct {
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	URL         string   `mapstructure:"url"`
	Icons       []string `mapstructure:"icons"`
}

// PeerMeta converts the configured metadata to its wire form.
func (c ClientMetaConfig) PeerMeta() store.PeerMeta {
	return store.PeerMeta{
		Name:        c.Name,
		Description: c.Description,
		URL:         c.URL,
		Icons:       append([]string(nil), c.Icons...),
	}
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("networking.listen", "127.0.0.1:18790")
	v.SetDefault("server.command_rate_limit.requests_per_second", 5)
	v.SetDefault("server.command_rate_limit.burst", 20)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("sessions.max_local_sessions", 30)
	v.SetDefault("walletconnect.client_meta.name", "walletlink")
	v.SetDefault("walletconnect.client_meta.description", "WalletConnect session manager")
	v.SetDefault("walletconnect.client_meta.url", "https://github.com/sigil-dev/walletlink")
	v.SetDefault("walletconnect.keyring_session_keys", false)
}

// SetupEnv enables WALLETLINK_-prefixed environment overrides on v.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix WALLETLINK_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, wlerr.Errorf(wlerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, wlerr.Errorf(wlerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, wlerr.Errorf(wlerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateSessions()...)
	errs = append(errs, c.validateWalletConnect()...)

	return errs
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, wlerr.Errorf(wlerr.CodeConfigValidateInvalidValue, "config: networking.listen must not be empty"))
	} else {
		_, portStr, err := net.SplitHostPort(c.Networking.Listen)
		if err != nil {
			errs = append(errs, wlerr.Errorf(wlerr.CodeConfigValidateInvalidValue,
				"config: networking.listen must be a valid host:port address, got %q: %w",
				c.Networking.Listen, err,
			))
		} else {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				errs = append(errs, wlerr.Errorf(wlerr.CodeConfigValidateInvalidValue,
					"config: networking.listen port must be a number, got %q",
					portStr,
				))
			} else if port < 1 || port > 65535 {
				errs = append(errs, wlerr.Errorf(wlerr.CodeConfigValidateInvalidValue,
					"config: networking.listen port must be between 1 and 65535, got %d",
					port,
				))
			}
		}
	}

	for i, origin := range c.Networking.CORSOrigins {
		if !isHTTPURL(origin) {
			errs = append(errs, wlerr.Errorf(wlerr.CodeConfigValidateInvalidValue,
				"config: networking.cors_origins[%d] must be an http(s) origin, got %q",
				i, origin,
			))
		}
	}

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	rl := c.Server.CommandRateLimit
	if rl.RequestsPerSecond < 0 {
		errs = append(errs, wlerr.Errorf(wlerr.CodeConfigValidateInvalidValue,
			"config: server.command_rate_limit.requests_per_second must not be negative, got %g",
			rl.RequestsPerSecond,
		))
	}
	if rl.RequestsPerSecond > 0 && rl.Burst <= 0 {
		errs = append(errs, wlerr.Errorf(wlerr.CodeConfigValidateInvalidValue,
			"config: server.command_rate_limit.burst must be greater than 0 when a rate is set, got %d",
			rl.Burst,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, wlerr.Errorf(wlerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, memory], got %q",
			c.Storage.Backend,
		))
	}

	return errs
}

func (c *Config) validateSessions() []error {
	var errs []error

	if c.Sessions.MaxLocalSessions <= 0 {
		errs = append(errs, wlerr.Errorf(wlerr.CodeConfigValidateInvalidValue,
			"config: sessions.max_local_sessions must be greater than 0, got %d",
			c.Sessions.MaxLocalSessions,
		))
	}

	return errs
}

func (c *Config) validateWalletConnect() []error {
	var errs []error

	meta := c.WalletConnect.ClientMeta
	if meta.Name == "" {
		errs = append(errs, wlerr.Errorf(wlerr.CodeConfigValidateInvalidValue,
			"config: walletconnect.client_meta.name must not be empty"))
	}
	if meta.URL != "" && !isHTTPURL(meta.URL) {
		errs = append(errs, wlerr.Errorf(wlerr.CodeConfigValidateInvalidValue,
			"config: walletconnect.client_meta.url must be an http(s) URL, got %q",
			meta.URL,
		))
	}
	for i, icon := range meta.Icons {
		if !isHTTPURL(icon) {
			errs = append(errs, wlerr.Errorf(wlerr.CodeConfigValidateInvalidValue,
				"config: walletconnect.client_meta.icons[%d] must be an http(s) URL, got %q",
				i, icon,
			))
		}
	}

	return errs
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ResolvedDataDir returns DataDir, or DefaultDataDir when it is unset.
func (c *Config) ResolvedDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	return DefaultDataDir()
}
