// Package config provides configuration management for devloop.
//
// Configuration is loaded from three sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (DEVLOOP_ prefix)
//  3. Config file (.devloop.yaml)
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DefaultPort is the dev server port used when none is configured.
const DefaultPort = 8080

// DefaultShutdownTimeout bounds how long a dev server may take to drain.
const DefaultShutdownTimeout = 5 * time.Second

// Config represents the global configuration for devloop.
type Config struct {
	// LogLevel controls the verbosity of log output.
	// Valid values: debug, info, warn, error.
	LogLevel string `mapstructure:"log-level" json:"logLevel"`

	// LogFormat controls the format of log output.
	// Valid values: text, json.
	LogFormat string `mapstructure:"log-format" json:"logFormat"`

	// NoColor disables colored output.
	NoColor bool `mapstructure:"no-color" json:"noColor"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" json:"quiet"`

	// Port is the TCP port of the local dev server.
	Port int `mapstructure:"port" json:"port"`

	// Account selects the target account by name or numeric ID.
	// Falls back to DefaultAccount when empty.
	Account string `mapstructure:"account" json:"account,omitempty"`

	// DefaultAccount names the account used when Account is empty.
	DefaultAccount string `mapstructure:"default-account" json:"defaultAccount,omitempty"`

	// Accounts lists the known accounts.
	Accounts []Account `mapstructure:"accounts" json:"accounts,omitempty"`

	// UploadURL is the base URL of the project upload API. When empty,
	// uploads are archived into BuildDir instead.
	UploadURL string `mapstructure:"upload-url" json:"uploadUrl,omitempty"`

	// BuildDir receives local upload archives when UploadURL is empty.
	BuildDir string `mapstructure:"build-dir" json:"buildDir,omitempty"`

	// ShutdownTimeout bounds the dev server drain on every restart.
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout" json:"shutdownTimeout"`

	// ConfigFile is the resolved path to the config file used.
	// Set after Load(), not read from config itself.
	ConfigFile string `mapstructure:"-" json:"-"`
}

// Account is a configured remote account.
type Account struct {
	Name string `mapstructure:"name" json:"name"`
	ID   int    `mapstructure:"id" json:"id"`

	// SandboxType is empty for production accounts.
	SandboxType string `mapstructure:"sandbox-type" json:"sandboxType,omitempty"`
}

// IsSandbox reports whether the account is a sandbox account.
func (a Account) IsSandbox() bool {
	return a.SandboxType != ""
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:        LogLevelInfo,
		LogFormat:       LogFormatText,
		NoColor:         false,
		Quiet:           false,
		Port:            DefaultPort,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// valid
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat)
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 0 and 65535", c.Port)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout %s: must be positive", c.ShutdownTimeout)
	}

	seen := make(map[string]bool, len(c.Accounts))

	for i, a := range c.Accounts {
		if a.Name == "" {
			return fmt.Errorf("accounts[%d]: name is required", i)
		}

		if seen[a.Name] {
			return fmt.Errorf("accounts[%d]: duplicate account name %q", i, a.Name)
		}

		seen[a.Name] = true
	}

	return nil
}

// EffectiveLogLevel returns the log level to use. When Quiet is true the log
// level is overridden to "error" regardless of the configured LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	return c.LogLevel
}

// ErrNoAccounts is returned by ResolveAccount when no account is configured.
var ErrNoAccounts = errors.New("no accounts configured")

// ResolveAccount finds the account matching nameOrID, falling back to
// Account and then DefaultAccount when nameOrID is empty. A single
// configured account is used when nothing selects one.
func (c *Config) ResolveAccount(nameOrID string) (Account, error) {
	if len(c.Accounts) == 0 {
		return Account{}, ErrNoAccounts
	}

	want := nameOrID
	if want == "" {
		want = c.Account
	}

	if want == "" {
		want = c.DefaultAccount
	}

	if want == "" {
		if len(c.Accounts) == 1 {
			return c.Accounts[0], nil
		}

		return Account{}, fmt.Errorf("%d accounts configured: select one with --account or default-account", len(c.Accounts))
	}

	for _, a := range c.Accounts {
		if a.Name == want || fmt.Sprint(a.ID) == want {
			return a, nil
		}
	}

	return Account{}, fmt.Errorf("account %q not found", want)
}

// Load initialises configuration from flags, environment variables, and an
// optional config file. A fresh viper instance is used on every call so that
// Load is safe for concurrent tests.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	configureEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Store the resolved config file path so downstream code can locate it.
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log-level", LogLevelInfo)
	v.SetDefault("log-format", LogFormatText)
	v.SetDefault("no-color", false)
	v.SetDefault("quiet", false)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("account", "")
	v.SetDefault("default-account", "")
	v.SetDefault("upload-url", "")
	v.SetDefault("build-dir", "")
	v.SetDefault("shutdown-timeout", DefaultShutdownTimeout)
}

// configureEnv sets up environment variable support.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("DEVLOOP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// configureFile sets up the config file source.
func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}

		return nil
	}

	// Auto-discovery mode.
	v.SetConfigName(".devloop")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "devloop"))
	}

	if err := v.ReadInConfig(); err != nil {
		// No config file found → perfectly fine in auto-discovery.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}

		// Found a file but it was malformed.
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// bindFlags walks from cmd up to the root and binds all PersistentFlags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	// Bind the current command's own flags.
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	// Walk up to root and bind all persistent flags at each level.
	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}

	return Default()
}
