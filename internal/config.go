package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/designtrail/internal/kvstore"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Store    StoreConfig       `yaml:"store"`
	Host     HostConfig        `yaml:"host"`
	Autosave AutosaveConfig    `yaml:"autosave"`
	Commit   CommitConfig      `yaml:"commit"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Autosave.Validate(); err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	if err := c.Commit.Validate(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects the key-value backend.
//
// Path is the SQLite file for "sqlite" and the directory for "fs".
// DSN and Namespace are used by "postgres" only.
type StoreConfig struct {
	Driver    string `yaml:"driver"`
	Path      string `yaml:"path"`
	DSN       string `yaml:"dsn"`
	Namespace string `yaml:"namespace"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	needsPath := c.Driver == kvstore.DriverSQLite || c.Driver == kvstore.DriverFS
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required,
			validation.In(kvstore.DriverSQLite, kvstore.DriverFS, kvstore.DriverPostgres, kvstore.DriverMemory)),
		validation.Field(&c.Path, validation.When(needsPath, validation.Required)),
		validation.Field(&c.DSN, validation.When(c.Driver == kvstore.DriverPostgres, validation.Required)),
	)
}

// Options converts the section into kvstore options.
func (c *StoreConfig) Options() kvstore.Options {
	return kvstore.Options{
		Driver:    c.Driver,
		Path:      c.Path,
		DSN:       c.DSN,
		Namespace: c.Namespace,
	}
}

// HostConfig points at the design document the server edits metadata for.
// An empty Document starts with an empty in-memory document.
type HostConfig struct {
	Document string `yaml:"document"`
	Watch    bool   `yaml:"watch"`
}

// AutosaveConfig holds the draft autosave delay.
type AutosaveConfig struct {
	Delay time.Duration `yaml:"delay"`
}

// Validate validates the autosave configuration.
func (c *AutosaveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Delay, validation.Required, validation.Min(10*time.Millisecond)),
	)
}

// CommitConfig controls retries of the draft deletion that follows a save.
type CommitConfig struct {
	Retries int           `yaml:"retries"`
	Backoff time.Duration `yaml:"backoff"`
}

// Validate validates the commit configuration.
func (c *CommitConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Retries, validation.Min(0), validation.Max(10)),
		validation.Field(&c.Backoff, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Driver:    kvstore.DriverSQLite,
			Path:      "./designtrail.db",
			Namespace: "designtrail",
		},
		Host: HostConfig{
			Watch: true,
		},
		Autosave: AutosaveConfig{
			Delay: time.Second,
		},
		Commit: CommitConfig{
			Retries: 3,
			Backoff: 50 * time.Millisecond,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
