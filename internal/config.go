package internal

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/planner/internal/index"
	"github.com/starford/planner/internal/tree"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Planner PlannerConfig     `yaml:"planner"`
	Index   IndexConfig       `yaml:"index"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Planner.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
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

// PlannerConfig holds the planner root directory and the default icons.
//
// An empty Root is allowed: the planner then shows an empty tree.
type PlannerConfig struct {
	Root     string `yaml:"root"`
	CardIcon string `yaml:"card_icon"`
	DeckIcon string `yaml:"deck_icon"`
}

// Validate validates the planner configuration.
func (c *PlannerConfig) Validate() error {
	if c.CardIcon == "" {
		c.CardIcon = tree.DefaultCardIcon
	}
	if c.DeckIcon == "" {
		c.DeckIcon = tree.DefaultDeckIcon
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.CardIcon, validation.By(shortText)),
		validation.Field(&c.DeckIcon, validation.By(shortText)),
	)
}

// Icons returns the configured default icons.
func (c *PlannerConfig) Icons() tree.Icons {
	return tree.Icons{Card: c.CardIcon, Deck: c.DeckIcon}
}

func shortText(v any) error {
	s, _ := v.(string)
	if utf8.RuneCountInString(s) > 8 {
		return fmt.Errorf("must be at most 8 characters")
	}
	return nil
}

// IndexConfig holds the search index database configuration.
type IndexConfig struct {
	DSN string `yaml:"dsn"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	if c.DSN == "" {
		c.DSN = index.DefaultDSN
	}
	return nil
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
	// Normalise empty mode to "disabled" for backward compatibility.
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
		Planner: PlannerConfig{
			Root:     "./planner",
			CardIcon: tree.DefaultCardIcon,
			DeckIcon: tree.DefaultDeckIcon,
		},
		Index: IndexConfig{
			DSN: index.DefaultDSN,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
