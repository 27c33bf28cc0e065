package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// AI providers.
const (
	AIProviderDisabled = "disabled"
	AIProviderGemini   = "gemini"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Storage  StorageConfig     `yaml:"storage"`
	Auth     AuthConfig        `yaml:"auth"`
	AI       AIConfig          `yaml:"ai"`
	Summary  SummaryConfig     `yaml:"summary"`
	Snapshot SnapshotConfig    `yaml:"snapshot"`
	Images   ImagesConfig      `yaml:"images"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.SQLite, &c.Storage, &c.Auth, &c.AI, &c.Summary, &c.Snapshot, &c.Images,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile, when set, receives a rotated copy of the JSON log.
	LogFile    string     `yaml:"log_file"`
	MaxSizeMB  int        `yaml:"max_size_mb"`
	MaxBackups int        `yaml:"max_backups"`
	MaxAgeDays int        `yaml:"max_age_days"`
	HTTP       HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
		validation.Field(&c.MaxAgeDays, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("app: %w", err)
	}
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

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// StorageConfig holds the data root for attachments and snapshots.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
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

// AIConfig selects the text-generation backend.
type AIConfig struct {
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = AIProviderDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In(AIProviderDisabled, AIProviderGemini)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	if c.Provider == AIProviderGemini && c.APIKey == "" {
		return fmt.Errorf("ai: provider is %q but api_key is empty", AIProviderGemini)
	}
	return nil
}

// SummaryConfig schedules the periodic summary broadcast.
type SummaryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Window   time.Duration `yaml:"window"`
}

// Validate validates the summary configuration.
func (c *SummaryConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.Window, validation.Required, validation.Min(time.Minute)),
	); err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	return nil
}

// SnapshotConfig schedules the JSON snapshot export. Interval 0 disables it.
type SnapshotConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Validate validates the snapshot configuration.
func (c *SnapshotConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}

// ImagesConfig limits attachments and configures the optional drop folder.
type ImagesConfig struct {
	MaxPerNote int    `yaml:"max_per_note"`
	InboxDir   string `yaml:"inbox_dir"`
}

// Validate validates the images configuration.
func (c *ImagesConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MaxPerNote, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("images: %w", err)
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:   slog.LevelInfo,
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./quill.db",
		},
		Storage: StorageConfig{
			Path: "./data",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		AI: AIConfig{
			Provider: AIProviderDisabled,
			Model:    "gemini-2.0-flash",
			Timeout:  30 * time.Second,
		},
		Summary: SummaryConfig{
			Enabled:  true,
			Interval: 12 * time.Hour,
			Window:   24 * time.Hour,
		},
		Snapshot: SnapshotConfig{
			Interval: 5 * time.Minute,
		},
		Images: ImagesConfig{
			MaxPerNote: 10,
		},
	}
}
