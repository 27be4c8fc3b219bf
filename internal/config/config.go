// Package config wraps Viper behind a small read-only interface and loads the
// service configuration from defaults, an optional YAML file, and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// IHTTSTATS_BACKEND_BASE_URL overrides backend.base_url.
const EnvPrefix = "IHTTSTATS"

// Config is a read-only view over configuration values.
type Config interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	IsSet(key string) bool
	Sub(key string) Config
	Unmarshal(target any) error
}

// ViperConfig adapts *viper.Viper to Config.
type ViperConfig struct {
	v *viper.Viper
}

// Compile-time interface guard.
var _ Config = (*ViperConfig)(nil)

// New wraps v. A nil v behaves as an empty configuration.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v}
}

func (c *ViperConfig) GetString(key string) string          { return c.v.GetString(key) }
func (c *ViperConfig) GetInt(key string) int                { return c.v.GetInt(key) }
func (c *ViperConfig) GetBool(key string) bool              { return c.v.GetBool(key) }
func (c *ViperConfig) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }
func (c *ViperConfig) IsSet(key string) bool                { return c.v.IsSet(key) }

// Sub returns the subtree rooted at key. A missing subtree yields an empty
// Config rather than nil.
func (c *ViperConfig) Sub(key string) Config {
	sub := c.v.Sub(key)
	if sub == nil {
		return New(nil)
	}
	return New(sub)
}

// Unmarshal decodes the whole configuration into target using mapstructure tags.
func (c *ViperConfig) Unmarshal(target any) error {
	return c.v.Unmarshal(target)
}

// Viper exposes the underlying instance for components that take *viper.Viper.
func (c *ViperConfig) Viper() *viper.Viper {
	return c.v
}

// SetDefaults registers the default value of every known key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")

	v.SetDefault("backend.base_url", "http://localhost:3000/api")
	v.SetDefault("backend.timeout", "30s")
	v.SetDefault("backend.retry_max", 0)

	v.SetDefault("listing.display_page_size", 9)
	v.SetDefault("listing.view_ttl", "30m")
	v.SetDefault("listing.janitor_interval", "1m")

	v.SetDefault("identity.cookie_name", "session")
	v.SetDefault("identity.secret", "")

	v.SetDefault("store.path", "ihttstats.db")
	v.SetDefault("store.busy_timeout", "5s")

	v.SetDefault("export.rate_per_minute", 30)

	for _, name := range []string{"identity", "listing", "dashboard", "reports", "summary"} {
		v.SetDefault("plugins."+name+".enabled", true)
	}
}

// Load reads configuration from path (optional), a .env file in the working
// directory (optional), and IHTTSTATS_* environment variables.
func Load(path string) (*ViperConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	return New(v), nil
}
