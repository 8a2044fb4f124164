// Package config loads runtime settings for the server and the CLI.
//
// Sources, lowest priority first:
//  1. built-in defaults (Default)
//  2. an optional TOML file (CONFIG_PATH or the path passed to Load)
//  3. environment variables, including those read from a .env file
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server  ServerConfig  `toml:"server"`
	DB      DBConfig      `toml:"db"`
	Auth    AuthConfig    `toml:"auth"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
}

type ServerConfig struct {
	Port int `toml:"port"`
	// BaseURL is the public origin used for short links and redirects.
	BaseURL  string `toml:"base_url"`
	PageSize int    `toml:"page_size"`
}

type DBConfig struct {
	Path string `toml:"path"`
}

type AuthConfig struct {
	JWTSecret string       `toml:"jwt_secret"`
	TokenTTL  Duration     `toml:"token_ttl"`
	GitHub    GitHubConfig `toml:"github"`
}

// GitHubConfig enables GitHub login when ClientID is set.
type GitHubConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	CallbackURL  string `toml:"callback_url"`
}

func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type StorageConfig struct {
	// Driver is "local" or "s3".
	Driver    string   `toml:"driver"`
	LocalDir  string   `toml:"local_dir"`
	PublicURL string   `toml:"public_url"`
	S3        S3Config `toml:"s3"`
}

type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Prefix    string `toml:"prefix"`
	PathStyle bool   `toml:"path_style"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

// Duration decodes TOML strings such as "24h" with time.ParseDuration.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the settings used when nothing else is configured.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			BaseURL:  "http://localhost:8080",
			PageSize: 10,
		},
		DB: DBConfig{Path: "data/recipes.db"},
		Auth: AuthConfig{
			TokenTTL: Duration{24 * time.Hour},
		},
		Storage: StorageConfig{
			Driver:   "local",
			LocalDir: "data/media",
		},
		Log: LogConfig{
			Level:  slog.LevelInfo,
			Format: "text",
		},
	}
}

// Load builds the configuration. path may be empty, in which case
// CONFIG_PATH is consulted and, failing that, no file is read.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer file.Close()

	return c.decode(file)
}

func (c *Config) decode(r io.Reader) error {
	if err := toml.NewDecoder(r).Decode(c); err != nil {
		return fmt.Errorf("config: decoding toml: %w", err)
	}
	return nil
}

// applyEnv overrides fields from environment variables. lookup is
// os.LookupEnv outside tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid %s value %q", key, v)
		}
		*dst = n
		return nil
	}

	if err := integer("PORT", &c.Server.Port); err != nil {
		return err
	}
	if err := integer("PAGE_SIZE", &c.Server.PageSize); err != nil {
		return err
	}
	str("BASE_URL", &c.Server.BaseURL)
	str("DB_PATH", &c.DB.Path)

	str("JWT_SECRET", &c.Auth.JWTSecret)
	if v, ok := lookup("TOKEN_TTL"); ok && v != "" {
		if err := c.Auth.TokenTTL.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("config: invalid TOKEN_TTL value %q", v)
		}
	}
	str("GITHUB_CLIENT_ID", &c.Auth.GitHub.ClientID)
	str("GITHUB_CLIENT_SECRET", &c.Auth.GitHub.ClientSecret)
	str("GITHUB_CALLBACK_URL", &c.Auth.GitHub.CallbackURL)

	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("MEDIA_DIR", &c.Storage.LocalDir)
	str("MEDIA_URL", &c.Storage.PublicURL)
	str("S3_ENDPOINT", &c.Storage.S3.Endpoint)
	str("S3_REGION", &c.Storage.S3.Region)
	str("S3_BUCKET", &c.Storage.S3.Bucket)
	str("S3_ACCESS_KEY", &c.Storage.S3.AccessKey)
	str("S3_SECRET_KEY", &c.Storage.S3.SecretKey)
	str("S3_PREFIX", &c.Storage.S3.Prefix)
	if v, ok := lookup("S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid S3_PATH_STYLE value %q", v)
		}
		c.Storage.S3.PathStyle = b
	}

	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		if err := c.Log.Level.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("config: invalid LOG_LEVEL value %q", v)
		}
	}
	str("LOG_FORMAT", &c.Log.Format)
	return nil
}

// fillDerived sets values that default to something built from other fields.
func (c *Config) fillDerived() {
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	if c.Storage.Driver == "local" && c.Storage.PublicURL == "" {
		c.Storage.PublicURL = c.Server.BaseURL + "/media"
	}
	if c.Auth.GitHub.CallbackURL == "" {
		c.Auth.GitHub.CallbackURL = c.Server.BaseURL + "/api/auth/github/callback"
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Server.Port)
	}
	if c.Server.PageSize <= 0 {
		return fmt.Errorf("config: page size must be positive")
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("config: base url is required")
	}
	// The CLI runs without a secret; the server refuses to start without one.
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("config: jwt secret must be at least 16 characters")
	}
	if c.Auth.TokenTTL.Duration <= 0 {
		return fmt.Errorf("config: token ttl must be positive")
	}
	switch c.Storage.Driver {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("config: storage.local_dir is required for the local driver")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("config: storage.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// NewLogger builds the application logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     c.Level,
		AddSource: c.AddSource,
	}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
