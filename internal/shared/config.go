package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Source   SourceConfig   `toml:"source"`
	Data     DataConfig     `toml:"data"`
	Extended ExtendedConfig `toml:"extended"`
	Cache    CacheConfig    `toml:"cache"`
	API      APIConfig      `toml:"api"`
	Image    ImageConfig    `toml:"image"`
}

// SourceConfig points at the hand-maintained master list.
type SourceConfig struct {
	GamesFile string `toml:"games_file" validate:"required"`
}

// DataConfig contains the generated data set outputs.
type DataConfig struct {
	Dir       string `toml:"dir"`
	GamesFile string `toml:"games_file" validate:"required"`
	HashFile  string `toml:"hash_file" validate:"required"`
	InitFile  string `toml:"init_file" validate:"required"`
	NewCount  int    `toml:"new_count" validate:"gt=0"`
	InitCount int    `toml:"init_count" validate:"gt=0"`
}

// ExtendedConfig contains the extended metadata output not consumed by the site.
type ExtendedConfig struct {
	Dir          string `toml:"dir"`
	ExtendedFile string `toml:"extended_file" validate:"required"`
}

// CacheConfig contains the BGG response and id cache locations.
type CacheConfig struct {
	Dir       string `toml:"dir"`
	BggIDFile string `toml:"bgg_id_file" validate:"required"`
}

// APIConfig contains BGG XML API client settings.
type APIConfig struct {
	Root        string `toml:"root" validate:"required,url"`
	TimeoutMS   int    `toml:"timeout_ms" validate:"gt=0"`
	Retries     int    `toml:"retries" validate:"gte=0"`
	BaseRetryMS int    `toml:"base_retry_ms" validate:"gt=0"`
	RateEveryMS int    `toml:"rate_every_ms" validate:"gte=0"`
}

// ImageSize describes a target image size. Width is mandatory, height optional.
type ImageSize struct {
	Width  int `toml:"width" validate:"gt=0"`
	Height int `toml:"height" validate:"gte=0"`
}

// ImageConfig contains image asset builder settings.
type ImageConfig struct {
	Dir         string    `toml:"dir"`
	NamePattern string    `toml:"name_pattern" validate:"required,contains={name},contains={id},contains={type}"`
	Thumbnail   ImageSize `toml:"thumbnail"`
	Fullsize    ImageSize `toml:"fullsize"`
}

// Timeout returns the configured request timeout.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMS) * time.Millisecond
}

// BaseRetry returns the configured backoff base delay.
func (a APIConfig) BaseRetry() time.Duration {
	return time.Duration(a.BaseRetryMS) * time.Millisecond
}

// RateEvery returns the minimum spacing between API requests.
func (a APIConfig) RateEvery() time.Duration {
	return time.Duration(a.RateEveryMS) * time.Millisecond
}

func joinPath(dir, file string) string {
	if dir == "" {
		return file
	}
	return filepath.Join(dir, file)
}

// BggIDFile returns the full path of the name to id cache file.
func (c *Config) BggIDFile() string {
	return joinPath(c.Cache.Dir, c.Cache.BggIDFile)
}

// CachePath builds a path inside the cache directory.
func (c *Config) CachePath(parts ...string) string {
	return joinPath(c.Cache.Dir, filepath.Join(parts...))
}

// GamesFile returns the full path of the primary generated data file.
func (c *Config) GamesFile() string {
	return joinPath(c.Data.Dir, c.Data.GamesFile)
}

// HashFile returns the full path of the content hash descriptor.
func (c *Config) HashFile() string {
	return joinPath(c.Data.Dir, c.Data.HashFile)
}

// InitFile returns the full path of the trimmed init snapshot.
func (c *Config) InitFile() string {
	return joinPath(c.Data.Dir, c.Data.InitFile)
}

// ExtendedFile returns the full path of the extended metadata file.
func (c *Config) ExtendedFile() string {
	return joinPath(c.Extended.Dir, c.Extended.ExtendedFile)
}

// LoadConfig reads, parses and validates a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if violations := Validate(&config); len(violations) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, FormatViolations(violations))
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FormatViolations renders a violation list as a single line for error wrapping.
func FormatViolations(violations []Violation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, fmt.Sprintf("%s %s", v.Target, v.Issue))
	}
	return strings.Join(parts, "; ")
}
