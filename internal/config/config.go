package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for drop.
type Config struct {
	BaseDir     string           `toml:"base_dir"`
	StorageRoot string           `toml:"storage_root"`
	LogDir      string           `toml:"log_dir"`
	ListenAddr  string           `toml:"listen_addr"`
	Timezone    string           `toml:"timezone,omitempty"` // IANA name; empty means local time
	Retention   RetentionConfig  `toml:"retention"`
	Journal     JournalConfig    `toml:"journal"`
	Vault       VaultConfig      `toml:"vault"`
	Encryption  EncryptionConfig `toml:"encryption"`
	Server      ServerConfig     `toml:"server"`
}

// RetentionConfig controls the background sweeper.
type RetentionConfig struct {
	Enabled  bool     `toml:"enabled"`
	MaxAge   Duration `toml:"max_age"`
	Interval Duration `toml:"interval"`
}

// JournalConfig represents configuration for the event journal.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type JournalConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "none"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// VaultConfig represents configuration for the retention vault, where expired
// entries are archived before deletion.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "none", "memory", "filesystem" or "s3"
	Name string `toml:"name,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used to seal vaulted archives.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// ServerConfig holds HTTP server limits.
type ServerConfig struct {
	MaxUploadBytes int64    `toml:"max_upload_bytes"`
	RequestTimeout Duration `toml:"request_timeout"`
}

// Duration is a time.Duration written as a string such as "720h" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults used by NewConfig.
const (
	DefaultListenAddr     = "127.0.0.1:5000"
	DefaultMaxAge         = 30 * 24 * time.Hour
	DefaultInterval       = time.Hour
	DefaultMaxUploadBytes = 1 << 30
	DefaultRequestTimeout = 5 * time.Minute
)

// NewConfig creates a new Config with every path placed under baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:     baseDir,
		StorageRoot: filepath.Join(baseDir, "uploads"),
		LogDir:      filepath.Join(baseDir, "log"),
		ListenAddr:  DefaultListenAddr,
		Retention: RetentionConfig{
			Enabled:  true,
			MaxAge:   Duration{DefaultMaxAge},
			Interval: Duration{DefaultInterval},
		},
		Journal: JournalConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Vault: VaultConfig{
			Type: "none",
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "drop.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "drop.key"),
		},
		Server: ServerConfig{
			MaxUploadBytes: DefaultMaxUploadBytes,
			RequestTimeout: Duration{DefaultRequestTimeout},
		},
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.StorageRoot == "" {
		return errors.New("storage_root must be set")
	}
	if c.ListenAddr == "" {
		return errors.New("listen_addr must be set")
	}
	if c.Retention.MaxAge.Duration <= 0 {
		return errors.New("retention.max_age must be positive")
	}
	if c.Retention.Interval.Duration <= 0 {
		return errors.New("retention.interval must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be positive")
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	return nil
}

// Location returns the configured time zone, or time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
