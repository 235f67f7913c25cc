package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied by Validate when the corresponding setting is zero.
const (
	DefaultCompressionThreshold = 10 << 20  // 10 MiB
	DefaultMaxUploadSize        = 100 << 20 // 100 MiB
	DefaultShareTTLHours        = 24
	DefaultStopTimeoutSeconds   = 5
	DefaultQueueSize            = 256
)

// Config is the main configuration for filekeep.
type Config struct {
	// InstanceID identifies this deployment in logs. Generated once at
	// config init; optional.
	InstanceID string `toml:"instance_id"`

	BaseDir string `toml:"base_dir"`
	LogDir  string `toml:"log_dir"`

	Storage    StorageConfig    `toml:"storage"`
	Store      StoreConfig      `toml:"store"`
	Encryption EncryptionConfig `toml:"encryption"`
	Search     SearchConfig     `toml:"search"`
	Sync       SyncConfig       `toml:"sync"`
	Share      ShareConfig      `toml:"share"`
}

// StorageConfig holds the storage root and upload limits.
type StorageConfig struct {
	Root                 string `toml:"root"`
	CompressionThreshold int64  `toml:"compression_threshold"` // bytes
	MaxUploadSize        int64  `toml:"max_upload_size"`       // bytes
}

// StoreConfig selects the metadata/comment store backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type         string `toml:"type"`                    // "json" (default), "sqlite", or "memory"
	MetadataPath string `toml:"metadata_path,omitempty"` // only used for type=json
	CommentsPath string `toml:"comments_path,omitempty"` // only used for type=json
	DataDir      string `toml:"data_dir,omitempty"`      // only used for type=sqlite
}

// EncryptionConfig selects the at-rest encryptor. An empty
// IdentityPath means an ephemeral per-process key: artifacts become
// unrecoverable after restart. The startup log warns about this mode.
type EncryptionConfig struct {
	Type         string `toml:"type"` // "age" (default) or "test"
	IdentityPath string `toml:"identity_path"`
}

// SearchConfig selects the search collaborator backend.
type SearchConfig struct {
	Type      string `toml:"type"`                 // "sqlite" or "noop" (default)
	IndexPath string `toml:"index_path,omitempty"` // only used for type=sqlite
}

// SyncConfig controls the filesystem-event synchronizer.
type SyncConfig struct {
	Enabled            bool          `toml:"enabled"`
	QueueSize          int           `toml:"queue_size"`
	StopTimeoutSeconds int           `toml:"stop_timeout_seconds"`
	Replica            ReplicaConfig `toml:"replica"`
}

// ReplicaConfig selects the sync remote backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ReplicaConfig struct {
	Type string `toml:"type"` // "filesystem", "s3", or "memory"

	// Filesystem-specific (only used when Type == "filesystem")
	RemoteRoot string `toml:"remote_root,omitempty"`

	// S3-specific (only used when Type == "s3"). Empty credentials fall
	// back to the ambient AWS credential chain.
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
}

// ShareConfig holds share-link settings.
type ShareConfig struct {
	TTLHours int `toml:"ttl_hours"`
}

// ShareTTL returns the configured share lifetime as a duration.
func (c *Config) ShareTTL() time.Duration {
	return time.Duration(c.Share.TTLHours) * time.Hour
}

// StopTimeout returns the sync shutdown grace period as a duration.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Sync.StopTimeoutSeconds) * time.Second
}

// NewConfig creates a Config with defaults rooted under baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Storage: StorageConfig{
			Root:                 filepath.Join(baseDir, "uploads"),
			CompressionThreshold: DefaultCompressionThreshold,
			MaxUploadSize:        DefaultMaxUploadSize,
		},
		Store: StoreConfig{
			Type:         "json",
			MetadataPath: filepath.Join(baseDir, "metadata.json"),
			CommentsPath: filepath.Join(baseDir, "comments.json"),
		},
		Encryption: EncryptionConfig{
			Type:         "age",
			IdentityPath: filepath.Join(baseDir, "keys", "filekeep.key"),
		},
		Search: SearchConfig{
			Type:      "sqlite",
			IndexPath: filepath.Join(baseDir, "search.db"),
		},
		Sync: SyncConfig{
			Enabled:            true,
			QueueSize:          DefaultQueueSize,
			StopTimeoutSeconds: DefaultStopTimeoutSeconds,
			Replica: ReplicaConfig{
				Type:       "filesystem",
				RemoteRoot: filepath.Join(baseDir, "remote"),
			},
		},
		Share: ShareConfig{TTLHours: DefaultShareTTLHours},
	}
}

// Validate applies defaults and rejects configurations missing
// required settings. It is called once at startup; a non-nil error is
// fatal.
func (c *Config) Validate() error {
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}
	if c.Storage.CompressionThreshold < 0 {
		return fmt.Errorf("storage.compression_threshold must not be negative")
	}
	if c.Storage.CompressionThreshold == 0 {
		c.Storage.CompressionThreshold = DefaultCompressionThreshold
	}
	if c.Storage.MaxUploadSize == 0 {
		c.Storage.MaxUploadSize = DefaultMaxUploadSize
	}

	switch c.Store.Type {
	case "", "json":
		c.Store.Type = "json"
		if c.Store.MetadataPath == "" || c.Store.CommentsPath == "" {
			return fmt.Errorf("store.metadata_path and store.comments_path are required for the json store")
		}
	case "sqlite":
		if c.Store.DataDir == "" {
			return fmt.Errorf("store.data_dir is required for the sqlite store")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store type: %q", c.Store.Type)
	}

	switch c.Search.Type {
	case "", "noop":
		c.Search.Type = "noop"
	case "sqlite":
		if c.Search.IndexPath == "" {
			return fmt.Errorf("search.index_path is required for the sqlite index")
		}
	default:
		return fmt.Errorf("unknown search type: %q", c.Search.Type)
	}

	if c.Sync.Enabled {
		if c.Sync.QueueSize <= 0 {
			c.Sync.QueueSize = DefaultQueueSize
		}
		if c.Sync.StopTimeoutSeconds <= 0 {
			c.Sync.StopTimeoutSeconds = DefaultStopTimeoutSeconds
		}
		switch c.Sync.Replica.Type {
		case "filesystem":
			if c.Sync.Replica.RemoteRoot == "" {
				return fmt.Errorf("sync.replica.remote_root is required for the filesystem replica")
			}
		case "s3":
			if c.Sync.Replica.S3Bucket == "" || c.Sync.Replica.S3Region == "" {
				return fmt.Errorf("sync.replica.s3_bucket and s3_region are required for the s3 replica")
			}
		case "memory":
		default:
			return fmt.Errorf("unknown replica type: %q", c.Sync.Replica.Type)
		}
	}

	if c.Share.TTLHours == 0 {
		c.Share.TTLHours = DefaultShareTTLHours
	}
	if c.Share.TTLHours < 0 {
		return fmt.Errorf("share.ttl_hours must not be negative")
	}

	return nil
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
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
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

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
