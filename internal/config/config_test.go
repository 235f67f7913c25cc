package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/filekeep")

	if cfg.Storage.Root != filepath.Join("/data/filekeep", "uploads") {
		t.Errorf("Storage.Root = %q", cfg.Storage.Root)
	}
	if cfg.Store.Type != "json" {
		t.Errorf("Store.Type = %q, want json", cfg.Store.Type)
	}
	if cfg.Encryption.IdentityPath == "" {
		t.Error("Encryption.IdentityPath should default to a key path")
	}
	if !cfg.Sync.Enabled {
		t.Error("sync should be enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config fails validation: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return NewConfig("/data/filekeep") }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(*Config) {}, false},
		{"missing storage root", func(c *Config) { c.Storage.Root = "" }, true},
		{"negative compression threshold", func(c *Config) { c.Storage.CompressionThreshold = -1 }, true},
		{"json store without paths", func(c *Config) { c.Store.MetadataPath = "" }, true},
		{"sqlite store without data dir", func(c *Config) { c.Store.Type = "sqlite"; c.Store.DataDir = "" }, true},
		{"sqlite store with data dir", func(c *Config) { c.Store.Type = "sqlite"; c.Store.DataDir = "/tmp/db" }, false},
		{"memory store", func(c *Config) { c.Store.Type = "memory" }, false},
		{"unknown store type", func(c *Config) { c.Store.Type = "redis" }, true},
		{"sqlite search without index path", func(c *Config) { c.Search.Type = "sqlite"; c.Search.IndexPath = "" }, true},
		{"unknown search type", func(c *Config) { c.Search.Type = "elastic" }, true},
		{"filesystem replica without remote root", func(c *Config) { c.Sync.Replica.RemoteRoot = "" }, true},
		{"s3 replica without bucket", func(c *Config) { c.Sync.Replica = ReplicaConfig{Type: "s3", S3Region: "eu-west-1"} }, true},
		{"s3 replica with bucket and region", func(c *Config) {
			c.Sync.Replica = ReplicaConfig{Type: "s3", S3Bucket: "backups", S3Region: "eu-west-1"}
		}, false},
		{"unknown replica type", func(c *Config) { c.Sync.Replica.Type = "ftp" }, true},
		{"disabled sync skips replica checks", func(c *Config) { c.Sync.Enabled = false; c.Sync.Replica.Type = "ftp" }, false},
		{"negative share ttl", func(c *Config) { c.Share.TTLHours = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateAppliesDefaults(t *testing.T) {
	cfg := NewConfig("/data/filekeep")
	cfg.Storage.CompressionThreshold = 0
	cfg.Storage.MaxUploadSize = 0
	cfg.Store.Type = ""
	cfg.Search.Type = ""
	cfg.Sync.QueueSize = 0
	cfg.Share.TTLHours = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.Storage.CompressionThreshold != DefaultCompressionThreshold {
		t.Errorf("CompressionThreshold = %d, want %d", cfg.Storage.CompressionThreshold, DefaultCompressionThreshold)
	}
	if cfg.Storage.MaxUploadSize != DefaultMaxUploadSize {
		t.Errorf("MaxUploadSize = %d, want %d", cfg.Storage.MaxUploadSize, DefaultMaxUploadSize)
	}
	if cfg.Store.Type != "json" {
		t.Errorf("Store.Type = %q, want json", cfg.Store.Type)
	}
	if cfg.Search.Type != "noop" {
		t.Errorf("Search.Type = %q, want noop", cfg.Search.Type)
	}
	if cfg.Sync.QueueSize != DefaultQueueSize {
		t.Errorf("QueueSize = %d, want %d", cfg.Sync.QueueSize, DefaultQueueSize)
	}
	if cfg.Share.TTLHours != DefaultShareTTLHours {
		t.Errorf("TTLHours = %d, want %d", cfg.Share.TTLHours, DefaultShareTTLHours)
	}
}

func TestManager_RoundTrip(t *testing.T) {
	cfg := NewConfig("/data/filekeep")
	cfg.Sync.Replica = ReplicaConfig{
		Type:     "s3",
		S3Bucket: "backups",
		S3Prefix: "filekeep/",
		S3Region: "eu-west-1",
	}

	m := &Manager{}
	var buf bytes.Buffer
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.Storage.Root != cfg.Storage.Root {
		t.Errorf("Storage.Root = %q, want %q", got.Storage.Root, cfg.Storage.Root)
	}
	if got.Sync.Replica.S3Bucket != "backups" {
		t.Errorf("Replica.S3Bucket = %q, want backups", got.Sync.Replica.S3Bucket)
	}
	if got.Encryption.IdentityPath != cfg.Encryption.IdentityPath {
		t.Errorf("Encryption.IdentityPath = %q, want %q", got.Encryption.IdentityPath, cfg.Encryption.IdentityPath)
	}
}

func TestManager_ReadRejectsInvalidTOML(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(strings.NewReader("storage = [broken")); err == nil {
		t.Error("Read() expected error for invalid TOML")
	}
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "filekeep.toml")
	cfg := NewConfig(dir)

	if err := Init(path, cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	got, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if got.Storage.Root != cfg.Storage.Root {
		t.Errorf("Storage.Root = %q, want %q", got.Storage.Root, cfg.Storage.Root)
	}

	if err := Init(path, cfg); err == nil {
		t.Error("second Init() should refuse to overwrite the config file")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := &Config{
		Share: ShareConfig{TTLHours: 48},
		Sync:  SyncConfig{StopTimeoutSeconds: 7},
	}
	if got := cfg.ShareTTL(); got != 48*time.Hour {
		t.Errorf("ShareTTL() = %v, want 48h", got)
	}
	if got := cfg.StopTimeout(); got != 7*time.Second {
		t.Errorf("StopTimeout() = %v, want 7s", got)
	}
}
