package sync

import (
	"fmt"

	"filekeep/internal/config"
)

// NewReplicaFromConfig creates a Replica implementation based on the
// replica config type.
func NewReplicaFromConfig(cfg config.ReplicaConfig) (Replica, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryReplica(), nil
	case "s3":
		return NewS3Replica(cfg)
	case "filesystem", "":
		return NewFileSystemReplica(cfg.RemoteRoot)
	default:
		return nil, fmt.Errorf("unknown replica type: %s", cfg.Type)
	}
}
