package encryption

import (
	"fmt"

	"filekeep/internal/config"
	"filekeep/internal/keep"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// An empty identity path selects the ephemeral per-process key mode.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (keep.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.IdentityPath == "" {
			return NewEphemeralEncryptor()
		}
		return NewAgeEncryptor(cfg.IdentityPath)
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
