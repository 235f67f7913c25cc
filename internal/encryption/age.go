package encryption

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"filekeep/internal/keep"
)

// AgeEncryptor implements keep.Encryptor with a process-wide X25519
// identity. The identity is either loaded from a key file (the
// recommended mode: artifacts stay decryptable across restarts) or
// generated fresh at startup when no path is configured, which mirrors
// an ephemeral at-rest key.
type AgeEncryptor struct {
	identity *age.X25519Identity
	// Ephemeral is true when the identity was generated for this
	// process only. Callers log a warning for this mode.
	Ephemeral bool
}

var _ keep.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor loads the X25519 identity from the key file at path.
func NewAgeEncryptor(path string) (*AgeEncryptor, error) {
	identity, err := loadIdentity(path)
	if err != nil {
		return nil, err
	}
	return &AgeEncryptor{identity: identity}, nil
}

// NewEphemeralEncryptor generates a fresh identity held in memory
// only. Anything encrypted with it is unrecoverable once the process
// exits.
func NewEphemeralEncryptor() (*AgeEncryptor, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating identity: %w", err)
	}
	return &AgeEncryptor{identity: identity, Ephemeral: true}, nil
}

// Setup performs one-time key generation, writing a new identity file
// at path with owner-only permissions. It refuses to overwrite an
// existing key file.
func Setup(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key file already exists at %s", path)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(identity.String()+"\n"), 0600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

// loadIdentity reads an age identity file and returns its X25519 key.
// Comment lines (starting with '#') and blank lines are skipped.
func loadIdentity(path string) (*age.X25519Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening key file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identity, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, fmt.Errorf("parsing key file %s: %w", path, err)
		}
		return identity, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	return nil, fmt.Errorf("no identity found in key file %s", path)
}

// Encrypt reads plaintext from r and writes age ciphertext to w.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	encWriter, err := age.Encrypt(w, e.identity.Recipient())
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Decrypt reads age ciphertext from r and writes plaintext to w.
func (e *AgeEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	decReader, err := age.Decrypt(r, e.identity)
	if err != nil {
		return fmt.Errorf("creating decrypted reader: %w", err)
	}
	if _, err := io.Copy(w, decReader); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	return nil
}
