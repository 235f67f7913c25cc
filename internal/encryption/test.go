package encryption

import (
	"bytes"
	"fmt"
	"io"

	"filekeep/internal/keep"
)

// testHeader is prepended to data by TestEncryptor so that encrypted
// output clearly differs from plaintext while staying deterministic
// and reversible.
var testHeader = []byte("FKENC\x00\x00\x00")

// TestEncryptor is a deterministic no-crypto encryptor for tests. It
// prepends a fixed 8-byte header on Encrypt and strips it on Decrypt.
type TestEncryptor struct{}

var _ keep.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor { return &TestEncryptor{} }

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
