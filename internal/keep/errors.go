package keep

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by service operations. Callers branch on
// these with errors.Is for correct client messaging.
var (
	// ErrNotFound means the logical path, version, or share token does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrExpired means a share token's expiry instant has passed. The
	// token is purged before this is returned.
	ErrExpired = errors.New("share link expired")

	// ErrDenied means a share password was supplied but did not match.
	ErrDenied = errors.New("access denied")

	// ErrPasswordRequired means a protected share was resolved without
	// a password.
	ErrPasswordRequired = errors.New("password required")

	// ErrTooLarge means an upload exceeds the configured maximum size.
	ErrTooLarge = errors.New("file exceeds maximum upload size")

	// ErrExtensionNotAllowed means the upload's extension is not in the
	// allowed set.
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
)

// EncryptionError reports a failed encryption stage. The plaintext
// artifact named by Path is preserved on disk; the ingest that hit this
// error recorded no metadata.
type EncryptionError struct {
	Path string
	Err  error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encrypting %s: %v", e.Path, e.Err)
}

func (e *EncryptionError) Unwrap() error { return e.Err }

// CompressionError reports a failed compression stage. The pipeline
// absorbs it and continues with the uncompressed artifact; it is only
// surfaced through logs.
type CompressionError struct {
	Path string
	Err  error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("compressing %s: %v", e.Path, e.Err)
}

func (e *CompressionError) Unwrap() error { return e.Err }
