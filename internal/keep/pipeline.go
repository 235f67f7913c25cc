package keep

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Suffixes added by the transform stages. Retrieval inspects these to
// decide which inverse transforms to apply, so orphaned artifacts stay
// recoverable even without their metadata record.
const (
	CompressedSuffix = ".tzst"
	EncryptedSuffix  = ".age"
)

// Ingest runs the full upload pipeline for one file: classify the name
// into a category folder, persist the raw bytes, compress when the
// size is at or above the threshold, encrypt at rest, record the
// attribute bag, and notify the search index.
//
// size is the declared upload size, checked against the configured
// maximum before anything is written. The returned logical path is
// relative to the storage root and keys all later operations.
//
// Failure policy: persistence and encryption failures abort the ingest
// with no metadata recorded (encryption failure preserves the
// plaintext artifact); compression failures are absorbed and the file
// continues uncompressed; indexing failures are logged and swallowed.
func (s *Service) Ingest(filename string, r io.Reader, size int64) (string, error) {
	if !ExtensionAllowed(filename) {
		return "", fmt.Errorf("%s: %w", filename, ErrExtensionNotAllowed)
	}
	if size > s.maxUploadSize {
		return "", fmt.Errorf("%s (%d bytes): %w", filename, size, ErrTooLarge)
	}

	day := s.clock.Now().Format("2006-01-02")
	cat := Classify(filename)
	logical := filepath.Join(day, cat, filename)

	// Stage 1: persist raw bytes. The first 512 bytes are kept aside
	// for content sniffing; the bag's "type" field describes the
	// plaintext, not the transformed artifact.
	artifact := filepath.Join(s.root, logical)
	sniff, err := s.persist(artifact, r)
	if err != nil {
		return "", fmt.Errorf("persisting %s: %w", filename, err)
	}

	// Stage 2: size-gated compression. Never fatal: on failure the
	// uncompressed file feeds the next stage.
	compressed := false
	if info, err := os.Stat(artifact); err == nil && info.Size() >= s.compressionThreshold {
		cpath, cerr := s.compressor.Compress(artifact)
		if cerr != nil {
			s.logger.Warn("compression failed, keeping original",
				"path", logical, "error", &CompressionError{Path: logical, Err: cerr})
		} else {
			artifact = cpath
			compressed = true
		}
	}

	// Stage 3: encryption. Fatal on failure: an unencrypted artifact
	// would silently violate the at-rest guarantee. The plaintext
	// predecessor is preserved and no metadata is written.
	encPath, err := s.encryptFile(artifact)
	if err != nil {
		return "", &EncryptionError{Path: logical, Err: err}
	}
	artifact = encPath

	// Stage 4: record metadata, then notify the search collaborator.
	info, err := os.Stat(artifact)
	if err != nil {
		return "", fmt.Errorf("stat final artifact: %w", err)
	}
	relArtifact, err := filepath.Rel(s.root, artifact)
	if err != nil {
		return "", fmt.Errorf("relativizing artifact path: %w", err)
	}

	now := s.clock.Now()
	bag := Attributes{
		"type":        http.DetectContentType(sniff),
		"size":        info.Size(),
		"uploaded_at": now.Format("2006-01-02T15:04:05Z07:00"),
		"compressed":  compressed,
		"encrypted":   true,
		"artifact":    relArtifact,
	}
	if err := s.store.Upsert(logical, bag); err != nil {
		return "", fmt.Errorf("recording metadata: %w", err)
	}

	doc := Document{
		Path:      logical,
		Name:      filename,
		Type:      strings.ToLower(filepath.Ext(filename)),
		Size:      info.Size(),
		CreatedAt: now,
		Metadata:  bag,
	}
	if err := s.indexer.Index(logical, doc); err != nil {
		// Search availability is best effort and never blocks an upload.
		s.logger.Error("indexing failed", "path", logical, "error", err)
	}

	s.logger.Info("file ingested", "path", logical,
		"size", info.Size(), "compressed", compressed)
	return logical, nil
}

// persist writes the upload to dest, creating the category directory,
// and returns up to the first 512 bytes for MIME sniffing. On write
// failure the partial file is removed.
func (s *Service) persist(dest string, r io.Reader) ([]byte, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("creating category directory: %w", err)
	}

	sniff := make([]byte, 512)
	n, err := io.ReadFull(r, sniff)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	sniff = sniff[:n]

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	if _, err := io.Copy(f, io.MultiReader(bytes.NewReader(sniff), r)); err != nil {
		f.Close()
		os.Remove(dest)
		return nil, fmt.Errorf("writing file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return nil, fmt.Errorf("closing file: %w", err)
	}
	return sniff, nil
}

// encryptFile encrypts the artifact at path into path+EncryptedSuffix
// and removes the plaintext. On failure the partial ciphertext is
// removed and the plaintext is left untouched.
func (s *Service) encryptFile(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening plaintext: %w", err)
	}
	defer in.Close()

	encPath := path + EncryptedSuffix
	out, err := os.OpenFile(encPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("creating ciphertext file: %w", err)
	}

	if err := s.encryptor.Encrypt(in, out); err != nil {
		out.Close()
		os.Remove(encPath)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(encPath)
		return "", fmt.Errorf("closing ciphertext file: %w", err)
	}

	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("removing plaintext: %w", err)
	}
	return encPath, nil
}

// Retrieve recovers the original upload bytes for a logical path by
// applying the inverse transforms (decrypt, then decompress) to the
// current artifact, and writes them to w.
func (s *Service) Retrieve(logical string, w io.Writer) error {
	art, err := s.artifactPath(logical)
	if err != nil {
		return err
	}

	f, err := os.Open(art)
	if err != nil {
		return fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()

	name := art
	var r io.Reader = f
	if strings.HasSuffix(name, EncryptedSuffix) {
		var plain bytes.Buffer
		if err := s.encryptor.Decrypt(f, &plain); err != nil {
			return fmt.Errorf("decrypting %s: %w", logical, err)
		}
		r = &plain
		name = strings.TrimSuffix(name, EncryptedSuffix)
	}
	if strings.HasSuffix(name, CompressedSuffix) {
		if err := s.compressor.Decompress(r, w); err != nil {
			return fmt.Errorf("decompressing %s: %w", logical, err)
		}
		return nil
	}

	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("reading %s: %w", logical, err)
	}
	return nil
}
