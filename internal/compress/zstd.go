// Package compress implements the pipeline's size-gated compression
// stage: a single-entry tar container compressed with zstd.
package compress

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"filekeep/internal/keep"
)

// Zstd archives files into single-entry tar.zst containers. The entry
// keeps the original basename so decompression can recover the name
// even though the container path drops the original extension.
type Zstd struct{}

var _ keep.Compressor = (*Zstd)(nil)

func New() *Zstd { return &Zstd{} }

// Compress writes <base>.tzst next to the file at path, removes the
// original, and returns the container path. On any failure the partial
// container is removed and the original file is left in place.
func (z *Zstd) Compress(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}

	cpath := strings.TrimSuffix(path, filepath.Ext(path)) + keep.CompressedSuffix
	out, err := os.OpenFile(cpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("creating container: %w", err)
	}

	if err := writeContainer(out, in, info, filepath.Base(path)); err != nil {
		out.Close()
		os.Remove(cpath)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(cpath)
		return "", fmt.Errorf("closing container: %w", err)
	}

	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("removing original: %w", err)
	}
	return cpath, nil
}

func writeContainer(w io.Writer, r io.Reader, info os.FileInfo, name string) error {
	// SpeedDefault (level 3): good ratio without excessive CPU.
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}

	tw := tar.NewWriter(zw)
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("building tar header: %w", err)
	}
	hdr.Name = name

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing tar header: %w", err)
	}
	if _, err := io.Copy(tw, r); err != nil {
		return fmt.Errorf("writing entry: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalizing tar: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing zstd stream: %w", err)
	}
	return nil
}

// Decompress extracts the single entry of a container produced by
// Compress and writes its bytes to w.
func (z *Zstd) Decompress(r io.Reader, w io.Writer) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	if _, err := tr.Next(); err != nil {
		if err == io.EOF {
			return fmt.Errorf("container has no entries")
		}
		return fmt.Errorf("reading tar header: %w", err)
	}
	if _, err := io.Copy(w, tr); err != nil {
		return fmt.Errorf("extracting entry: %w", err)
	}
	return nil
}
