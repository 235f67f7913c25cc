package sync

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSystemReplica mirrors files into a second directory tree,
// typically a mounted remote share.
type FileSystemReplica struct {
	root string
}

func NewFileSystemReplica(root string) (*FileSystemReplica, error) {
	if root == "" {
		return nil, fmt.Errorf("filesystem replica requires a remote root")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating remote root: %w", err)
	}
	return &FileSystemReplica{root: root}, nil
}

func (r *FileSystemReplica) Put(rel, src string) error {
	dst := filepath.Join(r.root, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating replica directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stating source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating replica file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying to replica: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing replica file: %w", err)
	}

	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("setting replica mtime: %w", err)
	}
	return nil
}

func (r *FileSystemReplica) Remove(rel string) error {
	err := os.Remove(filepath.Join(r.root, rel))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing from replica: %w", err)
	}
	return nil
}
