package keep

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrPreviewUnsupported means no previewer variant handles the file's
// extension.
var ErrPreviewUnsupported = errors.New("preview not supported for this file type")

// PreviewKind selects the previewer variant for a file.
type PreviewKind string

const (
	PreviewImage PreviewKind = "image"
	PreviewPDF   PreviewKind = "pdf"
	PreviewText  PreviewKind = "text"
	PreviewCode  PreviewKind = "code"
	PreviewAudio PreviewKind = "audio"
	PreviewVideo PreviewKind = "video"
)

// Preview is the uniform render result. Text and code variants inline
// the recovered plaintext in Content; streaming variants (image, pdf,
// audio, video) leave Content nil and the caller streams the bytes
// via Retrieve using Path.
type Preview struct {
	Kind    PreviewKind
	Path    string
	Content []byte
}

// previewTable maps extensions to variants, checked in order. "pdf" is
// carved out of the document set because it streams instead of
// inlining.
var previewTable = []struct {
	kind PreviewKind
	exts map[string]struct{}
}{
	{PreviewImage, extSet("jpg", "jpeg", "png", "gif", "bmp", "webp", "svg")},
	{PreviewPDF, extSet("pdf")},
	{PreviewText, extSet("txt", "md", "rst", "csv", "json", "xml", "yaml", "yml")},
	{PreviewCode, extSet("py", "js", "html", "css", "java", "cpp", "c", "h", "php", "rb", "go", "rs", "swift", "kt")},
	{PreviewAudio, extSet("mp3", "wav", "ogg", "m4a")},
	{PreviewVideo, extSet("mp4", "webm", "mov", "avi")},
}

// PreviewKindFor returns the previewer variant for a filename, or
// false if none applies.
func PreviewKindFor(filename string) (PreviewKind, bool) {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 || idx == len(filename)-1 {
		return "", false
	}
	ext := strings.ToLower(filename[idx+1:])
	for _, p := range previewTable {
		if _, ok := p.exts[ext]; ok {
			return p.kind, true
		}
	}
	return "", false
}

// Preview renders a logical file for display. Dispatch is keyed by the
// file's extension category; every variant shares this one contract.
func (s *Service) Preview(logical string) (*Preview, error) {
	if _, err := s.artifactPath(logical); err != nil {
		return nil, err
	}

	kind, ok := PreviewKindFor(logical)
	if !ok {
		return nil, fmt.Errorf("%s: %w", logical, ErrPreviewUnsupported)
	}

	p := &Preview{Kind: kind, Path: logical}
	switch kind {
	case PreviewText, PreviewCode:
		var buf bytes.Buffer
		if err := s.Retrieve(logical, &buf); err != nil {
			return nil, err
		}
		p.Content = buf.Bytes()
	}
	return p, nil
}
