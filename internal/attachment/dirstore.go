package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DirStore serves files from a local directory; a file id is a file name
// directly inside the directory.
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at dir, which must exist.
func NewDirStore(dir string) (*DirStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseDir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", ErrInvalidBaseDir, abs)
	}
	return &DirStore{root: abs}, nil
}

// Metadata returns the PDF and image files among ids, in the order given.
func (s *DirStore) Metadata(ctx context.Context, ids []string) ([]Metadata, error) {
	var out []Metadata
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, err := s.path(id)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMetadata, err)
		}

		mt, err := mimetype.DetectFile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMetadata, id, err)
		}

		m := Metadata{
			FileID:       id,
			OriginalName: id,
			MimeType:     mt.String(),
			SizeInBytes:  info.Size(),
			CreatedAt:    info.ModTime(),
		}
		if m.Accepted() {
			out = append(out, m)
		}
	}
	return out, nil
}

// Download copies the file named fileID to dst.
func (s *DirStore) Download(ctx context.Context, fileID, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := s.path(fileID)
	if err != nil {
		return err
	}

	src, err := os.Open(p) // #nosec G304 -- path confined to the store root
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
		}
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) // #nosec G304 -- temp path
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}
	return nil
}

// path maps an id to a file inside the root, rejecting anything that is
// not a plain file name.
func (s *DirStore) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, "/\\\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileID, id)
	}
	return filepath.Join(s.root, id), nil
}

// Compile-time interface check.
var _ Store = (*DirStore)(nil)
