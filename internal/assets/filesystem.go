package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FilesystemLoader loads assets from a directory on disk. Reads go through
// os.Root, so neither names nor symlinks can reach outside the directory.
type FilesystemLoader struct {
	dir string
}

// NewFilesystemLoader checks that dir is a readable directory.
func NewFilesystemLoader(dir string) (*FilesystemLoader, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidBasePath)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBasePath, err)
	}

	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBasePath, err)
	}
	defer root.Close()
	if _, err := fs.ReadDir(root.FS(), "."); err != nil {
		return nil, fmt.Errorf("%w: cannot read directory: %v", ErrInvalidBasePath, err)
	}
	return &FilesystemLoader{dir: abs}, nil
}

// Dir returns the absolute asset directory.
func (f *FilesystemLoader) Dir() string { return f.dir }

// LoadStyle reads {dir}/styles/{name}.css.
func (f *FilesystemLoader) LoadStyle(name string) (string, error) {
	return f.load(KindStyle, name)
}

// LoadTemplate reads {dir}/templates/{name}.html.
func (f *FilesystemLoader) LoadTemplate(name string) (string, error) {
	return f.load(KindTemplate, name)
}

func (f *FilesystemLoader) load(k Kind, name string) (string, error) {
	if err := ValidateAssetName(name); err != nil {
		return "", err
	}

	root, err := os.OpenRoot(f.dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssetRead, err)
	}
	defer root.Close()

	content, err := root.ReadFile(filepath.FromSlash(k.file(name)))
	switch {
	case err == nil:
		return string(content), nil
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("%w: %q", k.notFound(), name)
	default:
		return "", fmt.Errorf("%w: %s %q: %v", ErrAssetRead, k, name, err)
	}
}

var _ AssetLoader = (*FilesystemLoader)(nil)
