// Package archive bundles finished documents into a single zip file.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/flate"
)

// Sentinel errors for archive operations.
var (
	ErrNoEntries      = errors.New("archive has no entries")
	ErrInvalidName    = errors.New("invalid archive entry name")
	ErrDuplicateEntry = errors.New("duplicate archive entry")
	ErrWrite          = errors.New("failed to write archive")
)

// File is one archive entry: the on-disk Path stored under Name.
type File struct {
	Name string
	Path string
}

// Create writes files, in order, to a new zip archive at outPath.
// Entries are deflated at the best compression level.
func Create(files []File, outPath string) (err error) {
	if len(files) == 0 {
		return ErrNoEntries
	}

	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if err := ValidateName(f.Name); err != nil {
			return err
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateEntry, f.Name)
		}
		seen[f.Name] = struct{}{}
	}

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) // #nosec G304 -- temp path
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %v", ErrWrite, cerr)
		}
	}()

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	for _, f := range files {
		if err := addFile(zw, f); err != nil {
			_ = zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

func addFile(zw *zip.Writer, f File) error {
	src, err := os.Open(f.Path) // #nosec G304 -- path is a temp file produced by this process
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, f.Name, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, f.Name, err)
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, f.Name, err)
	}
	hdr.Name = f.Name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, f.Name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, f.Name, err)
	}
	return nil
}

// ValidateName rejects names that are empty, absolute, or escape the archive root.
func ValidateName(name string) error {
	if name == "" || strings.ContainsAny(name, "\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if path.IsAbs(name) || name != path.Clean(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if name == ".." || strings.HasPrefix(name, "../") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
