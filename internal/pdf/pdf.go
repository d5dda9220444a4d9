// Package pdf wraps the pdfcpu operations the assembly core delegates to:
// counting pages, merging fragments, writing outlines, importing images and
// stamping captions.
package pdf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Sentinel errors for PDF operations.
var (
	ErrPageCount      = errors.New("failed to count pages")
	ErrMerge          = errors.New("failed to merge documents")
	ErrNoInput        = errors.New("no input documents")
	ErrOutline        = errors.New("failed to write outline")
	ErrPageOutOfRange = errors.New("page index out of range")
	ErrInvalidRef     = errors.New("invalid page reference")
	ErrImageImport    = errors.New("failed to import image")
	ErrCaption        = errors.New("failed to stamp caption")
)

var disableConfigDir sync.Once

// configuration returns a fresh relaxed-validation configuration.
// pdfcpu mutates the configuration it is given, so it is never shared.
func configuration() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// CountPages opens path and returns its page count.
func CountPages(path string) (int, error) {
	f, err := os.Open(path) // #nosec G304 -- path is a temp file produced by this process
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPageCount, err)
	}
	defer f.Close()

	n, err := api.PageCount(f, configuration())
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrPageCount, path, err)
	}
	return n, nil
}

// Merge concatenates paths, in order, into outPath.
func Merge(paths []string, outPath string) error {
	switch len(paths) {
	case 0:
		return ErrNoInput
	case 1:
		if err := copyFile(paths[0], outPath); err != nil {
			return fmt.Errorf("%w: %v", ErrMerge, err)
		}
		return nil
	}

	if err := api.MergeCreateFile(paths, outPath, false, configuration()); err != nil {
		return fmt.Errorf("%w: %v", ErrMerge, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- path is a temp file produced by this process
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) // #nosec G304 -- temp path
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
