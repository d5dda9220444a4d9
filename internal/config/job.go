package config

import (
	"fmt"
	"os"

	"github.com/alnah/go-reportpdf/internal/yamlutil"
)

// MaxJobSize bounds job files, which carry every work item of a run.
const MaxJobSize = 16 << 20

// LoadJob decodes the YAML job file at path into v, rejecting unknown fields.
func LoadJob(path string, v any) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("reading job file: %w", err)
	}
	if info.Size() > MaxJobSize {
		return fmt.Errorf("%w: %s is %d bytes (max %d)", ErrJobParse, path, info.Size(), MaxJobSize)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- job path is user-provided
	if err != nil {
		return fmt.Errorf("reading job file: %w", err)
	}
	if err := yamlutil.UnmarshalStrictLimit(data, v, MaxJobSize); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrJobParse, path, err)
	}
	return nil
}
