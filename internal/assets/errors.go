package assets

import "errors"

var (
	ErrStyleNotFound    = errors.New("style not found")
	ErrTemplateNotFound = errors.New("template not found")

	// ErrInvalidAssetName is returned for names outside [A-Za-z0-9_-].
	ErrInvalidAssetName = errors.New("invalid asset name")

	// ErrInvalidBasePath is returned when a custom asset directory cannot be opened.
	ErrInvalidBasePath = errors.New("invalid base path")

	// ErrAssetRead covers every other read failure, including a symlink that
	// leaves the asset directory.
	ErrAssetRead = errors.New("failed to read asset")
)

// IsNotFound reports whether err means the asset does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStyleNotFound) || errors.Is(err, ErrTemplateNotFound)
}
