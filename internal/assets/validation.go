package assets

import "fmt"

// maxNameLength bounds asset names; longer ones are rejected outright.
const maxNameLength = 64

// ValidateAssetName accepts names made of ASCII letters, digits, '-' and
// '_'. Anything else, separators and dots included, is ErrInvalidAssetName.
func ValidateAssetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidAssetName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidAssetName, maxNameLength)
	}
	for i := 0; i < len(name); i++ {
		if !nameByte(name[i]) {
			return fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
		}
	}
	return nil
}

func nameByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	default:
		return c == '-' || c == '_'
	}
}
