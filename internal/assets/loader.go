package assets

// AssetLoader loads CSS styles and fragment templates by name.
type AssetLoader interface {
	// LoadStyle loads a CSS style by name (without .css extension).
	LoadStyle(name string) (string, error)

	// LoadTemplate loads a fragment template by name (without .html extension).
	LoadTemplate(name string) (string, error)
}
