package reportpdf

import (
	"errors"

	"github.com/alnah/go-reportpdf/internal/assets"
)

// Asset name constants for built-in styles and fragment templates.
const (
	// DefaultStyle is the name of the built-in CSS style.
	DefaultStyle = assets.DefaultStyleName

	TemplateBody   = assets.TemplateBody
	TemplateStep   = assets.TemplateStep
	TemplateSample = assets.TemplateSample
	TemplateReview = assets.TemplateReview
)

// AssetLoader supplies the CSS style and fragment templates a renderer
// compiles. Names carry no extension. A missing asset is reported as
// ErrStyleNotFound or ErrTemplateNotFound.
type AssetLoader interface {
	LoadStyle(name string) (string, error)
	LoadTemplate(name string) (string, error)
}

// NewAssetLoader returns the embedded assets overridden, file by file, by
// styles/{name}.css and templates/{name}.html under basePath. An empty
// basePath selects the embedded assets alone. A basePath that is not a
// readable directory is ErrInvalidAssetPath.
func NewAssetLoader(basePath string) (AssetLoader, error) {
	resolver, err := assets.NewAssetResolver(basePath)
	if err != nil {
		return nil, convertAssetError(err)
	}
	return &assetLoaderAdapter{resolver: resolver}, nil
}

// Styles lists the names of the built-in styles.
func Styles() []string {
	return assets.NewEmbeddedLoader().Styles()
}

// assetLoaderAdapter wraps the internal resolver to return public errors.
type assetLoaderAdapter struct {
	resolver *assets.AssetResolver
}

func (a *assetLoaderAdapter) LoadStyle(name string) (string, error) {
	content, err := a.resolver.LoadStyle(name)
	return content, convertAssetError(err)
}

func (a *assetLoaderAdapter) LoadTemplate(name string) (string, error) {
	content, err := a.resolver.LoadTemplate(name)
	return content, convertAssetError(err)
}

// assetErrors pairs internal asset sentinels with their public match.
var assetErrors = []struct{ internal, public error }{
	{assets.ErrStyleNotFound, ErrStyleNotFound},
	{assets.ErrTemplateNotFound, ErrTemplateNotFound},
	{assets.ErrInvalidBasePath, ErrInvalidAssetPath},
	{assets.ErrInvalidAssetName, ErrInvalidAssetName},
}

func convertAssetError(err error) error {
	if err == nil {
		return nil
	}
	for _, e := range assetErrors {
		if errors.Is(err, e.internal) {
			return wrapError(e.public, err)
		}
	}
	return err
}

// wrapError keeps the original message and matches the public sentinel
// with errors.Is.
func wrapError(sentinel, original error) error {
	return &wrappedAssetError{sentinel: sentinel, original: original}
}

type wrappedAssetError struct {
	sentinel error
	original error
}

func (e *wrappedAssetError) Error() string { return e.original.Error() }

// Unwrap returns the public sentinel; internal errors stay unexported.
func (e *wrappedAssetError) Unwrap() error { return e.sentinel }
