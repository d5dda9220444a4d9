package assets

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed styles/*.css templates/*.html
var embedded embed.FS

// EmbeddedLoader loads the assets compiled into the binary.
type EmbeddedLoader struct{}

// NewEmbeddedLoader creates an EmbeddedLoader.
func NewEmbeddedLoader() *EmbeddedLoader {
	return &EmbeddedLoader{}
}

func (e *EmbeddedLoader) LoadStyle(name string) (string, error) {
	return e.load(KindStyle, name)
}

func (e *EmbeddedLoader) LoadTemplate(name string) (string, error) {
	return e.load(KindTemplate, name)
}

func (e *EmbeddedLoader) load(k Kind, name string) (string, error) {
	if err := ValidateAssetName(name); err != nil {
		return "", err
	}
	content, err := embedded.ReadFile(k.file(name))
	if err != nil {
		return "", fmt.Errorf("%w: %q", k.notFound(), name)
	}
	return string(content), nil
}

// Styles returns the names of the embedded styles, sorted.
func (e *EmbeddedLoader) Styles() []string {
	return names(embedded, "styles/*.css")
}

// Templates returns the names of the embedded templates, sorted.
func (e *EmbeddedLoader) Templates() []string {
	return names(embedded, "templates/*.html")
}

func names(fsys fs.FS, pattern string) []string {
	matches, _ := fs.Glob(fsys, pattern)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		base := path.Base(m)
		out = append(out, strings.TrimSuffix(base, path.Ext(base)))
	}
	sort.Strings(out)
	return out
}

var _ AssetLoader = (*EmbeddedLoader)(nil)
