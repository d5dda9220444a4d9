package pipeline

import (
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// RewriteRelativePaths turns relative img[src] and a[href] paths into
// file:// URLs under baseDir so the browser resolves them from a temp file.
// URLs, anchors, absolute paths and paths escaping baseDir are left as is.
// An empty baseDir returns content unchanged.
func RewriteRelativePaths(content, baseDir string) (string, error) {
	if baseDir == "" {
		return content, nil
	}
	t, err := parseTree(content)
	if err != nil {
		return "", err
	}
	if err := rewritePaths(t.root, baseDir); err != nil {
		return "", err
	}
	return t.String()
}

func rewritePaths(root *html.Node, baseDir string) error {
	if baseDir == "" {
		return nil
	}
	dir, err := filepath.Abs(baseDir)
	if err != nil {
		return err
	}
	walk(root, func(n *html.Node) {
		switch n.Data {
		case "img":
			rewriteAttr(n, "src", dir)
		case "a":
			rewriteAttr(n, "href", dir)
		}
	})
	return nil
}

func rewriteAttr(n *html.Node, key, dir string) {
	val, ok := attr(n, key)
	if !ok || !isRelativePath(val) {
		return
	}
	abs := filepath.Join(dir, filepath.FromSlash(val))
	if !within(abs, dir) {
		return
	}
	setAttr(n, key, (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String())
}

// isRelativePath reports whether p is a relative filesystem path.
func isRelativePath(p string) bool {
	if p == "" || strings.HasPrefix(p, "#") || strings.HasPrefix(p, "//") {
		return false
	}
	if u, err := url.Parse(p); err != nil || u.Scheme != "" {
		return false
	}
	return !filepath.IsAbs(p) && !strings.HasPrefix(p, "/")
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
