package assets

// Kind selects the directory, extension and not-found error of an asset.
type Kind int

const (
	KindStyle Kind = iota
	KindTemplate
)

func (k Kind) String() string {
	if k == KindStyle {
		return "style"
	}
	return "template"
}

// file returns the slash-separated path of name under an asset root.
func (k Kind) file(name string) string {
	if k == KindStyle {
		return "styles/" + name + ".css"
	}
	return "templates/" + name + ".html"
}

func (k Kind) notFound() error {
	if k == KindStyle {
		return ErrStyleNotFound
	}
	return ErrTemplateNotFound
}
