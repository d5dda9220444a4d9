package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// ErrMarkdown indicates a rich-text field could not be converted.
var ErrMarkdown = errors.New("markdown conversion failed")

// Highlight placeholders use Private Use Area characters so they pass
// through goldmark untouched and become <mark> afterwards.
const (
	markStart = "\uE000"
	markEnd   = "\uE001"
)

var (
	crlfOrCR           = regexp.MustCompile(`\r\n?`)
	multipleBlankLines = regexp.MustCompile(`\n{3,}`)
	highlightPattern   = regexp.MustCompile(`==(.*?)==`)
)

// Markdown converts rich-text fields to HTML fragments.
// It is safe for concurrent use.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates a converter with GFM, footnotes and chroma
// highlighting. Raw HTML in the source is not rendered.
func NewMarkdown() *Markdown {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
			),
		),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)
	return &Markdown{md: md}
}

// HTML converts src. ==text== becomes <mark>text</mark>.
func (m *Markdown) HTML(src string) (template.HTML, error) {
	src = crlfOrCR.ReplaceAllString(src, "\n")
	src = highlightPattern.ReplaceAllString(src, markStart+"$1"+markEnd)
	src = multipleBlankLines.ReplaceAllString(src, "\n\n")

	var buf bytes.Buffer
	if err := m.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMarkdown, err)
	}

	out := strings.NewReplacer(markStart, "<mark>", markEnd, "</mark>").Replace(buf.String())
	return template.HTML(out), nil // #nosec G203 -- goldmark output without unsafe HTML
}
