package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/alnah/go-reportpdf/internal/assets"
	"github.com/alnah/go-reportpdf/internal/dateutil"
)

// Sentinel errors for fragment compilation.
var (
	ErrTemplateParse   = errors.New("template parse failed")
	ErrTemplateExecute = errors.New("template execution failed")
)

// Compiled is a printable HTML document and its table of contents.
type Compiled struct {
	HTML     string
	Headings []Heading
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithStyle inlines css into every compiled document.
func WithStyle(css string) Option {
	return func(c *Compiler) { c.css = css }
}

// WithBaseDir resolves relative image and link paths against dir.
func WithBaseDir(dir string) Option {
	return func(c *Compiler) { c.baseDir = dir }
}

// WithClock sets the time used by "auto" dates.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) { c.now = now }
}

// WithMaxHeadingLevel sets the deepest heading level listed.
func WithMaxHeadingLevel(level int) Option {
	return func(c *Compiler) { c.maxLevel = level }
}

// Compiler executes named fragment templates. Parsed templates are cached;
// a Compiler is safe for concurrent use.
type Compiler struct {
	loader   assets.AssetLoader
	md       *Markdown
	css      string
	baseDir  string
	maxLevel int
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewCompiler creates a Compiler loading templates from loader.
func NewCompiler(loader assets.AssetLoader, opts ...Option) *Compiler {
	c := &Compiler{
		loader:   loader,
		md:       NewMarkdown(),
		maxLevel: DefaultMaxHeadingLevel,
		now:      time.Now,
		cache:    make(map[string]*template.Template),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile executes the template name against data and returns a complete
// HTML document titled title.
func (c *Compiler) Compile(ctx context.Context, name, title string, data any) (*Compiled, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmpl, err := c.template(name)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateExecute, name, err)
	}

	t, err := parseTree(buf.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: parsing output: %v", ErrTemplateExecute, name, err)
	}
	headings := annotate(t.root, c.maxLevel)
	if err := rewritePaths(t.root, c.baseDir); err != nil {
		return nil, fmt.Errorf("%w: %s: rewriting paths: %v", ErrTemplateExecute, name, err)
	}
	body, err := t.String()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: rendering output: %v", ErrTemplateExecute, name, err)
	}

	return &Compiled{
		HTML:     InjectCSS(wrapDocument(title, body), c.css),
		Headings: headings,
	}, nil
}

func (c *Compiler) template(name string) (*template.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.cache[name]; ok {
		return t, nil
	}

	src, err := c.loader.LoadTemplate(name)
	if err != nil {
		return nil, err
	}
	t, err := template.New(name).Funcs(c.funcs()).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateParse, name, err)
	}
	c.cache[name] = t
	return t, nil
}

func (c *Compiler) funcs() template.FuncMap {
	return template.FuncMap{
		"markdown": func(v any) (template.HTML, error) {
			if v == nil {
				return "", nil
			}
			return c.md.HTML(fmt.Sprint(v))
		},
		"date": func(v any, format ...string) (string, error) {
			return dateutil.Format(v, c.now(), format...)
		},
		"inc": func(i int) int { return i + 1 },
	}
}
