package reportpdf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/alnah/go-reportpdf/internal/fileutil"
	"github.com/alnah/go-reportpdf/internal/pipeline"
	"github.com/alnah/go-reportpdf/internal/process"
)

// DefaultRenderTimeout bounds one page load when the context has no deadline.
const DefaultRenderTimeout = 30 * time.Second

// cssPixelsPerInch is the Chrome print resolution of CSS pixels.
const cssPixelsPerInch = 96

var _ FragmentRenderer = (*ChromeRenderer)(nil)

// ChromeOption configures a ChromeRenderer.
type ChromeOption func(*chromeConfig)

type chromeConfig struct {
	loader       AssetLoader
	style        string
	baseDir      string
	timeout      time.Duration
	headingLevel int
	browserBin   string
	noSandbox    bool
	now          func() time.Time
	logger       zerolog.Logger
}

// WithAssetLoader loads styles and fragment templates from loader instead
// of the embedded assets.
func WithAssetLoader(loader AssetLoader) ChromeOption {
	return func(c *chromeConfig) { c.loader = loader }
}

// WithStyle selects the CSS style by name.
func WithStyle(name string) ChromeOption {
	return func(c *chromeConfig) { c.style = name }
}

// WithBaseDir resolves relative image paths in templates against dir.
func WithBaseDir(dir string) ChromeOption {
	return func(c *chromeConfig) { c.baseDir = dir }
}

// WithTimeout sets the page load timeout.
func WithTimeout(d time.Duration) ChromeOption {
	return func(c *chromeConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHeadingLevel sets the deepest heading level listed in fragment tables
// of contents.
func WithHeadingLevel(level int) ChromeOption {
	return func(c *chromeConfig) { c.headingLevel = level }
}

// WithBrowser uses the Chrome binary at bin. noSandbox disables the Chrome
// sandbox, which containers usually require.
func WithBrowser(bin string, noSandbox bool) ChromeOption {
	return func(c *chromeConfig) {
		c.browserBin = bin
		c.noSandbox = noSandbox
	}
}

// WithClock sets the time used to resolve "auto" dates in templates.
func WithClock(now func() time.Time) ChromeOption {
	return func(c *chromeConfig) { c.now = now }
}

// WithRendererLogger sets the renderer logger.
func WithRendererLogger(l zerolog.Logger) ChromeOption {
	return func(c *chromeConfig) { c.logger = l }
}

// ChromeRenderer renders fragment templates to PDF in headless Chrome.
// The browser is launched on first use; Close releases it. A ChromeRenderer
// is safe for concurrent use, each call opening its own tab.
type ChromeRenderer struct {
	compiler *pipeline.Compiler
	cfg      chromeConfig

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewChromeRenderer creates a renderer. The style is loaded immediately so
// a missing style fails here rather than on the first fragment.
func NewChromeRenderer(opts ...ChromeOption) (*ChromeRenderer, error) {
	cfg := chromeConfig{
		style:        DefaultStyle,
		timeout:      DefaultRenderTimeout,
		headingLevel: pipeline.DefaultMaxHeadingLevel,
		browserBin:   os.Getenv("ROD_BROWSER_BIN"),
		now:          time.Now,
	}
	cfg.noSandbox = os.Getenv("CI") == "true" || cfg.browserBin != ""
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.loader == nil {
		loader, err := NewAssetLoader("")
		if err != nil {
			return nil, err
		}
		cfg.loader = loader
	}
	css, err := cfg.loader.LoadStyle(cfg.style)
	if err != nil {
		return nil, err
	}

	return &ChromeRenderer{
		compiler: pipeline.NewCompiler(cfg.loader,
			pipeline.WithStyle(css),
			pipeline.WithBaseDir(cfg.baseDir),
			pipeline.WithClock(cfg.now),
			pipeline.WithMaxHeadingLevel(cfg.headingLevel),
		),
		cfg: cfg,
	}, nil
}

// ensureBrowser lazily launches and connects to the browser.
func (r *ChromeRenderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New()
	if r.cfg.browserBin != "" {
		l = l.Bin(r.cfg.browserBin)
	}
	if r.cfg.noSandbox {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	r.launcher, r.browser = l, browser
	r.cfg.logger.Debug().Int("pid", l.PID()).Msg("browser launched")
	return browser, nil
}

// Close releases browser resources, killing leftover Chrome children.
func (r *ChromeRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	if pid := r.launcher.PID(); pid > 0 {
		if kerr := process.KillProcessGroup(pid); kerr != nil {
			r.cfg.logger.Debug().Err(kerr).Int("pid", pid).Msg("killing browser process group")
		}
	}
	r.launcher.Kill()
	r.launcher.Cleanup()
	r.browser, r.launcher = nil, nil
	return err
}

// RenderFragment compiles the template markup against data, prints it and
// returns the PDF with its heading outline.
func (r *ChromeRenderer) RenderFragment(ctx context.Context, markup string, data *FragmentData, opts *RenderOptions) (*Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &RenderOptions{}
	}

	title := markup
	if data != nil {
		title = data.EntityID
		if data.Title != "" {
			title = data.Title
		}
	}
	compiled, err := r.compiler.Compile(ctx, markup, title, data)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
	}

	htmlPath, cleanup, err := fileutil.WriteTempFile(compiled.HTML, "html")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outPath, err := fileutil.TempPath(opts.Label, "pdf")
	if err != nil {
		return nil, err
	}
	headings, err := r.print(ctx, htmlPath, outPath, compiled.Headings, opts.Page)
	if err != nil {
		fileutil.FailSafeDelete(r.cfg.logger, outPath)
		return nil, err
	}

	return &Fragment{Path: outPath, TOC: BuildTOC(headings)}, nil
}

// print loads htmlPath, resolves the page of every heading and writes the
// PDF to outPath.
func (r *ChromeRenderer) print(ctx context.Context, htmlPath, outPath string, headings []pipeline.Heading, page *PageSettings) ([]Heading, error) {
	browser, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	tab, err := browser.Page(proto.TargetCreateTarget{URL: "file://" + htmlPath})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	defer func() { _ = tab.Close() }()

	timeout := r.cfg.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	p := tab.Context(ctx).Timeout(timeout)

	if err := p.WaitLoad(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	if page == nil {
		page = DefaultPageSettings()
	}
	width, height := page.Dimensions()
	contentWidth := (width - 2*page.Margin) * cssPixelsPerInch
	contentHeight := (height - 2*page.Margin) * cssPixelsPerInch

	if err := (proto.EmulationSetEmulatedMedia{Media: "print"}).Call(p); err != nil {
		return nil, fmt.Errorf("%w: emulating print media: %v", ErrTOCExtract, err)
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             int(contentWidth),
		Height:            int(contentHeight),
		DeviceScaleFactor: 1,
	}).Call(p); err != nil {
		return nil, fmt.Errorf("%w: sizing viewport: %v", ErrTOCExtract, err)
	}

	resolved, err := headingPages(p, headings, contentHeight)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	// Restore the viewport so the print layout is not constrained by it.
	_ = proto.EmulationClearDeviceMetricsOverride{}.Call(p)

	stream, err := p.PDF(buildPDFOptions(page))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}
	if err := writeStream(stream, outPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}
	return resolved, nil
}

// headingPagesJS maps element ids to zero-based page indexes of a layout
// paginated every pageHeight CSS pixels. Missing ids map to -1.
const headingPagesJS = `(ids, pageHeight) => JSON.stringify(ids.map(id => {
	const el = document.getElementById(id);
	if (!el) return -1;
	const top = el.getBoundingClientRect().top + window.scrollY;
	return Math.max(0, Math.floor(top / pageHeight));
}))`

func headingPages(p *rod.Page, headings []pipeline.Heading, pageHeight float64) ([]Heading, error) {
	if len(headings) == 0 {
		return nil, nil
	}
	ids := make([]string, len(headings))
	for i, h := range headings {
		ids[i] = h.ID
	}

	res, err := p.Eval(headingPagesJS, ids, pageHeight)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTOCExtract, err)
	}
	var pages []int
	if err := json.Unmarshal([]byte(res.Value.Str()), &pages); err != nil {
		return nil, fmt.Errorf("%w: decoding pages: %v", ErrTOCExtract, err)
	}
	if len(pages) != len(headings) {
		return nil, fmt.Errorf("%w: %d pages for %d headings", ErrTOCExtract, len(pages), len(headings))
	}

	out := make([]Heading, 0, len(headings))
	for i, h := range headings {
		if pages[i] < 0 {
			continue
		}
		out = append(out, Heading{Level: h.Level, Title: h.Text, Page: pages[i]})
	}
	return out, nil
}

// buildPDFOptions constructs proto.PagePrintToPDF from page settings.
func buildPDFOptions(page *PageSettings) *proto.PagePrintToPDF {
	width, height := page.Dimensions()
	return &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(width),
		PaperHeight:     floatPtr(height),
		MarginTop:       floatPtr(page.Margin),
		MarginBottom:    floatPtr(page.Margin),
		MarginLeft:      floatPtr(page.Margin),
		MarginRight:     floatPtr(page.Margin),
		PrintBackground: true,
	}
}

func writeStream(r io.Reader, path string) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(f, r)
	return err
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}
