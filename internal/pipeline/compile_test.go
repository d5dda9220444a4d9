package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alnah/go-reportpdf/internal/assets"
)

// mapLoader serves templates from memory and counts loads.
type mapLoader struct {
	mu        sync.Mutex
	templates map[string]string
	loads     int
}

func (l *mapLoader) LoadStyle(name string) (string, error) {
	return "", fmt.Errorf("%w: %q", assets.ErrStyleNotFound, name)
}

func (l *mapLoader) LoadTemplate(name string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	src, ok := l.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", assets.ErrTemplateNotFound, name)
	}
	return src, nil
}

var fixedNow = func() time.Time { return time.Date(2026, time.March, 9, 10, 0, 0, 0, time.UTC) }

// ---------------------------------------------------------------------------
// Compiler.Compile
// ---------------------------------------------------------------------------

func TestCompiler_Compile(t *testing.T) {
	t.Parallel()

	loader := &mapLoader{templates: map[string]string{
		"step": `<h1 data-toc-skip>{{.Title}}</h1><h2>Step {{inc .Index}}</h2>{{markdown .Body}}<p class="date">{{date .Date}}</p><p class="long">{{date .Date "long"}}</p>`,
	}}
	c := NewCompiler(loader, WithStyle("h2{color:red}"), WithClock(fixedNow))

	data := map[string]any{
		"Title": "Report <42>",
		"Index": 0,
		"Body":  "## Sub section\n\nsome **text**",
		"Date":  "2026-01-15",
	}
	got, err := c.Compile(context.Background(), "step", "Report <42>", data)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	for _, want := range []string{
		"<!DOCTYPE html>",
		"<title>Report &lt;42&gt;</title>",
		"<style>h2{color:red}</style>",
		`<h2 id="step-1">Step 1</h2>`,
		"<strong>text</strong>",
		`<p class="date">2026-01-15</p>`,
		`<p class="long">January 15, 2026</p>`,
	} {
		if !strings.Contains(got.HTML, want) {
			t.Errorf("HTML missing %q in:\n%s", want, got.HTML)
		}
	}

	wantHeadings := []Heading{
		{Level: 2, ID: "step-1", Text: "Step 1"},
		{Level: 2, ID: "sub-section", Text: "Sub section"},
	}
	if len(got.Headings) != len(wantHeadings) {
		t.Fatalf("headings = %+v, want %+v", got.Headings, wantHeadings)
	}
	for i, h := range wantHeadings {
		if got.Headings[i] != h {
			t.Errorf("heading[%d] = %+v, want %+v", i, got.Headings[i], h)
		}
	}
}

func TestCompiler_Compile_Errors(t *testing.T) {
	t.Parallel()

	loader := &mapLoader{templates: map[string]string{
		"broken":  `{{.Missing`,
		"failing": `{{date .When}}`,
	}}
	c := NewCompiler(loader)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		tmpl    string
		data    any
		wantErr error
	}{
		{"cancelled context", cancelled, "broken", nil, context.Canceled},
		{"missing template", context.Background(), "nope", nil, assets.ErrTemplateNotFound},
		{"parse error", context.Background(), "broken", nil, ErrTemplateParse},
		{"execution error", context.Background(), "failing", map[string]any{"When": "auto:"}, ErrTemplateExecute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := c.Compile(tt.ctx, tt.tmpl, "t", tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Compile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompiler_CachesTemplates(t *testing.T) {
	t.Parallel()

	loader := &mapLoader{templates: map[string]string{"body": `<p>{{.}}</p>`}}
	c := NewCompiler(loader)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := c.Compile(context.Background(), "body", "t", i); err != nil {
				t.Errorf("Compile() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	loader.mu.Lock()
	defer loader.mu.Unlock()
	if loader.loads != 1 {
		t.Errorf("template loaded %d times, want 1", loader.loads)
	}
}

func TestCompiler_RewritesRelativePaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	loader := &mapLoader{templates: map[string]string{
		"body": `<img src="images/logo.png"><img src="https://example.com/x.png"><img src="../escape.png">`,
	}}
	c := NewCompiler(loader, WithBaseDir(dir))

	got, err := c.Compile(context.Background(), "body", "t", nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !strings.Contains(got.HTML, `src="file://`) {
		t.Errorf("relative path not rewritten:\n%s", got.HTML)
	}
	if !strings.Contains(got.HTML, `src="https://example.com/x.png"`) {
		t.Errorf("absolute URL changed:\n%s", got.HTML)
	}
	if !strings.Contains(got.HTML, `src="../escape.png"`) {
		t.Errorf("path outside base dir was rewritten:\n%s", got.HTML)
	}
}

func TestCompiler_EmbeddedTemplates(t *testing.T) {
	t.Parallel()

	c := NewCompiler(assets.NewEmbeddedLoader(), WithClock(fixedNow))

	type section struct {
		Title string
		Data  map[string]any
	}
	data := struct {
		EntityID    string
		Title       string
		Index       int
		Section     section
		Attachments []struct{ Caption string }
	}{
		EntityID: "42",
		Title:    "Inspection",
		Section: section{Data: map[string]any{
			"summary": "All **good**",
			"content": "## Findings\n\nNone.",
		}},
	}

	for _, name := range assets.FragmentTemplates {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if _, err := c.Compile(context.Background(), name, "Inspection", data); err != nil {
				t.Errorf("Compile(%q) error = %v", name, err)
			}
		})
	}
}
