package reportpdf

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewAssetLoader_Embedded(t *testing.T) {
	t.Parallel()

	loader, err := NewAssetLoader("")
	if err != nil {
		t.Fatalf("NewAssetLoader(\"\") error = %v", err)
	}

	css, err := loader.LoadStyle(DefaultStyle)
	if err != nil || css == "" {
		t.Errorf("LoadStyle(%q) = %d bytes, %v", DefaultStyle, len(css), err)
	}

	for _, name := range []string{TemplateBody, TemplateStep, TemplateSample, TemplateReview} {
		tpl, err := loader.LoadTemplate(name)
		if err != nil {
			t.Errorf("LoadTemplate(%q) error = %v", name, err)
			continue
		}
		if !strings.Contains(tpl, "{{") {
			t.Errorf("LoadTemplate(%q) has no template actions", name)
		}
	}
}

func TestNewAssetLoader_InvalidPath(t *testing.T) {
	t.Parallel()

	_, err := NewAssetLoader("/nonexistent/path/to/assets")
	if !errors.Is(err, ErrInvalidAssetPath) {
		t.Errorf("NewAssetLoader() error = %v, want ErrInvalidAssetPath", err)
	}
}

func TestNewAssetLoader_CustomOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, sub := range []string{"styles", "templates"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	customCSS := "body { color: red; }"
	customStep := `<h2>{{.Title}}</h2>`
	if err := os.WriteFile(filepath.Join(dir, "styles", DefaultStyle+".css"), []byte(customCSS), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "templates", "step.html"), []byte(customStep), 0o644); err != nil {
		t.Fatal(err)
	}

	loader, err := NewAssetLoader(dir)
	if err != nil {
		t.Fatalf("NewAssetLoader() error = %v", err)
	}

	if css, _ := loader.LoadStyle(DefaultStyle); css != customCSS {
		t.Errorf("LoadStyle() = %q, want the custom style", css)
	}
	if tpl, _ := loader.LoadTemplate(TemplateStep); tpl != customStep {
		t.Errorf("LoadTemplate(step) = %q, want the custom template", tpl)
	}
	// Anything not overridden falls back to the embedded assets.
	if tpl, err := loader.LoadTemplate(TemplateBody); err != nil || tpl == "" {
		t.Errorf("LoadTemplate(body) fallback = %q, %v", tpl, err)
	}
}

func TestAssetLoader_Errors(t *testing.T) {
	t.Parallel()

	loader, err := NewAssetLoader("")
	if err != nil {
		t.Fatalf("NewAssetLoader() error = %v", err)
	}

	tests := []struct {
		name    string
		load    func() error
		wantErr error
	}{
		{
			name:    "style not found",
			load:    func() error { _, err := loader.LoadStyle("nonexistent"); return err },
			wantErr: ErrStyleNotFound,
		},
		{
			name:    "template not found",
			load:    func() error { _, err := loader.LoadTemplate("nonexistent"); return err },
			wantErr: ErrTemplateNotFound,
		},
		{
			name:    "traversal in template name",
			load:    func() error { _, err := loader.LoadTemplate("../body"); return err },
			wantErr: ErrInvalidAssetName,
		},
		{
			name:    "empty style name",
			load:    func() error { _, err := loader.LoadStyle(""); return err },
			wantErr: ErrInvalidAssetName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.load()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWrappedAssetError_KeepsMessage(t *testing.T) {
	t.Parallel()

	loader, err := NewAssetLoader("")
	if err != nil {
		t.Fatalf("NewAssetLoader() error = %v", err)
	}

	_, err = loader.LoadStyle("missing-style")
	if err == nil || !strings.Contains(err.Error(), "missing-style") {
		t.Errorf("error = %v, want the style name in the message", err)
	}
	if convertAssetError(nil) != nil {
		t.Error("convertAssetError(nil) != nil")
	}
}
