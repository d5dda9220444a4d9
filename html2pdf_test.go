package reportpdf

import (
	"context"
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// buildPDFOptions
// ---------------------------------------------------------------------------

func TestBuildPDFOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                  string
		page                  *PageSettings
		wantWidth, wantHeight float64
		wantMargin            float64
	}{
		{
			name:       "nil uses A4 portrait",
			page:       nil,
			wantWidth:  8.27,
			wantHeight: 11.69,
			wantMargin: DefaultMargin,
		},
		{
			name:       "letter portrait",
			page:       &PageSettings{Size: PageSizeLetter, Orientation: OrientationPortrait, Margin: 1},
			wantWidth:  8.5,
			wantHeight: 11,
			wantMargin: 1,
		},
		{
			name:       "legal landscape swaps dimensions",
			page:       &PageSettings{Size: PageSizeLegal, Orientation: OrientationLandscape, Margin: 0.25},
			wantWidth:  14,
			wantHeight: 8.5,
			wantMargin: 0.25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			page := tt.page
			if page == nil {
				page = DefaultPageSettings()
			}
			got := buildPDFOptions(page)

			if *got.PaperWidth != tt.wantWidth || *got.PaperHeight != tt.wantHeight {
				t.Errorf("paper = %vx%v, want %vx%v", *got.PaperWidth, *got.PaperHeight, tt.wantWidth, tt.wantHeight)
			}
			for name, m := range map[string]*float64{
				"top": got.MarginTop, "bottom": got.MarginBottom,
				"left": got.MarginLeft, "right": got.MarginRight,
			} {
				if *m != tt.wantMargin {
					t.Errorf("margin %s = %v, want %v", name, *m, tt.wantMargin)
				}
			}
			if !got.PrintBackground {
				t.Error("PrintBackground = false, want true")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ChromeRenderer without a browser
// ---------------------------------------------------------------------------
//
// Notes:
// - Templates are compiled before the browser is launched, so template and
//   context errors are observable without Chrome installed.

func TestNewChromeRenderer_MissingStyle(t *testing.T) {
	t.Parallel()

	_, err := NewChromeRenderer(WithStyle("no-such-style"))
	if !errors.Is(err, ErrStyleNotFound) {
		t.Errorf("NewChromeRenderer() error = %v, want ErrStyleNotFound", err)
	}
}

func TestChromeRenderer_RenderFragment_Errors(t *testing.T) {
	t.Parallel()

	r, err := NewChromeRenderer()
	if err != nil {
		t.Fatalf("NewChromeRenderer() error = %v", err)
	}
	defer r.Close()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		markup  string
		wantErr error
	}{
		{"cancelled context", cancelled, TemplateBody, context.Canceled},
		{"unknown template", context.Background(), "no-such-template", ErrTemplate},
		{"invalid template name", context.Background(), "../body", ErrTemplate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := &FragmentData{EntityID: "42", Group: GroupBody}
			_, err := r.RenderFragment(tt.ctx, tt.markup, data, &RenderOptions{Label: "42-body-1"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RenderFragment() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChromeRenderer_CloseWithoutBrowser(t *testing.T) {
	t.Parallel()

	r, err := NewChromeRenderer()
	if err != nil {
		t.Fatalf("NewChromeRenderer() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
