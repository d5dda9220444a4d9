package pipeline

import (
	"reflect"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// AnnotateHeadings
// ---------------------------------------------------------------------------

func TestAnnotateHeadings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		html     string
		maxLevel int
		want     []Heading
	}{
		{
			name:     "levels up to max",
			html:     `<h1>Intro</h1><h2>Scope</h2><h3>Detail</h3><h4>Too deep</h4>`,
			maxLevel: 3,
			want: []Heading{
				{Level: 1, ID: "intro", Text: "Intro"},
				{Level: 2, ID: "scope", Text: "Scope"},
				{Level: 3, ID: "detail", Text: "Detail"},
			},
		},
		{
			name:     "skip attribute",
			html:     `<h1 data-toc-skip>Title</h1><h2>Kept</h2>`,
			maxLevel: 3,
			want:     []Heading{{Level: 2, ID: "kept", Text: "Kept"}},
		},
		{
			name:     "existing id kept",
			html:     `<h2 id="custom">Named</h2>`,
			maxLevel: 3,
			want:     []Heading{{Level: 2, ID: "custom", Text: "Named"}},
		},
		{
			name:     "duplicate titles get suffixes",
			html:     `<h2>Result</h2><h2>Result</h2><h2>Result</h2>`,
			maxLevel: 3,
			want: []Heading{
				{Level: 2, ID: "result", Text: "Result"},
				{Level: 2, ID: "result-2", Text: "Result"},
				{Level: 2, ID: "result-3", Text: "Result"},
			},
		},
		{
			name:     "generated id avoids existing ids",
			html:     `<p id="summary"></p><h2>Summary</h2>`,
			maxLevel: 3,
			want:     []Heading{{Level: 2, ID: "summary-2", Text: "Summary"}},
		},
		{
			name:     "title attribute on any element",
			html:     `<div data-toc-title="Figures" data-toc-level="2"></div><section data-toc-title=" Notes "></section>`,
			maxLevel: 3,
			want: []Heading{
				{Level: 2, ID: "figures", Text: "Figures"},
				{Level: 1, ID: "notes", Text: "Notes"},
			},
		},
		{
			name:     "nested markup and whitespace collapse",
			html:     "<h2>Flow <em>rate</em>\n  at 20°C</h2>",
			maxLevel: 3,
			want:     []Heading{{Level: 2, ID: "flow-rate-at-20-c", Text: "Flow rate at 20°C"}},
		},
		{
			name:     "empty heading ignored",
			html:     `<h2>  </h2>`,
			maxLevel: 3,
			want:     nil,
		},
		{
			name:     "invalid max level uses default",
			html:     `<h3>Three</h3><h4>Four</h4>`,
			maxLevel: 0,
			want:     []Heading{{Level: 3, ID: "three", Text: "Three"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, got, err := AnnotateHeadings(tt.html, tt.maxLevel)
			if err != nil {
				t.Fatalf("AnnotateHeadings() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("headings = %+v, want %+v", got, tt.want)
			}
			for _, h := range got {
				if !strings.Contains(out, `id="`+h.ID+`"`) {
					t.Errorf("output missing id %q: %s", h.ID, out)
				}
			}
		})
	}
}

func TestAnnotateHeadings_FragmentStaysFragment(t *testing.T) {
	t.Parallel()

	out, _, err := AnnotateHeadings(`<h1>A</h1><p>text</p>`, 3)
	if err != nil {
		t.Fatalf("AnnotateHeadings() error = %v", err)
	}
	if strings.Contains(out, "<html") || strings.Contains(out, "<body") {
		t.Errorf("fragment was wrapped in a document: %s", out)
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello-world"},
		{"  Leading and trailing  ", "leading-and-trailing"},
		{"Étape 2: résultats", "étape-2-résultats"},
		{"!!!", "section"},
		{"", "section"},
	}

	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
