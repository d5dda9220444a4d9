package pipeline

import (
	"strings"
	"testing"
)

func TestWrapDocument(t *testing.T) {
	t.Parallel()

	got := wrapDocument(`A <b> & %s`, "<p>body</p>")

	if !strings.HasPrefix(got, "<!DOCTYPE html>") {
		t.Errorf("missing doctype: %s", got)
	}
	if !strings.Contains(got, "<title>A &lt;b&gt; &amp; %s</title>") {
		t.Errorf("title not escaped: %s", got)
	}
	if !strings.Contains(got, "<body>\n<p>body</p>\n</body>") {
		t.Errorf("body not wrapped: %s", got)
	}
}

func TestInjectCSS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		css  string
		want string
	}{
		{
			name: "before head close",
			html: "<html><head></head><body></body></html>",
			css:  "p{}",
			want: "<html><head><style>p{}</style></head><body></body></html>",
		},
		{
			name: "after body open without head",
			html: `<body class="x"><p></p></body>`,
			css:  "p{}",
			want: `<body class="x"><style>p{}</style><p></p></body>`,
		},
		{
			name: "prepended to fragment",
			html: "<p></p>",
			css:  "p{}",
			want: "<style>p{}</style><p></p>",
		},
		{
			name: "empty css unchanged",
			html: "<p></p>",
			css:  "",
			want: "<p></p>",
		},
		{
			name: "style close escaped",
			html: "<p></p>",
			css:  "p{}</style><script>",
			want: `<style>p{}<\/style><script></style><p></p>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := InjectCSS(tt.html, tt.css); got != tt.want {
				t.Errorf("InjectCSS() = %q, want %q", got, tt.want)
			}
		})
	}
}
