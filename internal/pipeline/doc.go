// Package pipeline compiles fragment templates into printable HTML.
//
// A fragment is compiled in four stages:
//   - html/template execution against the fragment data, with a markdown
//     function backed by goldmark for rich-text fields
//   - heading annotation: h1-h3 get stable unique ids and become the
//     fragment's table of contents, unless marked data-toc-skip
//   - relative image and link paths rewritten to file:// URLs
//   - wrapping in an HTML document with the style sheet inlined
//
// Page layout and heading page numbers are left to the PDF renderer in
// the root package.
package pipeline
