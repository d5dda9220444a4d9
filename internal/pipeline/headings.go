package pipeline

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Attributes that control the table of contents.
const (
	// TOCSkipAttr excludes a heading from the table of contents.
	TOCSkipAttr = "data-toc-skip"

	// TOCTitleAttr makes any element a table of contents entry with the
	// attribute value as title. TOCLevelAttr sets its level (default 1).
	TOCTitleAttr = "data-toc-title"
	TOCLevelAttr = "data-toc-level"
)

// DefaultMaxHeadingLevel is the deepest heading level listed.
const DefaultMaxHeadingLevel = 3

// Heading is a table of contents entry of a compiled fragment.
type Heading struct {
	Level int
	ID    string
	Text  string
}

// AnnotateHeadings gives every listed heading a unique id and returns the
// headings in document order. h1 to h{maxLevel} are listed unless marked
// with TOCSkipAttr; so is any element carrying TOCTitleAttr. Existing ids
// are kept.
func AnnotateHeadings(content string, maxLevel int) (string, []Heading, error) {
	t, err := parseTree(content)
	if err != nil {
		return "", nil, err
	}
	headings := annotate(t.root, maxLevel)
	out, err := t.String()
	if err != nil {
		return "", nil, err
	}
	return out, headings, nil
}

func annotate(root *html.Node, maxLevel int) []Heading {
	if maxLevel < 1 || maxLevel > 6 {
		maxLevel = DefaultMaxHeadingLevel
	}

	used := make(map[string]int)
	walk(root, func(n *html.Node) {
		if id, ok := attr(n, "id"); ok && id != "" {
			used[id]++
		}
	})

	var headings []Heading
	walk(root, func(n *html.Node) {
		h, ok := headingOf(n, maxLevel)
		if !ok {
			return
		}
		if id, has := attr(n, "id"); has && id != "" {
			h.ID = id
		} else {
			h.ID = uniqueID(slugify(h.Text), used)
			setAttr(n, "id", h.ID)
		}
		headings = append(headings, h)
	})
	return headings
}

func headingOf(n *html.Node, maxLevel int) (Heading, bool) {
	if title, ok := attr(n, TOCTitleAttr); ok && strings.TrimSpace(title) != "" {
		level := 1
		if v, ok := attr(n, TOCLevelAttr); ok {
			if l, err := strconv.Atoi(v); err == nil && l >= 1 && l <= 6 {
				level = l
			}
		}
		return Heading{Level: level, Text: strings.TrimSpace(title)}, true
	}

	if len(n.Data) != 2 || n.Data[0] != 'h' || n.Data[1] < '1' || n.Data[1] > '6' {
		return Heading{}, false
	}
	level := int(n.Data[1] - '0')
	if level > maxLevel {
		return Heading{}, false
	}
	if _, skip := attr(n, TOCSkipAttr); skip {
		return Heading{}, false
	}
	text := strings.Join(strings.Fields(textContent(n)), " ")
	if text == "" {
		return Heading{}, false
	}
	return Heading{Level: level, Text: text}, true
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

// slugify lowercases s and joins its letters and digits with dashes.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "section"
	}
	return b.String()
}

func uniqueID(base string, used map[string]int) string {
	id := base
	for n := 2; used[id] > 0; n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	used[id]++
	return id
}
