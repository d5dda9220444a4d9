package reportpdf

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Grouping node titles.
const (
	StepsTitle       = "Steps"
	SamplesTitle     = "Samples"
	AttachmentsTitle = "Attachments"
	ReviewTitle      = "Review"
)

var groupTitles = map[Group]string{
	GroupSteps:       StepsTitle,
	GroupSamples:     SamplesTitle,
	GroupAttachments: AttachmentsTitle,
}

// layout is the merge input and table of contents of one or more items.
type layout struct {
	files []string
	toc   []*TocNode
	pages int
}

// layoutItem places the fragments of res starting at page start.
// Fragments follow the fixed group order; each fragment-local subtree is
// stepped up by the page its fragment starts on.
func layoutItem(res *AggregateResult, title string, start int) (*layout, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingResult, title)
	}

	root := &TocNode{Title: title, Page: intPtr(start)}
	out := &layout{toc: []*TocNode{root}}
	cursor := start

	for _, g := range Groups {
		frags := res.Fragments[g]
		if len(frags) == 0 {
			continue
		}

		groupStart := cursor
		parent := root
		if t, ok := groupTitles[g]; ok {
			parent = &TocNode{Title: t, Page: intPtr(cursor)}
			root.Children = append(root.Children, parent)
		}

		for _, frag := range frags {
			pages, ok := res.Pages[g][frag.Path]
			if frag.Path == "" || !ok {
				return nil, fmt.Errorf("%w: %s: %s fragment %q not counted", ErrMissingResult, title, g, frag.Path)
			}

			local := StepUp(frag.TOC, 0)
			if pages > 0 {
				clampPages(local, pages-1)
				local = StepUp(local, cursor)
			} else {
				// An empty fragment has no page to point at.
				local = nil
			}

			if g == GroupBody {
				parent.Children = append(parent.Children, local...)
			} else {
				node := &TocNode{Title: frag.Title, Children: local}
				if pages > 0 {
					node.Page = intPtr(cursor)
				}
				parent.Children = append(parent.Children, node)
			}

			out.files = append(out.files, frag.Path)
			cursor += pages
		}
		if parent != root && cursor == groupStart {
			parent.Page = nil
		}
	}

	out.pages = cursor - start
	if out.pages == 0 {
		root.Page = nil
	}
	return out, nil
}

// layoutAll places every item one after another, offsetting each item by
// the pages of the items before it.
func layoutAll(results []*AggregateResult, titles []string) (*layout, error) {
	all := &layout{}
	for i, res := range results {
		l, err := layoutItem(res, titles[i], all.pages)
		if err != nil {
			return nil, err
		}
		all.files = append(all.files, l.files...)
		all.toc = append(all.toc, l.toc...)
		all.pages += l.pages
	}
	return all, nil
}

// NamingRule names the archive entry of the item at index.
type NamingRule func(index int, item WorkItem) string

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeName reduces name to a single safe archive path element.
func sanitizeName(name string, index int) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Trim(unsafeName.ReplaceAllString(name, "_"), "._")
	if name == "" {
		name = "document-" + strconv.Itoa(index+1)
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

// uniqueNames applies rule to every item, sanitizes the results and
// suffixes repeats with -2, -3 and so on. A nil rule names each item
// "<entity id>.pdf" from ids.
func uniqueNames(items []WorkItem, ids []string, rule NamingRule) []string {
	seen := make(map[string]int, len(items))
	names := make([]string, len(items))
	for i, item := range items {
		raw := ids[i]
		if rule != nil {
			raw = rule(i, item)
		}
		name := sanitizeName(raw, i)
		key := strings.ToLower(name)
		seen[key]++
		if n := seen[key]; n > 1 {
			ext := path.Ext(name)
			candidate := fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
			for seen[strings.ToLower(candidate)] > 0 {
				n++
				candidate = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
			}
			seen[strings.ToLower(candidate)]++
			name = candidate
		}
		names[i] = name
	}
	return names
}
