package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// PageRef is a resolved physical page of an Outline's document.
// The zero value refers to no page.
type PageRef struct {
	number int // 1-based
}

// Number returns the 1-based page number, or 0 for the zero PageRef.
func (r PageRef) Number() int { return r.number }

// Entry is an outline entry written by Outline.WriteEntry.
type Entry struct {
	title string
	page  int
	kids  []*Entry
}

// Outline collects bookmark entries for one merged document and writes them
// as its outline root on Commit.
type Outline struct {
	path  string
	pages int
	roots []*Entry
}

// OpenOutline reads the page table of the document at path.
func OpenOutline(path string) (*Outline, error) {
	n, err := CountPages(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutline, err)
	}
	return &Outline{path: path, pages: n}, nil
}

// Pages returns the page count of the underlying document.
func (o *Outline) Pages() int { return o.pages }

// ResolvePageRef maps a zero-based page index to a page of the document.
func (o *Outline) ResolvePageRef(index int) (PageRef, error) {
	if index < 0 || index >= o.pages {
		return PageRef{}, fmt.Errorf("%w: %d (document has %d pages)", ErrPageOutOfRange, index, o.pages)
	}
	return PageRef{number: index + 1}, nil
}

// WriteEntry appends an entry under parent, or at the root when parent is nil.
func (o *Outline) WriteEntry(parent *Entry, title string, target PageRef) (*Entry, error) {
	if target.number < 1 || target.number > o.pages {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRef, title)
	}
	e := &Entry{title: title, page: target.number}
	if parent == nil {
		o.roots = append(o.roots, e)
	} else {
		parent.kids = append(parent.kids, e)
	}
	return e, nil
}

// Len returns the number of entries written so far.
func (o *Outline) Len() int {
	n := 0
	var walk func([]*Entry)
	walk = func(es []*Entry) {
		for _, e := range es {
			n++
			walk(e.kids)
		}
	}
	walk(o.roots)
	return n
}

// Commit writes the document with its outline to outPath, replacing any
// outline the input already had. With no entries the document is copied.
func (o *Outline) Commit(outPath string) error {
	if len(o.roots) == 0 {
		if err := copyFile(o.path, outPath); err != nil {
			return fmt.Errorf("%w: %v", ErrOutline, err)
		}
		return nil
	}

	if err := api.AddBookmarksFile(o.path, outPath, bookmarks(o.roots), true, configuration()); err != nil {
		return fmt.Errorf("%w: %v", ErrOutline, err)
	}
	return nil
}

func bookmarks(entries []*Entry) []pdfcpu.Bookmark {
	bms := make([]pdfcpu.Bookmark, 0, len(entries))
	for _, e := range entries {
		bms = append(bms, pdfcpu.Bookmark{
			Title:    e.title,
			PageFrom: e.page,
			Kids:     bookmarks(e.kids),
		})
	}
	return bms
}
