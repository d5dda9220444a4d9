package reportpdf

// Notes:
// - Fragments written by fakeRenderer and fakeAttachments are text files
//   holding their page count; textCounter reads it back. Structural
//   operations go through fakeTools, which merges by summing counts.
// - fakeTools records the outline written for each merged document so tests
//   assert on bookmark titles and pages without parsing PDFs. The real
//   pdfcpu path is covered in assemble_pdf_test.go.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alnah/go-reportpdf/internal/attachment"
)

// ---------------------------------------------------------------------------
// Event log
// ---------------------------------------------------------------------------

// eventLog records collaborator calls in the order they happen.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) index(event string) int {
	for i, e := range l.all() {
		if e == event {
			return i
		}
	}
	return -1
}

// ---------------------------------------------------------------------------
// Page count files
// ---------------------------------------------------------------------------

func writeCountFile(path string, pages int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pages)), 0o600)
}

func readCountFile(path string) (int, error) {
	b, err := os.ReadFile(path) // #nosec G304 -- test fixture path
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

// textCounter reads the page count written by the fakes.
var textCounter = PageCounterFunc(readCountFile)

// ---------------------------------------------------------------------------
// fakeRenderer
// ---------------------------------------------------------------------------

type fakeRenderer struct {
	dir   string
	log   *eventLog
	delay time.Duration
	// delayFor overrides delay per fragment when set.
	delayFor func(data *FragmentData) time.Duration

	// pages returns the page count of a fragment; nil means 1.
	pages func(data *FragmentData) int
	// toc returns the fragment-local outline; nil means none.
	toc func(data *FragmentData) []*TocNode
	// fail returns the error of a fragment; nil means success.
	fail func(data *FragmentData) error

	mu      sync.Mutex
	markups []string
}

func (r *fakeRenderer) RenderFragment(ctx context.Context, markup string, data *FragmentData, opts *RenderOptions) (*Fragment, error) {
	r.mu.Lock()
	r.markups = append(r.markups, markup)
	r.mu.Unlock()
	r.log.add("render %s %s %d", data.EntityID, data.Group, data.Index)

	delay := r.delay
	if r.delayFor != nil {
		delay = r.delayFor(data)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.fail != nil {
		if err := r.fail(data); err != nil {
			return nil, err
		}
	}

	pages := 1
	if r.pages != nil {
		pages = r.pages(data)
	}
	path := filepath.Join(r.dir, opts.Label+".frag")
	if err := writeCountFile(path, pages); err != nil {
		return nil, err
	}
	frag := &Fragment{Path: path}
	if r.toc != nil {
		frag.TOC = r.toc(data)
	}
	return frag, nil
}

// ---------------------------------------------------------------------------
// fakeAttachments
// ---------------------------------------------------------------------------

type fakeAttachments struct {
	dir   string
	log   *eventLog
	pages int // pages of every materialized attachment; 0 means 1

	resolveErr     error
	materializeErr error
	// drop lists reference ids Resolve omits, as a store does for unknown files.
	drop map[string]bool
}

func (a *fakeAttachments) Resolve(ctx context.Context, refs []AttachmentRef) ([]Attachment, error) {
	a.log.add("resolve")
	if a.resolveErr != nil {
		return nil, a.resolveErr
	}
	var out []Attachment
	for _, ref := range refs {
		if a.drop[ref.ID] {
			continue
		}
		out = append(out, attachment.Resolved{
			Ref:  ref,
			Meta: attachment.Metadata{FileID: ref.ID, OriginalName: ref.ID + ".png", MimeType: "image/png"},
		})
	}
	return out, nil
}

func (a *fakeAttachments) Materialize(ctx context.Context, att Attachment) (string, error) {
	a.log.add("materialize %s", att.ID)
	if a.materializeErr != nil {
		return "", a.materializeErr
	}
	pages := a.pages
	if pages == 0 {
		pages = 1
	}
	path := filepath.Join(a.dir, "att-"+att.ID+".frag")
	return path, writeCountFile(path, pages)
}

func (a *fakeAttachments) DownloadPDF(ctx context.Context, fileID string) (string, error) {
	a.log.add("download %s", fileID)
	path := filepath.Join(a.dir, "pregenerated-"+fileID+".frag")
	return path, writeCountFile(path, 2)
}

// ---------------------------------------------------------------------------
// fakeTools
// ---------------------------------------------------------------------------

type fakeEntry struct {
	Title    string
	Page     int
	Children []*fakeEntry
}

type fakeOutline struct {
	pages int
	roots []*fakeEntry
	tools *fakeTools
}

func (o *fakeOutline) Pages() int { return o.pages }

func (o *fakeOutline) ResolvePageRef(index int) (PageRef, error) {
	if index < 0 || index >= o.pages {
		return nil, fmt.Errorf("page %d out of range", index)
	}
	return index, nil
}

func (o *fakeOutline) WriteOutlineEntry(parent OutlineEntry, title string, target PageRef) (OutlineEntry, error) {
	e := &fakeEntry{Title: title, Page: target.(int)}
	if parent == nil {
		o.roots = append(o.roots, e)
	} else {
		p := parent.(*fakeEntry)
		p.Children = append(p.Children, e)
	}
	return e, nil
}

func (o *fakeOutline) Commit(outPath string) error {
	o.tools.mu.Lock()
	o.tools.outlines = append(o.tools.outlines, o)
	o.tools.mu.Unlock()
	return writeCountFile(outPath, o.pages)
}

type fakeTools struct {
	mu       sync.Mutex
	merged   [][]string
	outlines []*fakeOutline
	archived []ArchiveFile

	mergeErr error
	// extraPages is added to every merged document to simulate a mismatch.
	extraPages int
}

func (t *fakeTools) Merge(paths []string, outPath string) error {
	if t.mergeErr != nil {
		return t.mergeErr
	}
	total := 0
	for _, p := range paths {
		n, err := readCountFile(p)
		if err != nil {
			return err
		}
		total += n
	}
	t.mu.Lock()
	t.merged = append(t.merged, append([]string(nil), paths...))
	t.mu.Unlock()
	return writeCountFile(outPath, total+t.extraPages)
}

func (t *fakeTools) OpenOutline(path string) (OutlineWriter, error) {
	n, err := readCountFile(path)
	if err != nil {
		return nil, err
	}
	return &fakeOutline{pages: n, tools: t}, nil
}

func (t *fakeTools) Archive(files []ArchiveFile, outPath string) error {
	t.mu.Lock()
	t.archived = append([]ArchiveFile(nil), files...)
	t.mu.Unlock()
	return os.WriteFile(outPath, []byte("zip"), 0o600)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// outlineString renders entries as "title@page" lines indented by depth.
func outlineString(entries []*fakeEntry) string {
	var b strings.Builder
	var walk func([]*fakeEntry, int)
	walk = func(es []*fakeEntry, depth int) {
		for _, e := range es {
			fmt.Fprintf(&b, "%s%s@%d\n", strings.Repeat("  ", depth), e.Title, e.Page)
			walk(e.Children, depth+1)
		}
	}
	walk(entries, 0)
	return b.String()
}

// waitFor fails the test if ch does not receive in time.
func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		var zero T
		return zero
	}
}

// assertNoEvent fails the test if ch receives within d.
func assertNoEvent[T any](t *testing.T, ch <-chan T, d time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("unexpected %s", what)
	case <-time.After(d):
	}
}

// fragmentFiles lists the fragment files left in dir.
func fragmentFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.frag"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

var errBoom = errors.New("boom")
