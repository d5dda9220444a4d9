package reportpdf

import (
	"context"
	"fmt"

	"github.com/alnah/go-reportpdf/internal/archive"
	"github.com/alnah/go-reportpdf/internal/attachment"
	"github.com/alnah/go-reportpdf/internal/pdf"
)

// Fragment is one produced PDF file of a document.
// TOC pages are zero-based and local to the fragment.
type Fragment struct {
	Path  string
	Title string
	TOC   []*TocNode
}

// FragmentRenderer turns a named fragment template and its data into a PDF.
// Calls are not retried.
type FragmentRenderer interface {
	RenderFragment(ctx context.Context, markup string, data *FragmentData, opts *RenderOptions) (*Fragment, error)
}

// PageCounter returns the page count of a PDF file.
type PageCounter interface {
	CountPages(path string) (int, error)
}

// PageCounterFunc adapts a function to PageCounter.
type PageCounterFunc func(path string) (int, error)

// CountPages calls f(path).
func (f PageCounterFunc) CountPages(path string) (int, error) { return f(path) }

// AttachmentSource resolves attachment references and materializes them as
// local PDF files. *attachment.Retriever implements it.
type AttachmentSource interface {
	Resolve(ctx context.Context, refs []AttachmentRef) ([]Attachment, error)
	Materialize(ctx context.Context, a Attachment) (string, error)
	DownloadPDF(ctx context.Context, fileID string) (string, error)
}

var _ AttachmentSource = (*attachment.Retriever)(nil)

// ArchiveFile is one entry of a bundle archive.
type ArchiveFile = archive.File

// DocumentTools performs the structural operations on finished fragments.
type DocumentTools interface {
	// Merge concatenates paths, in order, into outPath.
	Merge(paths []string, outPath string) error

	// OpenOutline prepares the outline of the merged document at path.
	OpenOutline(path string) (OutlineWriter, error)

	// Archive bundles files into outPath.
	Archive(files []ArchiveFile, outPath string) error
}

// PDFTools returns the pdfcpu and zip backed DocumentTools.
func PDFTools() DocumentTools { return pdfTools{} }

// PDFPageCounter counts pages with pdfcpu.
var PDFPageCounter PageCounter = PageCounterFunc(pdf.CountPages)

type pdfTools struct{}

func (pdfTools) Merge(paths []string, outPath string) error { return pdf.Merge(paths, outPath) }

func (pdfTools) Archive(files []ArchiveFile, outPath string) error {
	return archive.Create(files, outPath)
}

func (pdfTools) OpenOutline(path string) (OutlineWriter, error) {
	o, err := pdf.OpenOutline(path)
	if err != nil {
		return nil, err
	}
	return &pdfOutline{o: o}, nil
}

// pdfOutline adapts *pdf.Outline to OutlineWriter.
type pdfOutline struct {
	o *pdf.Outline
}

func (p *pdfOutline) Pages() int { return p.o.Pages() }

func (p *pdfOutline) ResolvePageRef(index int) (PageRef, error) {
	return p.o.ResolvePageRef(index)
}

func (p *pdfOutline) WriteOutlineEntry(parent OutlineEntry, title string, target PageRef) (OutlineEntry, error) {
	ref, ok := target.(pdf.PageRef)
	if !ok {
		return nil, fmt.Errorf("%w: %T", pdf.ErrInvalidRef, target)
	}
	var entry *pdf.Entry
	if parent != nil {
		if entry, ok = parent.(*pdf.Entry); !ok {
			return nil, fmt.Errorf("%w: parent %T", pdf.ErrInvalidRef, parent)
		}
	}
	return p.o.WriteEntry(entry, title, ref)
}

func (p *pdfOutline) Commit(outPath string) error { return p.o.Commit(outPath) }
