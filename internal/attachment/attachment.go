// Package attachment resolves attachment references to stored files and
// materializes each one as a local PDF fragment. Images are converted to a
// single captioned page; images no converter can read are replaced by a
// placeholder page instead of failing the document.
package attachment

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Sentinel errors for attachment operations.
var (
	ErrFileNotFound   = errors.New("attachment file not found")
	ErrMetadata       = errors.New("failed to fetch attachment metadata")
	ErrDownload       = errors.New("failed to download attachment")
	ErrConversion     = errors.New("failed to convert attachment")
	ErrNoConverter    = errors.New("no converter for image kind")
	ErrNotPDF         = errors.New("stored file is not a PDF")
	ErrInvalidFileID  = errors.New("invalid file id")
	ErrInvalidBaseDir = errors.New("invalid attachment directory")
)

// Kind classifies a stored file by how it becomes a fragment.
type Kind int

const (
	KindOther Kind = iota
	KindPDF
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindImage:
		return "image"
	default:
		return "other"
	}
}

// Metadata describes one stored file.
type Metadata struct {
	FileID       string
	OID          uint32
	OriginalName string
	MimeType     string
	SizeInBytes  int64
	CreatedAt    time.Time
}

// Kind derives the fragment kind from the mime type.
func (m Metadata) Kind() Kind {
	mt := strings.ToLower(m.MimeType)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case mt == "application/pdf":
		return KindPDF
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	default:
		return KindOther
	}
}

// Accepted reports whether the file can become a fragment at all.
func (m Metadata) Accepted() bool {
	return m.Kind() != KindOther
}

// Ref references a stored file from a work item, with its optional figure
// number and caption.
type Ref struct {
	ID      string `yaml:"id" json:"id"`
	Figure  string `yaml:"figure,omitempty" json:"figure,omitempty"`
	Caption string `yaml:"caption,omitempty" json:"caption,omitempty"`
}

// Resolved pairs a reference with the metadata of the file it names.
type Resolved struct {
	Ref
	Meta Metadata
}

// Caption returns the footer text printed under a converted image.
func (r Resolved) Caption() string {
	switch {
	case r.Figure != "" && r.Ref.Caption != "":
		return "Figure " + r.Figure + ": " + r.Ref.Caption
	case r.Figure != "":
		return "Figure " + r.Figure
	case r.Ref.Caption != "":
		return r.Ref.Caption
	default:
		return r.Meta.OriginalName
	}
}

// Title returns the outline title of the attachment.
func (r Resolved) Title() string {
	if r.Figure != "" {
		return "Figure " + r.Figure
	}
	return r.Meta.OriginalName
}

// Store looks up and downloads stored files.
type Store interface {
	// Metadata returns metadata for the accepted files among ids.
	// Unknown ids are omitted rather than reported.
	Metadata(ctx context.Context, ids []string) ([]Metadata, error)

	// Download writes the content of fileID to dst.
	Download(ctx context.Context, fileID, dst string) error
}
