package reportpdf

import (
	"fmt"
	"strings"

	"github.com/alnah/go-reportpdf/internal/attachment"
)

// Page size constants.
const (
	PageSizeLetter = "letter"
	PageSizeA4     = "a4"
	PageSizeLegal  = "legal"
)

// Orientation constants.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// Margin bounds in inches.
const (
	MinMargin     = 0.25
	MaxMargin     = 3.0
	DefaultMargin = 0.5
)

// pageDimensions holds portrait width and height in inches.
var pageDimensions = map[string][2]float64{
	PageSizeLetter: {8.5, 11},
	PageSizeA4:     {8.27, 11.69},
	PageSizeLegal:  {8.5, 14},
}

// PageSettings configures rendered fragment pages.
type PageSettings struct {
	Size        string  `yaml:"size" json:"size"`               // "letter", "a4", "legal"
	Orientation string  `yaml:"orientation" json:"orientation"` // "portrait", "landscape"
	Margin      float64 `yaml:"margin" json:"margin"`           // inches, applied to all sides
}

// DefaultPageSettings returns page settings with default values.
func DefaultPageSettings() *PageSettings {
	return &PageSettings{
		Size:        PageSizeA4,
		Orientation: OrientationPortrait,
		Margin:      DefaultMargin,
	}
}

// Validate checks that page settings are valid.
// Returns nil if p is nil (nil means use defaults).
func (p *PageSettings) Validate() error {
	if p == nil {
		return nil
	}
	if _, ok := pageDimensions[strings.ToLower(p.Size)]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPageSize, p.Size)
	}
	switch strings.ToLower(p.Orientation) {
	case OrientationPortrait, OrientationLandscape:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrientation, p.Orientation)
	}
	if p.Margin < MinMargin || p.Margin > MaxMargin {
		return fmt.Errorf("%w: %.2f (must be between %.2f and %.2f)", ErrInvalidMargin, p.Margin, MinMargin, MaxMargin)
	}
	return nil
}

// Dimensions returns the paper width and height in inches, honoring orientation.
func (p *PageSettings) Dimensions() (width, height float64) {
	if p == nil {
		p = DefaultPageSettings()
	}
	d, ok := pageDimensions[strings.ToLower(p.Size)]
	if !ok {
		d = pageDimensions[PageSizeA4]
	}
	if strings.EqualFold(p.Orientation, OrientationLandscape) {
		return d[1], d[0]
	}
	return d[0], d[1]
}

// AttachmentRef references a stored file attached to a work item.
type AttachmentRef = attachment.Ref

// Attachment is an attachment reference resolved against the store.
// Templates receive them under the "attachments" key.
type Attachment = attachment.Resolved

// Section is one templated part of a document.
// Template names the fragment template; empty selects the group default.
type Section struct {
	Title    string         `yaml:"title,omitempty" json:"title,omitempty"`
	Template string         `yaml:"template,omitempty" json:"template,omitempty"`
	Data     map[string]any `yaml:"data,omitempty" json:"data,omitempty"`
}

// WorkItem is the caller-supplied content of one document.
// It must not be modified once handed to a Factory.
type WorkItem struct {
	ID          string          `yaml:"id" json:"id"`
	Title       string          `yaml:"title,omitempty" json:"title,omitempty"`
	Body        Section         `yaml:"body" json:"body"`
	Steps       []Section       `yaml:"steps,omitempty" json:"steps,omitempty"`
	Samples     []Section       `yaml:"samples,omitempty" json:"samples,omitempty"`
	Attachments []AttachmentRef `yaml:"attachments,omitempty" json:"attachments,omitempty"`
	Review      *Section        `yaml:"review,omitempty" json:"review,omitempty"`

	// Pregenerated names a stored PDF used as the body instead of rendering one.
	Pregenerated string `yaml:"pregenerated,omitempty" json:"pregenerated,omitempty"`
}

// Validate checks the fields a Factory relies on.
func (w *WorkItem) Validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidWorkItem)
	}
	for i, a := range w.Attachments {
		if strings.TrimSpace(a.ID) == "" {
			return fmt.Errorf("%w: %s: attachment %d has no id", ErrInvalidWorkItem, w.ID, i+1)
		}
	}
	return nil
}

// EntityID is the default entity id extractor: the work item's ID.
func EntityID(item WorkItem) string { return item.ID }

// RenderOptions are passed to every FragmentRenderer call.
type RenderOptions struct {
	Page *PageSettings

	// Label names the fragment in temp file names and logs, e.g. "42-step-1".
	Label string
}

// FragmentData is the data a fragment template executes against.
type FragmentData struct {
	EntityID    string
	Title       string
	Group       Group
	Index       int // position inside the group, zero-based
	Section     Section
	Attachments []Attachment
}
