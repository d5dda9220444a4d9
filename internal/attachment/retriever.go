package attachment

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/alnah/go-reportpdf/internal/fileutil"
	"github.com/alnah/go-reportpdf/internal/metrics"
	"github.com/alnah/go-reportpdf/internal/pdf"
)

// Retriever resolves references against a Store and materializes each
// attachment as a local PDF file.
type Retriever struct {
	store   Store
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger used for fallbacks and cleanup failures.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// WithMetrics records placeholder substitutions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Retriever) { r.metrics = m }
}

// NewRetriever creates a Retriever over store.
func NewRetriever(store Store, opts ...Option) *Retriever {
	r := &Retriever{store: store, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches metadata for refs and returns the ones that name an
// accepted stored file, in reference order.
func (r *Retriever) Resolve(ctx context.Context, refs []Ref) ([]Resolved, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}

	metas, err := r.store.Metadata(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Metadata, len(metas))
	for _, m := range metas {
		byID[m.FileID] = m
	}

	out := make([]Resolved, 0, len(refs))
	for _, ref := range refs {
		m, ok := byID[ref.ID]
		if !ok || !m.Accepted() {
			r.logger.Warn().Str("file_id", ref.ID).Msg("attachment skipped: no stored PDF or image")
			continue
		}
		out = append(out, Resolved{Ref: ref, Meta: m})
	}
	return out, nil
}

// Materialize downloads a resolved attachment and returns the path of a PDF
// fragment for it. Images become one captioned page; other kinds are
// returned as downloaded.
func (r *Retriever) Materialize(ctx context.Context, a Resolved) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, err := r.download(ctx, a.Meta.FileID, extensionFor(a.Meta))
	if err != nil {
		return "", err
	}

	if a.Meta.Kind() != KindImage {
		return src, nil
	}
	defer fileutil.FailSafeDelete(r.logger, src)

	return r.imageToPDF(a, src)
}

// DownloadPDF fetches a stored PDF, such as a pregenerated document body.
func (r *Retriever) DownloadPDF(ctx context.Context, fileID string) (string, error) {
	metas, err := r.store.Metadata(ctx, []string{fileID})
	if err != nil {
		return "", err
	}
	if len(metas) == 0 {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	if metas[0].Kind() != KindPDF {
		return "", fmt.Errorf("%w: %s is %s", ErrNotPDF, fileID, metas[0].MimeType)
	}
	return r.download(ctx, fileID, "pdf")
}

func (r *Retriever) download(ctx context.Context, fileID, ext string) (string, error) {
	dst, err := fileutil.TempPath("download", ext)
	if err != nil {
		return "", err
	}
	if err := r.store.Download(ctx, fileID, dst); err != nil {
		fileutil.FailSafeDelete(r.logger, dst)
		return "", err
	}
	return dst, nil
}

func (r *Retriever) imageToPDF(a Resolved, src string) (string, error) {
	importPath, cleanup, err := prepareImage(src, a.Meta.MimeType)
	if isNoConverter(err) {
		r.logger.Warn().
			Str("file_id", a.Meta.FileID).
			Str("mime_type", a.Meta.MimeType).
			Msg("no image converter, using placeholder")
		r.metrics.PlaceholderUsed()

		data, perr := placeholder()
		if perr != nil {
			return "", fmt.Errorf("%w: %v", ErrConversion, perr)
		}
		importPath, cleanup, err = writeImage(data)
	}
	if err != nil {
		return "", err
	}
	defer cleanup()

	page, err := fileutil.TempPath("image", "pdf")
	if err != nil {
		return "", err
	}
	defer fileutil.FailSafeDelete(r.logger, page)

	if err := pdf.ImportImage(importPath, page, isLandscape(importPath)); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrConversion, a.Meta.FileID, err)
	}

	out, err := fileutil.TempPath("attachment", "pdf")
	if err != nil {
		return "", err
	}
	if err := pdf.StampCaption(page, out, a.Caption()); err != nil {
		fileutil.FailSafeDelete(r.logger, out)
		return "", fmt.Errorf("%w: %s: %v", ErrConversion, a.Meta.FileID, err)
	}
	return out, nil
}

// extensionFor picks a temp file extension from the original name or mime type.
func extensionFor(m Metadata) string {
	if m.Kind() == KindPDF {
		return "pdf"
	}
	if ext := strings.TrimPrefix(filepath.Ext(m.OriginalName), "."); ext != "" && fileutil.ValidateExtension(ext) == nil {
		return strings.ToLower(ext)
	}
	if _, sub, ok := strings.Cut(m.MimeType, "/"); ok {
		sub, _, _ = strings.Cut(sub, ";")
		if sub = strings.TrimSpace(sub); sub != "" && fileutil.ValidateExtension(sub) == nil {
			return sub
		}
	}
	return "bin"
}
