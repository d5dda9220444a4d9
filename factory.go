package reportpdf

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-reportpdf/internal/fileutil"
	"github.com/alnah/go-reportpdf/internal/logging"
	"github.com/alnah/go-reportpdf/internal/metrics"
)

// Default fragment template of each rendered group.
var defaultTemplates = map[Group]string{
	GroupBody:    TemplateBody,
	GroupSteps:   TemplateStep,
	GroupSamples: TemplateSample,
	GroupReview:  TemplateReview,
}

// errStopped is returned by task steps that observed the stopped flag.
var errStopped = errors.New("factory stopped")

// FactoryDeps are the collaborators a Factory drives.
type FactoryDeps struct {
	Renderer    FragmentRenderer
	Attachments AttachmentSource // required only for attachments or a pregenerated body
	Counter     PageCounter      // nil uses PDFPageCounter
	Page        *PageSettings    // nil uses DefaultPageSettings
	Retry       RetryPolicy      // zero value uses DefaultRetryPolicy
}

// AggregateResult is everything a Factory produced for its work item.
// Fragments of a group are stored in section order.
type AggregateResult struct {
	EntityID    string
	Fragments   map[Group][]Fragment
	Pages       map[Group]map[string]int
	Attachments []Attachment
}

// TotalPages returns the sum of all counted pages.
func (r *AggregateResult) TotalPages() int {
	total := 0
	for _, pages := range r.Pages {
		for _, n := range pages {
			total += n
		}
	}
	return total
}

// Files returns every fragment path in merge order.
func (r *AggregateResult) Files() []string {
	var out []string
	for _, g := range Groups {
		for _, f := range r.Fragments[g] {
			out = append(out, f.Path)
		}
	}
	return out
}

type factoryState int

const (
	factoryNew factoryState = iota
	factoryRunning
	factoryDone
	factoryFailed
)

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithLogger sets the factory logger. The entity id is added to every entry.
func WithLogger(l zerolog.Logger) FactoryOption {
	return func(f *Factory) { f.logger = l }
}

// WithMetrics records produced fragments and page count retries.
func WithMetrics(m *metrics.Metrics) FactoryOption {
	return func(f *Factory) { f.metrics = m }
}

// Factory produces every fragment of one work item.
//
// Init derives a task checklist from the work item and starts the work.
// Body and review render immediately. When the item has attachments,
// their metadata is resolved before any step or sample renders, because
// fragments cite attachments. Every produced file is page counted.
// Exactly one terminal event follows: done once the checklist is empty,
// or error on the first failure. Abort stops all work without an event
// and deletes every file produced so far.
type Factory struct {
	entityID string
	deps     FactoryDeps
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	mu        sync.Mutex
	state     factoryState
	stopped   bool
	ctx       context.Context
	cancel    context.CancelFunc
	checklist *Checklist
	expected  map[Group]int
	result    *AggregateResult
	files     []string
	onDone    []func(*AggregateResult)
	onError   []func(*TaskError)
	finished  chan struct{}
}

// NewFactory creates a Factory for the work item identified by entityID.
func NewFactory(entityID string, deps FactoryDeps, opts ...FactoryOption) *Factory {
	f := &Factory{
		entityID: entityID,
		deps:     deps,
		logger:   zerolog.Nop(),
		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.deps.Counter == nil {
		f.deps.Counter = PDFPageCounter
	}
	if f.deps.Page == nil {
		f.deps.Page = DefaultPageSettings()
	}
	if f.deps.Retry == (RetryPolicy{}) {
		f.deps.Retry = DefaultRetryPolicy()
	}
	f.logger = logging.WithEntity(f.logger, entityID)
	return f
}

// EntityID returns the id the Factory was created with.
func (f *Factory) EntityID() string { return f.entityID }

// OnceDone registers cb for the done event. Register before Init.
func (f *Factory) OnceDone(cb func(*AggregateResult)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDone = append(f.onDone, cb)
}

// OnceError registers cb for the error event. Register before Init.
func (f *Factory) OnceError(cb func(*TaskError)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onError = append(f.onError, cb)
}

// Checklist returns the tasks still pending. It is nil before Init.
func (f *Factory) Checklist() []TaskName {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checklist == nil {
		return nil
	}
	return f.checklist.Pending()
}

// Init starts producing item. It may be called once. Cancelling ctx has
// the same effect as Abort.
func (f *Factory) Init(ctx context.Context, item WorkItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if f.deps.Renderer == nil {
		return fmt.Errorf("%w: %s: no fragment renderer", ErrInvalidWorkItem, f.entityID)
	}
	if (len(item.Attachments) > 0 || item.Pregenerated != "") && f.deps.Attachments == nil {
		return fmt.Errorf("%w: %s: attachments need an attachment source", ErrInvalidWorkItem, f.entityID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != factoryNew {
		return fmt.Errorf("%w: factory %s", ErrAlreadyStarted, f.entityID)
	}
	if f.stopped {
		return fmt.Errorf("%w: factory %s", ErrAborted, f.entityID)
	}

	f.checklist = NewChecklist(&item)
	f.expected = map[Group]int{
		GroupBody:    1,
		GroupSteps:   len(item.Steps),
		GroupSamples: len(item.Samples),
	}
	if item.Review != nil {
		f.expected[GroupReview] = 1
	}
	f.result = &AggregateResult{
		EntityID:  f.entityID,
		Fragments: make(map[Group][]Fragment, len(Groups)),
		Pages:     make(map[Group]map[string]int, len(Groups)),
	}
	for g, n := range f.expected {
		f.result.Fragments[g] = make([]Fragment, n)
	}

	f.ctx, f.cancel = context.WithCancel(ctx)
	f.state = factoryRunning
	f.logger.Debug().Strs("tasks", taskStrings(f.checklist.Tasks())).Msg("factory started")

	go f.run(f.ctx, item)
	return nil
}

// Abort stops the Factory and deletes the files it produced. Work already
// in flight finishes, and its output is deleted. No event is emitted.
func (f *Factory) Abort() {
	f.mu.Lock()
	f.stopped = true
	cancel := f.cancel
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	f.Cleanup()
}

// Cleanup deletes every fragment file recorded so far, logging failures.
func (f *Factory) Cleanup() {
	f.mu.Lock()
	files := f.files
	f.files = nil
	f.mu.Unlock()

	fileutil.FailSafeDelete(f.logger, files...)
}

// Wait blocks until every task goroutine has returned.
func (f *Factory) Wait() {
	f.mu.Lock()
	started := f.state != factoryNew
	f.mu.Unlock()
	if started {
		<-f.finished
	}
}

func (f *Factory) run(ctx context.Context, item WorkItem) {
	defer close(f.finished)

	g, gctx := errgroup.WithContext(ctx)

	f.spawn(g, func() error { return f.body(gctx, &item) })
	if item.Review != nil {
		f.spawn(g, func() error {
			title := item.Review.Title
			if title == "" {
				title = ReviewTitle
			}
			return f.renderGroup(gctx, &item, GroupReview, TaskRenderReview, []Section{*item.Review}, nil, func(int) string { return title })
		})
	}

	if len(item.Attachments) > 0 {
		f.spawn(g, func() error {
			resolved, err := f.fetchMetadata(gctx, item.Attachments)
			if err != nil {
				return err
			}
			f.startSections(g, gctx, &item, resolved)
			return f.fetchAttachments(gctx, resolved)
		})
	} else {
		f.startSections(g, gctx, &item, nil)
	}

	_ = g.Wait()
}

// spawn runs fn in g, reporting its failure before the group cancels its
// siblings.
func (f *Factory) spawn(g *errgroup.Group, fn func() error) {
	g.Go(func() error {
		if err := fn(); err != nil {
			f.fail(err)
			return err
		}
		return nil
	})
}

func (f *Factory) startSections(g *errgroup.Group, ctx context.Context, item *WorkItem, resolved []Attachment) {
	if len(item.Steps) > 0 {
		f.spawn(g, func() error {
			return f.renderGroup(ctx, item, GroupSteps, TaskRenderSteps, item.Steps, resolved, sectionTitle(item.Steps, "Step"))
		})
	}
	if len(item.Samples) > 0 {
		f.spawn(g, func() error {
			return f.renderGroup(ctx, item, GroupSamples, TaskRenderSamples, item.Samples, resolved, sectionTitle(item.Samples, "Sample"))
		})
	}
}

func sectionTitle(sections []Section, fallback string) func(int) string {
	return func(i int) string {
		if t := sections[i].Title; t != "" {
			return t
		}
		return fmt.Sprintf("%s %d", fallback, i+1)
	}
}

func (f *Factory) body(ctx context.Context, item *WorkItem) error {
	if item.Pregenerated == "" {
		return f.renderGroup(ctx, item, GroupBody, TaskRenderBody, []Section{item.Body}, nil, func(int) string { return item.Title })
	}

	err := f.produce(ctx, TaskDownloadBody, GroupBody, 0, func(ctx context.Context) (*Fragment, error) {
		path, err := f.deps.Attachments.DownloadPDF(ctx, item.Pregenerated)
		if err != nil {
			return nil, fmt.Errorf("%w: pregenerated body %s: %w", ErrAttachment, item.Pregenerated, err)
		}
		return &Fragment{Path: path, Title: item.Title}, nil
	})
	if err != nil {
		return err
	}
	return f.complete(TaskDownloadBody)
}

// renderGroup renders sections one after another, then completes task.
func (f *Factory) renderGroup(ctx context.Context, item *WorkItem, group Group, task TaskName, sections []Section, resolved []Attachment, title func(int) string) error {
	for i, sec := range sections {
		err := f.produce(ctx, task, group, i, func(ctx context.Context) (*Fragment, error) {
			frag, err := f.render(ctx, item, group, i, sec, resolved)
			if err != nil {
				return nil, err
			}
			if frag.Title == "" {
				frag.Title = title(i)
			}
			return frag, nil
		})
		if err != nil {
			return err
		}
	}
	return f.complete(task)
}

func (f *Factory) render(ctx context.Context, item *WorkItem, group Group, index int, sec Section, resolved []Attachment) (*Fragment, error) {
	markup := sec.Template
	if markup == "" {
		markup = defaultTemplates[group]
	}
	data := &FragmentData{
		EntityID:    f.entityID,
		Title:       item.Title,
		Group:       group,
		Index:       index,
		Section:     sec,
		Attachments: resolved,
	}
	opts := &RenderOptions{
		Page:  f.deps.Page,
		Label: fmt.Sprintf("%s-%s-%d", f.entityID, group, index+1),
	}

	frag, err := f.deps.Renderer.RenderFragment(ctx, markup, data, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %d: %w", ErrRender, group, index+1, err)
	}
	if frag == nil || frag.Path == "" {
		return nil, fmt.Errorf("%w: %s %d: renderer returned no file", ErrRender, group, index+1)
	}
	return frag, nil
}

func (f *Factory) fetchMetadata(ctx context.Context, refs []AttachmentRef) ([]Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, f.taskErr(TaskFetchMetadata, err)
	}
	resolved, err := f.deps.Attachments.Resolve(ctx, refs)
	if err != nil {
		return nil, f.taskErr(TaskFetchMetadata, fmt.Errorf("%w: %w", ErrAttachment, err))
	}

	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return nil, errStopped
	}
	f.expected[GroupAttachments] = len(resolved)
	f.result.Fragments[GroupAttachments] = make([]Fragment, len(resolved))
	f.result.Attachments = resolved
	f.mu.Unlock()

	f.logger.Debug().Int("requested", len(refs)).Int("resolved", len(resolved)).Msg("attachment metadata fetched")
	if err := f.complete(TaskFetchMetadata); err != nil {
		return nil, err
	}
	return resolved, nil
}

func (f *Factory) fetchAttachments(ctx context.Context, resolved []Attachment) error {
	for i, a := range resolved {
		err := f.produce(ctx, TaskFetchAttachments, GroupAttachments, i, func(ctx context.Context) (*Fragment, error) {
			path, err := f.deps.Attachments.Materialize(ctx, a)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrAttachment, a.ID, err)
			}
			return &Fragment{Path: path, Title: a.Title()}, nil
		})
		if err != nil {
			return err
		}
	}
	if err := f.complete(TaskFetchAttachments); err != nil {
		return err
	}
	if len(resolved) == 0 {
		return f.complete(CountTask(GroupAttachments))
	}
	return nil
}

// produce makes one fragment, records it and counts its pages.
func (f *Factory) produce(ctx context.Context, task TaskName, group Group, index int, build func(context.Context) (*Fragment, error)) error {
	if err := ctx.Err(); err != nil {
		return f.taskErr(task, err)
	}

	frag, err := build(ctx)
	if err != nil {
		return f.taskErr(task, err)
	}
	if !f.record(group, index, frag) {
		return errStopped
	}

	pages, err := countPages(ctx, f.deps.Counter, frag.Path, f.deps.Retry, f.logger.With().Str("group", string(group)).Logger(), f.metrics)
	if err != nil {
		return f.taskErr(CountTask(group), err)
	}
	return f.counted(group, frag.Path, pages)
}

// record stores frag, or deletes it when the Factory already stopped.
func (f *Factory) record(group Group, index int, frag *Fragment) bool {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		f.logger.Debug().Str("group", string(group)).Str("path", frag.Path).Msg("aborted")
		fileutil.FailSafeDelete(f.logger, frag.Path)
		return false
	}
	f.files = append(f.files, frag.Path)
	f.result.Fragments[group][index] = *frag
	f.mu.Unlock()

	f.metrics.FragmentProduced(string(group))
	return true
}

// counted stores a page count and completes the group's count task once
// every expected fragment is counted.
func (f *Factory) counted(group Group, path string, pages int) error {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return errStopped
	}
	if f.result.Pages[group] == nil {
		f.result.Pages[group] = make(map[string]int)
	}
	f.result.Pages[group][path] = pages
	complete := len(f.result.Pages[group]) == f.expected[group]
	f.mu.Unlock()

	f.logger.Debug().Str("group", string(group)).Str("path", path).Int("pages", pages).Msg("pages counted")
	if complete {
		return f.complete(CountTask(group))
	}
	return nil
}

// complete marks task done and emits the done event when nothing remains.
func (f *Factory) complete(task TaskName) error {
	f.mu.Lock()
	if f.stopped || f.state != factoryRunning {
		f.mu.Unlock()
		return errStopped
	}
	if err := f.checklist.Complete(task); err != nil {
		f.mu.Unlock()
		return f.taskErr(task, err)
	}
	if !f.checklist.Done() {
		f.mu.Unlock()
		f.logger.Debug().Str("task", string(task)).Msg("task completed")
		return nil
	}
	f.state = factoryDone
	res := f.result
	callbacks := f.onDone
	f.mu.Unlock()

	f.logger.Debug().Str("task", string(task)).Int("pages", res.TotalPages()).Msg("factory done")
	for _, cb := range callbacks {
		cb(res)
	}
	return nil
}

func (f *Factory) taskErr(task TaskName, err error) error {
	return &TaskError{EntityID: f.entityID, Task: task, Err: err}
}

// fail emits the error event for the first failure. Later failures, and
// failures caused by cancellation, are only logged.
func (f *Factory) fail(err error) {
	te := &TaskError{EntityID: f.entityID, Err: err}
	errors.As(err, &te)

	f.mu.Lock()
	switch {
	case f.state != factoryRunning:
		f.mu.Unlock()
		f.logger.Debug().Err(te.Err).Str("task", string(te.Task)).Msg("aborted")
		return
	case f.stopped || f.ctx.Err() != nil:
		f.stopped = true
		f.mu.Unlock()
		f.logger.Debug().Err(te.Err).Str("task", string(te.Task)).Msg("aborted")
		f.Cleanup()
		return
	}
	f.state = factoryFailed
	f.stopped = true
	callbacks := f.onError
	f.mu.Unlock()

	f.cancel()
	f.Cleanup()
	f.logger.Error().Err(te.Err).Str("task", string(te.Task)).Msg("factory failed")
	for _, cb := range callbacks {
		cb(te)
	}
}

func taskStrings(tasks []TaskName) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = string(t)
	}
	return out
}
